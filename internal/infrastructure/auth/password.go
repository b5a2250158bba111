package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
	"github.com/pharmacontrol/identity-service/internal/pkg/metrics"
)

// errNotRun marks a dispatch that returned without running the job.
var errNotRun = errors.New("hash job did not run")

// Dispatcher runs a CPU-bound job and waits for it.
type Dispatcher interface {
	Do(ctx context.Context, fn func()) error
}

// BcryptHasher implements ports.PasswordHasher with bcrypt. Every Hash call
// embeds a fresh random salt, and Verify compares in constant time.
type BcryptHasher struct {
	cost       int
	dispatcher Dispatcher
}

// NewBcryptHasher returns a hasher with the given cost. When dispatcher is nil
// the work runs on the calling goroutine.
func NewBcryptHasher(cost int, dispatcher Dispatcher) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost, dispatcher: dispatcher}
}

// Cost returns the configured work factor.
func (h *BcryptHasher) Cost() int {
	return h.cost
}

func (h *BcryptHasher) Hash(ctx context.Context, plaintext string) (string, error) {
	var (
		hash    []byte
		hashErr error
	)
	if err := h.run(ctx, "hash", func() {
		hash, hashErr = bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	}); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrHashing, err)
	}
	if hashErr != nil {
		// bcrypt errors never contain the input
		return "", fmt.Errorf("%w: %w", domain.ErrHashing, hashErr)
	}
	return string(hash), nil
}

func (h *BcryptHasher) Verify(ctx context.Context, plaintext, hash string) (bool, error) {
	var cmpErr error
	if err := h.run(ctx, "verify", func() {
		cmpErr = bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	}); err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrHashing, err)
	}
	switch {
	case cmpErr == nil:
		return true, nil
	case errors.Is(cmpErr, bcrypt.ErrMismatchedHashAndPassword):
		return false, nil
	default:
		return false, fmt.Errorf("%w: %w", domain.ErrHashing, cmpErr)
	}
}

// run executes fn and returns nil only if fn completed.
func (h *BcryptHasher) run(ctx context.Context, op string, fn func()) error {
	completed := false
	timed := func() {
		start := time.Now()
		fn()
		metrics.HashDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		completed = true
	}
	if h.dispatcher == nil {
		timed()
		return nil
	}
	if err := h.dispatcher.Do(ctx, timed); err != nil {
		return err
	}
	if !completed {
		return errNotRun
	}
	return nil
}
