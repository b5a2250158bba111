package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pharmacontrol/identity-service/internal/core/domain"
)

const uniqueViolation = "23505"

// duplicateSignals are the free-text forms a uniqueness violation takes when
// it reaches us without a SQLSTATE.
var duplicateSignals = []string{
	"duplicate key",
	"Duplicate entry",
	"ER_DUP_ENTRY",
	"already registered",
}

// isDuplicate reports whether err or msg carries a uniqueness violation.
func isDuplicate(err error, msg string) bool {
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return true
		}
		msg = msg + " " + err.Error()
	}
	for _, s := range duplicateSignals {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// isUnavailable reports connectivity and timeout faults.
func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || pgconn.Timeout(err) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// class 08: connection exception, 57P0x: server shutting down
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P0")
	}
	return errors.Is(err, net.ErrClosed) || strings.Contains(err.Error(), "closed pool")
}

// wrap tags connectivity faults with domain.ErrStoreUnavailable.
func wrap(op string, err error) error {
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
