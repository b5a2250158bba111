package queue

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"

	"github.com/rs/zerolog"

	"github.com/pharmacontrol/identity-service/internal/pkg/metrics"
)

const channelBuffer = 256

var (
	// ErrStopped is returned by Do once Stop has been called.
	ErrStopped = errors.New("dispatcher stopped")
	// ErrJobPanicked is returned by Do when fn panicked.
	ErrJobPanicked = errors.New("dispatcher job panicked")
)

// err is written by the worker before done is closed.
type job struct {
	ctx  context.Context
	fn   func()
	done chan struct{}
	err  error
}

// Dispatcher runs CPU-bound jobs on a fixed set of workers so that callers
// block on their own job only and total CPU use stays bounded.
type Dispatcher struct {
	jobs    chan *job
	quit    chan struct{}
	workers int
	log     zerolog.Logger

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewDispatcher creates a Dispatcher with numWorkers workers.
// If numWorkers <= 0, GOMAXPROCS is used.
func NewDispatcher(numWorkers int, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = runtime.GOMAXPROCS(0)
	}
	return &Dispatcher{
		jobs:    make(chan *job, channelBuffer),
		quit:    make(chan struct{}),
		workers: numWorkers,
		log:     log,
	}
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled or
// Stop is called.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(d.workers)
	for i := 0; i < d.workers; i++ {
		go d.runWorker(ctx, i)
	}
	d.log.Debug().Int("workers", d.workers).Msg("hash dispatcher started")
}

// Do enqueues fn and waits until it has run. A nil error means fn ran to
// completion. It returns early with the context error if ctx is cancelled
// first; fn is then skipped if not yet started.
func (d *Dispatcher) Do(ctx context.Context, fn func()) error {
	j := &job{ctx: ctx, fn: fn, done: make(chan struct{})}

	select {
	case <-d.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	case d.jobs <- j:
		metrics.HashQueueDepth.Set(float64(len(d.jobs)))
	}

	select {
	case <-j.done:
		return j.err
	case <-ctx.Done():
		return ctx.Err()
	case <-d.quit:
		// a worker may still be finishing this job
		select {
		case <-j.done:
			return j.err
		default:
			return ErrStopped
		}
	}
}

// Stop signals workers to exit and waits for in-progress jobs to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.quit)
	})
	d.wg.Wait()
}

func (d *Dispatcher) runWorker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.quit:
			return
		case j := <-d.jobs:
			metrics.HashQueueDepth.Set(float64(len(d.jobs)))
			if err := j.ctx.Err(); err != nil {
				j.err = err
				close(j.done)
				continue
			}
			d.run(id, j)
		}
	}
}

func (d *Dispatcher) run(id int, j *job) {
	defer close(j.done)
	defer func() {
		if r := recover(); r != nil {
			j.err = fmt.Errorf("%w: %v", ErrJobPanicked, r)
			d.log.Error().Interface("panic", r).Int("worker_id", id).Msg("hash job panicked")
		}
	}()
	j.fn()
}
