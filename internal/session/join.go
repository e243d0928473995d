package session

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

// Operation is one remote call issued on behalf of a screen.
type Operation func(ctx context.Context) error

// Tracker aggregates the loading and error state of the operations issued by one
// screen. Pending is true while any operation is outstanding. Errors accumulate until
// a new batch starts after everything resolved.
type Tracker struct {
	mu      sync.Mutex
	pending int
	err     error
}

// Track runs op and records its outcome.
func (t *Tracker) Track(ctx context.Context, op Operation) error {
	t.begin()
	err := op(ctx)
	t.end(err)
	return err
}

// Pending reports whether any tracked operation is still running.
func (t *Tracker) Pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending > 0
}

// Err returns the errors of the current batch combined.
func (t *Tracker) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

func (t *Tracker) begin() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending == 0 {
		t.err = nil
	}
	t.pending++
}

func (t *Tracker) end(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending--
	t.err = multierr.Append(t.err, err)
}

// Join runs ops concurrently, waits for all of them and returns every error combined.
// A failing operation does not cancel the others.
func Join(ctx context.Context, ops ...Operation) error {
	var (
		g    errgroup.Group
		mu   sync.Mutex
		errs error
	)
	for _, op := range ops {
		op := op
		g.Go(func() error {
			err := op(ctx)
			if err != nil {
				mu.Lock()
				errs = multierr.Append(errs, err)
				mu.Unlock()
			}
			return err
		})
	}
	_ = g.Wait()
	return errs
}
