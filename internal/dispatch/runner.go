package dispatch

import (
	"context"
	"sync"
	"time"
)

// Runner handles notifications in the background, each with its own
// deadline.
type Runner struct {
	ctx     context.Context
	d       *Dispatcher
	timeout time.Duration
	wg      sync.WaitGroup
}

// NewRunner derives every notification context from ctx. Cancelling ctx
// aborts in-flight work.
func NewRunner(ctx context.Context, d *Dispatcher, timeout time.Duration) *Runner {
	return &Runner{
		ctx:     ctx,
		d:       d,
		timeout: timeout,
	}
}

func (r *Runner) Go(n *Notification) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
		defer cancel()
		r.d.Dispatch(ctx, n)
	}()
}

// Wait blocks until every notification handed to Go is done or ctx
// expires.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
