package resource

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Wait prepares r and blocks until it settles or ctx is done. Cancelling
// ctx cancels the prepare task.
func Wait(ctx context.Context, r Resource) (Status, error) {
	type outcome struct {
		status Status
		err    error
	}
	result := make(chan outcome, 1)
	task := r.Prepare(nil, func(s Status, err error) {
		result <- outcome{status: s, err: err}
	})

	select {
	case <-task.Done():
		select {
		case res := <-result:
			return res.status, res.err
		default:
			return r.Status(), ErrCancelled
		}
	case <-ctx.Done():
		task.Cancel()
		return r.Status(), ctx.Err()
	}
}

// PrepareAll prepares every resource concurrently and waits for all of them.
// Load failures are left on the resources; only ctx cancellation is
// returned.
func PrepareAll(ctx context.Context, rs []Resource) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, r := range rs {
		r := r
		g.Go(func() error {
			if _, err := Wait(gctx, r); err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			return nil
		})
	}
	return g.Wait()
}
