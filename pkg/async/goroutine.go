package async

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/groundwork/pkg/observability"
)

// SafeGo runs fn in a goroutine with panic recovery. fn must honour ctx.
func SafeGo(ctx context.Context, logger *observability.Logger, taskName string, fn func(context.Context)) {
	go func() {
		defer recoverPanic(logger, taskName)
		fn(ctx)
	}()
}

// Detach runs a best-effort side effect in the background. The task keeps the
// request's values but not its cancellation, gets its own timeout, and its error is
// logged and dropped.
func Detach(ctx context.Context, logger *observability.Logger, timeout time.Duration, taskName string, fn func(context.Context) error) {
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		defer recoverPanic(logger, taskName)

		if err := fn(ctx); err != nil {
			logger.WithError(err).WithField("task", taskName).Warn("Background task failed")
		}
	}()
}

func recoverPanic(logger *observability.Logger, taskName string) {
	if r := recover(); r != nil {
		logger.WithFields(map[string]interface{}{
			"task":  taskName,
			"stack": string(debug.Stack()),
		}).Errorf("panic: %v", r)
	}
}

// Batch applies fn to every item with at most workers running at once. Each call
// gets its own timeout. Errors do not stop the batch; all are returned.
func Batch[T any](ctx context.Context, items []T, workers int, timeout time.Duration,
	fn func(context.Context, T) error) []error {

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	for _, item := range items {
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					record(fmt.Errorf("panic: %v", r))
				}
			}()

			taskCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			if err := fn(taskCtx, item); err != nil {
				record(err)
			}
			// never return the error so siblings are not cancelled
			return nil
		})
	}
	_ = g.Wait()

	return errs
}
