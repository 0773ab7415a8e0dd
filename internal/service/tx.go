package service

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/college-admission/internal/model"
	"github.com/iliyamo/college-admission/internal/repository"
)

// DefaultMaxRetries bounds how often a transaction is re-run after a
// deadlock or lock wait timeout.
const DefaultMaxRetries = 3

// withRetry runs fn until it succeeds, fails with a non-transient
// error, or the retry budget is spent. The last case is reported as
// *RetryableError.
func withRetry(ctx context.Context, op string, maxRetries int, fn func() error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	attempts := maxRetries + 1
	var err error
	for i := 1; i <= attempts; i++ {
		err = fn()
		if err == nil || !repository.IsTransient(err) {
			return err
		}
		if i == attempts {
			break
		}
		t := time.NewTimer(time.Duration(i*i) * 15 * time.Millisecond)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return &RetryableError{Op: op, Attempts: attempts, Err: err}
}

// mutation applies one transition to a locked application. It updates
// a in place so the caller can return the new state without a re-read.
type mutation func(ctx context.Context, tx repository.Tx, a *model.Application) error

// runTransition locks the application, applies fn and commits, retrying
// transient failures. A fn returning errNoChange rolls back and counts
// as success.
func runTransition(ctx context.Context, store repository.Store, maxRetries int, op string, id uint64, fn mutation) (*model.Application, error) {
	var out *model.Application
	err := withRetry(ctx, op, maxRetries, func() error {
		out = nil
		return store.InTx(ctx, func(tx repository.Tx) error {
			a, err := tx.LockApplication(ctx, id)
			if err != nil {
				return err
			}
			out = a
			return fn(ctx, tx, a)
		})
	})
	if errors.Is(err, errNoChange) {
		return out, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}
