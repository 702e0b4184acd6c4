package concurrent

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/zeusync/zeusnet/pkg/sequence"
)

// Concurrent runs the action function for each element of the iterator in a separate goroutine.
// It waits for all goroutines to finish and returns the first error encountered.
func Concurrent[T any](i *sequence.Iterator[T], action func(T) error) error {
	errGroup := errgroup.Group{}
	next, stop := i.Pull()
	defer stop()

	for {
		value, valid := next()
		if !valid {
			break
		}

		errGroup.Go(func() error {
			return action(value)
		})
	}

	return errGroup.Wait()
}

// Throttle is Concurrent with at most limit goroutines in flight. The
// context passed to action is cancelled after the first failure.
func Throttle[T any](ctx context.Context, i *sequence.Iterator[T], limit int, action func(context.Context, T) error) error {
	errGroup, groupCtx := errgroup.WithContext(ctx)
	if limit > 0 {
		errGroup.SetLimit(limit)
	}

	for value := range i.Seq() {
		if groupCtx.Err() != nil {
			break
		}
		errGroup.Go(func() error {
			return action(groupCtx, value)
		})
	}

	return errGroup.Wait()
}

// Mute runs action for every element concurrently and discards errors.
func Mute[T any](i *sequence.Iterator[T], action func(T)) {
	_ = Concurrent(i, func(v T) error {
		action(v)
		return nil
	})
}
