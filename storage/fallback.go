package storage

import (
	"context"
	"errors"
	"log/slog"
)

// Observer is told about fallbacks and breaker transitions
type Observer interface {
	ObserveFallback(collection, op string)
	ObserveBreaker(collection string, open bool)
}

type nopObserver struct{}

func (nopObserver) ObserveFallback(string, string) {}
func (nopObserver) ObserveBreaker(string, bool)    {}

// Fallback sends each call to the primary collection and, when the primary fails
// with a storage error, repeats that one call against the secondary. Not-found,
// duplicate and validation errors are answers, not failures, and are returned as is.
//
// A nil primary means the secondary serves everything.
type Fallback[T any] struct {
	name      string
	primary   Collection[T]
	secondary Collection[T]
	breaker   *Breaker
	logger    *slog.Logger
	observer  Observer
}

// NewFallback builds a dispatcher. breaker may be nil for plain per-call fallback.
func NewFallback[T any](name string, primary, secondary Collection[T], breaker *Breaker, logger *slog.Logger, observer Observer) *Fallback[T] {
	if breaker == nil {
		breaker = NewBreaker(0, 0)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	f := &Fallback[T]{
		name:      name,
		primary:   primary,
		secondary: secondary,
		breaker:   breaker,
		logger:    logger.With("collection", name),
		observer:  observer,
	}
	breaker.OnChange(func(open bool) {
		observer.ObserveBreaker(name, open)
		if open {
			f.logger.Warn("primary store marked down, serving from file store")
		} else {
			f.logger.Info("primary store recovered")
		}
	})
	return f
}

// PrimaryState is "disabled" without a primary, "down" while the breaker is open
// and "up" otherwise.
func (f *Fallback[T]) PrimaryState() string {
	if f.primary == nil {
		return "disabled"
	}
	if f.breaker.State() == BreakerOpen {
		return "down"
	}
	return "up"
}

func dispatch[T, R any](f *Fallback[T], op string, call func(Collection[T]) (R, error)) (R, error) {
	if f.primary != nil && f.breaker.Allow() {
		res, err := call(f.primary)
		// Neither outcome says anything about the primary's health
		if errors.Is(err, ErrForeignID) {
			f.breaker.Release()
			return call(f.secondary)
		}
		if errors.Is(err, context.Canceled) {
			f.breaker.Release()
			return res, err
		}
		if !IsStorageFailure(err) {
			f.breaker.Success()
			return res, err
		}
		f.breaker.Failure()
		f.observer.ObserveFallback(f.name, op)
		f.logger.Warn("primary store failed, falling back to file store", "op", op, "error", err)
	}
	return call(f.secondary)
}

func (f *Fallback[T]) Find(ctx context.Context, q Query) ([]T, error) {
	return dispatch(f, "find", func(c Collection[T]) ([]T, error) {
		return c.Find(ctx, q)
	})
}

func (f *Fallback[T]) FindOne(ctx context.Context, q Query) (*T, error) {
	return dispatch(f, "findOne", func(c Collection[T]) (*T, error) {
		return c.FindOne(ctx, q)
	})
}

func (f *Fallback[T]) FindByID(ctx context.Context, id string) (*T, error) {
	return dispatch(f, "findById", func(c Collection[T]) (*T, error) {
		return c.FindByID(ctx, id)
	})
}

func (f *Fallback[T]) Create(ctx context.Context, rec T) (*T, error) {
	return dispatch(f, "create", func(c Collection[T]) (*T, error) {
		return c.Create(ctx, rec)
	})
}

func (f *Fallback[T]) FindByIDAndUpdate(ctx context.Context, id string, patch Patch) (*T, error) {
	return dispatch(f, "findByIdAndUpdate", func(c Collection[T]) (*T, error) {
		return c.FindByIDAndUpdate(ctx, id, patch)
	})
}

func (f *Fallback[T]) FindByIDAndDelete(ctx context.Context, id string) (*T, error) {
	return dispatch(f, "findByIdAndDelete", func(c Collection[T]) (*T, error) {
		return c.FindByIDAndDelete(ctx, id)
	})
}

func (f *Fallback[T]) Count(ctx context.Context) (int, error) {
	return dispatch(f, "count", func(c Collection[T]) (int, error) {
		return c.Count(ctx)
	})
}

func (f *Fallback[T]) Increment(ctx context.Context, id, field string, delta int) (*T, error) {
	return dispatch(f, "increment", func(c Collection[T]) (*T, error) {
		return c.Increment(ctx, id, field, delta)
	})
}
