package resilience

import "context"

// DegradedResult carries a fetched or cached value. IsStale marks a cached
// fallback; Err then holds the fetch failure that forced it.
type DegradedResult[T any] struct {
	Value   T
	IsStale bool
	Err     error
}

// WithGracefulDegradation fetches fresh data and caches it on success. On
// failure it falls back to the cached value, marked stale with the error
// attached; without a cached value the fetch error is returned as-is.
func WithGracefulDegradation[T any](
	ctx context.Context,
	fetch func(context.Context) (T, error),
	getCached func(context.Context) (T, bool),
	setCached func(context.Context, T),
) (DegradedResult[T], error) {
	value, err := fetch(ctx)
	if err == nil {
		if setCached != nil {
			setCached(ctx, value)
		}
		return DegradedResult[T]{Value: value}, nil
	}

	if getCached != nil {
		if cached, ok := getCached(ctx); ok {
			return DegradedResult[T]{Value: cached, IsStale: true, Err: err}, nil
		}
	}

	var zero DegradedResult[T]
	return zero, err
}
