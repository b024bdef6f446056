package store

// ListResult is the outcome of a read that is allowed to fail silently. The
// error is kept so call sites decide explicitly how to degrade.
type ListResult[T any] struct {
	Items []T
	Err   error
}

// OrEmpty collapses a failed read to an empty, non-nil slice.
func (r ListResult[T]) OrEmpty() []T {
	return r.Or([]T{})
}

// Or returns fallback when the read failed.
func (r ListResult[T]) Or(fallback []T) []T {
	if r.Err != nil {
		return fallback
	}
	if r.Items == nil {
		return []T{}
	}
	return r.Items
}

// Failed reports whether the read failed.
func (r ListResult[T]) Failed() bool {
	return r.Err != nil
}
