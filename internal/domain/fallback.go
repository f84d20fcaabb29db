package domain

// Fallback is the result of a read that never fails outright: when the
// underlying read errors, Value holds a substitute and Cause holds the error
// that forced it.
type Fallback[T any] struct {
	Value T
	Cause error
}

// Ok wraps a successfully read value.
func Ok[T any](v T) Fallback[T] {
	return Fallback[T]{Value: v}
}

// UseFallback records that v is a substitute chosen because of cause.
func UseFallback[T any](v T, cause error) Fallback[T] {
	return Fallback[T]{Value: v, Cause: cause}
}

// UsedFallback reports whether Value is a substitute.
func (f Fallback[T]) UsedFallback() bool {
	return f.Cause != nil
}
