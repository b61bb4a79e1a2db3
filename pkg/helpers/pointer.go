package helpers

// Ptr returns a pointer to v, for optional config fields in literals.
func Ptr[T any](v T) *T {
	return &v
}

// ValueOr dereferences val, or returns fallback when val is nil.
func ValueOr[T any](val *T, fallback T) T {
	if val == nil {
		return fallback
	}
	return *val
}
