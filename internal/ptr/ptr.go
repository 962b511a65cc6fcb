package ptr

// Ref returns a pointer to the given value, handy for literals of optional
// fields.
func Ref[T any](v T) *T {
	return &v
}
