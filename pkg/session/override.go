package session

// Override is an explicit inherited-or-overridden value for session-local
// shadowing of a job definition attribute.
//
// The zero Override is inherited: reads fall back to the underlying
// definition's value. Setting any concrete value shadows the definition for
// this session only; the definition itself is never written. This replaces
// the magic-sentinel pattern with an explicit tag.
type Override[T any] struct {
	value T
	set   bool
}

// Overridden reports whether a session-local value shadows the definition.
func (o Override[T]) Overridden() bool {
	return o.set
}

// Get returns the overridden value, or inherit() when still inherited.
func (o Override[T]) Get(inherit func() T) T {
	if o.set {
		return o.value
	}
	return inherit()
}

// Set shadows the inherited value for this session.
func (o *Override[T]) Set(value T) {
	o.value = value
	o.set = true
}

// Clear restores fallback to the inherited value.
func (o *Override[T]) Clear() {
	var zero T
	o.value = zero
	o.set = false
}
