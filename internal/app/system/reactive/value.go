package reactive

import (
	"errors"
	"fmt"
)

// Value is the memoized state of a node. A value carrying an error is stale:
// the node could not be computed from its current inputs.
type Value struct {
	v   any
	err error
}

// Ok wraps a successfully computed value.
func Ok(v any) Value { return Value{v: v} }

// Stale wraps the failure that prevented a node from being computed.
func Stale(err error) Value { return Value{err: err} }

// Get returns the raw value or the stale error.
func (v Value) Get() (any, error) { return v.v, v.err }

// IsStale reports whether the value carries a failure.
func (v Value) IsStale() bool { return v.err != nil }

// Err returns the failure, or nil for a fresh value.
func (v Value) Err() error { return v.err }

// Inputs holds the values of a node's declared dependencies for one evaluation.
type Inputs struct {
	values map[string]Value
}

// Value returns the dependency value for name. Names outside the node's
// declared dependency set come back stale with ErrUndeclared.
func (in Inputs) Value(name string) Value {
	v, ok := in.values[name]
	if !ok {
		return Stale(fmt.Errorf("%w: %s", ErrUndeclared, name))
	}
	return v
}

// Read returns the dependency value for name as T. A stale dependency returns
// its failure unchanged so callers can propagate it with errors.Is/As intact.
func Read[T any](in Inputs, name string) (T, error) {
	var zero T
	raw, err := in.Value(name).Get()
	if err != nil {
		return zero, err
	}
	if raw == nil {
		return zero, nil
	}
	t, ok := raw.(T)
	if !ok {
		return zero, &TypeError{Node: name, Got: raw, Want: fmt.Sprintf("%T", zero)}
	}
	return t, nil
}

// ReadOr is Read with a fallback used when the dependency is stale or mistyped.
func ReadOr[T any](in Inputs, name string, fallback T) T {
	v, err := Read[T](in, name)
	if err != nil {
		return fallback
	}
	return v
}

// TypeError reports a dependency whose value is not of the requested type.
type TypeError struct {
	Node string
	Got  any
	Want string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("reactive: node %q holds %T, want %s", e.Node, e.Got, e.Want)
}

// IsConfigError reports whether err is a graph construction error.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrCycle) ||
		errors.Is(err, ErrDuplicate) ||
		errors.Is(err, ErrSinkDependency)
}

// ValueOf returns the value held by v as T, or the zero T when v is stale or
// holds another type.
func ValueOf[T any](v Value) T {
	t, _ := v.v.(T)
	return t
}
