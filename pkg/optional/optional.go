// Package optional provides a tri-state value wrapper for partial updates.
// A field can be unspecified (omitted by the caller), explicitly null, or
// carry a value. The distinction survives JSON round-trips: a structurally
// present null decodes as specified-null, while an absent field stays
// unspecified.
package optional

import (
	"encoding/json"
	"errors"
)

// ErrUnspecified is returned when reading a value that was never specified.
var ErrUnspecified = errors.New("optional: value not specified")

// Optional is a tri-state container: unspecified, null, or value.
// The zero Optional is unspecified.
type Optional[T any] struct {
	value     T
	specified bool
	null      bool
}

// Of returns a specified Optional carrying v.
func Of[T any](v T) Optional[T] {
	return Optional[T]{value: v, specified: true}
}

// Null returns a specified Optional carrying an explicit null.
func Null[T any]() Optional[T] {
	return Optional[T]{specified: true, null: true}
}

// Unset returns an unspecified Optional.
func Unset[T any]() Optional[T] {
	return Optional[T]{}
}

// FromPtr maps a nil pointer to specified-null and a non-nil pointer to its
// value.
func FromPtr[T any](p *T) Optional[T] {
	if p == nil {
		return Null[T]()
	}
	return Of(*p)
}

// Specified reports whether the caller provided the field at all.
func (o Optional[T]) Specified() bool {
	return o.specified
}

// IsNull reports whether the caller explicitly cleared the field.
func (o Optional[T]) IsNull() bool {
	return o.specified && o.null
}

// Value returns the wrapped value. Reading an unspecified Optional is an
// error; reading a specified-null yields the zero value.
func (o Optional[T]) Value() (T, error) {
	if !o.specified {
		var zero T
		return zero, ErrUnspecified
	}
	return o.value, nil
}

// GetOrDefault returns the wrapped value when specified (zero value for an
// explicit null), else fallback.
func (o Optional[T]) GetOrDefault(fallback T) T {
	if !o.specified || o.null {
		if o.null {
			var zero T
			return zero
		}
		return fallback
	}
	return o.value
}

// ValueOr returns the wrapped value when it carries one, else fallback.
// Unlike GetOrDefault, an explicit null also falls back.
func (o Optional[T]) ValueOr(fallback T) T {
	if !o.specified || o.null {
		return fallback
	}
	return o.value
}

// Ptr returns nil for unspecified or null, else a pointer to a copy of the
// value.
func (o Optional[T]) Ptr() *T {
	if !o.specified || o.null {
		return nil
	}
	v := o.value
	return &v
}

// IsZero reports whether the Optional is unspecified. It exists so struct
// fields tagged `json:",omitzero"` drop unspecified values from payloads.
func (o Optional[T]) IsZero() bool {
	return !o.specified
}

// MarshalJSON encodes null for specified-null and the value otherwise.
// Unspecified Optionals should be excluded from payloads via omitzero; when
// forced to encode they serialize as null.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.specified || o.null {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON marks the field specified; a JSON null becomes
// specified-null. The decoder only invokes this for structurally present
// fields, so absence keeps the zero (unspecified) state.
func (o *Optional[T]) UnmarshalJSON(data []byte) error {
	o.specified = true
	if string(data) == "null" {
		o.null = true
		var zero T
		o.value = zero
		return nil
	}
	o.null = false
	return json.Unmarshal(data, &o.value)
}
