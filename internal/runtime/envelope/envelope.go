// Package envelope holds the in-memory unit of dispatch: one message plus an
// ordered list of stamps. Envelopes are values; every transform returns a new
// envelope and leaves the receiver untouched.
package envelope

import "reflect"

// Stamp is any metadata annotation attached to an envelope. Its kind is the
// stamp's dynamic type with pointer indirections removed.
type Stamp any

// NonTransmissible marks stamp kinds that are local-only and must never be
// written to the wire.
type NonTransmissible interface {
	LocalOnly()
}

var nonTransmissibleType = reflect.TypeFor[NonTransmissible]()

// Envelope wraps a message and its stamps.
type Envelope struct {
	message any
	stamps  []Stamp
}

// New wraps message in an envelope carrying the given stamps. Nil stamps are
// ignored. If message already is an Envelope (or *Envelope) the stamps are
// appended to it instead.
func New(message any, stamps ...Stamp) Envelope {
	switch env := message.(type) {
	case Envelope:
		return env.With(stamps...)
	case *Envelope:
		if env != nil {
			return env.With(stamps...)
		}
		message = nil
	}
	return Envelope{message: message, stamps: appendStamps(nil, stamps)}
}

// Message returns the wrapped business payload.
func (e Envelope) Message() any {
	return e.message
}

// With returns a copy of e with stamps appended after the existing ones.
func (e Envelope) With(stamps ...Stamp) Envelope {
	if len(stamps) == 0 {
		return e
	}
	out := make([]Stamp, 0, len(e.stamps)+len(stamps))
	out = append(out, e.stamps...)
	return Envelope{message: e.message, stamps: appendStamps(out, stamps)}
}

// WithoutAll returns a copy of e without any stamp of the given kind.
func (e Envelope) WithoutAll(kind reflect.Type) Envelope {
	kind = Canonical(kind)
	return e.WithoutStampsOf(func(s Stamp) bool { return KindOf(s) == kind })
}

// WithoutStampsOf returns a copy of e without the stamps matching drop.
func (e Envelope) WithoutStampsOf(drop func(Stamp) bool) Envelope {
	out := make([]Stamp, 0, len(e.stamps))
	for _, s := range e.stamps {
		if !drop(s) {
			out = append(out, s)
		}
	}
	return Envelope{message: e.message, stamps: out}
}

// WithoutTransient drops every stamp whose kind is local-only.
func (e Envelope) WithoutTransient() Envelope {
	return e.WithoutStampsOf(func(s Stamp) bool { return !IsTransmissible(s) })
}

// Last returns the most recently added stamp of kind.
func (e Envelope) Last(kind reflect.Type) (Stamp, bool) {
	kind = Canonical(kind)
	for i := len(e.stamps) - 1; i >= 0; i-- {
		if KindOf(e.stamps[i]) == kind {
			return e.stamps[i], true
		}
	}
	return nil, false
}

// All returns the stamps of kind in the order they were added.
func (e Envelope) All(kind reflect.Type) []Stamp {
	kind = Canonical(kind)
	var out []Stamp
	for _, s := range e.stamps {
		if KindOf(s) == kind {
			out = append(out, s)
		}
	}
	return out
}

// Has reports whether at least one stamp of kind is attached.
func (e Envelope) Has(kind reflect.Type) bool {
	_, ok := e.Last(kind)
	return ok
}

// Kinds lists the distinct stamp kinds in order of first appearance.
func (e Envelope) Kinds() []reflect.Type {
	seen := make(map[reflect.Type]struct{}, len(e.stamps))
	var kinds []reflect.Type
	for _, s := range e.stamps {
		k := KindOf(s)
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		kinds = append(kinds, k)
	}
	return kinds
}

// Stamps returns a copy of all stamps in insertion order.
func (e Envelope) Stamps() []Stamp {
	out := make([]Stamp, len(e.stamps))
	copy(out, e.stamps)
	return out
}

// Len is the number of attached stamps.
func (e Envelope) Len() int {
	return len(e.stamps)
}

// Canonical strips pointer indirections from t.
func Canonical(t reflect.Type) reflect.Type {
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// KindOf returns the canonical kind of a stamp value.
func KindOf(s Stamp) reflect.Type {
	if s == nil {
		return nil
	}
	return Canonical(reflect.TypeOf(s))
}

// Kind returns the canonical kind for the stamp type T.
func Kind[T any]() reflect.Type {
	return Canonical(reflect.TypeFor[T]())
}

// IsTransmissibleKind reports whether stamps of kind may be put on the wire.
func IsTransmissibleKind(kind reflect.Type) bool {
	kind = Canonical(kind)
	if kind == nil {
		return false
	}
	return !kind.Implements(nonTransmissibleType) && !reflect.PointerTo(kind).Implements(nonTransmissibleType)
}

// IsTransmissible reports whether s may be put on the wire.
func IsTransmissible(s Stamp) bool {
	return IsTransmissibleKind(KindOf(s))
}

// LastOf returns the most recent stamp of type T. T may be the stamp's value
// type or a pointer to it, regardless of how the stamp was attached.
func LastOf[T any](e Envelope) (T, bool) {
	s, ok := e.Last(Kind[T]())
	if !ok {
		var zero T
		return zero, false
	}
	return As[T](s)
}

// AllOf returns every stamp of type T in insertion order.
func AllOf[T any](e Envelope) []T {
	stamps := e.All(Kind[T]())
	out := make([]T, 0, len(stamps))
	for _, s := range stamps {
		if v, ok := As[T](s); ok {
			out = append(out, v)
		}
	}
	return out
}

// As converts v to T, taking or dropping one pointer level when the
// underlying types match.
func As[T any](v any) (T, bool) {
	if t, ok := v.(T); ok {
		return t, true
	}
	var zero T
	if v == nil {
		return zero, false
	}
	target := reflect.TypeFor[T]()
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && rv.Type() != target {
		if rv.IsNil() {
			return zero, false
		}
		rv = rv.Elem()
	}
	if rv.Type() == target {
		return rv.Interface().(T), true
	}
	if target.Kind() == reflect.Pointer && target.Elem() == rv.Type() {
		p := reflect.New(rv.Type())
		p.Elem().Set(rv)
		return p.Interface().(T), true
	}
	return zero, false
}

func appendStamps(dst []Stamp, stamps []Stamp) []Stamp {
	for _, s := range stamps {
		if s == nil {
			continue
		}
		if v := reflect.ValueOf(s); v.Kind() == reflect.Pointer && v.IsNil() {
			continue
		}
		dst = append(dst, s)
	}
	return dst
}
