// Package normalizer converts typed Go values to and from a neutral tree of
// wire values (nil, bool, string, numbers, []any, Object, map[string]any) that
// the JSON codec can encode.
//
// A Set holds an ordered list of normalizers. For every type the first
// normalizer whose Supports returns true handles it; reordering the list
// changes behaviour.
package normalizer

import (
	"bytes"
	"fmt"
	"reflect"
	"sync"

	errspkg "github.com/drblury/portable/internal/runtime/errors"
	"github.com/drblury/portable/internal/runtime/jsoncodec"
)

// Delegate lets a normalizer hand nested values back to its owning Set.
type Delegate interface {
	Normalize(v reflect.Value) (any, error)
	Denormalize(data any, t reflect.Type) (reflect.Value, error)
}

// Normalizer is a codec for the value types it supports.
type Normalizer interface {
	Supports(t reflect.Type) bool
	Normalize(v reflect.Value, d Delegate) (any, error)
	Denormalize(data any, t reflect.Type, d Delegate) (reflect.Value, error)
}

// Set is an ordered collection of normalizers. It is safe for concurrent use.
type Set struct {
	normalizers []Normalizer
	cache       sync.Map // reflect.Type -> Normalizer
}

// NewSet returns custom normalizers followed by the built-in ones.
func NewSet(custom ...Normalizer) *Set {
	all := make([]Normalizer, 0, len(custom)+12)
	all = append(all, custom...)
	all = append(all, Defaults()...)
	return NewCustomSet(all...)
}

// NewCustomSet uses exactly the given normalizers, in order.
func NewCustomSet(normalizers ...Normalizer) *Set {
	list := make([]Normalizer, 0, len(normalizers))
	for _, n := range normalizers {
		if n != nil {
			list = append(list, n)
		}
	}
	return &Set{normalizers: list}
}

// Defaults returns the built-in normalizers in their consultation order.
func Defaults() []Normalizer {
	return []Normalizer{
		TimeNormalizer{},
		ErrorDetailsNormalizer{},
		ProtoNormalizer{},
		JSONNormalizer{},
		TextNormalizer{},
		ScalarNormalizer{},
		PointerNormalizer{},
		InterfaceNormalizer{},
		SliceNormalizer{},
		MapNormalizer{},
		ObjectNormalizer{},
	}
}

// For returns the normalizer responsible for t.
func (s *Set) For(t reflect.Type) (Normalizer, error) {
	if cached, ok := s.cache.Load(t); ok {
		return cached.(Normalizer), nil
	}
	for _, n := range s.normalizers {
		if n.Supports(t) {
			s.cache.Store(t, n)
			return n, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", errspkg.ErrUnsupportedValue, t)
}

// Normalize converts v into a wire value. An invalid value normalizes to nil.
func (s *Set) Normalize(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}
	n, err := s.For(v.Type())
	if err != nil {
		return nil, err
	}
	return n.Normalize(v, s)
}

// NormalizeValue is Normalize for a plain Go value.
func (s *Set) NormalizeValue(v any) (any, error) {
	return s.Normalize(reflect.ValueOf(v))
}

// Denormalize builds a value of type t from wire data.
func (s *Set) Denormalize(data any, t reflect.Type) (reflect.Value, error) {
	if t == nil {
		return reflect.Value{}, fmt.Errorf("%w: nil target type", errspkg.ErrUnsupportedValue)
	}
	n, err := s.For(t)
	if err != nil {
		return reflect.Value{}, err
	}
	return n.Denormalize(data, t, s)
}

// Marshal normalizes v and encodes the result as JSON.
func (s *Set) Marshal(v any) ([]byte, error) {
	tree, err := s.NormalizeValue(v)
	if err != nil {
		return nil, err
	}
	return jsoncodec.MarshalWire(tree)
}

// Unmarshal decodes JSON data and denormalizes it into a value of type t.
func (s *Set) Unmarshal(data []byte, t reflect.Type) (reflect.Value, error) {
	var tree any
	if err := jsoncodec.UnmarshalNumber(data, &tree); err != nil {
		return reflect.Value{}, err
	}
	return s.Denormalize(tree, t)
}

// Field is one key/value pair of an Object.
type Field struct {
	Key   string
	Value any
}

// Object is a JSON object whose keys are emitted in insertion order.
type Object []Field

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, f := range o {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Map converts o to a plain map.
func (o Object) Map() map[string]any {
	m := make(map[string]any, len(o))
	for _, f := range o {
		m[f.Key] = f.Value
	}
	return m
}

func (o Object) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := jsoncodec.MarshalWire(f.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := jsoncodec.MarshalWire(f.Value)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.Key, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// asMap accepts the object shapes a denormalizer may receive.
func asMap(data any) (map[string]any, bool) {
	switch m := data.(type) {
	case map[string]any:
		return m, true
	case Object:
		return m.Map(), true
	}
	return nil, false
}

func mismatch(data any, t reflect.Type) error {
	return fmt.Errorf("cannot denormalize %T into %s", data, t)
}
