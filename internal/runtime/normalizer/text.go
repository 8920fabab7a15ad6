package normalizer

import (
	"encoding"
	"encoding/json"
	"reflect"

	"github.com/drblury/portable/internal/runtime/jsoncodec"
)

var (
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	jsonMarshalerType   = reflect.TypeFor[json.Marshaler]()
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
)

func implementsBoth(t, marshaler, unmarshaler reflect.Type) bool {
	if t.Kind() == reflect.Pointer || t.Kind() == reflect.Interface {
		return false
	}
	ptr := reflect.PointerTo(t)
	return (t.Implements(marshaler) || ptr.Implements(marshaler)) && ptr.Implements(unmarshaler)
}

func addressable(v reflect.Value) reflect.Value {
	if v.CanAddr() {
		return v.Addr()
	}
	p := reflect.New(v.Type())
	p.Elem().Set(v)
	return p
}

// TextNormalizer handles value objects that render themselves as text, such
// as an email address or an identifier type.
type TextNormalizer struct{}

func (TextNormalizer) Supports(t reflect.Type) bool {
	return implementsBoth(t, textMarshalerType, textUnmarshalerType)
}

func (TextNormalizer) Normalize(v reflect.Value, _ Delegate) (any, error) {
	text, err := addressable(v).Interface().(encoding.TextMarshaler).MarshalText()
	if err != nil {
		return nil, err
	}
	return string(text), nil
}

func (TextNormalizer) Denormalize(data any, t reflect.Type, _ Delegate) (reflect.Value, error) {
	if data == nil {
		return reflect.Zero(t), nil
	}
	s, ok := data.(string)
	if !ok {
		return reflect.Value{}, mismatch(data, t)
	}
	p := reflect.New(t)
	if err := p.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(s)); err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}

// JSONNormalizer defers to types implementing json.Marshaler and json.Unmarshaler.
type JSONNormalizer struct{}

func (JSONNormalizer) Supports(t reflect.Type) bool {
	return implementsBoth(t, jsonMarshalerType, jsonUnmarshalerType)
}

func (JSONNormalizer) Normalize(v reflect.Value, _ Delegate) (any, error) {
	raw, err := addressable(v).Interface().(json.Marshaler).MarshalJSON()
	if err != nil {
		return nil, err
	}
	var tree any
	if err := jsoncodec.UnmarshalNumber(raw, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func (JSONNormalizer) Denormalize(data any, t reflect.Type, _ Delegate) (reflect.Value, error) {
	raw, err := jsoncodec.MarshalWire(data)
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t)
	if err := p.Interface().(json.Unmarshaler).UnmarshalJSON(raw); err != nil {
		return reflect.Value{}, err
	}
	return p.Elem(), nil
}
