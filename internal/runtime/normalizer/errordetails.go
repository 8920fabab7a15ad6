package normalizer

import (
	"reflect"

	"github.com/drblury/portable/internal/runtime/envelope"
)

var flattenedErrorType = reflect.TypeFor[envelope.FlattenedError]()

// ErrorDetailsNormalizer writes flattened errors without their trace, which
// keeps error detail stamps small enough for message headers.
type ErrorDetailsNormalizer struct{}

func (ErrorDetailsNormalizer) Supports(t reflect.Type) bool {
	return t == flattenedErrorType
}

func (ErrorDetailsNormalizer) Normalize(v reflect.Value, d Delegate) (any, error) {
	flat := v.Interface().(envelope.FlattenedError)
	out := Object{
		{Key: "message", Value: flat.Message},
		{Key: "code", Value: int64(flat.Code)},
		{Key: "class", Value: flat.Class},
		{Key: "file", Value: flat.File},
		{Key: "line", Value: int64(flat.Line)},
		{Key: "trace", Value: []any{}},
	}
	if flat.Previous != nil {
		prev, err := d.Normalize(reflect.ValueOf(flat.Previous))
		if err != nil {
			return nil, err
		}
		out = append(out, Field{Key: "previous", Value: prev})
	}
	return out, nil
}

func (ErrorDetailsNormalizer) Denormalize(data any, t reflect.Type, d Delegate) (reflect.Value, error) {
	if data == nil {
		return reflect.Zero(t), nil
	}
	m, ok := asMap(data)
	if !ok {
		return reflect.Value{}, mismatch(data, t)
	}

	var flat envelope.FlattenedError
	fields := []struct {
		key    string
		target any
	}{
		{"message", &flat.Message},
		{"code", &flat.Code},
		{"class", &flat.Class},
		{"file", &flat.File},
		{"line", &flat.Line},
		{"previous", &flat.Previous},
	}
	for _, f := range fields {
		raw, present := m[f.key]
		if !present {
			continue
		}
		target := reflect.ValueOf(f.target).Elem()
		val, err := d.Denormalize(raw, target.Type())
		if err != nil {
			return reflect.Value{}, err
		}
		target.Set(val)
	}
	return reflect.ValueOf(flat), nil
}
