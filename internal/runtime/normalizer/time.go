package normalizer

import (
	"fmt"
	"reflect"
	"time"
)

// RFC3339Offset is RFC 3339 with a numeric offset, so UTC renders as +00:00.
// Fractional seconds are written only when non-zero, without trailing zeros.
const RFC3339Offset = "2006-01-02T15:04:05.999999999-07:00"

var (
	timeType = reflect.TypeFor[time.Time]()

	fallbackLayouts = []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02T15:04:05",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
)

// TimeNormalizer formats time.Time values. Layout defaults to RFC3339Offset;
// parsing also accepts a few common layouts.
type TimeNormalizer struct {
	Layout string
}

func (n TimeNormalizer) layout() string {
	if n.Layout == "" {
		return RFC3339Offset
	}
	return n.Layout
}

func (TimeNormalizer) Supports(t reflect.Type) bool {
	return t == timeType
}

func (n TimeNormalizer) Normalize(v reflect.Value, _ Delegate) (any, error) {
	return v.Interface().(time.Time).Format(n.layout()), nil
}

func (n TimeNormalizer) Denormalize(data any, t reflect.Type, _ Delegate) (reflect.Value, error) {
	if data == nil {
		return reflect.Zero(t), nil
	}
	s, ok := data.(string)
	if !ok {
		return reflect.Value{}, mismatch(data, t)
	}
	parsed, err := n.parse(s)
	if err != nil {
		return reflect.Value{}, err
	}
	return reflect.ValueOf(parsed), nil
}

func (n TimeNormalizer) parse(s string) (time.Time, error) {
	layouts := append([]string{n.layout()}, fallbackLayouts...)
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err != nil {
			continue
		}
		if _, offset := t.Zone(); offset == 0 {
			t = t.UTC()
		}
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as time", s)
}
