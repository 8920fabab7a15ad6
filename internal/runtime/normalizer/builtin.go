package normalizer

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// ScalarNormalizer handles booleans, numbers and strings, including named
// types built on them.
type ScalarNormalizer struct{}

func (ScalarNormalizer) Supports(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func (ScalarNormalizer) Normalize(v reflect.Value, _ Delegate) (any, error) {
	switch v.Kind() {
	case reflect.Bool:
		return v.Bool(), nil
	case reflect.String:
		return v.String(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil
	default:
		f := v.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil, fmt.Errorf("unsupported float value %v", f)
		}
		return f, nil
	}
}

func (ScalarNormalizer) Denormalize(data any, t reflect.Type, _ Delegate) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	if data == nil {
		return out, nil
	}
	switch t.Kind() {
	case reflect.Bool:
		b, ok := data.(bool)
		if !ok {
			return reflect.Value{}, mismatch(data, t)
		}
		out.SetBool(b)
	case reflect.String:
		s, ok := data.(string)
		if !ok {
			return reflect.Value{}, mismatch(data, t)
		}
		out.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := toInt64(data)
		if err != nil || out.OverflowInt(i) {
			return reflect.Value{}, mismatch(data, t)
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := toUint64(data)
		if err != nil || out.OverflowUint(u) {
			return reflect.Value{}, mismatch(data, t)
		}
		out.SetUint(u)
	default:
		f, err := toFloat64(data)
		if err != nil || out.OverflowFloat(f) {
			return reflect.Value{}, mismatch(data, t)
		}
		out.SetFloat(f)
	}
	return out, nil
}

func toInt64(data any) (int64, error) {
	switch n := data.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		return int64(f), nil
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return uintToInt(uint64(n))
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		return uintToInt(n)
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	}
	return 0, fmt.Errorf("not a number: %T", data)
}

func toUint64(data any) (uint64, error) {
	if n, ok := data.(json.Number); ok {
		if u, err := strconv.ParseUint(n.String(), 10, 64); err == nil {
			return u, nil
		}
	}
	if u, ok := data.(uint64); ok {
		return u, nil
	}
	i, err := toInt64(data)
	if err != nil {
		return 0, err
	}
	if i < 0 {
		return 0, fmt.Errorf("negative value %d", i)
	}
	return uint64(i), nil
}

func toFloat64(data any) (float64, error) {
	switch n := data.(type) {
	case json.Number:
		return n.Float64()
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	}
	i, err := toInt64(data)
	if err != nil {
		return 0, err
	}
	return float64(i), nil
}

func uintToInt(u uint64) (int64, error) {
	if u > math.MaxInt64 {
		return 0, fmt.Errorf("value %d overflows int64", u)
	}
	return int64(u), nil
}

func floatToInt(f float64) (int64, error) {
	if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, fmt.Errorf("not an integer: %v", f)
	}
	return int64(f), nil
}

// PointerNormalizer dereferences pointers; nil pointers become null.
type PointerNormalizer struct{}

func (PointerNormalizer) Supports(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer
}

func (PointerNormalizer) Normalize(v reflect.Value, d Delegate) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	return d.Normalize(v.Elem())
}

func (PointerNormalizer) Denormalize(data any, t reflect.Type, d Delegate) (reflect.Value, error) {
	if data == nil {
		return reflect.Zero(t), nil
	}
	elem, err := d.Denormalize(data, t.Elem())
	if err != nil {
		return reflect.Value{}, err
	}
	p := reflect.New(t.Elem())
	p.Elem().Set(elem)
	return p, nil
}

// InterfaceNormalizer normalizes the dynamic value held by an interface. Only
// the empty interface can be denormalized, into plain Go values with integers
// as int64 where they fit.
type InterfaceNormalizer struct{}

func (InterfaceNormalizer) Supports(t reflect.Type) bool {
	return t.Kind() == reflect.Interface
}

func (InterfaceNormalizer) Normalize(v reflect.Value, d Delegate) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	return d.Normalize(v.Elem())
}

func (InterfaceNormalizer) Denormalize(data any, t reflect.Type, _ Delegate) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	if data == nil {
		return out, nil
	}
	if t.NumMethod() != 0 {
		return reflect.Value{}, fmt.Errorf("cannot denormalize into non-empty interface %s", t)
	}
	out.Set(reflect.ValueOf(Plain(data)))
	return out, nil
}

// Plain converts a decoded wire tree into plain Go values: json.Number turns
// into int (int64 when it does not fit) or float64 and Objects into maps.
func Plain(data any) any {
	switch v := data.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			if i >= math.MinInt && i <= math.MaxInt {
				return int(i)
			}
			return i
		}
		f, _ := v.Float64()
		return f
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			out[k] = Plain(item)
		}
		return out
	case Object:
		out := make(map[string]any, len(v))
		for _, f := range v {
			out[f.Key] = Plain(f.Value)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Plain(item)
		}
		return out
	}
	return data
}

// SliceNormalizer handles slices and arrays. Byte slices are base64 strings.
type SliceNormalizer struct{}

func (SliceNormalizer) Supports(t reflect.Type) bool {
	return t.Kind() == reflect.Slice || t.Kind() == reflect.Array
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func (SliceNormalizer) Normalize(v reflect.Value, d Delegate) (any, error) {
	if v.Kind() == reflect.Slice && v.IsNil() {
		return nil, nil
	}
	if isBytes(v.Type()) {
		return base64.StdEncoding.EncodeToString(v.Bytes()), nil
	}
	out := make([]any, v.Len())
	for i := range out {
		item, err := d.Normalize(v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = item
	}
	return out, nil
}

func (SliceNormalizer) Denormalize(data any, t reflect.Type, d Delegate) (reflect.Value, error) {
	if data == nil {
		return reflect.Zero(t), nil
	}
	if isBytes(t) {
		s, ok := data.(string)
		if !ok {
			return reflect.Value{}, mismatch(data, t)
		}
		raw, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return reflect.Value{}, err
		}
		return reflect.ValueOf(raw).Convert(t), nil
	}
	items, ok := data.([]any)
	if !ok {
		return reflect.Value{}, mismatch(data, t)
	}

	var out reflect.Value
	if t.Kind() == reflect.Array {
		if len(items) > t.Len() {
			return reflect.Value{}, fmt.Errorf("%d items do not fit into %s", len(items), t)
		}
		out = reflect.New(t).Elem()
	} else {
		out = reflect.MakeSlice(t, len(items), len(items))
	}
	for i, item := range items {
		elem, err := d.Denormalize(item, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("[%d]: %w", i, err)
		}
		out.Index(i).Set(elem)
	}
	return out, nil
}

// MapNormalizer handles maps with string or integer keys. Keys are emitted
// in sorted order.
type MapNormalizer struct{}

func (MapNormalizer) Supports(t reflect.Type) bool {
	if t.Kind() != reflect.Map {
		return false
	}
	switch t.Key().Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

func (MapNormalizer) Normalize(v reflect.Value, d Delegate) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	type kv struct {
		key string
		val reflect.Value
	}
	pairs := make([]kv, 0, v.Len())
	iter := v.MapRange()
	for iter.Next() {
		pairs = append(pairs, kv{key: mapKeyString(iter.Key()), val: iter.Value()})
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	out := make(Object, 0, len(pairs))
	for _, p := range pairs {
		item, err := d.Normalize(p.val)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p.key, err)
		}
		out = append(out, Field{Key: p.key, Value: item})
	}
	return out, nil
}

func mapKeyString(k reflect.Value) string {
	switch k.Kind() {
	case reflect.String:
		return k.String()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(k.Int(), 10)
	default:
		return strconv.FormatUint(k.Uint(), 10)
	}
}

func (MapNormalizer) Denormalize(data any, t reflect.Type, d Delegate) (reflect.Value, error) {
	if data == nil {
		return reflect.Zero(t), nil
	}
	m, ok := asMap(data)
	if !ok {
		return reflect.Value{}, mismatch(data, t)
	}
	out := reflect.MakeMapWithSize(t, len(m))
	for k, raw := range m {
		key, err := parseMapKey(k, t.Key())
		if err != nil {
			return reflect.Value{}, err
		}
		val, err := d.Denormalize(raw, t.Elem())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%s: %w", k, err)
		}
		out.SetMapIndex(key, val)
	}
	return out, nil
}

func parseMapKey(k string, t reflect.Type) (reflect.Value, error) {
	key := reflect.New(t).Elem()
	switch t.Kind() {
	case reflect.String:
		key.SetString(k)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(k, 10, 64)
		if err != nil || key.OverflowInt(i) {
			return reflect.Value{}, fmt.Errorf("invalid map key %q for %s", k, t)
		}
		key.SetInt(i)
	default:
		u, err := strconv.ParseUint(k, 10, 64)
		if err != nil || key.OverflowUint(u) {
			return reflect.Value{}, fmt.Errorf("invalid map key %q for %s", k, t)
		}
		key.SetUint(u)
	}
	return key, nil
}
