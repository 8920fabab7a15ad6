package normalizer

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
)

// ObjectNormalizer handles structs. Field names follow json struct tags,
// fields are emitted in declaration order, embedded structs are flattened and
// unknown keys are ignored on the way back.
type ObjectNormalizer struct{}

type fieldInfo struct {
	name      string
	index     []int
	omitEmpty bool
}

var fieldCache sync.Map // reflect.Type -> []fieldInfo

func (ObjectNormalizer) Supports(t reflect.Type) bool {
	return t.Kind() == reflect.Struct
}

func (ObjectNormalizer) Normalize(v reflect.Value, d Delegate) (any, error) {
	fields := cachedFields(v.Type())
	out := make(Object, 0, len(fields))
	for _, f := range fields {
		fv, err := v.FieldByIndexErr(f.index)
		if err != nil {
			// nil embedded pointer
			continue
		}
		if f.omitEmpty && isEmptyValue(fv) {
			continue
		}
		item, err := d.Normalize(fv)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		out = append(out, Field{Key: f.name, Value: item})
	}
	return out, nil
}

func (ObjectNormalizer) Denormalize(data any, t reflect.Type, d Delegate) (reflect.Value, error) {
	out := reflect.New(t).Elem()
	if data == nil {
		return out, nil
	}
	m, ok := asMap(data)
	if !ok {
		return reflect.Value{}, mismatch(data, t)
	}
	for _, f := range cachedFields(t) {
		raw, present := m[f.name]
		if !present {
			continue
		}
		target := fieldByIndexAlloc(out, f.index)
		val, err := d.Denormalize(raw, target.Type())
		if err != nil {
			return reflect.Value{}, fmt.Errorf("%s: %w", f.name, err)
		}
		target.Set(val)
	}
	return out, nil
}

func cachedFields(t reflect.Type) []fieldInfo {
	if cached, ok := fieldCache.Load(t); ok {
		return cached.([]fieldInfo)
	}
	fields := collectFields(t)
	fieldCache.Store(t, fields)
	return fields
}

// collectFields walks t breadth first so that shallower fields shadow
// promoted fields with the same name.
func collectFields(t reflect.Type) []fieldInfo {
	type level struct {
		typ   reflect.Type
		index []int
	}
	var (
		out     []fieldInfo
		taken   = map[string]bool{}
		current = []level{{typ: t}}
		visited = map[reflect.Type]bool{t: true}
	)
	for len(current) > 0 {
		var next []level
		depthNames := map[string]bool{}
		for _, lv := range current {
			for i := 0; i < lv.typ.NumField(); i++ {
				sf := lv.typ.Field(i)
				index := append(append([]int(nil), lv.index...), i)
				tag := sf.Tag.Get("json")
				if tag == "-" {
					continue
				}
				name, opts, _ := strings.Cut(tag, ",")

				if sf.Anonymous && name == "" {
					ft := sf.Type
					if ft.Kind() == reflect.Pointer {
						if !sf.IsExported() {
							continue
						}
						ft = ft.Elem()
					}
					if ft.Kind() == reflect.Struct {
						if !visited[ft] {
							visited[ft] = true
							next = append(next, level{typ: ft, index: index})
						}
						continue
					}
				}
				if !sf.IsExported() {
					continue
				}
				if name == "" {
					name = sf.Name
				}
				if taken[name] || depthNames[name] {
					continue
				}
				depthNames[name] = true
				out = append(out, fieldInfo{
					name:      name,
					index:     index,
					omitEmpty: hasOption(opts, "omitempty") || hasOption(opts, "omitzero"),
				})
			}
		}
		for name := range depthNames {
			taken[name] = true
		}
		current = next
	}
	sort.Slice(out, func(i, j int) bool { return indexLess(out[i].index, out[j].index) })
	return out
}

func indexLess(a, b []int) bool {
	for k := 0; k < len(a) && k < len(b); k++ {
		if a[k] != b[k] {
			return a[k] < b[k]
		}
	}
	return len(a) < len(b)
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}

func fieldByIndexAlloc(v reflect.Value, index []int) reflect.Value {
	for i, x := range index {
		if i > 0 && v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v.Set(reflect.New(v.Type().Elem()))
			}
			v = v.Elem()
		}
		v = v.Field(x)
	}
	return v
}

func isEmptyValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Array, reflect.Map, reflect.Slice, reflect.String:
		return v.Len() == 0
	}
	return v.IsZero()
}
