package metadata

import (
	"sort"
	"strings"
)

// Metadata is the flat string-to-string header map carried next to a wire body.
// Header names are case-sensitive.
type Metadata map[string]string

func (m Metadata) cloneWithExtra(extra int) Metadata {
	size := len(m) + extra
	if size <= 0 {
		return Metadata{}
	}

	cloned := make(Metadata, size)
	for k, v := range m {
		cloned[k] = v
	}
	return cloned
}

// Clone returns a shallow copy of the metadata map.
func (m Metadata) Clone() Metadata {
	return m.cloneWithExtra(0)
}

// With returns a copy containing the provided key/value pair.
func (m Metadata) With(key, value string) Metadata {
	cloned := m.cloneWithExtra(1)
	cloned[key] = value
	return cloned
}

// WithAll returns a copy containing the supplied entries.
func (m Metadata) WithAll(entries Metadata) Metadata {
	cloned := m.cloneWithExtra(len(entries))
	for k, v := range entries {
		cloned[k] = v
	}
	return cloned
}

// Without returns a copy without the given keys.
func (m Metadata) Without(keys ...string) Metadata {
	cloned := m.Clone()
	for _, k := range keys {
		delete(cloned, k)
	}
	return cloned
}

// Lookup returns the value for key and whether it was present.
func (m Metadata) Lookup(key string) (string, bool) {
	v, ok := m[key]
	return v, ok
}

// Keys returns the header names in lexical order.
func (m Metadata) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// WithPrefix returns the entries whose name starts with prefix, keyed by the
// remainder of the name. A name equal to prefix is kept under the empty key.
func (m Metadata) WithPrefix(prefix string) Metadata {
	out := Metadata{}
	for k, v := range m {
		if suffix, ok := strings.CutPrefix(k, prefix); ok {
			out[suffix] = v
		}
	}
	return out
}

// New constructs a Metadata map from alternating key/value pairs.
func New(pairs ...string) Metadata {
	md := make(Metadata, len(pairs)/2)
	for i := 0; i < len(pairs)-1; i += 2 {
		md[pairs[i]] = pairs[i+1]
	}
	return md
}
