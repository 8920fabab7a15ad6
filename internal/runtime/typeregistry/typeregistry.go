// Package typeregistry maps implementation types to short wire type strings
// and back. Messages and stamps live in separate namespaces.
//
// A Registry is assembled once through a Builder and is read-only afterwards,
// so it can be shared by any number of goroutines.
package typeregistry

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/drblury/portable/internal/runtime/envelope"
	errspkg "github.com/drblury/portable/internal/runtime/errors"
)

// Entry pairs an implementation type with its wire type.
type Entry struct {
	Type     reflect.Type
	WireType string
}

// Mapping is an ordered list of entries to merge into a namespace.
type Mapping []Entry

// For builds an Entry for T. Registering a pointer type makes decode produce
// pointers; registering a value type makes it produce values.
func For[T any](wireType string) Entry {
	return Entry{Type: reflect.TypeFor[T](), WireType: wireType}
}

// DefaultStamps lists the built-in stamp kinds.
func DefaultStamps() Mapping {
	return Mapping{
		For[envelope.DelayStamp]("delay"),
		For[envelope.BusNameStamp]("busName"),
		For[envelope.SentStamp]("sent"),
		For[envelope.TransportMessageIDStamp]("transportMessageId"),
		For[envelope.ErrorDetailsStamp]("errorDetails"),
		For[envelope.RedeliveryStamp]("redelivery"),
		For[envelope.SentToFailureTransportStamp]("sentToFailureTransport"),
		For[envelope.HandledStamp]("handled"),
		For[envelope.ReceivedStamp]("received"),
	}
}

type namespace struct {
	name   errspkg.Namespace
	byType map[reflect.Type]Entry
	byWire map[string]Entry
	// byHeader indexes stamp entries by upper-cased first letter, the form
	// they take in header names.
	byHeader map[string]Entry
}

func newNamespace(name errspkg.Namespace) *namespace {
	return &namespace{
		name:     name,
		byType:   map[reflect.Type]Entry{},
		byWire:   map[string]Entry{},
		byHeader: map[string]Entry{},
	}
}

func (n *namespace) clone() *namespace {
	c := newNamespace(n.name)
	for k, v := range n.byType {
		c.byType[k] = v
	}
	for k, v := range n.byWire {
		c.byWire[k] = v
	}
	for k, v := range n.byHeader {
		c.byHeader[k] = v
	}
	return c
}

func (n *namespace) add(e Entry) error {
	if e.Type == nil || e.WireType == "" {
		return fmt.Errorf("%w: %s entry %v => %q", errspkg.ErrInvalidEntry, n.name, e.Type, e.WireType)
	}
	canonical := envelope.Canonical(e.Type)
	if existing, ok := n.byType[canonical]; ok {
		return &errspkg.DuplicateTypeError{Namespace: n.name, Type: e.Type.String(), WireType: e.WireType, Existing: existing.WireType}
	}
	if existing, ok := n.byWire[e.WireType]; ok {
		return &errspkg.DuplicateTypeError{Namespace: n.name, Type: e.Type.String(), WireType: e.WireType, Existing: existing.Type.String()}
	}
	header := UpperFirst(e.WireType)
	if existing, ok := n.byHeader[header]; ok && n.name == errspkg.NamespaceStamp {
		return &errspkg.DuplicateTypeError{Namespace: n.name, Type: e.Type.String(), WireType: e.WireType, Existing: existing.Type.String()}
	}
	n.byType[canonical] = e
	n.byWire[e.WireType] = e
	n.byHeader[header] = e
	return nil
}

func (n *namespace) wireType(t reflect.Type) (string, error) {
	canonical := envelope.Canonical(t)
	if e, ok := n.byType[canonical]; ok {
		return e.WireType, nil
	}
	name := "<nil>"
	if t != nil {
		name = t.String()
	}
	return "", &errspkg.UnknownTypeError{Namespace: n.name, Name: name}
}

func (n *namespace) implType(wire string) (reflect.Type, error) {
	if e, ok := n.byWire[wire]; ok {
		return e.Type, nil
	}
	return nil, &errspkg.UnknownTypeError{Namespace: n.name, Name: wire}
}

func (n *namespace) entries() []Entry {
	out := make([]Entry, 0, len(n.byWire))
	for _, e := range n.byWire {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WireType < out[j].WireType })
	return out
}

// Builder accumulates mappings before a Registry is frozen.
type Builder struct {
	messages *namespace
	stamps   *namespace
	built    bool
}

// NewBuilder starts a build from a base stamp mapping, usually DefaultStamps.
func NewBuilder(base Mapping) (*Builder, error) {
	b := &Builder{
		messages: newNamespace(errspkg.NamespaceMessage),
		stamps:   newNamespace(errspkg.NamespaceStamp),
	}
	if err := b.MergeStamps(base); err != nil {
		return nil, err
	}
	return b, nil
}

// MergeStamps adds stamp entries. Either all entries are added or none.
func (b *Builder) MergeStamps(m Mapping) error {
	return b.merge(&b.stamps, m)
}

// MergeMessages adds message entries. Either all entries are added or none.
func (b *Builder) MergeMessages(m Mapping) error {
	return b.merge(&b.messages, m)
}

func (b *Builder) merge(ns **namespace, m Mapping) error {
	if b.built {
		return errspkg.ErrRegistryBuilt
	}
	staged := (*ns).clone()
	for _, e := range m {
		if err := staged.add(e); err != nil {
			return err
		}
	}
	*ns = staged
	return nil
}

// Build freezes the builder into a Registry. The builder cannot be merged
// into afterwards.
func (b *Builder) Build() *Registry {
	b.built = true
	return &Registry{messages: b.messages, stamps: b.stamps}
}

// New builds a registry from the default stamps plus the given mappings.
func New(stamps, messages Mapping) (*Registry, error) {
	b, err := NewBuilder(DefaultStamps())
	if err != nil {
		return nil, err
	}
	if err := b.MergeStamps(stamps); err != nil {
		return nil, err
	}
	if err := b.MergeMessages(messages); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

// MustNew is New that panics on error. Intended for package-level setup.
func MustNew(stamps, messages Mapping) *Registry {
	r, err := New(stamps, messages)
	if err != nil {
		panic(err)
	}
	return r
}

// Registry is an immutable bidirectional type map.
type Registry struct {
	messages *namespace
	stamps   *namespace
}

// MessageWireType resolves the wire type registered for a message type.
func (r *Registry) MessageWireType(t reflect.Type) (string, error) {
	return r.messages.wireType(t)
}

// MessageWireTypeOf resolves the wire type for a message value.
func (r *Registry) MessageWireTypeOf(v any) (string, error) {
	return r.messages.wireType(reflect.TypeOf(v))
}

// MessageType resolves the implementation type registered for wire.
func (r *Registry) MessageType(wire string) (reflect.Type, error) {
	return r.messages.implType(wire)
}

// StampWireType resolves the wire type registered for a stamp kind.
func (r *Registry) StampWireType(t reflect.Type) (string, error) {
	return r.stamps.wireType(t)
}

// StampWireTypeOf resolves the wire type for a stamp value.
func (r *Registry) StampWireTypeOf(s envelope.Stamp) (string, error) {
	return r.stamps.wireType(reflect.TypeOf(s))
}

// StampType resolves the implementation type registered for wire.
func (r *Registry) StampType(wire string) (reflect.Type, error) {
	return r.stamps.implType(wire)
}

// StampTypeForHeader resolves the token found after the stamp header prefix.
// The token is tried with its first letter lower-cased, then verbatim.
func (r *Registry) StampTypeForHeader(token string) (reflect.Type, string, error) {
	lowered := LowerFirst(token)
	if e, ok := r.stamps.byWire[lowered]; ok {
		return e.Type, e.WireType, nil
	}
	if e, ok := r.stamps.byWire[token]; ok {
		return e.Type, e.WireType, nil
	}
	return nil, "", &errspkg.UnknownTypeError{Namespace: errspkg.NamespaceStamp, Name: lowered}
}

// Messages returns the message entries sorted by wire type.
func (r *Registry) Messages() []Entry {
	return r.messages.entries()
}

// Stamps returns the stamp entries sorted by wire type.
func (r *Registry) Stamps() []Entry {
	return r.stamps.entries()
}

// UpperFirst upper-cases the first rune of s.
func UpperFirst(s string) string {
	return mapFirst(s, unicode.ToUpper)
}

// LowerFirst lower-cases the first rune of s.
func LowerFirst(s string) string {
	return mapFirst(s, unicode.ToLower)
}

func mapFirst(s string, f func(rune) rune) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	var b strings.Builder
	b.Grow(len(s))
	b.WriteRune(f(r))
	b.WriteString(s[size:])
	return b.String()
}
