package normalizer

import (
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	"github.com/drblury/portable/internal/runtime/jsoncodec"
)

var protoMessageType = reflect.TypeFor[proto.Message]()

// ProtoNormalizer embeds protobuf messages using their canonical JSON mapping.
type ProtoNormalizer struct {
	MarshalOptions   protojson.MarshalOptions
	UnmarshalOptions protojson.UnmarshalOptions
}

func (ProtoNormalizer) Supports(t reflect.Type) bool {
	return t.Kind() == reflect.Pointer && t.Implements(protoMessageType)
}

func (n ProtoNormalizer) Normalize(v reflect.Value, _ Delegate) (any, error) {
	if v.IsNil() {
		return nil, nil
	}
	raw, err := n.MarshalOptions.Marshal(v.Interface().(proto.Message))
	if err != nil {
		return nil, err
	}
	var tree any
	if err := jsoncodec.UnmarshalNumber(raw, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

func (n ProtoNormalizer) Denormalize(data any, t reflect.Type, _ Delegate) (reflect.Value, error) {
	if data == nil {
		return reflect.Zero(t), nil
	}
	raw, err := jsoncodec.MarshalWire(data)
	if err != nil {
		return reflect.Value{}, err
	}
	msg := reflect.New(t.Elem())
	opts := n.UnmarshalOptions
	opts.DiscardUnknown = true
	if err := opts.Unmarshal(raw, msg.Interface().(proto.Message)); err != nil {
		return reflect.Value{}, err
	}
	return msg, nil
}
