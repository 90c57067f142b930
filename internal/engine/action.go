package engine

import (
	"fmt"
	"reflect"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"

	jsoncodec "github.com/drblury/actionflow/internal/engine/jsoncodec"
	metadatapkg "github.com/drblury/actionflow/internal/engine/metadata"
)

// Action is the unit of traffic flowing through the dispatch path: a typed,
// immutable message. Logic units never mutate an action in place; every
// modification produces a new value.
type Action struct {
	Type    string               `json:"type"`
	Payload any                  `json:"payload,omitempty"`
	Meta    metadatapkg.Metadata `json:"meta,omitempty"`
}

// NewAction constructs an action with the given type and payload.
func NewAction(actionType string, payload any) Action {
	return Action{Type: actionType, Payload: payload}
}

// WithMeta returns a copy of the action carrying an additional metadata entry.
func (a Action) WithMeta(key, value string) Action {
	a.Meta = a.Meta.With(key, value)
	return a
}

// WithPayload returns a copy of the action carrying the given payload.
func (a Action) WithPayload(payload any) Action {
	a.Payload = payload
	return a
}

func (a Action) String() string {
	return fmt.Sprintf("Action(%s)", a.Type)
}

// PayloadAs decodes the action payload into T. Payloads that already hold a T
// (in-process dispatch) are returned as-is; payloads that arrived over a
// broker as decoded JSON are round-tripped through the codec.
func PayloadAs[T any](a Action) (T, error) {
	if typed, ok := a.Payload.(T); ok {
		return typed, nil
	}

	var out T
	raw, err := jsoncodec.Marshal(a.Payload)
	if err != nil {
		return out, fmt.Errorf("encode payload of %s: %w", a.Type, err)
	}
	if err := jsoncodec.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode payload of %s: %w", a.Type, err)
	}
	return out, nil
}

// ProtoPayload decodes the action payload into a protobuf message of type T
// using the protojson mapping. The payload may be a proto message, a JSON
// byte slice, or any JSON-encodable value.
func ProtoPayload[T proto.Message](a Action) (T, error) {
	if typed, ok := a.Payload.(T); ok {
		return typed, nil
	}

	msg, err := NewProtoMessage[T]()
	if err != nil {
		return msg, err
	}

	raw, ok := a.Payload.([]byte)
	if !ok {
		raw, err = jsoncodec.Marshal(a.Payload)
		if err != nil {
			return msg, fmt.Errorf("encode payload of %s: %w", a.Type, err)
		}
	}
	if err := protojson.Unmarshal(raw, msg); err != nil {
		return msg, fmt.Errorf("decode proto payload of %s: %w", a.Type, err)
	}
	return msg, nil
}

// NewProtoMessage instantiates a proto message for the pointer type T.
func NewProtoMessage[T proto.Message]() (T, error) {
	var zero T

	msgType := reflect.TypeOf(zero)
	if msgType == nil || msgType.Kind() != reflect.Ptr {
		return zero, fmt.Errorf("actionflow: proto message type %T must be a pointer", zero)
	}

	value := reflect.New(msgType.Elem()).Interface()
	msg, ok := value.(T)
	if !ok {
		return zero, fmt.Errorf("actionflow: cannot instantiate proto message %T", zero)
	}
	return msg, nil
}

// MustProtoMessage is NewProtoMessage, panicking on failure.
func MustProtoMessage[T proto.Message]() T {
	msg, err := NewProtoMessage[T]()
	if err != nil {
		panic(err)
	}
	return msg
}
