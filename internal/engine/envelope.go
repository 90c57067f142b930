package engine

import (
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"

	errspkg "github.com/drblury/actionflow/internal/engine/errors"
	idspkg "github.com/drblury/actionflow/internal/engine/ids"
	jsoncodec "github.com/drblury/actionflow/internal/engine/jsoncodec"
	metadatapkg "github.com/drblury/actionflow/internal/engine/metadata"
)

// Metadata keys reserved by the bridge envelope. Action metadata rides in
// Watermill message metadata alongside these; user keys must not collide.
const (
	// MetadataKeyActionType carries Action.Type on the wire.
	MetadataKeyActionType = "actionflow_type"

	// MetadataKeyCorrelationID tracks related actions across services.
	MetadataKeyCorrelationID = "correlation_id"

	// MetadataKeyTraceID stores the distributed tracing ID.
	MetadataKeyTraceID = "trace_id"

	// MetadataKeySpanID stores the distributed tracing span ID.
	MetadataKeySpanID = "span_id"
)

// EncodeAction wraps an action into a Watermill message: the payload is
// JSON-encoded and type plus metadata travel as message metadata. The
// message UUID is a fresh ULID.
func EncodeAction(action Action) (*message.Message, error) {
	if action.Type == "" {
		return nil, errspkg.ErrActionTypeRequired
	}

	payload, err := jsoncodec.Marshal(action.Payload)
	if err != nil {
		return nil, fmt.Errorf("encode payload of %s: %w", action.Type, err)
	}

	msg := message.NewMessage(idspkg.CreateULID(), payload)
	msg.Metadata = metadatapkg.ToWatermill(action.Meta)
	msg.Metadata[MetadataKeyActionType] = action.Type
	return msg, nil
}

// DecodeAction unwraps a Watermill message produced by EncodeAction (or any
// producer following the same envelope). The payload is decoded as generic
// JSON; use PayloadAs or ProtoPayload for typed access.
func DecodeAction(msg *message.Message) (Action, error) {
	actionType := msg.Metadata.Get(MetadataKeyActionType)
	if actionType == "" {
		return Action{}, fmt.Errorf("%w (message %s)", errspkg.ErrActionTypeRequired, msg.UUID)
	}

	var payload any
	if len(msg.Payload) > 0 {
		if err := jsoncodec.Unmarshal(msg.Payload, &payload); err != nil {
			return Action{}, fmt.Errorf("decode payload of %s (message %s): %w", actionType, msg.UUID, err)
		}
	}

	meta := metadatapkg.FromWatermill(msg.Metadata)
	delete(meta, MetadataKeyActionType)

	return Action{Type: actionType, Payload: payload, Meta: meta}, nil
}
