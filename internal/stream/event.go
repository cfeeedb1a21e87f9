// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package stream

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jeranaias/sermonchat/internal/model"
)

// =============================================================================
// EVENT KINDS
// =============================================================================

// Kind is the wire tag of an event ("type" field of the payload).
type Kind string

const (
	KindConversation Kind = "conversation"
	KindToken        Kind = "token"
	KindCitations    Kind = "citations"
	KindMessageID    Kind = "message_id"
	KindDone         Kind = "done"
)

// Decoding errors. They never leave the package: a frame that fails to decode
// is skipped.
var (
	errUnknownKind  = errors.New("unknown event type")
	errMissingField = errors.New("missing required field")
)

// =============================================================================
// EVENT TYPES
// =============================================================================

// Event is one decoded server event. The set of implementations is closed;
// consumers switch on the concrete type and ignore what they do not handle.
type Event interface {
	Kind() Kind
	isEvent()
}

// ConversationEvent assigns the server-side conversation id.
type ConversationEvent struct {
	ConversationID int64
}

// TokenEvent carries the next text delta of the answer.
type TokenEvent struct {
	Content string
}

// CitationsEvent carries the sources used for the answer.
type CitationsEvent struct {
	Citations []model.SourceCitation
}

// MessageIDEvent reports the id under which the answer was persisted.
type MessageIDEvent struct {
	MessageID int64
}

// DoneEvent marks the end of the answer.
type DoneEvent struct{}

func (ConversationEvent) Kind() Kind { return KindConversation }
func (TokenEvent) Kind() Kind        { return KindToken }
func (CitationsEvent) Kind() Kind    { return KindCitations }
func (MessageIDEvent) Kind() Kind    { return KindMessageID }
func (DoneEvent) Kind() Kind         { return KindDone }

func (ConversationEvent) isEvent() {}
func (TokenEvent) isEvent()        {}
func (CitationsEvent) isEvent()    {}
func (MessageIDEvent) isEvent()    {}
func (DoneEvent) isEvent()         {}

// =============================================================================
// WIRE FORMAT
// =============================================================================

// wireEvent is the union of all payload fields.
type wireEvent struct {
	Type           string          `json:"type"`
	ConversationID *int64          `json:"conversation_id,omitempty"`
	Content        *string         `json:"content,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	ID             *int64          `json:"id,omitempty"`
}

// decodeEvent decodes a single frame payload.
func decodeEvent(payload []byte) (Event, error) {
	var w wireEvent
	if err := json.Unmarshal(payload, &w); err != nil {
		return nil, err
	}

	switch Kind(w.Type) {
	case KindConversation:
		if w.ConversationID == nil {
			return nil, fmt.Errorf("%w: conversation_id", errMissingField)
		}
		return ConversationEvent{ConversationID: *w.ConversationID}, nil

	case KindToken:
		if w.Content == nil {
			return nil, fmt.Errorf("%w: content", errMissingField)
		}
		return TokenEvent{Content: *w.Content}, nil

	case KindCitations:
		citations := []model.SourceCitation{}
		if len(w.Data) > 0 && !bytes.Equal(bytes.TrimSpace(w.Data), []byte("null")) {
			if err := json.Unmarshal(w.Data, &citations); err != nil {
				return nil, fmt.Errorf("citations: %w", err)
			}
		}
		return CitationsEvent{Citations: citations}, nil

	case KindMessageID:
		if w.ID == nil {
			return nil, fmt.Errorf("%w: id", errMissingField)
		}
		return MessageIDEvent{MessageID: *w.ID}, nil

	case KindDone:
		return DoneEvent{}, nil

	default:
		return nil, fmt.Errorf("%w: %q", errUnknownKind, w.Type)
	}
}

// Marshal encodes an event into its wire payload (without the "data:" prefix).
func Marshal(ev Event) ([]byte, error) {
	w := wireEvent{Type: string(ev.Kind())}
	switch e := ev.(type) {
	case ConversationEvent:
		w.ConversationID = &e.ConversationID
	case TokenEvent:
		w.Content = &e.Content
	case CitationsEvent:
		citations := e.Citations
		if citations == nil {
			citations = []model.SourceCitation{}
		}
		data, err := json.Marshal(citations)
		if err != nil {
			return nil, err
		}
		w.Data = data
	case MessageIDEvent:
		w.ID = &e.MessageID
	case DoneEvent:
	default:
		return nil, fmt.Errorf("%w: %T", errUnknownKind, ev)
	}
	return json.Marshal(w)
}
