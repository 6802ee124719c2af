package models

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Client → server event types.
const (
	EventJoinRoom    = "join-room"
	EventSendMessage = "send-message"
	EventLeaveRoom   = "leave-room"
)

// Server → client event types.
const (
	EventPreviousMessages = "previous-messages"
	EventReceiveMessage   = "receive-message"
	EventError            = "error"
)

// InboundEvent is the envelope read from a client.
type InboundEvent struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// RoomPayload carries the target room of join-room and leave-room.
type RoomPayload struct {
	RoomID string `json:"room_id" validate:"required,uuid"`
}

// SendPayload is the send-message payload. Author fields are never read from it.
type SendPayload struct {
	RoomID string `json:"room_id" validate:"required,uuid"`
	Body   string `json:"body"`
}

// RoomEvent is emitted over websocket connections. Payload is one of
// HistoryPayload, MessagePayload or ErrorPayload.
type RoomEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

// HistoryPayload is the previous-messages payload, oldest first.
type HistoryPayload struct {
	RoomID   uuid.UUID         `json:"room_id"`
	Messages []ResolvedMessage `json:"messages"`
}

// MessagePayload is the receive-message payload.
type MessagePayload struct {
	RoomID  uuid.UUID       `json:"room_id"`
	Message ResolvedMessage `json:"message"`
}

// ErrorPayload reports a failed client operation.
type ErrorPayload struct {
	RoomID  *uuid.UUID `json:"room_id,omitempty"`
	Code    string     `json:"code"`
	Message string     `json:"message"`
}

// NewHistoryEvent builds the previous-messages event for a join.
func NewHistoryEvent(roomID uuid.UUID, msgs []ResolvedMessage) RoomEvent {
	if msgs == nil {
		msgs = []ResolvedMessage{}
	}
	return RoomEvent{Type: EventPreviousMessages, Payload: HistoryPayload{RoomID: roomID, Messages: msgs}}
}

// NewMessageEvent builds the receive-message broadcast.
func NewMessageEvent(msg ResolvedMessage) RoomEvent {
	return RoomEvent{Type: EventReceiveMessage, Payload: MessagePayload{RoomID: msg.RoomID, Message: msg}}
}

// NewErrorEvent builds an error event. roomID may be nil when the room could not be parsed.
func NewErrorEvent(roomID *uuid.UUID, code, text string) RoomEvent {
	return RoomEvent{Type: EventError, Payload: ErrorPayload{RoomID: roomID, Code: code, Message: text}}
}

// MessageID returns the id of the carried message for receive-message events.
func (e RoomEvent) MessageID() (string, bool) {
	p, ok := e.Payload.(MessagePayload)
	if !ok {
		return "", false
	}
	return p.Message.ID, true
}
