package ws

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"room-chat/internal/chat"
)

var validate = validator.New()

func newConnID() string {
	return uuid.NewString()
}

// decodePayload unmarshals and validates an inbound payload.
func decodePayload(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: missing payload", chat.ErrInvalidInput)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrInvalidInput, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %v", chat.ErrInvalidInput, err)
	}
	return nil
}

// roomRef returns the room id for error events, or nil when raw is not a room id.
func roomRef(raw string) *uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}
