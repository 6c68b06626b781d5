package models

import (
	"time"

	"github.com/google/uuid"
)

// Event types pushed to connected chat surfaces.
const (
	EventMessage            = "message"
	EventPlaceholder        = "placeholder"
	EventPlaceholderRemoved = "placeholder_removed"
	EventNotice             = "notice"
	EventSelectionChanged   = "selection_changed"
)

type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// TranscriptEntry is one visible line of the chat transcript. Notices and
// placeholders are shown to the user but never enter the prompt context.
type TranscriptEntry struct {
	Role        Role       `json:"role"`
	Text        string     `json:"text"`
	Placeholder bool       `json:"placeholder,omitempty"`
	Notice      bool       `json:"notice,omitempty"`
	TurnID      *uuid.UUID `json:"turn_id,omitempty"`
	At          time.Time  `json:"at"`
}

type PlaceholderPayload struct {
	TurnID uuid.UUID `json:"turn_id"`
	Text   string    `json:"text,omitempty"`
}

type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
