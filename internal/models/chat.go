package models

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the three roles the completion endpoint understands.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Message represents a single message in the prompt context.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type TurnKind string

const (
	TurnQuestion TurnKind = "question"
	TurnRoutine  TurnKind = "routine"
)

type TurnState string

const (
	TurnIdle             TurnState = "idle"
	TurnAwaitingResponse TurnState = "awaiting_response"
	TurnResolved         TurnState = "resolved"
	TurnFailed           TurnState = "failed"
)

// Turn is one request/response cycle with the remote model.
type Turn struct {
	ID          uuid.UUID  `json:"id"`
	Kind        TurnKind   `json:"kind"`
	State       TurnState  `json:"state"`
	UserMessage string     `json:"user_message"`
	Reply       string     `json:"reply,omitempty"`
	Notice      string     `json:"notice,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Err         error      `json:"-"`
}

// ChatRequest is the payload sent to the chat endpoint.
type ChatRequest struct {
	Message string `json:"message"`
}

// ChatResponse is the reply from the chat endpoints.
type ChatResponse struct {
	Turn  *Turn  `json:"turn"`
	Reply string `json:"reply"`
}

type HistoryResponse struct {
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
}
