package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"advisor-backend/internal/models"
)

type chatController interface {
	Ask(ctx context.Context, text string) (*models.Turn, error)
	GenerateRoutine(ctx context.Context) (*models.Turn, error)
	ResetHistory() error
}

type historyStore interface {
	History() []models.Message
}

type transcriptReader interface {
	Entries() []models.TranscriptEntry
	Clear()
}

type ChatHandler struct {
	chat       chatController
	history    historyStore
	transcript transcriptReader
}

func NewChatHandler(chat chatController, history historyStore, transcript transcriptReader) *ChatHandler {
	return &ChatHandler{chat: chat, history: history, transcript: transcript}
}

func (h *ChatHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("VALIDATION_ERROR", "Invalid request body", r))
		return
	}

	turn, err := h.chat.Ask(r.Context(), req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeTurn(w, turn)
}

func (h *ChatHandler) Routine(w http.ResponseWriter, r *http.Request) {
	turn, err := h.chat.GenerateRoutine(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeTurn(w, turn)
}

func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	messages := h.history.History()
	writeJSON(w, http.StatusOK, models.HistoryResponse{Messages: messages, Count: len(messages)})
}

// ResetHistory starts a fresh conversation: the prompt context returns to
// the system message and the visible transcript is emptied. The selection
// is kept. A reset while a turn is in flight is refused with 409.
func (h *ChatHandler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.chat.ResetHistory(); err != nil {
		handleServiceError(w, r, err)
		return
	}
	h.transcript.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) Transcript(w http.ResponseWriter, r *http.Request) {
	entries := h.transcript.Entries()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

// A failed turn still has a visible outcome (the apology), so it is
// returned as a body with 502 rather than an error envelope.
func writeTurn(w http.ResponseWriter, turn *models.Turn) {
	if turn.State == models.TurnFailed {
		writeJSON(w, http.StatusBadGateway, models.ChatResponse{Turn: turn})
		return
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{Turn: turn, Reply: turn.Reply})
}
