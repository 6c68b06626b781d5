package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"advisor-backend/internal/conversation"
	"advisor-backend/internal/models"
	"advisor-backend/internal/repository"
	"advisor-backend/internal/services"
)

type stubSource struct {
	products []models.Product
	err      error
}

func (s *stubSource) Load(ctx context.Context) ([]models.Product, error) {
	return s.products, s.err
}

var testCatalog = []models.Product{
	{ID: "1", Name: "Revitalift Cleanser", Brand: "L'Oréal Paris", Category: "cleanser"},
	{ID: "2", Name: "Hydrating Serum", Brand: "CeraVe", Category: "skincare", Description: "Hyaluronic acid"},
	{ID: "3", Name: "Moisturizer", Brand: "La Roche-Posay", Category: "skincare"},
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body models.ErrorResponse
	decodeBody(t, rr, &body)
	return body.Error.Code
}

// ─── Catalog ───

func TestCatalogHandler_Products(t *testing.T) {
	store := conversation.NewStore(repository.NewMemorySlot(), nil)
	store.SelectProduct(context.Background(), testCatalog[1])
	h := NewCatalogHandler(&stubSource{products: testCatalog}, store)

	tests := []struct {
		name     string
		query    string
		wantIDs  []models.ProductID
		selected map[models.ProductID]bool
	}{
		{"skincare", "?category=skincare", []models.ProductID{"2", "3"}, map[models.ProductID]bool{"2": true}},
		{"cleanser", "?category=cleanser", []models.ProductID{"1"}, nil},
		{"no category", "", nil, nil},
		{"unknown category", "?category=fragrance", nil, nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/products"+tc.query, nil)
			rr := httptest.NewRecorder()
			h.Products(rr, req)

			if rr.Code != http.StatusOK {
				t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
			}
			var body struct {
				Products []models.ProductView `json:"products"`
				Count    int                  `json:"count"`
			}
			decodeBody(t, rr, &body)
			if body.Count != len(tc.wantIDs) || len(body.Products) != len(tc.wantIDs) {
				t.Fatalf("expected %d products, got %d", len(tc.wantIDs), body.Count)
			}
			for i, p := range body.Products {
				if p.ID != tc.wantIDs[i] {
					t.Errorf("product %d: expected id %s, got %s", i, tc.wantIDs[i], p.ID)
				}
				if p.Selected != tc.selected[p.ID] {
					t.Errorf("product %s: expected selected=%v", p.ID, tc.selected[p.ID])
				}
			}
		})
	}
}

func TestCatalogHandler_Categories(t *testing.T) {
	h := NewCatalogHandler(&stubSource{products: testCatalog}, conversation.NewStore(repository.NewMemorySlot(), nil))
	rr := httptest.NewRecorder()
	h.Categories(rr, httptest.NewRequest(http.MethodGet, "/api/v1/categories", nil))

	var body struct {
		Categories []string `json:"categories"`
	}
	decodeBody(t, rr, &body)
	if len(body.Categories) != 2 || body.Categories[0] != "cleanser" || body.Categories[1] != "skincare" {
		t.Fatalf("unexpected categories: %v", body.Categories)
	}
}

func TestCatalogHandler_SourceFailure(t *testing.T) {
	h := NewCatalogHandler(&stubSource{err: errors.New("404")}, conversation.NewStore(repository.NewMemorySlot(), nil))
	rr := httptest.NewRecorder()
	h.Products(rr, httptest.NewRequest(http.MethodGet, "/api/v1/products?category=skincare", nil))

	if rr.Code != http.StatusBadGateway {
		t.Fatalf("expected status %d, got %d", http.StatusBadGateway, rr.Code)
	}
	if code := errorCode(t, rr); code != "CATALOG_UNAVAILABLE" {
		t.Fatalf("unexpected error code %q", code)
	}
}

// ─── Selection ───

func newSelectionHandler() (*SelectionHandler, *conversation.Store) {
	store := conversation.NewStore(repository.NewMemorySlot(), nil)
	return NewSelectionHandler(&stubSource{products: testCatalog}, store), store
}

func postSelect(h *SelectionHandler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/selection", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.Select(rr, req)
	return rr
}

func TestSelectionHandler_Select(t *testing.T) {
	h, store := newSelectionHandler()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantCount  int
	}{
		{"numeric id", `{"product_id":2}`, http.StatusCreated, 1},
		{"same id as string", `{"product_id":"2"}`, http.StatusOK, 1},
		{"second product", `{"product_id":"3"}`, http.StatusCreated, 2},
		{"unknown id", `{"product_id":99}`, http.StatusNotFound, 2},
		{"missing id", `{}`, http.StatusBadRequest, 2},
		{"bad json", `{`, http.StatusBadRequest, 2},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := postSelect(h, tc.body)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d: %s", tc.wantStatus, rr.Code, rr.Body.String())
			}
			if got := len(store.Selection()); got != tc.wantCount {
				t.Fatalf("expected %d selected, got %d", tc.wantCount, got)
			}
		})
	}

	// Selected entries carry the full catalog projection.
	sel := store.Selection()
	if sel[0].Description != "Hyaluronic acid" || sel[0].Brand != "CeraVe" {
		t.Fatalf("expected catalog fields on the selection, got %+v", sel[0])
	}
}

func TestSelectionHandler_DeselectAndClear(t *testing.T) {
	h, store := newSelectionHandler()
	postSelect(h, `{"product_id":1}`)
	postSelect(h, `{"product_id":2}`)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", "01")
	req := httptest.NewRequest(http.MethodDelete, "/api/v1/selection/01", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	h.Deselect(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rr.Code)
	}
	var body models.SelectionResponse
	decodeBody(t, rr, &body)
	if body.Count != 1 || body.Products[0].ID != "2" {
		t.Fatalf("unexpected selection after deselect: %+v", body)
	}

	rr = httptest.NewRecorder()
	h.Clear(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/selection", nil))
	if rr.Code != http.StatusOK || len(store.Selection()) != 0 {
		t.Fatalf("expected empty selection, got status %d and %d products", rr.Code, len(store.Selection()))
	}
}

// ─── Chat ───

type stubChat struct {
	turn     *models.Turn
	err      error
	resetErr error
	message  string
}

func (s *stubChat) Ask(ctx context.Context, text string) (*models.Turn, error) {
	s.message = text
	return s.turn, s.err
}

func (s *stubChat) GenerateRoutine(ctx context.Context) (*models.Turn, error) {
	return s.turn, s.err
}

func (s *stubChat) ResetHistory() error {
	return s.resetErr
}

func TestChatHandler_Ask(t *testing.T) {
	tests := []struct {
		name       string
		chat       *stubChat
		body       string
		wantStatus int
		wantCode   string
	}{
		{"resolved", &stubChat{turn: &models.Turn{State: models.TurnResolved, Reply: "Use the cleanser first."}}, `{"message":"hi"}`, http.StatusOK, ""},
		{"failed turn", &stubChat{turn: &models.Turn{State: models.TurnFailed, Notice: conversation.QuestionFailedNotice}}, `{"message":"hi"}`, http.StatusBadGateway, ""},
		{"empty", &stubChat{err: conversation.ErrEmptyMessage}, `{"message":"  "}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"busy", &stubChat{err: conversation.ErrTurnInProgress}, `{"message":"hi"}`, http.StatusConflict, "TURN_IN_PROGRESS"},
		{"bad json", &stubChat{}, `not json`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewChatHandler(tc.chat, conversation.NewStore(repository.NewMemorySlot(), nil), conversation.NewTranscript())
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", bytes.NewBufferString(tc.body))
			req.Header.Set("X-Request-ID", "req-1")
			rr := httptest.NewRecorder()
			h.Ask(rr, req)

			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			if tc.wantCode != "" {
				var body models.ErrorResponse
				decodeBody(t, rr, &body)
				if body.Error.Code != tc.wantCode || body.Error.RequestID != "req-1" {
					t.Fatalf("unexpected error body: %+v", body)
				}
				return
			}

			var body models.ChatResponse
			decodeBody(t, rr, &body)
			if body.Turn == nil || body.Turn.State != tc.chat.turn.State {
				t.Fatalf("unexpected turn: %+v", body.Turn)
			}
			if body.Reply != tc.chat.turn.Reply {
				t.Fatalf("expected reply %q, got %q", tc.chat.turn.Reply, body.Reply)
			}
		})
	}
}

func TestChatHandler_RoutineWithoutSelection(t *testing.T) {
	h := NewChatHandler(&stubChat{err: conversation.ErrNoSelection}, conversation.NewStore(repository.NewMemorySlot(), nil), conversation.NewTranscript())
	rr := httptest.NewRecorder()
	h.Routine(rr, httptest.NewRequest(http.MethodPost, "/api/v1/chat/routine", nil))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d, got %d", http.StatusBadRequest, rr.Code)
	}
	var body models.ErrorResponse
	decodeBody(t, rr, &body)
	if body.Error.Code != "NO_SELECTION" || body.Error.Message != conversation.NoSelectionNotice {
		t.Fatalf("unexpected error: %+v", body.Error)
	}
}

func TestChatHandler_HistoryAndReset(t *testing.T) {
	store := conversation.NewStore(repository.NewMemorySlot(), nil)
	store.AppendMessage(models.RoleUser, "hi")
	store.AppendMessage(models.RoleAssistant, "hello")
	transcript := conversation.NewTranscript()
	transcript.RenderMessage(models.RoleUser, "hi")
	controller := conversation.NewController(store, nil, transcript, conversation.ControllerOptions{})
	h := NewChatHandler(controller, store, transcript)

	rr := httptest.NewRecorder()
	h.History(rr, httptest.NewRequest(http.MethodGet, "/api/v1/chat/history", nil))
	var hist models.HistoryResponse
	decodeBody(t, rr, &hist)
	if hist.Count != 3 || hist.Messages[0].Role != models.RoleSystem {
		t.Fatalf("unexpected history: %+v", hist)
	}

	rr = httptest.NewRecorder()
	h.ResetHistory(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/chat/history", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rr.Code)
	}
	if store.HistoryLen() != 1 || len(transcript.Entries()) != 0 {
		t.Fatalf("expected fresh conversation, got %d messages and %d entries", store.HistoryLen(), len(transcript.Entries()))
	}

	rr = httptest.NewRecorder()
	h.Transcript(rr, httptest.NewRequest(http.MethodGet, "/api/v1/chat/transcript", nil))
	var tr struct {
		Count int `json:"count"`
	}
	decodeBody(t, rr, &tr)
	if tr.Count != 0 {
		t.Fatalf("expected empty transcript, got %d", tr.Count)
	}
}

func TestChatHandler_ResetDuringTurn(t *testing.T) {
	store := conversation.NewStore(repository.NewMemorySlot(), nil)
	store.AppendMessage(models.RoleUser, "hi")
	transcript := conversation.NewTranscript()
	transcript.RenderMessage(models.RoleUser, "hi")
	h := NewChatHandler(&stubChat{resetErr: conversation.ErrTurnInProgress}, store, transcript)

	rr := httptest.NewRecorder()
	h.ResetHistory(rr, httptest.NewRequest(http.MethodDelete, "/api/v1/chat/history", nil))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected status %d, got %d", http.StatusConflict, rr.Code)
	}
	var body models.ErrorResponse
	decodeBody(t, rr, &body)
	if body.Error.Code != "TURN_IN_PROGRESS" {
		t.Fatalf("unexpected error: %+v", body.Error)
	}
	if store.HistoryLen() != 2 || len(transcript.Entries()) != 1 {
		t.Fatal("a refused reset must leave history and transcript alone")
	}
}

func TestHandleServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"empty message", conversation.ErrEmptyMessage, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no selection", conversation.ErrNoSelection, http.StatusBadRequest, "NO_SELECTION"},
		{"turn in progress", conversation.ErrTurnInProgress, http.StatusConflict, "TURN_IN_PROGRESS"},
		{"validation", &services.ValidationError{Fields: map[string]string{"id": "required"}}, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"not found", &services.NotFoundError{Message: "Product not found"}, http.StatusNotFound, "NOT_FOUND"},
		{"slot failure", errors.New("failed to persist selection: disk full"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handleServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), tc.err)
			if rr.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, rr.Code)
			}
			if code := errorCode(t, rr); code != tc.wantCode {
				t.Fatalf("expected code %s, got %s", tc.wantCode, code)
			}
		})
	}
}
