package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"advisor-backend/internal/catalog"
	"advisor-backend/internal/models"
	"advisor-backend/internal/services"
)

type selectionStore interface {
	Selection() []models.Product
	SelectProduct(ctx context.Context, p models.Product) (bool, error)
	DeselectProduct(ctx context.Context, id models.ProductID) (bool, error)
	ClearSelection(ctx context.Context) error
}

type SelectionHandler struct {
	source catalog.Source
	store  selectionStore
}

func NewSelectionHandler(source catalog.Source, store selectionStore) *SelectionHandler {
	return &SelectionHandler{source: source, store: store}
}

func (h *SelectionHandler) List(w http.ResponseWriter, r *http.Request) {
	h.writeSelection(w, http.StatusOK)
}

// Select adds a catalog product by id. Selecting a product twice is a no-op
// answered with 200 instead of 201.
func (h *SelectionHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req models.SelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ProductID == "" {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{"product_id": "Product id is required"}})
		return
	}

	products, err := h.source.Load(r.Context())
	if err != nil {
		log.Printf("Error loading products: %v", err)
		writeJSON(w, http.StatusBadGateway, errorResp("CATALOG_UNAVAILABLE", "Failed to load products", r))
		return
	}

	product, ok := catalog.Find(products, req.ProductID)
	if !ok {
		handleServiceError(w, r, &services.NotFoundError{Message: "Product not found"})
		return
	}

	added, err := h.store.SelectProduct(r.Context(), product)
	if err != nil {
		log.Printf("Error saving selection: %v", err)
		handleServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	h.writeSelection(w, status)
}

func (h *SelectionHandler) Deselect(w http.ResponseWriter, r *http.Request) {
	id := models.ParseProductID(chi.URLParam(r, "id"))
	if id == "" {
		handleServiceError(w, r, &services.ValidationError{Fields: map[string]string{"id": "Product id is required"}})
		return
	}

	if _, err := h.store.DeselectProduct(r.Context(), id); err != nil {
		log.Printf("Error saving selection: %v", err)
		handleServiceError(w, r, err)
		return
	}
	h.writeSelection(w, http.StatusOK)
}

func (h *SelectionHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearSelection(r.Context()); err != nil {
		log.Printf("Error clearing selection: %v", err)
		handleServiceError(w, r, err)
		return
	}
	h.writeSelection(w, http.StatusOK)
}

func (h *SelectionHandler) writeSelection(w http.ResponseWriter, status int) {
	products := h.store.Selection()
	writeJSON(w, status, models.SelectionResponse{Products: products, Count: len(products)})
}
