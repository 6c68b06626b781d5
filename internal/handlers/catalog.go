package handlers

import (
	"log"
	"net/http"

	"advisor-backend/internal/catalog"
	"advisor-backend/internal/models"
)

type selectionReader interface {
	IsSelected(id models.ProductID) bool
}

type CatalogHandler struct {
	source catalog.Source
	store  selectionReader
}

func NewCatalogHandler(source catalog.Source, store selectionReader) *CatalogHandler {
	return &CatalogHandler{source: source, store: store}
}

func (h *CatalogHandler) Categories(w http.ResponseWriter, r *http.Request) {
	products, err := h.source.Load(r.Context())
	if err != nil {
		log.Printf("Error loading products: %v", err)
		writeJSON(w, http.StatusBadGateway, errorResp("CATALOG_UNAVAILABLE", "Failed to load products", r))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": catalog.Categories(products),
	})
}

// Products lists the catalog entries in ?category=, each flagged with
// whether it is currently selected. No category yields an empty list.
func (h *CatalogHandler) Products(w http.ResponseWriter, r *http.Request) {
	products, err := h.source.Load(r.Context())
	if err != nil {
		log.Printf("Error loading products: %v", err)
		writeJSON(w, http.StatusBadGateway, errorResp("CATALOG_UNAVAILABLE", "Failed to load products", r))
		return
	}

	filtered := catalog.FilterByCategory(products, r.URL.Query().Get("category"))
	views := make([]models.ProductView, len(filtered))
	for i, p := range filtered {
		views[i] = models.ProductView{Product: p, Selected: h.store.IsSelected(p.ID)}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"products": views,
		"count":    len(views),
	})
}
