package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"advisor-backend/internal/handlers"
	"advisor-backend/internal/middleware"
	"advisor-backend/internal/websocket"
)

// turnHeadroom covers request decoding and the response write around the
// completion call itself.
const turnHeadroom = 15 * time.Second

// RequestTimeout bounds a request that runs a turn. Zero means unbounded,
// matching a zero completion timeout.
func RequestTimeout(completionTimeout time.Duration) time.Duration {
	if completionTimeout <= 0 {
		return 0
	}
	return completionTimeout + turnHeadroom
}

func New(
	catalogHandler *handlers.CatalogHandler,
	selectionHandler *handlers.SelectionHandler,
	chatHandler *handlers.ChatHandler,
	wsHub *websocket.Hub,
	chatLimiter *middleware.RateLimiter,
	frontendURL string,
	completionTimeout time.Duration,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Catalog Routes ────
		r.Get("/categories", catalogHandler.Categories)
		r.Get("/products", catalogHandler.Products)

		// ──── Selection Routes ────
		r.Route("/selection", func(r chi.Router) {
			r.Get("/", selectionHandler.List)
			r.Post("/", selectionHandler.Select)
			r.Delete("/", selectionHandler.Clear)
			r.Delete("/{id}", selectionHandler.Deselect)
		})

		// ──── Chat Routes ────
		r.Route("/chat", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(chatLimiter.Middleware)
				if timeout := RequestTimeout(completionTimeout); timeout > 0 {
					r.Use(chimiddleware.Timeout(timeout))
				}
				r.Post("/", chatHandler.Ask)
				r.Post("/routine", chatHandler.Routine)
			})
			r.Get("/history", chatHandler.History)
			r.Delete("/history", chatHandler.ResetHistory)
			r.Get("/transcript", chatHandler.Transcript)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
