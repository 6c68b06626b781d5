package websocket

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"advisor-backend/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

const writeWait = 10 * time.Second

// Hub pushes chat surface events to every connected client. It implements
// the conversation renderer so a turn draws on browsers the same way it
// draws on the in-process transcript.
type Hub struct {
	mu          sync.Mutex
	connections map[*websocket.Conn]struct{}
	selection   []models.Product
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[*websocket.Conn]struct{}),
		selection:   []models.Product{},
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	h.registerConnection(conn)

	// Clients only listen; reading detects the disconnect.
	go func() {
		defer h.unregisterConnection(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// Connections returns the number of open clients.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.connections)
}

func (h *Hub) registerConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[conn] = struct{}{}

	// A new client starts from the current selection.
	data, err := json.Marshal(models.WSMessage{Type: models.EventSelectionChanged, Payload: h.selection})
	if err == nil {
		h.writeLocked(conn, data)
	}

	log.Printf("WebSocket connected (total: %d)", len(h.connections))
}

func (h *Hub) unregisterConnection(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()
	delete(h.connections, conn)

	log.Printf("WebSocket disconnected (total: %d)", len(h.connections))
}

func (h *Hub) Broadcast(eventType string, payload interface{}) {
	data, err := json.Marshal(models.WSMessage{Type: eventType, Payload: payload})
	if err != nil {
		log.Printf("Failed to encode %s event: %v", eventType, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.connections {
		h.writeLocked(conn, data)
	}
}

// writeLocked serializes writes; gorilla connections allow one writer at a time.
func (h *Hub) writeLocked(conn *websocket.Conn, data []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		log.Printf("WebSocket write failed: %v", err)
	}
}

func (h *Hub) RenderMessage(role models.Role, text string) {
	h.Broadcast(models.EventMessage, models.TranscriptEntry{Role: role, Text: text, At: time.Now()})
}

func (h *Hub) ShowPlaceholder(turnID uuid.UUID, text string) {
	h.Broadcast(models.EventPlaceholder, models.PlaceholderPayload{TurnID: turnID, Text: text})
}

func (h *Hub) RemovePlaceholder(turnID uuid.UUID) {
	h.Broadcast(models.EventPlaceholderRemoved, models.PlaceholderPayload{TurnID: turnID})
}

func (h *Hub) ShowNotice(text string) {
	h.Broadcast(models.EventNotice, models.TranscriptEntry{Role: models.RoleAssistant, Text: text, Notice: true, At: time.Now()})
}

func (h *Hub) SelectionChanged(products []models.Product) {
	h.mu.Lock()
	h.selection = append([]models.Product{}, products...)
	h.mu.Unlock()

	h.Broadcast(models.EventSelectionChanged, products)
}
