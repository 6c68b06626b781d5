package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"advisor-backend/internal/models"
)

// Render events delivered to the model through Program.Send.
type (
	messageMsg struct {
		role models.Role
		text string
	}
	placeholderMsg struct {
		turnID uuid.UUID
		text   string
	}
	placeholderRemovedMsg struct{ turnID uuid.UUID }
	noticeMsg             struct{ text string }
	selectionMsg          struct{ products []models.Product }
)

type sender interface {
	Send(msg tea.Msg)
}

// ProgramRenderer forwards conversation render calls to a running bubbletea
// program. Send blocks until the program's event loop reads the message, so
// render calls must come from commands, never from Update.
type ProgramRenderer struct {
	mu      sync.Mutex
	program sender
}

func NewProgramRenderer() *ProgramRenderer {
	return &ProgramRenderer{}
}

// Attach sets the program; calls made before Attach are dropped.
func (r *ProgramRenderer) Attach(p sender) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.program = p
}

func (r *ProgramRenderer) send(msg tea.Msg) {
	r.mu.Lock()
	p := r.program
	r.mu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func (r *ProgramRenderer) RenderMessage(role models.Role, text string) {
	r.send(messageMsg{role: role, text: text})
}

func (r *ProgramRenderer) ShowPlaceholder(turnID uuid.UUID, text string) {
	r.send(placeholderMsg{turnID: turnID, text: text})
}

func (r *ProgramRenderer) RemovePlaceholder(turnID uuid.UUID) {
	r.send(placeholderRemovedMsg{turnID: turnID})
}

func (r *ProgramRenderer) ShowNotice(text string) {
	r.send(noticeMsg{text: text})
}

func (r *ProgramRenderer) SelectionChanged(products []models.Product) {
	r.send(selectionMsg{products: products})
}
