package conversation

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"advisor-backend/internal/models"
)

// Renderer is the chat surface a turn draws on.
type Renderer interface {
	SelectionListener
	RenderMessage(role models.Role, text string)
	ShowPlaceholder(turnID uuid.UUID, text string)
	RemovePlaceholder(turnID uuid.UUID)
	ShowNotice(text string)
}

// Fanout forwards every call to each renderer in order.
type Fanout []Renderer

func (f Fanout) RenderMessage(role models.Role, text string) {
	for _, r := range f {
		r.RenderMessage(role, text)
	}
}

func (f Fanout) ShowPlaceholder(turnID uuid.UUID, text string) {
	for _, r := range f {
		r.ShowPlaceholder(turnID, text)
	}
}

func (f Fanout) RemovePlaceholder(turnID uuid.UUID) {
	for _, r := range f {
		r.RemovePlaceholder(turnID)
	}
}

func (f Fanout) ShowNotice(text string) {
	for _, r := range f {
		r.ShowNotice(text)
	}
}

func (f Fanout) SelectionChanged(products []models.Product) {
	for _, r := range f {
		r.SelectionChanged(products)
	}
}

// Transcript keeps what the user has been shown, in order. Placeholders are
// removed by turn id rather than by position so a late removal never
// deletes an unrelated entry.
type Transcript struct {
	mu      sync.Mutex
	entries []models.TranscriptEntry
	now     func() time.Time
}

func NewTranscript() *Transcript {
	return &Transcript{now: time.Now}
}

func (t *Transcript) RenderMessage(role models.Role, text string) {
	t.append(models.TranscriptEntry{Role: role, Text: text})
}

func (t *Transcript) ShowPlaceholder(turnID uuid.UUID, text string) {
	id := turnID
	t.append(models.TranscriptEntry{Role: models.RoleAssistant, Text: text, Placeholder: true, TurnID: &id})
}

func (t *Transcript) RemovePlaceholder(turnID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.entries) - 1; i >= 0; i-- {
		e := t.entries[i]
		if e.Placeholder && e.TurnID != nil && *e.TurnID == turnID {
			t.entries = append(t.entries[:i], t.entries[i+1:]...)
			return
		}
	}
}

func (t *Transcript) ShowNotice(text string) {
	t.append(models.TranscriptEntry{Role: models.RoleAssistant, Text: text, Notice: true})
}

// SelectionChanged is a no-op: the selection panel is not part of the transcript.
func (t *Transcript) SelectionChanged(products []models.Product) {}

func (t *Transcript) Entries() []models.TranscriptEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]models.TranscriptEntry{}, t.entries...)
}

// Placeholders counts placeholders still on screen.
func (t *Transcript) Placeholders() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, e := range t.entries {
		if e.Placeholder {
			n++
		}
	}
	return n
}

func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = nil
}

func (t *Transcript) append(e models.TranscriptEntry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e.At = t.now()
	t.entries = append(t.entries, e)
}
