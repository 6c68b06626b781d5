package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"advisor-backend/internal/conversation"
	"advisor-backend/internal/models"
	"advisor-backend/internal/repository"
)

type stubSource []models.Product

func (s stubSource) Load(ctx context.Context) ([]models.Product, error) {
	return s, nil
}

type stubChat struct {
	asked    []string
	routines int
}

func (s *stubChat) Ask(ctx context.Context, text string) (*models.Turn, error) {
	s.asked = append(s.asked, text)
	return &models.Turn{State: models.TurnResolved}, nil
}

func (s *stubChat) GenerateRoutine(ctx context.Context) (*models.Turn, error) {
	s.routines++
	return nil, conversation.ErrNoSelection
}

// recordingSender captures what the renderer would send to the program.
type recordingSender struct {
	msgs []tea.Msg
}

func (r *recordingSender) Send(msg tea.Msg) {
	r.msgs = append(r.msgs, msg)
}

var products = stubSource{
	{ID: "1", Name: "Cleanser", Brand: "CeraVe", Category: "skincare"},
	{ID: "2", Name: "Serum", Brand: "L'Oréal", Category: "skincare"},
	{ID: "3", Name: "Shampoo", Brand: "Kérastase", Category: "haircare"},
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "ctrl+r":
		return tea.KeyMsg{Type: tea.KeyCtrlR}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain runs cmd and feeds every resulting message back into the model,
// the way the program loop would. Batches are expanded; ticks are skipped.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for len(queue) > 0 {
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case tea.BatchMsg:
			queue = append(queue, msg...)
		case catalogMsg, turnDoneMsg, storeErrMsg:
			next, more := m.Update(msg)
			m = next.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

// newTestModel wires a real store whose renderer records into sender, so
// selection changes can be replayed into the model.
func newTestModel(t *testing.T) (Model, *conversation.Store, *recordingSender, *stubChat) {
	t.Helper()
	sender := &recordingSender{}
	renderer := NewProgramRenderer()
	renderer.Attach(sender)
	store := conversation.NewStore(repository.NewMemorySlot(), renderer)
	chat := &stubChat{}

	m := NewModel(products, store, chat)
	m = drain(t, m, m.loadCatalog())
	return m, store, sender, chat
}

func replay(m Model, sender *recordingSender) Model {
	for _, msg := range sender.msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	sender.msgs = nil
	return m
}

func press(t *testing.T, m Model, keys ...string) Model {
	t.Helper()
	for _, k := range keys {
		next, cmd := m.Update(key(k))
		m = drain(t, next.(Model), cmd)
	}
	return m
}

func TestModel_LoadsCategories(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	if len(m.categories) != 2 || m.categories[0] != "haircare" {
		t.Fatalf("unexpected categories: %v", m.categories)
	}
	if m.category != -1 || len(m.visibleProducts()) != 0 {
		t.Fatal("no category is chosen until the user picks one")
	}
	if !strings.Contains(m.View(), "Choose a category") {
		t.Fatal("expected category prompt in view")
	}
}

func TestModel_BrowseAndSelect(t *testing.T) {
	m, store, sender, _ := newTestModel(t)

	m = press(t, m, "esc", "tab", "tab")
	if m.categories[m.category] != "skincare" {
		t.Fatalf("expected skincare, got %s", m.categories[m.category])
	}

	m = press(t, m, "down", "enter")
	m = replay(m, sender)
	if len(store.Selection()) != 1 || store.Selection()[0].Name != "Serum" {
		t.Fatalf("expected Serum selected, got %+v", store.Selection())
	}
	if len(m.selection) != 1 || !m.isSelected("2") {
		t.Fatal("model must reflect the store's selection")
	}

	// Enter again toggles it off.
	m = press(t, m, "enter")
	m = replay(m, sender)
	if len(store.Selection()) != 0 || len(m.selection) != 0 {
		t.Fatal("expected selection to be toggled off")
	}
}

func TestModel_RemoveAndClearSelection(t *testing.T) {
	m, store, sender, _ := newTestModel(t)
	ctx := context.Background()
	for _, p := range products {
		store.SelectProduct(ctx, p)
	}
	m = replay(m, sender)

	m = press(t, m, "esc", "l", "x")
	m = replay(m, sender)
	if len(store.Selection()) != 2 || store.IsSelected("2") {
		t.Fatalf("expected Serum removed, got %+v", store.Selection())
	}

	m = press(t, m, "X")
	m = replay(m, sender)
	if len(store.Selection()) != 0 || len(m.selection) != 0 {
		t.Fatal("expected selection cleared")
	}
}

func TestModel_SubmitQuestion(t *testing.T) {
	m, _, _, chat := newTestModel(t)

	for _, r := range "  hi there " {
		next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
		m = next.(Model)
	}
	m = press(t, m, "enter")

	if len(chat.asked) != 1 || chat.asked[0] != "hi there" {
		t.Fatalf("unexpected questions: %v", chat.asked)
	}
	if m.pending || m.input.Value() != "" {
		t.Fatal("turn must be finished and input cleared")
	}

	// Empty input is ignored.
	m = press(t, m, "enter")
	if len(chat.asked) != 1 {
		t.Fatal("empty input must not start a turn")
	}
}

func TestModel_RoutineWhilePendingIsIgnored(t *testing.T) {
	m, _, _, chat := newTestModel(t)
	m.pending = true

	next, cmd := m.Update(key("ctrl+r"))
	if cmd != nil || chat.routines != 0 {
		t.Fatal("a second turn must not start while one is pending")
	}
	m = next.(Model)

	m.pending = false
	m = press(t, m, "ctrl+r")
	if chat.routines != 1 || m.pending {
		t.Fatalf("expected one finished routine turn, got %d pending=%v", chat.routines, m.pending)
	}
}

func TestModel_RenderEvents(t *testing.T) {
	m, _, _, _ := newTestModel(t)
	a, b := uuid.New(), uuid.New()

	for _, msg := range []tea.Msg{
		messageMsg{role: models.RoleUser, text: "hello"},
		placeholderMsg{turnID: a, text: conversation.ThinkingText},
		placeholderMsg{turnID: b, text: conversation.ThinkingText},
		placeholderRemovedMsg{turnID: a},
		messageMsg{role: models.RoleAssistant, text: "Use SPF daily."},
		noticeMsg{text: conversation.QuestionFailedNotice},
	} {
		next, _ := m.Update(msg)
		m = next.(Model)
	}

	if len(m.entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(m.entries))
	}
	if *m.entries[1].TurnID != b {
		t.Fatal("only the matching placeholder may be removed")
	}
	if m.lastReply != "Use SPF daily." {
		t.Fatalf("unexpected last reply %q", m.lastReply)
	}
	view := m.View()
	if !strings.Contains(view, "hello") || !strings.Contains(view, conversation.QuestionFailedNotice) {
		t.Fatalf("transcript missing from view:\n%s", view)
	}
}

func TestProgramRenderer_DropsBeforeAttach(t *testing.T) {
	r := NewProgramRenderer()
	r.ShowNotice("lost")

	sender := &recordingSender{}
	r.Attach(sender)
	r.ShowNotice("kept")
	r.SelectionChanged([]models.Product{{ID: "1"}})

	if len(sender.msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(sender.msgs))
	}
	if n, ok := sender.msgs[0].(noticeMsg); !ok || n.text != "kept" {
		t.Fatalf("unexpected first message %#v", sender.msgs[0])
	}
}

func TestModel_SelectionCursorFollowsShrinkingSet(t *testing.T) {
	m, store, sender, _ := newTestModel(t)
	ctx := context.Background()
	for _, p := range products {
		store.SelectProduct(ctx, p)
	}
	m = replay(m, sender)

	m = press(t, m, "esc", "l", "l")
	if m.selCursor != 2 {
		t.Fatalf("expected cursor on the last entry, got %d", m.selCursor)
	}

	store.DeselectProduct(ctx, "3")
	m = replay(m, sender)
	if m.selCursor != 1 {
		t.Fatalf("expected cursor clamped to 1, got %d", m.selCursor)
	}

	store.ClearSelection(ctx)
	m = replay(m, sender)
	if m.selCursor != 0 {
		t.Fatalf("expected cursor reset to 0, got %d", m.selCursor)
	}
}
