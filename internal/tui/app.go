// Package tui is the terminal front end: category and product browser,
// selection panel and chat transcript driven by the conversation controller.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"advisor-backend/internal/catalog"
	"advisor-backend/internal/conversation"
	"advisor-backend/internal/models"
)

type chatController interface {
	Ask(ctx context.Context, text string) (*models.Turn, error)
	GenerateRoutine(ctx context.Context) (*models.Turn, error)
}

type selectionStore interface {
	SelectProduct(ctx context.Context, p models.Product) (bool, error)
	DeselectProduct(ctx context.Context, id models.ProductID) (bool, error)
	ClearSelection(ctx context.Context) error
	LoadPersisted(ctx context.Context)
}

type focus int

const (
	focusInput focus = iota
	focusBrowse
)

const storeTimeout = 10 * time.Second

type (
	catalogMsg struct {
		products []models.Product
		err      error
	}
	turnDoneMsg struct {
		turn *models.Turn
		err  error
	}
	storeErrMsg struct{ err error }
)

type Model struct {
	source catalog.Source
	store  selectionStore
	chat   chatController

	products   []models.Product
	categories []string
	category   int // -1 until one is chosen
	cursor     int

	selection []models.Product
	selCursor int

	entries   []models.TranscriptEntry
	lastReply string
	pending   bool

	focus    focus
	input    textinput.Model
	spinner  spinner.Model
	markdown *glamour.TermRenderer

	status   string
	width    int
	height   int
	quitting bool
}

func NewModel(source catalog.Source, store selectionStore, chat chatController) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask about skincare, makeup, haircare..."
	ti.CharLimit = 1000
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = selectedMark

	return Model{
		source:   source,
		store:    store,
		chat:     chat,
		category: -1,
		input:    ti,
		spinner:  sp,
		width:    100,
		height:   40,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.loadCatalog(),
		m.restoreSelection(),
	)
}

func (m Model) loadCatalog() tea.Cmd {
	source := m.source
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		products, err := source.Load(ctx)
		return catalogMsg{products: products, err: err}
	}
}

// restoreSelection runs in a command because the store signals the change
// back through the program.
func (m Model) restoreSelection() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		store.LoadPersisted(ctx)
		return nil
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 6
		m.markdown, _ = glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(msg.Width-8),
		)
		return m, nil

	case spinner.TickMsg:
		if m.pending {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case catalogMsg:
		if msg.err != nil {
			m.status = "Error loading products: " + msg.err.Error()
			return m, nil
		}
		m.products = msg.products
		m.categories = catalog.Categories(msg.products)
		return m, nil

	case messageMsg:
		m.entries = append(m.entries, models.TranscriptEntry{Role: msg.role, Text: msg.text, At: time.Now()})
		if msg.role == models.RoleAssistant {
			m.lastReply = msg.text
		}
		return m, nil

	case placeholderMsg:
		id := msg.turnID
		m.entries = append(m.entries, models.TranscriptEntry{Role: models.RoleAssistant, Text: msg.text, Placeholder: true, TurnID: &id, At: time.Now()})
		return m, nil

	case placeholderRemovedMsg:
		for i := len(m.entries) - 1; i >= 0; i-- {
			e := m.entries[i]
			if e.Placeholder && e.TurnID != nil && *e.TurnID == msg.turnID {
				m.entries = append(m.entries[:i], m.entries[i+1:]...)
				break
			}
		}
		return m, nil

	case noticeMsg:
		m.entries = append(m.entries, models.TranscriptEntry{Role: models.RoleAssistant, Text: msg.text, Notice: true, At: time.Now()})
		return m, nil

	case selectionMsg:
		m.selection = msg.products
		if m.selCursor >= len(m.selection) {
			m.selCursor = max(0, len(m.selection)-1)
		}
		return m, nil

	case turnDoneMsg:
		m.pending = false
		if errors.Is(msg.err, conversation.ErrTurnInProgress) {
			m.status = "A response is still being generated."
		}
		return m, nil

	case storeErrMsg:
		m.status = "Could not save selection: " + msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.quitting = true
		return m, tea.Quit

	case "ctrl+r":
		if m.pending {
			return m, nil
		}
		m.pending = true
		m.status = ""
		return m, tea.Batch(m.routineCmd(), m.spinner.Tick)

	case "ctrl+y":
		if m.lastReply == "" {
			m.status = "Nothing to copy yet."
			return m, nil
		}
		if err := clipboard.WriteAll(m.lastReply); err != nil {
			m.status = "Copy failed: " + err.Error()
			return m, nil
		}
		m.status = "Copied last reply to clipboard."
		return m, nil

	case "esc":
		if m.focus == focusInput {
			m.focus = focusBrowse
			m.input.Blur()
		} else {
			m.focus = focusInput
			m.input.Focus()
		}
		return m, nil
	}

	if m.focus == focusBrowse {
		return m.updateBrowse(msg)
	}
	return m.updateInput(msg)
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "enter" {
		text := strings.TrimSpace(m.input.Value())
		if text == "" || m.pending {
			return m, nil
		}
		m.input.Reset()
		m.pending = true
		m.status = ""
		return m, tea.Batch(m.askCmd(text), m.spinner.Tick)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	visible := m.visibleProducts()

	switch msg.String() {
	case "q":
		m.quitting = true
		return m, tea.Quit

	case "tab":
		if len(m.categories) > 0 {
			m.category = (m.category + 1) % len(m.categories)
			m.cursor = 0
		}

	case "shift+tab":
		if len(m.categories) > 0 {
			m.category--
			if m.category < 0 {
				m.category = len(m.categories) - 1
			}
			m.cursor = 0
		}

	case "up", "k":
		if m.cursor > 0 {
			m.cursor--
		}

	case "down", "j":
		if m.cursor < len(visible)-1 {
			m.cursor++
		}

	case "enter", " ":
		if m.cursor < len(visible) {
			return m, m.toggleCmd(visible[m.cursor])
		}

	case "left", "h":
		if m.selCursor > 0 {
			m.selCursor--
		}

	case "right", "l":
		if m.selCursor < len(m.selection)-1 {
			m.selCursor++
		}

	case "x":
		if m.selCursor < len(m.selection) {
			return m, m.deselectCmd(m.selection[m.selCursor].ID)
		}

	case "X":
		return m, m.clearCmd()
	}
	return m, nil
}

func (m Model) visibleProducts() []models.Product {
	if m.category < 0 || m.category >= len(m.categories) {
		return nil
	}
	return catalog.FilterByCategory(m.products, m.categories[m.category])
}

func (m Model) isSelected(id models.ProductID) bool {
	for _, p := range m.selection {
		if p.ID.Equal(id) {
			return true
		}
	}
	return false
}

func (m Model) askCmd(text string) tea.Cmd {
	chat := m.chat
	return func() tea.Msg {
		turn, err := chat.Ask(context.Background(), text)
		return turnDoneMsg{turn: turn, err: err}
	}
}

func (m Model) routineCmd() tea.Cmd {
	chat := m.chat
	return func() tea.Msg {
		turn, err := chat.GenerateRoutine(context.Background())
		return turnDoneMsg{turn: turn, err: err}
	}
}

func (m Model) toggleCmd(p models.Product) tea.Cmd {
	if m.isSelected(p.ID) {
		return m.deselectCmd(p.ID)
	}
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if _, err := store.SelectProduct(ctx, p); err != nil {
			return storeErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) deselectCmd(id models.ProductID) tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if _, err := store.DeselectProduct(ctx, id); err != nil {
			return storeErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) clearCmd() tea.Cmd {
	store := m.store
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()
		if err := store.ClearSelection(ctx); err != nil {
			return storeErrMsg{err: err}
		}
		return nil
	}
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("L'Oréal Beauty Advisor") + "\n")
	b.WriteString(m.renderCategories() + "\n")
	b.WriteString(m.renderProducts() + "\n")
	b.WriteString(m.renderSelection() + "\n")
	b.WriteString(m.renderTranscript() + "\n")
	b.WriteString(m.input.View() + "\n")
	if m.status != "" {
		b.WriteString(statusBarStyle.Render(m.status) + "\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderCategories() string {
	if len(m.categories) == 0 {
		return dimStyle.Render("  Loading categories...")
	}
	tabs := make([]string, len(m.categories))
	for i, c := range m.categories {
		if i == m.category {
			tabs[i] = activeTabStyle.Render(c)
		} else {
			tabs[i] = tabStyle.Render(c)
		}
	}
	return strings.Join(tabs, " ")
}

func (m Model) renderProducts() string {
	if m.category < 0 {
		return panelStyle.Render(dimStyle.Render("Choose a category to view products"))
	}

	visible := m.visibleProducts()
	if len(visible) == 0 {
		return panelStyle.Render(dimStyle.Render("No products in this category"))
	}

	rows := make([]string, len(visible))
	for i, p := range visible {
		mark := "[ ]"
		if m.isSelected(p.ID) {
			mark = selectedMark.Render("[✓]")
		}
		row := fmt.Sprintf("%s %s %s", mark, p.Name, dimStyle.Render(p.Brand))
		if m.focus == focusBrowse && i == m.cursor {
			row = cursorStyle.Render(row)
		}
		rows[i] = row
	}
	return panelStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderSelection() string {
	header := headerStyle.Render(fmt.Sprintf("Selected Products (%d)", len(m.selection)))
	if len(m.selection) == 0 {
		return header + "\n" + dimStyle.Render("  No products selected")
	}

	items := make([]string, len(m.selection))
	for i, p := range m.selection {
		item := p.Name + " ×"
		if m.focus == focusBrowse && i == m.selCursor {
			item = cursorStyle.Render(item)
		}
		items[i] = item
	}
	return header + "\n  " + strings.Join(items, "  ")
}

func (m Model) renderTranscript() string {
	if len(m.entries) == 0 {
		return dimStyle.Render("  Hello! Select some products and ask me anything about skincare.")
	}

	parts := make([]string, 0, len(m.entries))
	for _, e := range m.entries {
		switch {
		case e.Placeholder:
			parts = append(parts, m.spinner.View()+" "+dimStyle.Render(e.Text))
		case e.Notice:
			parts = append(parts, noticeStyle.Render(e.Text))
		case e.Role == models.RoleUser:
			parts = append(parts, userStyle.Render("You: ")+e.Text)
		default:
			parts = append(parts, m.renderMarkdown(e.Text))
		}
	}

	// Keep the newest entries on screen.
	if limit := m.height / 2; limit > 0 && len(parts) > limit {
		parts = parts[len(parts)-limit:]
	}
	return strings.Join(parts, "\n")
}

func (m Model) renderMarkdown(text string) string {
	if m.markdown == nil {
		return text
	}
	out, err := m.markdown.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

func (m Model) renderHelp() string {
	if m.focus == focusBrowse {
		return helpStyle.Render("  Tab: category  ↑/↓: move  Enter: select  ←/→ x: remove  X: clear  Esc: chat  ctrl+r: routine  q: quit")
	}
	return helpStyle.Render("  Enter: send  Esc: browse products  ctrl+r: routine  ctrl+y: copy reply  ctrl+c: quit")
}
