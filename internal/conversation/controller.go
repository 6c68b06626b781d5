package conversation

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"advisor-backend/internal/models"
	"advisor-backend/internal/services"
)

var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrNoSelection    = errors.New("no products selected")
	ErrTurnInProgress = errors.New("a response is already in flight")
)

// Fixed texts shown on the chat surface.
const (
	ThinkingText          = "Thinking..."
	RoutineRequestText    = "Generate my skincare routine"
	RoutinePendingText    = "Creating your personalized routine..."
	RoutineReplyPrefix    = "🌟 Your Personalized Routine:\n\n"
	NoSelectionNotice     = "Please select some products first before generating a routine."
	QuestionFailedNotice  = "Sorry, I couldn't get a response right now. Please check your internet connection and try again."
	RoutineFailedNotice   = "Sorry, I couldn't generate your routine right now. Please check your internet connection and try again."
	noDescriptionFallback = "No description available"
)

type ControllerOptions struct {
	// Timeout bounds each remote call; zero waits as long as ctx allows.
	Timeout time.Duration
	// TokenBudget caps the prompt window; zero sends the whole history.
	TokenBudget int
	Counter     TokenCounter
}

// Controller runs one turn at a time: append the user message, show a
// placeholder, call the model, then replace the placeholder with the reply
// or an apology.
type Controller struct {
	store     *Store
	completer services.Completer
	renderer  Renderer
	opts      ControllerOptions

	slot chan struct{} // single turn slot

	mu      sync.Mutex
	current *models.Turn
	last    *models.Turn
	now     func() time.Time
}

func NewController(store *Store, completer services.Completer, renderer Renderer, opts ControllerOptions) *Controller {
	slot := make(chan struct{}, 1)
	slot <- struct{}{}
	return &Controller{
		store:     store,
		completer: completer,
		renderer:  renderer,
		opts:      opts,
		slot:      slot,
		now:       time.Now,
	}
}

// Ask runs a free-text turn. The selected products are appended to the
// prompt as context.
func (c *Controller) Ask(ctx context.Context, text string) (*models.Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyMessage
	}
	if !c.tryAcquire() {
		return nil, ErrTurnInProgress
	}
	defer c.release()

	content := text + SelectionContext(c.store.Selection())
	return c.run(ctx, turnPlan{
		kind:        models.TurnQuestion,
		content:     content,
		display:     text,
		pending:     ThinkingText,
		failNotice:  QuestionFailedNotice,
		replyPrefix: "",
	})
}

// GenerateRoutine asks for a morning/evening plan built from every selected
// product. With nothing selected it only shows a notice.
func (c *Controller) GenerateRoutine(ctx context.Context) (*models.Turn, error) {
	selection := c.store.Selection()
	if len(selection) == 0 {
		c.renderer.ShowNotice(NoSelectionNotice)
		return nil, ErrNoSelection
	}
	if !c.tryAcquire() {
		return nil, ErrTurnInProgress
	}
	defer c.release()

	return c.run(ctx, turnPlan{
		kind:        models.TurnRoutine,
		content:     RoutinePrompt(selection),
		display:     RoutineRequestText,
		pending:     RoutinePendingText,
		failNotice:  RoutineFailedNotice,
		replyPrefix: RoutineReplyPrefix,
	})
}

// Current returns a copy of the turn awaiting a response, or nil.
func (c *Controller) Current() *models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyTurn(c.current)
}

// Last returns a copy of the most recently finished turn, or nil.
func (c *Controller) Last() *models.Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyTurn(c.last)
}

func (c *Controller) Store() *Store { return c.store }

// ResetHistory starts a fresh conversation. It is refused while a turn is in
// flight, since that turn's reply would land in the new history.
func (c *Controller) ResetHistory() error {
	if !c.tryAcquire() {
		return ErrTurnInProgress
	}
	defer c.release()

	c.store.ResetHistory()
	return nil
}

type turnPlan struct {
	kind        models.TurnKind
	content     string
	display     string
	pending     string
	failNotice  string
	replyPrefix string
}

func (c *Controller) run(ctx context.Context, plan turnPlan) (*models.Turn, error) {
	turn := &models.Turn{
		ID:          uuid.New(),
		Kind:        plan.kind,
		State:       models.TurnAwaitingResponse,
		UserMessage: plan.content,
		StartedAt:   c.now(),
	}

	if err := c.store.AppendMessage(models.RoleUser, plan.content); err != nil {
		return nil, err
	}
	c.setCurrent(turn)

	c.renderer.RenderMessage(models.RoleUser, plan.display)
	c.renderer.ShowPlaceholder(turn.ID, plan.pending)

	callCtx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	reply, err := c.completer.Complete(callCtx, c.store.PromptWindow(c.opts.Counter, c.opts.TokenBudget))
	if err == nil {
		err = c.store.AppendMessage(models.RoleAssistant, reply)
	}

	c.renderer.RemovePlaceholder(turn.ID)
	finished := c.now()
	turn.FinishedAt = &finished

	if err != nil {
		log.Printf("Turn %s (%s) failed [%s]: %v", turn.ID, turn.Kind, services.FaultKind(err), err)
		turn.State = models.TurnFailed
		turn.Notice = plan.failNotice
		turn.Err = err
		c.renderer.ShowNotice(plan.failNotice)
		c.finish(turn)
		return copyTurn(turn), nil
	}

	turn.State = models.TurnResolved
	turn.Reply = reply
	c.renderer.RenderMessage(models.RoleAssistant, plan.replyPrefix+reply)
	c.finish(turn)
	return copyTurn(turn), nil
}

func (c *Controller) tryAcquire() bool {
	select {
	case <-c.slot:
		return true
	default:
		return false
	}
}

func (c *Controller) release() {
	c.slot <- struct{}{}
}

func (c *Controller) setCurrent(t *models.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = copyTurn(t)
}

func (c *Controller) finish(t *models.Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.last = copyTurn(t)
}

func copyTurn(t *models.Turn) *models.Turn {
	if t == nil {
		return nil
	}
	cp := *t
	return &cp
}

// SelectionContext renders the selected products as a prompt suffix, or ""
// when nothing is selected.
func SelectionContext(selection []models.Product) string {
	if len(selection) == 0 {
		return ""
	}
	parts := make([]string, len(selection))
	for i, p := range selection {
		parts[i] = fmt.Sprintf("%s by %s (%s)", p.Name, p.Brand, p.Category)
	}
	return "\n\nSelected products: " + strings.Join(parts, ", ")
}

// RoutinePrompt is the fixed routine instruction embedding every product.
func RoutinePrompt(selection []models.Product) string {
	lines := make([]string, len(selection))
	for i, p := range selection {
		desc := p.Description
		if desc == "" {
			desc = noDescriptionFallback
		}
		lines[i] = fmt.Sprintf("%s by %s (%s) - %s", p.Name, p.Brand, p.Category, desc)
	}
	return "Please create a personalized skincare routine using these specific products:\n\n" +
		strings.Join(lines, "\n") +
		"\n\nProvide a step-by-step morning and evening routine with explanations for the order and benefits of each product."
}
