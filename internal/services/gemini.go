package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"advisor-backend/internal/models"
)

// GeminiCompleter answers turns with Gemini. The system message becomes the
// model's system instruction and assistant turns are replayed as "model".
type GeminiCompleter struct {
	client   *genai.Client
	model    *genai.GenerativeModel
	rateChan chan struct{} // Token bucket
}

func NewGeminiCompleter(apiKey, modelName string, params CompletionParams, concurrentReqs int) (*GeminiCompleter, error) {
	ctx := context.Background()
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(float32(params.Temperature))
	model.SetMaxOutputTokens(int32(params.MaxTokens))

	if concurrentReqs < 1 {
		concurrentReqs = 1
	}
	rateChan := make(chan struct{}, concurrentReqs)
	for i := 0; i < concurrentReqs; i++ {
		rateChan <- struct{}{}
	}

	return &GeminiCompleter{
		client:   client,
		model:    model,
		rateChan: rateChan,
	}, nil
}

func (s *GeminiCompleter) Close() {
	s.client.Close()
}

// acquireRate blocks until a rate slot is available
func (s *GeminiCompleter) acquireRate(ctx context.Context) error {
	select {
	case <-s.rateChan:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(5 * time.Minute):
		return fmt.Errorf("timeout waiting for Gemini rate slot")
	}
}

func (s *GeminiCompleter) releaseRate() {
	s.rateChan <- struct{}{}
}

func (s *GeminiCompleter) Complete(ctx context.Context, messages []models.Message) (string, error) {
	if err := s.acquireRate(ctx); err != nil {
		return "", &NetworkFault{Err: err}
	}
	defer s.releaseRate()

	system, history, last, err := toGeminiContents(messages)
	if err != nil {
		return "", err
	}

	// The model is shared; the system instruction is per call.
	model := *s.model
	model.SystemInstruction = system
	cs := model.StartChat()
	cs.History = history

	resp, err := cs.SendMessage(ctx, genai.Text(last))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	for i, cand := range resp.Candidates {
		if cand.FinishReason != genai.FinishReasonStop {
			log.Printf("Gemini candidate %d stopped due to %s", i, cand.FinishReason)
		}
	}

	text := extractText(resp)
	if strings.TrimSpace(text) == "" {
		return "", &ShapeFault{Reason: "Gemini returned no text candidates"}
	}
	return text, nil
}

// toGeminiContents splits the prompt context into a system instruction,
// replayed history and the final user text.
func toGeminiContents(messages []models.Message) (*genai.Content, []*genai.Content, string, error) {
	if len(messages) == 0 {
		return nil, nil, "", fmt.Errorf("no messages to send")
	}
	lastMsg := messages[len(messages)-1]
	if lastMsg.Role != models.RoleUser {
		return nil, nil, "", fmt.Errorf("last message must come from the user, got %q", lastMsg.Role)
	}

	var system *genai.Content
	var history []*genai.Content
	for _, m := range messages[:len(messages)-1] {
		switch m.Role {
		case models.RoleSystem:
			if system == nil {
				system = &genai.Content{Parts: []genai.Part{genai.Text(m.Content)}}
			} else {
				system.Parts = append(system.Parts, genai.Text(m.Content))
			}
		case models.RoleUser:
			history = append(history, &genai.Content{Role: "user", Parts: []genai.Part{genai.Text(m.Content)}})
		case models.RoleAssistant:
			history = append(history, &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(m.Content)}})
		}
	}
	return system, history, lastMsg.Content, nil
}

func classifyGeminiError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &ShapeFault{Reason: blocked.Error()}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return &StatusFault{StatusCode: apiErr.Code, Body: apiErr.Message}
	}
	return &NetworkFault{Err: fmt.Errorf("Gemini API error: %w", err)}
}

func extractText(resp *genai.GenerateContentResponse) string {
	var text strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content != nil {
			for _, part := range cand.Content.Parts {
				if t, ok := part.(genai.Text); ok {
					text.WriteString(string(t))
				}
			}
		}
	}
	return text.String()
}
