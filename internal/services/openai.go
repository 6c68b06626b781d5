package services

import (
	"context"
	"errors"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"

	"advisor-backend/internal/models"
)

// OpenAICompleter talks to any OpenAI-compatible chat completions server
// (llama.cpp, vLLM, one-api gateways). The base URL must include /v1.
type OpenAICompleter struct {
	client openai.Client
	params CompletionParams
}

func NewOpenAICompleter(baseURL, apiKey string, params CompletionParams) *OpenAICompleter {
	client := openai.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	)
	return &OpenAICompleter{client: client, params: params}
}

func (c *OpenAICompleter) Complete(ctx context.Context, messages []models.Message) (string, error) {
	chatCompletion, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages:    toOpenAIMessages(messages),
		Model:       shared.ChatModel(c.params.Model),
		MaxTokens:   openai.Int(int64(c.params.MaxTokens)),
		Temperature: openai.Float(c.params.Temperature),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", &StatusFault{StatusCode: apiErr.StatusCode, Body: apiErr.Error()}
		}
		return "", &NetworkFault{Err: err}
	}

	if len(chatCompletion.Choices) == 0 {
		return "", &ShapeFault{Reason: "missing choices"}
	}
	return chatCompletion.Choices[0].Message.Content, nil
}

func toOpenAIMessages(messages []models.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case models.RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
