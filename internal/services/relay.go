package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"advisor-backend/internal/models"
)

// RelayClient calls the completion relay. The relay holds the provider
// credential; requests only name it through api_key_name.
type RelayClient struct {
	url        string
	apiKeyName string
	params     CompletionParams
	client     *http.Client
}

type relayRequest struct {
	Model       string           `json:"model"`
	Messages    []models.Message `json:"messages"`
	MaxTokens   int              `json:"max_tokens"`
	Temperature float64          `json:"temperature"`
	APIKeyName  string           `json:"api_key_name"`
}

type relayResponse struct {
	Choices []struct {
		Message *struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func NewRelayClient(url, apiKeyName string, params CompletionParams, timeout time.Duration) *RelayClient {
	return &RelayClient{
		url:        url,
		apiKeyName: apiKeyName,
		params:     params,
		client:     &http.Client{Timeout: timeout},
	}
}

func (c *RelayClient) Complete(ctx context.Context, messages []models.Message) (string, error) {
	body, err := json.Marshal(relayRequest{
		Model:       c.params.Model,
		Messages:    messages,
		MaxTokens:   c.params.MaxTokens,
		Temperature: c.params.Temperature,
		APIKeyName:  c.apiKeyName,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal relay request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", &NetworkFault{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &NetworkFault{Err: fmt.Errorf("failed to read relay response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Printf("Relay error response (status %d): %s", resp.StatusCode, raw)
		return "", &StatusFault{StatusCode: resp.StatusCode, Body: string(raw)}
	}

	return decodeRelayResponse(raw)
}

func decodeRelayResponse(raw []byte) (string, error) {
	var data relayResponse
	if err := json.Unmarshal(raw, &data); err != nil {
		return "", &ShapeFault{Reason: fmt.Sprintf("undecodable body: %v", err)}
	}
	if len(data.Choices) == 0 {
		return "", &ShapeFault{Reason: "missing choices"}
	}
	msg := data.Choices[0].Message
	if msg == nil {
		return "", &ShapeFault{Reason: "missing choices[0].message"}
	}
	if msg.Content == nil {
		return "", &ShapeFault{Reason: "missing choices[0].message.content"}
	}
	return *msg.Content, nil
}
