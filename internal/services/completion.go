package services

import (
	"context"
	"errors"
	"fmt"

	"advisor-backend/internal/models"
)

// Completer turns the full prompt context into the assistant's next reply.
type Completer interface {
	Complete(ctx context.Context, messages []models.Message) (string, error)
}

// CompletionParams are the fixed model parameters sent with every call.
type CompletionParams struct {
	Model       string
	MaxTokens   int
	Temperature float64
}

// NetworkFault: the request itself failed (dial, TLS, timeout, cancellation).
type NetworkFault struct{ Err error }

func (e *NetworkFault) Error() string { return fmt.Sprintf("completion request failed: %v", e.Err) }
func (e *NetworkFault) Unwrap() error { return e.Err }

// StatusFault: the endpoint answered with a non-success status.
type StatusFault struct {
	StatusCode int
	Body       string
}

func (e *StatusFault) Error() string {
	return fmt.Sprintf("completion API error (status %d): %s", e.StatusCode, e.Body)
}

// ShapeFault: the response decoded but lacks choices[0].message.content.
type ShapeFault struct{ Reason string }

func (e *ShapeFault) Error() string { return "invalid response structure from API: " + e.Reason }

// IsFault reports whether err is one of the three completion fault kinds.
func IsFault(err error) bool {
	var nf *NetworkFault
	var sf *StatusFault
	var shf *ShapeFault
	return errors.As(err, &nf) || errors.As(err, &sf) || errors.As(err, &shf)
}

// FaultKind names the fault for logs.
func FaultKind(err error) string {
	var nf *NetworkFault
	var sf *StatusFault
	var shf *ShapeFault
	switch {
	case errors.As(err, &shf):
		return "shape"
	case errors.As(err, &sf):
		return "status"
	case errors.As(err, &nf):
		return "network"
	}
	return "unknown"
}
