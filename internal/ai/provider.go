package ai

import (
	"context"
	"encoding/json"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SchemaSpec names a strict JSON schema the completion must conform to.
type SchemaSpec struct {
	Name   string
	Schema json.RawMessage
}

type ChatRequest struct {
	Messages    []Message
	Temperature float64
	// Schema, when set, requests strict structured output. The returned
	// string is then the raw JSON document.
	Schema *SchemaSpec
}

// Provider is the single text-completion capability the application consumes.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (string, error)
}

// StatusError carries the HTTP status and (truncated) body of a failed
// provider call so callers can record it in diagnostics.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

type ImageRequest struct {
	Prompt string
	Size   string
}

// ImageResult holds exactly one generated image, inline or by reference.
type ImageResult struct {
	B64 string
	URL string
}

type ImageProvider interface {
	Generate(ctx context.Context, req ImageRequest) (*ImageResult, error)
}
