// internal/adapter/llm/gemma.go

package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// ErrNotConfigured is returned when no API key was provided
var ErrNotConfigured = errors.New("language model is not configured")

// GemmaResponder answers agent panel questions with a Gemma model
type GemmaResponder struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGemmaResponder creates a responder for model. An empty API key yields
// ErrNotConfigured so callers can fall back to a disabled responder.
func NewGemmaResponder(ctx context.Context, apiKey, model string, timeout time.Duration) (*GemmaResponder, error) {
	if apiKey == "" {
		return nil, ErrNotConfigured
	}

	if model == "" {
		model = "gemma-3-27b-it"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GemmaResponder{
		client:  client,
		model:   model,
		timeout: timeout,
	}, nil
}

// Answer sends prompt as a single user turn and returns the model's text
func (r *GemmaResponder) Answer(ctx context.Context, prompt string) (string, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := r.client.Models.GenerateContent(ctx, r.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("GenAI generate failed: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned no text")
	}
	return text, nil
}

// DisabledResponder reports that no model is available
type DisabledResponder struct{}

// Answer always fails with ErrNotConfigured
func (DisabledResponder) Answer(context.Context, string) (string, error) {
	return "", ErrNotConfigured
}
