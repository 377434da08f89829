package ai

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// GroqProvider calls Groq's OpenAI-compatible chat completions API.
type GroqProvider struct {
	client *resty.Client
	model  string
}

// NewGroqProvider builds a provider for the given model. baseURL is
// overridable for tests; pass "" for the public endpoint.
func NewGroqProvider(apiKey, model, baseURL string) *GroqProvider {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+apiKey).
		SetTimeout(60 * time.Second)
	return &GroqProvider{client: c, model: model}
}

func (p *GroqProvider) Name() string { return "groq" }

func (p *GroqProvider) Complete(ctx context.Context, prompt string) (string, error) {
	req := map[string]any{
		"model": p.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"temperature": 0.3,
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(req).
		SetResult(&out).
		Post("/chat/completions")
	if err != nil {
		return "", fmt.Errorf("groq request: %w", err)
	}
	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("groq status %d", resp.StatusCode())
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("groq returned no choices")
	}
	return out.Choices[0].Message.Content, nil
}
