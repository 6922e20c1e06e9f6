package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
)

// DefaultOllamaURL is used when no base URL is configured.
const DefaultOllamaURL = "http://localhost:11434"

// Ollama talks to the /api/chat endpoint of an Ollama server.
type Ollama struct {
	client *api.Client
}

// NewOllama creates a client for baseURL. A nil hc uses http.DefaultClient.
func NewOllama(baseURL string, hc *http.Client) (*Ollama, error) {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOllamaURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("llm: invalid ollama url %q", baseURL)
	}
	if hc == nil {
		hc = http.DefaultClient
	}
	return &Ollama{client: api.NewClient(u, hc)}, nil
}

// Complete sends a non-streaming chat request and returns the trimmed reply.
func (o *Ollama) Complete(ctx context.Context, req Request) (string, error) {
	stream := false
	cr := &api.ChatRequest{
		Model: req.Model,
		Messages: []api.Message{
			{Role: "system", Content: req.System},
			{Role: "user", Content: req.User},
		},
		Stream: &stream,
		Options: map[string]any{
			"temperature": req.Temperature,
		},
	}
	if req.JSON {
		cr.Format = json.RawMessage(`"json"`)
	}

	var out strings.Builder
	err := o.client.Chat(ctx, cr, func(resp api.ChatResponse) error {
		out.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat (%s): %w", req.Model, err)
	}
	return strings.TrimSpace(out.String()), nil
}
