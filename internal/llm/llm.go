// Package llm provides text-completion clients for the intent parser and the
// reply generator. Both backends are reached through the Completer interface:
// a local Ollama server, or any OpenAI-compatible chat completions endpoint.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/tbourn/go-habit-mail/internal/config"
)

// Request is a single system+user chat completion.
type Request struct {
	Model       string
	System      string
	User        string
	Temperature float64
	// JSON asks the backend to constrain output to a JSON object.
	JSON bool
}

// Completer returns the assistant text for a request. Implementations must
// honor ctx cancellation and deadlines.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// New builds the Completer selected by cfg.Provider.
func New(cfg config.LLMConfig) (Completer, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "ollama":
		return NewOllama(cfg.BaseURL, nil)
	case "openai":
		return NewOpenAI(cfg.APIKey, cfg.BaseURL), nil
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
}
