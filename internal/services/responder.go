package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-habit-mail/internal/executor"
	"github.com/tbourn/go-habit-mail/internal/llm"
)

// ResponseSystemPrompt constrains the reply to the facts in the context.
const ResponseSystemPrompt = `You are a friendly habit tracking assistant. Respond to the user based ONLY on the structured context below.

CRITICAL: NEVER FABRICATE DATA
- ONLY reference numbers, streaks, averages, or trends that appear in the structured context
- If the context says "No historical data" or "First check-in", do NOT invent past performance
- If there are no weekly/monthly stats, do NOT make them up
- If you're unsure about a number, don't mention it at all
- NEVER say things like "you've been consistent" or "that's a full week" unless the data explicitly shows it

Rules:
- Acknowledge what the user just reported, that's it
- If the message isn't a check-in (it's a question, greeting, or general chat), respond conversationally without inventing habit data
- If the user asks off-topic questions (weather, personal questions, data exports), politely redirect: you only track habits. Don't ignore the questions silently.
- Keep it under 150 words
- Be warm but not saccharine, like a friend who actually cares
- Don't ask about unreported habits. If they didn't mention it, move on.
- Don't ask "is everything okay?" or "did something come up?". No concern-checking.
- Never frame something as a decline or disappointment
- When a CRUD action happened (add/remove habit), confirm ALL changes with personality, not just a robotic list
- When answering queries, reference ALL habits and their current status from the context, not just one
- If the user corrects you, acknowledge the correction gracefully
- If multiple actions happened (shown in WHAT JUST HAPPENED), acknowledge each one. Don't silently skip any.
- If there is a PENDING SUGGESTION, ask the user to confirm it with a yes or no
- One emoji max
- No signoff`

// DefaultResponseTimeout bounds one reply generation.
const DefaultResponseTimeout = 60 * time.Second

// Responder writes the reply from a structured context.
type Responder struct {
	LLM         llm.Completer
	Model       string
	Temperature float64
	Timeout     time.Duration
}

// NewResponder returns a Responder with the default temperature and timeout.
func NewResponder(c llm.Completer, model string) *Responder {
	return &Responder{LLM: c, Model: model, Temperature: 0.7, Timeout: DefaultResponseTimeout}
}

// Respond generates the reply text for structuredContext.
func (r *Responder) Respond(ctx context.Context, structuredContext string) (string, error) {
	tr := otel.Tracer("services/Responder")
	ctx, span := tr.Start(ctx, "Respond",
		trace.WithAttributes(
			attribute.String("llm.model", r.Model),
			attribute.Int("context.len", len(structuredContext)),
		),
	)
	defer span.End()

	timeout := r.Timeout
	if timeout <= 0 {
		timeout = DefaultResponseTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	out, err := r.LLM.Complete(cctx, llm.Request{
		Model:       r.Model,
		System:      ResponseSystemPrompt,
		User:        structuredContext,
		Temperature: r.Temperature,
	})
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", ErrEmptyReply
	}
	return out, nil
}

// FallbackReply is a plain acknowledgement built from execution results,
// used when the response generator is unavailable after the store has
// already been changed.
func FallbackReply(results []executor.Result) string {
	var done, failed []string
	for _, r := range results {
		switch {
		case r.Success && isMutation(r.Action):
			done = append(done, "- "+r.Detail)
		case !r.Success:
			failed = append(failed, "- "+r.Detail)
		}
	}
	var b strings.Builder
	if len(done) == 0 && len(failed) == 0 {
		b.WriteString("Got your message, thanks! Reply with what you did today and I'll log it.")
		return b.String()
	}
	if len(done) > 0 {
		b.WriteString("Got it! Here's what I logged:\n")
		b.WriteString(strings.Join(done, "\n"))
	}
	if len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("A few things I couldn't do:\n")
		b.WriteString(strings.Join(failed, "\n"))
	}
	return b.String()
}
