// Package parser turns free-text email into intents with a language model.
//
// The model is asked for JSON at temperature 0. Its output goes through an
// ordered repair chain (direct, fenced block, brace span), a shape recovery
// step that tolerates bare arrays and single objects, per-element decoding
// that drops unknown intent types, and finally Normalize.
//
// Observability: Parse is OpenTelemetry-instrumented; the span records the
// model, the repair strategy used and the number of intents produced.
package parser

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/llm"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 60 * time.Second

// Extraction stages reported by ExtractionError.
const (
	StageCompletion = "completion"
	StageRepair     = "repair"
)

// ExtractionError is returned when no intents could be extracted. It is
// always fatal for the message being processed.
type ExtractionError struct {
	Stage string
	// Raw is the model output, when one was received.
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	if e.Raw != "" {
		raw := e.Raw
		if len(raw) > 200 {
			raw = raw[:200]
		}
		return fmt.Sprintf("parser %s: %v: %s", e.Stage, e.Err, raw)
	}
	return fmt.Sprintf("parser %s: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Options are per-call parsing inputs.
type Options struct {
	// Model overrides Parser.Model when set.
	Model string
	// HabitNames are the user's active habits, used to expand phrases like
	// "everything" into one entry per habit.
	HabitNames []string
}

// Result is a successful extraction.
type Result struct {
	Intents intent.List
	Latency time.Duration
	Raw     string
	// Dropped lists elements that could not be decoded.
	Dropped []error
}

// Parser extracts intents through an llm.Completer.
type Parser struct {
	LLM     llm.Completer
	Model   string
	Timeout time.Duration
}

// New returns a Parser with the default timeout.
func New(c llm.Completer, model string) *Parser {
	return &Parser{LLM: c, Model: model, Timeout: DefaultTimeout}
}

// Parse extracts intents from text. Transport failures, timeouts and output
// that survives no repair strategy are reported as *ExtractionError; a
// successful call always returns at least one intent.
func (p *Parser) Parse(ctx context.Context, text string, opts Options) (Result, error) {
	model := p.Model
	if opts.Model != "" {
		model = opts.Model
	}

	tr := otel.Tracer("parser")
	ctx, span := tr.Start(ctx, "Parse",
		trace.WithAttributes(
			attribute.String("llm.model", model),
			attribute.Int("habits.count", len(opts.HabitNames)),
		),
	)
	defer span.End()

	timeout := p.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	raw, err := p.LLM.Complete(cctx, llm.Request{
		Model:       model,
		System:      SystemPrompt(opts.HabitNames),
		User:        text,
		Temperature: 0,
		JSON:        true,
	})
	latency := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return Result{}, &ExtractionError{Stage: StageCompletion, Err: err}
	}

	doc, via, err := extractJSON(raw)
	if err != nil {
		span.SetStatus(codes.Error, "malformed output")
		return Result{}, &ExtractionError{Stage: StageRepair, Raw: raw, Err: err}
	}

	res := Result{Latency: latency, Raw: raw}
	elems, ok := intentElements(doc)
	if ok {
		var list intent.List
		list, res.Dropped = intent.DecodeList(elems)
		for _, derr := range res.Dropped {
			log.Warn().Str("component", "parser").Err(derr).Msg("dropped intent")
		}
		res.Intents = Normalize(list)
	}
	if len(res.Intents) == 0 {
		res.Intents = intent.List{&intent.Greeting{}}
	}

	span.SetAttributes(
		attribute.String("parser.repair", via),
		attribute.Int("intents.count", len(res.Intents)),
		attribute.Int64("llm.latency_ms", latency.Milliseconds()),
	)
	return res, nil
}
