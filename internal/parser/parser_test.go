package parser

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/go-habit-mail/internal/intent"
	"github.com/tbourn/go-habit-mail/internal/llm"
)

type fakeCompleter struct {
	out  string
	err  error
	got  llm.Request
	wait bool
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	f.got = req
	if f.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return f.out, f.err
}

func TestParse_RequestShape(t *testing.T) {
	fc := &fakeCompleter{out: `{"intents":[{"type":"greeting"}]}`}
	p := New(fc, "llama3.1:8b")

	_, err := p.Parse(context.Background(), "hello there", Options{HabitNames: []string{"water", "yoga"}})
	require.NoError(t, err)

	assert.Equal(t, "llama3.1:8b", fc.got.Model)
	assert.Equal(t, "hello there", fc.got.User)
	assert.Zero(t, fc.got.Temperature)
	assert.True(t, fc.got.JSON)
	assert.Contains(t, fc.got.System, "=== USER'S ACTIVE HABITS ===\nwater, yoga")

	_, err = p.Parse(context.Background(), "hi", Options{Model: "other"})
	require.NoError(t, err)
	assert.Equal(t, "other", fc.got.Model)
	assert.NotContains(t, fc.got.System, "ACTIVE HABITS")
}

func TestParse_NegationScenario(t *testing.T) {
	fc := &fakeCompleter{out: `{"intents":[{"type":"checkin","entries":[
		{"habit":"Pullups","status":"skip"},
		{"habit":"vitamins ","done":false}
	]}]}`}
	p := New(fc, "m")

	res, err := p.Parse(context.Background(), "no pullups or vitamins", Options{HabitNames: []string{"pullups", "vitamins", "water"}})
	require.NoError(t, err)
	require.Len(t, res.Intents, 1)

	c, ok := res.Intents[0].(*intent.Checkin)
	require.True(t, ok)
	require.Len(t, c.Entries, 2)
	assert.Equal(t, "pullups", c.Entries[0].Habit)
	assert.Equal(t, intent.StatusSkip, c.Entries[0].Status)
	assert.Equal(t, "vitamins", c.Entries[1].Habit)
	assert.Equal(t, intent.StatusSkip, c.Entries[1].Status)
	for _, e := range c.Entries {
		assert.NotEqual(t, "water", e.Habit)
	}
}

func TestParse_RepairChainAndShapes(t *testing.T) {
	cases := []struct {
		name string
		out  string
		want []intent.Type
	}{
		{"direct", `{"intents":[{"type":"help"}]}`, []intent.Type{intent.TypeHelp}},
		{"fenced", "Sure!\n```json\n{\"intents\":[{\"type\":\"affirm\"}]}\n```", []intent.Type{intent.TypeAffirm}},
		{"brace span", `Here you go: {"intents":[{"type":"decline"}]} hope that helps`, []intent.Type{intent.TypeDecline}},
		{"top-level array", `[{"type":"help"},{"type":"greeting"}]`, []intent.Type{intent.TypeHelp, intent.TypeGreeting}},
		{"single object", `{"type":"query","question":"how am I doing?"}`, []intent.Type{intent.TypeQuery}},
		{"unusable object", `{"foo":1}`, []intent.Type{intent.TypeGreeting}},
		{"empty intents", `{"intents":[]}`, []intent.Type{intent.TypeGreeting}},
		{"unknown type dropped", `{"intents":[{"type":"dance"},{"type":"help"}]}`, []intent.Type{intent.TypeHelp}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := New(&fakeCompleter{out: tc.out}, "m")
			res, err := p.Parse(context.Background(), "x", Options{})
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Intents.Types())
			assert.Equal(t, tc.out, res.Raw)
		})
	}
}

func TestParse_UnknownTypeIsReported(t *testing.T) {
	p := New(&fakeCompleter{out: `{"intents":[{"type":"dance"}]}`}, "m")
	res, err := p.Parse(context.Background(), "x", Options{})
	require.NoError(t, err)
	require.Len(t, res.Dropped, 1)
	assert.ErrorIs(t, res.Dropped[0], intent.ErrUnknownType)
}

func TestParse_MalformedOutput(t *testing.T) {
	for _, out := range []string{"", "I cannot help with that", "{not json at all"} {
		p := New(&fakeCompleter{out: out}, "m")
		_, err := p.Parse(context.Background(), "x", Options{})

		var xe *ExtractionError
		require.True(t, errors.As(err, &xe), "output %q: %v", out, err)
		assert.Equal(t, StageRepair, xe.Stage)
		assert.ErrorIs(t, err, ErrMalformedOutput)
	}
}

func TestParse_CompletionFailures(t *testing.T) {
	boom := errors.New("connection refused")
	p := New(&fakeCompleter{err: boom}, "m")
	_, err := p.Parse(context.Background(), "x", Options{})

	var xe *ExtractionError
	require.True(t, errors.As(err, &xe))
	assert.Equal(t, StageCompletion, xe.Stage)
	assert.ErrorIs(t, err, boom)

	slow := &Parser{LLM: &fakeCompleter{wait: true}, Model: "m", Timeout: 20 * time.Millisecond}
	start := time.Now()
	_, err = slow.Parse(context.Background(), "x", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExtractionError_Message(t *testing.T) {
	long := strings.Repeat("x", 500)
	e := &ExtractionError{Stage: StageRepair, Raw: long, Err: ErrMalformedOutput}
	assert.Less(t, len(e.Error()), 300)
	assert.Contains(t, (&ExtractionError{Stage: StageCompletion, Err: errors.New("down")}).Error(), "completion: down")
}
