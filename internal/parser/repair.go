package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrMalformedOutput means no repair strategy produced valid JSON.
var ErrMalformedOutput = errors.New("model output is not valid JSON")

// strategy tries to pull a JSON document out of raw model output.
type strategy struct {
	name    string
	extract func(raw string) (json.RawMessage, bool)
}

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// repairChain is tried in order; the first strategy that yields valid JSON
// wins.
var repairChain = []strategy{
	{name: "direct", extract: directJSON},
	{name: "fenced", extract: fencedJSON},
	{name: "brace_span", extract: braceSpanJSON},
}

func directJSON(raw string) (json.RawMessage, bool) {
	return validJSON(raw)
}

func fencedJSON(raw string) (json.RawMessage, bool) {
	m := fenceRe.FindStringSubmatch(raw)
	if m == nil {
		return nil, false
	}
	return validJSON(m[1])
}

// braceSpanJSON takes everything from the first '{' to the last '}'.
func braceSpanJSON(raw string) (json.RawMessage, bool) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return nil, false
	}
	return validJSON(raw[start : end+1])
}

func validJSON(s string) (json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if s == "" || !json.Valid([]byte(s)) {
		return nil, false
	}
	return json.RawMessage(s), true
}

// extractJSON runs the repair chain and reports which strategy succeeded.
func extractJSON(raw string) (json.RawMessage, string, error) {
	for _, s := range repairChain {
		if doc, ok := s.extract(raw); ok {
			return doc, s.name, nil
		}
	}
	return nil, "", ErrMalformedOutput
}

// intentElements recovers the list of intent objects from whatever shape
// the model produced. ok is false when nothing usable was found and the
// caller should fall back to a greeting.
func intentElements(doc json.RawMessage) (elems []json.RawMessage, ok bool) {
	doc = bytes.TrimSpace(doc)
	if len(doc) == 0 {
		return nil, false
	}
	switch doc[0] {
	case '[':
		if err := json.Unmarshal(doc, &elems); err != nil {
			return nil, false
		}
		return elems, true
	case '{':
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(doc, &obj); err != nil {
			return nil, false
		}
		if arr, has := obj["intents"]; has {
			if err := json.Unmarshal(arr, &elems); err == nil && elems != nil {
				return elems, true
			}
		}
		if _, has := obj["type"]; has {
			return []json.RawMessage{doc}, true
		}
	}
	return nil, false
}
