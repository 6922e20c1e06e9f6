// Package preparse answers short, formulaic replies ("yes", "hi", "help")
// without calling the language model.
//
// Matching is exact lookup against closed vocabularies after normalization.
// Anything that is not short, or not an exact member of a vocabulary, is
// deferred to the LLM parser by returning nil.
package preparse

import (
	"regexp"
	"strings"

	"github.com/tbourn/go-habit-mail/internal/intent"
)

const (
	maxShortChars = 20
	maxShortWords = 6
)

var (
	affirmWords = set(
		"yes", "yeah", "yep", "yup", "sure", "ok", "okay", "absolutely",
		"let's do it", "lets do it", "sounds good", "go ahead", "go for it",
		"do it", "please", "yes please",
	)
	declineWords = set(
		"no", "nah", "nope", "no thanks", "no thank you", "never mind",
		"nevermind", "skip that", "don't", "dont", "not now", "not right now",
		"maybe later", "pass",
	)
	greetingWords = set(
		"hey", "hi", "hello", "yo", "sup", "howdy", "good morning",
		"good evening", "gm", "morning", "skip", "off day", "day off",
	)
	helpWords = set(
		"help", "what can you do", "how does this work", "what is this",
		"commands", "options", "features",
	)
	helpPrefixes = []string{"how do i", "how can i"}

	trailingPunct = regexp.MustCompile(`[.!?]+$`)
	noiseOnly     = regexp.MustCompile(`^[.\-_~*]+$`)
)

// Parse returns the intents for a formulaic input, or nil when the input
// should go to the LLM parser.
func Parse(input string) intent.List {
	// A bare "?" is help; normalization would strip it.
	if strings.TrimSpace(input) == "?" {
		return intent.List{&intent.Help{}}
	}

	s := normalize(input)
	if s == "" || noiseOnly.MatchString(s) {
		return intent.List{&intent.Greeting{}}
	}
	if !isShort(s) {
		return nil
	}

	switch {
	case has(affirmWords, s):
		return intent.List{&intent.Affirm{}}
	case has(declineWords, s):
		return intent.List{&intent.Decline{}}
	case has(greetingWords, s):
		return intent.List{&intent.Greeting{}}
	case has(helpWords, s):
		return intent.List{&intent.Help{}}
	}
	for _, p := range helpPrefixes {
		if strings.HasPrefix(s, p) {
			return intent.List{&intent.Help{}}
		}
	}
	return nil
}

func normalize(s string) string {
	return trailingPunct.ReplaceAllString(strings.TrimSpace(strings.ToLower(s)), "")
}

// isShort reports whether s is eligible for heuristic matching.
func isShort(s string) bool {
	return len(s) <= maxShortChars || len(strings.Fields(s)) <= maxShortWords
}

func set(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func has(m map[string]struct{}, s string) bool {
	_, ok := m[s]
	return ok
}
