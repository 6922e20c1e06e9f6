package preparse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/tbourn/go-habit-mail/internal/intent"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func single(t *testing.T, in string) intent.Type {
	t.Helper()
	got := Parse(in)
	require.Len(t, got, 1, "input %q", in)
	return got[0].Type()
}

func TestParse_VocabulariesMapToTheirIntent(t *testing.T) {
	cases := []struct {
		words map[string]struct{}
		want  intent.Type
	}{
		{affirmWords, intent.TypeAffirm},
		{declineWords, intent.TypeDecline},
		{greetingWords, intent.TypeGreeting},
		{helpWords, intent.TypeHelp},
	}
	for _, c := range cases {
		for w := range c.words {
			assert.Equal(t, c.want, single(t, w), "word %q", w)
		}
	}
}

func TestParse_VocabulariesAreDisjoint(t *testing.T) {
	all := []map[string]struct{}{affirmWords, declineWords, greetingWords, helpWords}
	seen := map[string]int{}
	for i, m := range all {
		for w := range m {
			if j, dup := seen[w]; dup {
				t.Fatalf("%q appears in vocabularies %d and %d", w, j, i)
			}
			seen[w] = i
		}
	}
}

func TestParse_Normalization(t *testing.T) {
	tests := []struct {
		in   string
		want intent.Type
	}{
		{"YES", intent.TypeAffirm},
		{"Yes!", intent.TypeAffirm},
		{"Okay.", intent.TypeAffirm},
		{"  sounds good!!  ", intent.TypeAffirm},
		{"Nope.", intent.TypeDecline},
		{"Hi!", intent.TypeGreeting},
		{"Help?", intent.TypeHelp},
		{"?", intent.TypeHelp},
		{"  ?  ", intent.TypeHelp},
		{"", intent.TypeGreeting},
		{"   ", intent.TypeGreeting},
		{"...", intent.TypeGreeting},
		{"-", intent.TypeGreeting},
		{"~*~", intent.TypeGreeting},
		{"How do I add a habit?", intent.TypeHelp},
		{"how can i remove something", intent.TypeHelp},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, single(t, tt.in), "input %q", tt.in)
	}
}

func TestParse_DefersToModel(t *testing.T) {
	for _, in := range []string{
		"banana",
		"no water today",
		"water 8",
		"yes I drank water and did pullups",
		"did pullups, no vitamins",
		"hello there friend, I took my vitamins and drank 8 glasses of water",
	} {
		assert.Nil(t, Parse(in), "input %q should defer", in)
	}
}

func TestParse_LongInputNeverMatches(t *testing.T) {
	// Over six words and over 20 characters: not eligible even with a help prefix.
	assert.Nil(t, Parse("how do i track my water intake every day please"))
}

func TestIsShort(t *testing.T) {
	assert.True(t, isShort("twenty chars exactly"))
	assert.True(t, isShort("a fairly long sentence of six"))
	assert.False(t, isShort("one two three four five six seven"))
}
