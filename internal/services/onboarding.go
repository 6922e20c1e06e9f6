package services

import (
	"fmt"
	"regexp"
	"strings"
)

var greetingStartRE = regexp.MustCompile(`^(hi|hey|hello|yo|sup)`)

// LooksLikeFirstMessage reports whether a new sender's text reads as an
// introduction rather than a check-in: a greeting, a question about the
// service, or a very short message.
func LooksLikeFirstMessage(text string) bool {
	lower := strings.ToLower(strings.TrimSpace(text))
	switch {
	case greetingStartRE.MatchString(lower):
		return true
	case strings.Contains(lower, "how does this work"), strings.Contains(lower, "what can you do"):
		return true
	case strings.Contains(lower, "sign up"), strings.Contains(lower, "get started"):
		return true
	}
	return len(lower) < 10
}

// Email is an outgoing message body.
type Email struct {
	Subject string
	Body    string
}

// WelcomeEmail is sent to a new sender whose first message is not a
// check-in. service is the product name shown to the user.
func WelcomeEmail(name, service string) Email {
	greeting := "Hey!"
	if n := strings.TrimSpace(name); n != "" {
		greeting = "Hey " + n + "!"
	}
	body := greeting + ` Thanks for reaching out.

I'm your habit tracking assistant. Here's how it works:

1. Tell me what habits you want to track. Just reply with something like "add stretching, add water 8 glasses, add multivitamin"
2. Each day, I'll send you a check-in reminder. Just reply with what you did: "water 6, stretched, took vitamin"
3. I remember everything: your streaks, your patterns, your personal bests

That's it. No app, no login, just email.

Reply with the habits you want to track and we'll get started.`
	return Email{Subject: fmt.Sprintf("Welcome to %s", service), Body: body}
}

// AugmentFirstCheckin wraps the reply to a new user's first check-in with a
// welcome.
func AugmentFirstCheckin(reply, service string) string {
	return fmt.Sprintf(`Welcome to %s! 🎉

%s

I'll remember everything you share with me. Just email whenever you're ready: daily, every other day, whatever works for you.`, service, reply)
}
