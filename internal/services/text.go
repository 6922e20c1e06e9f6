package services

import (
	"regexp"
	"strings"
)

var (
	wroteHeaderRE = regexp.MustCompile(`(?i)^On .+ wrote:$`)
	dividerRE     = regexp.MustCompile(`^-{3,}`)
	replyPrefixRE = regexp.MustCompile(`(?i)^(Re|Fwd):`)
)

// StripQuotedText cuts an email body at the first line of quoted history: an
// "On ... wrote:" header, a line starting with '>', or a "---" divider.
func StripQuotedText(body string) string {
	lines := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		t := strings.TrimSpace(line)
		if wroteHeaderRE.MatchString(t) || strings.HasPrefix(t, ">") || dividerRE.MatchString(t) {
			break
		}
		kept = append(kept, line)
	}
	return strings.TrimSpace(strings.Join(kept, "\n"))
}

// CombineInput picks the text to interpret. A fresh thread with a short body
// may carry its intent in the subject, so both are joined; replies use the
// body alone since their subject is threading metadata. An empty body always
// falls back to the subject.
func CombineInput(subject, body string) string {
	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if !IsReplySubject(subject) && len(body) < 10 {
		parts := make([]string, 0, 2)
		for _, p := range []string{subject, body} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		return strings.TrimSpace(strings.Join(parts, ". "))
	}
	if body != "" {
		return body
	}
	return subject
}

// IsReplySubject reports whether subject starts with "Re:" or "Fwd:".
func IsReplySubject(subject string) bool {
	return replyPrefixRE.MatchString(strings.TrimSpace(subject))
}

// ReplySubject prefixes subject with "Re: " unless it already has it.
func ReplySubject(subject string) string {
	if strings.HasPrefix(subject, "Re:") {
		return subject
	}
	return "Re: " + subject
}
