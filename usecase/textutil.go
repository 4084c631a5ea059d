package usecase

import "strings"

// StripCodeFence removes a surrounding Markdown code fence, with or without
// a language tag, and trims whitespace
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		// Drop the language tag line
		if tag := strings.TrimSpace(s[:i]); !strings.ContainsAny(tag, " {[\"") {
			s = s[i+1:]
		}
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
