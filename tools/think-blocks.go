package tools

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// StripThinkBlocks removes <think>...</think> sections reasoning models put
// in front of their answer. An unterminated block swallows the rest of the
// text.
func StripThinkBlocks(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	if idx := strings.Index(text, "<think>"); idx != -1 {
		text = text[:idx]
	}

	return strings.TrimSpace(text)
}

// Truncate cuts s to at most limit bytes without splitting a utf-8 rune.
func Truncate(s string, limit int) string {
	if limit <= 0 || len(s) <= limit {
		return s
	}

	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + "..."
}

