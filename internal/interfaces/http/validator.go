package http

import (
	"strings"
	"unicode/utf8"
)

// Input limits
const (
	MaxInboundTextLength = 4096
	MaxQueryParamLength  = 512
)

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	// Remove null bytes
	s = strings.ReplaceAll(s, "\x00", "")

	// Keep only valid UTF-8
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// TruncateString truncates to maxLen runes without splitting a character
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen])
}

// MaskSecret keeps the first and last two characters of a secret.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "***"
	}
	return s[:2] + strings.Repeat("*", 6) + s[len(s)-2:]
}

// CleanParam sanitizes and bounds a query parameter.
func CleanParam(s string) string {
	return TruncateString(strings.TrimSpace(SanitizeString(s)), MaxQueryParamLength)
}
