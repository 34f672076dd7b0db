package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxMessageLength   = 2000
	MaxConfigKeyLength = 64
	MaxConfigValLength = 2000
	MaxCredentialLen   = 256
)

var configKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

// ValidConfigKey checks if a config key is safe
func ValidConfigKey(s string) bool {
	if s == "" || len(s) > MaxConfigKeyLength {
		return false
	}
	return configKeyPattern.MatchString(s)
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")

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

// ValidateLength checks the rune count is within bounds
func ValidateLength(s string, min, max int) bool {
	l := utf8.RuneCountInString(s)
	return l >= min && l <= max
}
