// Package textutil normalizes and validates free text coming from users and
// from the AI webhook before it is stored as a suggestion or comment.
package textutil

import (
	"errors"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxLength is the maximum number of characters a suggestion or comment may hold.
const MaxLength = 500

var (
	ErrEmptyText   = errors.New("text cannot be empty")
	ErrTextTooLong = errors.New("text is too long")
	ErrInvalidText = errors.New("text contains control characters")
)

const codeFence = "```"

var quotePairs = map[rune]rune{
	'"':  '"',
	'\'': '\'',
	'`':  '`',
	'“':  '”',
	'‘':  '’',
	'«':  '»',
}

// Sanitize strips code fences and surrounding quotes, collapses horizontal
// whitespace and trims. It runs until the text stops changing, so applying it
// twice gives the same result as applying it once.
func Sanitize(s string) string {
	for {
		next := sanitizeOnce(s)
		if next == s {
			return s
		}
		s = next
	}
}

// Validate reports whether already sanitized text can be stored. Control
// characters other than tab and line breaks are rejected; Postgres refuses
// NUL in text columns.
func Validate(s string) error {
	if s == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(s) > MaxLength {
		return ErrTextTooLong
	}
	if hasControl(s) {
		return ErrInvalidText
	}
	return nil
}

// Clean sanitizes then validates.
func Clean(s string) (string, error) {
	s = Sanitize(s)
	if err := Validate(s); err != nil {
		return "", err
	}
	return s, nil
}

// CleanPlain trims and validates text typed by a person. Quotes and fences
// are part of what they wrote and are kept.
func CleanPlain(s string) (string, error) {
	s = strings.TrimSpace(s)
	if err := Validate(s); err != nil {
		return "", err
	}
	return s, nil
}

func hasControl(s string) bool {
	for _, r := range s {
		switch r {
		case '\n', '\r', '\t':
			continue
		}
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

func sanitizeOnce(s string) string {
	s = strings.TrimSpace(s)
	s = stripCodeFence(s)
	s = strings.TrimSpace(s)
	s = stripQuotes(s)
	s = collapseHorizontalSpace(s)
	return strings.TrimSpace(s)
}

// stripCodeFence removes a leading ``` (with an optional language tag on the
// same line) and a trailing ```.
func stripCodeFence(s string) string {
	if strings.HasPrefix(s, codeFence) {
		s = strings.TrimPrefix(s, codeFence)
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && isLanguageTag(s[:nl]) {
			s = s[nl+1:]
		}
		s = strings.TrimSpace(s)
	}
	if strings.HasSuffix(s, codeFence) {
		s = strings.TrimSuffix(s, codeFence)
		s = strings.TrimSpace(s)
	}
	return s
}

func isLanguageTag(s string) bool {
	s = strings.TrimSpace(s)
	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-' && r != '_' && r != '+' {
			return false
		}
	}
	return true
}

func stripQuotes(s string) string {
	runes := []rune(s)
	if len(runes) < 2 {
		return s
	}
	closing, ok := quotePairs[runes[0]]
	if !ok || runes[len(runes)-1] != closing {
		return s
	}
	return string(runes[1 : len(runes)-1])
}

func isHorizontalSpace(r rune) bool {
	return r == ' ' || r == '\t' || unicode.Is(unicode.Zs, r)
}

func collapseHorizontalSpace(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	inRun := false
	for _, r := range s {
		if isHorizontalSpace(r) {
			if !inRun {
				b.WriteByte(' ')
				inRun = true
			}
			continue
		}
		inRun = false
		b.WriteRune(r)
	}
	return b.String()
}
