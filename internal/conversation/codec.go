// Package conversation holds the resumable state of multi-step chat flows.
//
// A flow's collected fields are stored as a single tagged string. The tag and
// separator use characters that validated user input never contains, so a stored
// context can always be told apart from ordinary text and decoded exactly.
package conversation

import (
	"errors"
	"fmt"
	"strings"
)

const (
	tagOpen   = "⟦ctx"
	tagClose  = "⟧"
	separator = "␟"
)

var ErrReservedCharacter = errors.New("field contains a reserved character")

// Encode joins fields into a tagged context string.
func Encode(fields []string) (string, error) {
	var b strings.Builder
	b.WriteString(tagOpen)
	for i, field := range fields {
		if HasReserved(field) {
			return "", fmt.Errorf("field %d: %w", i, ErrReservedCharacter)
		}
		b.WriteString(separator)
		b.WriteString(field)
	}
	b.WriteString(tagClose)
	return b.String(), nil
}

// Decode finds the first context tag in text and returns its fields.
// ok is false when no well-formed tag is present.
func Decode(text string) (fields []string, ok bool) {
	start := strings.Index(text, tagOpen)
	if start < 0 {
		return nil, false
	}
	rest := text[start+len(tagOpen):]
	end := strings.Index(rest, tagClose)
	if end < 0 {
		return nil, false
	}
	inner := rest[:end]
	if strings.Contains(inner, "⟦") {
		return nil, false
	}
	if inner == "" {
		return []string{}, true
	}
	if !strings.HasPrefix(inner, separator) {
		return nil, false
	}
	return strings.Split(inner[len(separator):], separator), true
}

// HasReserved reports whether s contains any character used by the tag format.
func HasReserved(s string) bool {
	return strings.ContainsAny(s, "⟦⟧␟")
}
