// Package errmsg renders errors for the terminal, surfacing the
// actionable suggestion carried by typed errors.
package errmsg

import (
	"errors"
	"strings"
)

// Suggester is implemented by errors that provide actionable guidance.
type Suggester interface {
	Suggestion() string
}

// Format renders err as the user-facing error text: the message first,
// then the suggestion from the outermost Suggester in the chain, if any.
func Format(err error) string {
	if err == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(err.Error())

	if s := SuggestionOf(err); s != "" {
		b.WriteString("\n")
		b.WriteString(s)
	}
	return b.String()
}

// SuggestionOf returns the suggestion of the outermost error in the
// chain that provides one, or an empty string.
func SuggestionOf(err error) string {
	var s Suggester
	if errors.As(err, &s) {
		return s.Suggestion()
	}
	return ""
}
