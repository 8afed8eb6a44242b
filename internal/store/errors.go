package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an id references nothing.
var ErrNotFound = errors.New("not found")

// ContentTooLargeError is returned when a note's content exceeds the
// configured size bound.
type ContentTooLargeError struct {
	Size  int
	Limit int
}

func (e *ContentTooLargeError) Error() string {
	return fmt.Sprintf("content too large: %d bytes (limit %d)", e.Size, e.Limit)
}

// QuerySyntaxError is returned when a recall query cannot be handed to the
// full-text index. It carries the offending token and a cleaned alternative
// the caller may choose to retry with; the store never retries on its own.
type QuerySyntaxError struct {
	Token      string
	Suggestion string
}

func (e *QuerySyntaxError) Error() string {
	return fmt.Sprintf("query syntax error near %q (suggestion: %q)", e.Token, e.Suggestion)
}
