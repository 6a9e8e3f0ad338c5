// Package parser turns raw log lines into events.
package parser

import (
	"errors"
	"fmt"

	"github.com/pearcec/kioskstats/internal/event"
)

// ErrMalformedLine means the line does not have the expected shape. Such
// lines are skipped without comment.
var ErrMalformedLine = errors.New("malformed line")

// NumberError is returned when a numeric field cannot be parsed.
type NumberError struct {
	Field string
	Value string
	Line  string
	Err   error
}

func (e *NumberError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *NumberError) Unwrap() error { return e.Err }

// Parser parses a single line.
type Parser interface {
	Parse(line string) (event.Event, error)
}

// Format names an input format.
type Format string

const (
	FormatApache Format = "apache"
	FormatCSV    Format = "csv"
)
