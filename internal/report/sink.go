// Package report writes finished aggregate records and derived event files.
//
// A Sink is created with its full column layout, so the header (and any
// refusal to overwrite an existing file) happens before a single input line
// is read.
package report

import (
	"errors"
	"fmt"
	"os"
	"strconv"
)

// ErrOutputExists is returned when a sink's target file is already present.
// Output files are never overwritten.
var ErrOutputExists = errors.New("output file already exists")

// Kind is the value type of a column.
type Kind int

const (
	KindString Kind = iota
	KindInt64
)

// Column describes one field of a record.
type Column struct {
	Name string
	Kind Kind
}

// StringColumn and Int64Column are shorthands for building layouts.
func StringColumn(name string) Column { return Column{Name: name, Kind: KindString} }
func Int64Column(name string) Column  { return Column{Name: name, Kind: KindInt64} }

// Names returns the column names in order.
func Names(cols []Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// Record is one row of values, positionally matching a sink's columns.
// Values are string, int, or int64.
type Record []any

// Sink accepts records in order. Write returns once the record has been
// handed to the underlying file.
type Sink interface {
	Write(rec Record) error
	Close() error
}

// Discard closes s and deletes the files it created. It is for sinks given
// up before any record was written, so that a retry finds a clean directory.
func Discard(s Sink) error {
	if r, ok := s.(interface{ Remove() error }); ok {
		return r.Remove()
	}
	return s.Close()
}

// createExclusive creates path for writing, failing if it already exists.
func createExclusive(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrOutputExists, path)
		}
		return nil, fmt.Errorf("failed to create output file %s: %w", path, err)
	}
	return f, nil
}

func checkArity(cols []Column, rec Record) error {
	if len(rec) != len(cols) {
		return fmt.Errorf("record has %d values, layout has %d columns", len(rec), len(cols))
	}
	return nil
}

func asInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	case int32:
		return int64(n), true
	}
	return 0, false
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	}
	if n, ok := asInt64(v); ok {
		return strconv.FormatInt(n, 10)
	}
	return fmt.Sprint(v)
}
