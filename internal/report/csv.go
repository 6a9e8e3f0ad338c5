package report

import (
	"encoding/csv"
	"fmt"
	"os"
)

// CSVSink writes records as comma-separated lines under a header line. Each
// record is flushed to the file before Write returns.
type CSVSink struct {
	path string
	cols []Column
	f    *os.File
	w    *csv.Writer
}

// NewCSVSink creates path and writes the header. It fails with
// ErrOutputExists if the file is already there.
func NewCSVSink(path string, cols []Column) (*CSVSink, error) {
	f, err := createExclusive(path)
	if err != nil {
		return nil, err
	}
	s := &CSVSink{path: path, cols: cols, f: f, w: csv.NewWriter(f)}
	if err := s.writeRow(Names(cols)); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// Path returns the file being written.
func (s *CSVSink) Path() string { return s.path }

func (s *CSVSink) Write(rec Record) error {
	if err := checkArity(s.cols, rec); err != nil {
		return fmt.Errorf("csv output %s: %w", s.path, err)
	}
	row := make([]string, len(rec))
	for i, v := range rec {
		row[i] = formatValue(v)
	}
	return s.writeRow(row)
}

func (s *CSVSink) writeRow(row []string) error {
	if err := s.w.Write(row); err != nil {
		return fmt.Errorf("csv output %s: write: %w", s.path, err)
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return fmt.Errorf("csv output %s: flush: %w", s.path, err)
	}
	return nil
}

// Remove closes the file and deletes it.
func (s *CSVSink) Remove() error {
	_ = s.f.Close()
	if err := os.Remove(s.path); err != nil {
		return fmt.Errorf("csv output %s: remove: %w", s.path, err)
	}
	return nil
}

func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.f.Close()
		return fmt.Errorf("csv output %s: flush: %w", s.path, err)
	}
	return s.f.Close()
}
