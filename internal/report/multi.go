package report

import "errors"

// MultiSink fans records out to several sinks. A failing sink does not stop
// delivery to the others; all errors are joined.
type MultiSink struct {
	sinks []Sink
}

// NewMultiSink creates a MultiSink over sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks}
}

func (m *MultiSink) Write(rec Record) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Remove discards every underlying sink.
func (m *MultiSink) Remove() error {
	var errs []error
	for _, s := range m.sinks {
		if err := Discard(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiSink) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
