package report

import (
	"github.com/pearcec/kioskstats/internal/event"
)

// EventLogColumns is the layout of an extracted event log. The same layout
// is read back by the CSV line parser.
var EventLogColumns = []Column{
	Int64Column("date"),
	Int64Column("time"),
	StringColumn("type"),
	StringColumn("param"),
}

// EventLogWriter writes one CSV line per event.
type EventLogWriter struct {
	sink        *CSVSink
	stringifier Stringifier
}

// NewEventLogWriter creates the event log at path.
func NewEventLogWriter(path string, s Stringifier) (*EventLogWriter, error) {
	sink, err := NewCSVSink(path, EventLogColumns)
	if err != nil {
		return nil, err
	}
	return &EventLogWriter{sink: sink, stringifier: s}, nil
}

// WriteEvent appends ev to the log.
func (w *EventLogWriter) WriteEvent(ev event.Event) error {
	return w.sink.Write(Record{ev.DateMillis(), ev.TimeMillis(), ev.Type(), w.stringifier.Stringify(ev)})
}

func (w *EventLogWriter) Close() error {
	return w.sink.Close()
}
