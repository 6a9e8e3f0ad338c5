package report

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/pearcec/kioskstats/internal/event"
)

// ChannelWriter writes a BodyTrack-style time series for one event type:
//
//	[{"channel_names":["idle-state"], "data":[
//	[1331741400.123,1],
//	[]
//	]}]
//
// Every data point is followed by a comma, so the array ends with an empty
// point.
type ChannelWriter struct {
	path  string
	f     *os.File
	w     *bufio.Writer
	value Stringifier
	count int
}

// NewChannelWriter creates path and writes the channel preamble.
func NewChannelWriter(path, channel string, value Stringifier) (*ChannelWriter, error) {
	f, err := createExclusive(path)
	if err != nil {
		return nil, err
	}
	name, err := json.Marshal(channel)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("channel output %s: %w", path, err)
	}

	cw := &ChannelWriter{path: path, f: f, w: bufio.NewWriter(f), value: value}
	fmt.Fprintf(cw.w, "[{\"channel_names\":[%s], \"data\":[\n", name)
	if err := cw.w.Flush(); err != nil {
		f.Close()
		return nil, fmt.Errorf("channel output %s: write: %w", path, err)
	}
	return cw, nil
}

// WriteEvent appends a data point at the event time, in seconds.
func (cw *ChannelWriter) WriteEvent(ev event.Event) error {
	seconds := strconv.FormatFloat(float64(ev.TimeMillis())/1000.0, 'f', -1, 64)
	fmt.Fprintf(cw.w, "[%s,%s],\n", seconds, jsonScalar(cw.value.Stringify(ev)))
	if err := cw.w.Flush(); err != nil {
		return fmt.Errorf("channel output %s: write: %w", cw.path, err)
	}
	cw.count++
	return nil
}

// Count returns the number of data points written.
func (cw *ChannelWriter) Count() int { return cw.count }

func (cw *ChannelWriter) Close() error {
	cw.w.WriteString("[]\n]}]\n")
	if err := cw.w.Flush(); err != nil {
		cw.f.Close()
		return fmt.Errorf("channel output %s: flush: %w", cw.path, err)
	}
	return cw.f.Close()
}

var jsonNumber = regexp.MustCompile(`^-?(0|[1-9]\d*)(\.\d+)?([eE][+-]?\d+)?$`)

// jsonScalar emits numeric values bare and anything else as a JSON string.
func jsonScalar(v string) string {
	if v == "" {
		return "null"
	}
	if jsonNumber.MatchString(v) {
		return v
	}
	quoted, _ := json.Marshal(v)
	return string(quoted)
}
