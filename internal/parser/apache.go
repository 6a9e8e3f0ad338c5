package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pearcec/kioskstats/internal/event"
)

const (
	typeKey = "type"
	timeKey = "time"
)

var eventRequest = regexp.MustCompile(`^.*event\.json\?(.*)&_=.*$`)

// ApacheParser extracts events from access-log lines requesting
// event.json?type=...&time=...&<params>&_=<cache buster>.
type ApacheParser struct {
	loc *time.Location
}

// NewApacheParser returns a parser that dates events in loc.
func NewApacheParser(loc *time.Location) *ApacheParser {
	return &ApacheParser{loc: loc}
}

func (p *ApacheParser) Parse(line string) (event.Event, error) {
	m := eventRequest.FindStringSubmatch(line)
	if m == nil || m[1] == "" {
		return event.Event{}, ErrMalformedLine
	}

	var (
		typ     string
		millis  int64 = -1
		params        = make(map[string]string)
	)
	for _, pair := range strings.Split(m[1], "&") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			continue
		}
		switch key {
		case typeKey:
			typ = value
		case timeKey:
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return event.Event{}, &NumberError{Field: timeKey, Value: value, Line: line, Err: err}
			}
			millis = n
		default:
			params[key] = value
		}
	}

	if typ == "" || millis < 0 {
		return event.Event{}, ErrMalformedLine
	}
	return event.New(typ, millis, params, p.loc), nil
}
