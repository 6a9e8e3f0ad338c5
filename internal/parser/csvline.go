package parser

import (
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/pearcec/kioskstats/internal/catalog"
	"github.com/pearcec/kioskstats/internal/event"
)

// CSVParser reads extracted event logs with lines date,time,type[,param].
// The optional parameter is stored under the event type's catalog
// parameter name, or "param" for types the catalog does not name one for.
type CSVParser struct {
	catalog *catalog.Catalog
}

// NewCSVParser returns a parser resolving parameter names through c.
func NewCSVParser(c *catalog.Catalog) *CSVParser {
	return &CSVParser{catalog: c}
}

func (p *CSVParser) Parse(line string) (event.Event, error) {
	r := csv.NewReader(strings.NewReader(line))
	r.FieldsPerRecord = -1
	fields, err := r.Read()
	if err != nil || len(fields) < 3 || len(fields) > 4 {
		return event.Event{}, ErrMalformedLine
	}
	if fields[0] == "date" && fields[1] == "time" {
		return event.Event{}, ErrMalformedLine
	}

	date, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return event.Event{}, &NumberError{Field: "date", Value: fields[0], Line: line, Err: err}
	}
	millis, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil {
		return event.Event{}, &NumberError{Field: timeKey, Value: fields[1], Line: line, Err: err}
	}
	typ := fields[2]
	if typ == "" {
		return event.Event{}, ErrMalformedLine
	}

	params := make(map[string]string, 1)
	if len(fields) == 4 && fields[3] != "" {
		name := "param"
		if d, ok := p.catalog.Resolve(typ); ok && d.ParameterName() != "" {
			name = d.ParameterName()
		}
		params[name] = fields[3]
	}
	return event.NewWithDate(typ, millis, date, params), nil
}
