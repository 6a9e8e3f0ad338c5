package parser

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/pearcec/kioskstats/internal/event"
)

const maxLineBytes = 1024 * 1024

// Stats counts what a Reader has seen.
type Stats struct {
	LinesProcessed      int
	EventLinesProcessed int
	NumberErrors        int
	OutOfOrder          int
}

// Handler receives each parsed event together with its raw line.
type Handler func(ev event.Event, raw string) error

// Reader walks an input line by line and hands well-formed, time-ordered
// events to a handler.
type Reader struct {
	parser Parser
	log    *zap.Logger
	stats  Stats
	last   int64
	seen   bool
}

// NewReader returns a Reader using p. A nil logger discards output.
func NewReader(p Parser, log *zap.Logger) *Reader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reader{parser: p, log: log}
}

// Stats returns the counts so far.
func (r *Reader) Stats() Stats { return r.stats }

// Read consumes in until EOF. Malformed lines are skipped silently, lines
// with bad numbers and events earlier than their predecessor are skipped
// with a warning. A handler error stops the read and is returned.
func (r *Reader) Read(ctx context.Context, in io.Reader, handle Handler) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line := scanner.Text()
		r.stats.LinesProcessed++
		if line == "" {
			continue
		}

		ev, err := r.parser.Parse(line)
		if err != nil {
			var numErr *NumberError
			switch {
			case errors.Is(err, ErrMalformedLine):
			case errors.As(err, &numErr):
				r.stats.NumberErrors++
				r.log.Warn("skipping line with invalid number",
					zap.Int("line", r.stats.LinesProcessed),
					zap.String("field", numErr.Field),
					zap.String("value", numErr.Value))
			default:
				return fmt.Errorf("line %d: %w", r.stats.LinesProcessed, err)
			}
			continue
		}
		r.stats.EventLinesProcessed++

		if r.seen && ev.TimeMillis() < r.last {
			r.stats.OutOfOrder++
			r.log.Warn("skipping out-of-order event",
				zap.Int("line", r.stats.LinesProcessed),
				zap.String("type", ev.Type()),
				zap.Int64("time", ev.TimeMillis()),
				zap.Int64("previous_time", r.last))
			continue
		}
		r.last = ev.TimeMillis()
		r.seen = true

		if err := handle(ev, line); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input after line %d: %w", r.stats.LinesProcessed, err)
	}
	return nil
}
