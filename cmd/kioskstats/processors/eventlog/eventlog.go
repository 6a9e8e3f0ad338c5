// Package eventlog extracts supported events from an access log into a
// compact CSV event log that the csv input format can read back.
package eventlog

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/internal/event"
	"github.com/pearcec/kioskstats/internal/report"
)

// FileName is the event log written into the output directory.
const FileName = "event-log.csv"

func init() {
	processors.MustRegister(&Processor{})
}

type Processor struct{}

func (p *Processor) Name() string        { return "eventlog" }
func (p *Processor) Description() string { return "Extract supported events into a CSV event log" }

func (p *Processor) Run(ctx context.Context, opts processors.RunOptions) (*processors.Result, error) {
	dep := opts.Deployment
	if err := processors.CheckInput(opts.Input); err != nil {
		return nil, err
	}

	path := opts.OutputPath(FileName)
	w, err := report.NewEventLogWriter(path, processors.NewStringifier(dep))
	if err != nil {
		return nil, fmt.Errorf("failed to open event log output: %w", err)
	}

	counts := make(map[string]int)
	for _, name := range dep.Catalog().Names() {
		counts[name] = 0
	}
	unsupported := 0

	log := opts.Log()
	readStats, err := processors.ReadEvents(ctx, opts, func(ev event.Event, raw string) error {
		if !dep.Catalog().IsSupported(ev.Type()) {
			unsupported++
			log.Warn("unsupported event type", zap.String("type", ev.Type()), zap.String("line", raw))
			return nil
		}
		counts[ev.Type()]++
		return w.WriteEvent(ev)
	})
	if closeErr := w.Close(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return nil, err
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)

	var b strings.Builder
	fmt.Fprintf(&b, "Lines processed: %d\n", readStats.LinesProcessed)
	fmt.Fprintf(&b, "Event lines processed: %d\n", readStats.EventLinesProcessed)
	fmt.Fprintf(&b, "Unsupported events: %d", unsupported)
	for _, t := range types {
		fmt.Fprintf(&b, "\nFound [%d] events for type [%s]", counts[t], t)
	}

	return &processors.Result{
		Success:     true,
		Message:     b.String(),
		OutputPaths: []string{path},
		Metadata: map[string]interface{}{
			"counts":      counts,
			"unsupported": unsupported,
		},
	}, nil
}
