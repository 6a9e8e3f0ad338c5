// Package types lists the distinct event types found in a log.
package types

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/internal/event"
)

func init() {
	processors.MustRegister(&Processor{})
}

// Processor reads the whole log and prints every event type with its
// count, marking the ones the deployment does not support. It writes no
// files.
type Processor struct{}

func (p *Processor) Name() string        { return "types" }
func (p *Processor) Description() string { return "List the distinct event types found in a log" }

func (p *Processor) Run(ctx context.Context, opts processors.RunOptions) (*processors.Result, error) {
	if err := processors.CheckInput(opts.Input); err != nil {
		return nil, err
	}

	counts := make(map[string]int)
	readStats, err := processors.ReadEvents(ctx, opts, func(ev event.Event, _ string) error {
		counts[ev.Type()]++
		return nil
	})
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Lines processed: %d\n", readStats.LinesProcessed)
	fmt.Fprintf(&b, "Event lines processed: %d\n", readStats.EventLinesProcessed)
	fmt.Fprintf(&b, "Event types: %d", len(names))
	for _, name := range names {
		marker := ""
		if !opts.Deployment.Catalog().IsSupported(name) {
			marker = " (unsupported)"
		}
		fmt.Fprintf(&b, "\n  %-40s %d%s", name, counts[name], marker)
	}

	return &processors.Result{
		Success: true,
		Message: b.String(),
		Metadata: map[string]interface{}{
			"types": names,
		},
	}, nil
}
