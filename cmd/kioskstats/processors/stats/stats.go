// Package stats computes daily usage and session statistics.
package stats

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/internal/engine"
	"github.com/pearcec/kioskstats/internal/event"
	"github.com/pearcec/kioskstats/internal/report"
)

const (
	DayStatsBase     = "daily-usage-stats"
	SessionStatsBase = "session-stats"
)

func init() {
	processors.MustRegister(&Processor{})
}

// Processor writes one record per calendar day and, for deployments that
// track sessions, one record per session.
type Processor struct{}

func (p *Processor) Name() string { return "stats" }
func (p *Processor) Description() string {
	return "Compute daily usage and session statistics"
}

func (p *Processor) Run(ctx context.Context, opts processors.RunOptions) (*processors.Result, error) {
	dep := opts.Deployment
	log := opts.Log()

	if err := processors.CheckInput(opts.Input); err != nil {
		return nil, err
	}

	daySink, paths, err := processors.OpenTableSink(opts, DayStatsBase, engine.DayColumns(dep))
	if err != nil {
		return nil, fmt.Errorf("failed to open day statistics output: %w", err)
	}
	sinks := []report.Sink{daySink}

	var sessionSink report.Sink
	if dep.Session.Enabled {
		var sessionPaths []string
		sessionSink, sessionPaths, err = processors.OpenTableSink(opts, SessionStatsBase, engine.SessionColumns(dep))
		if err != nil {
			_ = report.Discard(daySink)
			return nil, fmt.Errorf("failed to open session statistics output: %w", err)
		}
		sinks = append(sinks, sessionSink)
		paths = append(paths, sessionPaths...)
	}

	agg := engine.NewAggregator(dep, daySink, sessionSink,
		engine.WithRunID(opts.RunID),
		engine.WithLogger(log),
		engine.WithUnsupportedHandler(func(u engine.Unsupported) {
			log.Warn("unsupported event type", zap.String("type", u.Type), zap.String("line", u.RawLine))
		}),
	)

	readStats, runErr := processors.ReadEvents(ctx, opts, func(ev event.Event, raw string) error {
		return agg.OnEventLine(ev, raw)
	})
	if runErr == nil {
		runErr = agg.Finish()
	}

	var closeErrs []error
	for _, s := range sinks {
		if err := s.Close(); err != nil {
			closeErrs = append(closeErrs, err)
		}
	}
	if runErr != nil {
		return nil, errors.Join(append([]error{runErr}, closeErrs...)...)
	}
	if err := errors.Join(closeErrs...); err != nil {
		return nil, fmt.Errorf("failed to finalize statistics output: %w", err)
	}

	summary := agg.Summary()
	summary.LinesProcessed = readStats.LinesProcessed
	summary.EventLinesProcessed = readStats.EventLinesProcessed
	summary.OutOfOrder = readStats.OutOfOrder

	if opts.SummaryPath != "" {
		if err := report.WriteYAML(opts.SummaryPath, summary); err != nil {
			return nil, fmt.Errorf("failed to write summary: %w", err)
		}
		paths = append(paths, opts.SummaryPath)
	}

	for name, values := range summary.ExtraTallyValues {
		log.Info("tally values outside the configured columns", zap.String("tally", name), zap.Any("values", values))
	}

	return &processors.Result{
		Success:     true,
		Message:     renderSummary(summary),
		OutputPaths: paths,
		Metadata: map[string]interface{}{
			"summary": summary,
		},
	}, nil
}

func renderSummary(s engine.Summary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Lines processed: %d\n", s.LinesProcessed)
	fmt.Fprintf(&b, "Event lines processed: %d\n", s.EventLinesProcessed)
	if s.OutOfOrder > 0 {
		fmt.Fprintf(&b, "Out-of-order events skipped: %d\n", s.OutOfOrder)
	}
	fmt.Fprintf(&b, "Unsupported events: %d\n", s.Unsupported)
	fmt.Fprintf(&b, "Days: %d, sessions: %d\n", s.Days, s.Sessions)
	b.WriteString(strings.Join(s.Lines(), "\n"))
	return b.String()
}
