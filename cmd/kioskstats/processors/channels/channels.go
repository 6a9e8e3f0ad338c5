// Package channels writes one BodyTrack time-series file per configured
// event type, for plotting kiosk activity alongside other sensor data.
package channels

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/pearcec/kioskstats/cmd/kioskstats/processors"
	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/event"
	"github.com/pearcec/kioskstats/internal/report"
)

func init() {
	processors.MustRegister(&Processor{})
}

type Processor struct{}

func (p *Processor) Name() string        { return "channels" }
func (p *Processor) Description() string { return "Write BodyTrack time-series files per event type" }

// FileName is the output file for an event type.
func FileName(eventType string) string {
	return "event-" + eventType + ".json"
}

// valueFor picks how a channel renders its data points: a named parameter
// when configured, otherwise the constant value.
func valueFor(c deployment.Channel) report.Stringifier {
	if c.Parameter != "" {
		return report.NamedParameter{Name: c.Parameter}
	}
	return report.ConstantValue{Value: strconv.FormatFloat(c.Value, 'f', -1, 64)}
}

func (p *Processor) Run(ctx context.Context, opts processors.RunOptions) (*processors.Result, error) {
	dep := opts.Deployment
	if len(dep.Channels) == 0 {
		return nil, fmt.Errorf("deployment %s configures no channels", dep.Name)
	}
	if err := processors.CheckInput(opts.Input); err != nil {
		return nil, err
	}

	writers := make(map[string]*report.ChannelWriter, len(dep.Channels))
	paths := make([]string, 0, len(dep.Channels))
	closeAll := func() error {
		var errs []error
		for _, w := range writers {
			if err := w.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}

	for _, c := range dep.Channels {
		name := c.Channel
		if name == "" {
			name = c.Event
		}
		path := opts.OutputPath(FileName(c.Event))
		w, err := report.NewChannelWriter(path, name, valueFor(c))
		if err != nil {
			_ = closeAll()
			return nil, fmt.Errorf("failed to open channel output: %w", err)
		}
		writers[c.Event] = w
		paths = append(paths, path)
	}

	readStats, err := processors.ReadEvents(ctx, opts, func(ev event.Event, _ string) error {
		w, ok := writers[ev.Type()]
		if !ok {
			return nil
		}
		return w.WriteEvent(ev)
	})
	if closeErr := closeAll(); closeErr != nil {
		err = errors.Join(err, closeErr)
	}
	if err != nil {
		return nil, err
	}

	points := make(map[string]int, len(writers))
	for typ, w := range writers {
		points[typ] = w.Count()
	}
	return &processors.Result{
		Success: true,
		Message: fmt.Sprintf("Lines processed: %d\nEvent lines processed: %d\nChannels written: %d",
			readStats.LinesProcessed, readStats.EventLinesProcessed, len(writers)),
		OutputPaths: paths,
		Metadata: map[string]interface{}{
			"points": points,
		},
	}, nil
}
