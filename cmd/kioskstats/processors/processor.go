// Package processors provides the processor framework for kioskstats.
//
// A processor is one way of turning a kiosk log into output files. Each
// processor registers itself in init() and gets a cobra command built by
// CreateCommand, so new processors only need to implement Run.
package processors

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/parser"
	"github.com/pearcec/kioskstats/internal/report"
)

// Processor defines the interface all processors must implement.
type Processor interface {
	// Name returns the processor identifier (e.g., "stats")
	Name() string

	// Description returns human-readable description
	Description() string

	// Run processes opts.Input and writes into opts.OutputDir
	Run(ctx context.Context, opts RunOptions) (*Result, error)
}

// Output formats for tabular reports.
const (
	FormatCSV     = "csv"
	FormatParquet = "parquet"
	FormatBoth    = "both"
)

// RunOptions contains options passed to processor execution.
type RunOptions struct {
	// Input is the log file to read, or "-" for stdin
	Input string

	// OutputDir is where output files are created; existing files are never replaced
	OutputDir string

	// Deployment supplies event types, transitions and time zone
	Deployment *deployment.Deployment

	// InputFormat selects the line parser
	InputFormat parser.Format

	// Format selects tabular output (csv, parquet, both)
	Format string

	// ParquetCompression is SNAPPY, GZIP or ZSTD
	ParquetCompression string

	// SummaryPath, if set, receives the run summary as YAML
	SummaryPath string

	// DryRun resolves everything but reads and writes nothing
	DryRun bool

	// RunID tags log lines and summaries; generated when empty
	RunID string

	// Logger receives progress and warnings
	Logger *zap.Logger
}

// Result contains the outcome of a processor run.
type Result struct {
	// Success indicates whether the run completed
	Success bool

	// Message is a human-readable summary of what happened
	Message string

	// OutputPaths lists the files written
	OutputPaths []string

	// Metadata contains any additional information about the run
	Metadata map[string]interface{}
}

// OutputPath joins name onto the output directory.
func (o RunOptions) OutputPath(name string) string {
	return filepath.Join(o.OutputDir, name)
}

// Log returns the configured logger or a no-op one.
func (o RunOptions) Log() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// NewParser returns the line parser selected by the options.
func (o RunOptions) NewParser() (parser.Parser, error) {
	switch o.InputFormat {
	case parser.FormatApache, "":
		return parser.NewApacheParser(o.Deployment.Location()), nil
	case parser.FormatCSV:
		return parser.NewCSVParser(o.Deployment.Catalog()), nil
	default:
		return nil, fmt.Errorf("unknown input format %q", o.InputFormat)
	}
}

// ReadEvents streams the input through the selected parser, calling handle
// for every time-ordered event.
func ReadEvents(ctx context.Context, opts RunOptions, handle parser.Handler) (parser.Stats, error) {
	p, err := opts.NewParser()
	if err != nil {
		return parser.Stats{}, err
	}

	in, err := openInput(opts.Input)
	if err != nil {
		return parser.Stats{}, err
	}
	defer in.Close()

	r := parser.NewReader(p, opts.Log())
	if err := r.Read(ctx, in, handle); err != nil {
		return r.Stats(), fmt.Errorf("failed to process %s: %w", opts.Input, err)
	}
	return r.Stats(), nil
}

// NewStringifier builds the deployment's parameter renderer.
func NewStringifier(dep *deployment.Deployment) report.Stringifier {
	switch dep.Stringifier.Kind {
	case "named_parameter":
		return report.NamedParameter{Name: dep.Stringifier.Name}
	case "constant":
		return report.ConstantValue{Value: dep.Stringifier.Value}
	default:
		return report.FirstParameter{Catalog: dep.Catalog()}
	}
}

// CheckInput fails early when the input file cannot be read, before any
// output file is created.
func CheckInput(path string) error {
	if path == "-" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s is a directory", path)
	}
	return nil
}

// OpenTableSink creates <base>.csv, <base>.parquet or both in the output
// directory, depending on opts.Format. It returns the sink and the paths it
// will write. If one file cannot be created, the ones already created are
// removed again.
func OpenTableSink(opts RunOptions, base string, cols []report.Column) (report.Sink, []string, error) {
	var (
		sinks []report.Sink
		paths []string
	)
	discardAll := func() {
		for _, s := range sinks {
			_ = report.Discard(s)
		}
	}

	if opts.Format == FormatCSV || opts.Format == FormatBoth || opts.Format == "" {
		path := opts.OutputPath(base + ".csv")
		s, err := report.NewCSVSink(path, cols)
		if err != nil {
			return nil, nil, err
		}
		sinks = append(sinks, s)
		paths = append(paths, path)
	}
	if opts.Format == FormatParquet || opts.Format == FormatBoth {
		path := opts.OutputPath(base + ".parquet")
		s, err := report.NewParquetSink(path, cols, opts.ParquetCompression)
		if err != nil {
			discardAll()
			return nil, nil, err
		}
		sinks = append(sinks, s)
		paths = append(paths, path)
	}

	if len(sinks) == 1 {
		return sinks[0], paths, nil
	}
	return report.NewMultiSink(sinks...), paths, nil
}

func openInput(path string) (io.ReadCloser, error) {
	if path == "-" {
		return io.NopCloser(os.Stdin), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open input: %w", err)
	}
	return f, nil
}
