package processors

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pearcec/kioskstats/internal/config"
	"github.com/pearcec/kioskstats/internal/deployment"
	"github.com/pearcec/kioskstats/internal/logging"
	"github.com/pearcec/kioskstats/internal/parser"
)

// ConfigLoader returns the active configuration.
type ConfigLoader func() (*config.Config, error)

// Flags are the per-invocation overrides shared by all processor commands.
// Empty values fall back to the configuration.
type Flags struct {
	Deployment  string
	InputFormat string
	OutputDir   string
	Format      string
	Summary     string
	DryRun      bool
}

// LoadRegistry returns the built-in deployments plus those found in
// cfg.DeploymentsDir.
func LoadRegistry(cfg *config.Config) (*deployment.Registry, error) {
	reg, err := deployment.Builtin()
	if err != nil {
		return nil, err
	}
	if cfg.DeploymentsDir != "" {
		if _, err := reg.LoadDir(config.ExpandPath(cfg.DeploymentsDir)); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// LoadDeployment resolves a deployment by name from LoadRegistry. A name
// ending in .yaml or .yml is loaded as a file.
func LoadDeployment(cfg *config.Config, name string) (*deployment.Deployment, error) {
	if strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml") {
		return deployment.LoadFile(config.ExpandPath(name))
	}

	reg, err := LoadRegistry(cfg)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, fmt.Errorf("no deployment selected, use --deployment (available: %s)", strings.Join(reg.Names(), ", "))
	}
	return reg.Get(name)
}

// Resolve merges flags over cfg into RunOptions for one input file.
func Resolve(cfg *config.Config, flags Flags, input string) (RunOptions, error) {
	name := flags.Deployment
	if name == "" {
		name = cfg.Deployment
	}
	dep, err := LoadDeployment(cfg, name)
	if err != nil {
		return RunOptions{}, err
	}

	opts := RunOptions{
		Input:              input,
		OutputDir:          pick(flags.OutputDir, cfg.OutputPath()),
		Deployment:         dep,
		InputFormat:        parser.Format(strings.ToLower(pick(flags.InputFormat, cfg.InputFormat))),
		Format:             strings.ToLower(pick(flags.Format, cfg.Format)),
		ParquetCompression: cfg.ParquetCompression,
		SummaryPath:        flags.Summary,
		DryRun:             flags.DryRun,
		RunID:              uuid.NewString(),
	}
	switch opts.InputFormat {
	case parser.FormatApache, parser.FormatCSV:
	default:
		return RunOptions{}, fmt.Errorf("input format must be apache or csv, got %q", opts.InputFormat)
	}
	switch opts.Format {
	case FormatCSV, FormatParquet, FormatBoth:
	default:
		return RunOptions{}, fmt.Errorf("format must be csv, parquet or both, got %q", opts.Format)
	}
	return opts, nil
}

func pick(override, fallback string) string {
	if override != "" {
		return override
	}
	return fallback
}

// Execute runs p with opts, creating the output directory first.
func Execute(ctx context.Context, p Processor, opts RunOptions) (*Result, error) {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = logging.L()
	}
	opts.Logger = opts.Logger.With(
		zap.String("run_id", opts.RunID),
		zap.String("processor", p.Name()),
		zap.String("deployment", opts.Deployment.Name),
	)

	if opts.DryRun {
		return &Result{
			Success: true,
			Message: fmt.Sprintf("Would run %s on %s for deployment %s into %s",
				p.Name(), opts.Input, opts.Deployment.Name, opts.OutputDir),
		}, nil
	}

	if err := os.MkdirAll(opts.OutputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	opts.Logger.Info("processing", zap.String("input", opts.Input), zap.String("output_dir", opts.OutputDir))
	result, err := p.Run(ctx, opts)
	if err != nil {
		opts.Logger.Error("processing failed", zap.Error(err))
		return nil, err
	}
	opts.Logger.Info("processing complete", zap.Strings("outputs", result.OutputPaths))
	return result, nil
}

// CreateCommand creates a cobra command for the processor with the standard flags.
func CreateCommand(p Processor, load ConfigLoader) *cobra.Command {
	var flags Flags

	cmd := &cobra.Command{
		Use:   p.Name() + " <logfile>",
		Short: p.Description(),
		Long: fmt.Sprintf("%s.\n\nReads <logfile> (or - for stdin) and writes results into the output directory.\nExisting output files are never overwritten.",
			p.Description()),
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true

			cfg, err := load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			opts, err := Resolve(cfg, flags, args[0])
			if err != nil {
				return err
			}

			result, err := Execute(cmd.Context(), p, opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if result.Message != "" {
				fmt.Fprintln(out, result.Message)
			}
			for _, path := range result.OutputPaths {
				fmt.Fprintf(out, "Wrote %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&flags.Deployment, "deployment", "d", "", "Deployment name or YAML file (default from config)")
	cmd.Flags().StringVar(&flags.InputFormat, "input-format", "", "Input format: apache or csv (default from config)")
	cmd.Flags().StringVarP(&flags.OutputDir, "output-dir", "o", "", "Output directory (default from config)")
	cmd.Flags().StringVar(&flags.Format, "format", "", "Report format: csv, parquet or both (default from config)")
	cmd.Flags().StringVar(&flags.Summary, "summary", "", "Also write the run summary as YAML to this file")
	cmd.Flags().BoolVar(&flags.DryRun, "dry-run", false, "Show what would be done without doing it")

	return cmd
}

// RegisterCommands registers all processor commands with the root command.
func RegisterCommands(root *cobra.Command, load ConfigLoader) {
	for _, p := range List() {
		root.AddCommand(CreateCommand(p, load))
	}
}
