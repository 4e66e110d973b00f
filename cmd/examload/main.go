package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/japaniel/examload/pkg/config"
	"github.com/japaniel/examload/pkg/db"
	"github.com/japaniel/examload/pkg/pipeline"
	"github.com/japaniel/examload/pkg/source"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		cancel()
		os.Exit(1)
	}
}

type options struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	var opts options
	cmd := &cobra.Command{
		Use:   "examload",
		Short: "Load translation exam errors into SQLite and report on them",
		Long: `examload fetches the exam results CSV, stores exams and their errors in a
SQLite file and prints three reports: exams per language pair, the most common
error types, and the number of errors matching a language pair, type and year.

Re-running against unchanged data leaves the database unchanged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg.Logging, opts.verbose)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			defer logger.Sync()
			return run(cmd.Context(), cmd, cfg, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.configPath, "config", "", "Path to YAML config file (default "+config.DefaultPath+" if present)")
	f.BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")
	f.String("url", "", "URL of the exam CSV")
	f.String("db", "", "Path to SQLite database")
	f.Duration("timeout", 0, "HTTP timeout for the fetch")
	f.Int("top", 0, "Number of error types in the top list (at most 5)")
	f.String("language-pair", "", "Language pair filter for the error count")
	f.String("error-type", "", "Error type filter for the error count")
	f.Int("year", 0, "Exam year filter for the error count")
	f.Bool("legacy-first-group", false, "Report only the first language pair group")
	return cmd
}

// resolveConfig layers defaults, file, environment and explicitly set flags.
func resolveConfig(cmd *cobra.Command, opts options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return config.Config{}, err
	}

	f := cmd.Flags()
	if f.Changed("url") {
		cfg.Source.URL, _ = f.GetString("url")
	}
	if f.Changed("db") {
		cfg.Database.Path, _ = f.GetString("db")
	}
	if f.Changed("timeout") {
		cfg.Source.Timeout, _ = f.GetDuration("timeout")
	}
	if f.Changed("top") {
		cfg.Report.TopErrors, _ = f.GetInt("top")
	}
	if f.Changed("language-pair") {
		cfg.Report.LanguagePair, _ = f.GetString("language-pair")
	}
	if f.Changed("error-type") {
		cfg.Report.ErrorType, _ = f.GetString("error-type")
	}
	if f.Changed("year") {
		cfg.Report.Year, _ = f.GetInt("year")
	}
	if f.Changed("legacy-first-group") {
		cfg.Report.LegacyFirstGroup, _ = f.GetBool("legacy-first-group")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func newLogger(lc config.LoggingConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if !lc.JSON {
		zc.Encoding = "console"
		zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	level, err := zapcore.ParseLevel(lc.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

func run(ctx context.Context, cmd *cobra.Command, cfg config.Config, logger *zap.Logger) error {
	conn, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer conn.Close()

	p := &pipeline.Pipeline{
		DB:      conn,
		Fetcher: source.NewFetcher(cfg.Source.Timeout),
		Config:  cfg,
		Logger:  logger,
		Out:     cmd.OutOrStdout(),
	}
	res, err := p.Run(ctx)
	if err != nil {
		var se *pipeline.StageError
		if errors.As(err, &se) && se.Stage == pipeline.StageFetch {
			return fmt.Errorf("error fetching CSV from %s: %w", cfg.Source.URL, se.Err)
		}
		return err
	}
	logger.Debug("run finished", zap.String("run_id", res.RunID), zap.Int("records", res.Records))
	return nil
}
