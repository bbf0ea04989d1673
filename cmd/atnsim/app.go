package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/atnsim/internal/config"
	"github.com/nvandessel/atnsim/internal/engine"
	"github.com/nvandessel/atnsim/internal/jobs"
	"github.com/nvandessel/atnsim/internal/logging"
	"github.com/nvandessel/atnsim/internal/report"
	"github.com/nvandessel/atnsim/internal/telemetry"
)

// loadConfig loads the configuration and applies command-line overrides.
// Order: defaults -> file -> environment -> flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level, _ = flags.GetString("log-level")
	}
	if f := flags.Lookup("out"); f != nil && f.Changed {
		cfg.Output.Dir = f.Value.String()
	}
	if f := flags.Lookup("format"); f != nil && f.Changed && cmd.Annotations[outputFlagsAnnotation] == "true" {
		cfg.Output.Format = f.Value.String()
	}
	if f := flags.Lookup("precision"); f != nil && f.Changed && cmd.Annotations[outputFlagsAnnotation] == "true" {
		cfg.Output.Precision, _ = flags.GetInt("precision")
	}
	if f := flags.Lookup("strict"); f != nil && f.Changed {
		cfg.Strict, _ = flags.GetBool("strict")
	}
	if f := flags.Lookup("store"); f != nil && f.Changed {
		cfg.Store.Driver = f.Value.String()
	}
	if f := flags.Lookup("dsn"); f != nil && f.Changed {
		cfg.Store.DSN = f.Value.String()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// addStoreFlags adds the job store selection flags.
func addStoreFlags(cmd *cobra.Command) {
	cmd.Flags().String("store", "", "Job store driver: sqlite, postgres or memory")
	cmd.Flags().String("dsn", "", "Job store DSN (sqlite path or postgres connection string)")
}

// outputFlagsAnnotation marks commands whose --format and --precision
// flags select the report output.
const outputFlagsAnnotation = "atnsim/output-flags"

// addOutputFlags adds the report output flags.
func addOutputFlags(cmd *cobra.Command) {
	if cmd.Annotations == nil {
		cmd.Annotations = map[string]string{}
	}
	cmd.Annotations[outputFlagsAnnotation] = "true"
	cmd.Flags().String("out", "", "Output directory")
	cmd.Flags().String("format", "", "Report format: csv, arrow or lineproto")
	cmd.Flags().Int("precision", 0, "Decimals of CSV cells")
	cmd.Flags().Bool("interactive", false, "Prompt for the output directory")
	cmd.Flags().Bool("strict", false, "Validate trophic parameters before integrating")
}

// app bundles the configured logger, telemetry and engine of one command.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	diag    *logging.DiagnosticLogger
	metrics *telemetry.Metrics
	tracing *telemetry.Tracing
	engine  *engine.Engine
	influx  *report.InfluxSink
}

func newApp(cfg *config.Config) (*app, error) {
	logger := logging.NewLogger(cfg.Logging.Level, os.Stderr)

	var traceOut io.Writer
	if cfg.Telemetry.Trace {
		traceOut = os.Stderr
	}
	tracing, err := telemetry.NewTracing(traceOut, version)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		diag:    logging.NewDiagnosticLogger(cfg.Output.Dir, cfg.Logging.Level),
		metrics: telemetry.NewMetrics(),
		tracing: tracing,
	}
	if cfg.Output.Influx.URL != "" {
		a.influx = report.NewInfluxSink(cfg.Output.Influx.Sink())
	}

	a.engine, err = engine.New(engine.Options{
		Integration:   cfg.IntegratorConfig(),
		BiomassScale:  cfg.Integration.BiomassScale,
		InitTimeIndex: cfg.Integration.InitTimeIndex,
		Links:         cfg.LinkSource(),
		Strict:        cfg.Strict,
		Logger:        logger,
		Diagnostics:   a.diag,
		Metrics:       a.metrics,
		Tracer:        tracing.Tracer(),
	})
	if err != nil {
		a.Close(context.Background())
		return nil, err
	}
	return a, nil
}

// openStore opens the configured job store.
func (a *app) openStore(ctx context.Context) (jobs.Store, error) {
	s, err := jobs.Open(ctx, a.cfg.Store.Driver, a.cfg.Store.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", a.cfg.Store.Driver, err)
	}
	return s, nil
}

// Close exports metrics and flushes telemetry.
func (a *app) Close(ctx context.Context) error {
	var errs []error
	if a.cfg.Telemetry.MetricsFile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Telemetry.MetricsFile); err != nil {
			errs = append(errs, err)
		}
	}
	if err := a.tracing.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	if a.influx != nil {
		a.influx.Close()
	}
	a.diag.Close()
	return errors.Join(errs...)
}

// stopSignals unregisters a channel passed to notifySignals.
var stopSignals = signal.Stop

// signalContext returns a context cancelled on SIGINT or SIGTERM. The signal
// handler is released once the context is done.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	notifySignals(sigChan)
	go func() {
		defer stopSignals(sigChan)
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
