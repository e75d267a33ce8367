package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/kdsmith18542/archivekit/logging"
	"github.com/kdsmith18542/archivekit/observability"
	"github.com/kdsmith18542/archivekit/settings"
	"github.com/kdsmith18542/archivekit/store"
	"github.com/kdsmith18542/archivekit/store/builtin"
)

// app carries the state shared by all subcommands.
type app struct {
	configPath  string
	logLevel    string
	logFormat   string
	locale      string
	metricsFile string

	settings store.Settings
	registry *store.Registry
	metrics  *prometheus.Registry
}

func newRootCmd() *cobra.Command {
	a := &app{registry: builtin.NewRegistry()}

	cmd := &cobra.Command{
		Use:           "archivekit",
		Short:         "archivekit - store, restore and delete archived course files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.teardown()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "Settings file (TOML or YAML)")
	flags.StringVar(&a.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")
	flags.StringVar(&a.logFormat, "log-format", "console", "Log format (json, console)")
	flags.StringVar(&a.locale, "locale", "", "Locale for backend names (default en)")
	flags.StringVar(&a.metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		a.backendsCmd(),
		a.storeCmd(),
		a.retrieveCmd(),
		a.deleteCmd(),
		a.verifyCmd(),
		a.hashCmd(),
	)
	return cmd
}

func (a *app) setup() error {
	if err := logging.Init(logging.Config{Level: a.logLevel, Format: a.logFormat, OutputPath: "stderr"}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	chain := settings.Chain{settings.Env{}}
	if a.configPath != "" {
		f, err := settings.LoadFile(a.configPath)
		if err != nil {
			return err
		}
		chain = append(chain, f)
	}
	a.settings = append(chain, settings.Defaults())

	if a.metricsFile != "" {
		a.metrics = prometheus.NewRegistry()
		observability.SetObserver(observability.NewPrometheusObserver(a.metrics))
	}
	return nil
}

func (a *app) teardown() error {
	defer logging.Sync() //nolint:errcheck
	if a.metrics == nil {
		return nil
	}
	observability.SetObserver(nil)
	if err := prometheus.WriteToTextfile(a.metricsFile, a.metrics); err != nil {
		return fmt.Errorf("failed to write metrics: %w", err)
	}
	return nil
}

// open builds the named driver wrapped for observability.
func (a *app) open(ctx context.Context, plugin string, mat store.Materializer) (*store.ObservableDriver, error) {
	d, err := a.registry.Open(ctx, plugin, a.settings, store.Options{
		Logger:       logging.Named(plugin),
		Materializer: mat,
	})
	if err != nil {
		return nil, err
	}
	return store.NewObservableDriver(d, logging.Named("store")), nil
}

func readHandle(p string) (*store.FileHandle, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("failed to read handle: %w", err)
	}
	var h store.FileHandle
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("failed to parse handle %s: %w", p, err)
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("invalid handle %s: %w", p, err)
	}
	return &h, nil
}

// formatBytes renders n with a binary unit suffix.
func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
