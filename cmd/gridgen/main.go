package main

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"gridgen/internal/config"
	appLog "gridgen/internal/log"
	"gridgen/internal/pattern"
	"gridgen/internal/planner"
	"gridgen/internal/store"
)

var version = "0.1.0-dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// app carries what every subcommand needs once the config is loaded.
type app struct {
	configPath string
	logLevel   string
	seed       uint64

	cfg     *config.Config
	planner *planner.Planner
}

func newRootCmd() *cobra.Command {
	a := &app{}
	rootCmd := &cobra.Command{
		Use:   "gridgen",
		Short: "Generate plausible activity schedules",
		Long: `gridgen produces timestamped activity events over a date range that
follow human work rhythms: weekday and weekend skew, vacations, burst
days and five activity tiers. Schedules can be previewed in the
terminal, exported as JSON or ICS, recorded to a local ledger and
served over HTTP.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (.yaml or .toml); defaults to $"+config.EnvConfig+" or the user config dir")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().Uint64Var(&a.seed, "seed", 0, "Fix randomness for reproducible output (0 = vary per run)")

	rootCmd.AddCommand(
		newPatternsCmd(a),
		newPreviewCmd(a),
		newGenerateCmd(a),
		newCalibrateCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
		newSnapshotCmd(a),
	)
	return rootCmd
}

func (a *app) load() error {
	if err := config.LoadEnv(); err != nil {
		return err
	}
	path := config.ResolvePath(a.configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	cfg.ApplyEnv()
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	level, err := appLog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	appLog.SetLevel(level)
	appLog.Debug("config loaded", "path", path, "pattern", cfg.Pattern, "timezone", cfg.Timezone)

	var opts []planner.Option
	if a.seed != 0 {
		opts = append(opts, planner.WithGeneratorOptions(
			pattern.WithSource(pattern.FixedEntropy(a.seed%1000)),
			pattern.WithLabeler(pattern.NewMessagePool(rand.New(rand.NewPCG(a.seed, a.seed>>7)))),
		))
	}
	p, err := planner.New(cfg, opts...)
	if err != nil {
		return err
	}
	a.cfg, a.planner = cfg, p
	return nil
}

// openStore opens the ledger at the configured path.
func (a *app) openStore() (*store.Store, error) {
	s, err := store.Open(a.cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", a.cfg.StorePath, err)
	}
	return s, nil
}

// parseDate reads YYYY-MM-DD in the configured zone.
func (a *app) parseDate(flag, v string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(v), a.planner.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("--%s must be YYYY-MM-DD: %w", flag, err)
	}
	return t, nil
}

// notify prints progress to stderr so stdout stays clean for output.
func notify(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}

func writeTo(cmd *cobra.Command, path string, fn func(io.Writer) error) error {
	if path == "" || path == "-" {
		return fn(cmd.OutOrStdout())
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := fn(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	notifySignals(ch)
	go func() {
		select {
		case sig := <-ch:
			appLog.Info("signal received, shutting down", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
