// Command lingobot is the entry point for the Lingobot grammar assistant.
//
// Subcommands:
//
//	lingobot serve            HTTP, websocket and metrics server
//	lingobot check <text>     correct one utterance and print a colored diff
//	lingobot check --file f   correct one utterance per line of f
//	lingobot mcp              expose the correction tools over MCP stdio
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingobot/internal/config"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/internal/reply"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "0.1.0-dev"

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	logLevel   string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:          "lingobot",
		Short:        "English grammar and style assistant",
		Long:         "Lingobot corrects single English utterances and explains what it changed.",
		Version:      version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "config.yaml", "path to the YAML configuration file")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override server.log_level (debug|info|warn|error)")

	root.AddCommand(
		newServeCmd(flags),
		newCheckCmd(flags),
		newMCPCmd(flags),
	)
	return root
}

// loadConfig reads the configuration, applies the --log-level override and
// installs the default logger. The returned LevelVar allows the level to be
// changed at runtime.
func loadConfig(flags *rootFlags) (*config.Config, *slog.LevelVar, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, fmt.Errorf("config file %q not found, copy configs/example.yaml to get started", flags.configPath)
		}
		return nil, nil, err
	}
	if flags.logLevel != "" {
		lvl := config.LogLevel(flags.logLevel)
		if !lvl.IsValid() {
			return nil, nil, fmt.Errorf("--log-level %q is invalid; valid values: debug, info, warn, error", flags.logLevel)
		}
		cfg.Server.LogLevel = lvl
	}

	logger, level := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)
	return cfg, level, nil
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) (*slog.Logger, *slog.LevelVar) {
	lvl := new(slog.LevelVar)
	lvl.Set(slogLevel(level))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), lvl
}

func slogLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ── Bootstrap ──────────────────────────────────────────────────────────────────

// instance is everything a subcommand needs to answer utterances.
type instance struct {
	cfg   *config.Config
	level *slog.LevelVar
	// levelPinned is set when --log-level overrides the file.
	levelPinned bool
	providers   *providers
	service     *reply.Service
	metrics     *observe.Metrics
}

// bootstrap loads the configuration and builds the providers, pipeline and
// reply service. metrics may be nil to use [observe.DefaultMetrics].
func bootstrap(ctx context.Context, flags *rootFlags, metrics *observe.Metrics) (*instance, error) {
	cfg, level, err := loadConfig(flags)
	if err != nil {
		return nil, err
	}
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}

	reg := config.NewRegistry()
	registerBuiltinProviders(reg)

	ps, err := buildProviders(ctx, cfg, reg, metrics)
	if err != nil {
		return nil, fmt.Errorf("build providers: %w", err)
	}
	p, err := newPipeline(cfg, ps, metrics)
	if err != nil {
		return nil, fmt.Errorf("build pipeline: %w", err)
	}
	return &instance{
		cfg:         cfg,
		level:       level,
		levelPinned: flags.logLevel != "",
		providers:   ps,
		service:     reply.NewService(p),
		metrics:     metrics,
	}, nil
}
