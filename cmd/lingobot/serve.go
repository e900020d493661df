package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"

	"github.com/MrWong99/lingobot/internal/config"
	"github.com/MrWong99/lingobot/internal/health"
	"github.com/MrWong99/lingobot/internal/observe"
	"github.com/MrWong99/lingobot/internal/server"
)

func newServeCmd(flags *rootFlags) *cobra.Command {
	var watch bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat, analyze, websocket and metrics endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, watch)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "reload log level, lexicon and pipeline settings when the config file changes")
	return cmd
}

func runServe(ctx context.Context, flags *rootFlags, watch bool) error {
	// ── Telemetry ─────────────────────────────────────────────────────────────
	shutdownTelemetry, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceVersion: version,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	rt, err := bootstrap(ctx, flags, observe.DefaultMetrics())
	if err != nil {
		return err
	}
	cfg := rt.cfg

	slog.Info("lingobot starting",
		"config", flags.configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Hot reload ────────────────────────────────────────────────────────────
	if watch {
		w, err := config.NewWatcher(flags.configPath, func(old, new *config.Config) {
			applyReload(rt, old, new)
		})
		if err != nil {
			return err
		}
		defer w.Stop()
		slog.Info("watching config for changes", "path", flags.configPath)
	}

	printStartupSummary(os.Stderr, cfg)

	srv := server.New(rt.service,
		server.WithHealth(health.New(rt.providers.Checkers...)),
		server.WithMetrics(rt.metrics),
		server.WithOriginPatterns(cfg.Server.AllowedOrigins...),
	)

	slog.Info("server ready, press Ctrl+C to shut down")
	if err := srv.Run(ctx, cfg.Server.ListenAddr); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("goodbye")
	return nil
}

// applyReload applies the hot-reloadable part of a config change to rt.
// A --log-level flag keeps precedence over the file.
func applyReload(rt *instance, old, new *config.Config) {
	d := config.Diff(old, new)
	if len(d.RestartRequired) > 0 {
		slog.Warn("config change requires a restart to take effect", "sections", d.RestartRequired)
	}
	if !d.HotReloadable() {
		return
	}

	if d.LogLevelChanged && !rt.levelPinned {
		rt.level.Set(slogLevel(d.NewLogLevel))
		slog.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.LexiconChanged || d.PipelineChanged {
		next := *rt.cfg
		next.Lexicon = new.Lexicon
		next.Pipeline = new.Pipeline
		p, err := newPipeline(&next, rt.providers, rt.metrics)
		if err != nil {
			slog.Error("config reload failed, keeping current pipeline", "err", err)
			return
		}
		rt.service.Swap(p)
		rt.cfg = &next
		slog.Info("pipeline reloaded", "lexicon_changed", d.LexiconChanged, "pipeline_changed", d.PipelineChanged)
	}
}

// ── Startup summary ───────────────────────────────────────────────────────────

const summaryWidth = 19

func printStartupSummary(w io.Writer, cfg *config.Config) {
	pc := cfg.Providers
	fmt.Fprintln(w, "╔═══════════════════════════════════════╗")
	fmt.Fprintln(w, "║        Lingobot - startup summary     ║")
	fmt.Fprintln(w, "╠═══════════════════════════════════════╣")
	fmt.Fprintln(w, providerRow("Annotator", pc.Annotator.Name, pc.Annotator.Model))
	fmt.Fprintln(w, providerRow("Speller", pc.Speller.Name, ""))
	rewriter := pc.Rewriter.Name
	if n := len(pc.RewriterFallbacks); rewriter != "" && n > 0 {
		rewriter = fmt.Sprintf("%s (+%d fallback)", rewriter, n)
	}
	fmt.Fprintln(w, providerRow("Rewriter", rewriter, pc.Rewriter.Model))
	fmt.Fprintln(w, providerRow("Sentiment", pc.Sentiment.Name, ""))
	fmt.Fprintln(w, providerRow("Emotion", pc.Emotion.Name, ""))
	lexicon := cfg.Lexicon.Path
	if lexicon == "" {
		lexicon = "(built-in)"
	}
	fmt.Fprintln(w, summaryRow("Lexicon", lexicon))
	fmt.Fprintln(w, summaryRow("Listen addr", cfg.Server.ListenAddr))
	fmt.Fprintln(w, "╚═══════════════════════════════════════╝")
}

func providerRow(kind, name, model string) string {
	value := name
	if value == "" {
		value = "(not configured)"
	} else if model != "" {
		value = name + "/" + model
	}
	return summaryRow(kind, value)
}

// summaryRow pads by display width so wide runes keep the box aligned.
func summaryRow(label, value string) string {
	return fmt.Sprintf("║  %-14s : %s ║", label, summaryCell(value))
}

func summaryCell(value string) string {
	return runewidth.FillRight(runewidth.Truncate(value, summaryWidth, "…"), summaryWidth)
}
