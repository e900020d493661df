package main

import (
	"context"
	"errors"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MrWong99/lingobot/internal/mcpserver"
)

func newMCPCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Expose correct_text and diff_text as MCP tools over stdio",
		Long: `Run an MCP server on stdin/stdout. Logs go to stderr so the protocol
stream stays clean.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := bootstrap(cmd.Context(), flags, nil)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			slog.Info("mcp server ready on stdio")
			err = mcpserver.RunStdio(ctx, mcpserver.New(rt.service, version, rt.metrics))
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		},
	}
}
