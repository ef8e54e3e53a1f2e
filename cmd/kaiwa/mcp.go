package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/kalambet/kaiwa/internal/api"
	"github.com/kalambet/kaiwa/internal/config"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the chat session as MCP tools over stdio",
	Long: `Run an MCP server on stdio exposing the chat session as tools:
chat_send, conversation_list, profile_show, profile_forget.

The session uses the same store, profile, and responder wiring as
"kaiwa chat"; --mock and --ephemeral behave identically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mock, _ := cmd.Flags().GetBool("mock")
		ephemeral, _ := cmd.Flags().GetBool("ephemeral")
		return runMCP(cmd.Flags().Changed("mock"), mock, ephemeral)
	},
}

func init() {
	mcpCmd.Flags().Bool("mock", false, "use canned replies, no server required")
	mcpCmd.Flags().Bool("ephemeral", false, "keep conversations in memory only")
}

func runMCP(mockSet, mockFlag, ephemeral bool) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	mock := cfg.Chat.Mock
	if mockSet {
		mock = mockFlag
	}

	// stdout carries the MCP transport; logs go to stderr only.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	sess, closeStore, err := buildSession(cfg, mock, ephemeral)
	if err != nil {
		return err
	}
	defer func() {
		sess.Wait()
		if closeStore != nil {
			if err := closeStore(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
			}
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	mcpSrv := api.NewMCPServer(api.MCPDeps{Session: sess})
	stdioSrv := server.NewStdioServer(mcpSrv)

	slog.Info("MCP server started (stdio transport)", "mock", mock)
	if err := stdioSrv.Listen(ctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("MCP stdio server: %w", err)
	}
	return nil
}
