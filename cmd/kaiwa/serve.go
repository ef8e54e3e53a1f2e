package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kalambet/kaiwa/internal/api"
	"github.com/kalambet/kaiwa/internal/config"
	"github.com/kalambet/kaiwa/internal/extract"
	"github.com/kalambet/kaiwa/internal/llm"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the chat and profile services (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func runServe() error {
	fmt.Fprintf(os.Stderr, "kaiwa version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireAPIKey(); err != nil {
		return err
	}

	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	baseClient := llm.NewClient(cfg.OpenAI.APIKey)
	if cfg.OpenAI.BaseURL != "" {
		baseClient = llm.NewClientWithBaseURL(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	}
	newCompleter := func(apiKey string) extract.Completer {
		return baseClient.WithAPIKey(apiKey)
	}

	handler := api.NewHandler(api.Deps{
		APIKey:       cfg.OpenAI.APIKey,
		NewCompleter: newCompleter,
		NewExtractor: func(apiKey string) api.ProfileExtractor {
			return extract.NewExtractor(newCompleter(apiKey), cfg.Profile.Model, cfg.Profile.Temperature)
		},
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("kaiwa listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
