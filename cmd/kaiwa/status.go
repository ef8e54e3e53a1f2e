package main

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/kalambet/kaiwa/internal/config"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show kaiwa system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(cfg.Service.BaseURL + "/health")
	if err != nil {
		printStatus("Server", "not reachable at %s", cfg.Service.BaseURL)
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Server", "running at %s", cfg.Service.BaseURL)
		} else {
			printStatus("Server", "error (HTTP %d)", resp.StatusCode)
		}
	}

	mode := "live"
	if cfg.Chat.Mock {
		mode = "mock"
	}
	printStatus("Chat mode", "%s", mode)
	printStatus("Chat model", "%s (temperature %.1f)", cfg.Chat.Model, cfg.Chat.Temperature)
	printStatus("Profile model", "%s (temperature %.1f)", cfg.Profile.Model, cfg.Profile.Temperature)

	key := "not set"
	if cfg.OpenAI.APIKey != "" {
		key = "set"
	}
	printStatus("OpenAI API key", "%s", key)
	printStatus("Data dir", "%s", cfg.Storage.DataDir)

	fmt.Println()
	return nil
}
