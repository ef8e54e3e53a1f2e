package main

import (
	"github.com/spf13/cobra"
)

var noColor bool

var rootCmd = &cobra.Command{
	Use:   "kaiwa",
	Short: "kaiwa — conversational assistant with a learned user profile",
	Long: `kaiwa is a conversational assistant that keeps per-conversation message
history and infers a user profile from the dialogue as it goes.

Run "kaiwa serve" to start the chat and profile services, then "kaiwa chat"
for an interactive session against them. "kaiwa chat --mock" works without
a server or API key.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       version,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}
