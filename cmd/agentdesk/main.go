package main

import (
	"os"

	"agentdesk/internal/logger"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	logger.Init()
	rootCmd := &cobra.Command{
		Use:          "agentdesk",
		Short:        "Agentdesk hosts personas that answer chat messages with tool-backed context",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.toml (default $AGENTDESK_CONFIG or the user config dir)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
