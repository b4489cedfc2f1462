package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"bidboard/internal/config"
)

const version = "0.1.0"

var (
	configPath string
	serverURL  string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "bidboard-cli <command> [flags]",
		Short: "Operator tool for the bidding dashboard backend",
		Long: `bidboard-cli manages the dashboard password, queries a running
bidboard-server, archives snapshot days to Parquet and lists the audit log.

Examples:
  bidboard-cli password generate
  bidboard-cli query --date 2025-07-18 --start 091500 --end 092500
  bidboard-cli archive --date 2025-07-18
  bidboard-cli audit --limit 20`,
		SilenceUsage: true,
	}

	defaultConfig := "config/bidboard.yaml"
	if p := os.Getenv("BIDBOARD_CONFIG"); p != "" {
		defaultConfig = p
	}
	root.PersistentFlags().StringVar(&configPath, "config", defaultConfig, "config file")
	root.PersistentFlags().StringVar(&serverURL, "server", "http://127.0.0.1:5001", "bidboard-server base URL")

	root.AddCommand(
		newVersionCmd(),
		newPasswordCmd(),
		newQueryCmd(),
		newDatesCmd(),
		newArchiveCmd(),
		newAuditCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "bidboard-cli %s\n", version)
		},
	}
}

// loadConfig reads the same configuration the server uses.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath, ".env")
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
