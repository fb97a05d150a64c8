package main

import (
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/spf13/cobra"

	"github.com/trellisearch/vectorpipe/pkg/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the effective configuration",
	Long: `Loads the configuration from the config file and environment, applies
defaults, and prints the resolved values as JSON. API keys are redacted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		out, err := sonic.MarshalIndent(cfg, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render config: %w", err)
		}

		fmt.Fprintln(os.Stdout, string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
