package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/complyze/ai-proxy/internal/config"
)

var initConfigOutput string

var initConfigCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write a starter complyze-proxy.yaml",
	Long: `Write a complyze-proxy.yaml file seeded with default values next to
where complyze-proxy looks for it, for an operator to hand-edit before
first run.

Examples:
  complyze-proxy init-config
  complyze-proxy init-config --output /etc/complyze-proxy/complyze-proxy.yaml`,
	RunE: runInitConfig,
}

func init() {
	initConfigCmd.Flags().StringVar(&initConfigOutput, "output", "", "path to write the config file (default: ~/.complyze-proxy/complyze-proxy.yaml)")
	rootCmd.AddCommand(initConfigCmd)
}

func runInitConfig(cmd *cobra.Command, args []string) error {
	path := initConfigOutput
	if path == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to resolve home directory: %w", err)
		}
		path = filepath.Join(homeDir, ".complyze-proxy", "complyze-proxy.yaml")
	}

	if err := config.WriteDefaultConfig(path); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
