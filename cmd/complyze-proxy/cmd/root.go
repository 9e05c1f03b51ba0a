// Package cmd provides the CLI commands for the Complyze AI proxy.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/complyze/ai-proxy/internal/config"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "complyze-proxy",
	Short: "Complyze AI proxy - transparent DLP for AI-provider traffic",
	Long: `complyze-proxy is a loopback HTTPS interception proxy that classifies
and enforces data-loss-prevention policy on requests bound for AI
providers (OpenAI, Anthropic, Gemini, and similar APIs and web UIs).

Quick start:
  1. Run: complyze-proxy start
  2. Point your HTTP_PROXY/HTTPS_PROXY at 127.0.0.1:8080 (or fetch
     http://127.0.0.1:8080/proxy.pac)
  3. Trust the generated CA: complyze-proxy trust-ca

Configuration is driven primarily by environment variables (COMPLYZE_API,
COMPLYZE_WORKSPACE, MONITOR_MODE, ...), with an optional YAML file as a
secondary override path. See complyze-proxy.yaml for the full schema.

Commands:
  start     Start the proxy
  stop      Stop the running proxy
  reset     Remove the generated CA and telemetry logs
  trust-ca  Print the CA certificate and its SHA-256 fingerprint
  version   Print version information`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./complyze-proxy.yaml)")
}

func initConfig() {
	config.InitViper(cfgFile)
}
