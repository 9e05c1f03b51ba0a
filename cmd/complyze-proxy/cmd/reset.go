package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/complyze/ai-proxy/internal/config"
)

var resetForce bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset complyze-proxy to a clean state",
	Long: `Reset complyze-proxy by removing its generated CA keypair and rolling
telemetry log. On next start, a fresh CA is minted and a new telemetry
log is opened.

Examples:
  complyze-proxy reset
  complyze-proxy reset --force`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVar(&resetForce, "force", false, "skip confirmation prompt")
	rootCmd.AddCommand(resetCmd)
}

func runReset(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigRaw()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	type target struct {
		path string
		desc string
	}
	targets := []target{
		{cfg.CA.Dir, "CA directory (root cert/key)"},
		{cfg.Telemetry.Dir, "telemetry log directory"},
	}

	var existing []target
	for _, t := range targets {
		if _, err := os.Stat(t.path); err == nil {
			existing = append(existing, t)
		}
	}
	if len(existing) == 0 {
		fmt.Fprintln(os.Stderr, "Nothing to reset.")
		return nil
	}

	fmt.Fprintln(os.Stderr, "The following will be removed:")
	for _, t := range existing {
		fmt.Fprintf(os.Stderr, "  - %s (%s)\n", t.path, t.desc)
	}

	if !resetForce {
		fmt.Fprint(os.Stderr, "\nProceed? [y/N] ")
		var answer string
		fmt.Scanln(&answer) //nolint:errcheck // interactive prompt, error irrelevant
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(os.Stderr, "Aborted.")
			return nil
		}
	}

	var errCount int
	removed := make(map[string]bool, len(existing))
	for _, t := range existing {
		if removed[t.path] {
			continue
		}
		if err := os.RemoveAll(t.path); err != nil {
			fmt.Fprintf(os.Stderr, "  ERROR removing %s: %v\n", t.path, err)
			errCount++
			continue
		}
		removed[t.path] = true
		fmt.Fprintf(os.Stderr, "  Removed %s\n", t.path)
	}

	if errCount > 0 {
		return fmt.Errorf("%d path(s) could not be removed", errCount)
	}

	fmt.Fprintln(os.Stderr, "\nReset complete. complyze-proxy will start fresh on next launch.")
	return nil
}
