package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// Build-time variables
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// SetVersion sets the version info from main
func SetVersion(v, c, d string) {
	Version = v
	Commit = c
	Date = d
}

var rootCmd = &cobra.Command{
	Use:           "memoir",
	Short:         "Memoir - local semantic memory engine",
	Long:          "A long-lived, single-user semantic memory store: human-editable chunk files, a local ANN index, and an append-only audit log.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the memoir command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rememberCmd)
	rootCmd.AddCommand(recallCmd)
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(relevantCmd)
	rootCmd.AddCommand(obsoleteCmd)
	rootCmd.AddCommand(auditCmd)
	rootCmd.AddCommand(doctorCmd)
}

// resolveDataDir follows MEMOIR_DATA_DIR, falling back to ~/.memoir.
func resolveDataDir() (string, error) {
	if dir := os.Getenv("MEMOIR_DATA_DIR"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".memoir"), nil
}
