package cmd

import (
	"fmt"

	"github.com/canopyhq/memoir/internal/memory"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	RunE: func(cmd *cobra.Command, args []string) error {
		fmt.Printf("memoir %s (commit %s, built %s)\n", Version, Commit, Date)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show chunk and index counts for the current data directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus()
	},
}

func runStatus() error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}

	o, err := memory.GetOrchestrator(dataDir)
	if err != nil {
		return fmt.Errorf("initialize memory engine: %w", err)
	}
	defer o.Shutdown()

	stats, err := o.GetStats()
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	fmt.Printf("🧠 memoir — %s\n", dataDir)
	fmt.Printf("   chunks:  %d\n", stats.ChunkCount)
	fmt.Printf("   indexed: %d\n", stats.IndexedCount)
	if stats.ChunkCount != stats.IndexedCount {
		fmt.Println("   ⚠️  chunk and index counts differ — reconciliation may be in progress")
	}
	return nil
}
