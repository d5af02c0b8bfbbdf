package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/canopyhq/memoir/internal/memory"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose the memory engine's data directory and report problems",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor()
	},
}

func runDoctor() error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	fmt.Printf("checking %s\n", dataDir)

	ok := true

	if info, err := os.Stat(dataDir); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("⚠️  data directory does not exist yet — it will be created on first use")
		} else {
			fmt.Printf("❌ cannot stat data directory: %v\n", err)
			ok = false
		}
	} else if !info.IsDir() {
		fmt.Println("❌ data directory path exists but is not a directory")
		ok = false
	} else {
		fmt.Println("✓ data directory exists")
	}

	probe := filepath.Join(dataDir, ".memoir-doctor-probe")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		fmt.Printf("❌ cannot create data directory: %v\n", err)
		ok = false
	} else if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		fmt.Printf("❌ data directory is not writable: %v\n", err)
		ok = false
	} else {
		os.Remove(probe)
		fmt.Println("✓ data directory is writable")
	}

	o, err := memory.GetOrchestrator(dataDir)
	if err != nil {
		fmt.Printf("❌ memory engine failed to initialize: %v\n", err)
		ok = false
	} else {
		defer o.Shutdown()
		fmt.Println("✓ memory engine initialized")

		stats, err := o.GetStats()
		if err != nil {
			fmt.Printf("❌ could not read stats: %v\n", err)
			ok = false
		} else {
			fmt.Printf("✓ %d chunk(s) on disk, %d indexed\n", stats.ChunkCount, stats.IndexedCount)
			if stats.ChunkCount != stats.IndexedCount {
				fmt.Println("⚠️  chunk and index counts differ — some chunk files could not be read or embedded while building the index")
			}
		}

		if _, err := o.GetAuditLog(nil); err != nil {
			fmt.Printf("❌ audit log is not readable: %v\n", err)
			ok = false
		} else {
			fmt.Println("✓ audit log is readable")
		}
	}

	if !ok {
		return fmt.Errorf("doctor found problems")
	}
	fmt.Println("all checks passed")
	return nil
}
