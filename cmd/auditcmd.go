package cmd

import (
	"fmt"
	"time"

	"github.com/canopyhq/memoir/internal/memory"
	"github.com/spf13/cobra"
)

var auditSince string

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print the append-only audit log",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAudit()
	},
}

func init() {
	auditCmd.Flags().StringVar(&auditSince, "since", "", "RFC3339 timestamp; only print entries at or after this time")
}

func runAudit() error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	o, err := memory.GetOrchestrator(dataDir)
	if err != nil {
		return fmt.Errorf("initialize memory engine: %w", err)
	}
	defer o.Shutdown()

	var since *time.Time
	if auditSince != "" {
		t, err := time.Parse(time.RFC3339, auditSince)
		if err != nil {
			return fmt.Errorf("parse --since: %w", err)
		}
		since = &t
	}

	text, err := o.GetAuditLog(since)
	if err != nil {
		return fmt.Errorf("read audit log: %w", err)
	}

	if text == "" {
		fmt.Println("audit log is empty")
		return nil
	}
	fmt.Print(text)
	return nil
}
