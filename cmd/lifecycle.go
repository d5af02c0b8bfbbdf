package cmd

import (
	"fmt"

	"github.com/canopyhq/memoir/internal/memory"
	"github.com/spf13/cobra"
)

var relevantCmd = &cobra.Command{
	Use:   "relevant <id> [id...]",
	Short: "Mark chunks as relevant, bumping relevant_count and last_relevant_date",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRelevant(args)
	},
}

var obsoleteReason string

var obsoleteCmd = &cobra.Command{
	Use:   "obsolete <id>",
	Short: "Archive a chunk and record why it was obsoleted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runObsolete(args[0])
	},
}

func init() {
	obsoleteCmd.Flags().StringVar(&obsoleteReason, "reason", "", "reason for obsoleting the chunk (required)")
}

func runRelevant(ids []string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	o, err := memory.GetOrchestrator(dataDir)
	if err != nil {
		return fmt.Errorf("initialize memory engine: %w", err)
	}
	defer o.Shutdown()

	if err := o.MarkRelevant(ids); err != nil {
		return fmt.Errorf("mark relevant: %w", err)
	}

	fmt.Printf("✅ marked %d chunk(s) relevant\n", len(ids))
	return nil
}

func runObsolete(id string) error {
	if obsoleteReason == "" {
		return fmt.Errorf("--reason is required")
	}

	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	o, err := memory.GetOrchestrator(dataDir)
	if err != nil {
		return fmt.Errorf("initialize memory engine: %w", err)
	}
	defer o.Shutdown()

	if err := o.MarkObsolete(id, obsoleteReason); err != nil {
		return fmt.Errorf("mark obsolete: %w", err)
	}

	fmt.Printf("✅ archived %s\n", id)
	return nil
}
