package cmd

import (
	"fmt"

	"github.com/canopyhq/memoir/internal/memory"
	"github.com/spf13/cobra"
)

var recallLimit int

var recallCmd = &cobra.Command{
	Use:   "recall <query text>",
	Short: "Query the semantic index for relevant chunks",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRecall(args[0])
	},
}

func init() {
	recallCmd.Flags().IntVar(&recallLimit, "limit", 5, "maximum number of chunks to return")
}

func runRecall(query string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	o, err := memory.GetOrchestrator(dataDir)
	if err != nil {
		return fmt.Errorf("initialize memory engine: %w", err)
	}
	defer o.Shutdown()

	chunks, err := o.Query(query, recallLimit)
	if err != nil {
		return fmt.Errorf("recall: %w", err)
	}

	if len(chunks) == 0 {
		fmt.Println("no chunks found")
		return nil
	}

	for _, c := range chunks {
		fmt.Printf("%s  [%s/%s]  %s\n", c.ID, c.Type, c.Status, c.Summary)
	}
	return nil
}
