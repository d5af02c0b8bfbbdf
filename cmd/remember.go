package cmd

import (
	"fmt"
	"strings"

	"github.com/canopyhq/memoir/internal/memory"
	"github.com/spf13/cobra"
)

var (
	rememberSummary   string
	rememberType      string
	rememberEpistemic string
	rememberTags      string
	rememberStatus    string
	rememberNotes     string
)

var rememberCmd = &cobra.Command{
	Use:   "remember <content>",
	Short: "Store a new chunk",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runRemember(args[0])
	},
}

func init() {
	rememberCmd.Flags().StringVar(&rememberSummary, "summary", "", "1-2 sentence scan line (required)")
	rememberCmd.Flags().StringVar(&rememberType, "type", "", "framework|insight|fact|log|emotional|goal|question (required)")
	rememberCmd.Flags().StringVar(&rememberEpistemic, "epistemic", "", "established|working|speculative|deprecated (required)")
	rememberCmd.Flags().StringVar(&rememberTags, "tags", "", "comma-separated surface tags (required)")
	rememberCmd.Flags().StringVar(&rememberStatus, "status", "", "active|dormant|review|archived (default active)")
	rememberCmd.Flags().StringVar(&rememberNotes, "notes", "", "free-form context notes")
}

func runRemember(content string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	o, err := memory.GetOrchestrator(dataDir)
	if err != nil {
		return fmt.Errorf("initialize memory engine: %w", err)
	}
	defer o.Shutdown()

	var tags []string
	for _, t := range strings.Split(rememberTags, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}

	id, err := o.StoreChunk(content, memory.StoreMetadata{
		Summary:      rememberSummary,
		Type:         rememberType,
		Epistemic:    rememberEpistemic,
		SurfaceTags:  tags,
		Status:       rememberStatus,
		ContextNotes: rememberNotes,
	})
	if err != nil {
		return fmt.Errorf("remember: %w", err)
	}

	fmt.Printf("✅ stored %s\n", id)
	return nil
}
