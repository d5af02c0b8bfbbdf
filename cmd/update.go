package cmd

import (
	"fmt"
	"strings"

	"github.com/canopyhq/memoir/internal/memory"
	"github.com/spf13/cobra"
)

var (
	updateSummary   string
	updateType      string
	updateEpistemic string
	updateStatus    string
	updateTags      string
	updateNotes     string
	updateContent   string
)

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Patch an existing chunk's metadata or content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runUpdate(cmd, args[0])
	},
}

func init() {
	updateCmd.Flags().StringVar(&updateSummary, "summary", "", "new summary")
	updateCmd.Flags().StringVar(&updateType, "type", "", "new type")
	updateCmd.Flags().StringVar(&updateEpistemic, "epistemic", "", "new epistemic status")
	updateCmd.Flags().StringVar(&updateStatus, "status", "", "new status")
	updateCmd.Flags().StringVar(&updateTags, "tags", "", "comma-separated surface tags, replaces the existing set")
	updateCmd.Flags().StringVar(&updateNotes, "notes", "", "new context notes")
	updateCmd.Flags().StringVar(&updateContent, "content", "", "replacement body content")
}

func runUpdate(cmd *cobra.Command, id string) error {
	dataDir, err := resolveDataDir()
	if err != nil {
		return err
	}
	o, err := memory.GetOrchestrator(dataDir)
	if err != nil {
		return fmt.Errorf("initialize memory engine: %w", err)
	}
	defer o.Shutdown()

	patch := &memory.MetadataPatch{}
	flags := cmd.Flags()
	if flags.Changed("summary") {
		patch.Summary = &updateSummary
	}
	if flags.Changed("type") {
		patch.Type = &updateType
	}
	if flags.Changed("epistemic") {
		patch.Epistemic = &updateEpistemic
	}
	if flags.Changed("status") {
		patch.Status = &updateStatus
	}
	if flags.Changed("notes") {
		patch.ContextNotes = &updateNotes
	}
	if flags.Changed("tags") {
		var tags []string
		for _, t := range strings.Split(updateTags, ",") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, t)
			}
		}
		patch.SurfaceTags = tags
	}

	var contentPtr *string
	if flags.Changed("content") {
		contentPtr = &updateContent
	}

	if err := o.UpdateChunk(id, patch, contentPtr); err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}

	fmt.Printf("✅ updated %s\n", id)
	return nil
}
