package daemon

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huddlehq/huddle/internal/config"
	"github.com/spf13/cobra"
)

type reindexResult struct {
	SourceID   string `json:"source_id"`
	ChunkCount int    `json:"chunk_count"`
	Dimension  int    `json:"dimension,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ReindexCmd returns the reindex command
func ReindexCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reindex <source_id>...",
		Short: "Rebuild embedding indexes now",
		Long:  "Rebuilds and stores the embedding index of each source synchronously, bypassing the job queue.",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runReindex,
	}

	cmd.Flags().Bool("output", false, "Output as JSON")
	cmd.Flags().Duration("timeout", 10*time.Minute, "Overall time limit")

	return cmd
}

func runReindex(cmd *cobra.Command, args []string) error {
	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	logger := NewLogger(cfg)

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	results := make([]reindexResult, 0, len(args))
	failed := 0
	for _, id := range args {
		res := reindexResult{SourceID: id}
		idx, err := app.Workspace.BuildIndex(ctx, id)
		if err != nil {
			res.Error = err.Error()
			failed++
		} else {
			res.ChunkCount = idx.Len()
			res.Dimension = idx.Dimension()
		}
		results = append(results, res)
	}

	out := cmd.OutOrStdout()
	if outputJSON, _ := cmd.Flags().GetBool("output"); outputJSON {
		data, _ := json.MarshalIndent(results, "", "  ")
		fmt.Fprintln(out, string(data))
	} else {
		for _, res := range results {
			if res.Error != "" {
				fmt.Fprintf(out, "%s: failed: %s\n", res.SourceID, res.Error)
				continue
			}
			fmt.Fprintf(out, "%s: %d chunks indexed\n", res.SourceID, res.ChunkCount)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed to index", failed, len(args))
	}
	return nil
}
