package client

import (
	"fmt"
	"io"
	"strings"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/spf13/cobra"
)

// Summary is a generated summary returned by the API.
type Summary struct {
	SourceID   string `json:"source_id"`
	Summary    string `json:"summary"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

// Graph is a generated knowledge graph returned by the API.
type Graph struct {
	SourceID string `json:"source_id"`
	domain.KnowledgeGraph
	Fallback   bool   `json:"fallback"`
	ChunkCount int    `json:"chunk_count"`
	CreatedAt  string `json:"created_at"`
}

// SummaryCmd creates the summary command.
func SummaryCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:   "summary <source_id>",
		Short: "Summarize a source",
		Long: `Generates a summary of the source and stores it.
With --cached the stored summary is shown without calling the model.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := "/summary/" + pathID(args[0])
			var summary Summary
			if cached {
				err = api.GetInto(cmd.Context(), path, &summary)
			} else {
				err = api.PostInto(cmd.Context(), path, nil, &summary)
			}
			if err != nil {
				return fmt.Errorf("failed to get summary: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, summary)
			}
			fmt.Fprintln(out, summary.Summary)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "Show the stored summary instead of generating one")

	return cmd
}

// GraphCmd creates the graph command.
func GraphCmd() *cobra.Command {
	var cached bool

	cmd := &cobra.Command{
		Use:     "graph <source_id>",
		Short:   "Extract a knowledge graph from a source",
		Aliases: []string{"knowledge-graph"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			api, err := NewAPIClientWithCmd(cmd)
			if err != nil {
				return err
			}

			path := "/knowledge-graph/" + pathID(args[0])
			var graph Graph
			if cached {
				err = api.GetInto(cmd.Context(), path, &graph)
			} else {
				err = api.PostInto(cmd.Context(), path, nil, &graph)
			}
			if err != nil {
				return fmt.Errorf("failed to get knowledge graph: %w", err)
			}

			out := cmd.OutOrStdout()
			if wantJSON(cmd) {
				return printJSON(out, graph)
			}
			printGraph(out, &graph)
			return nil
		},
	}

	cmd.Flags().BoolVar(&cached, "cached", false, "Show the stored graph instead of extracting one")

	return cmd
}

func printGraph(w io.Writer, g *Graph) {
	if g.Fallback {
		fmt.Fprintln(w, "Note: the model output could not be parsed, showing the fallback graph")
	}

	labels := make(map[string]string, len(g.Nodes))
	fmt.Fprintf(w, "Entities (%d):\n", len(g.Nodes))
	for _, n := range g.Nodes {
		labels[n.ID] = n.Label
		fmt.Fprintf(w, "  - %s [%s]\n", n.Label, n.Type)
	}

	fmt.Fprintf(w, "Relationships (%d):\n", len(g.Edges))
	for _, e := range g.Edges {
		fmt.Fprintf(w, "  - %s -> %s: %s\n", labelOr(labels, e.Source), labelOr(labels, e.Target), e.Relationship)
	}

	if len(g.Topics) > 0 {
		fmt.Fprintf(w, "Topics: %s\n", strings.Join(g.Topics, ", "))
	}

	fmt.Fprintf(w, "Action items (%d):\n", len(g.ActionItems))
	for _, a := range g.ActionItems {
		line := "  - " + a.Task
		if a.Assignee != "" {
			line += " (" + a.Assignee + ")"
		}
		if a.DueDate != "" {
			line += " due " + a.DueDate
		}
		if a.Priority != "" {
			line += " [" + a.Priority + "]"
		}
		fmt.Fprintln(w, line)
	}
}

func labelOr(labels map[string]string, id string) string {
	if l, ok := labels[id]; ok && l != "" {
		return l
	}
	return id
}
