package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/telemetry"
)

const graphPrompt = `Extract a knowledge graph from this transcript.

Text:
%s

Focus on people, projects or products, companies or departments, topics and
technologies, findings or conclusions, and action items.

Return ONLY valid JSON in exactly this shape:
{
  "nodes": [
    {"id": "person_john_doe", "label": "John Doe", "type": "person", "properties": {"role": "author"}},
    {"id": "project_alpha", "label": "Project Alpha", "type": "project", "properties": {"status": "active"}},
    {"id": "topic_budget", "label": "Budget Planning", "type": "topic", "properties": {"category": "finance"}}
  ],
  "edges": [
    {"source": "person_john_doe", "target": "project_alpha", "relationship": "leads", "weight": 1.0},
    {"source": "project_alpha", "target": "topic_budget", "relationship": "requires", "weight": 0.8}
  ],
  "topics": ["budget planning"],
  "action_items": [
    {"task": "Send the revised budget", "assignee": "John Doe", "due_date": "Friday", "priority": "high"}
  ]
}

Rules:
- ids are unique, lower case, words joined by underscores
- type is one of person, project, topic, action, company, technology, finding
- every edge source and target is a node id
- weight is between 0 and 1
- use "TBD" for unknown assignees or due dates`

var (
	peopleIndicators  = []string{"said", "mentioned", "asked", "replied", "stated", "speaker"}
	projectIndicators = []string{"project", "initiative", "product", "system", "platform"}
	fallbackTopics    = []string{"research", "analysis", "findings", "methodology", "conclusion", "recommendation"}
	actionKeywords    = []string{"action item", "todo", "follow up", "assign", "due", "deadline"}
)

const (
	fallbackParticipantID = "generic_participant"
	fallbackProjectID     = "generic_project"
	maxFallbackTopics     = 5
)

// GraphService extracts knowledge graphs from source text
type GraphService struct {
	model    Completer
	chunkCfg ChunkConfig
	logger   *slog.Logger
	now      func() time.Time
}

// NewGraphService creates a new GraphService instance
func NewGraphService(model Completer, chunkCfg ChunkConfig, logger *slog.Logger) *GraphService {
	if logger == nil {
		logger = slog.Default()
	}
	return &GraphService{
		model:    model,
		chunkCfg: chunkCfg,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Extract builds the knowledge graph for text. Model failures and malformed
// responses degrade to the keyword fallback graph; the only error is empty
// input.
func (s *GraphService) Extract(ctx context.Context, text string) (*domain.StoredGraph, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}

	ctx, span := telemetry.StartSpan(ctx, "graph.extract", telemetry.SpanAttributes{Operation: "extract"})
	defer span.End()

	chunks := ChunkText(text, s.chunkCfg)
	span.SetChunkCount(len(chunks))

	var g *domain.KnowledgeGraph
	if len(chunks) == 1 {
		g = s.extractSingle(ctx, text)
	} else {
		g = s.extractChunks(ctx, text, chunks)
	}

	fallback := g == nil
	if fallback {
		span.SetTag("fallback", "true")
		g = FallbackGraph(text)
	}
	g.Normalize()

	return &domain.StoredGraph{
		Graph:      *g,
		Fallback:   fallback,
		ChunkCount: len(chunks),
		CreatedAt:  s.now(),
	}, nil
}

// extractSingle returns nil when the model fails or its output is unusable.
func (s *GraphService) extractSingle(ctx context.Context, text string) *domain.KnowledgeGraph {
	raw, err := s.model.Complete(ctx, fmt.Sprintf(graphPrompt, text))
	if err != nil {
		s.logger.Warn("graph extraction model call failed", "error", err)
		return nil
	}

	g, err := ParseGraphResponse(raw)
	if err != nil {
		s.logger.Warn("graph extraction response rejected", "error", err)
		return nil
	}
	return g
}

// extractChunks merges per-chunk graphs in chunk order. Topics come from
// topic entities and action items from the full text.
func (s *GraphService) extractChunks(ctx context.Context, text string, chunks []domain.Chunk) *domain.KnowledgeGraph {
	var nodes []domain.Entity
	var edges []domain.Relationship

	for _, c := range chunks {
		g := s.extractSingle(ctx, c.Text)
		if g == nil {
			s.logger.Debug("chunk produced no graph", "chunk", c.Index)
			continue
		}
		nodes = append(nodes, g.Nodes...)
		edges = append(edges, g.Edges...)
	}

	if len(nodes) == 0 {
		return nil
	}

	merged := &domain.KnowledgeGraph{Nodes: nodes, Edges: edges}
	merged.Normalize()
	merged.Topics = domain.TopicsFromEntities(merged.Nodes)
	merged.ActionItems = ExtractActionItems(text)
	return merged
}

// FallbackGraph builds a low-information graph from keyword indicators.
func FallbackGraph(text string) *domain.KnowledgeGraph {
	lower := strings.ToLower(text)
	g := domain.NewKnowledgeGraph()

	hasPerson := containsAny(lower, peopleIndicators)
	hasProject := containsAny(lower, projectIndicators)

	if hasPerson {
		g.Nodes = append(g.Nodes, domain.Entity{
			ID:         fallbackParticipantID,
			Label:      "Document Author",
			Type:       domain.EntityTypePerson,
			Properties: map[string]string{"role": "participant"},
		})
	}
	if hasProject {
		g.Nodes = append(g.Nodes, domain.Entity{
			ID:         fallbackProjectID,
			Label:      "Discussed Project",
			Type:       domain.EntityTypeProject,
			Properties: map[string]string{"status": "mentioned"},
		})
	}
	if hasPerson && hasProject {
		g.Edges = append(g.Edges, domain.Relationship{
			Source:       fallbackParticipantID,
			Target:       fallbackProjectID,
			Relationship: "discussed",
			Weight:       0.5,
		})
	}

	for _, topic := range fallbackTopics {
		if len(g.Topics) == maxFallbackTopics {
			break
		}
		if strings.Contains(lower, topic) {
			g.Topics = append(g.Topics, topic)
		}
	}

	g.ActionItems = ExtractActionItems(text)
	return g
}

// ExtractActionItems returns up to domain.MaxActionItems lines of text that
// mention an action keyword, in source order.
func ExtractActionItems(text string) []domain.ActionItem {
	items := make([]domain.ActionItem, 0, domain.MaxActionItems)
	for _, line := range strings.Split(text, "\n") {
		if len(items) == domain.MaxActionItems {
			break
		}
		if !containsAny(strings.ToLower(line), actionKeywords) {
			continue
		}
		items = append(items, domain.ActionItem{
			Task:     strings.TrimSpace(line),
			Assignee: domain.Unassigned,
			DueDate:  domain.Unassigned,
			Priority: domain.PriorityMedium,
		})
	}
	return items
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
