package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Entity types the extractor asks the model for. Other values are kept as-is.
const (
	EntityTypePerson     = "person"
	EntityTypeProject    = "project"
	EntityTypeTopic      = "topic"
	EntityTypeAction     = "action"
	EntityTypeCompany    = "company"
	EntityTypeTechnology = "technology"
	EntityTypeFinding    = "finding"
	EntityTypeOther      = "other"
)

// Action item priorities
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

const (
	// Unassigned marks an action item without a known assignee or due date.
	Unassigned = "TBD"

	MaxGraphTopics = 10
	MaxActionItems = 5
)

// Entity is a node of a knowledge graph
type Entity struct {
	ID         string            `json:"id"`
	Label      string            `json:"label"`
	Type       string            `json:"type"`
	Properties map[string]string `json:"properties"`
}

// Relationship is a directed, weighted edge between two entities
type Relationship struct {
	Source       string  `json:"source"`
	Target       string  `json:"target"`
	Relationship string  `json:"relationship"`
	Weight       float64 `json:"weight"`
}

// ActionItem is a task extracted from a source
type ActionItem struct {
	Task     string `json:"task"`
	Assignee string `json:"assignee"`
	DueDate  string `json:"due_date"`
	Priority string `json:"priority"`
}

// KnowledgeGraph is the typed entity/relationship graph extracted from a source
type KnowledgeGraph struct {
	Nodes       []Entity       `json:"nodes"`
	Edges       []Relationship `json:"edges"`
	Topics      []string       `json:"topics"`
	ActionItems []ActionItem   `json:"action_items"`
}

// StoredGraph is a knowledge graph as persisted for a source
type StoredGraph struct {
	SourceID   string
	Graph      KnowledgeGraph
	Fallback   bool
	ChunkCount int
	CreatedAt  time.Time
}

// NewKnowledgeGraph returns a graph with non-nil, empty collections.
func NewKnowledgeGraph() *KnowledgeGraph {
	return &KnowledgeGraph{
		Nodes:       []Entity{},
		Edges:       []Relationship{},
		Topics:      []string{},
		ActionItems: []ActionItem{},
	}
}

// EntitySlug builds a slug-like entity id such as "person_john_doe".
func EntitySlug(entityType, label string) string {
	var b strings.Builder
	lastUnderscore := true
	write := func(s string) {
		for _, r := range strings.ToLower(s) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
				lastUnderscore = false
				continue
			}
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	write(entityType)
	if b.Len() > 0 && !lastUnderscore {
		b.WriteByte('_')
		lastUnderscore = true
	}
	write(label)
	return strings.Trim(b.String(), "_")
}

// DeduplicateEntities drops entities whose label matches an earlier one
// case-insensitively, or whose id was already taken. The first occurrence
// wins. The returned alias map points ids of label-merged entities at the id
// that survived, for ids no surviving entity uses.
func DeduplicateEntities(entities []Entity) ([]Entity, map[string]string) {
	out := make([]Entity, 0, len(entities))
	aliases := make(map[string]string)
	seenLabels := make(map[string]string, len(entities))
	seenIDs := make(map[string]struct{}, len(entities))

	for _, e := range entities {
		label := strings.ToLower(strings.TrimSpace(e.Label))
		if keptID, ok := seenLabels[label]; ok {
			if e.ID != keptID {
				if _, exists := aliases[e.ID]; !exists {
					aliases[e.ID] = keptID
				}
			}
			continue
		}
		if _, ok := seenIDs[e.ID]; ok {
			continue
		}
		seenLabels[label] = e.ID
		seenIDs[e.ID] = struct{}{}
		out = append(out, e)
	}

	for id := range aliases {
		if _, kept := seenIDs[id]; kept {
			delete(aliases, id)
		}
	}

	return out, aliases
}

// RemapRelationships rewrites edge endpoints through aliases.
func RemapRelationships(rels []Relationship, aliases map[string]string) []Relationship {
	if len(aliases) == 0 {
		return rels
	}
	out := make([]Relationship, len(rels))
	for i, r := range rels {
		if to, ok := aliases[r.Source]; ok {
			r.Source = to
		}
		if to, ok := aliases[r.Target]; ok {
			r.Target = to
		}
		out[i] = r
	}
	return out
}

// DeduplicateRelationships keeps the first edge per (source, target, relationship).
func DeduplicateRelationships(rels []Relationship) []Relationship {
	type key struct{ source, target, relationship string }

	out := make([]Relationship, 0, len(rels))
	seen := make(map[key]struct{}, len(rels))
	for _, r := range rels {
		k := key{r.Source, r.Target, r.Relationship}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out
}

// PruneRelationships drops edges whose source or target is not an entity id.
func PruneRelationships(rels []Relationship, entities []Entity) []Relationship {
	ids := make(map[string]struct{}, len(entities))
	for _, e := range entities {
		ids[e.ID] = struct{}{}
	}

	out := make([]Relationship, 0, len(rels))
	for _, r := range rels {
		if _, ok := ids[r.Source]; !ok {
			continue
		}
		if _, ok := ids[r.Target]; !ok {
			continue
		}
		out = append(out, r)
	}
	return out
}

// TopicsFromEntities returns the lower-cased labels of topic entities in
// first-seen order, without duplicates, capped at MaxGraphTopics.
func TopicsFromEntities(entities []Entity) []string {
	topics := make([]string, 0, MaxGraphTopics)
	seen := make(map[string]struct{})
	for _, e := range entities {
		if e.Type != EntityTypeTopic {
			continue
		}
		label := strings.ToLower(strings.TrimSpace(e.Label))
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			continue
		}
		seen[label] = struct{}{}
		topics = append(topics, label)
		if len(topics) == MaxGraphTopics {
			break
		}
	}
	return topics
}

// Normalize enforces the graph invariants in place: unique entity ids and
// labels, edges only between existing entities, no duplicate edges or
// topics, and non-nil collections.
func (g *KnowledgeGraph) Normalize() *KnowledgeGraph {
	nodes, aliases := DeduplicateEntities(g.Nodes)
	edges := RemapRelationships(g.Edges, aliases)
	edges = PruneRelationships(edges, nodes)
	edges = DeduplicateRelationships(edges)

	g.Nodes = nodes
	g.Edges = edges
	g.Topics = uniqueTopics(g.Topics)
	if g.ActionItems == nil {
		g.ActionItems = []ActionItem{}
	}
	return g
}

func uniqueTopics(topics []string) []string {
	out := make([]string, 0, len(topics))
	seen := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		key := strings.ToLower(strings.TrimSpace(t))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
		if len(out) == MaxGraphTopics {
			break
		}
	}
	return out
}

// Validate checks the entity uniqueness and edge reference invariants.
func (g *KnowledgeGraph) Validate() error {
	ids := make(map[string]struct{}, len(g.Nodes))
	for _, e := range g.Nodes {
		if e.ID == "" {
			return fmt.Errorf("entity with label %q has no id", e.Label)
		}
		if _, ok := ids[e.ID]; ok {
			return fmt.Errorf("duplicate entity id %q", e.ID)
		}
		ids[e.ID] = struct{}{}
	}
	for _, r := range g.Edges {
		if _, ok := ids[r.Source]; !ok {
			return fmt.Errorf("edge source %q references a missing entity", r.Source)
		}
		if _, ok := ids[r.Target]; !ok {
			return fmt.Errorf("edge target %q references a missing entity", r.Target)
		}
		if r.Weight < 0 || r.Weight > 1 {
			return fmt.Errorf("edge %s->%s weight %v out of range", r.Source, r.Target, r.Weight)
		}
	}
	return nil
}

// NormalizePriority maps free-form priorities onto low/medium/high.
func NormalizePriority(p string) string {
	switch strings.ToLower(strings.TrimSpace(p)) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh, "urgent", "critical":
		return PriorityHigh
	default:
		return PriorityMedium
	}
}
