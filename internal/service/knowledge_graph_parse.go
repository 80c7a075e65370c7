package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/huddlehq/huddle/internal/domain"
)

// ErrGraphParse is returned when a model response holds no usable graph.
var ErrGraphParse = errors.New("unparseable knowledge graph response")

type rawGraph struct {
	Nodes       []rawEntity       `json:"nodes"`
	Edges       []rawRelationship `json:"edges"`
	Topics      []any             `json:"topics"`
	ActionItems []rawActionItem   `json:"action_items"`
}

type rawEntity struct {
	ID         any            `json:"id"`
	Label      any            `json:"label"`
	Type       any            `json:"type"`
	Properties map[string]any `json:"properties"`
}

type rawRelationship struct {
	Source       any `json:"source"`
	Target       any `json:"target"`
	Relationship any `json:"relationship"`
	Weight       any `json:"weight"`
}

type rawActionItem struct {
	Task     any `json:"task"`
	Assignee any `json:"assignee"`
	DueDate  any `json:"due_date"`
	Priority any `json:"priority"`
}

// ParseGraphResponse turns raw model output into a knowledge graph. Code
// fences and prose around the JSON object are ignored; loosely typed values
// are coerced. A response without any entity is a parse failure.
func ParseGraphResponse(raw string) (*domain.KnowledgeGraph, error) {
	payload := extractJSONObject(stripCodeFences(raw))
	if payload == "" {
		return nil, fmt.Errorf("%w: no JSON object found", ErrGraphParse)
	}

	var rg rawGraph
	if err := json.Unmarshal([]byte(payload), &rg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGraphParse, err)
	}

	g := domain.NewKnowledgeGraph()
	for _, n := range rg.Nodes {
		label := strings.TrimSpace(stringify(n.Label))
		id := strings.TrimSpace(stringify(n.ID))
		typ := strings.ToLower(strings.TrimSpace(stringify(n.Type)))
		if typ == "" {
			typ = domain.EntityTypeOther
		}
		if id == "" && label != "" {
			id = domain.EntitySlug(typ, label)
		}
		if id == "" {
			continue
		}
		if label == "" {
			label = id
		}

		props := make(map[string]string, len(n.Properties))
		for k, v := range n.Properties {
			props[k] = stringify(v)
		}

		g.Nodes = append(g.Nodes, domain.Entity{ID: id, Label: label, Type: typ, Properties: props})
	}

	if len(g.Nodes) == 0 {
		return nil, fmt.Errorf("%w: no entities", ErrGraphParse)
	}

	for _, e := range rg.Edges {
		rel := domain.Relationship{
			Source:       strings.TrimSpace(stringify(e.Source)),
			Target:       strings.TrimSpace(stringify(e.Target)),
			Relationship: strings.TrimSpace(stringify(e.Relationship)),
			Weight:       parseWeight(e.Weight),
		}
		if rel.Source == "" || rel.Target == "" {
			continue
		}
		if rel.Relationship == "" {
			rel.Relationship = "related_to"
		}
		g.Edges = append(g.Edges, rel)
	}

	for _, t := range rg.Topics {
		if topic := strings.TrimSpace(stringify(t)); topic != "" {
			g.Topics = append(g.Topics, topic)
		}
	}

	for _, a := range rg.ActionItems {
		task := strings.TrimSpace(stringify(a.Task))
		if task == "" {
			continue
		}
		g.ActionItems = append(g.ActionItems, domain.ActionItem{
			Task:     task,
			Assignee: orUnassigned(stringify(a.Assignee)),
			DueDate:  orUnassigned(stringify(a.DueDate)),
			Priority: domain.NormalizePriority(stringify(a.Priority)),
		})
	}

	return g, nil
}

func stripCodeFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		if nl := strings.IndexByte(s, '\n'); nl >= 0 && !strings.Contains(s[:nl], "{") {
			s = s[nl+1:]
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// extractJSONObject returns the outermost {...} span of s.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return ""
	}
	return s[start : end+1]
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func parseWeight(v any) float64 {
	var w float64
	switch t := v.(type) {
	case nil:
		return 1.0
	case float64:
		w = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 1.0
		}
		w = parsed
	default:
		return 1.0
	}
	if math.IsNaN(w) || w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func orUnassigned(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return domain.Unassigned
	}
	return s
}
