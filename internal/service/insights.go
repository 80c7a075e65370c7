package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/telemetry"
)

const insightsPrompt = `Analyze this %s and provide insights.

%s

Provide these sections, each as a "## " header:
## Quality Score
A score from 1 to 10 with reasoning.
## Content Analysis
Main themes, style and structure.
## Key Insights
The most important findings or conclusions.
## Recommendations
Suggested improvements or applications.
## Metrics
Length, complexity and readability.`

// InsightService produces an analytical review of a source
type InsightService struct {
	model    Completer
	chunkCfg ChunkConfig
	logger   *slog.Logger
}

// NewInsightService creates a new InsightService instance
func NewInsightService(model Completer, chunkCfg ChunkConfig, logger *slog.Logger) *InsightService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InsightService{model: model, chunkCfg: chunkCfg.withDefaults(), logger: logger}
}

// Insights returns the model's review of text in one call. Text beyond the
// context threshold is cut and the model is told so.
func (s *InsightService) Insights(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyInput
	}

	ctx, span := telemetry.StartSpan(ctx, "insights", telemetry.SpanAttributes{Operation: "insights"})
	defer span.End()

	subject := "document"
	body, cut := truncateRunes(text, s.chunkCfg.ContextThreshold)
	if cut {
		subject = fmt.Sprintf("document (truncated to its first %d characters)", s.chunkCfg.ContextThreshold)
		s.logger.Info("insights input truncated", "limit", s.chunkCfg.ContextThreshold)
	}

	out, err := s.model.Complete(ctx, fmt.Sprintf(insightsPrompt, subject, body))
	if err != nil {
		span.SetError(err)
		return "", err
	}
	return strings.TrimSpace(out), nil
}
