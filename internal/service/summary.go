package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/telemetry"
)

// Completer issues a single prompt to the generative model
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

const missingSectionBody = "None identified."

const summaryPrompt = `Analyze this transcript and write a structured summary in markdown.

Transcript:
%s

Use exactly these sections, each as a "## " header, in this order:
## Executive Summary
2-3 sentences.
## Key Points
Bullet points.
## Decisions
Bullet points of decisions made, or "None identified."
## Action Items
Bullet points with owner and due date when stated.
## Next Steps
Bullet points.
## Notable Quotes
Short verbatim quotes with the speaker when known.`

const summaryChunkPrompt = `You are reading part %d of %d of a longer transcript.
Extract, for this part only:
- key points
- decisions
- action items
- participants

Transcript part:
%s`

const summaryConsolidatePrompt = `Below are partial notes taken from consecutive parts of one transcript, in order.
Merge them into a single summary and remove duplicates.

%s

Use exactly these sections, each as a "## " header, in this order:
## Executive Summary
## Key Points
## Decisions
## Action Items
## Next Steps
## Notable Quotes`

// SummaryService produces six-section summaries of a source
type SummaryService struct {
	model      Completer
	chunkCfg   ChunkConfig
	retries    int
	retryDelay time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// SummaryOption configures a SummaryService
type SummaryOption func(*SummaryService)

// WithSummaryRetries sets how many times a failed model call is retried.
func WithSummaryRetries(retries int, delay time.Duration) SummaryOption {
	return func(s *SummaryService) {
		if retries >= 0 {
			s.retries = retries
		}
		s.retryDelay = delay
	}
}

// NewSummaryService creates a new SummaryService instance
func NewSummaryService(model Completer, chunkCfg ChunkConfig, logger *slog.Logger, opts ...SummaryOption) *SummaryService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &SummaryService{
		model:      model,
		chunkCfg:   chunkCfg,
		retries:    1,
		retryDelay: 500 * time.Millisecond,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize returns the summary of text. Short text takes one model call;
// long text takes one call per chunk plus a consolidation call. Any failed
// call fails the whole operation with domain.ErrSummaryGeneration.
func (s *SummaryService) Summarize(ctx context.Context, text string) (*domain.Summary, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}

	ctx, span := telemetry.StartSpan(ctx, "summary.generate", telemetry.SpanAttributes{Operation: "summarize"})
	defer span.End()

	chunks := ChunkText(text, s.chunkCfg)
	span.SetChunkCount(len(chunks))

	var content string
	var err error
	if len(chunks) == 1 {
		content, err = s.complete(ctx, fmt.Sprintf(summaryPrompt, text))
	} else {
		content, err = s.summarizeChunks(ctx, chunks)
	}
	if err != nil {
		span.SetError(err)
		return nil, domain.NewSummaryGenerationError(err)
	}

	return &domain.Summary{
		Content:    NormalizeSummary(content),
		ChunkCount: len(chunks),
		CreatedAt:  s.now(),
	}, nil
}

func (s *SummaryService) summarizeChunks(ctx context.Context, chunks []domain.Chunk) (string, error) {
	partials := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out, err := s.complete(ctx, fmt.Sprintf(summaryChunkPrompt, c.Index+1, len(chunks), c.Text))
		if err != nil {
			return "", fmt.Errorf("chunk %d: %w", c.Index, err)
		}
		partials = append(partials, strings.TrimSpace(out))
	}

	s.logger.Debug("consolidating partial summaries", "parts", len(partials))
	out, err := s.complete(ctx, fmt.Sprintf(summaryConsolidatePrompt, strings.Join(partials, "\n\n")))
	if err != nil {
		return "", fmt.Errorf("consolidate: %w", err)
	}
	return out, nil
}

// complete retries model unavailability up to s.retries times.
func (s *SummaryService) complete(ctx context.Context, prompt string) (string, error) {
	var out string
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.retryDelay), uint64(s.retries)),
		ctx,
	)

	err := backoff.RetryNotify(func() error {
		var err error
		out, err = s.model.Complete(ctx, prompt)
		if err != nil && !errors.Is(err, domain.ErrModelUnavailable) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		s.logger.Warn("summary model call failed, retrying", "error", err, "wait", wait)
	})

	return out, err
}

var sectionHeader = regexp.MustCompile(`(?m)^[ \t]*(?:#{1,6}[ \t]*|\*\*|\d+\.[ \t]*(?:\*\*)?)?[ \t]*([A-Za-z][A-Za-z ]*[A-Za-z])[ \t]*(?:\*\*)?:?[ \t]*$`)

// NormalizeSummary appends any of the fixed sections the model left out,
// each with a placeholder body.
func NormalizeSummary(content string) string {
	content = strings.TrimSpace(content)

	present := make(map[string]bool, len(domain.SummarySections))
	for _, m := range sectionHeader.FindAllStringSubmatch(content, -1) {
		present[strings.ToLower(m[1])] = true
	}

	var b strings.Builder
	b.WriteString(content)
	for _, section := range domain.SummarySections {
		if present[strings.ToLower(section)] {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "## %s\n%s", section, missingSectionBody)
	}
	return b.String()
}
