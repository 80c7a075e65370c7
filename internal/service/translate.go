package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/telemetry"
)

const translatePrompt = `Translate the following text to %s.
Keep speaker names, timestamps and formatting unchanged. Return only the translation.

%s`

// TranslationService translates source text
type TranslationService struct {
	model    Completer
	chunkCfg ChunkConfig
	logger   *slog.Logger
}

// NewTranslationService creates a new TranslationService instance
func NewTranslationService(model Completer, chunkCfg ChunkConfig, logger *slog.Logger) *TranslationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TranslationService{model: model, chunkCfg: chunkCfg, logger: logger}
}

// Translate translates text into language. Long text is translated chunk by
// chunk without overlap so no passage is translated twice.
func (s *TranslationService) Translate(ctx context.Context, text, language string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", domain.ErrEmptyInput
	}
	language = strings.TrimSpace(language)
	if language == "" {
		return "", domain.NewDomainError(domain.ErrCodeValidation, "target language is required")
	}

	ctx, span := telemetry.StartSpan(ctx, "translate", telemetry.SpanAttributes{Operation: "translate"})
	defer span.End()

	cfg := s.chunkCfg
	cfg.Overlap = 0
	chunks := ChunkText(text, cfg)
	span.SetChunkCount(len(chunks))

	parts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		out, err := s.model.Complete(ctx, fmt.Sprintf(translatePrompt, language, c.Text))
		if err != nil {
			span.SetError(err)
			return "", fmt.Errorf("translate chunk %d: %w", c.Index, err)
		}
		parts = append(parts, strings.TrimSpace(out))
	}

	s.logger.Debug("translation complete", "language", language, "chunks", len(chunks))
	return strings.Join(parts, "\n\n"), nil
}
