package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/huddlehq/huddle/internal/domain"
	"github.com/huddlehq/huddle/internal/telemetry"
	"github.com/huddlehq/huddle/internal/vectorindex"
)

// NoAnswerMessage replaces an empty model answer.
const NoAnswerMessage = "I couldn't generate a response. Please try rephrasing your question."

// InsufficientInformation is the phrase the model is told to use when the
// context does not answer the question.
const InsufficientInformation = "I don't have enough information in the transcript to answer that question."

const chatPrompt = `You are an assistant answering questions about a meeting transcript or document.

%s:
%s

Question: %s

Instructions:
- Answer only from the context above.
- If the answer is not in the context, say "` + InsufficientInformation + `"
- Cite specifics such as the speaker or timestamp when the context includes them.
- Keep the answer concise.

Answer:`

// DefaultRetrievalTopK is the number of chunks retrieved per question.
const DefaultRetrievalTopK = 5

// IndexProvider is the embedding index surface the chat engine needs
type IndexProvider interface {
	Load(ctx context.Context, sourceID, text string) (*vectorindex.Index, bool)
	Build(ctx context.Context, sourceID, text string) (*vectorindex.Index, error)
	Query(ctx context.Context, idx *vectorindex.Index, question string, k int) ([]string, error)
}

// ChatService answers questions grounded in a source's text
type ChatService struct {
	model    Completer
	indexes  IndexProvider
	chunkCfg ChunkConfig
	topK     int
	logger   *slog.Logger
}

// NewChatService creates a new ChatService instance
func NewChatService(model Completer, indexes IndexProvider, chunkCfg ChunkConfig, topK int, logger *slog.Logger) *ChatService {
	if logger == nil {
		logger = slog.Default()
	}
	if topK <= 0 {
		topK = DefaultRetrievalTopK
	}
	return &ChatService{
		model:    model,
		indexes:  indexes,
		chunkCfg: chunkCfg.withDefaults(),
		topK:     topK,
		logger:   logger,
	}
}

// Answer answers question from text. Short text is sent whole. Long text is
// answered from the top-k retrieved chunks, building the index on first use;
// when no index can be built or queried, the first ContextThreshold runes
// are sent instead. Only the final model call can fail the request.
func (s *ChatService) Answer(ctx context.Context, sourceID, text, question string) (*domain.ChatAnswer, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyInput
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.ErrEmptyQuestion
	}

	ctx, span := telemetry.StartSpan(ctx, "chat.answer", telemetry.SpanAttributes{
		SourceID:  sourceID,
		Operation: "answer",
	})
	defer span.End()

	mode, contextLabel, contextText := s.selectContext(ctx, sourceID, text, question)
	span.SetTag("mode", string(mode))

	out, err := s.model.Complete(ctx, fmt.Sprintf(chatPrompt, contextLabel, contextText, question))
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	answer := strings.TrimSpace(out)
	if answer == "" {
		answer = NoAnswerMessage
	}

	return &domain.ChatAnswer{Answer: answer, Mode: mode}, nil
}

func (s *ChatService) selectContext(ctx context.Context, sourceID, text, question string) (domain.AnswerMode, string, string) {
	if s.chunkCfg.FitsContext(text) {
		return domain.AnswerModeDirect, "Transcript", text
	}

	idx, ok := s.indexes.Load(ctx, sourceID, text)
	if !ok {
		built, err := s.indexes.Build(ctx, sourceID, text)
		if err != nil {
			s.logger.Warn("index build failed, answering from truncated text", "source_id", sourceID, "error", err)
			return s.truncated(text)
		}
		idx = built
	}

	excerpts, err := s.indexes.Query(ctx, idx, question, s.topK)
	if err != nil || len(excerpts) == 0 {
		s.logger.Warn("retrieval failed, answering from truncated text", "source_id", sourceID, "error", err)
		return s.truncated(text)
	}

	return domain.AnswerModeRetrieval, "Relevant transcript excerpts", strings.Join(excerpts, "\n")
}

func (s *ChatService) truncated(text string) (domain.AnswerMode, string, string) {
	cut, _ := truncateRunes(text, s.chunkCfg.ContextThreshold)
	label := fmt.Sprintf("Transcript (truncated to the first %d characters; later content is missing)", s.chunkCfg.ContextThreshold)
	return domain.AnswerModeTruncated, label, cut
}
