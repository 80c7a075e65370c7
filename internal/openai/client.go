// Package openai is the generative model client: one text completion call
// and one embedding call over any OpenAI-compatible endpoint.
package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/huddlehq/huddle/internal/domain"
	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultChatModel is used for completions when none is configured
	DefaultChatModel = openai.GPT4oMini
	// DefaultEmbeddingModel is used for embeddings when none is configured
	DefaultEmbeddingModel = openai.SmallEmbedding3
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has an unexpected dimension
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when no API key is configured
	ErrNoAPIKey = errors.New("model API key not set")
)

// ModelAPI is the transport the client delegates to.
type ModelAPI interface {
	CreateCompletion(ctx context.Context, prompt string) (string, error)
	CreateEmbeddings(ctx context.Context, text string) ([]float32, error)
}

// Config selects the endpoint and models. It is built once at startup and
// injected wherever a Client is needed.
type Config struct {
	APIKey              string
	BaseURL             string
	ChatModel           string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	Temperature         float32
}

// Client is a stateless model client. It never retries.
type Client struct {
	api        ModelAPI
	dimensions int
}

type OpenAIAdapter struct {
	client     *openai.Client
	chatModel  string
	embedModel openai.EmbeddingModel
	dimensions int
	temp       float32
}

func NewOpenAIAdapter(cfg Config) *OpenAIAdapter {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	}

	chatModel := cfg.ChatModel
	if chatModel == "" {
		chatModel = DefaultChatModel
	}
	embedModel := cfg.EmbeddingModel
	if embedModel == "" {
		embedModel = DefaultEmbeddingModel
	}

	return &OpenAIAdapter{
		client:     openai.NewClientWithConfig(clientCfg),
		chatModel:  chatModel,
		embedModel: embedModel,
		dimensions: cfg.EmbeddingDimensions,
		temp:       cfg.Temperature,
	}
}

// CreateCompletion sends the prompt as a single user message
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, prompt string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.chatModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: a.temp,
	})
	if err != nil {
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", errors.New("no completion choices returned")
	}

	return resp.Choices[0].Message.Content, nil
}

// CreateEmbeddings calls the embeddings endpoint for a single input
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, text string) ([]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input:      []string{text},
		Model:      a.embedModel,
		Dimensions: a.dimensions,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("no embedding data returned")
	}

	return resp.Data[0].Embedding, nil
}

// NewClient creates a client for the configured endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClientWithAPI(NewOpenAIAdapter(cfg), cfg.EmbeddingDimensions), nil
}

// NewUnconfiguredClient returns a client whose every call fails with
// ErrNoAPIKey, reported as the model being unavailable.
func NewUnconfiguredClient() *Client {
	return NewClientWithAPI(unconfiguredAPI{}, 0)
}

type unconfiguredAPI struct{}

func (unconfiguredAPI) CreateCompletion(context.Context, string) (string, error) {
	return "", ErrNoAPIKey
}

func (unconfiguredAPI) CreateEmbeddings(context.Context, string) ([]float32, error) {
	return nil, ErrNoAPIKey
}

// NewClientWithAPI wraps an arbitrary transport. dimensions <= 0 disables
// the embedding dimension check.
func NewClientWithAPI(api ModelAPI, dimensions int) *Client {
	return &Client{api: api, dimensions: dimensions}
}

// Complete returns the raw text completion for prompt. Transport failures
// are reported as domain.ErrModelUnavailable.
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	if prompt == "" {
		return "", ErrEmptyText
	}

	out, err := c.api.CreateCompletion(ctx, prompt)
	if err != nil {
		return "", domain.NewModelUnavailableError(fmt.Errorf("create completion: %w", err))
	}

	return out, nil
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embedding, err := c.api.CreateEmbeddings(ctx, text)
	if err != nil {
		return nil, domain.NewModelUnavailableError(fmt.Errorf("create embedding: %w", err))
	}

	if c.dimensions > 0 && len(embedding) != c.dimensions {
		return nil, domain.NewModelUnavailableError(
			fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(embedding)))
	}

	return embedding, nil
}
