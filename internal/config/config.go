package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Index storage backends
const (
	IndexBackendFile     = "file"
	IndexBackendS3       = "s3"
	IndexBackendPostgres = "postgres"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Debug       bool   `envconfig:"DEBUG" default:"false"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"0"`

	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"30s"`

	OpenAIAPIKey        string `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL       string `envconfig:"OPENAI_BASE_URL"`
	ChatModel           string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel      string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`
	EmbeddingDimensions int    `envconfig:"EMBEDDING_DIMENSIONS" default:"0"`

	ContextThreshold int `envconfig:"CONTEXT_THRESHOLD" default:"30000"`
	ChunkSize        int `envconfig:"CHUNK_SIZE" default:"4096"`
	ChunkOverlap     int `envconfig:"CHUNK_OVERLAP" default:"512"`
	RetrievalTopK    int `envconfig:"RETRIEVAL_TOP_K" default:"5"`
	SummaryRetries   int `envconfig:"SUMMARY_RETRIES" default:"1"`

	IndexBackend         string        `envconfig:"INDEX_BACKEND" default:"file"`
	IndexDir             string        `envconfig:"INDEX_DIR" default:"vector_stores"`
	IndexJobPollInterval time.Duration `envconfig:"INDEX_JOB_POLL_INTERVAL" default:"10s"`

	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"huddle-indexes"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	RequestTimeout time.Duration `envconfig:"REQUEST_TIMEOUT" default:"2m"`
	SentryDSN      string        `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("HUDDLE", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values envconfig cannot express.
func (c *Config) Validate() error {
	switch c.IndexBackend {
	case IndexBackendFile, IndexBackendPostgres:
	case IndexBackendS3:
		if !c.HasS3() {
			return fmt.Errorf("index backend %q requires S3_ENDPOINT, S3_ACCESS_KEY_ID and S3_SECRET_ACCESS_KEY", c.IndexBackend)
		}
	default:
		return fmt.Errorf("unknown index backend %q", c.IndexBackend)
	}

	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 || c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap must be in [0, %d), got %d", c.ChunkSize, c.ChunkOverlap)
	}
	if c.ContextThreshold <= 0 {
		return fmt.Errorf("context threshold must be positive, got %d", c.ContextThreshold)
	}
	if c.RetrievalTopK <= 0 {
		return fmt.Errorf("retrieval top k must be positive, got %d", c.RetrievalTopK)
	}
	return nil
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
