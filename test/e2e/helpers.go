//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/huddlehq/huddle/internal/api/handlers"
	"github.com/huddlehq/huddle/internal/cli/client"
	"github.com/huddlehq/huddle/internal/cli/daemon"
	"github.com/huddlehq/huddle/internal/config"
	"github.com/huddlehq/huddle/internal/server"
	"github.com/huddlehq/huddle/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T         *testing.T
	Ctx       context.Context
	PostgresC *testutil.PostgresContainer
	RustFSC   *testutil.RustFSContainer
	Pool      *pgxpool.Pool
	App       *daemon.App
	Model     *FakeModel
	Server    *httptest.Server
	API       *client.APIClient
	BinaryDir string
}

// SetupE2EEnv starts Postgres and RustFS, wires the daemon against them and
// a fake model endpoint, and serves the API on a local port.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	model := NewFakeModel(t)

	cfg := &config.Config{
		Environment:          "test",
		DatabaseURL:          pgC.ConnectionString(),
		OpenAIAPIKey:         "test",
		OpenAIBaseURL:        model.URL(),
		ChatModel:            "fake-chat",
		EmbeddingModel:       "fake-embed",
		ContextThreshold:     400,
		ChunkSize:            200,
		ChunkOverlap:         40,
		RetrievalTopK:        3,
		SummaryRetries:       1,
		IndexBackend:         config.IndexBackendS3,
		IndexJobPollInterval: 200 * time.Millisecond,
		S3Endpoint:           s3C.Endpoint(),
		S3Region:             "us-east-1",
		S3AccessKey:          testutil.RustFSAccessKey,
		S3SecretKey:          testutil.RustFSSecretKey,
		S3Bucket:             "e2e-indexes",
		RequestTimeout:       time.Minute,
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := daemon.NewAppWithPool(ctx, cfg, logger, pool)
	if err != nil {
		t.Fatalf("failed to wire app: %v", err)
	}

	router := server.NewRouter(server.RouterConfig{
		SourceHandler:   handlers.NewSourceHandler(app.Workspace),
		AnalysisHandler: handlers.NewAnalysisHandler(app.Workspace),
		ChatHandler:     handlers.NewChatHandler(app.Workspace),
		HealthHandler:   handlers.NewHealthHandler(pool),
		RequestTimeout:  cfg.RequestTimeout,
		Logger:          logger,
	})
	srv := httptest.NewServer(router)

	return &E2ETestEnv{
		T:         t,
		Ctx:       ctx,
		PostgresC: pgC,
		RustFSC:   s3C,
		Pool:      pool,
		App:       app,
		Model:     model,
		Server:    srv,
		API:       client.NewAPIClientWithConfig(srv.URL, 30*time.Second),
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.Server != nil {
		e.Server.Close()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// Reset truncates every table between subtests.
func (e *E2ETestEnv) Reset() {
	if err := testutil.TruncateAll(e.Ctx, e.Pool); err != nil {
		e.T.Fatalf("failed to reset database: %v", err)
	}
}

// BuildBinaries builds the huddle CLI binary
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "huddle-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "huddle"), "./cmd/huddle")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build huddle: %v\n%s", err, out)
	}
}

// RunHuddle runs the huddle CLI against the test server with stdin input
func (e *E2ETestEnv) RunHuddle(input string, args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "huddle"), args...)
	cmd.Dir = e.BinaryDir
	cmd.Stdin = strings.NewReader(input)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("HUDDLE_API_URL=%s", e.Server.URL),
		fmt.Sprintf("XDG_CONFIG_HOME=%s", e.BinaryDir),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// PutSource stores a source through the API.
func (e *E2ETestEnv) PutSource(id, kind, content string) *client.PutSourceResult {
	resp, err := e.API.Put(e.Ctx, "/sources/"+id, map[string]string{
		"kind":    kind,
		"title":   id,
		"content": content,
	})
	if err != nil {
		e.T.Fatalf("failed to put source %s: %v", id, err)
	}
	var result client.PutSourceResult
	if err := resp.Decode(&result); err != nil {
		e.T.Fatalf("failed to decode put response: %v", err)
	}
	return &result
}

// WaitForJob polls the index job until it leaves the queue.
func (e *E2ETestEnv) WaitForJob(jobID string, timeout time.Duration) string {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var status string
		err := e.Pool.QueryRow(e.Ctx, "SELECT status FROM index_jobs WHERE id = $1", jobID).Scan(&status)
		if err != nil {
			e.T.Fatalf("failed to read job %s: %v", jobID, err)
		}
		if status == "completed" || status == "failed" {
			return status
		}
		time.Sleep(100 * time.Millisecond)
	}
	e.T.Fatalf("job %s did not finish within %s", jobID, timeout)
	return ""
}

// LongTranscript returns a meeting transcript longer than the test context threshold.
func LongTranscript() string {
	var b strings.Builder
	speakers := []string{"Alice", "Bob", "Carol"}
	for i := 0; i < 30; i++ {
		fmt.Fprintf(&b, "%s: item %d on the launch checklist is reviewed and agreed.\n", speakers[i%len(speakers)], i)
	}
	return b.String()
}

// FakeModel is an OpenAI-compatible endpoint returning canned completions
// and deterministic embeddings.
type FakeModel struct {
	srv         *httptest.Server
	completions atomic.Int64
	embeddings  atomic.Int64
	failing     atomic.Bool
}

const fakeGraph = `{"nodes":[{"id":"person_alice","label":"Alice","type":"person"},{"id":"project_launch","label":"Launch","type":"project"}],` +
	`"edges":[{"source":"person_alice","target":"project_launch","relationship":"leads","weight":1}],` +
	`"topics":["launch"],"action_items":[{"task":"Finish the checklist","assignee":"Alice","due_date":"Friday","priority":"high"}]}`

// NewFakeModel starts the fake endpoint.
func NewFakeModel(t *testing.T) *FakeModel {
	m := &FakeModel{}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		m.completions.Add(1)
		if m.failing.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"overloaded","type":"server_error"}}`))
			return
		}

		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		prompt := ""
		if len(req.Messages) > 0 {
			prompt = req.Messages[0].Content
		}

		content := "Alice leads the launch."
		switch {
		case strings.Contains(prompt, "knowledge graph"):
			content = fakeGraph
		case strings.Contains(prompt, "Translate"), strings.Contains(prompt, "translate"):
			content = "Alice leitet den Start."
		case strings.Contains(prompt, "summary"):
			content = "## Summary\nThe team reviewed the launch checklist."
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":      "fake",
			"object":  "chat.completion",
			"choices": []map[string]any{{"index": 0, "message": map[string]string{"role": "assistant", "content": content}, "finish_reason": "stop"}},
		})
	})
	mux.HandleFunc("/v1/embeddings", func(w http.ResponseWriter, r *http.Request) {
		m.embeddings.Add(1)
		var req struct {
			Input []string `json:"input"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		text := ""
		if len(req.Input) > 0 {
			text = req.Input[0]
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"model":  "fake-embed",
			"data":   []map[string]any{{"object": "embedding", "index": 0, "embedding": fakeEmbedding(text)}},
		})
	})

	m.srv = httptest.NewServer(mux)
	t.Cleanup(m.srv.Close)
	return m
}

// URL returns the base URL to configure the model client with.
func (m *FakeModel) URL() string {
	return m.srv.URL + "/v1"
}

// SetFailing makes completions return 503 until reset.
func (m *FakeModel) SetFailing(v bool) {
	m.failing.Store(v)
}

// fakeEmbedding maps text to a small vector of letter frequencies.
func fakeEmbedding(text string) []float32 {
	vec := make([]float32, 4)
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'f':
			vec[0]++
		case r >= 'g' && r <= 'm':
			vec[1]++
		case r >= 'n' && r <= 's':
			vec[2]++
		case r >= 't' && r <= 'z':
			vec[3]++
		}
	}
	vec[0] += 1
	return vec
}
