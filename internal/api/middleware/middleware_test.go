package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestID_GeneratesWhenMissing(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.NotEmpty(t, seen)
	assert.Equal(t, seen, w.Header().Get("X-Request-ID"))
}

func TestRequestID_KeepsIncoming(t *testing.T) {
	var seen string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "req-42", seen)
	assert.Equal(t, "req-42", w.Header().Get("X-Request-ID"))
}

func TestRequestID_ReplacesMalformed(t *testing.T) {
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, incoming := range []string{"has space", strings.Repeat("x", maxRequestIDLen+1), "tab\tid"} {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set(RequestIDHeader, incoming)
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		got := w.Header().Get(RequestIDHeader)
		assert.NotEqual(t, incoming, got)
		assert.Len(t, got, 36, "expected a generated uuid for %q", incoming)
	}
}

func TestAccessLog(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(logger))
	r.Get("/summary/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("hello"))
	})

	req := httptest.NewRequest(http.MethodGet, "/summary/meeting-1", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	req.Header.Set("X-Request-ID", "req-1")
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "http_request", entry["msg"])
	assert.Equal(t, "GET", entry["method"])
	assert.Equal(t, "/summary/meeting-1", entry["path"])
	assert.Equal(t, float64(http.StatusTeapot), entry["status"])
	assert.Equal(t, float64(5), entry["bytes"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "meeting-1", entry["source_id"])
	assert.Equal(t, "203.0.113.7", entry["remote_addr"])
}

func TestAccessLog_ServerErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	handler := AccessLog(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/chatbot/x/chat", nil))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	_, hasSource := entry["source_id"]
	assert.False(t, hasSource)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("X-Real-IP", "198.51.100.2")
	assert.Equal(t, "198.51.100.2", clientIP(req))
}

func TestMaxBodyBytes(t *testing.T) {
	var readErr error
	handler := MaxBodyBytes(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	}))

	t.Run("DeclaredTooLarge", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/sources/a", strings.NewReader("0123456789")))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "request body exceeds 8 bytes")
	})

	t.Run("StreamedTooLarge", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/sources/a", strings.NewReader("0123456789"))
		req.ContentLength = -1
		handler.ServeHTTP(httptest.NewRecorder(), req)
		assert.Error(t, readErr)
	})

	t.Run("WithinLimit", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/sources/a", strings.NewReader("0123")))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.NoError(t, readErr)
	})
}

func TestSentry_PassesThroughWithoutClient(t *testing.T) {
	r := chi.NewRouter()
	r.Use(Sentry)
	r.Get("/knowledge-graph/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/knowledge-graph/doc-1", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestSentry_RepanicsAfterCapture(t *testing.T) {
	handler := Sentry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	assert.PanicsWithValue(t, "boom", func() {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}

func TestHTTPStatusToSpanStatus(t *testing.T) {
	tests := []struct {
		status   int
		expected sentry.SpanStatus
	}{
		{http.StatusOK, sentry.SpanStatusOK},
		{http.StatusBadRequest, sentry.SpanStatusInvalidArgument},
		{http.StatusNotFound, sentry.SpanStatusNotFound},
		{http.StatusRequestEntityTooLarge, sentry.SpanStatusInvalidArgument},
		{http.StatusTooManyRequests, sentry.SpanStatusResourceExhausted},
		{http.StatusInternalServerError, sentry.SpanStatusInternalError},
		{http.StatusServiceUnavailable, sentry.SpanStatusUnavailable},
		{http.StatusGatewayTimeout, sentry.SpanStatusDeadlineExceeded},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, httpStatusToSpanStatus(tt.status), "status %d", tt.status)
	}
}

func TestSentry_SkipsHealth(t *testing.T) {
	var hasSpan bool
	handler := Sentry(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hasSpan = sentry.SpanFromContext(r.Context()) != nil
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.False(t, hasSpan)

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/sources/a", nil))
	assert.True(t, hasSpan)
}

func TestShouldCapture(t *testing.T) {
	assert.False(t, shouldCapture(http.StatusOK))
	assert.False(t, shouldCapture(http.StatusNotFound))
	assert.True(t, shouldCapture(http.StatusInternalServerError))
	assert.True(t, shouldCapture(http.StatusBadGateway))
	assert.False(t, shouldCapture(http.StatusServiceUnavailable))
	assert.False(t, shouldCapture(http.StatusGatewayTimeout))
}
