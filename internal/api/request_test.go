package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecodeJSON(t *testing.T) {
	type body struct {
		Language string `json:"language"`
	}

	t.Run("Valid", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"language":"German"}`))

		assert.True(t, DecodeJSON(w, r, &dst))
		assert.Equal(t, "German", dst.Language)
	})

	t.Run("Malformed", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"language":`))

		assert.False(t, DecodeJSON(w, r, &dst))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid request body")
	})

	t.Run("OverLimit", func(t *testing.T) {
		var dst body
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"language":"`+strings.Repeat("x", 64)+`"}`))
		r.Body = http.MaxBytesReader(w, r.Body, 16)

		assert.False(t, DecodeJSON(w, r, &dst))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "exceeds 16 bytes")
		assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
	})
}
