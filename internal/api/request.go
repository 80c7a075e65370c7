package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/huddlehq/huddle/internal/domain"
)

// DecodeJSON reads the request body into dst. On failure it writes the
// error response and returns false: 413 when the body hit the size limit,
// 400 otherwise.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	err := json.NewDecoder(r.Body).Decode(dst)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		BodyTooLarge(w, tooLarge.Limit)
		return false
	}

	Error(w, http.StatusBadRequest, "invalid request body")
	return false
}

// BodyTooLarge writes the 413 response for a body over limit bytes.
func BodyTooLarge(w http.ResponseWriter, limit int64) {
	JSON(w, http.StatusRequestEntityTooLarge, ErrorResponse{
		Error: fmt.Sprintf("request body exceeds %d bytes", limit),
		Code:  domain.ErrCodeValidation,
	})
}
