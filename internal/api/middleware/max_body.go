package middleware

import (
	"net/http"

	"github.com/huddlehq/huddle/internal/api"
)

// MaxBodyBytes caps request bodies at limit bytes. Declared oversize bodies
// are refused up front; streamed ones fail on read and are reported by
// api.DecodeJSON.
func MaxBodyBytes(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limit > 0 && r.Body != nil && r.Body != http.NoBody {
				if r.ContentLength > limit {
					api.BodyTooLarge(w, limit)
					return
				}
				r.Body = http.MaxBytesReader(w, r.Body, limit)
			}
			next.ServeHTTP(w, r)
		})
	}
}
