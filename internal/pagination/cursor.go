// Package pagination implements opaque keyset cursors over (created_at, id).
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"time"
)

// Page size bounds for list endpoints.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// ErrInvalidCursor is returned for cursors this package did not produce.
var ErrInvalidCursor = errors.New("invalid cursor format")

// Cursor is the keyset position after the last item of a page.
type Cursor struct {
	LastID    string    `json:"id"`
	Timestamp time.Time `json:"ts"`
}

// PageResult is one page of items and the cursor for the next.
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

// EncodeCursor returns the opaque cursor for the item (lastID, timestamp).
// An empty id encodes to "".
func EncodeCursor(lastID string, timestamp time.Time) string {
	if lastID == "" {
		return ""
	}
	raw, err := json.Marshal(Cursor{LastID: lastID, Timestamp: timestamp.UTC()})
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor reverses EncodeCursor. An empty cursor decodes to nil.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	var c Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.LastID == "" || c.Timestamp.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &c, nil
}

// Trim cuts a result fetched with limit+1 rows down to limit and returns
// the next cursor when more rows remain.
func Trim[T any](items []T, limit int, key func(T) (string, time.Time)) ([]T, string, bool) {
	if limit <= 0 || len(items) <= limit {
		return items, "", false
	}
	items = items[:limit]
	id, ts := key(items[len(items)-1])
	return items, EncodeCursor(id, ts), true
}

// ClampLimit maps a requested page size into [1, MaxLimit], using
// DefaultLimit for non-positive values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	default:
		return limit
	}
}
