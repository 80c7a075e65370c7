package vectorindex

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/viant/sqlite-vec/vector"
)

// FormatVersion is written into every serialized index.
const FormatVersion = 1

type envelope struct {
	Version     int            `json:"version"`
	SourceID    string         `json:"source_id"`
	Model       string         `json:"model"`
	ContentHash string         `json:"content_hash,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	Entries     []encodedEntry `json:"entries"`
}

type encodedEntry struct {
	Ordinal int    `json:"ordinal"`
	Text    string `json:"text"`
	Vector  []byte `json:"vector"`
}

// Encode serializes an index. Vectors are stored as little-endian float32
// blobs so the round trip is lossless.
func Encode(idx *Index) ([]byte, error) {
	if idx == nil {
		return nil, fmt.Errorf("vectorindex: cannot encode nil index")
	}

	env := envelope{
		Version:     FormatVersion,
		SourceID:    idx.SourceID,
		Model:       idx.Model,
		ContentHash: idx.ContentHash,
		CreatedAt:   idx.CreatedAt,
		Entries:     make([]encodedEntry, len(idx.Entries)),
	}
	for i, e := range idx.Entries {
		blob, err := vector.EncodeEmbedding(e.Vector)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: entry %d: %w", e.Ordinal, err)
		}
		env.Entries[i] = encodedEntry{
			Ordinal: e.Ordinal,
			Text:    e.Text,
			Vector:  blob,
		}
	}

	return json.Marshal(env)
}

// Decode parses data produced by Encode.
func Decode(data []byte) (*Index, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("vectorindex: decode envelope: %w", err)
	}
	if env.Version != FormatVersion {
		return nil, fmt.Errorf("vectorindex: unsupported format version %d", env.Version)
	}

	idx := &Index{
		SourceID:    env.SourceID,
		Model:       env.Model,
		ContentHash: env.ContentHash,
		CreatedAt:   env.CreatedAt,
		Entries:     make([]Entry, len(env.Entries)),
	}
	for i, e := range env.Entries {
		vec, err := vector.DecodeEmbedding(e.Vector)
		if err != nil {
			return nil, fmt.Errorf("vectorindex: entry %d: %w", e.Ordinal, err)
		}
		idx.Entries[i] = Entry{Ordinal: e.Ordinal, Text: e.Text, Vector: vec}
	}

	return idx, nil
}
