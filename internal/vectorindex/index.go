// Package vectorindex holds the per-source embedding index: chunk texts with
// their vectors, cosine similarity search, and a portable serialized form.
package vectorindex

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"
)

// Entry is one embedded chunk. Ordinal is the chunk's position in the source.
type Entry struct {
	Ordinal int
	Text    string
	Vector  []float32
}

// Result is a search hit
type Result struct {
	Entry Entry
	Score float64
}

// Index is the set of embedded chunks for one source. ContentHash is the
// HashContent of the text the entries were cut from.
type Index struct {
	SourceID    string
	Model       string
	ContentHash string
	CreatedAt   time.Time
	Entries     []Entry
}

// HashContent returns the hex SHA-256 of text.
func HashContent(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Covers reports whether the index was built from exactly text.
func (idx *Index) Covers(text string) bool {
	return idx.ContentHash != "" && idx.ContentHash == HashContent(text)
}

// New creates an empty index for a source.
func New(sourceID, model string, createdAt time.Time) *Index {
	return &Index{
		SourceID:  sourceID,
		Model:     model,
		CreatedAt: createdAt,
		Entries:   []Entry{},
	}
}

// Add appends an entry with the next ordinal.
func (idx *Index) Add(text string, vector []float32) {
	idx.Entries = append(idx.Entries, Entry{
		Ordinal: len(idx.Entries),
		Text:    text,
		Vector:  vector,
	})
}

// Len returns the number of entries
func (idx *Index) Len() int {
	return len(idx.Entries)
}

// Dimension returns the vector dimension, or 0 for an empty index.
func (idx *Index) Dimension() int {
	if len(idx.Entries) == 0 {
		return 0
	}
	return len(idx.Entries[0].Vector)
}

// Search returns the k entries most similar to query by cosine similarity,
// highest score first. Equal scores are ordered by ordinal.
func (idx *Index) Search(query []float32, k int) ([]Result, error) {
	if k <= 0 || len(idx.Entries) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(idx.Entries))
	for _, e := range idx.Entries {
		if len(e.Vector) != len(query) {
			return nil, fmt.Errorf("vectorindex: dimension mismatch: query %d, entry %d has %d", len(query), e.Ordinal, len(e.Vector))
		}
		results = append(results, Result{Entry: e, Score: similarity(query, e.Vector)})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Entry.Ordinal < results[j].Entry.Ordinal
	})

	if k < len(results) {
		results = results[:k]
	}
	return results, nil
}

// Texts returns the entry texts of results in order.
func Texts(results []Result) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.Entry.Text
	}
	return out
}
