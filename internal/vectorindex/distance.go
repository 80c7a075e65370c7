package vectorindex

import "github.com/viant/sqlite-vec/vector"

// similarity is the cosine similarity of two vectors of equal dimension.
// Empty and zero-magnitude vectors score 0.
func similarity(a, b []float32) float64 {
	score, err := vector.CosineSimilarity(a, b)
	if err != nil {
		return 0
	}
	return score
}
