package domain

// Chunk is a contiguous window of a source's text. Start is the byte offset
// of Text within the source and Overlap is the number of leading bytes it
// shares with the previous chunk.
type Chunk struct {
	SourceID string
	Index    int
	Text     string
	Start    int
	Overlap  int
}

// End returns the byte offset just past the chunk.
func (c Chunk) End() int {
	return c.Start + len(c.Text)
}
