package service

import (
	"strings"
	"unicode/utf8"

	"github.com/huddlehq/huddle/internal/domain"
)

// ChunkConfig controls when and how source text is split. Lengths are runes.
type ChunkConfig struct {
	ContextThreshold int
	MaxChars         int
	Overlap          int
}

// DefaultChunkConfig matches the model context limits the prompts are sized for.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ContextThreshold: 30000,
		MaxChars:         4096,
		Overlap:          512,
	}
}

func (c ChunkConfig) withDefaults() ChunkConfig {
	d := DefaultChunkConfig()
	if c.ContextThreshold <= 0 {
		c.ContextThreshold = d.ContextThreshold
	}
	if c.MaxChars <= 0 {
		c.MaxChars = d.MaxChars
	}
	if c.Overlap < 0 {
		c.Overlap = 0
	}
	return c
}

// FitsContext reports whether text can be sent to the model whole.
func (c ChunkConfig) FitsContext(text string) bool {
	return utf8.RuneCountInString(text) <= c.withDefaults().ContextThreshold
}

// splitSeparators are tried in order; the empty separator is a hard cut.
var splitSeparators = []string{"\n\n", "\n", ". ", " ", ""}

type piece struct {
	start int
	text  string
	runes int
}

// ChunkText returns text as a single chunk when it fits the context
// threshold, and as bounded overlapping chunks otherwise.
func ChunkText(text string, cfg ChunkConfig) []domain.Chunk {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(text) == "" {
		return []domain.Chunk{{Index: 0, Text: ""}}
	}
	if cfg.FitsContext(text) {
		return []domain.Chunk{{Index: 0, Text: text}}
	}
	return SplitText(text, cfg)
}

// SplitText splits text into chunks of at most MaxChars runes regardless of
// the context threshold. Adjacent chunks share up to Overlap runes made of
// whole pieces from the end of the previous chunk.
func SplitText(text string, cfg ChunkConfig) []domain.Chunk {
	cfg = cfg.withDefaults()
	if strings.TrimSpace(text) == "" {
		return []domain.Chunk{{Index: 0, Text: ""}}
	}

	pieces := splitRecursive(text, 0, splitSeparators, cfg.MaxChars)
	return mergePieces(text, pieces, cfg)
}

// splitRecursive cuts text into pieces of at most maxChars runes that tile
// it exactly. Each piece keeps its trailing separator.
func splitRecursive(text string, offset int, separators []string, maxChars int) []piece {
	if n := utf8.RuneCountInString(text); n <= maxChars {
		return []piece{{start: offset, text: text, runes: n}}
	}

	sep := ""
	rest := []string{}
	for i, s := range separators {
		if s == "" || strings.Contains(text, s) {
			sep = s
			rest = separators[i+1:]
			break
		}
	}

	if sep == "" {
		return hardCut(text, offset, maxChars)
	}

	var out []piece
	pos := offset
	for _, seg := range strings.SplitAfter(text, sep) {
		if seg == "" {
			continue
		}
		if n := utf8.RuneCountInString(seg); n <= maxChars {
			out = append(out, piece{start: pos, text: seg, runes: n})
		} else {
			out = append(out, splitRecursive(seg, pos, rest, maxChars)...)
		}
		pos += len(seg)
	}
	return out
}

func hardCut(text string, offset, maxChars int) []piece {
	var out []piece
	start, count := 0, 0
	for i := range text {
		if count == maxChars {
			out = append(out, piece{start: offset + start, text: text[start:i], runes: count})
			start, count = i, 0
		}
		count++
	}
	if start < len(text) {
		out = append(out, piece{start: offset + start, text: text[start:], runes: count})
	}
	return out
}

func mergePieces(text string, pieces []piece, cfg ChunkConfig) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(pieces)/2+1)
	prevEnd := 0

	emit := func(window []piece) {
		start := window[0].start
		last := window[len(window)-1]
		end := last.start + len(last.text)

		overlap := 0
		if len(chunks) > 0 && start < prevEnd {
			overlap = prevEnd - start
		}
		chunks = append(chunks, domain.Chunk{
			Index:   len(chunks),
			Text:    text[start:end],
			Start:   start,
			Overlap: overlap,
		})
		prevEnd = end
	}

	var window []piece
	total := 0
	for _, p := range pieces {
		if len(window) > 0 && total+p.runes > cfg.MaxChars {
			emit(window)
			for len(window) > 0 && (total > cfg.Overlap || total+p.runes > cfg.MaxChars) {
				total -= window[0].runes
				window = window[1:]
			}
		}
		window = append(window, p)
		total += p.runes
	}
	if len(window) > 0 {
		emit(window)
	}

	return chunks
}

// truncateRunes returns the first n runes of text and whether it was cut.
func truncateRunes(text string, n int) (string, bool) {
	if n <= 0 || utf8.RuneCountInString(text) <= n {
		return text, false
	}
	count := 0
	for i := range text {
		if count == n {
			return text[:i], true
		}
		count++
	}
	return text, false
}
