package domain

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind distinguishes live meeting transcripts from uploaded documents
type SourceKind string

const (
	SourceKindMeeting  SourceKind = "meeting"
	SourceKindDocument SourceKind = "document"
)

// Source is the raw transcript or document text stored under one canonical identifier
type Source struct {
	ID        string
	Kind      SourceKind
	Title     string
	Content   string
	Language  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSource creates a new Source instance
func NewSource(id string, kind SourceKind, title, content, language string, createdAt time.Time) *Source {
	return &Source{
		ID:        id,
		Kind:      kind,
		Title:     title,
		Content:   content,
		Language:  language,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// ValidateSource validates a Source instance. Content may be blank at
// creation time; core operations reject blank content separately.
func ValidateSource(s *Source) error {
	if s == nil {
		return fmt.Errorf("source cannot be nil")
	}

	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("source ID is required")
	}

	if !IsValidSourceKind(s.Kind) {
		return fmt.Errorf("source Kind is invalid: %s", s.Kind)
	}

	return nil
}

// IsValidSourceKind checks if a SourceKind is valid
func IsValidSourceKind(k SourceKind) bool {
	switch k {
	case SourceKindMeeting, SourceKindDocument:
		return true
	}
	return false
}

// HasContent reports whether the source carries non-blank text.
func (s *Source) HasContent() bool {
	return s != nil && strings.TrimSpace(s.Content) != ""
}
