package domain

import "time"

// Summary section headers, in the order they are rendered.
const (
	SectionExecutiveSummary = "Executive Summary"
	SectionKeyPoints        = "Key Points"
	SectionDecisions        = "Decisions"
	SectionActionItems      = "Action Items"
	SectionNextSteps        = "Next Steps"
	SectionNotableQuotes    = "Notable Quotes"
)

// SummarySections lists the fixed sections every summary carries.
var SummarySections = []string{
	SectionExecutiveSummary,
	SectionKeyPoints,
	SectionDecisions,
	SectionActionItems,
	SectionNextSteps,
	SectionNotableQuotes,
}

// Summary is the structured, markdown-formatted summary of a source
type Summary struct {
	SourceID   string
	Content    string
	ChunkCount int
	CreatedAt  time.Time
}
