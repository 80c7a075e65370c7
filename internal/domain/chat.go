package domain

import "time"

// AnswerMode records which path produced a chat answer.
type AnswerMode string

const (
	AnswerModeDirect    AnswerMode = "direct"
	AnswerModeRetrieval AnswerMode = "retrieval"
	AnswerModeTruncated AnswerMode = "truncated"
)

// ChatTurn is one persisted question/answer exchange about a source
type ChatTurn struct {
	ID        string
	SourceID  string
	Question  string
	Answer    string
	CreatedAt time.Time
}

// ChatAnswer is the result of answering a question about a source
type ChatAnswer struct {
	Answer      string
	Suggestions []string
	Mode        AnswerMode
}
