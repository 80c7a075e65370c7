package service

import "github.com/huddlehq/huddle/internal/domain"

var (
	meetingSuggestions = []string{
		"What were the main discussion points?",
		"Can you summarize this meeting?",
		"Who participated the most in the discussion?",
		"What decisions were made?",
		"Were there any action items mentioned?",
		"What questions were asked during the meeting?",
	}
	documentSuggestions = []string{
		"What is the main topic of this document?",
		"Can you provide a summary?",
		"What are the key takeaways?",
		"Were there any important decisions made?",
		"What action items are mentioned?",
		"Who are the main people involved?",
	}
	meetingFollowUps = []string{
		"What were the key decisions made?",
		"Can you summarize the action items?",
		"Who were the main speakers?",
		"What topics were discussed the most?",
	}
	documentFollowUps = []string{
		"What is the main topic of this document?",
		"Can you summarize the key points?",
		"What are the action items?",
	}
)

// Suggestions returns the starter questions for a source kind.
func Suggestions(kind domain.SourceKind) []string {
	if kind == domain.SourceKindMeeting {
		return append([]string(nil), meetingSuggestions...)
	}
	return append([]string(nil), documentSuggestions...)
}

// FollowUps returns the questions offered after an answer.
func FollowUps(kind domain.SourceKind) []string {
	if kind == domain.SourceKindMeeting {
		return append([]string(nil), meetingFollowUps...)
	}
	return append([]string(nil), documentFollowUps...)
}
