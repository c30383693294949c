// Package history provides SQLite-backed records of past builds and
// conversations. Nothing in it is needed to run a build; it only answers
// "what happened before".
package history

import "time"

// Build is the summary of one finished build.
type Build struct {
	ID           string
	Owner        string
	Prompt       string
	Model        string
	WorkDir      string
	State        string // completed, failed, timed_out, cancelled
	ExitCode     int
	RepoURL      string
	PublishError string
	StartedAt    time.Time
	EndedAt      time.Time
}

// Conversation is an archived refinement conversation.
type Conversation struct {
	ID        string
	UserID    string
	ChannelID string
	Outcome   string // finalized, cancelled, expired
	Prompt    string // refined prompt, empty unless finalized
	CreatedAt time.Time
	ClosedAt  time.Time
}

// Message is one turn within a conversation.
type Message struct {
	ID             int
	ConversationID string
	Role           string // user, assistant
	Content        string
	Timestamp      time.Time
}
