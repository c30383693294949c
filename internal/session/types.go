// Package session tracks multi-turn conversations that refine a build
// request before it starts. At most one conversation is open per user and
// channel.
package session

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// Key identifies the owner of a conversation.
type Key struct {
	UserID    string
	ChannelID string
}

func (k Key) String() string { return k.UserID + "@" + k.ChannelID }

// State is the lifecycle state of a conversation.
type State int

const (
	StateOpen       State = iota // Accepting turns
	StateFinalizing              // Turns are being handed off; never observed outside the manager lock
	StateClosed                  // Removed from the active table
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateFinalizing:
		return "finalizing"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Role says who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation.
type Turn struct {
	Role      Role
	Text      string
	MessageID string // external message id, may be empty
	At        time.Time
}

// Snapshot is a copy of a conversation's state. It shares nothing with the
// manager.
type Snapshot struct {
	ID             string
	Key            Key
	State          State
	Model          string
	Turns          []Turn
	TrackedIDs     []string
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// UserText joins the user turns with a blank line between them.
func (s Snapshot) UserText() string {
	var parts []string
	for _, t := range s.Turns {
		if t.Role == RoleUser && strings.TrimSpace(t.Text) != "" {
			parts = append(parts, strings.TrimSpace(t.Text))
		}
	}
	return strings.Join(parts, "\n\n")
}

// Stats counts the user's contribution so far.
type Stats struct {
	Messages int
	Words    int
	Chars    int
}

// Stats returns message, word and character counts over user turns.
func (s Snapshot) Stats() Stats {
	var st Stats
	for _, t := range s.Turns {
		if t.Role != RoleUser {
			continue
		}
		st.Messages++
		st.Words += len(strings.Fields(t.Text))
		st.Chars += utf8.RuneCountInString(t.Text)
	}
	return st
}

// Reason says why a conversation closed.
type Reason string

const (
	ReasonFinalized Reason = "finalized"
	ReasonCancelled Reason = "cancelled"
	ReasonExpired   Reason = "expired"
)

// Transcript is what a closed conversation leaves behind.
type Transcript struct {
	Snapshot
	Reason   Reason
	ClosedAt time.Time
}
