package domain

import "time"

// Conversation is the persisted form of one console tab's transcript.
// Credentials are never part of it.
type Conversation struct {
	ClientID   string
	SessionID  string
	Provider   string
	Model      string
	Transcript Transcript
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
