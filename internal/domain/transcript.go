// Package domain contains core domain types for the hacxweb console.
package domain

import (
	"encoding/json"
	"slices"
)

// Role identifies who authored a turn.
type Role string

const (
	// RoleUser marks a turn typed by the operator.
	RoleUser Role = "user"
	// RoleAssistant marks a turn produced by the model or the console itself.
	RoleAssistant Role = "assistant"
)

// Turn is one message in the transcript.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// Transcript is an immutable, ordered list of turns.
//
// Every mutating method returns a new Transcript backed by its own array, so a
// snapshot handed to a caller never changes underneath it.
type Transcript struct {
	turns []Turn
}

// NewTranscript builds a transcript from the given turns. The slice is copied.
func NewTranscript(turns ...Turn) Transcript {
	return Transcript{turns: slices.Clone(turns)}
}

// Len returns the number of turns.
func (t Transcript) Len() int {
	return len(t.turns)
}

// Turns returns a copy of the turns in display order.
func (t Transcript) Turns() []Turn {
	if len(t.turns) == 0 {
		return []Turn{}
	}
	return slices.Clone(t.turns)
}

// At returns the turn at index i.
func (t Transcript) At(i int) Turn {
	return t.turns[i]
}

// Last returns the final turn, or false when the transcript is empty.
func (t Transcript) Last() (Turn, bool) {
	if len(t.turns) == 0 {
		return Turn{}, false
	}
	return t.turns[len(t.turns)-1], true
}

// Append returns a new transcript with turns added at the end.
func (t Transcript) Append(turns ...Turn) Transcript {
	next := make([]Turn, 0, len(t.turns)+len(turns))
	next = append(next, t.turns...)
	next = append(next, turns...)
	return Transcript{turns: next}
}

// WithLastContent returns a new transcript whose final turn carries content.
// An empty transcript is returned unchanged.
func (t Transcript) WithLastContent(content string) Transcript {
	if len(t.turns) == 0 {
		return t
	}
	next := slices.Clone(t.turns)
	next[len(next)-1].Content = content
	return Transcript{turns: next}
}

// MarshalJSON encodes the transcript as a JSON array of turns.
func (t Transcript) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Turns())
}

// UnmarshalJSON decodes a JSON array of turns.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		return err
	}
	t.turns = turns
	return nil
}

// MarshalYAML encodes the transcript as a YAML sequence of turns.
func (t Transcript) MarshalYAML() (interface{}, error) {
	return t.Turns(), nil
}
