// Package chat implements the conversation session: an append-only turn
// history and the state machine driving input, completion and speech output.
package chat

import (
	"fmt"
)

// Role tags a turn with its originating party.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance in a conversation. Immutable once created.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// History is an ordered sequence of turns. Insertion order is chronological
// order and is replayed verbatim to the completion relay on every call.
// A system turn, if present, must precede all user/assistant turns.
type History struct {
	turns []Turn
}

// NewHistory creates an empty history.
func NewHistory() *History {
	return &History{turns: []Turn{}}
}

// Append adds a turn, enforcing the system-first invariant.
func (h *History) Append(t Turn) error {
	switch t.Role {
	case RoleSystem:
		if len(h.turns) > 0 {
			return fmt.Errorf("system turn must precede all user/assistant turns")
		}
	case RoleUser, RoleAssistant:
	default:
		return fmt.Errorf("unknown role %q", t.Role)
	}
	h.turns = append(h.turns, t)
	return nil
}

// AppendUser adds a user turn.
func (h *History) AppendUser(content string) {
	h.turns = append(h.turns, Turn{Role: RoleUser, Content: content})
}

// AppendAssistant adds an assistant turn.
func (h *History) AppendAssistant(content string) {
	h.turns = append(h.turns, Turn{Role: RoleAssistant, Content: content})
}

// Turns returns a copy of the ordered turn sequence.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

// Last returns the most recent turn, or nil when the history is empty.
func (h *History) Last() *Turn {
	if len(h.turns) == 0 {
		return nil
	}
	t := h.turns[len(h.turns)-1]
	return &t
}

// Len returns the number of turns.
func (h *History) Len() int {
	return len(h.turns)
}
