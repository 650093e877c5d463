// Package diarize implements the diarized transcription session: it groups
// recognized utterances by the speaker label the vendor engine assigns.
package diarize

import (
	"strings"
	"sync"
)

// SpeakerID is the vendor-assigned label distinguishing speakers within one
// session. It is opaque and never validated against enrolled profiles.
type SpeakerID string

// UnknownSpeaker groups utterances that arrive without a speaker label.
const UnknownSpeaker SpeakerID = "Unknown"

// Entry is one speaker's accumulated utterances, for rendering.
type Entry struct {
	Speaker SpeakerID
	Texts   []string
}

// Transcript accumulates recognized text grouped by speaker. Speakers are
// rendered in first-seen order; a speaker's utterances stay in arrival
// order. Safe for concurrent use: recognition events arrive from the
// engine's read goroutine.
type Transcript struct {
	mu         sync.Mutex
	order      []SpeakerID
	utterances map[SpeakerID][]string
}

// NewTranscript creates an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{utterances: make(map[SpeakerID][]string)}
}

// Add records one recognized utterance. An empty speaker id is grouped
// under UnknownSpeaker. A speaker's first appearance fixes its rendering
// position.
func (t *Transcript) Add(id SpeakerID, text string) {
	if text == "" {
		return
	}
	if id == "" {
		id = UnknownSpeaker
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, seen := t.utterances[id]; !seen {
		t.utterances[id] = []string{}
		t.order = append(t.order, id)
	}
	t.utterances[id] = append(t.utterances[id], text)
}

// Reset clears all accumulated state for a new recording session.
func (t *Transcript) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.order = nil
	t.utterances = make(map[SpeakerID][]string)
}

// Speakers returns the speaker ids in first-seen order.
func (t *Transcript) Speakers() []SpeakerID {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]SpeakerID, len(t.order))
	copy(out, t.order)
	return out
}

// Entries returns a snapshot of the transcript in rendering order.
func (t *Transcript) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, 0, len(t.order))
	for _, id := range t.order {
		texts := make([]string, len(t.utterances[id]))
		copy(texts, t.utterances[id])
		out = append(out, Entry{Speaker: id, Texts: texts})
	}
	return out
}

// Combined returns one speaker's utterances joined for display.
func (t *Transcript) Combined(id SpeakerID) string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return strings.Join(t.utterances[id], " ")
}
