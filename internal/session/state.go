// Package session owns the mutable per-call state: the answers map, the
// seller's notes, and the suggestion list, plus the gate that throttles
// transcript-driven analysis. Coaching calls complete out of order, so every
// merge here is keyed by question ID rather than call sequence.
package session

import (
	"strings"
	"sync"
)

// State is the single holder of in-call mutable data. All mutation goes
// through its methods; safe for concurrent use.
type State struct {
	mu          sync.Mutex
	answers     map[string]string
	notes       []string
	suggestions []Suggestion
}

// NewState creates an empty session state.
func NewState() *State {
	return &State{
		answers: map[string]string{},
	}
}

// SetAnswer records an answer for a question, overwriting any previous value.
func (s *State) SetAnswer(questionID, answer string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[questionID] = answer
}

// Answers returns a copy of the answers map.
func (s *State) Answers() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.answers))
	for k, v := range s.answers {
		out[k] = v
	}
	return out
}

// AppendNote records a free-text note. Blank notes are dropped.
func (s *State) AppendNote(note string) {
	note = strings.TrimSpace(note)
	if note == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = append(s.notes, note)
}

// Notes returns a copy of all notes, oldest first.
func (s *State) Notes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.notes))
	copy(out, s.notes)
	return out
}

// RecentNotes returns up to n of the most recent notes, oldest first.
func (s *State) RecentNotes(n int) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > len(s.notes) {
		n = len(s.notes)
	}
	out := make([]string, n)
	copy(out, s.notes[len(s.notes)-n:])
	return out
}

// MergeSuggestion folds an incoming suggestion into the list. A question the
// seller already decided (accepted or rejected) is never re-opened: the
// incoming suggestion is dropped and false returned. A pending suggestion for
// the same question is superseded in place; otherwise the suggestion is
// appended. The incoming status is forced to pending either way.
func (s *State) MergeSuggestion(sug Suggestion) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sug.Status = StatusPending
	for i := range s.suggestions {
		if s.suggestions[i].QuestionID != sug.QuestionID {
			continue
		}
		switch s.suggestions[i].Status {
		case StatusAccepted, StatusRejected:
			return false
		case StatusPending:
			s.suggestions[i] = sug
			return true
		}
	}
	s.suggestions = append(s.suggestions, sug)
	return true
}

// Accept marks the pending suggestion for questionID as accepted and copies
// its answer into the answers map. Returns false when no pending suggestion
// exists; the transition is terminal.
func (s *State) Accept(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.suggestions {
		if s.suggestions[i].QuestionID == questionID && s.suggestions[i].Status == StatusPending {
			s.suggestions[i].Status = StatusAccepted
			s.answers[questionID] = s.suggestions[i].Answer
			return true
		}
	}
	return false
}

// Reject marks the pending suggestion for questionID as rejected. Returns
// false when no pending suggestion exists; the transition is terminal.
func (s *State) Reject(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.suggestions {
		if s.suggestions[i].QuestionID == questionID && s.suggestions[i].Status == StatusPending {
			s.suggestions[i].Status = StatusRejected
			return true
		}
	}
	return false
}

// Suggestions returns a copy of the full suggestion list, decided entries
// included.
func (s *State) Suggestions() []Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Suggestion, len(s.suggestions))
	copy(out, s.suggestions)
	return out
}

// Pending returns the pending suggestion for questionID, if any.
func (s *State) Pending(questionID string) (Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sug := range s.suggestions {
		if sug.QuestionID == questionID && sug.Status == StatusPending {
			return sug, true
		}
	}
	return Suggestion{}, false
}
