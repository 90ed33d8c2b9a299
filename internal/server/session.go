package server

import (
	"net/http"
	"strings"

	"github.com/pitchline-ai/pitchline/internal/session"
)

type sessionResponse struct {
	Answers     map[string]string    `json:"answers"`
	Notes       []string             `json:"notes"`
	Suggestions []session.Suggestion `json:"suggestions"`
}

func (s *Server) handleSessionGet(w http.ResponseWriter, _ *http.Request) {
	st := s.sessionState()
	suggestions := st.Suggestions()
	if suggestions == nil {
		suggestions = []session.Suggestion{}
	}
	notes := st.Notes()
	if notes == nil {
		notes = []string{}
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Answers:     st.Answers(),
		Notes:       notes,
		Suggestions: suggestions,
	})
}

func (s *Server) handleSessionReset(w http.ResponseWriter, _ *http.Request) {
	s.stateMu.Lock()
	s.state = session.NewState()
	s.stateMu.Unlock()
	// The gate's debounce and growth bookkeeping belongs to the call that just
	// ended; a fresh call analyzes from a clean slate.
	s.gate.Reset()
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleSessionAnswer(w http.ResponseWriter, r *http.Request) {
	questionID := r.PathValue("id")
	var req answerRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.sessionState().SetAnswer(questionID, req.Answer)
	w.WriteHeader(http.StatusNoContent)
}

type sessionNoteRequest struct {
	Note string `json:"note"`
}

func (s *Server) handleSessionNote(w http.ResponseWriter, r *http.Request) {
	var req sessionNoteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Note) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "note must not be empty")
		return
	}
	s.sessionState().AppendNote(req.Note)
	w.WriteHeader(http.StatusNoContent)
}

type mergeSuggestionRequest struct {
	QuestionID string `json:"questionId"`
	Answer     string `json:"answer"`
	Confidence string `json:"confidence"`
	Evidence   string `json:"evidence"`
}

type mergeSuggestionResponse struct {
	Merged bool `json:"merged"`
}

func (s *Server) handleSuggestionMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeSuggestionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.QuestionID == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "questionId is required")
		return
	}
	merged := s.sessionState().MergeSuggestion(session.Suggestion{
		QuestionID: req.QuestionID,
		Answer:     req.Answer,
		Confidence: req.Confidence,
		Evidence:   req.Evidence,
	})
	writeJSON(w, http.StatusOK, mergeSuggestionResponse{Merged: merged})
}

func (s *Server) handleSuggestionAccept(w http.ResponseWriter, r *http.Request) {
	s.decideSuggestion(w, r, s.sessionState().Accept)
}

func (s *Server) handleSuggestionReject(w http.ResponseWriter, r *http.Request) {
	s.decideSuggestion(w, r, s.sessionState().Reject)
}

// decideSuggestion applies a terminal accept/reject transition. A missing or
// already-decided suggestion answers 409 so double-clicks surface cleanly.
func (s *Server) decideSuggestion(w http.ResponseWriter, r *http.Request, decide func(string) bool) {
	questionID := r.PathValue("id")
	if !decide(questionID) {
		writeError(w, http.StatusConflict, codeInvalidRequest, "no pending suggestion for question "+questionID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) sessionState() *session.State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}
