package server

import (
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

type painsRequest struct {
	Answers map[string]string `json:"answers"`

	// Channel subjects the request to the analysis gate when set. UIs use it
	// for transcript-driven automatic calls; manual calls leave it empty.
	Channel string `json:"channel,omitempty"`
}

func (s *Server) handlePains(w http.ResponseWriter, r *http.Request) {
	var req painsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	release, ok := s.tryGate(w, req.Channel, mapTextLen(req.Answers))
	if !ok {
		return
	}
	defer release()

	ranking := s.timedCoach(r, "pains", func() any {
		return s.coach.RankPainPoints(r.Context(), req.Answers)
	})
	writeJSON(w, http.StatusOK, ranking)
}

type mirrorRequest struct {
	CustomerAnswers []string          `json:"customerAnswers"`
	CurrentStep     string            `json:"currentStep"`
	Answers         map[string]string `json:"answers"`
	Channel         string            `json:"channel,omitempty"`
}

type mirrorResponse struct {
	Statement string `json:"mirrorStatement"`
}

func (s *Server) handleMirror(w http.ResponseWriter, r *http.Request) {
	var req mirrorRequest
	if !decodeBody(w, r, &req) {
		return
	}
	release, ok := s.tryGate(w, req.Channel, sliceTextLen(req.CustomerAnswers))
	if !ok {
		return
	}
	defer release()

	res := s.timedCoach(r, "mirror", func() any {
		st := s.coach.GenerateMirror(r.Context(), req.CustomerAnswers, req.CurrentStep, req.Answers)
		return mirrorResponse{Statement: st}
	})
	writeJSON(w, http.StatusOK, res)
}

type noteRequest struct {
	Note          string            `json:"note"`
	CurrentStep   string            `json:"currentStep"`
	PreviousNotes []string          `json:"previousNotes"`
	Answers       map[string]string `json:"answers"`
}

func (s *Server) handleNote(w http.ResponseWriter, r *http.Request) {
	var req noteRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Note) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "note must not be empty")
		return
	}

	res := s.timedCoach(r, "note", func() any {
		return s.coach.AnalyzeNote(r.Context(), req.Note, req.CurrentStep, req.PreviousNotes, req.Answers)
	})
	writeJSON(w, http.StatusOK, res)
}

type objectionRequest struct {
	Objection string `json:"objection"`
}

func (s *Server) handleObjection(w http.ResponseWriter, r *http.Request) {
	var req objectionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Objection) == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "objection must not be empty")
		return
	}

	res := s.timedCoach(r, "objection", func() any {
		return s.coach.GenerateObjectionResponse(r.Context(), req.Objection)
	})
	writeJSON(w, http.StatusOK, res)
}

// tryGate claims the analysis gate for channel. Requests without a channel
// bypass the gate. Gated-out requests get a 429 with code "debounced"; the UI
// treats that as "try again once the transcript grows".
func (s *Server) tryGate(w http.ResponseWriter, channel string, textLen int) (release func(), ok bool) {
	if channel == "" {
		return func() {}, true
	}
	if !s.gate.TryStart(channel, textLen) {
		writeError(w, http.StatusTooManyRequests, codeDebounced, "analysis gate closed for channel "+channel)
		return nil, false
	}
	return func() { s.gate.Done(channel) }, true
}

func mapTextLen(m map[string]string) int {
	n := 0
	for _, v := range m {
		n += len(v)
	}
	return n
}

func sliceTextLen(vals []string) int {
	n := 0
	for _, v := range vals {
		n += len(v)
	}
	return n
}

// timedCoach runs one coaching operation, recording its latency and request
// count. Coaching operations never fail outward, so status is always ok.
func (s *Server) timedCoach(r *http.Request, op string, fn func() any) any {
	start := time.Now()
	res := fn()
	s.metrics.CoachDuration.Record(r.Context(), time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("op", op)))
	s.metrics.RecordCoachRequest(r.Context(), op, "ok")
	return res
}
