package server

import (
	"net/http"

	"github.com/pitchline-ai/pitchline/internal/playbook"
)

type playbookResponse struct {
	Steps    []playbook.Step    `json:"steps"`
	Features []playbook.Feature `json:"features"`
}

func (s *Server) handlePlaybook(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, playbookResponse{
		Steps:    playbook.Steps(),
		Features: playbook.Features(),
	})
}
