package httpapi

import (
	"net/http"

	"github.com/p-n-ai/pai-path/internal/learning"
)

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	detail, err := s.svc.GetTask(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleTaskResources(w http.ResponseWriter, r *http.Request) {
	resources, err := s.svc.ListResources(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resources)
}

type submitRequest struct {
	UserAnswer string `json:"userAnswer" validate:"required,max=20000"`
}

type submitResponse struct {
	Success    bool                       `json:"success"`
	Evaluation learning.Grade             `json:"evaluation"`
	Outcome    learning.EvaluationOutcome `json:"outcome"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if !s.decode(w, r, &req) {
		return
	}
	sub, err := s.svc.SubmitAnswer(r.Context(), r.PathValue("id"), req.UserAnswer)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, submitResponse{
		Success:    true,
		Evaluation: sub.Evaluation,
		Outcome:    sub.Outcome,
	})
}
