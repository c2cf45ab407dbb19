package httpapi

import (
	"bytes"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/p-n-ai/pai-path/internal/report"
)

type createPathRequest struct {
	UserID       string `json:"userId" validate:"required,max=128"`
	LearningGoal string `json:"learningGoal" validate:"required,max=500"`
}

type createPathResponse struct {
	Success        bool   `json:"success"`
	LearningPathID string `json:"learningPathId"`
	Title          string `json:"title"`
	TotalTasks     int    `json:"totalTasks"`
}

func (s *Server) handleCreatePath(w http.ResponseWriter, r *http.Request) {
	var req createPathRequest
	if !s.decode(w, r, &req) {
		return
	}
	path, err := s.svc.CreatePath(r.Context(), req.UserID, req.LearningGoal)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, createPathResponse{
		Success:        true,
		LearningPathID: path.ID,
		Title:          path.Title,
		TotalTasks:     path.TotalTasks,
	})
}

func (s *Server) handleListPaths(w http.ResponseWriter, r *http.Request) {
	paths, err := s.svc.ListPaths(r.Context(), r.URL.Query().Get("userId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, paths)
}

func (s *Server) handleGetPath(w http.ResponseWriter, r *http.Request) {
	path, err := s.svc.GetPath(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

func (s *Server) handleDeletePath(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeletePath(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePausePath(w http.ResponseWriter, r *http.Request) {
	path, err := s.svc.PausePath(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

func (s *Server) handleResumePath(w http.ResponseWriter, r *http.Request) {
	path, err := s.svc.ResumePath(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, path)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Progress(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	groups, err := s.svc.ListTopics(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, groups)
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.svc.ListTasks(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tasks)
}

var unsafeFilename = regexp.MustCompile(`[^a-z0-9]+`)

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	snap, err := s.svc.Snapshot(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.WriteXLSX(&buf, snap); err != nil {
		writeError(w, r, err)
		return
	}

	name := strings.Trim(unsafeFilename.ReplaceAllString(strings.ToLower(snap.Path.Title), "-"), "-")
	if name == "" {
		name = "learning-path"
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, name))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
