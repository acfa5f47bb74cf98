package httpapi

import (
	"net/http"
	"time"

	"github.com/nextlevelbuilder/wopr/internal/cron"
	"github.com/nextlevelbuilder/wopr/internal/store"
)

func (s *Server) handleListCrons(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"crons": s.cronStore.ListJobs()})
}

type createCronRequest struct {
	Name     string        `json:"name"`
	Schedule string        `json:"schedule"`
	Session  string        `json:"session"`
	Message  string        `json:"message"`
	Scripts  []store.Script `json:"scripts,omitempty"`
}

func (s *Server) handleCreateCron(w http.ResponseWriter, r *http.Request) {
	var req createCronRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" || req.Session == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name and session are required"})
		return
	}
	if _, ok := s.cronStore.GetJob(req.Name); ok {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "a cron job with this name already exists"})
		return
	}

	resolvedSchedule, once, runAt, err := cron.ParseSchedule(req.Schedule, time.Now())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	job := store.CronJob{
		Name:     req.Name,
		Schedule: resolvedSchedule,
		Session:  req.Session,
		Message:  req.Message,
		Scripts:  req.Scripts,
		Once:     once,
		RunAt:    runAt,
	}
	if err := s.cronStore.CreateJob(job); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

func (s *Server) handleDeleteCron(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if err := s.cronStore.DeleteJob(name); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleCronHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": s.cronStore.ListHistory()})
}
