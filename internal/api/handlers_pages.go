package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"
)

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sel, err := s.selectionFromRequest(r)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}
	v, err := s.resolve(sel)
	if err != nil {
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	data := buildIndexData(s.Catalogue(), s.cfg.Tabs, v)
	if s.store != nil {
		if run, err := s.store.LatestSyncRun(); err == nil && run != nil && run.FinishedAt.Valid {
			data.LastSync = run.FinishedAt.Time
		}
	}

	var buf bytes.Buffer
	if err := s.tmpl.ExecuteTemplate(&buf, "index.html", data); err != nil {
		s.log.Error("render index", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
}

// HealthStatus reports whether the dashboard has plots to show.
type HealthStatus struct {
	Status     string      `json:"status"`
	Dates      int         `json:"dates"`
	LatestDate string      `json:"latest_date,omitempty"`
	LastSync   *SyncHealth `json:"last_sync,omitempty"`
	Errors     []string    `json:"errors,omitempty"`
}

type SyncHealth struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	AgeMinutes int       `json:"age_minutes"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	cat := s.Catalogue()
	health := HealthStatus{
		Status:     "ok",
		Dates:      cat.Len(),
		LatestDate: cat.Latest(),
	}
	if cat.Len() == 0 {
		health.Status = "degraded"
		health.Errors = append(health.Errors, "catalogue is empty")
	}

	if s.store != nil {
		run, err := s.store.LatestSyncRun()
		switch {
		case err != nil:
			health.Status = "error"
			health.Errors = append(health.Errors, "sync runs: "+err.Error())
		case run != nil:
			sh := &SyncHealth{
				ID:         run.ID,
				StartedAt:  run.StartedAt,
				AgeMinutes: int(time.Since(run.StartedAt).Minutes()),
				Success:    run.Success,
			}
			if run.ErrorMessage.Valid {
				sh.Error = run.ErrorMessage.String
			}
			if run.FinishedAt.Valid && !run.Success && health.Status == "ok" {
				health.Status = "degraded"
			}
			health.LastSync = sh
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		s.log.Warn("health: write response", "error", err)
	}
}
