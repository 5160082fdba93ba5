package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/lox/fiat/internal/plots"
	"github.com/lox/fiat/internal/probe"
	"github.com/lox/fiat/internal/selection"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	if status != http.StatusOK {
		w.WriteHeader(status)
	}
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{"error": err.Error()})
}

// ProbedView is a view together with the availability of each of its plots.
type ProbedView struct {
	selection.View
	Probe []probe.Result `json:"probe"`
}

func (s *Server) handleAPIView(w http.ResponseWriter, r *http.Request) {
	sel, err := s.selectionFromRequest(r)
	if err != nil {
		writeError(w, err)
		return
	}
	v, err := s.resolve(sel)
	if err != nil {
		writeError(w, err)
		return
	}
	if r.URL.Query().Get("probe") != "1" || s.cfg.Prober == nil {
		writeJSON(w, http.StatusOK, v)
		return
	}
	writeJSON(w, http.StatusOK, ProbedView{View: v, Probe: s.cfg.Prober.Check(r.Context(), v.Plots)})
}

func (s *Server) handleAPICatalogue(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Catalogue())
}

func (s *Server) handleAPITabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Tabs         []plots.Tab             `json:"tabs"`
		Observations []plots.ObservationType `json:"observations"`
	}{s.cfg.Tabs.Tabs(), plots.ObservationTypes})
}

func (s *Server) handleAPISync(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		writeJSON(w, http.StatusOK, []any{})
		return
	}
	limit := 10
	if l := r.URL.Query().Get("limit"); l != "" {
		n, err := strconv.Atoi(l)
		if err != nil || n < 1 || n > 100 {
			http.Error(w, "limit must be 1..100", http.StatusBadRequest)
			return
		}
		limit = n
	}
	runs, err := s.store.RecentSyncRuns(limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	type syncRun struct {
		ID           string  `json:"id"`
		StartedAt    string  `json:"started_at"`
		Source       string  `json:"source"`
		FilesFetched int64   `json:"files_fetched"`
		FilesFailed  int64   `json:"files_failed"`
		BytesFetched int64   `json:"bytes_fetched"`
		Success      bool    `json:"success"`
		Seconds      float64 `json:"duration_seconds"`
		Error        string  `json:"error,omitempty"`
	}
	out := make([]syncRun, 0, len(runs))
	for _, run := range runs {
		out = append(out, syncRun{
			ID:           run.ID,
			StartedAt:    run.StartedAt.UTC().Format("2006-01-02T15:04:05Z"),
			Source:       run.Source,
			FilesFetched: run.FilesFetched,
			FilesFailed:  run.FilesFailed,
			BytesFetched: run.BytesFetched,
			Success:      run.Success,
			Seconds:      run.Duration().Seconds(),
			Error:        run.ErrorMessage.String,
		})
	}
	writeJSON(w, http.StatusOK, out)
}
