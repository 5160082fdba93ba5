package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"

	"github.com/lox/fiat/internal/metrics"
	"github.com/lox/fiat/internal/selection"
)

// The shared display is one selection that every connected screen follows, for the
// briefing-room dashboard driven from a single console.

var errNoDisplay = fmt.Errorf("shared display: %w", selection.ErrNoData)

func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	c, _ := s.displayController()
	if c == nil {
		writeError(w, errNoDisplay)
		return
	}
	writeJSON(w, http.StatusOK, c.View())
}

// handleDisplayEvent applies one event, e.g. {"type":"step_hour","delta":1}, and
// returns the resulting view.
func (s *Server) handleDisplayEvent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	c, _ := s.displayController()
	if c == nil {
		writeError(w, errNoDisplay)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 4096))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	e, err := selection.DecodeEvent(body)
	if err != nil {
		metrics.DisplayEvents.WithLabelValues("unknown", "invalid").Inc()
		writeError(w, err)
		return
	}
	kind := gjson.GetBytes(body, "type").String()
	v, err := c.Apply(e)
	if err != nil {
		metrics.DisplayEvents.WithLabelValues(kind, "rejected").Inc()
		writeError(w, err)
		return
	}
	metrics.DisplayEvents.WithLabelValues(kind, "applied").Inc()
	s.log.Debug("display event", "type", kind, "label", v.Label)
	writeJSON(w, http.StatusOK, v)
}

// handleDisplayStream sends the shared display's view as server-sent events: the
// current view on connect, then every view published after it.
func (s *Server) handleDisplayStream(w http.ResponseWriter, r *http.Request) {
	c, ended := s.displayController()
	if c == nil {
		writeError(w, errNoDisplay)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Holds at most the newest unsent view; a slow client skips straight to it.
	views := make(chan selection.View, 1)
	cancel := c.Subscribe(func(v selection.View) {
		select {
		case views <- v:
			return
		default:
		}
		select {
		case <-views:
		default:
		}
		views <- v
	})
	defer cancel()

	if err := writeEvent(w, c.View()); err != nil {
		return
	}
	flusher.Flush()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-ended:
			return
		case v := <-views:
			if err := writeEvent(w, v); err != nil {
				return
			}
			flusher.Flush()
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, v selection.View) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
