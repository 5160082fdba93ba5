package api

import (
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"

	"github.com/lox/fiat/internal/imagegen"
	"github.com/lox/fiat/internal/metrics"
)

// handlePlot serves plot files from the local mirror. A missing plot is answered with
// the placeholder image and a 404 status, so pages show the placeholder while probes
// still see the plot as unavailable.
func (s *Server) handlePlot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := strings.TrimPrefix(r.URL.Path, s.plotPath)
	if !strings.HasSuffix(name, ".png") {
		http.NotFound(w, r)
		return
	}

	f, err := http.Dir(s.cfg.PlotRoot).Open("/" + name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.log.Warn("open plot", "path", name, "error", err)
		}
		s.servePlaceholder(w, r, imagegen.Spec{}, http.StatusNotFound, "missing")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		s.servePlaceholder(w, r, imagegen.Spec{}, http.StatusNotFound, "missing")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=300")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// handlePlaceholder renders the placeholder at a requested size, e.g.
// /placeholder.png?w=640&h=480&caption=Cloud+Forecast.
func (s *Server) handlePlaceholder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spec := imagegen.Spec{Caption: q.Get("caption")}
	for key, dst := range map[string]*int{"w": &spec.Width, "h": &spec.Height} {
		v := q.Get(key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid "+key, http.StatusBadRequest)
			return
		}
		*dst = n
	}
	s.servePlaceholder(w, r, spec, http.StatusOK, "requested")
}

func (s *Server) servePlaceholder(w http.ResponseWriter, r *http.Request, spec imagegen.Spec, status int, kind string) {
	data, err := s.images.Get(spec)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	metrics.PlaceholdersServed.WithLabelValues(kind).Inc()
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if status == http.StatusOK {
		w.Header().Set("Cache-Control", "public, max-age=86400")
	} else {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		w.Write(data)
	}
}
