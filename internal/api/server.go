package api

import (
	"context"
	"errors"
	"html/template"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/forecast"
	"github.com/lox/fiat/internal/imagegen"
	"github.com/lox/fiat/internal/logger"
	"github.com/lox/fiat/internal/metrics"
	"github.com/lox/fiat/internal/plots"
	"github.com/lox/fiat/internal/probe"
	"github.com/lox/fiat/internal/selection"
	"github.com/lox/fiat/internal/store"
)

// Config holds the server settings that do not come from the store.
type Config struct {
	Addr string
	// PlotRoot is the local directory served under the plot base path. Empty disables
	// serving plots.
	PlotRoot string
	Bases    plots.Bases
	Tabs     *plots.Table
	Basis    forecast.Basis
	// Now is the clock used to date views past the end of the catalogue.
	Now    func() time.Time
	Prober *probe.Prober
	Log    *slog.Logger
}

type Server struct {
	store    *store.Store
	cfg      Config
	log      *slog.Logger
	tmpl     *template.Template
	resolver *selection.Resolver
	images   *imagegen.Cache
	plotPath string // URL path prefix plots are served under, e.g. "/FIATPlots/"

	cat atomic.Pointer[catalogue.Catalogue]

	displayMu    sync.Mutex
	display      *selection.Controller
	displayEnded chan struct{} // closed when display is dropped
}

func NewServer(st *store.Store, cfg Config) *Server {
	if cfg.Tabs == nil {
		cfg.Tabs = plots.DefaultTable()
	}
	if cfg.Bases == (plots.Bases{}) {
		cfg.Bases = plots.DefaultBases
	}
	if cfg.Log == nil {
		cfg.Log = slog.Default()
	}
	s := &Server{
		store: st,
		cfg:   cfg,
		log:   logger.Component(cfg.Log, "api"),
		tmpl:  newTemplates(),
		resolver: &selection.Resolver{
			Tabs:  cfg.Tabs,
			Bases: cfg.Bases,
			Basis: cfg.Basis,
			Now:   cfg.Now,
		},
		images:   imagegen.NewCache(32),
		plotPath: localPlotPath(cfg.Bases.Plots),
	}
	empty, _ := catalogue.New(nil)
	s.cat.Store(empty)
	return s
}

// localPlotPath returns the path plots are served under when the plot base is on this
// server, or "" when it points elsewhere.
func localPlotPath(base string) string {
	u, err := url.Parse(base)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	p := strings.Trim(u.Path, "/")
	if p == "" {
		return ""
	}
	return "/" + p + "/"
}

// Catalogue returns the catalogue views are currently resolved against.
func (s *Server) Catalogue() *catalogue.Catalogue {
	return s.cat.Load()
}

// SetCatalogue swaps in a new catalogue and moves the shared display onto it.
func (s *Server) SetCatalogue(cat *catalogue.Catalogue) {
	if cat == nil {
		return
	}
	s.cat.Store(cat)
	metrics.CatalogueDates.Set(float64(cat.Len()))

	s.displayMu.Lock()
	defer s.displayMu.Unlock()
	if cat.Len() == 0 {
		// The next non-empty catalogue starts a fresh display.
		if s.display != nil {
			close(s.displayEnded)
		}
		s.display, s.displayEnded = nil, nil
		return
	}
	if s.display == nil {
		c, err := selection.NewController(s.resolver, cat, selection.Default(s.cfg.Tabs))
		if err != nil {
			s.log.Error("start shared display", "error", err)
			return
		}
		s.display, s.displayEnded = c, make(chan struct{})
		return
	}
	if _, err := s.display.Apply(selection.ReplaceCatalogue{Catalogue: cat}); err != nil {
		s.log.Error("update shared display", "error", err)
	}
}

// displayController returns the shared display and a channel closed when it is dropped.
func (s *Server) displayController() (*selection.Controller, <-chan struct{}) {
	s.displayMu.Lock()
	defer s.displayMu.Unlock()
	return s.display, s.displayEnded
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/placeholder.png", s.handlePlaceholder)
	mux.HandleFunc("/api/view", s.handleAPIView)
	mux.HandleFunc("/api/catalogue", s.handleAPICatalogue)
	mux.HandleFunc("/api/tabs", s.handleAPITabs)
	mux.HandleFunc("/api/sync", s.handleAPISync)
	mux.HandleFunc("/api/display", s.handleDisplay)
	mux.HandleFunc("/api/display/events", s.handleDisplayEvent)
	mux.HandleFunc("/api/display/stream", s.handleDisplayStream)
	mux.Handle("/metrics", promhttp.Handler())
	if s.plotPath != "" && s.cfg.PlotRoot != "" {
		mux.HandleFunc(s.plotPath, s.handlePlot)
	}
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening", "addr", s.cfg.Addr)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// resolve resolves sel against the current catalogue and records the outcome.
func (s *Server) resolve(sel selection.Selection) (selection.View, error) {
	v, err := s.resolver.Resolve(s.Catalogue(), sel)
	tab := sel.Tab
	if tab == "" {
		tab = s.cfg.Tabs.First().Name
	}
	switch {
	case err == nil:
		metrics.ViewResolutions.WithLabelValues(v.Tab.Name, "ok").Inc()
		if v.Time.Extrapolated {
			metrics.DateExtrapolations.WithLabelValues(s.cfg.Basis.String()).Inc()
		}
	case errors.Is(err, selection.ErrNoData):
		metrics.ViewResolutions.WithLabelValues(tab, "no_data").Inc()
	default:
		metrics.ViewResolutions.WithLabelValues(tab, "invalid").Inc()
	}
	return v, err
}

// selectionFromRequest decodes the query on top of the default selection.
func (s *Server) selectionFromRequest(r *http.Request) (selection.Selection, error) {
	return selection.FromQuery(s.Catalogue(), s.cfg.Tabs, selection.Default(s.cfg.Tabs), r.URL.Query())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, selection.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, selection.ErrNoData):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
