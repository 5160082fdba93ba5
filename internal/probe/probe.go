// Package probe checks which plots of a view can actually be fetched.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/lox/fiat/internal/logger"
	"github.com/lox/fiat/internal/metrics"
	"github.com/lox/fiat/internal/plots"
)

// Result is the outcome of checking one plot.
type Result struct {
	ID        string `json:"id"`
	URL       string `json:"url,omitempty"`
	Status    int    `json:"status,omitempty"`
	Available bool   `json:"available"`
	Skipped   bool   `json:"skipped,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Prober issues HEAD requests for plot URLs.
type Prober struct {
	client *http.Client
	base   *url.URL
	log    *slog.Logger

	// Workers bounds concurrent requests.
	Workers int
	// MaxElapsed bounds the retries for one URL.
	MaxElapsed time.Duration
}

// New returns a prober resolving site-relative plot URLs against base.
func New(client *http.Client, base *url.URL, log *slog.Logger) *Prober {
	return &Prober{
		client:     client,
		base:       base,
		log:        logger.Component(log, "probe"),
		Workers:    4,
		MaxElapsed: 10 * time.Second,
	}
}

// Check probes every plot. Results are in the order of ps.
func (p *Prober) Check(ctx context.Context, ps []plots.Plot) []Result {
	results := make([]Result, len(ps))
	workers := p.Workers
	if workers < 1 {
		workers = 1
	}
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for i, pl := range ps {
		if pl.Skipped {
			results[i] = Result{ID: pl.ID, Skipped: true}
			metrics.ProbeResults.WithLabelValues(string(pl.Role), "skipped").Inc()
			continue
		}
		wg.Add(1)
		go func(i int, pl plots.Plot) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = p.checkOne(ctx, pl)
		}(i, pl)
	}
	wg.Wait()
	return results
}

var errRetry = errors.New("retryable status")

func (p *Prober) checkOne(ctx context.Context, pl plots.Plot) Result {
	r := Result{ID: pl.ID}
	target, err := p.resolve(pl.URL)
	if err != nil {
		r.Error = err.Error()
		metrics.ProbeResults.WithLabelValues(string(pl.Role), "error").Inc()
		return r
	}
	r.URL = target

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, target, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := p.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		r.Status = resp.StatusCode
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("%w: %d", errRetry, resp.StatusCode)
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 200 * time.Millisecond
	bo.MaxElapsedTime = p.MaxElapsed
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil && r.Status == 0 {
		r.Error = err.Error()
	}

	r.Available = r.Status >= 200 && r.Status < 300
	result := "available"
	switch {
	case r.Error != "":
		result = "error"
		p.log.Warn("probe failed", "id", pl.ID, "url", target, "error", r.Error)
	case !r.Available:
		result = "missing"
		p.log.Debug("plot missing", "id", pl.ID, "url", target, "status", r.Status)
	}
	metrics.ProbeResults.WithLabelValues(string(pl.Role), result).Inc()
	return r
}

func (p *Prober) resolve(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.IsAbs() {
		return u.String(), nil
	}
	if p.base == nil {
		return "", fmt.Errorf("relative URL %q without a base", raw)
	}
	return p.base.ResolveReference(u).String(), nil
}
