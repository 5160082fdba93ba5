package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dustin/go-humanize"
	"github.com/hashicorp/go-multierror"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/logger"
	"github.com/lox/fiat/internal/metrics"
)

// MirroredDirs are the top-level directories of the plot tree that are copied.
var MirroredDirs = []string{catalogue.ModifiedForecastsDir, "Forecasts", "Observations"}

// MirrorOptions tune one mirror pass.
type MirrorOptions struct {
	// Since skips files under date directories older than this. Zero keeps everything.
	Since time.Time
	// RetryInterval is the first wait before retrying a failed download.
	RetryInterval time.Duration
	// MaxRetryTime bounds the retries for one file.
	MaxRetryTime time.Duration
	Log          *slog.Logger
}

// Stats summarise one mirror pass.
type Stats struct {
	Listed  int
	Fetched int
	Skipped int
	Failed  int
	Bytes   int64
}

// Mirror copies new and changed .png files from src into the directory dst. Files
// that fail are collected into the returned error; the others are still copied.
func Mirror(ctx context.Context, src Source, dst string, opts MirrorOptions) (Stats, error) {
	log := logger.Component(opts.Log, "mirror")

	var stats Stats
	files, err := src.List(ctx)
	if err != nil {
		return stats, fmt.Errorf("list remote: %w", err)
	}
	stats.Listed = len(files)

	var errs *multierror.Error
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return stats, multierror.Append(errs, err).ErrorOrNil()
		}
		if !wanted(f.Path, opts.Since) {
			continue
		}
		local := filepath.Join(dst, filepath.FromSlash(f.Path))
		if upToDate(local, f) {
			stats.Skipped++
			metrics.SyncFiles.WithLabelValues("unchanged").Inc()
			continue
		}

		n, err := fetch(ctx, src, f, local, opts)
		if err != nil {
			stats.Failed++
			metrics.SyncFiles.WithLabelValues("failed").Inc()
			log.Warn("fetch failed", "path", f.Path, "error", err)
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", f.Path, err))
			continue
		}
		stats.Fetched++
		stats.Bytes += n
		metrics.SyncFiles.WithLabelValues("fetched").Inc()
		metrics.SyncBytes.Add(float64(n))
	}

	log.Info("mirror complete",
		"listed", stats.Listed,
		"fetched", stats.Fetched,
		"unchanged", stats.Skipped,
		"failed", stats.Failed,
		"bytes", humanize.Bytes(uint64(stats.Bytes)))
	return stats, errs.ErrorOrNil()
}

func fetch(ctx context.Context, src Source, f RemoteFile, local string, opts MirrorOptions) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(local), 0755); err != nil {
		return 0, err
	}

	var written int64
	operation := func() error {
		rc, err := src.Open(ctx, f.Path)
		if err != nil {
			return err
		}
		defer rc.Close()

		tmp, err := os.CreateTemp(filepath.Dir(local), ".fetch-*")
		if err != nil {
			return backoff.Permanent(err)
		}
		n, err := io.Copy(tmp, rc)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			os.Remove(tmp.Name())
			return err
		}
		if f.Size > 0 && n != f.Size {
			os.Remove(tmp.Name())
			return fmt.Errorf("short read: got %d of %d bytes", n, f.Size)
		}
		if err := os.Rename(tmp.Name(), local); err != nil {
			os.Remove(tmp.Name())
			return backoff.Permanent(err)
		}
		if !f.ModTime.IsZero() {
			os.Chtimes(local, f.ModTime, f.ModTime)
		}
		written = n
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	if opts.RetryInterval > 0 {
		bo.InitialInterval = opts.RetryInterval
	}
	bo.MaxElapsedTime = opts.MaxRetryTime
	if bo.MaxElapsedTime == 0 {
		bo.MaxElapsedTime = 30 * time.Second
	}
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return 0, err
	}
	return written, nil
}

// wanted reports whether a remote path is a plot inside the retention window.
func wanted(p string, since time.Time) bool {
	if !strings.EqualFold(path.Ext(p), ".png") {
		return false
	}
	if since.IsZero() {
		return true
	}
	d, ok := pathDate(p)
	return !ok || !d.Before(since)
}

// pathDate finds the first path element that starts with a YYYYMMDD date.
func pathDate(p string) (time.Time, bool) {
	for _, elem := range strings.Split(p, "/") {
		if len(elem) < 8 {
			continue
		}
		d, err := time.Parse(catalogue.DateLayout, elem[:8])
		if err == nil {
			return d, true
		}
	}
	return time.Time{}, false
}

func upToDate(local string, f RemoteFile) bool {
	info, err := os.Stat(local)
	if err != nil {
		return false
	}
	if f.Size > 0 && info.Size() != f.Size {
		return false
	}
	return f.ModTime.IsZero() || !info.ModTime().Before(f.ModTime.Truncate(time.Second))
}
