package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/lox/fiat/internal/catalogue"
	"github.com/lox/fiat/internal/logger"
	"github.com/lox/fiat/internal/metrics"
	"github.com/lox/fiat/internal/store"
)

// Dialer opens the remote plot tree for one sync.
type Dialer func(ctx context.Context) (Source, error)

// FTPDialer dials cfg, retrying with backoff for up to two minutes.
func FTPDialer(cfg FTPConfig) Dialer {
	return func(ctx context.Context) (Source, error) {
		var src *FTPSource
		operation := func() error {
			s, err := DialFTP(ctx, cfg)
			if err != nil {
				return err
			}
			src = s
			return nil
		}
		bo := backoff.NewExponentialBackOff()
		bo.MaxElapsedTime = 2 * time.Minute
		if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
			return nil, err
		}
		return src, nil
	}
}

// Syncer mirrors the remote plot tree into the local plot root and rebuilds the
// stored catalogue from what is on disk.
type Syncer struct {
	store *store.Store
	root  string
	dial  Dialer
	log   *slog.Logger

	// Retention limits mirroring to recent dates. Zero mirrors everything.
	Retention time.Duration
	// OnCatalogue is called with the rebuilt catalogue after every sync.
	OnCatalogue func(*catalogue.Catalogue)
	Now         func() time.Time
}

// NewSyncer returns a syncer for the local plot root. A nil dial only rescans.
func NewSyncer(st *store.Store, root string, dial Dialer, log *slog.Logger) *Syncer {
	return &Syncer{
		store: st,
		root:  root,
		dial:  dial,
		log:   logger.Component(log, "sync"),
		Now:   time.Now,
	}
}

// Sync runs one mirror and rescan, recording it as a sync run.
func (s *Syncer) Sync(ctx context.Context) (*store.SyncRun, error) {
	source := "scan"
	if s.dial != nil {
		source = "ftp"
	}
	start := s.Now()
	run, err := s.store.StartSyncRun(uuid.NewString(), source)
	if err != nil {
		return nil, fmt.Errorf("start sync run: %w", err)
	}
	log := s.log.With("run", run.ID)
	log.Info("sync starting", "source", source)

	var errs *multierror.Error
	if s.dial != nil {
		stats, err := s.mirror(ctx, log)
		run.FilesFetched = int64(stats.Fetched)
		run.FilesFailed = int64(stats.Failed)
		run.BytesFetched = stats.Bytes
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	cat, err := s.rescan(start)
	if err != nil {
		errs = multierror.Append(errs, err)
	} else {
		metrics.CatalogueDates.Set(float64(cat.Len()))
		if s.OnCatalogue != nil {
			s.OnCatalogue(cat)
		}
	}

	status := "success"
	run.Success = errs.ErrorOrNil() == nil
	if !run.Success {
		status = "error"
		run.ErrorMessage = sql.NullString{String: errs.Error(), Valid: true}
	}
	if err := s.store.CompleteSyncRun(run); err != nil {
		log.Error("complete sync run", "error", err)
	}
	metrics.SyncDuration.WithLabelValues(source, status).Observe(s.Now().Sub(start).Seconds())
	log.Info("sync finished", "status", status, "fetched", run.FilesFetched, "failed", run.FilesFailed)
	return run, errs.ErrorOrNil()
}

func (s *Syncer) mirror(ctx context.Context, log *slog.Logger) (Stats, error) {
	src, err := s.dial(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("connect: %w", err)
	}
	defer src.Close()

	opts := MirrorOptions{Log: log}
	if s.Retention > 0 {
		y, m, d := s.Now().UTC().Add(-s.Retention).Date()
		opts.Since = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return Mirror(ctx, src, s.root, opts)
}

func (s *Syncer) rescan(seenAt time.Time) (*catalogue.Catalogue, error) {
	cat, err := catalogue.Scan(os.DirFS(s.root))
	if err != nil {
		return nil, fmt.Errorf("scan plot tree: %w", err)
	}
	added, err := s.store.ReplaceCatalogue(cat, "scan", seenAt)
	if err != nil {
		return nil, fmt.Errorf("store catalogue: %w", err)
	}
	if added > 0 {
		s.log.Info("new model runs", "count", added, "latest", cat.Latest())
	}
	return cat, nil
}
