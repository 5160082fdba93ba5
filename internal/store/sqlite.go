// Package store keeps the model-run catalogue and sync history in SQLite.
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/lox/fiat/internal/catalogue"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open opens the database at path with WAL journaling.
func Open(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would get its own empty database.
		db.SetMaxOpenConns(1)
	} else {
		db.Exec("PRAGMA journal_mode=WAL")
	}
	db.Exec("PRAGMA busy_timeout=5000")
	return db, nil
}

// CatalogueRun is one model run found in the plot tree.
type CatalogueRun struct {
	Date         string
	ModelRun     string
	Source       string
	DiscoveredAt time.Time
	LastSeenAt   time.Time
}

func (s *Store) UpsertCatalogueRun(date, modelRun, source string, seenAt time.Time) error {
	_, err := s.db.Exec(`
		INSERT INTO catalogue_runs (date, model_run, source, discovered_at, last_seen_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(date, model_run) DO UPDATE SET
			source = excluded.source,
			last_seen_at = excluded.last_seen_at
	`, date, modelRun, source, seenAt.UTC(), seenAt.UTC())
	return err
}

// ReplaceCatalogue records every run of cat as seen at seenAt and drops the runs from
// source that cat no longer contains. It returns how many runs were new.
func (s *Store) ReplaceCatalogue(cat *catalogue.Catalogue, source string, seenAt time.Time) (int, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	seenAt = seenAt.UTC()
	added := 0
	for _, e := range cat.Entries() {
		for _, run := range e.Runs {
			res, err := tx.Exec(`
				INSERT INTO catalogue_runs (date, model_run, source, discovered_at, last_seen_at)
				VALUES (?, ?, ?, ?, ?)
				ON CONFLICT(date, model_run) DO NOTHING
			`, e.Date, run, source, seenAt, seenAt)
			if err != nil {
				return 0, fmt.Errorf("insert %s %sZ: %w", e.Date, run, err)
			}
			if n, _ := res.RowsAffected(); n > 0 {
				added++
				continue
			}
			if _, err := tx.Exec(`
				UPDATE catalogue_runs SET source = ?, last_seen_at = ? WHERE date = ? AND model_run = ?
			`, source, seenAt, e.Date, run); err != nil {
				return 0, fmt.Errorf("touch %s %sZ: %w", e.Date, run, err)
			}
		}
	}
	if _, err := tx.Exec(`DELETE FROM catalogue_runs WHERE source = ? AND last_seen_at <> ?`, source, seenAt); err != nil {
		return 0, fmt.Errorf("prune: %w", err)
	}
	return added, tx.Commit()
}

func (s *Store) CatalogueRuns() ([]CatalogueRun, error) {
	rows, err := s.db.Query(`
		SELECT date, model_run, source, discovered_at, last_seen_at
		FROM catalogue_runs
		ORDER BY date, model_run
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []CatalogueRun
	for rows.Next() {
		var r CatalogueRun
		var lastSeen sql.NullTime
		if err := rows.Scan(&r.Date, &r.ModelRun, &r.Source, &r.DiscoveredAt, &lastSeen); err != nil {
			return nil, err
		}
		r.LastSeenAt = r.DiscoveredAt
		if lastSeen.Valid {
			r.LastSeenAt = lastSeen.Time
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Catalogue builds the date/run catalogue from the stored runs.
func (s *Store) Catalogue() (*catalogue.Catalogue, error) {
	runs, err := s.CatalogueRuns()
	if err != nil {
		return nil, err
	}
	var entries []catalogue.Entry
	for _, r := range runs {
		if n := len(entries); n > 0 && entries[n-1].Date == r.Date {
			entries[n-1].Runs = append(entries[n-1].Runs, r.ModelRun)
			continue
		}
		entries = append(entries, catalogue.Entry{Date: r.Date, Runs: []string{r.ModelRun}})
	}
	return catalogue.New(entries)
}
