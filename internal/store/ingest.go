package store

import (
	"database/sql"
	"time"
)

// SyncRun records one mirror of the plot tree.
type SyncRun struct {
	ID           string
	StartedAt    time.Time
	FinishedAt   sql.NullTime
	Source       string // "ftp", "scan"
	FilesFetched int64
	FilesFailed  int64
	BytesFetched int64
	Success      bool
	ErrorMessage sql.NullString
}

// Duration is how long a finished run took.
func (r *SyncRun) Duration() time.Duration {
	if !r.FinishedAt.Valid {
		return 0
	}
	return r.FinishedAt.Time.Sub(r.StartedAt)
}

// StartSyncRun creates a new sync run record and returns it.
func (s *Store) StartSyncRun(id, source string) (*SyncRun, error) {
	run := &SyncRun{
		ID:        id,
		StartedAt: time.Now().UTC(),
		Source:    source,
	}
	_, err := s.db.Exec(`
		INSERT INTO sync_runs (id, started_at, source, success)
		VALUES (?, ?, ?, FALSE)
	`, run.ID, run.StartedAt, run.Source)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// CompleteSyncRun updates the sync run with results.
func (s *Store) CompleteSyncRun(run *SyncRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE sync_runs SET
			finished_at = ?,
			files_fetched = ?,
			files_failed = ?,
			bytes_fetched = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.FilesFetched, run.FilesFailed, run.BytesFetched,
		run.Success, run.ErrorMessage, run.ID)
	return err
}

const syncRunColumns = `id, started_at, finished_at, source, files_fetched, files_failed,
	bytes_fetched, success, error_message`

func scanSyncRun(sc interface{ Scan(...any) error }) (*SyncRun, error) {
	var r SyncRun
	if err := sc.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Source, &r.FilesFetched,
		&r.FilesFailed, &r.BytesFetched, &r.Success, &r.ErrorMessage); err != nil {
		return nil, err
	}
	return &r, nil
}

// LatestSyncRun returns the most recently started run, or nil if there is none.
func (s *Store) LatestSyncRun() (*SyncRun, error) {
	row := s.db.QueryRow(`SELECT ` + syncRunColumns + ` FROM sync_runs ORDER BY started_at DESC LIMIT 1`)
	run, err := scanSyncRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// RecentSyncRuns returns up to limit runs, newest first.
func (s *Store) RecentSyncRuns(limit int) ([]SyncRun, error) {
	rows, err := s.db.Query(`SELECT `+syncRunColumns+` FROM sync_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		r, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}
