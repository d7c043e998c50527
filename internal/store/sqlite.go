package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/landmark-labs/sitescan/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL
// mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	mode           TEXT NOT NULL,
	status         TEXT NOT NULL,
	site_count     INTEGER NOT NULL DEFAULT 0,
	high_priority  INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT,
	manifest       TEXT NOT NULL,
	stats          TEXT NOT NULL,
	evaluation     TEXT,
	started_at     DATETIME NOT NULL,
	completed_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sites (
	run_id     TEXT NOT NULL REFERENCES runs(run_id),
	site_id    TEXT NOT NULL,
	lat        REAL NOT NULL,
	lon        REAL NOT NULL,
	confidence REAL NOT NULL,
	priority   TEXT NOT NULL,
	area_m2    REAL NOT NULL,
	site_type  TEXT,
	detail     TEXT NOT NULL,
	PRIMARY KEY (run_id, site_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_sites_priority ON sites(priority);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveRun(ctx context.Context, result *model.PipelineResult) error {
	manifestJSON, err := json.Marshal(result.Manifest)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal manifest")
	}
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal stats")
	}
	var evalJSON []byte
	if result.Evaluation != nil {
		if evalJSON, err = json.Marshal(result.Evaluation); err != nil {
			return eris.Wrap(err, "sqlite: marshal evaluation")
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin save run")
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(run_id, mode, status, site_count, high_priority, failure_reason, manifest, stats, evaluation, started_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		result.RunID, string(result.Manifest.Mode), string(result.Status),
		result.Stats.SiteCount, result.Stats.HighPriority, result.FailureReason,
		string(manifestJSON), string(statsJSON), nullableString(evalJSON),
		result.Manifest.StartedAt, result.Manifest.CompletedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	for _, site := range result.Sites {
		detail, merr := json.Marshal(site)
		if merr != nil {
			return eris.Wrap(merr, "sqlite: marshal site")
		}
		_, err = tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO sites
				(run_id, site_id, lat, lon, confidence, priority, area_m2, site_type, detail)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			result.RunID, site.ID, site.Lat, site.Lon, site.Confidence,
			string(site.Priority), site.AreaM2, site.SiteType, string(detail),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert site %s", site.ID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit save run")
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.PipelineResult, error) {
	var manifestJSON, statsJSON string
	var evalJSON sql.NullString
	var status, failureReason string

	err := s.db.QueryRowContext(ctx, `
		SELECT status, failure_reason, manifest, stats, evaluation FROM runs WHERE run_id = ?`, runID).
		Scan(&status, &failureReason, &manifestJSON, &statsJSON, &evalJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Errorf("sqlite: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get run")
	}

	result := &model.PipelineResult{
		RunID:         runID,
		Status:        model.ManifestStatus(status),
		FailureReason: failureReason,
	}
	if err := json.Unmarshal([]byte(manifestJSON), &result.Manifest); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal manifest")
	}
	if err := json.Unmarshal([]byte(statsJSON), &result.Stats); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal stats")
	}
	if evalJSON.Valid && evalJSON.String != "" {
		if err := json.Unmarshal([]byte(evalJSON.String), &result.Evaluation); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal evaluation")
		}
	}

	rows, err := s.db.QueryContext(ctx, `SELECT detail FROM sites WHERE run_id = ? ORDER BY site_id`, runID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get sites")
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var detail string
		if err := rows.Scan(&detail); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan site")
		}
		var site model.DetectionSite
		if err := json.Unmarshal([]byte(detail), &site); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal site")
		}
		result.Sites = append(result.Sites, site)
	}
	return result, eris.Wrap(rows.Err(), "sqlite: iterate sites")
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, mode, status, site_count, high_priority, failure_reason, started_at, completed_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var mode, status string
		var failureReason sql.NullString
		if err := rows.Scan(&r.RunID, &mode, &status, &r.SiteCount, &r.HighPriority, &failureReason, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Mode = model.RunMode(mode)
		r.Status = model.ManifestStatus(status)
		r.FailureReason = failureReason.String
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func nullableString(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}

var _ Store = (*SQLiteStore)(nil)
