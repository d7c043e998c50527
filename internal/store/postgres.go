package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/landmark-labs/sitescan/internal/model"
)

// Pool is the subset of pgxpool.Pool used by the store, satisfied by
// pgxmock in tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run": `INSERT INTO runs (run_id, mode, status, site_count, high_priority, failure_reason, manifest, stats, evaluation, started_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO UPDATE SET status = EXCLUDED.status, manifest = EXCLUDED.manifest, stats = EXCLUDED.stats, completed_at = EXCLUDED.completed_at`,
	"insert_site": `INSERT INTO sites (run_id, site_id, lat, lon, confidence, priority, area_m2, site_type, detail)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (run_id, site_id) DO UPDATE SET confidence = EXCLUDED.confidence, priority = EXCLUDED.priority, detail = EXCLUDED.detail`,
	"get_run":   `SELECT status, failure_reason, manifest, stats, evaluation FROM runs WHERE run_id = $1`,
	"get_sites": `SELECT detail FROM sites WHERE run_id = $1 ORDER BY site_id`,
	"list_runs": `SELECT run_id, mode, status, site_count, high_priority, failure_reason, started_at, completed_at FROM runs ORDER BY started_at DESC LIMIT $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns, minConns := int32(10), int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	run_id         TEXT PRIMARY KEY,
	mode           TEXT NOT NULL,
	status         TEXT NOT NULL,
	site_count     INTEGER NOT NULL DEFAULT 0,
	high_priority  INTEGER NOT NULL DEFAULT 0,
	failure_reason TEXT,
	manifest       JSONB NOT NULL,
	stats          JSONB NOT NULL,
	evaluation     JSONB,
	started_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS sites (
	run_id     TEXT NOT NULL REFERENCES runs(run_id),
	site_id    TEXT NOT NULL,
	lat        DOUBLE PRECISION NOT NULL,
	lon        DOUBLE PRECISION NOT NULL,
	confidence DOUBLE PRECISION NOT NULL,
	priority   TEXT NOT NULL,
	area_m2    DOUBLE PRECISION NOT NULL,
	site_type  TEXT,
	detail     JSONB NOT NULL,
	PRIMARY KEY (run_id, site_id)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_sites_priority ON sites(priority);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) SaveRun(ctx context.Context, result *model.PipelineResult) error {
	manifestJSON, err := json.Marshal(result.Manifest)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal manifest")
	}
	statsJSON, err := json.Marshal(result.Stats)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal stats")
	}
	var evalJSON []byte
	if result.Evaluation != nil {
		if evalJSON, err = json.Marshal(result.Evaluation); err != nil {
			return eris.Wrap(err, "postgres: marshal evaluation")
		}
	}

	_, err = s.pool.Exec(ctx, preparedStatements["insert_run"],
		result.RunID, string(result.Manifest.Mode), string(result.Status),
		result.Stats.SiteCount, result.Stats.HighPriority, result.FailureReason,
		manifestJSON, statsJSON, evalJSON,
		result.Manifest.StartedAt, result.Manifest.CompletedAt,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert run")
	}

	for _, site := range result.Sites {
		detail, merr := json.Marshal(site)
		if merr != nil {
			return eris.Wrap(merr, "postgres: marshal site")
		}
		_, err = s.pool.Exec(ctx, preparedStatements["insert_site"],
			result.RunID, site.ID, site.Lat, site.Lon, site.Confidence,
			string(site.Priority), site.AreaM2, site.SiteType, detail,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert site %s", site.ID)
		}
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.PipelineResult, error) {
	var status, failureReason string
	var manifestJSON, statsJSON []byte
	var evalJSON []byte

	err := s.pool.QueryRow(ctx, preparedStatements["get_run"], runID).
		Scan(&status, &failureReason, &manifestJSON, &statsJSON, &evalJSON)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Errorf("postgres: run %s not found", runID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get run")
	}

	result := &model.PipelineResult{
		RunID:         runID,
		Status:        model.ManifestStatus(status),
		FailureReason: failureReason,
	}
	if err := json.Unmarshal(manifestJSON, &result.Manifest); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal manifest")
	}
	if err := json.Unmarshal(statsJSON, &result.Stats); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal stats")
	}
	if len(evalJSON) > 0 {
		if err := json.Unmarshal(evalJSON, &result.Evaluation); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal evaluation")
		}
	}

	rows, err := s.pool.Query(ctx, preparedStatements["get_sites"], runID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get sites")
	}
	defer rows.Close()

	for rows.Next() {
		var detail []byte
		if err := rows.Scan(&detail); err != nil {
			return nil, eris.Wrap(err, "postgres: scan site")
		}
		var site model.DetectionSite
		if err := json.Unmarshal(detail, &site); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal site")
		}
		result.Sites = append(result.Sites, site)
	}
	return result, eris.Wrap(rows.Err(), "postgres: iterate sites")
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, preparedStatements["list_runs"], limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		var mode, status string
		var failureReason *string
		if err := rows.Scan(&r.RunID, &mode, &status, &r.SiteCount, &r.HighPriority, &failureReason, &r.StartedAt, &r.CompletedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Mode = model.RunMode(mode)
		r.Status = model.ManifestStatus(status)
		if failureReason != nil {
			r.FailureReason = *failureReason
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

var _ Store = (*PostgresStore)(nil)
