// Package store persists completed pipeline runs for audit and later
// retrieval. Two backends are provided: SQLite for single-machine use and
// Postgres for shared deployments.
package store

import (
	"context"
	"time"

	"github.com/landmark-labs/sitescan/internal/model"
)

// RunSummary is the list view of a persisted run.
type RunSummary struct {
	RunID         string               `json:"run_id"`
	Mode          model.RunMode        `json:"mode"`
	Status        model.ManifestStatus `json:"status"`
	SiteCount     int                  `json:"site_count"`
	HighPriority  int                  `json:"high_priority_count"`
	FailureReason string               `json:"failure_reason,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	CompletedAt   time.Time            `json:"completed_at"`
}

// Store is the persistence contract used by the pipeline and the CLI.
type Store interface {
	Migrate(ctx context.Context) error
	SaveRun(ctx context.Context, result *model.PipelineResult) error
	GetRun(ctx context.Context, runID string) (*model.PipelineResult, error)
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	Close() error
}
