// Package store persists finished enrichment runs, keyed by the requesting
// user.
package store

import (
	"context"

	"github.com/leadflow/leadflow-server/internal/model"
)

// RunFilter specifies criteria for listing a user's runs.
type RunFilter struct {
	Keywords string `json:"keywords,omitempty"`
	Limit    int    `json:"limit,omitempty"`
	Offset   int    `json:"offset,omitempty"`
}

// Store is the persistence interface consumed by the pipeline and the API.
// SaveRun writes at most once per successful pipeline execution; retries
// are not idempotent-safe and callers must not assume dedup across runs.
type Store interface {
	SaveRun(ctx context.Context, userID string, run *model.Run) (string, error)
	GetRun(ctx context.Context, userID, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, userID string, filter RunFilter) ([]model.RunSummary, error)

	Migrate(ctx context.Context) error
	Close() error
}
