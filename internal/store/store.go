// Package store persists run history: each optimize or sweep invocation and
// its result JSON. The planning core never touches it; wiring happens in the
// CLI layer only.
package store

import (
	"context"
	"time"
)

// Run statuses.
const (
	StatusRunning = "running"
	StatusDone    = "done"
	StatusFailed  = "failed"
)

// Run is one recorded optimize/sweep invocation.
type Run struct {
	ID        string    `json:"id"`
	Kind      string    `json:"kind"`
	Status    string    `json:"status"`
	Result    string    `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Store is the run-history persistence interface.
type Store interface {
	Migrate(ctx context.Context) error
	CreateRun(ctx context.Context, kind string) (string, error)
	CompleteRun(ctx context.Context, id, resultJSON string) error
	FailRun(ctx context.Context, id, errMsg string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
