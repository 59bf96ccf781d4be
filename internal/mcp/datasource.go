package mcp

import (
	"context"

	"github.com/claude/trainaspower/internal/upload"
)

// DataSource abstracts the sync state for MCP tools. Both *upload.StateDB
// (local) and HTTPClient (remote via REST API) satisfy this interface.
type DataSource interface {
	ListSynced(ctx context.Context, limit int) ([]upload.SyncedWorkout, error)
	GetSynced(ctx context.Context, workoutID string) (*upload.SyncedWorkout, error)
}

// Compile-time check: *upload.StateDB satisfies DataSource.
var _ DataSource = (*upload.StateDB)(nil)
