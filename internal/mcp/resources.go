package mcp

import (
	"context"
	"encoding/json"

	"github.com/claude/trainaspower/internal/upload"
	"github.com/mark3labs/mcp-go/mcp"
)

const recentWorkoutsLimit = 14

func (h *handlers) recentWorkouts(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	workouts, err := h.ds.ListSynced(ctx, recentWorkoutsLimit)
	if err != nil {
		return nil, err
	}
	if workouts == nil {
		workouts = []upload.SyncedWorkout{}
	}

	data, err := json.Marshal(workouts)
	if err != nil {
		return nil, err
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}
