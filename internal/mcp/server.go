package mcp

import (
	"context"
	"log/slog"

	"github.com/claude/trainaspower/internal/models"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// PaceConverter resolves pace bands to power bands.
type PaceConverter interface {
	ConvertPaceRange(ctx context.Context, pace models.PaceRange) (models.PowerRange, error)
}

// New creates an MCP server with all tools and resources registered. power
// may be nil when no Stryd account is configured; pace_to_power then reports
// an error.
func New(ds DataSource, power PaceConverter, version string, log *slog.Logger) *server.MCPServer {
	s := server.NewMCPServer("TrainAsPower", version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithInstructions("TrainAsPower workout server. Inspect the TrainAsOne workouts synced to Final Surge as power targets, read their workout builder documents, and convert running paces to Stryd power."),
	)

	h := &handlers{ds: ds, power: power, log: log}

	// Tools
	s.AddTools(
		server.ServerTool{Tool: toolListSyncedWorkouts, Handler: h.listSyncedWorkouts},
		server.ServerTool{Tool: toolGetWorkoutDocument, Handler: h.getWorkoutDocument},
		server.ServerTool{Tool: toolPaceToPower, Handler: h.paceToPower},
	)

	// Resources
	s.AddResources(
		server.ServerResource{Resource: resRecentWorkouts, Handler: h.recentWorkouts},
	)

	return s
}

// handlers holds dependencies for MCP tool/resource handlers.
type handlers struct {
	ds    DataSource
	power PaceConverter
	log   *slog.Logger
}

// --- Resource definitions ---

var resRecentWorkouts = mcp.NewResource(
	"trainaspower://recent_workouts",
	"Recent Workouts",
	mcp.WithResourceDescription("The most recently dated synced workouts with their Final Surge keys"),
	mcp.WithMIMEType("application/json"),
)
