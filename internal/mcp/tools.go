package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"math"

	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/upload"
	"github.com/claude/trainaspower/internal/workout"
	"github.com/mark3labs/mcp-go/mcp"
)

// --- Tool definitions ---

var toolListSyncedWorkouts = mcp.NewTool("list_synced_workouts",
	mcp.WithDescription("List workouts synced to Final Surge, most recent date first. Returns workout id, date, name, Final Surge key and document hash."),
	mcp.WithNumber("limit", mcp.Description("Maximum number of workouts. Defaults to 20.")),
)

var toolGetWorkoutDocument = mcp.NewTool("get_workout_document",
	mcp.WithDescription("Get the workout builder document last uploaded for a TrainAsOne workout: every step with its duration, power (or pace) target and intensity, repeats with their children."),
	mcp.WithString("workout_id", mcp.Required(), mcp.Description("TrainAsOne workout number (e.g. '123')")),
)

var toolPaceToPower = mcp.NewTool("pace_to_power",
	mcp.WithDescription("Convert a running pace, or a pace band, to the Stryd power band the runner would hold at that pace."),
	mcp.WithString("pace", mcp.Required(), mcp.Description("Slow end of the band as mm:ss (e.g. '08:30')")),
	mcp.WithString("pace_fast", mcp.Description("Fast end of the band as mm:ss. Defaults to pace.")),
	mcp.WithString("unit", mcp.Description("Distance unit the pace is per. Defaults to 'mi'."), mcp.Enum("mi", "km")),
)

// --- Tool handlers ---

func (h *handlers) listSyncedWorkouts(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	limit := int(req.GetFloat("limit", 20))
	if limit <= 0 {
		return mcp.NewToolResultError("limit must be positive"), nil
	}

	workouts, err := h.ds.ListSynced(ctx, limit)
	if err != nil {
		h.log.Error("mcp list_synced_workouts", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if workouts == nil {
		workouts = []upload.SyncedWorkout{}
	}

	result, err := mcp.NewToolResultJSON(workouts)
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func (h *handlers) getWorkoutDocument(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("workout_id")
	if err != nil {
		return mcp.NewToolResultError("workout_id parameter is required"), nil
	}

	synced, err := h.ds.GetSynced(ctx, id)
	if errors.Is(err, upload.ErrNotFound) {
		return mcp.NewToolResultError("workout " + id + " has not been synced"), nil
	}
	if err != nil {
		h.log.Error("mcp get_workout_document", "error", err)
		return mcp.NewToolResultError("query failed: " + err.Error()), nil
	}
	if synced.DocumentJSON == "" {
		return mcp.NewToolResultError("workout " + id + " has no stored document"), nil
	}

	result, err := mcp.NewToolResultJSON(map[string]any{
		"workout_id":      synced.WorkoutID,
		"date":            synced.Date,
		"name":            synced.Name,
		"destination_key": synced.DestinationKey,
		"document":        json.RawMessage(synced.DocumentJSON),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

// paceToPowerResult is the pace_to_power answer. Paces are echoed as mm:ss.
type paceToPowerResult struct {
	PaceSlow  string `json:"pace_slow"`
	PaceFast  string `json:"pace_fast"`
	Unit      string `json:"unit"`
	PowerLow  int    `json:"power_low"`
	PowerHigh int    `json:"power_high"`
}

func (h *handlers) paceToPower(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if h.power == nil {
		return mcp.NewToolResultError("no Stryd account configured"), nil
	}
	slow, err := req.RequireString("pace")
	if err != nil {
		return mcp.NewToolResultError("pace parameter is required"), nil
	}
	fast := req.GetString("pace_fast", slow)
	unitSymbol := req.GetString("unit", "mi")

	unit, err := models.ParseUnit(unitSymbol)
	if err != nil || unit.Dimension != models.DimensionLength {
		return mcp.NewToolResultError("unit must be mi or km"), nil
	}
	lo, err := clockPace(slow, unit)
	if err != nil {
		return mcp.NewToolResultError("invalid pace: " + err.Error()), nil
	}
	hi, err := clockPace(fast, unit)
	if err != nil {
		return mcp.NewToolResultError("invalid pace_fast: " + err.Error()), nil
	}

	power, err := h.power.ConvertPaceRange(ctx, models.NewRange(lo, hi))
	if err != nil {
		h.log.Error("mcp pace_to_power", "error", err)
		return mcp.NewToolResultError("conversion failed: " + err.Error()), nil
	}

	result, err := mcp.NewToolResultJSON(paceToPowerResult{
		PaceSlow:  slow,
		PaceFast:  fast,
		Unit:      unitSymbol,
		PowerLow:  int(math.Round(power.Min)),
		PowerHigh: int(math.Round(power.Max)),
	})
	if err != nil {
		return mcp.NewToolResultError("serialization failed"), nil
	}
	return result, nil
}

func clockPace(clock string, per models.Unit) (models.Quantity, error) {
	secs, err := workout.ParseClock(clock)
	if err != nil {
		return models.Quantity{}, err
	}
	return models.PaceSeconds(float64(secs), per)
}
