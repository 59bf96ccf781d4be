package mcp

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/upload"
	"github.com/mark3labs/mcp-go/mcp"
)

type fakeDataSource struct {
	workouts []upload.SyncedWorkout
}

func (f *fakeDataSource) ListSynced(_ context.Context, limit int) ([]upload.SyncedWorkout, error) {
	if limit < len(f.workouts) {
		return f.workouts[:limit], nil
	}
	return f.workouts, nil
}

func (f *fakeDataSource) GetSynced(_ context.Context, id string) (*upload.SyncedWorkout, error) {
	for _, w := range f.workouts {
		if w.WorkoutID == id {
			return &w, nil
		}
	}
	return nil, upload.ErrNotFound
}

// linearPower maps pace to power as 1000 / (seconds per km), so 4:00/km is
// 250 W.
type linearPower struct {
	last models.PaceRange
}

func (p *linearPower) ConvertPaceRange(_ context.Context, pace models.PaceRange) (models.PowerRange, error) {
	p.last = pace
	watts := func(q models.Quantity) float64 {
		perKm, _ := q.ConvertTo(models.SecondPerKilometer)
		return 60000 / perKm.Value
	}
	return models.NewPowerRange(watts(pace.Min), watts(pace.Max)), nil
}

func testHandlers(power PaceConverter) *handlers {
	return &handlers{
		ds: &fakeDataSource{workouts: []upload.SyncedWorkout{
			{WorkoutID: "124", Date: "2026-03-05", Name: "124 Easy", DestinationKey: "fs-2", DocumentJSON: `{"target_options":[{"name":"124 Easy"}]}`},
			{WorkoutID: "123", Date: "2026-03-03", Name: "123 Intervals", DestinationKey: "fs-1"},
		}},
		power: power,
		log:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func callRequest(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	tc, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content is %T, want TextContent", res.Content[0])
	}
	return tc.Text
}

func TestListSyncedWorkouts(t *testing.T) {
	h := testHandlers(nil)
	res, err := h.listSyncedWorkouts(context.Background(), callRequest(map[string]any{"limit": float64(1)}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var workouts []upload.SyncedWorkout
	if err := json.Unmarshal([]byte(resultText(t, res)), &workouts); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(workouts) != 1 || workouts[0].WorkoutID != "124" {
		t.Errorf("workouts = %+v", workouts)
	}
}

func TestGetWorkoutDocument(t *testing.T) {
	h := testHandlers(nil)
	res, err := h.getWorkoutDocument(context.Background(), callRequest(map[string]any{"workout_id": "124"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	var got struct {
		DestinationKey string `json:"destination_key"`
		Document       struct {
			TargetOptions []struct {
				Name string `json:"name"`
			} `json:"target_options"`
		} `json:"document"`
	}
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.DestinationKey != "fs-2" || len(got.Document.TargetOptions) != 1 || got.Document.TargetOptions[0].Name != "124 Easy" {
		t.Errorf("result = %+v", got)
	}
}

func TestGetWorkoutDocumentErrors(t *testing.T) {
	h := testHandlers(nil)
	for _, args := range []map[string]any{
		{},
		{"workout_id": "999"},
		{"workout_id": "123"}, // synced without a stored document
	} {
		res, err := h.getWorkoutDocument(context.Background(), callRequest(args))
		if err != nil {
			t.Fatal(err)
		}
		if !res.IsError {
			t.Errorf("args %v: expected tool error", args)
		}
	}
}

func TestPaceToPower(t *testing.T) {
	power := &linearPower{}
	h := testHandlers(power)
	res, err := h.paceToPower(context.Background(), callRequest(map[string]any{
		"pace": "05:00", "pace_fast": "04:00", "unit": "km",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}

	var got paceToPowerResult
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if got.PowerLow != 200 || got.PowerHigh != 250 {
		t.Errorf("power = %d-%d, want 200-250", got.PowerLow, got.PowerHigh)
	}
	if got.Unit != "km" {
		t.Errorf("unit = %q, want km", got.Unit)
	}
}

func TestPaceToPowerDefaultsToMiles(t *testing.T) {
	power := &linearPower{}
	h := testHandlers(power)
	res, err := h.paceToPower(context.Background(), callRequest(map[string]any{"pace": "08:00"}))
	if err != nil {
		t.Fatal(err)
	}
	if res.IsError {
		t.Fatalf("tool error: %s", resultText(t, res))
	}
	if power.last.Min != power.last.Max {
		t.Errorf("single pace should give a zero-width band, got %v", power.last)
	}
	if power.last.Min.Unit != models.SecondPerMile {
		t.Errorf("unit = %v, want s/mi", power.last.Min.Unit)
	}
}

func TestPaceToPowerErrors(t *testing.T) {
	tests := []struct {
		name  string
		power PaceConverter
		args  map[string]any
		want  string
	}{
		{"no stryd", nil, map[string]any{"pace": "08:00"}, "no Stryd"},
		{"missing pace", &linearPower{}, map[string]any{}, "pace parameter"},
		{"bad clock", &linearPower{}, map[string]any{"pace": "8"}, "invalid pace"},
		{"bad unit", &linearPower{}, map[string]any{"pace": "08:00", "unit": "s"}, "unit must be"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := testHandlers(tt.power)
			res, err := h.paceToPower(context.Background(), callRequest(tt.args))
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsError {
				t.Fatal("expected tool error")
			}
			if text := resultText(t, res); !strings.Contains(text, tt.want) {
				t.Errorf("error = %q, want it to contain %q", text, tt.want)
			}
		})
	}
}

func TestRecentWorkoutsResource(t *testing.T) {
	h := testHandlers(nil)
	var req mcp.ReadResourceRequest
	req.Params.URI = "trainaspower://recent_workouts"
	contents, err := h.recentWorkouts(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	tc, ok := contents[0].(mcp.TextResourceContents)
	if !ok {
		t.Fatalf("contents is %T", contents[0])
	}
	if !strings.Contains(tc.Text, "123 Intervals") {
		t.Errorf("resource = %s", tc.Text)
	}
}

func TestNewRegistersTools(t *testing.T) {
	s := New(&fakeDataSource{}, nil, "test", slog.New(slog.NewTextHandler(io.Discard, nil)))
	if s == nil {
		t.Fatal("New returned nil")
	}
}
