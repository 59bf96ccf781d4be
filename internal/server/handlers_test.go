package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/claude/trainaspower/internal/models"
	"github.com/claude/trainaspower/internal/stryd"
	"github.com/claude/trainaspower/internal/upload"
)

const testAPIKey = "test-key-123"

const workoutPage = `<html><body>
<div class="summary"><sup>42</sup> <span>Intervals</span></div>
<div class="workoutSteps"><ol>
  <li class="step step-warmup">Warm up [12:00 - 10:00 /mi] for 10 minutes.</li>
  <li class="step">Repeat the following 2 times
    <ol>
      <li class="step">Recover [13:00 - 11:00 /mi] for 2 minutes.</li>
      <li class="step">Run [07:00 - 06:40 /mi] for 3 minutes.</li>
    </ol>
  </li>
</ol></div>
</body></html>`

// fixedPower answers every lookup with the same band.
type fixedPower struct {
	err error
}

func (p fixedPower) ConvertPaceRange(context.Context, models.PaceRange) (models.PowerRange, error) {
	return models.NewPowerRange(250, 270), p.err
}

func (p fixedPower) SuggestedRangeForDistance(context.Context, models.Quantity) (models.PowerRange, error) {
	return models.NewPowerRange(300, 320), p.err
}

func (p fixedPower) SuggestedRangeForTime(context.Context, models.Quantity) (models.PowerRange, error) {
	return models.NewPowerRange(290, 310), p.err
}

func (p fixedPower) CriticalPower(context.Context) (float64, error) {
	return 300, p.err
}

func newTestServer(t *testing.T, power fixedPower) (*Server, *upload.StateDB) {
	t.Helper()
	state, err := upload.OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	t.Cleanup(func() { state.Close() })
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(state, power, Options{Adjust: models.PowerAdjust{Low: 0, High: 5}}, testAPIKey, log), state
}

func do(t *testing.T, s *Server, method, path, body string, auth bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if auth {
		req.Header.Set("X-API-Key", testAPIKey)
	}
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, fixedPower{})
	rec := do(t, s, http.MethodGet, "/api/v1/health", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("missing X-Request-ID")
	}
}

// TestConvertHTML verifies an uploaded workout page comes back as a builder
// document with power targets and the adjustment applied.
func TestConvertHTML(t *testing.T) {
	s, _ := newTestServer(t, fixedPower{})
	rec := do(t, s, http.MethodPost, "/api/v1/convert?format=html", workoutPage, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var req upload.BuilderRequest
	if err := json.NewDecoder(rec.Body).Decode(&req); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(req.TargetOptions) != 1 {
		t.Fatalf("target options = %d, want 1", len(req.TargetOptions))
	}
	doc := req.TargetOptions[0]
	if doc.Name != "42 Intervals" || doc.Target != "power" {
		t.Errorf("document = %q target %q", doc.Name, doc.Target)
	}
	if len(doc.Steps) != 2 {
		t.Fatalf("steps = %d, want 2", len(doc.Steps))
	}
	first, ok := doc.Steps[0].(map[string]any)
	if !ok {
		t.Fatalf("step 0 is %T", doc.Steps[0])
	}
	if first["type"] != "step" || first["durationType"] != "TIME" {
		t.Errorf("step 0 = %v", first)
	}
	target := first["target"].([]any)[0].(map[string]any)
	if target["targetLow"] != float64(250) || target["targetHigh"] != float64(275) {
		t.Errorf("target = %v, want 250-275", target)
	}
	repeat := doc.Steps[1].(map[string]any)
	if repeat["type"] != "repeat" || repeat["repeats"] != float64(2) {
		t.Errorf("step 1 = %v", repeat)
	}
}

func TestConvertPaceOnlyOverride(t *testing.T) {
	s, _ := newTestServer(t, fixedPower{})
	rec := do(t, s, http.MethodPost, "/api/v1/convert?format=html&pace_only=true", workoutPage, true)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}
	if !strings.Contains(rec.Body.String(), `"target":"pace"`) {
		t.Errorf("body = %s, want pace target", rec.Body)
	}
}

func TestConvertErrors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		body   string
		power  fixedPower
		auth   bool
		status int
	}{
		{"missing key", "/api/v1/convert?format=html", workoutPage, fixedPower{}, false, http.StatusUnauthorized},
		{"bad format", "/api/v1/convert?format=tcx", workoutPage, fixedPower{}, true, http.StatusBadRequest},
		{"bad pace_only", "/api/v1/convert?format=html&pace_only=maybe", workoutPage, fixedPower{}, true, http.StatusBadRequest},
		{"no steps", "/api/v1/convert?format=html", "<html></html>", fixedPower{}, true, http.StatusBadRequest},
		{"not fit", "/api/v1/convert?format=fit", "plain text", fixedPower{}, true, http.StatusBadRequest},
		{
			"invalid step", "/api/v1/convert?format=html",
			`<div class="workoutSteps"><ol><li class="step">Jog for a while.</li></ol></div>`,
			fixedPower{}, true, http.StatusUnprocessableEntity,
		},
		{
			"prediction down", "/api/v1/convert?format=html", workoutPage,
			fixedPower{err: &stryd.PredictionServiceError{Endpoint: "/b/api/v1/users/runner/workouts/predict", StatusCode: 503}}, true, http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestServer(t, tt.power)
			rec := do(t, s, http.MethodPost, tt.path, tt.body, tt.auth)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body)
			}
		})
	}
}

func TestWrongAPIKey(t *testing.T) {
	s, _ := newTestServer(t, fixedPower{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/convert?format=html", strings.NewReader(workoutPage))
	req.Header.Set("X-API-Key", "nope")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestWorkoutsFromState(t *testing.T) {
	s, state := newTestServer(t, fixedPower{})
	ctx := context.Background()
	if err := state.MarkSynced(ctx, upload.SyncedWorkout{
		WorkoutID:      "42",
		Date:           "2026-03-03",
		Name:           "42 Intervals",
		DestinationKey: "fs-1",
		DocumentHash:   "abc",
		DocumentJSON:   `{"target_options":[]}`,
	}); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	rec := do(t, s, http.MethodGet, "/api/v1/workouts?limit=10", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var list []upload.SyncedWorkout
	if err := json.NewDecoder(rec.Body).Decode(&list); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(list) != 1 || list[0].DestinationKey != "fs-1" {
		t.Errorf("list = %+v", list)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/42", "", false)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var detail struct {
		Name     string          `json:"name"`
		Document json.RawMessage `json:"document"`
		SyncedAt time.Time       `json:"synced_at"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&detail); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if detail.Name != "42 Intervals" || string(detail.Document) != `{"target_options":[]}` {
		t.Errorf("detail = %+v", detail)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/workouts/missing", "", false)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}

	rec = do(t, s, http.MethodGet, "/api/v1/stats", "", false)
	if !strings.Contains(rec.Body.String(), `"synced_workouts":1`) {
		t.Errorf("stats = %s", rec.Body)
	}
}

func TestEmptyWorkoutList(t *testing.T) {
	s, _ := newTestServer(t, fixedPower{})
	rec := do(t, s, http.MethodGet, "/api/v1/workouts", "", false)
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Errorf("body = %q, want []", rec.Body)
	}
}

// resettablePower counts cache resets.
type resettablePower struct {
	fixedPower
	resets int
}

func (p *resettablePower) Reset() { p.resets++ }

// TestConvertResetsPowerDaily verifies cached Stryd values are dropped on the
// first conversion of a new day and kept within a day.
func TestConvertResetsPowerDaily(t *testing.T) {
	state, err := upload.OpenStateDB(t.TempDir())
	if err != nil {
		t.Fatalf("OpenStateDB: %v", err)
	}
	t.Cleanup(func() { state.Close() })
	power := &resettablePower{}
	s := New(state, power, Options{}, testAPIKey, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	convert := func() {
		t.Helper()
		rec := do(t, s, http.MethodPost, "/api/v1/convert?format=html", workoutPage, true)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
		}
	}

	convert()
	now = now.Add(6 * time.Hour)
	convert()
	if power.resets != 0 {
		t.Errorf("resets within a day = %d, want 0", power.resets)
	}

	now = now.AddDate(0, 0, 1)
	convert()
	convert()
	if power.resets != 1 {
		t.Errorf("resets after a day = %d, want 1", power.resets)
	}
}
