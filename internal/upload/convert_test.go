package upload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/claude/trainaspower/internal/models"
)

func qp(v float64, u models.Unit) *models.Quantity {
	q := models.Q(v, u)
	return &q
}

func sampleWorkout() *models.Workout {
	return &models.Workout{
		Name:     "123 Intervals",
		ID:       "123",
		Date:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
		Duration: models.Q(45, models.Minute),
		Distance: models.Q(6.2, models.Mile),
		Steps: []models.Step{
			&models.ConcreteStep{
				Description: "Warm up",
				Type:        models.StepWarmup,
				Length:      qp(3720, models.Second),
				PowerRange:  models.NewPowerRange(200.6, 249.5),
			},
			models.NewRepeatStep(3, []*models.ConcreteStep{
				{Description: "Recover", Type: models.StepRest, Length: qp(400, models.Meter), PowerRange: models.NewPowerRange(0, 240)},
				{Description: "Fast", Type: models.StepActive, Length: qp(3, models.Minute), PowerRange: models.NewPowerRange(300, 320)},
			}),
			&models.ConcreteStep{
				Description: "Run back",
				Type:        models.StepCooldown,
				PowerRange:  models.NewPowerRange(165, 270),
			},
		},
	}
}

// TestConvertWorkoutIDsPreOrder verifies ids are assigned parent first and
// the highest id equals the number of steps plus groups.
func TestConvertWorkoutIDsPreOrder(t *testing.T) {
	w := sampleWorkout()
	doc, err := ConvertWorkout(w, ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}

	if doc.Sport != "running" || doc.Target != "power" || doc.Name != "123 Intervals" {
		t.Errorf("root = %+v", doc)
	}
	if len(doc.Steps) != 3 {
		t.Fatalf("steps = %d, want 3", len(doc.Steps))
	}

	warm := doc.Steps[0].(*StepDoc)
	rep := doc.Steps[1].(*RepeatDoc)
	cool := doc.Steps[2].(*StepDoc)

	if warm.ID != 1 || rep.ID != 2 || rep.Data[0].ID != 3 || rep.Data[1].ID != 4 || cool.ID != 5 {
		t.Errorf("ids = %d %d [%d %d] %d", warm.ID, rep.ID, rep.Data[0].ID, rep.Data[1].ID, cool.ID)
	}
	if cool.ID != w.CountSteps() {
		t.Errorf("max id = %d, want %d", cool.ID, w.CountSteps())
	}
	if rep.Repeats != 3 || rep.DurationType != "OPEN" || rep.Type != "repeat" {
		t.Errorf("repeat = %+v", rep)
	}
}

func TestConvertStepDurations(t *testing.T) {
	doc, err := ConvertWorkout(sampleWorkout(), ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}
	warm := doc.Steps[0].(*StepDoc)
	if warm.DurationType != "TIME" || warm.Duration != "1:02:00" {
		t.Errorf("warmup duration = %s %q, want TIME 1:02:00", warm.DurationType, warm.Duration)
	}
	if warm.Intensity != models.StepWarmup {
		t.Errorf("intensity = %s", warm.Intensity)
	}

	rest := doc.Steps[1].(*RepeatDoc).Data[0]
	if rest.DurationType != "DISTANCE" || rest.DurationDist == nil || *rest.DurationDist != 400 || rest.DistUnit != "m" {
		t.Errorf("rest = %s %v %q", rest.DurationType, rest.DurationDist, rest.DistUnit)
	}

	fast := doc.Steps[1].(*RepeatDoc).Data[1]
	if fast.Duration != "0:03:00" {
		t.Errorf("fast duration = %q, want 0:03:00", fast.Duration)
	}
}

// TestConvertOpenStepHasNoDuration checks the JSON of an open step carries
// neither duration key.
func TestConvertOpenStepHasNoDuration(t *testing.T) {
	doc, err := ConvertWorkout(sampleWorkout(), ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(doc.Steps[2])
	if err != nil {
		t.Fatal(err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if m["durationType"] != "OPEN" {
		t.Errorf("durationType = %v, want OPEN", m["durationType"])
	}
	for _, k := range []string{"duration", "durationDist", "distUnit"} {
		if _, ok := m[k]; ok {
			t.Errorf("open step has %q", k)
		}
	}
	if v, ok := m["comments"]; !ok || v != nil {
		t.Errorf("comments = %v, want null", v)
	}
}

func TestConvertTargets(t *testing.T) {
	doc, err := ConvertWorkout(sampleWorkout(), ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}
	warm := doc.Steps[0].(*StepDoc)
	if len(warm.Target) != 2 {
		t.Fatalf("targets = %d, want 2", len(warm.Target))
	}
	power := warm.Target[0]
	if power.TargetType != "power" || power.TargetLow != 201 || power.TargetHigh != 250 {
		t.Errorf("power target = %+v, want 201-250", power)
	}
	open := warm.Target[1]
	if open.TargetType != "open" || open.TargetLow != "0" || open.TargetHigh != "0" {
		t.Errorf("open target = %+v", open)
	}
}

func TestBuilderRequestShape(t *testing.T) {
	doc, err := ConvertWorkout(sampleWorkout(), ConvertOptions{})
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(NewBuilderRequest(doc))
	if err != nil {
		t.Fatal(err)
	}

	var m struct {
		TargetOptions  []map[string]any `json:"target_options"`
		TargetOverride *string          `json:"target_override"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatal(err)
	}
	if len(m.TargetOptions) != 1 {
		t.Fatalf("target_options = %d, want 1", len(m.TargetOptions))
	}
	if m.TargetOptions[0]["sport"] != "running" {
		t.Errorf("sport = %v", m.TargetOptions[0]["sport"])
	}
	if m.TargetOverride != nil {
		t.Errorf("target_override = %v, want null", *m.TargetOverride)
	}
}

func TestConvertPaceOnly(t *testing.T) {
	pace := models.NewRange(models.Q(330, models.SecondPerKilometer), models.Q(300, models.SecondPerKilometer))
	w := &models.Workout{
		Name: "7 Easy",
		Steps: []models.Step{
			&models.ConcreteStep{Type: models.StepActive, Length: qp(20, models.Minute), PaceRange: &pace},
			&models.ConcreteStep{Type: models.StepRest, Length: qp(1, models.Minute)},
		},
	}
	doc, err := ConvertWorkout(w, ConvertOptions{PaceOnly: true})
	if err != nil {
		t.Fatal(err)
	}
	if doc.Target != "pace" {
		t.Errorf("target = %q, want pace", doc.Target)
	}

	paced := doc.Steps[0].(*StepDoc).Target[0]
	if paced.TargetType != "pace" || paced.TargetLow != "05:30" || paced.TargetHigh != "05:00" {
		t.Errorf("pace target = %+v", paced)
	}
	if paced.TargetOption == nil || *paced.TargetOption != "min/km" {
		t.Errorf("targetOption = %v", paced.TargetOption)
	}

	unpaced := doc.Steps[1].(*StepDoc).Target[0]
	if unpaced.TargetType != "open" {
		t.Errorf("unpaced target = %+v, want open", unpaced)
	}
}

func TestPaceClock(t *testing.T) {
	tests := []struct {
		pace models.Quantity
		want string
	}{
		{models.Q(483, models.SecondPerMile), "05:00"},
		{models.Q(996, models.SecondPerMile), "10:18"},
		{models.Q(329.7, models.SecondPerKilometer), "05:29"},
		{models.Q(5.5, models.MinutePerKilometer), "05:30"},
		{models.Q(359.99, models.SecondPerKilometer), "05:59"},
		{models.PaceFromSpeed(0), "00:00"},
	}
	for _, tt := range tests {
		got, err := PaceClock(tt.pace)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("PaceClock(%v) = %q, want %q", tt.pace, got, tt.want)
		}
	}
}

func TestConvertWorkoutSave(t *testing.T) {
	w := sampleWorkout()

	save, err := ConvertWorkoutSave(w, "")
	if err != nil {
		t.Fatal(err)
	}
	if save.Key != nil {
		t.Errorf("key = %v, want nil", *save.Key)
	}
	if save.WorkoutDate != "2026-03-02" || save.Description != SyncDescription {
		t.Errorf("save = %+v", save)
	}
	if save.Activity.PlannedDuration != 2700 {
		t.Errorf("planned_duration = %d, want 2700", save.Activity.PlannedDuration)
	}
	if save.Activity.PlannedAmount != 6.2 || save.Activity.PlannedAmountType != "mi" {
		t.Errorf("planned amount = %v %s", save.Activity.PlannedAmount, save.Activity.PlannedAmountType)
	}

	save, err = ConvertWorkoutSave(w, "wk-1")
	if err != nil {
		t.Fatal(err)
	}
	if save.Key == nil || *save.Key != "wk-1" {
		t.Errorf("key = %v, want wk-1", save.Key)
	}
}
