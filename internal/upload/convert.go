package upload

import (
	"fmt"
	"math"

	"github.com/claude/trainaspower/internal/models"
)

// Fixed values the workout builder expects.
const (
	sportRunning = "running"

	durationTime     = "TIME"
	durationDistance = "DISTANCE"
	durationOpen     = "OPEN"

	targetPower = "power"
	targetPace  = "pace"
	targetOpen  = "open"

	// SyncMarker tags workouts this tool created on the destination.
	SyncMarker = "TrainAsPower"
	// SyncDescription is the description written on every synced workout.
	SyncDescription = SyncMarker + " converted workout"

	runActivityKey = "00000001-0001-0001-0001-000000000001"
)

// Document is the serialized step tree for one workout. Steps holds
// *StepDoc and *RepeatDoc values in execution order.
type Document struct {
	Name   string `json:"name"`
	Sport  string `json:"sport"`
	Target string `json:"target"`
	Steps  []any  `json:"steps"`
}

// BuilderRequest wraps a Document for the WorkoutBuilderSave endpoint.
type BuilderRequest struct {
	TargetOptions  []*Document `json:"target_options"`
	TargetOverride *string     `json:"target_override"`
}

// StepDoc is a serialized concrete step.
type StepDoc struct {
	Type           string          `json:"type"`
	ID             int             `json:"id"`
	Name           string          `json:"name"`
	DurationType   string          `json:"durationType"`
	Duration       string          `json:"duration,omitempty"`
	DurationDist   *float64        `json:"durationDist,omitempty"`
	DistUnit       string          `json:"distUnit,omitempty"`
	TargetAbsOrPct string          `json:"targetAbsOrPct"`
	Data           []any           `json:"data"`
	Target         []Target        `json:"target"`
	Intensity      models.StepType `json:"intensity"`
	Comments       *string         `json:"comments"`
}

// RepeatDoc is a serialized repeat group.
type RepeatDoc struct {
	Type         string     `json:"type"`
	ID           int        `json:"id"`
	Name         *string    `json:"name"`
	Data         []*StepDoc `json:"data"`
	Repeats      int        `json:"repeats"`
	DurationType string     `json:"durationType"`
	Comments     *string    `json:"comments"`
}

// Target is one entry of a step's target list. Low and High are integers for
// power targets and strings for pace and open targets.
type Target struct {
	TargetType        string  `json:"targetType"`
	ZoneBased         bool    `json:"zoneBased"`
	TargetLow         any     `json:"targetLow"`
	TargetHigh        any     `json:"targetHigh"`
	TargetOption      *string `json:"targetOption"`
	TargetIsTimeBased bool    `json:"targetIsTimeBased"`
	Zone              int     `json:"zone"`
}

// WorkoutSave is the calendar entry posted to WorkoutSave. Key is nil when
// creating a new workout.
type WorkoutSave struct {
	Key         *string  `json:"key"`
	WorkoutDate string   `json:"workout_date"`
	Order       int      `json:"order"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	IsRace      bool     `json:"is_race"`
	Activity    Activity `json:"Activity"`
}

// Activity carries the planned totals of a WorkoutSave.
type Activity struct {
	TypeKey           string  `json:"activity_type_key"`
	TypeName          string  `json:"activity_type_name"`
	PlannedAmount     float64 `json:"planned_amount"`
	PlannedAmountType string  `json:"planned_amount_type"`
	PlannedDuration   int     `json:"planned_duration"`
}

// ConvertOptions controls serialization.
type ConvertOptions struct {
	// PaceOnly emits pace targets (min/km) instead of power.
	PaceOnly bool
}

// ConvertWorkout serializes w. Ids are assigned in one pre-order pass
// starting at 1, a repeat before its children.
func ConvertWorkout(w *models.Workout, opts ConvertOptions) (*Document, error) {
	doc := &Document{
		Name:   w.Name,
		Sport:  sportRunning,
		Target: targetPower,
		Steps:  make([]any, 0, len(w.Steps)),
	}
	if opts.PaceOnly {
		doc.Target = targetPace
	}

	id := 0
	next := func() int {
		id++
		return id
	}

	for i, s := range w.Steps {
		switch s := s.(type) {
		case *models.ConcreteStep:
			sd, err := convertStep(s, next(), opts)
			if err != nil {
				return nil, fmt.Errorf("step %d: %w", i+1, err)
			}
			doc.Steps = append(doc.Steps, sd)
		case *models.RepeatStep:
			rd := &RepeatDoc{
				Type:         "repeat",
				ID:           next(),
				Data:         make([]*StepDoc, 0, len(s.Steps)),
				Repeats:      s.Repetitions,
				DurationType: durationOpen,
			}
			for j, c := range s.Steps {
				sd, err := convertStep(c, next(), opts)
				if err != nil {
					return nil, fmt.Errorf("step %d.%d: %w", i+1, j+1, err)
				}
				rd.Data = append(rd.Data, sd)
			}
			doc.Steps = append(doc.Steps, rd)
		default:
			return nil, fmt.Errorf("step %d: unknown step kind %T", i+1, s)
		}
	}
	return doc, nil
}

// NewBuilderRequest wraps doc for the builder endpoint.
func NewBuilderRequest(doc *Document) BuilderRequest {
	return BuilderRequest{TargetOptions: []*Document{doc}}
}

func convertStep(s *models.ConcreteStep, id int, opts ConvertOptions) (*StepDoc, error) {
	sd := &StepDoc{
		Type:      "step",
		ID:        id,
		Name:      s.Description,
		Data:      []any{},
		Intensity: s.Type,
	}

	switch {
	case s.Length == nil:
		sd.DurationType = durationOpen
	case s.Length.Dimension() == models.DimensionTime:
		secs, _ := s.Length.Seconds()
		sd.DurationType = durationTime
		sd.Duration = FormatDuration(secs)
	case s.Length.Dimension() == models.DimensionLength:
		dist := s.Length.Value
		sd.DurationType = durationDistance
		sd.DurationDist = &dist
		sd.DistUnit = s.Length.Unit.Symbol
	default:
		return nil, &models.DimensionError{Op: "step length", Have: s.Length.Dimension(), Want: models.DimensionTime}
	}

	primary, err := primaryTarget(s, opts)
	if err != nil {
		return nil, err
	}
	sd.Target = []Target{primary, openTarget()}
	return sd, nil
}

func primaryTarget(s *models.ConcreteStep, opts ConvertOptions) (Target, error) {
	if !opts.PaceOnly {
		return Target{
			TargetType: targetPower,
			TargetLow:  int(math.Round(s.PowerRange.Min)),
			TargetHigh: int(math.Round(s.PowerRange.Max)),
		}, nil
	}
	if s.PaceRange == nil {
		return openTarget(), nil
	}
	low, err := PaceClock(s.PaceRange.Min)
	if err != nil {
		return Target{}, err
	}
	high, err := PaceClock(s.PaceRange.Max)
	if err != nil {
		return Target{}, err
	}
	option := "min/km"
	return Target{
		TargetType:   targetPace,
		TargetLow:    low,
		TargetHigh:   high,
		TargetOption: &option,
	}, nil
}

func openTarget() Target {
	return Target{TargetType: targetOpen, TargetLow: "0", TargetHigh: "0"}
}

// FormatDuration renders seconds as H:MM:SS.
func FormatDuration(seconds float64) string {
	total := int(math.Round(seconds))
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}

// clockEpsilon absorbs unit-conversion noise before seconds are truncated.
const clockEpsilon = 1e-6

// PaceClock renders a pace as mm:ss per kilometer. Fractional seconds are
// truncated, so 5:29.7 is "05:29".
func PaceClock(pace models.Quantity) (string, error) {
	perKm, err := pace.ConvertTo(models.SecondPerKilometer)
	if err != nil {
		return "", err
	}
	total := int(perKm.Value + clockEpsilon)
	return fmt.Sprintf("%02d:%02d", total/60, total%60), nil
}

// ConvertWorkoutSave builds the calendar entry for w. key is empty when the
// workout is new.
func ConvertWorkoutSave(w *models.Workout, key string) (WorkoutSave, error) {
	save := WorkoutSave{
		WorkoutDate: w.Date.Format("2006-01-02"),
		Order:       1,
		Name:        w.Name,
		Description: SyncDescription,
		Activity: Activity{
			TypeKey:           runActivityKey,
			TypeName:          "Run",
			PlannedAmount:     w.Distance.Value,
			PlannedAmountType: w.Distance.Unit.Symbol,
		},
	}
	if key != "" {
		save.Key = &key
	}
	if !w.Duration.IsZero() {
		secs, err := w.Duration.Seconds()
		if err != nil {
			return WorkoutSave{}, fmt.Errorf("planned duration: %w", err)
		}
		save.Activity.PlannedDuration = int(math.Round(secs))
	}
	return save, nil
}
