package trainasone

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/claude/trainaspower/internal/models"
	"github.com/tormoder/fit"
)

const (
	invalidUint32    = 0xFFFFFFFF
	messageIndexMask = 0x0FFF
)

// DecodeWorkout decodes a FIT workout file into its name and step records
// ordered by message index.
func DecodeWorkout(data []byte) (string, []models.StepRecord, error) {
	f, err := fit.Decode(bytes.NewReader(data))
	if err != nil {
		return "", nil, fmt.Errorf("decoding fit: %w", err)
	}
	wf, err := f.Workout()
	if err != nil {
		return "", nil, fmt.Errorf("reading fit workout: %w", err)
	}
	if wf.Workout == nil {
		return "", nil, errors.New("fit file has no workout message")
	}

	records := make([]models.StepRecord, 0, len(wf.WorkoutSteps))
	for _, s := range wf.WorkoutSteps {
		records = append(records, stepRecord(s))
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].MessageIndex < records[j].MessageIndex
	})
	return wf.Workout.WktName, records, nil
}

// stepRecord maps a workout_step message to a StepRecord, applying the FIT
// profile scales: time in ms, distance in cm, speed in mm/s.
func stepRecord(s *fit.WorkoutStepMsg) models.StepRecord {
	rec := models.StepRecord{
		MessageIndex: int(uint16(s.MessageIndex) & messageIndexMask),
		Intensity:    intensityName(s.Intensity),
		Notes:        s.Notes,
		WktStepName:  s.WktStepName,
	}

	switch s.DurationType {
	case fit.WktStepDurationTime:
		rec.DurationType = models.DurationTime
		rec.DurationTime = scaled(s.DurationValue, 1000)
	case fit.WktStepDurationDistance:
		rec.DurationType = models.DurationDistance
		rec.DurationDistance = scaled(s.DurationValue, 100)
	case fit.WktStepDurationOpen:
		rec.DurationType = models.DurationOpen
	case fit.WktStepDurationRepeatUntilStepsCmplt:
		rec.DurationType = models.DurationRepeat
		if s.DurationValue != invalidUint32 {
			start := int(s.DurationValue)
			rec.DurationStep = &start
		}
		if s.TargetValue != invalidUint32 {
			reps := int(s.TargetValue)
			rec.RepeatSteps = &reps
		}
		return rec
	default:
		rec.DurationType = fmt.Sprintf("duration_%d", s.DurationType)
	}

	switch s.TargetType {
	case fit.WktStepTargetSpeed:
		rec.TargetType = models.TargetSpeed
		rec.CustomTargetSpeedLow = scaled(s.CustomTargetValueLow, 1000)
		rec.CustomTargetSpeedHigh = scaled(s.CustomTargetValueHigh, 1000)
	case fit.WktStepTargetOpen:
		rec.TargetType = models.TargetOpen
	default:
		rec.TargetType = fmt.Sprintf("target_%d", s.TargetType)
	}
	return rec
}

func intensityName(i fit.Intensity) string {
	switch i {
	case fit.IntensityActive:
		return models.IntensityActive
	case fit.IntensityRest:
		return models.IntensityRest
	case fit.IntensityWarmup:
		return models.IntensityWarmup
	case fit.IntensityCooldown:
		return models.IntensityCooldown
	}
	return ""
}

func scaled(v uint32, scale float64) *float64 {
	if v == invalidUint32 {
		return nil
	}
	f := float64(v) / scale
	return &f
}
