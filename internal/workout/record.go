package workout

import (
	"context"
	"math"

	"github.com/claude/trainaspower/internal/models"
)

// Step names the planner gives to easy segments around hard efforts.
const (
	stepNameRecovery    = "Recovery"
	stepNamePreparation = "Preparation"
)

// RecordParser parses decoded FIT workout_step records. It is built per
// workout because open targets depend on the step count and on whether the
// workout is a perceived-effort session.
type RecordParser struct {
	power           PowerSource
	adjust          models.PowerAdjust
	perceivedEffort bool
	numSteps        int
}

var _ Parser[models.StepRecord] = (*RecordParser)(nil)

// NewRecordParser creates a parser for a workout of numSteps records.
func NewRecordParser(power PowerSource, adjust models.PowerAdjust, perceivedEffort bool, numSteps int) *RecordParser {
	return &RecordParser{
		power:           power,
		adjust:          adjust,
		perceivedEffort: perceivedEffort,
		numSteps:        numSteps,
	}
}

// Parse converts one record, or returns a GroupMarker for a repeat record.
func (p *RecordParser) Parse(ctx context.Context, rec models.StepRecord) (Parsed, error) {
	if rec.DurationType == models.DurationRepeat {
		if rec.DurationStep == nil || rec.RepeatSteps == nil {
			return Parsed{}, invalid(rec.String(), "repeat without duration_step or repeat_steps")
		}
		if *rec.RepeatSteps < 1 {
			return Parsed{}, invalid(rec.String(), "repeat count %d", *rec.RepeatSteps)
		}
		return Parsed{Group: &GroupMarker{
			Repetitions: *rec.RepeatSteps,
			Start:       *rec.DurationStep,
			End:         rec.MessageIndex - 1,
		}}, nil
	}

	length, err := recordLength(rec)
	if err != nil {
		return Parsed{}, err
	}
	step := &models.ConcreteStep{
		Description: rec.Notes,
		Type:        recordStepType(rec),
		Length:      length,
	}

	power, err := p.recordPower(ctx, rec, step)
	if err != nil {
		return Parsed{}, err
	}
	step.PowerRange = p.adjust.Apply(power)
	return Parsed{Step: step}, nil
}

func (p *RecordParser) recordPower(ctx context.Context, rec models.StepRecord, step *models.ConcreteStep) (models.PowerRange, error) {
	switch rec.TargetType {
	case models.TargetSpeed:
		pace, err := paceFromSpeeds(rec)
		if err != nil {
			return models.PowerRange{}, err
		}
		step.PaceRange = &pace
		return p.power.ConvertPaceRange(ctx, pace)

	case models.TargetOpen:
		if p.perceivedEffort {
			switch {
			case p.numSteps > 3 && rec.MessageIndex == 1:
				return cpRange(ctx, p.power, 0.3, 0.8)
			case rec.MessageIndex == p.numSteps-1:
				return cpRange(ctx, p.power, 0.55, 0.9)
			}
			// Perceived effort sessions open and close standing.
			return standingRange, nil
		}
		if rec.WktStepName == stepNameRecovery || rec.WktStepName == stepNamePreparation {
			return cpRange(ctx, p.power, 0, 0.9)
		}
		switch rec.DurationType {
		case models.DurationDistance:
			return p.power.SuggestedRangeForDistance(ctx, *step.Length)
		case models.DurationTime:
			return p.power.SuggestedRangeForTime(ctx, *step.Length)
		}
		return cpRange(ctx, p.power, 0.55, 0.9)
	}
	return models.PowerRange{}, invalid(rec.String(), "unknown target type %q", rec.TargetType)
}

func recordStepType(rec models.StepRecord) models.StepType {
	switch rec.Intensity {
	case models.IntensityWarmup:
		return models.StepWarmup
	case models.IntensityCooldown:
		return models.StepCooldown
	case models.IntensityActive:
		if rec.WktStepName == stepNamePreparation {
			return models.StepRest
		}
		return models.StepActive
	}
	return models.StepRest
}

func recordLength(rec models.StepRecord) (*models.Quantity, error) {
	switch rec.DurationType {
	case models.DurationTime:
		if rec.DurationTime == nil {
			return nil, invalid(rec.String(), "time step without duration_time")
		}
		q := models.Q(*rec.DurationTime, models.Second)
		return &q, nil
	case models.DurationDistance:
		if rec.DurationDistance == nil {
			return nil, invalid(rec.String(), "distance step without duration_distance")
		}
		q := models.Q(math.Round(*rec.DurationDistance), models.Meter)
		return &q, nil
	case models.DurationOpen:
		return nil, nil
	}
	return nil, invalid(rec.String(), "unknown duration type %q", rec.DurationType)
}

// paceFromSpeeds turns a speed band into a pace band. The slow end becomes
// Min; a zero slow speed is the unbounded sentinel.
func paceFromSpeeds(rec models.StepRecord) (models.PaceRange, error) {
	if rec.CustomTargetSpeedHigh == nil || *rec.CustomTargetSpeedHigh <= 0 {
		return models.PaceRange{}, invalid(rec.String(), "speed target without a high speed")
	}
	low := 0.0
	if rec.CustomTargetSpeedLow != nil {
		low = *rec.CustomTargetSpeedLow
	}
	return models.NewRange(models.PaceFromSpeed(low), models.PaceFromSpeed(*rec.CustomTargetSpeedHigh)), nil
}
