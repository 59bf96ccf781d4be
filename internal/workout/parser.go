// Package workout turns source workout steps into the power-target step tree.
//
// Two front-ends share one contract: TextParser reads steps rendered on the
// planner's web page, RecordParser reads decoded FIT workout_step messages.
// Each Parse call yields either a fully populated concrete step or a
// GroupMarker describing a repeat; the builders in tree.go assemble those
// into a []models.Step.
package workout

import (
	"context"
	"fmt"

	"github.com/claude/trainaspower/internal/models"
)

// PowerSource resolves targets to power. *stryd.Resolver satisfies it.
type PowerSource interface {
	ConvertPaceRange(ctx context.Context, pace models.PaceRange) (models.PowerRange, error)
	SuggestedRangeForDistance(ctx context.Context, distance models.Quantity) (models.PowerRange, error)
	SuggestedRangeForTime(ctx context.Context, duration models.Quantity) (models.PowerRange, error)
	CriticalPower(ctx context.Context) (float64, error)
}

// Resetter is implemented by power sources that cache lookups. Reset drops
// the cache so the next conversion sees fresh Stryd values.
type Resetter interface {
	Reset()
}

// Parser is implemented by both front-ends.
type Parser[R any] interface {
	Parse(ctx context.Context, raw R) (Parsed, error)
}

// Parsed holds exactly one of Step or Group.
type Parsed struct {
	Step  *models.ConcreteStep
	Group *GroupMarker
}

// GroupMarker describes a repeat found in the source. Text sources nest the
// repeated steps in Children; FIT sources reference the already-emitted
// positions Start..End (inclusive).
type GroupMarker struct {
	Repetitions int
	Start       int
	End         int
	Children    []models.TextStep
}

// ValidationError reports a source step that cannot be converted. Raw is the
// offending source, kept for diagnostics.
type ValidationError struct {
	Reason string
	Raw    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid step: %s (source: %q)", e.Reason, e.Raw)
}

func invalid(raw, format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...), Raw: raw}
}

// cpRange returns [lo·CP, hi·CP].
func cpRange(ctx context.Context, power PowerSource, lo, hi float64) (models.PowerRange, error) {
	cp, err := power.CriticalPower(ctx)
	if err != nil {
		return models.PowerRange{}, err
	}
	return models.NewPowerRange(cp*lo, cp*hi), nil
}

// standingRange targets steps where the runner stands still.
var standingRange = models.NewPowerRange(0, 50)
