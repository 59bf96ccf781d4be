package models

import (
	"fmt"
	"strings"
)

// Decoded FIT workout_step enumerations, using the FIT profile's names.
const (
	DurationTime     = "time"
	DurationDistance = "distance"
	DurationOpen     = "open"
	DurationRepeat   = "repeat_until_steps_cmplt"

	TargetSpeed = "speed"
	TargetOpen  = "open"

	IntensityActive   = "active"
	IntensityRest     = "rest"
	IntensityWarmup   = "warmup"
	IntensityCooldown = "cooldown"
)

// StepRecord is one decoded FIT workout_step message. Optional fields are
// nil when the message did not carry them.
type StepRecord struct {
	MessageIndex int
	Intensity    string
	DurationType string

	DurationTime     *float64 // seconds
	DurationDistance *float64 // meters
	DurationStep     *int     // first message index of a repeat span
	RepeatSteps      *int     // repetition count

	TargetType            string
	CustomTargetSpeedLow  *float64 // m/s
	CustomTargetSpeedHigh *float64 // m/s

	Notes       string
	WktStepName string
}

// String renders the record's populated fields for diagnostics.
func (r StepRecord) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "message_index=%d duration_type=%s", r.MessageIndex, r.DurationType)
	if r.Intensity != "" {
		fmt.Fprintf(&b, " intensity=%s", r.Intensity)
	}
	if r.DurationTime != nil {
		fmt.Fprintf(&b, " duration_time=%g", *r.DurationTime)
	}
	if r.DurationDistance != nil {
		fmt.Fprintf(&b, " duration_distance=%g", *r.DurationDistance)
	}
	if r.DurationStep != nil {
		fmt.Fprintf(&b, " duration_step=%d", *r.DurationStep)
	}
	if r.RepeatSteps != nil {
		fmt.Fprintf(&b, " repeat_steps=%d", *r.RepeatSteps)
	}
	if r.TargetType != "" {
		fmt.Fprintf(&b, " target_type=%s", r.TargetType)
	}
	if r.CustomTargetSpeedLow != nil {
		fmt.Fprintf(&b, " speed_low=%g", *r.CustomTargetSpeedLow)
	}
	if r.CustomTargetSpeedHigh != nil {
		fmt.Fprintf(&b, " speed_high=%g", *r.CustomTargetSpeedHigh)
	}
	if r.WktStepName != "" {
		fmt.Fprintf(&b, " wkt_step_name=%q", r.WktStepName)
	}
	return b.String()
}

// TextStep is one rendered workout step (an <li>) with its CSS classes.
// A repeat container carries its nested steps in Children.
type TextStep struct {
	Text     string
	Classes  []string
	Children []TextStep
}

// HasClass reports whether the step carries the given class token.
func (t TextStep) HasClass(class string) bool {
	for _, c := range t.Classes {
		if c == class {
			return true
		}
	}
	return false
}
