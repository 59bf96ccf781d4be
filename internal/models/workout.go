package models

import (
	"fmt"
	"time"
)

// StepType tags a step's intensity on the destination.
type StepType string

const (
	StepWarmup   StepType = "WARMUP"
	StepCooldown StepType = "COOLDOWN"
	StepActive   StepType = "ACTIVE"
	StepRest     StepType = "REST"
	StepRepeat   StepType = "REPEAT"
)

// Step is either a *ConcreteStep or a *RepeatStep. The set is closed:
// consumers switch on the concrete type.
type Step interface {
	StepType() StepType
	StepDescription() string
	isStep()
}

// ConcreteStep is a single executable segment.
type ConcreteStep struct {
	Description string
	Type        StepType
	// Length is a time or length quantity, nil for open (run-back) steps.
	Length *Quantity
	// PaceRange is set only when the source carried an explicit pace target.
	PaceRange  *PaceRange
	PowerRange PowerRange
}

func (s *ConcreteStep) StepType() StepType      { return s.Type }
func (s *ConcreteStep) StepDescription() string { return s.Description }
func (*ConcreteStep) isStep()                   {}

// IsOpen reports whether the step has no duration or distance.
func (s *ConcreteStep) IsOpen() bool {
	return s.Length == nil
}

// RepeatStep repeats its children Repetitions times. Children are always
// concrete steps; sources nest at most one level.
type RepeatStep struct {
	Repetitions int
	Steps       []*ConcreteStep
}

// NewRepeatStep creates a repeat group over children.
func NewRepeatStep(repetitions int, children []*ConcreteStep) *RepeatStep {
	return &RepeatStep{Repetitions: repetitions, Steps: children}
}

func (*RepeatStep) StepType() StepType { return StepRepeat }

func (s *RepeatStep) StepDescription() string {
	plural := "s"
	if s.Repetitions == 1 {
		plural = ""
	}
	return fmt.Sprintf("Repeat the following steps %d time%s.", s.Repetitions, plural)
}

func (*RepeatStep) isStep() {}

// Workout is one converted planned workout.
type Workout struct {
	Name     string
	ID       string
	Date     time.Time
	Steps    []Step
	Duration Quantity
	Distance Quantity
}

// CountSteps returns the number of concrete steps plus repeat groups.
func (w *Workout) CountSteps() int {
	n := 0
	for _, s := range w.Steps {
		switch s := s.(type) {
		case *ConcreteStep:
			n++
		case *RepeatStep:
			n += 1 + len(s.Steps)
		}
	}
	return n
}
