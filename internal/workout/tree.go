package workout

import (
	"context"
	"fmt"

	"github.com/claude/trainaspower/internal/models"
)

// BuildText assembles rendered steps into a step tree. Repeat containers
// carry their children, so grouping is structural.
func BuildText(ctx context.Context, p Parser[models.TextStep], nodes []models.TextStep) ([]models.Step, error) {
	steps := make([]models.Step, 0, len(nodes))
	for i, node := range nodes {
		parsed, err := p.Parse(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("parsing step %d: %w", i+1, err)
		}
		if g := parsed.Group; g != nil {
			children, err := buildTextChildren(ctx, p, g.Children)
			if err != nil {
				return nil, fmt.Errorf("parsing repeat %d: %w", i+1, err)
			}
			steps = append(steps, models.NewRepeatStep(g.Repetitions, children))
			continue
		}
		if _, explicit := textStepType(node); i == 0 && !explicit {
			parsed.Step.Type = models.StepWarmup
		}
		steps = append(steps, parsed.Step)
	}
	return steps, nil
}

// buildTextChildren parses a repeat's children. Without explicit tokens the
// first child is the recovery and the second the effort.
func buildTextChildren(ctx context.Context, p Parser[models.TextStep], nodes []models.TextStep) ([]*models.ConcreteStep, error) {
	if len(nodes) == 0 {
		return nil, invalid("", "repeat with no steps")
	}
	children := make([]*models.ConcreteStep, 0, len(nodes))
	for i, node := range nodes {
		parsed, err := p.Parse(ctx, node)
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i+1, err)
		}
		if parsed.Group != nil {
			return nil, invalid(node.Text, "nested repeat")
		}
		if _, explicit := textStepType(node); !explicit {
			switch i {
			case 0:
				parsed.Step.Type = models.StepRest
			case 1:
				parsed.Step.Type = models.StepActive
			}
		}
		children = append(children, parsed.Step)
	}
	return children, nil
}

// BuildRecords assembles FIT records into a step tree. Records are emitted
// in order; a repeat record absorbs the already-emitted positions it spans
// and those positions leave the top level.
func BuildRecords(ctx context.Context, p Parser[models.StepRecord], records []models.StepRecord) ([]models.Step, error) {
	emitted := make([]models.Step, 0, len(records))
	absorbed := make([]bool, 0, len(records))

	for i, rec := range records {
		parsed, err := p.Parse(ctx, rec)
		if err != nil {
			return nil, fmt.Errorf("parsing step %d: %w", i+1, err)
		}
		g := parsed.Group
		if g == nil {
			emitted = append(emitted, parsed.Step)
			absorbed = append(absorbed, false)
			continue
		}

		if g.Start < 0 || g.Start > g.End || g.End >= len(emitted) {
			return nil, invalid(rec.String(), "repeat span [%d, %d] outside emitted steps [0, %d)", g.Start, g.End, len(emitted))
		}
		children := make([]*models.ConcreteStep, 0, g.End-g.Start+1)
		for j := g.Start; j <= g.End; j++ {
			c, ok := emitted[j].(*models.ConcreteStep)
			if !ok || absorbed[j] {
				return nil, invalid(rec.String(), "nested repeat at position %d", j)
			}
			children = append(children, c)
			absorbed[j] = true
		}
		emitted = append(emitted, models.NewRepeatStep(g.Repetitions, children))
		absorbed = append(absorbed, false)
	}

	steps := make([]models.Step, 0, len(emitted))
	for i, s := range emitted {
		if !absorbed[i] {
			steps = append(steps, s)
		}
	}
	return steps, nil
}

// FromText converts rendered steps with a fresh TextParser.
func FromText(ctx context.Context, power PowerSource, adjust models.PowerAdjust, nodes []models.TextStep) ([]models.Step, error) {
	return BuildText(ctx, NewTextParser(power, adjust), nodes)
}

// FromRecords converts FIT records with a RecordParser sized to the workout.
func FromRecords(ctx context.Context, power PowerSource, adjust models.PowerAdjust, perceivedEffort bool, records []models.StepRecord) ([]models.Step, error) {
	return BuildRecords(ctx, NewRecordParser(power, adjust, perceivedEffort, len(records)), records)
}
