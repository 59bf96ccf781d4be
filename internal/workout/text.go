package workout

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/claude/trainaspower/internal/models"
)

// Class tokens carried by rendered steps.
const (
	classWarmup   = "step-warmup"
	classCooldown = "step-cooldown"
	classActive   = "step-active"
	classRest     = "step-rest"
	classRecovery = "step-recovery"
	classStanding = "step-standing"
	classOpen     = "step-open"

	classPaceEasy      = "pace-EASY"
	classPaceRecovery  = "pace-RECOVERY"
	classPaceExtreme   = "pace-EXTREME"
	classPacePerceived = "pace-PERCEIVED_EFFORT"
	classPaceStanding  = "pace-STANDING"
)

// easyWidening widens EASY steps, whose pace band is narrow for the effort.
const easyWidening = 1.5

var (
	// paceRangeRe matches "[16:36 - 08:03 /mi]" and "[> 07:34 /mi]".
	paceRangeRe = regexp.MustCompile(`\[\s*(?:(>)\s*-?\s*|(\d{1,2}:\d{2})\s*-\s*)(\d{1,2}:\d{2})\s*/\s*(mi|km)\s*\]`)

	// durationPartRe matches one "N hours|minutes|seconds" component.
	durationPartRe = regexp.MustCompile(`(\d+) (hour|minute|second)s?\b`)

	// durationSepRe matches what may sit between two duration components.
	durationSepRe = regexp.MustCompile(`^[, ]*$`)

	// distanceRe matches "(6.0 mi)" or "(~3.2 km)".
	distanceRe = regexp.MustCompile(`\(~?\s*(\d+(?:\.\d+)?)\s*(mi|km|m)\)`)

	// repeatCountRe matches "Repeat the following 4 times".
	repeatCountRe = regexp.MustCompile(`(\d+) times?\b`)

	// openStepRe matches steps with no fixed end.
	openStepRe = regexp.MustCompile(`(?i)\b(until|run back)\b`)
)

// TextParser parses steps rendered on the workout web page.
type TextParser struct {
	power  PowerSource
	adjust models.PowerAdjust
}

// Compile-time check: TextParser is a Parser.
var _ Parser[models.TextStep] = (*TextParser)(nil)

// NewTextParser creates a parser resolving targets through power.
func NewTextParser(power PowerSource, adjust models.PowerAdjust) *TextParser {
	return &TextParser{power: power, adjust: adjust}
}

// Parse converts one rendered step, or returns a GroupMarker when the step
// is a repeat container.
func (p *TextParser) Parse(ctx context.Context, node models.TextStep) (Parsed, error) {
	text := normalizeSpace(node.Text)

	if len(node.Children) > 0 {
		m := repeatCountRe.FindStringSubmatch(text)
		if m == nil {
			return Parsed{}, invalid(text, "repeat without a repetition count")
		}
		n, _ := strconv.Atoi(m[1])
		if n < 1 {
			return Parsed{}, invalid(text, "repeat count %d", n)
		}
		return Parsed{Group: &GroupMarker{Repetitions: n, Children: node.Children}}, nil
	}

	step := &models.ConcreteStep{Description: text}
	step.Type, _ = textStepType(node)

	pace, err := ParsePaceRange(text)
	if err != nil {
		return Parsed{}, invalid(text, "%v", err)
	}
	step.PaceRange = pace

	length, err := textLength(node, text)
	if err != nil {
		return Parsed{}, err
	}
	step.Length = length

	power, err := p.textPower(ctx, node, step)
	if err != nil {
		return Parsed{}, err
	}
	step.PowerRange = p.adjust.Apply(power)
	return Parsed{Step: step}, nil
}

func (p *TextParser) textPower(ctx context.Context, node models.TextStep, step *models.ConcreteStep) (models.PowerRange, error) {
	if step.PaceRange != nil {
		power, err := p.power.ConvertPaceRange(ctx, *step.PaceRange)
		if err != nil {
			return models.PowerRange{}, err
		}
		if node.HasClass(classPaceEasy) {
			power = models.AdjustPower(power, -easyWidening, easyWidening)
		}
		return power, nil
	}

	switch {
	case node.HasClass(classPaceStanding), node.HasClass(classStanding):
		return standingRange, nil
	case node.HasClass(classPaceRecovery), node.HasClass(classRecovery):
		return cpRange(ctx, p.power, 0, 0.8)
	case node.HasClass(classPacePerceived):
		if node.HasClass(classWarmup) {
			return cpRange(ctx, p.power, 0.3, 0.8)
		}
		return cpRange(ctx, p.power, 0.55, 0.9)
	case node.HasClass(classPaceExtreme):
		if step.Length == nil {
			return models.PowerRange{}, invalid(step.Description, "assessment without duration or distance")
		}
		if step.Length.Dimension() == models.DimensionLength {
			return p.power.SuggestedRangeForDistance(ctx, *step.Length)
		}
		return p.power.SuggestedRangeForTime(ctx, *step.Length)
	case step.Length == nil:
		// Run-back step.
		return cpRange(ctx, p.power, 0.55, 0.9)
	}
	return models.PowerRange{}, invalid(step.Description, "no pace and no recognized effort class in %v", node.Classes)
}

// textStepType maps class tokens to a step type. The bool is false when the
// step carried no intensity token and ACTIVE was assumed.
func textStepType(node models.TextStep) (models.StepType, bool) {
	switch {
	case node.HasClass(classWarmup):
		return models.StepWarmup, true
	case node.HasClass(classCooldown):
		return models.StepCooldown, true
	case node.HasClass(classRest), node.HasClass(classRecovery), node.HasClass(classStanding):
		return models.StepRest, true
	case node.HasClass(classActive):
		return models.StepActive, true
	}
	return models.StepActive, false
}

func textLength(node models.TextStep, text string) (*models.Quantity, error) {
	if d, ok, err := ParseDuration(text); err != nil {
		return nil, invalid(text, "%v", err)
	} else if ok {
		return &d, nil
	}
	if d, ok, err := ParseDistance(text); err != nil {
		return nil, invalid(text, "%v", err)
	} else if ok {
		return &d, nil
	}
	if node.HasClass(classOpen) || openStepRe.MatchString(text) {
		return nil, nil
	}
	return nil, invalid(text, "no duration or distance")
}

// ParsePaceRange extracts a bracketed pace range. It returns nil when the
// text has no pace target; the "> mm:ss" form yields a zero-pace Min.
func ParsePaceRange(text string) (*models.PaceRange, error) {
	m := paceRangeRe.FindStringSubmatch(text)
	if m == nil {
		return nil, nil
	}
	unit, err := models.ParseUnit(m[4])
	if err != nil {
		return nil, err
	}

	maxSecs, err := ParseClock(m[3])
	if err != nil {
		return nil, err
	}
	minSecs := 0
	if m[1] == "" {
		if minSecs, err = ParseClock(m[2]); err != nil {
			return nil, err
		}
	}

	lo, err := models.PaceSeconds(float64(minSecs), unit)
	if err != nil {
		return nil, err
	}
	hi, err := models.PaceSeconds(float64(maxSecs), unit)
	if err != nil {
		return nil, err
	}
	r := models.NewRange(lo, hi)
	return &r, nil
}

// ParseClock parses "mm:ss" into seconds.
func ParseClock(s string) (int, error) {
	mins, secs, ok := strings.Cut(s, ":")
	if !ok {
		return 0, invalid(s, "clock value without a colon")
	}
	m, err := strconv.Atoi(mins)
	if err != nil {
		return 0, invalid(s, "minutes: %v", err)
	}
	sec, err := strconv.Atoi(secs)
	if err != nil || sec > 59 {
		return 0, invalid(s, "seconds out of range")
	}
	return m*60 + sec, nil
}

// FormatClock renders seconds as "mm:ss".
func FormatClock(seconds int) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

var durationUnitOrder = map[string]int{"hour": 0, "minute": 1, "second": 2}

// maxDurationPart bounds each number in a duration so the total cannot
// overflow.
const maxDurationPart = 1_000_000

// ParseDuration reads "H hours, M minutes, S seconds" (any ordered subset)
// as a time quantity in seconds. A number out of range or a zero total is an
// error.
func ParseDuration(text string) (models.Quantity, bool, error) {
	matches := durationPartRe.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return models.Quantity{}, false, nil
	}

	total := 0
	lastOrder := -1
	prevEnd := -1
	for _, m := range matches {
		if prevEnd >= 0 && !durationSepRe.MatchString(text[prevEnd:m[0]]) {
			break
		}
		unit := text[m[4]:m[5]]
		order := durationUnitOrder[unit]
		if order <= lastOrder {
			break
		}
		digits := text[m[2]:m[3]]
		n, err := strconv.Atoi(digits)
		if err != nil || n > maxDurationPart {
			return models.Quantity{}, false, fmt.Errorf("duration %s %ss out of range", digits, unit)
		}
		switch unit {
		case "hour":
			total += n * 3600
		case "minute":
			total += n * 60
		default:
			total += n
		}
		lastOrder = order
		prevEnd = m[1]
	}
	if total <= 0 {
		return models.Quantity{}, false, errors.New("zero duration")
	}
	return models.Q(float64(total), models.Second), true, nil
}

// ParseDistance reads a parenthesized "(~D mi|km|m)" distance.
func ParseDistance(text string) (models.Quantity, bool, error) {
	m := distanceRe.FindStringSubmatch(text)
	if m == nil {
		return models.Quantity{}, false, nil
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return models.Quantity{}, false, err
	}
	unit, err := models.ParseUnit(m[2])
	if err != nil {
		return models.Quantity{}, false, err
	}
	return models.Q(v, unit), true, nil
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
