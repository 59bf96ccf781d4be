package models

import "fmt"

// Range is a closed [Min, Max] pair.
type Range[T any] struct {
	Min T
	Max T
}

// NewRange builds a range without any clamping.
func NewRange[T any](min, max T) Range[T] {
	return Range[T]{Min: min, Max: max}
}

// PaceRange is a pair of paces. The unbounded end of "> mm:ss" targets is
// the zero pace.
type PaceRange = Range[Quantity]

// PowerRange is a target power band in watts.
type PowerRange = Range[float64]

// NewPowerRange builds a power range with Min floored to 0.
func NewPowerRange(min, max float64) PowerRange {
	return PowerRange{Min: max0(min), Max: max}
}

// AdjustPower adds (low, high) component-wise, flooring Min to 0.
func AdjustPower(r PowerRange, low, high float64) PowerRange {
	return NewPowerRange(r.Min+low, r.Max+high)
}

// PowerAdjust is a fixed additive [low, high] offset applied to power ranges.
type PowerAdjust struct {
	Low  float64
	High float64
}

// Apply returns r shifted by the adjustment.
func (a PowerAdjust) Apply(r PowerRange) PowerRange {
	return AdjustPower(r, a.Low, a.High)
}

// FormatPowerRange renders a power range as "min-max W".
func FormatPowerRange(r PowerRange) string {
	return fmt.Sprintf("%.0f-%.0f W", r.Min, r.Max)
}

func max0(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
