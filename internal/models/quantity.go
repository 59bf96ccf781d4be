package models

import (
	"fmt"
	"math"
)

// Dimension is the physical dimension a unit measures.
type Dimension int

const (
	DimensionTime Dimension = iota + 1
	DimensionLength
	DimensionPower
	DimensionPace // time per length
)

func (d Dimension) String() string {
	switch d {
	case DimensionTime:
		return "time"
	case DimensionLength:
		return "length"
	case DimensionPower:
		return "power"
	case DimensionPace:
		return "time/length"
	default:
		return "unknown"
	}
}

// Unit is a named unit with its factor to the SI base of its dimension
// (s, m, W, s/m).
type Unit struct {
	Symbol    string
	Dimension Dimension
	Factor    float64
}

const metersPerMile = 1609.344

var (
	Second    = Unit{"s", DimensionTime, 1}
	Minute    = Unit{"min", DimensionTime, 60}
	Hour      = Unit{"h", DimensionTime, 3600}
	Meter     = Unit{"m", DimensionLength, 1}
	Kilometer = Unit{"km", DimensionLength, 1000}
	Mile      = Unit{"mi", DimensionLength, metersPerMile}
	Watt      = Unit{"W", DimensionPower, 1}

	SecondPerMeter     = Unit{"s/m", DimensionPace, 1}
	SecondPerKilometer = Unit{"s/km", DimensionPace, 1.0 / 1000}
	SecondPerMile      = Unit{"s/mi", DimensionPace, 1.0 / metersPerMile}
	MinutePerKilometer = Unit{"min/km", DimensionPace, 60.0 / 1000}
	MinutePerMile      = Unit{"min/mi", DimensionPace, 60.0 / metersPerMile}
)

var unitsBySymbol = map[string]Unit{}

func init() {
	for _, u := range []Unit{
		Second, Minute, Hour, Meter, Kilometer, Mile, Watt,
		SecondPerMeter, SecondPerKilometer, SecondPerMile, MinutePerKilometer, MinutePerMile,
	} {
		unitsBySymbol[u.Symbol] = u
	}
	// Long forms as they appear in rendered workout text.
	for alias, u := range map[string]Unit{
		"sec": Second, "second": Second, "seconds": Second,
		"minute": Minute, "minutes": Minute,
		"hour": Hour, "hours": Hour, "hr": Hour,
		"meter": Meter, "meters": Meter,
		"kilometer": Kilometer, "kilometers": Kilometer, "k": Kilometer,
		"mile": Mile, "miles": Mile,
		"watt": Watt, "watts": Watt,
	} {
		unitsBySymbol[alias] = u
	}
}

// UnitError reports an unrecognized unit token.
type UnitError struct {
	Symbol string
}

func (e *UnitError) Error() string {
	return fmt.Sprintf("unknown unit %q", e.Symbol)
}

// DimensionError reports an operation mixing incompatible dimensions.
type DimensionError struct {
	Op   string
	Have Dimension
	Want Dimension
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s: dimension %s is incompatible with %s", e.Op, e.Have, e.Want)
}

// ParseUnit resolves a unit symbol such as "mi", "min/km" or "seconds".
func ParseUnit(symbol string) (Unit, error) {
	u, ok := unitsBySymbol[symbol]
	if !ok {
		return Unit{}, &UnitError{Symbol: symbol}
	}
	return u, nil
}

// Quantity is a magnitude tagged with a unit.
type Quantity struct {
	Value float64
	Unit  Unit
}

// Q builds a quantity.
func Q(value float64, unit Unit) Quantity {
	return Quantity{Value: value, Unit: unit}
}

// Dimension returns the dimension of the quantity's unit.
func (q Quantity) Dimension() Dimension {
	return q.Unit.Dimension
}

// IsZero reports whether the magnitude is zero.
func (q Quantity) IsZero() bool {
	return q.Value == 0
}

func (q Quantity) base() float64 {
	return q.Value * q.Unit.Factor
}

// ConvertTo converts q into unit u.
func (q Quantity) ConvertTo(u Unit) (Quantity, error) {
	if q.Unit.Dimension != u.Dimension {
		return Quantity{}, &DimensionError{Op: "convert to " + u.Symbol, Have: q.Unit.Dimension, Want: u.Dimension}
	}
	return Quantity{Value: q.base() / u.Factor, Unit: u}, nil
}

// To converts q into the unit named by symbol.
func (q Quantity) To(symbol string) (Quantity, error) {
	u, err := ParseUnit(symbol)
	if err != nil {
		return Quantity{}, err
	}
	return q.ConvertTo(u)
}

// Add returns q+o expressed in q's unit.
func (q Quantity) Add(o Quantity) (Quantity, error) {
	if q.Unit.Dimension != o.Unit.Dimension {
		return Quantity{}, &DimensionError{Op: "add", Have: o.Unit.Dimension, Want: q.Unit.Dimension}
	}
	return Quantity{Value: q.Value + o.base()/q.Unit.Factor, Unit: q.Unit}, nil
}

// Sub returns q-o expressed in q's unit.
func (q Quantity) Sub(o Quantity) (Quantity, error) {
	if q.Unit.Dimension != o.Unit.Dimension {
		return Quantity{}, &DimensionError{Op: "subtract", Have: o.Unit.Dimension, Want: q.Unit.Dimension}
	}
	return Quantity{Value: q.Value - o.base()/q.Unit.Factor, Unit: q.Unit}, nil
}

// Seconds returns a time quantity in seconds.
func (q Quantity) Seconds() (float64, error) {
	s, err := q.ConvertTo(Second)
	if err != nil {
		return 0, err
	}
	return s.Value, nil
}

// Meters returns a length quantity in meters.
func (q Quantity) Meters() (float64, error) {
	m, err := q.ConvertTo(Meter)
	if err != nil {
		return 0, err
	}
	return m.Value, nil
}

// String formats the quantity with its unit symbol, e.g. "6.2 mi".
func (q Quantity) String() string {
	return fmt.Sprintf("%g %s", q.Value, q.Unit.Symbol)
}

// PaceFromSpeed converts a speed in m/s into a pace in s/m.
// A zero speed yields the zero pace used as the unbounded sentinel.
func PaceFromSpeed(mps float64) Quantity {
	if mps == 0 {
		return Q(0, SecondPerMeter)
	}
	return Q(1/mps, SecondPerMeter)
}

// PaceSeconds builds a pace of the given seconds per unit distance,
// expressed in the matching s/<unit> pace unit.
func PaceSeconds(seconds float64, per Unit) (Quantity, error) {
	if per.Dimension != DimensionLength {
		return Quantity{}, &DimensionError{Op: "pace per " + per.Symbol, Have: per.Dimension, Want: DimensionLength}
	}
	switch per.Symbol {
	case Mile.Symbol:
		return Q(seconds, SecondPerMile), nil
	case Kilometer.Symbol:
		return Q(seconds, SecondPerKilometer), nil
	default:
		return Q(seconds/per.Factor, SecondPerMeter), nil
	}
}

// Round rounds the magnitude to the nearest integer.
func (q Quantity) Round() Quantity {
	return Quantity{Value: math.Round(q.Value), Unit: q.Unit}
}
