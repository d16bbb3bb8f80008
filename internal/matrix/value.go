package matrix

import (
	"math"
	"strconv"
	"strings"
)

type valueKind int

const (
	kindFloat valueKind = iota
	kindInt
	kindString
)

// Value is a single solver parameter value.
type Value struct {
	kind valueKind
	f    float64
	i    int64
	s    string
}

// Float returns a floating-point value.
func Float(f float64) Value { return Value{kind: kindFloat, f: f} }

// Int returns an integer value.
func Int(i int64) Value { return Value{kind: kindInt, i: i} }

// String returns a verbatim string value.
func String(s string) Value { return Value{kind: kindString, s: s} }

// Floats converts a list of floats to values.
func Floats(fs ...float64) []Value {
	values := make([]Value, len(fs))
	for i, f := range fs {
		values[i] = Float(f)
	}
	return values
}

// String returns the canonical form passed to the solver on the command line.
//
// Floats always carry a decimal point or an exponent, so 0 renders as "0.0"
// and the solver's parser never sees an integer where it expects a real.
func (v Value) String() string {
	switch v.kind {
	case kindInt:
		return strconv.FormatInt(v.i, 10)
	case kindString:
		return v.s
	default:
		return formatFloat(v.f)
	}
}

func formatFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	abs := math.Abs(f)
	if abs != 0 && (abs < 1e-4 || abs >= 1e16) {
		return strconv.FormatFloat(f, 'e', -1, 64)
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
