package sim

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"circinspect/internal/qml"
)

// Count is one bucket of a counts() result.
type Count struct {
	Key string
	N   int
}

// Value is the result of one measurement process.
type Value struct {
	Kind    qml.MeasurementKind
	Scalar  float64
	Vector  []float64
	Samples [][]int
	Counts  []Count
	State   []Complex
}

// Result holds one Value per terminal measurement, in order.
type Result struct {
	Values []Value
}

// String formats the result as a single value, or a tuple when the
// circuit returned several measurements.
func (r *Result) String() string {
	if r == nil || len(r.Values) == 0 {
		return "None"
	}
	if len(r.Values) == 1 {
		return r.Values[0].String()
	}
	parts := make([]string, len(r.Values))
	for i, v := range r.Values {
		parts[i] = v.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (v Value) String() string {
	switch v.Kind {
	case qml.Probs:
		return formatFloats(v.Vector)
	case qml.Expval, qml.Var:
		return FormatFloat(v.Scalar)
	case qml.Sample:
		if len(v.Samples) > 0 && len(v.Samples[0]) == 1 {
			flat := make([]string, len(v.Samples))
			for i, row := range v.Samples {
				flat[i] = strconv.Itoa(row[0])
			}
			return "[" + strings.Join(flat, ", ") + "]"
		}
		rows := make([]string, len(v.Samples))
		for i, row := range v.Samples {
			cells := make([]string, len(row))
			for j, b := range row {
				cells[j] = strconv.Itoa(b)
			}
			rows[i] = "[" + strings.Join(cells, ", ") + "]"
		}
		return "[" + strings.Join(rows, ", ") + "]"
	case qml.Counts:
		parts := make([]string, len(v.Counts))
		for i, c := range v.Counts {
			parts[i] = fmt.Sprintf("'%s': %d", c.Key, c.N)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case qml.State:
		parts := make([]string, len(v.State))
		for i, a := range v.State {
			parts[i] = FormatComplex(a)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	}
	return "None"
}

// Normalize deletes spaces and newlines so outputs compare and display
// compactly.
func Normalize(s string) string {
	return strings.NewReplacer(" ", "", "\n", "").Replace(s)
}

// FormatFloat prints x rounded to 8 decimals, always with a decimal point.
func FormatFloat(x float64) string {
	x = math.Round(x*1e8) / 1e8
	if x == 0 {
		x = 0
	}
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

func formatFloats(xs []float64) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = FormatFloat(x)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// FormatComplex renders an amplitude as Python prints a complex number.
func FormatComplex(c Complex) string {
	re := math.Round(real(c)*1e8) / 1e8
	im := math.Round(imag(c)*1e8) / 1e8
	if re == 0 {
		re = 0
	}
	sign := "+"
	if im < 0 {
		sign = "-"
		im = -im
	}
	return strconv.FormatFloat(re, 'f', -1, 64) + sign + strconv.FormatFloat(im, 'f', -1, 64) + "j"
}
