package qml

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// piExprRegex matches expressions like: pi, 2pi, 2*pi, pi/2, 3pi/4, 3*pi/4, -pi, -pi/2, -3*pi/4
var piExprRegex = regexp.MustCompile(`^(-?)(\d*\.?\d*)\s*\*?\s*pi(?:\s*/\s*(\d+\.?\d*))?$`)

// ParseParamExpr parses a single parameter expression, supporting plain
// numbers and pi expressions ("pi", "pi/2", "3*pi/4", "-2pi").
func ParseParamExpr(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	if val, err := strconv.ParseFloat(s, 64); err == nil {
		return val, true
	}

	s = strings.ToLower(s)
	matches := piExprRegex.FindStringSubmatch(s)
	if matches == nil {
		return 0, false
	}

	coeff := 1.0
	if matches[2] != "" {
		var err error
		if coeff, err = strconv.ParseFloat(matches[2], 64); err != nil {
			return 0, false
		}
	}
	result := coeff * math.Pi
	if matches[3] != "" {
		denom, err := strconv.ParseFloat(matches[3], 64)
		if err != nil || denom == 0 {
			return 0, false
		}
		result /= denom
	}
	if matches[1] == "-" {
		result = -result
	}
	return result, true
}

var piForms = []struct {
	value   float64
	display string
}{
	{2 * math.Pi, "2π"},
	{math.Pi, "π"},
	{math.Pi / 2, "π/2"},
	{math.Pi / 3, "π/3"},
	{math.Pi / 4, "π/4"},
	{math.Pi / 6, "π/6"},
	{math.Pi / 8, "π/8"},
	{3 * math.Pi / 4, "3π/4"},
	{3 * math.Pi / 2, "3π/2"},
	{2 * math.Pi / 3, "2π/3"},
}

// FormatParam formats a gate parameter for display. With showPi set,
// common pi fractions print symbolically; otherwise the value is printed
// with the given number of decimals.
func FormatParam(val float64, decimals int, showPi bool) string {
	if showPi {
		for _, pf := range piForms {
			if math.Abs(val-pf.value) < 1e-10 {
				return pf.display
			}
			if math.Abs(val+pf.value) < 1e-10 {
				return "-" + pf.display
			}
		}
	}
	return strconv.FormatFloat(val, 'f', decimals, 64)
}

// FormatQASMParam formats a parameter for OpenQASM output, using the
// "pi" spelling the QASM grammar accepts.
func FormatQASMParam(val float64) string {
	s := FormatParam(val, 6, true)
	if !strings.ContainsRune(s, 'π') {
		return fmt.Sprintf("%g", val)
	}
	s = strings.ReplaceAll(s, "π", "*pi")
	s = strings.TrimPrefix(s, "*")
	s = strings.ReplaceAll(s, "-*", "-")
	return s
}
