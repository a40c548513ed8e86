// Package qml is the circuit object model shared by the interpreter, the
// simulator and the diagram renderer: operations, measurements, the
// operation queue recorded during one circuit execution, and devices.
package qml

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// OpKind distinguishes the operation variants that can sit in a queue.
type OpKind uint8

const (
	KindGate OpKind = iota
	KindMidMeasure
	KindBarrier
	// KindPlaceholder is an opaque box standing for a collapsed subroutine call.
	KindPlaceholder
)

// NoToken marks an entry that was not queued from a user source line.
const NoToken = -1

// Condition gates an operation on the outcome of a mid-circuit measurement.
type Condition struct {
	MeasureID int
	// Negated applies the operation when the outcome is 0 instead of 1.
	Negated bool
}

// Operation is one queued circuit operation.
type Operation struct {
	Name   string
	Wires  []int
	Params []float64

	// Adjoint marks the operation as the inverse of Name.
	Adjoint bool

	// Controls are extra control wires added by qml.ctrl.
	Controls []int

	Kind OpKind

	// MeasureID identifies the outcome of a mid-circuit measurement.
	MeasureID int
	// Reset puts the measured wire back to |0> after a mid-circuit measurement.
	Reset bool

	Condition *Condition

	// Token correlates the operation with the index of the monitor event
	// of the source line that queued it.
	Token int
}

// AllWires returns control wires followed by target wires.
func (o Operation) AllWires() []int {
	if len(o.Controls) == 0 {
		return o.Wires
	}
	return append(slices.Clone(o.Controls), o.Wires...)
}

// Clone returns a deep copy of the operation.
func (o Operation) Clone() Operation {
	c := o
	c.Wires = slices.Clone(o.Wires)
	c.Params = slices.Clone(o.Params)
	c.Controls = slices.Clone(o.Controls)
	if o.Condition != nil {
		cond := *o.Condition
		c.Condition = &cond
	}
	return c
}

// Inverse returns the adjoint of the operation. Self-inverse gates are
// returned unchanged.
func (o Operation) Inverse() Operation {
	c := o.Clone()
	if spec, ok := Lookup(o.Name); ok && spec.SelfInverse {
		return c
	}
	c.Adjoint = !c.Adjoint
	return c
}

// String renders the operation the way it would be written in a program.
func (o Operation) String() string {
	var s string
	switch o.Kind {
	case KindMidMeasure:
		s = fmt.Sprintf("MidMeasure(wires=%s, id=%d)", formatWires(o.Wires), o.MeasureID)
	case KindPlaceholder:
		s = fmt.Sprintf("%s(wires=%s)", o.Name, formatWires(o.Wires))
	default:
		args := make([]string, 0, len(o.Params)+1)
		for _, p := range o.Params {
			args = append(args, strconv.FormatFloat(p, 'g', -1, 64))
		}
		args = append(args, "wires="+formatWires(o.Wires))
		s = fmt.Sprintf("%s(%s)", o.Name, strings.Join(args, ", "))
	}
	if o.Adjoint {
		s = "Adjoint(" + s + ")"
	}
	if len(o.Controls) > 0 {
		s = fmt.Sprintf("C(%s, control_wires=%s)", s, formatWires(o.Controls))
	}
	if o.Condition != nil {
		s = fmt.Sprintf("Conditional(%s, m%d)", s, o.Condition.MeasureID)
	}
	return s
}

func formatWires(wires []int) string {
	parts := make([]string, len(wires))
	for i, w := range wires {
		parts[i] = strconv.Itoa(w)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

// MeasurementKind names a terminal measurement process.
type MeasurementKind string

const (
	Probs  MeasurementKind = "probs"
	Expval MeasurementKind = "expval"
	Var    MeasurementKind = "var"
	Sample MeasurementKind = "sample"
	Counts MeasurementKind = "counts"
	State  MeasurementKind = "state"
)

// Measurement is a measurement process queued by a circuit. Observable is
// set for expval/var and for sample/counts of an observable; otherwise
// Wires selects the measured wires (all wires when empty).
type Measurement struct {
	Kind       MeasurementKind
	Wires      []int
	Observable *Operation
	Token      int
}

// MeasuredWires returns the wires the measurement reads.
func (m Measurement) MeasuredWires() []int {
	if m.Observable != nil {
		return m.Observable.Wires
	}
	return m.Wires
}

// String renders the measurement the way it would be written in a program.
func (m Measurement) String() string {
	switch {
	case m.Observable != nil:
		return fmt.Sprintf("%s(%s)", m.Kind, m.Observable.String())
	case len(m.Wires) > 0:
		return fmt.Sprintf("%s(wires=%s)", m.Kind, formatWires(m.Wires))
	default:
		return string(m.Kind) + "(wires=[])"
	}
}

// Device describes the backend a circuit runs on.
type Device struct {
	Name  string `json:"name"`
	Wires int    `json:"wires"`
	Shots int    `json:"shots"`
}

// SupportedDevices lists the device names accepted by qml.device.
var SupportedDevices = []string{"default.qubit", "lightning.qubit", "default.mixed"}
