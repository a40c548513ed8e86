// Package qasm converts between queued operations and OpenQASM 2.0.
package qasm

import (
	"fmt"
	"math"
	"strings"

	"circinspect/internal/qml"
)

// single maps single-wire gates to their qelib1 names. The second name is
// the adjoint, empty when the adjoint is expressed by negating angles.
var single = map[string][2]string{
	"Hadamard":   {"h", "h"},
	"PauliX":     {"x", "x"},
	"PauliY":     {"y", "y"},
	"PauliZ":     {"z", "z"},
	"Identity":   {"id", "id"},
	"S":          {"s", "sdg"},
	"T":          {"t", "tdg"},
	"SX":         {"sx", "sxdg"},
	"RX":         {"rx", ""},
	"RY":         {"ry", ""},
	"RZ":         {"rz", ""},
	"PhaseShift": {"u1", ""},
}

var controlled = map[string]string{
	"CNOT":                 "cx",
	"CY":                   "cy",
	"CZ":                   "cz",
	"SWAP":                 "swap",
	"CRX":                  "crx",
	"CRY":                  "cry",
	"CRZ":                  "crz",
	"ControlledPhaseShift": "cu1",
	"Toffoli":              "ccx",
	"CSWAP":                "cswap",
}

type emitter struct {
	sb strings.Builder
}

func (e *emitter) line(format string, args ...any) {
	fmt.Fprintf(&e.sb, format, args...)
	e.sb.WriteString(";\n")
}

func qubits(wires []int) string {
	parts := make([]string, len(wires))
	for i, w := range wires {
		parts[i] = fmt.Sprintf("q[%d]", w)
	}
	return strings.Join(parts, ", ")
}

func params(ps []float64, negate bool) string {
	parts := make([]string, len(ps))
	for i, p := range ps {
		if negate {
			p = -p
		}
		parts[i] = qml.FormatQASMParam(p)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Emit writes ops and the wires read by measurements as an OpenQASM 2.0
// program over numWires qubits. Mid-circuit measurements get a one-bit
// register each, named m<id>, so conditions can refer to them.
func Emit(ops []qml.Operation, measurements []qml.Measurement, numWires int) (string, error) {
	for _, op := range ops {
		for _, w := range op.AllWires() {
			numWires = max(numWires, w+1)
		}
	}
	numWires = max(numWires, 1)

	e := &emitter{}
	e.sb.WriteString("OPENQASM 2.0;\n")
	e.sb.WriteString("include \"qelib1.inc\";\n\n")
	e.line("qreg q[%d]", numWires)
	e.line("creg c[%d]", numWires)
	for _, op := range ops {
		if op.Kind == qml.KindMidMeasure {
			e.line("creg m%d[1]", op.MeasureID)
		}
	}
	e.sb.WriteString("\n")

	for _, op := range ops {
		if err := e.op(op, numWires); err != nil {
			return "", err
		}
	}

	measured := make([]bool, numWires)
	for _, m := range measurements {
		if m.Observable != nil {
			if err := e.diagonalize(*m.Observable); err != nil {
				return "", err
			}
		}
		wires := m.MeasuredWires()
		if len(wires) == 0 {
			for w := range numWires {
				measured[w] = true
			}
		}
		for _, w := range wires {
			measured[w] = true
		}
	}
	for w, ok := range measured {
		if ok {
			e.line("measure q[%d] -> c[%d]", w, w)
		}
	}
	return e.sb.String(), nil
}

func (e *emitter) op(op qml.Operation, numWires int) error {
	switch op.Kind {
	case qml.KindPlaceholder:
		return fmt.Errorf("subroutine %s cannot be exported", op.Name)
	case qml.KindMidMeasure:
		e.line("measure q[%d] -> m%d[0]", op.Wires[0], op.MeasureID)
		if op.Reset {
			e.line("reset q[%d]", op.Wires[0])
		}
		return nil
	case qml.KindBarrier:
		wires := op.Wires
		if len(wires) == 0 {
			wires = make([]int, numWires)
			for i := range wires {
				wires[i] = i
			}
		}
		e.line("barrier %s", qubits(wires))
		return nil
	}

	prefix := ""
	if c := op.Condition; c != nil {
		want := 1
		if c.Negated {
			want = 0
		}
		prefix = fmt.Sprintf("if(m%d==%d) ", c.MeasureID, want)
	}

	if len(op.Controls) > 0 {
		return e.ctrl(op, prefix)
	}

	if names, ok := single[op.Name]; ok {
		name, negate := names[0], false
		if op.Adjoint {
			name = names[1]
			if name == "" {
				name, negate = names[0], true
			}
		}
		ps := ""
		if len(op.Params) > 0 {
			ps = params(op.Params, negate)
		}
		e.line("%s%s%s %s", prefix, name, ps, qubits(op.Wires))
		return nil
	}
	if name, ok := controlled[op.Name]; ok {
		ps := ""
		if len(op.Params) > 0 {
			ps = params(op.Params, op.Adjoint)
		}
		e.line("%s%s%s %s", prefix, name, ps, qubits(op.Wires))
		return nil
	}

	switch op.Name {
	case "Barrier":
		op.Kind = qml.KindBarrier
		return e.op(op, numWires)
	case "Rot":
		phi, theta, omega := op.Params[0], op.Params[1], op.Params[2]
		seq := [][2]any{{"rz", phi}, {"ry", theta}, {"rz", omega}}
		if op.Adjoint {
			seq = [][2]any{{"rz", -omega}, {"ry", -theta}, {"rz", -phi}}
		}
		for _, g := range seq {
			e.line("%s%s(%s) q[%d]", prefix, g[0], qml.FormatQASMParam(g[1].(float64)), op.Wires[0])
		}
		return nil
	case "U3":
		ps := op.Params
		if op.Adjoint {
			ps = []float64{-ps[0], -ps[2], -ps[1]}
		}
		e.line("%su3%s q[%d]", prefix, params(ps, false), op.Wires[0])
		return nil
	case "MultiControlledX":
		switch len(op.Wires) {
		case 2:
			e.line("%scx %s", prefix, qubits(op.Wires))
		case 3:
			e.line("%sccx %s", prefix, qubits(op.Wires))
		default:
			return fmt.Errorf("MultiControlledX on %d wires has no OpenQASM 2.0 form", len(op.Wires))
		}
		return nil
	case "QFT":
		return e.qft(op, prefix)
	}
	return fmt.Errorf("%s has no OpenQASM 2.0 form", op.Name)
}

// ctrl handles operations wrapped in qml.ctrl, which qelib1 can only
// express for a few base gates.
func (e *emitter) ctrl(op qml.Operation, prefix string) error {
	controls, targets := qml.SplitControls(op)
	base := op.Name
	if spec, ok := qml.Lookup(op.Name); ok {
		base = spec.Label
	}
	wires := append(controls, targets...)
	switch {
	case base == "X" && len(controls) == 1:
		e.line("%scx %s", prefix, qubits(wires))
	case base == "X" && len(controls) == 2:
		e.line("%sccx %s", prefix, qubits(wires))
	case base == "Z" && len(controls) == 1:
		e.line("%scz %s", prefix, qubits(wires))
	case base == "Y" && len(controls) == 1:
		e.line("%scy %s", prefix, qubits(wires))
	case base == "H" && len(controls) == 1:
		e.line("%sch %s", prefix, qubits(wires))
	case base == "SWAP" && len(controls) == 1:
		e.line("%scswap %s", prefix, qubits(wires))
	case op.Name == "RZ" && len(controls) == 1:
		e.line("%scrz%s %s", prefix, params(op.Params, op.Adjoint), qubits(wires))
	case op.Name == "PhaseShift" && len(controls) == 1:
		e.line("%scu1%s %s", prefix, params(op.Params, op.Adjoint), qubits(wires))
	default:
		return fmt.Errorf("controlled %s with %d controls has no OpenQASM 2.0 form", op.Name, len(controls))
	}
	return nil
}

func (e *emitter) qft(op qml.Operation, prefix string) error {
	w := op.Wires
	n := len(w)
	var lines []string
	for i := range n {
		lines = append(lines, fmt.Sprintf("h q[%d]", w[i]))
		for k, t := range w[i+1:] {
			angle := math.Pi / math.Pow(2, float64(k+1))
			lines = append(lines, fmt.Sprintf("cu1(%s) q[%d], q[%d]", qml.FormatQASMParam(angle), t, w[i]))
		}
	}
	for i := range n / 2 {
		lines = append(lines, fmt.Sprintf("swap q[%d], q[%d]", w[i], w[n-1-i]))
	}
	if op.Adjoint {
		// Every gate above is self-inverse except cu1, whose angle flips.
		for i, j := 0, len(lines)-1; i < j; i, j = i+1, j-1 {
			lines[i], lines[j] = lines[j], lines[i]
		}
		for i, l := range lines {
			if strings.HasPrefix(l, "cu1(") {
				lines[i] = "cu1(-" + strings.TrimPrefix(l, "cu1(")
			}
		}
	}
	for _, l := range lines {
		e.line("%s%s", prefix, l)
	}
	return nil
}

func (e *emitter) diagonalize(obs qml.Operation) error {
	w := obs.Wires[0]
	switch obs.Name {
	case "PauliZ", "Identity":
	case "PauliX":
		e.line("h q[%d]", w)
	case "PauliY":
		e.line("sdg q[%d]", w)
		e.line("h q[%d]", w)
	case "Hadamard":
		e.line("ry(-pi/4) q[%d]", w)
	default:
		return fmt.Errorf("observable %s has no OpenQASM 2.0 form", obs.Name)
	}
	return nil
}
