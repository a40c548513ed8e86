package qasm

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"circinspect/internal/qml"
	cierrors "circinspect/pkg/errors"
)

// paramPattern matches a numeric or pi-expression gate parameter.
const paramPattern = `-?(?:\d*\.?\d*\s*\*?\s*pi(?:\s*/\s*\d+\.?\d*)?|\d*\.?\d+(?:[eE][+\-]?\d+)?)`

var (
	regDeclRegex = regexp.MustCompile(`^(qreg|creg)\s+(\w+)\s*\[\s*(\d+)\s*\]$`)
	gateRegex    = regexp.MustCompile(`^(\w+)\s*(?:\(([^)]*)\))?\s+(.+)$`)
	argRegex     = regexp.MustCompile(`^(\w+)(?:\s*\[\s*(\d+)\s*\])?$`)
	measureRegex = regexp.MustCompile(`^measure\s+(\w+(?:\s*\[\s*\d+\s*\])?)\s*->\s*(\w+(?:\s*\[\s*\d+\s*\])?)$`)
	ifRegex      = regexp.MustCompile(`^if\s*\(\s*(\w+)(?:\s*\[\s*(\d+)\s*\])?\s*==\s*(\d+)\s*\)\s*(.+)$`)
	paramRegex   = regexp.MustCompile(`^` + paramPattern + `$`)
)

// Program is a parsed OpenQASM circuit. Measurements become mid-circuit
// measurements numbered from 0 in program order.
type Program struct {
	NumQubits int
	Ops       []qml.Operation
}

type register struct {
	offset, size int
}

type parser struct {
	prog  *Program
	qregs map[string]register
	cregs map[string]register
	// bits maps a flattened classical bit to the id of the last
	// measurement written to it.
	bits     map[int]int
	nextMeas int
	lineNo   int
}

type gateDef struct {
	name    string
	params  int
	wires   int
	adjoint bool
}

var gateDefs = map[string]gateDef{
	"h":     {name: "Hadamard", wires: 1},
	"x":     {name: "PauliX", wires: 1},
	"y":     {name: "PauliY", wires: 1},
	"z":     {name: "PauliZ", wires: 1},
	"id":    {name: "Identity", wires: 1},
	"s":     {name: "S", wires: 1},
	"sdg":   {name: "S", wires: 1, adjoint: true},
	"t":     {name: "T", wires: 1},
	"tdg":   {name: "T", wires: 1, adjoint: true},
	"sx":    {name: "SX", wires: 1},
	"sxdg":  {name: "SX", wires: 1, adjoint: true},
	"rx":    {name: "RX", params: 1, wires: 1},
	"ry":    {name: "RY", params: 1, wires: 1},
	"rz":    {name: "RZ", params: 1, wires: 1},
	"u1":    {name: "PhaseShift", params: 1, wires: 1},
	"p":     {name: "PhaseShift", params: 1, wires: 1},
	"u3":    {name: "U3", params: 3, wires: 1},
	"u":     {name: "U3", params: 3, wires: 1},
	"cx":    {name: "CNOT", wires: 2},
	"CX":    {name: "CNOT", wires: 2},
	"cy":    {name: "CY", wires: 2},
	"cz":    {name: "CZ", wires: 2},
	"swap":  {name: "SWAP", wires: 2},
	"crx":   {name: "CRX", params: 1, wires: 2},
	"cry":   {name: "CRY", params: 1, wires: 2},
	"crz":   {name: "CRZ", params: 1, wires: 2},
	"cu1":   {name: "ControlledPhaseShift", params: 1, wires: 2},
	"cp":    {name: "ControlledPhaseShift", params: 1, wires: 2},
	"ccx":   {name: "Toffoli", wires: 3},
	"cswap": {name: "CSWAP", wires: 3},
}

// Parse reads an OpenQASM 2.0 program.
func Parse(src string) (*Program, error) {
	p := &parser{
		prog:  &Program{},
		qregs: make(map[string]register),
		cregs: make(map[string]register),
		bits:  make(map[int]int),
	}

	for i, raw := range strings.Split(src, "\n") {
		p.lineNo = i + 1
		if idx := strings.Index(raw, "//"); idx >= 0 {
			raw = raw[:idx]
		}
		for _, stmt := range strings.Split(raw, ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if err := p.statement(stmt); err != nil {
				return nil, cierrors.Wrapf(err, "qasm line %d", p.lineNo)
			}
		}
	}
	return p.prog, nil
}

func (p *parser) statement(stmt string) error {
	if strings.HasPrefix(stmt, "OPENQASM") || strings.HasPrefix(stmt, "include") {
		return nil
	}

	if m := regDeclRegex.FindStringSubmatch(stmt); m != nil {
		size, _ := strconv.Atoi(m[3])
		if m[1] == "qreg" {
			p.qregs[m[2]] = register{offset: p.prog.NumQubits, size: size}
			p.prog.NumQubits += size
		} else {
			total := 0
			for _, r := range p.cregs {
				total += r.size
			}
			p.cregs[m[2]] = register{offset: total, size: size}
		}
		return nil
	}

	if m := measureRegex.FindStringSubmatch(stmt); m != nil {
		qs, err := resolve(p.qregs, m[1])
		if err != nil {
			return err
		}
		cs, err := resolve(p.cregs, m[2])
		if err != nil {
			return err
		}
		if len(qs) != len(cs) {
			return fmt.Errorf("measure maps %d qubits to %d bits", len(qs), len(cs))
		}
		for i, q := range qs {
			p.bits[cs[i]] = p.nextMeas
			p.measure(q, false)
		}
		return nil
	}

	if m := ifRegex.FindStringSubmatch(stmt); m != nil {
		reg, ok := p.cregs[m[1]]
		if !ok {
			return fmt.Errorf("unknown classical register %s", m[1])
		}
		bit := reg.offset
		switch {
		case m[2] != "":
			idx, _ := strconv.Atoi(m[2])
			bit += idx
		case reg.size != 1:
			return fmt.Errorf("conditions on the %d-bit register %s are not supported", reg.size, m[1])
		}
		id, ok := p.bits[bit]
		if !ok {
			return fmt.Errorf("condition on %s reads a bit that was never measured", m[1])
		}
		want, _ := strconv.Atoi(m[3])
		if want > 1 {
			return fmt.Errorf("condition value %d does not fit one bit", want)
		}
		start := len(p.prog.Ops)
		if err := p.statement(m[4]); err != nil {
			return err
		}
		for i := start; i < len(p.prog.Ops); i++ {
			p.prog.Ops[i].Condition = &qml.Condition{MeasureID: id, Negated: want == 0}
		}
		return nil
	}

	m := gateRegex.FindStringSubmatch(stmt)
	if m == nil {
		return fmt.Errorf("cannot parse %q", stmt)
	}
	name, paramText, argText := m[1], m[2], m[3]

	var args [][]int
	for _, a := range strings.Split(argText, ",") {
		qs, err := resolve(p.qregs, strings.TrimSpace(a))
		if err != nil {
			return err
		}
		args = append(args, qs)
	}

	switch name {
	case "barrier":
		var wires []int
		for _, a := range args {
			wires = append(wires, a...)
		}
		p.prog.Ops = append(p.prog.Ops, qml.Operation{Name: "Barrier", Kind: qml.KindBarrier, Wires: wires, Token: qml.NoToken})
		return nil
	case "reset":
		for _, q := range args[0] {
			p.measure(q, true)
		}
		return nil
	}

	var params []float64
	if strings.TrimSpace(paramText) != "" {
		for _, s := range strings.Split(paramText, ",") {
			v, err := parseParam(s)
			if err != nil {
				return err
			}
			params = append(params, v)
		}
	}

	if name == "u2" {
		if len(params) != 2 {
			return fmt.Errorf("u2 takes 2 parameters, got %d", len(params))
		}
		name, params = "u3", []float64{math.Pi / 2, params[0], params[1]}
	}
	if name == "ch" {
		return p.broadcast(args, 2, func(w []int) qml.Operation {
			return qml.Operation{Name: "Hadamard", Wires: w[1:], Controls: w[:1], Token: qml.NoToken}
		})
	}

	def, ok := gateDefs[name]
	if !ok {
		return fmt.Errorf("unsupported gate %s", name)
	}
	if len(params) != def.params {
		return fmt.Errorf("%s takes %d parameters, got %d", name, def.params, len(params))
	}
	return p.broadcast(args, def.wires, func(w []int) qml.Operation {
		return qml.Operation{Name: def.name, Params: params, Wires: w, Adjoint: def.adjoint, Token: qml.NoToken}
	})
}

// broadcast applies a gate once per index when whole registers are
// passed, as in "h q;".
func (p *parser) broadcast(args [][]int, wires int, mk func([]int) qml.Operation) error {
	if len(args) != wires {
		return fmt.Errorf("expected %d qubit arguments, got %d", wires, len(args))
	}
	n := 1
	for _, a := range args {
		if len(a) > 1 {
			if n > 1 && len(a) != n {
				return fmt.Errorf("register sizes do not match")
			}
			n = len(a)
		}
	}
	for i := range n {
		w := make([]int, len(args))
		for j, a := range args {
			if len(a) == 1 {
				w[j] = a[0]
			} else {
				w[j] = a[i]
			}
		}
		p.prog.Ops = append(p.prog.Ops, mk(w))
	}
	return nil
}

func (p *parser) measure(q int, reset bool) {
	p.prog.Ops = append(p.prog.Ops, qml.Operation{
		Name:      "MidMeasure",
		Kind:      qml.KindMidMeasure,
		Wires:     []int{q},
		MeasureID: p.nextMeas,
		Reset:     reset,
		Token:     qml.NoToken,
	})
	p.nextMeas++
}

// resolve turns "q[2]" or a bare register name into flat indices.
func resolve(regs map[string]register, arg string) ([]int, error) {
	m := argRegex.FindStringSubmatch(strings.TrimSpace(arg))
	if m == nil {
		return nil, fmt.Errorf("bad argument %q", arg)
	}
	reg, ok := regs[m[1]]
	if !ok {
		return nil, fmt.Errorf("unknown register %s", m[1])
	}
	if m[2] == "" {
		out := make([]int, reg.size)
		for i := range out {
			out[i] = reg.offset + i
		}
		return out, nil
	}
	idx, _ := strconv.Atoi(m[2])
	if idx >= reg.size {
		return nil, fmt.Errorf("index %d out of range for %s[%d]", idx, m[1], reg.size)
	}
	return []int{reg.offset + idx}, nil
}

func parseParam(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if !paramRegex.MatchString(s) {
		return 0, fmt.Errorf("unsupported parameter expression %q", s)
	}
	v, ok := qml.ParseParamExpr(s)
	if !ok {
		return 0, fmt.Errorf("unsupported parameter expression %q", s)
	}
	return v, nil
}
