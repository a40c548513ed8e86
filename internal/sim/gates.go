package sim

import (
	"fmt"
	"math"
	"slices"

	"circinspect/internal/qml"
)

type control struct {
	wire  int
	value bool
}

// primitive is a single-target unitary or a swap, both optionally
// controlled.
type primitive struct {
	u        Matrix2
	swap     bool
	wires    []int
	controls []control
}

func (p primitive) dagger() primitive {
	if !p.swap {
		p.u = p.u.Dagger()
	}
	return p
}

// baseGate maps controlled gates to the single-qubit gate they control.
var baseGate = map[string]string{
	"CNOT":                 "PauliX",
	"Toffoli":              "PauliX",
	"MultiControlledX":     "PauliX",
	"CZ":                   "PauliZ",
	"CY":                   "PauliY",
	"CRX":                  "RX",
	"CRY":                  "RY",
	"CRZ":                  "RZ",
	"ControlledPhaseShift": "PhaseShift",
}

func param(params []float64, i int) float64 {
	if i < len(params) {
		return params[i]
	}
	return 0
}

// matrixFor returns the unitary of a single-qubit gate.
func matrixFor(name string, params []float64) (Matrix2, error) {
	switch name {
	case "Hadamard":
		return Matrix2{{invSqrt2, invSqrt2}, {invSqrt2, -invSqrt2}}, nil
	case "PauliX":
		return Matrix2{{0, 1}, {1, 0}}, nil
	case "PauliY":
		return Matrix2{{0, -1i}, {1i, 0}}, nil
	case "PauliZ":
		return Matrix2{{1, 0}, {0, -1}}, nil
	case "Identity":
		return Matrix2{{1, 0}, {0, 1}}, nil
	case "S":
		return Matrix2{{1, 0}, {0, 1i}}, nil
	case "T":
		return Matrix2{{1, 0}, {0, phase(math.Pi / 4)}}, nil
	case "SX":
		return Matrix2{{complex(0.5, 0.5), complex(0.5, -0.5)}, {complex(0.5, -0.5), complex(0.5, 0.5)}}, nil
	case "RX":
		c, s := math.Cos(param(params, 0)/2), math.Sin(param(params, 0)/2)
		return Matrix2{{complex(c, 0), complex(0, -s)}, {complex(0, -s), complex(c, 0)}}, nil
	case "RY":
		c, s := math.Cos(param(params, 0)/2), math.Sin(param(params, 0)/2)
		return Matrix2{{complex(c, 0), complex(-s, 0)}, {complex(s, 0), complex(c, 0)}}, nil
	case "RZ":
		t := param(params, 0)
		return Matrix2{{phase(-t / 2), 0}, {0, phase(t / 2)}}, nil
	case "PhaseShift":
		return Matrix2{{1, 0}, {0, phase(param(params, 0))}}, nil
	case "Rot":
		phi, theta, omega := param(params, 0), param(params, 1), param(params, 2)
		rz := func(t float64) Matrix2 { return Matrix2{{phase(-t / 2), 0}, {0, phase(t / 2)}} }
		ry, _ := matrixFor("RY", []float64{theta})
		return rz(omega).Mul(ry).Mul(rz(phi)), nil
	case "U3":
		theta, phi, delta := param(params, 0), param(params, 1), param(params, 2)
		c, s := math.Cos(theta/2), math.Sin(theta/2)
		return Matrix2{
			{complex(c, 0), -phase(delta) * complex(s, 0)},
			{phase(phi) * complex(s, 0), phase(phi+delta) * complex(c, 0)},
		}, nil
	}
	return Matrix2{}, fmt.Errorf("unsupported operation %s", name)
}

// decompose lowers an operation to primitives. Conditions are handled by
// the caller.
func decompose(op qml.Operation) ([]primitive, error) {
	if op.Kind == qml.KindBarrier || op.Name == "Barrier" || op.Name == "Identity" {
		return nil, nil
	}
	extra := make([]control, len(op.Controls))
	for i, w := range op.Controls {
		extra[i] = control{wire: w, value: true}
	}

	var prims []primitive
	switch op.Name {
	case "SWAP", "CSWAP":
		want := 2
		if op.Name == "CSWAP" {
			want = 3
		}
		if len(op.Wires) != want {
			return nil, fmt.Errorf("%s needs %d wires, got %d", op.Name, want, len(op.Wires))
		}
		ctrls := extra
		if op.Name == "CSWAP" {
			ctrls = append(ctrls, control{wire: op.Wires[0], value: true})
		}
		n := len(op.Wires)
		prims = []primitive{{swap: true, wires: []int{op.Wires[n-2], op.Wires[n-1]}, controls: ctrls}}
	case "QFT":
		prims = qftPrimitives(op.Wires, extra)
	default:
		controls, targets := qml.SplitControls(op)
		if len(targets) != 1 {
			return nil, fmt.Errorf("%s acts on %d target wires, expected 1", op.Name, len(targets))
		}
		name := op.Name
		if b, ok := baseGate[name]; ok {
			name = b
		}
		u, err := matrixFor(name, op.Params)
		if err != nil {
			return nil, err
		}
		ctrls := make([]control, len(controls))
		for i, w := range controls {
			ctrls[i] = control{wire: w, value: true}
		}
		prims = []primitive{{u: u, wires: targets, controls: ctrls}}
	}

	if op.Adjoint {
		slices.Reverse(prims)
		for i := range prims {
			prims[i] = prims[i].dagger()
		}
	}
	return prims, nil
}

// qftPrimitives is the textbook QFT: Hadamards and controlled phases,
// then a wire reversal.
func qftPrimitives(wires []int, extra []control) []primitive {
	h, _ := matrixFor("Hadamard", nil)
	var prims []primitive
	for i, w := range wires {
		prims = append(prims, primitive{u: h, wires: []int{w}, controls: extra})
		for shift, t := range wires[i+1:] {
			u, _ := matrixFor("PhaseShift", []float64{math.Pi / math.Pow(2, float64(shift+1))})
			ctrls := append(slices.Clone(extra), control{wire: t, value: true})
			prims = append(prims, primitive{u: u, wires: []int{w}, controls: ctrls})
		}
	}
	n := len(wires)
	for i := range n / 2 {
		prims = append(prims, primitive{swap: true, wires: []int{wires[i], wires[n-1-i]}, controls: extra})
	}
	return prims
}

func (s *StateVector) apply(p primitive) {
	if p.swap {
		s.ApplySwap(p.wires[0], p.wires[1], p.controls)
		return
	}
	s.Apply1(p.u, p.wires[0], p.controls)
}
