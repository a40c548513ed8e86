package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"slices"
	"sort"

	"circinspect/internal/qml"
)

// Options tune a simulation run.
type Options struct {
	// Seed feeds finite-shot sampling. Equal seeds give equal samples.
	Seed uint64
	// MaxWires bounds the register, auxiliary measurement wires included.
	// Zero means unbounded.
	MaxWires int
}

var pauliX = Matrix2{{0, 1}, {1, 0}}

// Run applies ops to a fresh |0...0> register sized for dev and evaluates
// measurements. It keeps no state between calls.
//
// Mid-circuit measurements are deferred: each one copies its wire onto a
// fresh auxiliary wire, and conditioned operations become controlled on
// that wire. Results over the device wires are therefore exact.
func Run(ops []qml.Operation, measurements []qml.Measurement, dev qml.Device, opts Options) (*Result, error) {
	numWires := max(dev.Wires, 1)
	check := func(wires []int, what string) error {
		for _, w := range wires {
			if w < 0 || w >= numWires {
				return fmt.Errorf("%s uses wire %d, but the device has %d wires", what, w, numWires)
			}
		}
		return nil
	}

	aux := make(map[int]int)
	next := numWires
	for _, op := range ops {
		if err := check(op.AllWires(), op.Name); err != nil {
			return nil, err
		}
		if op.Kind == qml.KindMidMeasure {
			aux[op.MeasureID] = next
			next++
		}
	}
	for _, m := range measurements {
		if err := check(m.MeasuredWires(), string(m.Kind)); err != nil {
			return nil, err
		}
	}
	if opts.MaxWires > 0 && next > opts.MaxWires {
		return nil, fmt.Errorf("circuit needs %d wires, more than the limit of %d", next, opts.MaxWires)
	}

	sv := NewStateVector(next)
	for _, op := range ops {
		switch op.Kind {
		case qml.KindPlaceholder, qml.KindBarrier:
			continue
		case qml.KindMidMeasure:
			a, w := aux[op.MeasureID], op.Wires[0]
			sv.Apply1(pauliX, a, []control{{wire: w, value: true}})
			if op.Reset {
				sv.Apply1(pauliX, w, []control{{wire: a, value: true}})
			}
			continue
		}

		prims, err := decompose(op)
		if err != nil {
			return nil, err
		}
		if op.Condition != nil {
			a, ok := aux[op.Condition.MeasureID]
			if !ok {
				return nil, fmt.Errorf("%s is conditioned on an unknown measurement m%d", op.Name, op.Condition.MeasureID)
			}
			for i := range prims {
				prims[i].controls = append(slices.Clone(prims[i].controls), control{wire: a, value: !op.Condition.Negated})
			}
		}
		for _, p := range prims {
			sv.apply(p)
		}
	}

	r := &runner{
		sv:       sv,
		numWires: numWires,
		shots:    dev.Shots,
		deferred: len(aux) > 0,
		rng:      rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
	}
	res := &Result{}
	for _, m := range measurements {
		v, err := r.measure(m)
		if err != nil {
			return nil, err
		}
		res.Values = append(res.Values, v)
	}
	return res, nil
}

type runner struct {
	sv       *StateVector
	numWires int
	shots    int
	deferred bool
	rng      *rand.Rand
}

func (r *runner) allWires() []int {
	w := make([]int, r.numWires)
	for i := range w {
		w[i] = i
	}
	return w
}

// sample draws r.shots outcomes from a distribution.
func (r *runner) sample(probs []float64) []int {
	cdf := make([]float64, len(probs))
	total := 0.0
	for i, p := range probs {
		total += p
		cdf[i] = total
	}
	out := make([]int, r.shots)
	for i := range out {
		x := r.rng.Float64() * total
		out[i] = min(sort.SearchFloat64s(cdf, x), len(probs)-1)
	}
	return out
}

// diagonalize rotates a copy of the state into the eigenbasis of obs and
// returns it with the eigenvalue of each outcome.
func (r *runner) diagonalize(obs qml.Operation) (*StateVector, []float64, error) {
	if len(obs.Wires) != 1 {
		return nil, nil, fmt.Errorf("observable %s must act on one wire", obs.Name)
	}
	rot := r.sv.Clone()
	w := obs.Wires[0]
	var gates []Matrix2
	switch obs.Name {
	case "PauliZ":
	case "Identity":
		return rot, []float64{1, 1}, nil
	case "PauliX":
		h, _ := matrixFor("Hadamard", nil)
		gates = []Matrix2{h}
	case "PauliY":
		z, _ := matrixFor("PauliZ", nil)
		s, _ := matrixFor("S", nil)
		h, _ := matrixFor("Hadamard", nil)
		gates = []Matrix2{z, s, h}
	case "Hadamard":
		ry, _ := matrixFor("RY", []float64{-math.Pi / 4})
		gates = []Matrix2{ry}
	default:
		return nil, nil, fmt.Errorf("%s is not a supported observable", obs.Name)
	}
	for _, g := range gates {
		rot.Apply1(g, w, nil)
	}
	return rot, []float64{1, -1}, nil
}

func (r *runner) measure(m qml.Measurement) (Value, error) {
	v := Value{Kind: m.Kind}
	wires := m.Wires
	if len(wires) == 0 {
		wires = r.allWires()
	}

	switch m.Kind {
	case qml.Probs:
		probs := r.sv.Probabilities(wires)
		if r.shots > 0 {
			est := make([]float64, len(probs))
			for _, s := range r.sample(probs) {
				est[s] += 1 / float64(r.shots)
			}
			probs = est
		}
		v.Vector = probs
		return v, nil

	case qml.Expval, qml.Var:
		if m.Observable == nil {
			return v, fmt.Errorf("%s needs an observable", m.Kind)
		}
		rot, eig, err := r.diagonalize(*m.Observable)
		if err != nil {
			return v, err
		}
		probs := rot.Probabilities(m.Observable.Wires)
		if r.shots > 0 {
			est := make([]float64, len(probs))
			for _, s := range r.sample(probs) {
				est[s] += 1 / float64(r.shots)
			}
			probs = est
		}
		mean, sq := 0.0, 0.0
		for i, p := range probs {
			mean += p * eig[i]
			sq += p * eig[i] * eig[i]
		}
		v.Scalar = mean
		if m.Kind == qml.Var {
			v.Scalar = sq - mean*mean
		}
		return v, nil

	case qml.Sample, qml.Counts:
		if r.shots <= 0 {
			return v, fmt.Errorf("%s requires a device with shots", m.Kind)
		}
		var rows [][]int
		if m.Observable != nil {
			rot, eig, err := r.diagonalize(*m.Observable)
			if err != nil {
				return v, err
			}
			for _, s := range r.sample(rot.Probabilities(m.Observable.Wires)) {
				rows = append(rows, []int{int(eig[s])})
			}
		} else {
			for _, s := range r.sample(r.sv.Probabilities(wires)) {
				row := make([]int, len(wires))
				for i := range wires {
					row[i] = (s >> (len(wires) - 1 - i)) & 1
				}
				rows = append(rows, row)
			}
		}
		if m.Kind == qml.Sample {
			v.Samples = rows
		} else {
			v.Counts = countRows(rows, m.Observable != nil)
		}
		return v, nil

	case qml.State:
		if r.deferred {
			return v, fmt.Errorf("state() is not available for circuits with mid-circuit measurements")
		}
		v.State = slices.Clone(r.sv.Amplitudes)
		return v, nil
	}
	return v, fmt.Errorf("unsupported measurement %s", m.Kind)
}

func countRows(rows [][]int, eigen bool) []Count {
	counts := make(map[string]int)
	for _, row := range rows {
		key := ""
		if eigen {
			key = fmt.Sprintf("%d", row[0])
		} else {
			for _, b := range row {
				key += fmt.Sprintf("%d", b)
			}
		}
		counts[key]++
	}
	out := make([]Count, 0, len(counts))
	for k, n := range counts {
		out = append(out, Count{Key: k, N: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
