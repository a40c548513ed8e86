package qml

import (
	"fmt"
	"math"
	"slices"
)

// Transform names accepted by qml.transforms.
const (
	CancelInverses = "cancel_inverses"
	MergeRotations = "merge_rotations"
	Insert         = "insert"
)

// Transform is a tape-level rewrite applied to a circuit's operations
// after its quantum function has run.
type Transform struct {
	Name string

	// Insert arguments.
	Op       string
	Params   []float64
	Position string
}

// String renders the transform as its decorator would be written.
func (t Transform) String() string {
	if t.Name == Insert {
		return fmt.Sprintf("insert(%s, %v, position=%q)", t.Op, t.Params, t.Position)
	}
	return t.Name
}

// Apply rewrites ops. measurements are used by insert to find the
// circuit's wires.
func (t Transform) Apply(ops []Operation, measurements []Measurement) ([]Operation, error) {
	switch t.Name {
	case CancelInverses:
		return cancelInverses(ops), nil
	case MergeRotations:
		return mergeRotations(ops), nil
	case Insert:
		return t.insert(ops, measurements)
	}
	return nil, fmt.Errorf("unknown transform %q", t.Name)
}

// nextOnWires returns the index in ops[from:] (offset by from) of the
// first operation sharing a wire with wires, or -1.
func nextOnWires(ops []Operation, from int, wires []int) int {
	for i := from; i < len(ops); i++ {
		for _, w := range ops[i].AllWires() {
			if slices.Contains(wires, w) {
				return i
			}
		}
	}
	return -1
}

func sameWires(a, b Operation, symmetric bool) bool {
	if !slices.Equal(a.Controls, b.Controls) {
		return false
	}
	if !symmetric {
		return slices.Equal(a.Wires, b.Wires)
	}
	x, y := slices.Clone(a.Wires), slices.Clone(b.Wires)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}

func areInverses(a, b Operation) bool {
	if a.Kind != KindGate || b.Kind != KindGate || a.Condition != nil || b.Condition != nil {
		return false
	}
	if a.Name != b.Name {
		return false
	}
	spec, ok := Lookup(a.Name)
	if !ok || a.Name == "Barrier" || !sameWires(a, b, spec.Symmetric) {
		return false
	}
	if spec.SelfInverse {
		return true
	}
	return a.Adjoint != b.Adjoint && slices.Equal(a.Params, b.Params)
}

// cancelInverses removes adjacent pairs of mutually inverse operations on
// the same wires.
func cancelInverses(ops []Operation) []Operation {
	work := slices.Clone(ops)
	var out []Operation
	for len(work) > 0 {
		cur := work[0]
		next := nextOnWires(work, 1, cur.AllWires())
		if next >= 0 && areInverses(cur, work[next]) {
			work = slices.Delete(work, next, next+1)
			work = work[1:]
			continue
		}
		out = append(out, cur)
		work = work[1:]
	}
	return out
}

// mergeRotations combines consecutive rotations of the same kind on the
// same wires into one, dropping rotations whose merged angle is zero.
func mergeRotations(ops []Operation) []Operation {
	work := slices.Clone(ops)
	var out []Operation
	for len(work) > 0 {
		cur := work[0].Clone()
		spec, ok := Lookup(cur.Name)
		if !ok || !spec.Rotation || cur.Condition != nil {
			out = append(out, cur)
			work = work[1:]
			continue
		}
		angle := signedAngle(cur)
		for {
			next := nextOnWires(work, 1, cur.AllWires())
			if next < 0 {
				break
			}
			cand := work[next]
			if cand.Name != cur.Name || cand.Condition != nil || !sameWires(cur, cand, spec.Symmetric) {
				break
			}
			angle += signedAngle(cand)
			work = slices.Delete(work, next, next+1)
		}
		if math.Abs(angle) > 1e-8 {
			cur.Params = []float64{angle}
			cur.Adjoint = false
			out = append(out, cur)
		}
		work = work[1:]
	}
	return out
}

func signedAngle(o Operation) float64 {
	if len(o.Params) == 0 {
		return 0
	}
	if o.Adjoint {
		return -o.Params[0]
	}
	return o.Params[0]
}

// insert adds a single-wire gate after every gate ("all"), before the
// circuit ("start") or after it ("end").
func (t Transform) insert(ops []Operation, measurements []Measurement) ([]Operation, error) {
	spec, ok := Lookup(t.Op)
	if !ok || spec.Wires != 1 {
		return nil, fmt.Errorf("insert: %s is not a single-wire gate", t.Op)
	}
	if len(t.Params) != spec.Params {
		return nil, fmt.Errorf("insert: %s takes %d parameters, got %d", t.Op, spec.Params, len(t.Params))
	}
	make1 := func(w int) Operation {
		return Operation{Name: spec.Name, Wires: []int{w}, Params: slices.Clone(t.Params), Token: NoToken}
	}

	var circuitWires []int
	for _, o := range ops {
		circuitWires = append(circuitWires, o.AllWires()...)
	}
	for _, m := range measurements {
		circuitWires = append(circuitWires, m.MeasuredWires()...)
	}
	slices.Sort(circuitWires)
	circuitWires = slices.Compact(circuitWires)

	var out []Operation
	switch t.Position {
	case "start":
		for _, w := range circuitWires {
			out = append(out, make1(w))
		}
		out = append(out, ops...)
	case "end":
		out = append(out, ops...)
		for _, w := range circuitWires {
			out = append(out, make1(w))
		}
	case "all", "":
		for _, o := range ops {
			out = append(out, o)
			if o.Kind != KindGate {
				continue
			}
			for _, w := range o.AllWires() {
				out = append(out, make1(w))
			}
		}
	default:
		return nil, fmt.Errorf("insert: position must be one of all, start, end; got %q", t.Position)
	}
	return out, nil
}

// ApplyAll applies transforms in order.
func ApplyAll(transforms []Transform, ops []Operation, measurements []Measurement) ([]Operation, error) {
	var err error
	for _, t := range transforms {
		if ops, err = t.Apply(ops, measurements); err != nil {
			return nil, err
		}
	}
	return ops, nil
}
