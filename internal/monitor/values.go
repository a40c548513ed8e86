package monitor

import (
	"fmt"
	"iter"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"circinspect/internal/qml"
	"circinspect/internal/sim"
)

// opValue is an operation instance returned by a gate constructor.
type opValue struct {
	op *qml.Operation
}

var (
	_ starlark.HasAttrs = opValue{}
	_ starlark.HasAttrs = measurementValue{}
	_ starlark.HasUnary = measureValue{}
)

func (v opValue) String() string        { return v.op.String() }
func (v opValue) Type() string          { return "Operation" }
func (v opValue) Freeze()               {}
func (v opValue) Truth() starlark.Bool  { return starlark.True }
func (v opValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Operation") }

func (v opValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name":
		return starlark.String(v.op.Name), nil
	case "wires":
		return intList(v.op.AllWires()), nil
	case "parameters", "data":
		return floatList(v.op.Params), nil
	case "num_params":
		return starlark.MakeInt(len(v.op.Params)), nil
	}
	return nil, nil
}

func (v opValue) AttrNames() []string { return []string{"data", "name", "num_params", "parameters", "wires"} }

// measurementValue is a terminal measurement process such as qml.probs().
type measurementValue struct {
	m *qml.Measurement
}

func (v measurementValue) String() string        { return v.m.String() }
func (v measurementValue) Type() string          { return "MeasurementProcess" }
func (v measurementValue) Freeze()               {}
func (v measurementValue) Truth() starlark.Bool  { return starlark.True }
func (v measurementValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: MeasurementProcess") }

func (v measurementValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "wires":
		return intList(v.m.MeasuredWires()), nil
	case "return_type":
		return starlark.String(v.m.Kind), nil
	}
	return nil, nil
}

func (v measurementValue) AttrNames() []string { return []string{"return_type", "wires"} }

// measureValue is the outcome of a mid-circuit measurement, usable as
// the condition of qml.cond. ~m negates it.
type measureValue struct {
	id      int
	negated bool
}

func (v measureValue) String() string {
	if v.negated {
		return fmt.Sprintf("MeasurementValue(not m%d)", v.id)
	}
	return fmt.Sprintf("MeasurementValue(m%d)", v.id)
}
func (v measureValue) Type() string          { return "MeasurementValue" }
func (v measureValue) Freeze()               {}
func (v measureValue) Truth() starlark.Bool  { return starlark.True }
func (v measureValue) Hash() (uint32, error) { return uint32(v.id), nil }

func (v measureValue) Unary(op syntax.Token) (starlark.Value, error) {
	if op == syntax.TILDE {
		return measureValue{id: v.id, negated: !v.negated}, nil
	}
	return nil, nil
}

func (v measureValue) condition() *qml.Condition {
	return &qml.Condition{MeasureID: v.id, Negated: v.negated}
}

type deviceValue struct {
	dev qml.Device
}

func (v deviceValue) String() string {
	return fmt.Sprintf("<%s device (wires=%d, shots=%d)>", v.dev.Name, v.dev.Wires, v.dev.Shots)
}
func (v deviceValue) Type() string          { return "Device" }
func (v deviceValue) Freeze()               {}
func (v deviceValue) Truth() starlark.Bool  { return starlark.True }
func (v deviceValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: Device") }

func (v deviceValue) Attr(name string) (starlark.Value, error) {
	switch name {
	case "name", "short_name":
		return starlark.String(v.dev.Name), nil
	case "wires":
		return intList(seq(v.dev.Wires)), nil
	case "shots":
		if v.dev.Shots == 0 {
			return starlark.None, nil
		}
		return starlark.MakeInt(v.dev.Shots), nil
	}
	return nil, nil
}

func (v deviceValue) AttrNames() []string { return []string{"name", "short_name", "shots", "wires"} }

// transformValue is a tape transform usable as a decorator on a circuit
// or on a quantum subroutine.
type transformValue struct {
	t qml.Transform
}

func (v transformValue) String() string        { return fmt.Sprintf("<transform: %s>", v.t.Name) }
func (v transformValue) Type() string          { return "transform" }
func (v transformValue) Freeze()               {}
func (v transformValue) Truth() starlark.Bool  { return starlark.True }
func (v transformValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: transform") }
func (v transformValue) Name() string          { return v.t.Name }

func (v transformValue) CallInternal(_ *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 || len(kwargs) > 0 {
		return nil, fmt.Errorf("TypeError: %s() takes exactly one function", v.t.Name)
	}
	switch target := args[0].(type) {
	case *Function:
		return target.withTransform(v.t), nil
	case *qnodeValue:
		return target.withTransform(v.t), nil
	}
	return nil, fmt.Errorf("TypeError: %s() cannot transform %s", v.t.Name, args[0].Type())
}

func intList(xs []int) *starlark.List {
	out := make([]starlark.Value, len(xs))
	for i, x := range xs {
		out[i] = starlark.MakeInt(x)
	}
	return starlark.NewList(out)
}

func floatList(xs []float64) *starlark.List {
	out := make([]starlark.Value, len(xs))
	for i, x := range xs {
		out[i] = starlark.Float(x)
	}
	return starlark.NewList(out)
}

func seq(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}

// amplitude is a complex state-vector entry.
type amplitude complex128

func (a amplitude) String() string        { return sim.FormatComplex(complex128(a)) }
func (a amplitude) Type() string          { return "complex" }
func (a amplitude) Freeze()               {}
func (a amplitude) Truth() starlark.Bool  { return a != 0 }
func (a amplitude) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: complex") }

// toValue converts a circuit result into the value the circuit call
// returns in the program.
func toValue(r *sim.Result) starlark.Value {
	if r == nil || len(r.Values) == 0 {
		return starlark.None
	}
	vals := make(starlark.Tuple, len(r.Values))
	for i, v := range r.Values {
		vals[i] = oneValue(v)
	}
	if len(vals) == 1 {
		return vals[0]
	}
	return vals
}

func oneValue(v sim.Value) starlark.Value {
	switch v.Kind {
	case qml.Probs:
		return floatList(v.Vector)
	case qml.Expval, qml.Var:
		return starlark.Float(v.Scalar)
	case qml.Sample:
		rows := make([]starlark.Value, len(v.Samples))
		for i, row := range v.Samples {
			if len(row) == 1 {
				rows[i] = starlark.MakeInt(row[0])
			} else {
				rows[i] = intList(row)
			}
		}
		return starlark.NewList(rows)
	case qml.Counts:
		d := starlark.NewDict(len(v.Counts))
		for _, c := range v.Counts {
			_ = d.SetKey(starlark.String(c.Key), starlark.MakeInt(c.N))
		}
		return d
	case qml.State:
		amps := make([]starlark.Value, len(v.State))
		for i, a := range v.State {
			amps[i] = amplitude(a)
		}
		return starlark.NewList(amps)
	}
	return starlark.None
}

// measurements collects the measurement processes a quantum function
// returned: one, or a tuple or list of them.
func measurements(v starlark.Value) ([]qml.Measurement, bool) {
	switch v := v.(type) {
	case measurementValue:
		return []qml.Measurement{*v.m}, true
	case starlark.Tuple:
		return measurementSeq(slices.Collect(starlarkValues(v)))
	case *starlark.List:
		return measurementSeq(slices.Collect(starlarkValues(v)))
	}
	return nil, false
}

func measurementSeq(vs []starlark.Value) ([]qml.Measurement, bool) {
	if len(vs) == 0 {
		return nil, false
	}
	out := make([]qml.Measurement, 0, len(vs))
	for _, v := range vs {
		mv, ok := v.(measurementValue)
		if !ok {
			return nil, false
		}
		out = append(out, *mv.m)
	}
	return out, true
}

func starlarkValues(xs starlark.Iterable) iter.Seq[starlark.Value] {
	return func(yield func(starlark.Value) bool) {
		it := xs.Iterate()
		defer it.Done()
		var x starlark.Value
		for it.Next(&x) {
			if !yield(x) {
				return
			}
		}
	}
}
