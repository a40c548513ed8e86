package sim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circinspect/internal/qml"
)

func op(name string, wires ...int) qml.Operation {
	return qml.Operation{Name: name, Wires: wires, Token: qml.NoToken}
}

func rop(name string, angle float64, wires ...int) qml.Operation {
	return qml.Operation{Name: name, Params: []float64{angle}, Wires: wires, Token: qml.NoToken}
}

func probs(wires ...int) qml.Measurement {
	return qml.Measurement{Kind: qml.Probs, Wires: wires}
}

func expval(obs string, wire int) qml.Measurement {
	o := op(obs, wire)
	return qml.Measurement{Kind: qml.Expval, Observable: &o}
}

func dev(wires int) qml.Device {
	return qml.Device{Name: "default.qubit", Wires: wires}
}

func TestBellState(t *testing.T) {
	res, err := Run([]qml.Operation{op("Hadamard", 0), op("CNOT", 0, 1)}, []qml.Measurement{probs(0, 1)}, dev(2), Options{})
	require.NoError(t, err)
	assert.Equal(t, "[0.5, 0.0, 0.0, 0.5]", res.String())
	assert.Equal(t, "[0.5,0.0,0.0,0.5]", Normalize(res.String()))
}

func TestWireZeroIsMostSignificant(t *testing.T) {
	res, err := Run([]qml.Operation{op("PauliX", 0)}, []qml.Measurement{probs(0, 1)}, dev(2), Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 1, 0}, res.Values[0].Vector)
}

func TestExpvalAndVar(t *testing.T) {
	tests := []struct {
		name string
		ops  []qml.Operation
		obs  string
		want float64
	}{
		{"z on zero", nil, "PauliZ", 1},
		{"z after x", []qml.Operation{op("PauliX", 0)}, "PauliZ", -1},
		{"x on plus", []qml.Operation{op("Hadamard", 0)}, "PauliX", 1},
		{"y after rx", []qml.Operation{rop("RX", -math.Pi/2, 0)}, "PauliY", 1},
		{"hadamard on zero", nil, "Hadamard", 1 / math.Sqrt2},
		{"z after ry", []qml.Operation{rop("RY", math.Pi/3, 0)}, "PauliZ", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Run(tt.ops, []qml.Measurement{expval(tt.obs, 0)}, dev(1), Options{})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, res.Values[0].Scalar, 1e-9)
		})
	}

	o := op("PauliZ", 0)
	res, err := Run([]qml.Operation{op("Hadamard", 0)}, []qml.Measurement{{Kind: qml.Var, Observable: &o}}, dev(1), Options{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Values[0].Scalar, 1e-9)
}

func TestAdjointUndoes(t *testing.T) {
	ops := []qml.Operation{
		op("Hadamard", 0),
		rop("RX", 0.3, 1),
		op("QFT", 0, 1),
		{Name: "QFT", Wires: []int{0, 1}, Adjoint: true},
		{Name: "RX", Params: []float64{0.3}, Wires: []int{1}, Adjoint: true},
		op("Hadamard", 0),
	}
	res, err := Run(ops, []qml.Measurement{probs()}, dev(2), Options{})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{1, 0, 0, 0}, res.Values[0].Vector, 1e-9)
}

func TestCtrlAddsControls(t *testing.T) {
	ops := []qml.Operation{
		op("PauliX", 0),
		{Name: "PauliX", Wires: []int{2}, Controls: []int{0, 1}},
		{Name: "PauliX", Wires: []int{1}, Controls: []int{0}},
	}
	res, err := Run(ops, []qml.Measurement{probs()}, dev(3), Options{})
	require.NoError(t, err)
	// |110>: the first ctrl sees wire 1 unset.
	assert.InDelta(t, 1.0, res.Values[0].Vector[0b110], 1e-9)
}

func TestSwap(t *testing.T) {
	res, err := Run([]qml.Operation{op("PauliX", 0), op("SWAP", 0, 2)}, []qml.Measurement{probs()}, dev(3), Options{})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, res.Values[0].Vector[0b001], 1e-9)
}

func TestDeferredMeasurement(t *testing.T) {
	m := qml.Operation{Name: "MidMeasure", Kind: qml.KindMidMeasure, Wires: []int{0}, MeasureID: 0}
	cond := op("PauliX", 1)
	cond.Condition = &qml.Condition{MeasureID: 0}

	res, err := Run([]qml.Operation{op("Hadamard", 0), m, cond}, []qml.Measurement{probs(0, 1)}, dev(2), Options{})
	require.NoError(t, err)
	assert.Equal(t, "[0.5, 0.0, 0.0, 0.5]", res.String())

	t.Run("reset", func(t *testing.T) {
		reset := m
		reset.Reset = true
		res, err := Run([]qml.Operation{op("PauliX", 0), reset, cond}, []qml.Measurement{probs(0, 1)}, dev(2), Options{})
		require.NoError(t, err)
		assert.Equal(t, "[0.0, 1.0, 0.0, 0.0]", res.String())
	})

	t.Run("negated", func(t *testing.T) {
		neg := op("PauliX", 1)
		neg.Condition = &qml.Condition{MeasureID: 0, Negated: true}
		res, err := Run([]qml.Operation{m, neg}, []qml.Measurement{probs(0, 1)}, dev(2), Options{})
		require.NoError(t, err)
		assert.Equal(t, "[0.0, 1.0, 0.0, 0.0]", res.String())
	})

	t.Run("state unavailable", func(t *testing.T) {
		_, err := Run([]qml.Operation{m}, []qml.Measurement{{Kind: qml.State}}, dev(1), Options{})
		assert.Error(t, err)
	})
}

func TestShots(t *testing.T) {
	d := dev(1)
	d.Shots = 100
	ops := []qml.Operation{op("Hadamard", 0)}
	meas := []qml.Measurement{{Kind: qml.Counts}}

	a, err := Run(ops, meas, d, Options{Seed: 7})
	require.NoError(t, err)
	b, err := Run(ops, meas, d, Options{Seed: 7})
	require.NoError(t, err)
	assert.Equal(t, a.String(), b.String())

	total := 0
	for _, c := range a.Values[0].Counts {
		total += c.N
	}
	assert.Equal(t, 100, total)

	_, err = Run(ops, []qml.Measurement{{Kind: qml.Sample}}, dev(1), Options{})
	assert.Error(t, err)
}

func TestLimits(t *testing.T) {
	_, err := Run([]qml.Operation{op("Hadamard", 3)}, nil, dev(2), Options{})
	assert.Error(t, err)

	_, err = Run(nil, nil, dev(4), Options{MaxWires: 3})
	assert.Error(t, err)
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "1.0", FormatFloat(1))
	assert.Equal(t, "0.0", FormatFloat(-1e-12))
	assert.Equal(t, "0.70710678", FormatFloat(1/math.Sqrt2))

	r := &Result{Values: []Value{
		{Kind: qml.Expval, Scalar: 1},
		{Kind: qml.Counts, Counts: []Count{{"0", 3}, {"1", 2}}},
		{Kind: qml.State, State: []Complex{1, complex(0, -0.5)}},
	}}
	assert.Equal(t, "(1.0, {'0': 3, '1': 2}, [1+0j, 0-0.5j])", r.String())
	assert.Equal(t, "None", (&Result{}).String())
}
