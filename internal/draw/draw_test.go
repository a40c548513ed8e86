package draw

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circinspect/internal/qml"
)

func op(name string, wires ...int) qml.Operation {
	return qml.Operation{Name: name, Wires: wires, Token: qml.NoToken}
}

func TestLayoutColumns(t *testing.T) {
	ops := []qml.Operation{op("Hadamard", 0), op("Hadamard", 1), op("CNOT", 0, 1), op("Hadamard", 2), op("CNOT", 0, 2)}
	d := Layout(ops, nil, 0)

	require.Len(t, d.Columns, 3)
	assert.Equal(t, 3, d.NumWires)
	assert.Len(t, d.Columns[0], 3)
	assert.Equal(t, "CNOT", d.Columns[1][0].Name)
	// CNOT(0, 2) spans wire 1, which CNOT(0, 1) already occupies.
	assert.Equal(t, "CNOT", d.Columns[2][0].Name)
}

func TestLayoutConditionAfterMeasurement(t *testing.T) {
	mid := qml.Operation{Name: "MidMeasure", Kind: qml.KindMidMeasure, Wires: []int{0}, MeasureID: 0, Token: qml.NoToken}
	cond := op("PauliX", 1)
	cond.Condition = &qml.Condition{MeasureID: 0}
	d := Layout([]qml.Operation{op("Hadamard", 0), mid, cond}, nil, 2)

	require.Len(t, d.Columns, 3)
	assert.Equal(t, "Hadamard", d.Columns[0][0].Name)
	require.Len(t, d.Columns[1], 1)
	assert.Equal(t, qml.KindMidMeasure, d.Columns[1][0].Kind)
	require.Len(t, d.Columns[2], 1)
	assert.Equal(t, "PauliX", d.Columns[2][0].Name)

	// An unconditioned gate on the free wire still packs left.
	d = Layout([]qml.Operation{op("Hadamard", 0), mid, op("PauliX", 1)}, nil, 2)
	require.Len(t, d.Columns, 2)
	assert.Len(t, d.Columns[0], 2)
}

func TestRenderSingleGate(t *testing.T) {
	got := Draw([]qml.Operation{op("Hadamard", 0)}, []qml.Measurement{{Kind: qml.Probs, Wires: []int{0}}}, 1, DefaultOptions())
	want := strings.Join([]string{
		"     ┌───┐",
		"0: ──┤ H ├─┤  Probs",
		"     └───┘",
	}, "\n")
	assert.Equal(t, want, got)
}

func TestRenderControlled(t *testing.T) {
	got := Draw([]qml.Operation{op("CNOT", 0, 2)}, nil, 3, DefaultOptions())
	lines := strings.Split(got, "\n")

	assert.Contains(t, lines[0], "0: ──●")
	assert.Contains(t, got, "┼")
	assert.Contains(t, got, "⊕")
}

func TestLabels(t *testing.T) {
	opts := DefaultOptions()
	tests := []struct {
		op   qml.Operation
		want string
	}{
		{op("Hadamard", 0), "H"},
		{qml.Operation{Name: "RX", Params: []float64{math.Pi / 2}, Wires: []int{0}}, "RX(π/2)"},
		{qml.Operation{Name: "RY", Params: []float64{0.1234}, Wires: []int{0}}, "RY(0.12)"},
		{qml.Operation{Name: "S", Wires: []int{0}, Adjoint: true}, "S†"},
		{qml.Operation{Name: "PauliX", Wires: []int{0}, Condition: &qml.Condition{MeasureID: 1}}, "X|m1"},
		{qml.Operation{Name: "PauliX", Wires: []int{0}, Condition: &qml.Condition{MeasureID: 0, Negated: true}}, "X|¬m0"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, Label(tt.op, opts))
		})
	}
}

func TestPlaceholderSpansWires(t *testing.T) {
	ph := qml.Operation{Name: "layer", Kind: qml.KindPlaceholder, Wires: []int{0, 2}}
	got := Draw([]qml.Operation{ph}, nil, 3, DefaultOptions())
	lines := strings.Split(got, "\n")

	assert.Contains(t, lines[1], "layer")
	// Wire 1 sits inside the box.
	assert.Contains(t, lines[4], "┤")
	assert.Contains(t, lines[len(lines)-1], "└")
}

func TestMeasurementLabels(t *testing.T) {
	z := op("PauliZ", 1)
	got := Draw(nil, []qml.Measurement{{Kind: qml.Expval, Observable: &z}, {Kind: qml.Probs}}, 2, DefaultOptions())

	assert.Contains(t, got, "0: ──┤  Probs")
	assert.Contains(t, got, "1: ──┤  <Z> Probs")
}

func TestHighlight(t *testing.T) {
	ops := []qml.Operation{op("Hadamard", 0), op("PauliX", 0)}
	ops[1].Token = 4
	opts := DefaultOptions()
	opts.Highlight = func(o qml.Operation) bool { return o.Token == 4 }
	opts.Mark = func(s string) string { return "*" + s + "*" }

	got := Draw(ops, nil, 1, opts)
	assert.Contains(t, got, "*X*")
	assert.NotContains(t, got, "*H*")
}
