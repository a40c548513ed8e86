package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circinspect/internal/draw"
	clog "circinspect/internal/log"
	"circinspect/internal/monitor"
	"circinspect/internal/qml"
	perrors "circinspect/pkg/errors"
)

const subroutine = `import pennylane as qml
dev = qml.device("default.qubit", wires=1)
def f0():
    qml.Hadamard(wires=0)
@qml.qnode(dev)
def circuit():
    f0()
    return qml.probs(wires=0)
circuit()`

func build(t *testing.T, src string) *Model {
	t.Helper()
	tr, err := monitor.Run(context.Background(), src, monitor.Options{MaxSteps: 100000}, nil)
	require.NoError(t, err)
	m, err := Build(tr, src, clog.Discard())
	require.NoError(t, err)
	return m
}

type shape struct {
	fn     string
	line   int
	typ    LineType
	class  Class
	parent int
}

func shapes(cmds []Command) []shape {
	out := make([]shape, len(cmds))
	for i, c := range cmds {
		out[i] = shape{c.Function, c.Line, c.Type, c.Class, c.Parent}
	}
	return out
}

func TestBuildSubroutine(t *testing.T) {
	m := build(t, subroutine)

	assert.Equal(t, []shape{
		{"circuit", 5, Call, Classical, NoParent},
		{"circuit", 7, Line, Classical, 0},
		{"f0", 3, Call, Classical, 0},
		{"f0", 4, Return, Quantum, 1},
		{"circuit", 8, Return, Quantum, 0},
	}, shapes(m.Commands))

	for i, c := range m.Commands {
		assert.Equal(t, i, c.ID)
	}
	require.Len(t, m.Commands[3].Ops, 1)
	assert.Equal(t, "Hadamard", m.Commands[3].Ops[0].Name)
	assert.Equal(t, "return qml.probs(wires=0)", m.Commands[4].Text)
	require.Len(t, m.Terminal(), 1)
	assert.Equal(t, qml.Probs, m.Terminal()[0].Kind)
	assert.Equal(t, DeviceInfo{Name: "default.qubit", Wires: 1}, m.Device)
}

func TestFlatCircuitParents(t *testing.T) {
	src := `import pennylane as qml
dev = qml.device("default.qubit", wires=2, shots=100)
@qml.qnode(dev)
def circuit(theta):
    for w in range(2):
        qml.RY(theta, wires=w)
    x = theta * 2
    qml.CNOT(wires=[0, 1])
    return qml.expval(qml.PauliZ(1))
circuit(0.3)`
	m := build(t, src)

	require.NotEmpty(t, m.Commands)
	assert.Equal(t, NoParent, m.Commands[0].Parent)
	for i, c := range m.Commands {
		assert.Equal(t, i, c.ID)
		if i > 0 {
			assert.Equal(t, 0, c.Parent, "command %d", i)
		}
	}
	var quantum []int
	for _, c := range m.Commands {
		if c.IsQuantum() {
			quantum = append(quantum, c.Line)
		}
	}
	assert.Equal(t, []int{6, 6, 8, 9}, quantum)
	assert.Equal(t, 100, m.Device.Shots)
	assert.Equal(t, 2, m.Device.Wires)
	assert.Equal(t, []monitor.Argument{{Name: "theta", Value: "0.3"}}, m.Commands[0].Args)
}

func TestAdjointLinesAreRenamed(t *testing.T) {
	src := `import pennylane as qml
dev = qml.device("default.qubit", wires=1)
def layer():
    qml.S(wires=0)
@qml.qnode(dev)
def circuit():
    qml.adjoint(layer)()
    return qml.state()
circuit()`
	m := build(t, src)

	var adj *Command
	for i := range m.Commands {
		if m.Commands[i].Line == 7 {
			adj = &m.Commands[i]
			break
		}
	}
	require.NotNil(t, adj)
	assert.Equal(t, "adjoint of circuit", adj.Function)
	assert.True(t, adj.IsQuantum())
	require.Len(t, adj.Ops, 1)
	assert.True(t, adj.Ops[0].Adjoint)
}

func TestNoCircuit(t *testing.T) {
	src := "def f():\n    return 1\nf()"
	tr, err := monitor.Run(context.Background(), src, monitor.Options{}, nil)
	require.NoError(t, err)
	_, err = Build(tr, src, nil)
	var nc *perrors.NoCircuitError
	assert.ErrorAs(t, err, &nc)
}

func TestIndexParents(t *testing.T) {
	cmds := []Command{
		{Text: "@qml.qnode(dev)", Type: Call},
		{Text: "outer()", Type: Line},
		{Text: "def outer():", Type: Call},
		{Text: "inner()", Type: Line},
		{Text: "def inner():", Type: Call},
		{Text: "qml.X(0)", Type: Return},
		{Text: "return 1", Type: Return},
		{Text: "return qml.state()", Type: Return},
	}
	IndexParents(cmds)

	var parents []int
	for i, c := range cmds {
		assert.Equal(t, i, c.ID)
		assert.Less(t, c.Parent, c.ID)
		parents = append(parents, c.Parent)
	}
	assert.Equal(t, []int{NoParent, 0, 0, 1, 1, 3, 1, 0}, parents)
}

func TestExpandChildren(t *testing.T) {
	m := build(t, subroutine)

	children := ExpandChildren(m.Commands, 0, -1, m.Device.Wires, draw.DefaultOptions())
	require.Len(t, children, 1)
	c := children[0]
	assert.Equal(t, "f0", c.Name)
	assert.Equal(t, 1, c.ID)
	assert.Equal(t, 7, c.Line)
	assert.False(t, c.HasChildren)
	assert.Contains(t, c.Diagram, "┤ H ├")

	assert.Empty(t, ExpandChildren(m.Commands, 0, 2, m.Device.Wires, draw.DefaultOptions()), "the call is outside the cut")
}

func TestCircuitPlaceholders(t *testing.T) {
	m := build(t, subroutine)

	ops := Circuit(ChildrenOf(m.Commands, 0), m.Commands, m.Device.Wires)
	require.Len(t, ops, 1)
	assert.Equal(t, qml.KindPlaceholder, ops[0].Kind)
	assert.Equal(t, "f0", ops[0].Name)
	assert.Equal(t, []int{0}, ops[0].Wires)
}
