package replay

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circinspect/internal/command"
	"circinspect/internal/draw"
	clog "circinspect/internal/log"
	"circinspect/internal/monitor"
	"circinspect/internal/sim"
)

const bell = `import pennylane as qml
dev = qml.device("default.qubit", wires=2)
@qml.qnode(dev)
def circuit():
    qml.Hadamard(wires=0)
    qml.CNOT(wires=[0, 1])
    return qml.probs(wires=[0, 1])
circuit()`

const subroutine = `import pennylane as qml
dev = qml.device("default.qubit", wires=2)
def entangle():
    qml.CNOT(wires=[0, 1])
@qml.qnode(dev)
def circuit():
    qml.Hadamard(wires=0)
    entangle()
    return qml.probs(wires=[0, 1])
circuit()`

func model(t *testing.T, src string) *command.Model {
	t.Helper()
	tr, err := monitor.Run(context.Background(), src, monitor.Options{MaxSteps: 100000}, nil)
	require.NoError(t, err)
	m, err := command.Build(tr, src, clog.Discard())
	require.NoError(t, err)
	return m
}

func TestRunPrefixes(t *testing.T) {
	m := model(t, bell)
	require.Len(t, m.Commands, 4)

	tests := []struct {
		name string
		cut  int
		want string
	}{
		{"empty prefix", 0, "[1.0,0.0,0.0,0.0]"},
		{"after the call line", 1, "[1.0,0.0,0.0,0.0]"},
		{"after hadamard", 2, "[0.5,0.0,0.5,0.0]"},
		{"after cnot", 3, "[0.5,0.0,0.0,0.5]"},
		{"everything", 4, "[0.5,0.0,0.0,0.5]"},
		{"terminal", -1, "[0.5,0.0,0.0,0.5]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, err := Run(m, tt.cut, Options{Draw: draw.DefaultOptions()})
			require.NoError(t, err)
			assert.Equal(t, tt.want, snap.Normalized())
		})
	}
}

func TestRunIsIdempotent(t *testing.T) {
	m := model(t, bell)
	opts := Options{Draw: draw.DefaultOptions(), Sim: sim.Options{Seed: 7}}

	first, err := Run(m, 2, opts)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			again, err := Run(m, 2, opts)
			assert.NoError(t, err)
			assert.Equal(t, first.Diagram, again.Diagram)
			assert.Equal(t, first.Normalized(), again.Normalized())
		}()
	}
	wg.Wait()
}

func TestDiagramPrefix(t *testing.T) {
	m := model(t, bell)

	partial := Diagram(m, 2, draw.DefaultOptions())
	assert.Contains(t, partial, "┤ H ├")
	assert.NotContains(t, partial, "⊕")
	assert.Contains(t, partial, "Probs")

	full := Diagram(m, -1, draw.DefaultOptions())
	assert.Contains(t, full, "⊕")
}

func TestRootChildrenDropsTrailingReturn(t *testing.T) {
	m := model(t, bell)

	children := RootChildren(m.Commands, -1)
	require.Len(t, children, 2)
	for _, c := range children {
		assert.Equal(t, command.Line, c.Type)
	}
	assert.Empty(t, RootChildren(nil, 3))
}

func TestSubroutinePlaceholder(t *testing.T) {
	m := model(t, subroutine)

	d := Diagram(m, -1, draw.DefaultOptions())
	assert.Contains(t, d, "entangle")
	assert.NotContains(t, d, "⊕")

	snap, err := Run(m, -1, Options{Draw: draw.DefaultOptions()})
	require.NoError(t, err)
	assert.Equal(t, "[0.5,0.0,0.0,0.5]", snap.Normalized())
}

func TestOpsSelectsQuantumCommands(t *testing.T) {
	m := model(t, bell)

	assert.Empty(t, Ops(m.Commands, 1))
	ops := Ops(m.Commands, -1)
	require.Len(t, ops, 2)
	assert.Equal(t, "Hadamard", ops[0].Name)
	assert.Equal(t, "CNOT", ops[1].Name)
}
