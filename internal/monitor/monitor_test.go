package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circinspect/internal/qml"
	perrors "circinspect/pkg/errors"
)

const bell = `import pennylane as qml
dev = qml.device("default.qubit", wires=2)
@qml.qnode(dev)
def circuit():
    qml.Hadamard(wires=0)
    qml.CNOT(wires=[0, 1])
    return qml.probs(wires=[0, 1])
circuit()`

func run(t *testing.T, src string) *Trace {
	t.Helper()
	trace, err := Run(context.Background(), src, Options{MaxSteps: 100000, MaxCallDepth: 50, MaxWires: 10, Seed: 1}, nil)
	require.NoError(t, err)
	return trace
}

type step struct {
	fn   string
	line int
	kind Kind
}

func steps(tr *Trace) []step {
	out := make([]step, len(tr.Events))
	for i, ev := range tr.Events {
		out[i] = step{ev.Function, ev.Line, ev.Kind}
	}
	return out
}

func TestRunRecordsEvents(t *testing.T) {
	var seen int
	trace, err := Run(context.Background(), bell, Options{}, func(i int, ev Event) {
		assert.Equal(t, seen, i)
		seen++
	})
	require.NoError(t, err)
	assert.Equal(t, len(trace.Events), seen)

	assert.Equal(t, []step{
		{ModuleFunction, 1, KindLine},
		{ModuleFunction, 2, KindLine},
		{ModuleFunction, 2, KindDevice},
		{ModuleFunction, 3, KindLine},
		{ModuleFunction, 8, KindLine},
		{"circuit", 3, KindCall},
		{"circuit", 5, KindLine},
		{"circuit", 6, KindLine},
		{"circuit", 7, KindLine},
		{"circuit", 7, KindReturn},
		{"circuit", 8, KindQueue},
	}, steps(trace))

	assert.Equal(t, OriginUser, trace.Events[0].Origin)
	assert.Equal(t, OriginLibrary, trace.Events[2].Origin)
	assert.Equal(t, qml.Device{Name: "default.qubit", Wires: 2}, *trace.Events[2].Device)

	run := trace.FirstRun()
	require.NotNil(t, run)
	assert.Equal(t, 1, trace.Runs())
	assert.Equal(t, "[0.5, 0.0, 0.0, 0.5]", run.Result.String())

	q := trace.Queue()
	require.Len(t, q.Entries, 3)
	assert.Equal(t, 6, q.Entries[0].Token())
	assert.Equal(t, 7, q.Entries[1].Token())
	assert.Equal(t, 8, q.Entries[2].Token())
}

func TestLoopHeaderEvents(t *testing.T) {
	trace := run(t, "total = 0\nfor i in range(2):\n    total += i\nprint(total)")
	var lines []int
	for _, ev := range trace.Events {
		lines = append(lines, ev.Line)
	}
	assert.Equal(t, []int{1, 2, 3, 2, 3, 2, 4}, lines)
	assert.Equal(t, "1\n", trace.Stdout)
}

func TestWhileBreakContinue(t *testing.T) {
	src := `n = 0
out = []
while True:
    n += 1
    if n == 2:
        continue
    elif n > 3:
        break
    out.append(n)
print(out)`
	trace := run(t, src)
	assert.Equal(t, "[1, 3]\n", trace.Stdout)
}

func TestFunctionsAndArguments(t *testing.T) {
	src := `def add(a, b=2, *rest, **kw):
    return a + b + len(rest) + len(kw)
def outer(x):
    def inner(y):
        return x * y
    return inner(3)
a, b = add(1), add(1, 1, 9, k=0)
print(a, b, outer(2))`
	trace := run(t, src)
	assert.Equal(t, "3 4 6\n", trace.Stdout)

	for _, ev := range trace.Events {
		if ev.Kind == KindCall && ev.Function == "add" {
			assert.Equal(t, "a", ev.Args[0].Name)
			assert.Equal(t, "1", ev.Args[0].Value)
			break
		}
	}
}

func TestGlobalAndIndexAssignment(t *testing.T) {
	src := `count = 0
d = {}
xs = [0, 0]
def bump():
    global count
    count += 1
bump()
bump()
d["k"] = count
xs[-1] = 5
print(d, xs)`
	trace := run(t, src)
	assert.Equal(t, "{\"k\": 2} [0, 5]\n", trace.Stdout)
}

func TestProgramErrorReportsInnermostLine(t *testing.T) {
	src := `def f():
    x = 1
    return missing + x
f()`
	_, err := Run(context.Background(), src, Options{}, nil)
	var pe *perrors.ProgramError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 3, pe.Line)
	assert.Equal(t, "NameError: name 'missing' is not defined", pe.Message)
}

func TestZeroDivision(t *testing.T) {
	tests := []struct {
		expr string
		want string
	}{
		{"1 / 0", "ZeroDivisionError: division by zero"},
		{"1.5 / 0", "ZeroDivisionError: division by zero"},
		{"7 // 0", "ZeroDivisionError: integer division or modulo by zero"},
		{"7 % 0", "ZeroDivisionError: integer modulo by zero"},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			_, err := Run(context.Background(), "x = 1\ny = "+tt.expr, Options{}, nil)
			var pe *perrors.ProgramError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, 2, pe.Line)
			assert.Equal(t, tt.want, pe.Message)
		})
	}
}

func TestSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"unsupported statement", "x = 1\nclass A:\n    pass", 2},
		{"missing body", "if True:\nx = 1", 1},
		{"bad expression", "x = 1\ny = (", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Run(context.Background(), tt.src, Options{}, nil)
			var pe *perrors.ProgramError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.line, pe.Line)
			assert.Contains(t, pe.Message, "Error")
		})
	}
}

func TestUnknownModule(t *testing.T) {
	_, err := Run(context.Background(), "import scipy", Options{}, nil)
	var pe *perrors.ProgramError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, "ModuleNotFoundError: No module named 'scipy'", pe.Message)
	assert.Equal(t, 1, pe.Line)
}

func TestLimits(t *testing.T) {
	t.Run("steps", func(t *testing.T) {
		_, err := Run(context.Background(), "while True:\n    x = 1", Options{MaxSteps: 100}, nil)
		var pe *perrors.ProgramError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Message, "step limit")
	})

	t.Run("recursion", func(t *testing.T) {
		_, err := Run(context.Background(), "def f(n):\n    return f(n + 1)\nf(0)", Options{MaxCallDepth: 20}, nil)
		var pe *perrors.ProgramError
		require.ErrorAs(t, err, &pe)
		assert.Contains(t, pe.Message, "RecursionError")
	})

	t.Run("deadline", func(t *testing.T) {
		ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
		defer cancel()
		<-ctx.Done()
		_, err := Run(ctx, "while True:\n    x = 1", Options{}, nil)
		var te *perrors.TimeoutError
		require.ErrorAs(t, err, &te)
	})

	t.Run("wires", func(t *testing.T) {
		_, err := Run(context.Background(), "import pennylane as qml\ndev = qml.device('default.qubit', wires=30)", Options{MaxWires: 20}, nil)
		var pe *perrors.ProgramError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, 2, pe.Line)
	})
}

func TestWrappersRestampToCallSite(t *testing.T) {
	src := `import pennylane as qml
dev = qml.device("default.qubit", wires=2)
def layer(theta):
    qml.RX(theta, wires=0)
    qml.S(wires=1)
@qml.qnode(dev)
def circuit():
    layer(0.5)
    qml.adjoint(layer)(0.5)
    qml.ctrl(qml.PauliX, control=0)(wires=1)
    return qml.expval(qml.PauliZ(0))
circuit()`
	trace := run(t, src)
	q := trace.Queue()
	require.NotNil(t, q)

	byToken := q.ByToken()
	lineOf := func(token int) int { return trace.Events[token].Line }
	var names []string
	for _, e := range q.Entries {
		if e.Op != nil {
			names = append(names, e.Op.String())
		}
	}
	assert.Equal(t, []string{
		"RX(0.5, wires=[0])",
		"S(wires=[1])",
		"Adjoint(S(wires=[1]))",
		"Adjoint(RX(0.5, wires=[0]))",
		"C(PauliX(wires=[1]), control_wires=[0])",
	}, names)

	for token, entries := range byToken {
		switch lineOf(token) {
		case 4, 5:
			assert.Len(t, entries, 1)
		case 9:
			assert.Len(t, entries, 2, "adjoint ops share the call-site line")
		case 10:
			assert.Len(t, entries, 1)
		case 11:
			require.Len(t, entries, 1)
			assert.NotNil(t, entries[0].Measurement, "the observable is not queued")
		default:
			t.Errorf("unexpected token line %d", lineOf(token))
		}
	}
	assert.Equal(t, "1.0", trace.FirstRun().Result.String())
}

func TestMidCircuitMeasurement(t *testing.T) {
	src := `import pennylane as qml
dev = qml.device("default.qubit", wires=2)
@qml.qnode(dev)
def circuit():
    qml.PauliX(0)
    m = qml.measure(0, reset=True)
    qml.cond(m, qml.PauliX)(wires=1)
    qml.cond(~m, qml.Hadamard)(wires=1)
    return qml.probs(wires=[0, 1])
circuit()`
	trace := run(t, src)
	run := trace.FirstRun()
	assert.Equal(t, "[0.0, 1.0, 0.0, 0.0]", run.Result.String())
	require.Len(t, run.Ops, 4)
	assert.Equal(t, qml.KindMidMeasure, run.Ops[1].Kind)
	assert.Equal(t, &qml.Condition{MeasureID: 0}, run.Ops[2].Condition)
	assert.Equal(t, &qml.Condition{MeasureID: 0, Negated: true}, run.Ops[3].Condition)
}

func TestTransformDecorators(t *testing.T) {
	src := `import pennylane as qml
dev = qml.device("default.qubit", wires=1)
@qml.transforms.merge_rotations
@qml.transforms.cancel_inverses
@qml.qnode(dev)
def circuit(x):
    qml.Hadamard(wires=0)
    qml.Hadamard(wires=0)
    qml.RX(x, wires=0)
    qml.RX(x, wires=0)
    return qml.expval(qml.PauliZ(0))
circuit(0.25)`
	trace := run(t, src)
	r := trace.FirstRun()
	require.Len(t, r.Queue.Ops(), 4)
	require.Len(t, r.Ops, 1)
	assert.Equal(t, "RX", r.Ops[0].Name)
	assert.InDelta(t, 0.5, r.Ops[0].Params[0], 1e-12)
	assert.Equal(t, []string{qml.CancelInverses, qml.MergeRotations}, []string{r.Transforms[0].Name, r.Transforms[1].Name})
}

func TestDrawAndFromQASM(t *testing.T) {
	src := `import pennylane as qml
dev = qml.device("default.qubit", wires=1)
sub = qml.from_qasm('OPENQASM 2.0; include "qelib1.inc"; qreg q[1]; h q[0];')
@qml.qnode(dev)
def circuit():
    sub()
    return qml.probs(wires=0)
print(qml.draw(circuit)())`
	trace := run(t, src)
	assert.Equal(t, 0, trace.Runs())
	assert.Contains(t, trace.Stdout, "┤ H ├")
}

func TestNumpyHelpers(t *testing.T) {
	src := `from pennylane import numpy as np
import math
xs = np.arange(3)
print(xs, np.linspace(0, 1, 3), round(math.pi, 2), sum([1, 2]), pow(2, 3))`
	trace := run(t, src)
	assert.Equal(t, "[0, 1, 2] [0.0, 0.5, 1.0] 3.14 3 8\n", trace.Stdout)
}
