package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circinspect/internal/command"
	"circinspect/internal/engine"
	cierrors "circinspect/pkg/errors"
)

const bell = `import pennylane as qml
dev = qml.device("default.qubit", wires=2)
@qml.qnode(dev)
def circuit():
    qml.Hadamard(wires=0)
    qml.CNOT(wires=[0, 1])
    return qml.probs(wires=[0, 1])
circuit()
`

const subroutine = `import pennylane as qml
dev = qml.device("default.qubit", wires=1)
def f0():
    qml.Hadamard(wires=0)
@qml.qnode(dev)
def circuit():
    f0()
    return qml.probs(wires=0)
circuit()
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCommand(&out, &errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestDraw(t *testing.T) {
	out, _, err := execute(t, "draw", writeFile(t, "bell.py", bell))
	require.NoError(t, err)
	assert.Contains(t, out, "circuit (line 3)")
	assert.Contains(t, out, "output: [0.5, 0.0, 0.0, 0.5]")
	assert.Contains(t, out, "⊕")
}

func TestDrawJSONAndStep(t *testing.T) {
	dir := t.TempDir()
	tokenPath := filepath.Join(dir, "token")

	out, _, err := execute(t, "--json", "draw", writeFile(t, "sub.py", subroutine), "--token-out", tokenPath)
	require.NoError(t, err)

	var v engine.Visualization
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, "circuit", v.Name)
	assert.Equal(t, -1, v.DebugIndex)
	require.Len(t, v.Children, 1)
	assert.Equal(t, "f0", v.Children[0].Name)

	saved, err := os.ReadFile(tokenPath)
	require.NoError(t, err)
	assert.Equal(t, v.Token, strings.TrimSpace(string(saved)))

	tests := []struct {
		index     string
		action    string
		next      int
		highlight int
	}{
		{"-1", "step_over", 0, 5},
		{"1", "step_into", 2, 3},
		{"1", "step_over", 4, 8},
		{"4", "step_over", 5, -1},
	}
	for _, tt := range tests {
		t.Run(tt.action+"@"+tt.index, func(t *testing.T) {
			out, _, err := execute(t, "--json", "step", "--token-file", tokenPath, "--index", tt.index, "--action", tt.action)
			require.NoError(t, err)
			var res engine.StepResult
			require.NoError(t, json.Unmarshal([]byte(out), &res))
			assert.Equal(t, tt.next, res.DebugIndex)
			assert.Equal(t, tt.highlight, res.Highlight)
		})
	}

	out, _, err = execute(t, "step", "--token-file", tokenPath, "--index", "-1", "--action", "next_breakpoint", "--breakpoints", "8")
	require.NoError(t, err)
	assert.Contains(t, out, "index 4, before line 8")
	assert.Contains(t, out, "output: [0.5, 0.5]")
}

func TestExpand(t *testing.T) {
	tokenPath := filepath.Join(t.TempDir(), "token")
	_, _, err := execute(t, "draw", writeFile(t, "sub.py", subroutine), "--token-out", tokenPath)
	require.NoError(t, err)

	out, _, err := execute(t, "--json", "expand", "--token-file", tokenPath, "--id", "0")
	require.NoError(t, err)
	var children []command.Child
	require.NoError(t, json.Unmarshal([]byte(out), &children))
	require.Len(t, children, 1)
	assert.Equal(t, 7, children[0].Line)

	out, _, err = execute(t, "expand", "--token-file", tokenPath, "--id", "0", "--end-idx", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "no subroutine calls")
}

func TestQASM(t *testing.T) {
	path := writeFile(t, "bell.py", bell)

	out, _, err := execute(t, "qasm", path)
	require.NoError(t, err)
	assert.Contains(t, out, "OPENQASM 2.0;")
	assert.Contains(t, out, "cx q[0], q[1];")

	out, _, err = execute(t, "qasm", path, "--cut", "2")
	require.NoError(t, err)
	assert.NotContains(t, out, "cx")
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, "--json", "version")
	require.NoError(t, err)
	var info VersionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info.Version)
}

func TestTraceFlag(t *testing.T) {
	_, errOut, err := execute(t, "--trace", "draw", writeFile(t, "bell.py", bell))
	require.NoError(t, err)
	assert.Contains(t, errOut, "engine.visualize")
	assert.Contains(t, errOut, "engine.execute")
}

func TestMetricsFlag(t *testing.T) {
	_, _, err := execute(t, "--metrics-addr", "127.0.0.1:0", "version")
	assert.NoError(t, err)
}

func TestStepRequiresToken(t *testing.T) {
	_, _, err := execute(t, "step")
	assert.ErrorContains(t, err, "--token-file is required")
}

func TestBadConfig(t *testing.T) {
	path := writeFile(t, "config.yaml", "exec: [")
	_, _, err := execute(t, "--config", path, "version")
	var ce *cierrors.ConfigError
	assert.ErrorAs(t, err, &ce)
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name    string
		program string
		code    int
		message string
	}{
		{"program error", "import pennylane as qml\nx = 1\ny = z + 1\n", ExitProgramError, "(line 3)"},
		{"restricted import", "import os\n", ExitProgramError, "error: No module named: os (line 1)"},
		{"no circuit", "x = 1\n", ExitNoCircuit, "Please run exactly one quantum circuit."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, "draw", writeFile(t, "p.py", tt.program))
			require.Error(t, err)

			var buf bytes.Buffer
			assert.Equal(t, tt.code, handleExitError(err, &buf))
			assert.Contains(t, buf.String(), tt.message)
			assert.NotContains(t, buf.String(), "Suggestion:")
		})
	}

	assert.Equal(t, ExitSuccess, handleExitError(nil, &bytes.Buffer{}))
	assert.Equal(t, ExitFailed, exitCode(errors.New("boom")))

	var buf bytes.Buffer
	assert.Equal(t, ExitFailed, handleExitError(errors.New("--token-file is required"), &buf))
	assert.Contains(t, buf.String(), "error: --token-file is required")
	assert.Contains(t, buf.String(), "Suggestion: rerun with --log-level debug")
}
