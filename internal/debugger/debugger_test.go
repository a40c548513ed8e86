package debugger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circinspect/internal/command"
)

// commands mirror a circuit at line 5 that calls f0 (defined at line 3)
// from line 7 and returns at line 8.
var commands = []command.Command{
	{ID: 0, Parent: command.NoParent, Function: "circuit", Line: 5, Type: command.Call},
	{ID: 1, Parent: 0, Function: "circuit", Line: 7, Type: command.Line},
	{ID: 2, Parent: 0, Function: "f0", Line: 3, Type: command.Call},
	{ID: 3, Parent: 1, Function: "f0", Line: 4, Type: command.Return, Class: command.Quantum},
	{ID: 4, Parent: 0, Function: "circuit", Line: 8, Type: command.Return, Class: command.Quantum},
}

func TestNavigate(t *testing.T) {
	end := len(commands)
	tests := []struct {
		name   string
		index  int
		action Action
		bps    string
		want   int
		found  bool
	}{
		{"next from start", -1, NextBreakpoint, "4", 3, true},
		{"next skips current", 3, NextBreakpoint, "4 8", 4, true},
		{"next without match", -1, NextBreakpoint, "99", end, false},
		{"prev", 4, PrevBreakpoint, "5 7", 1, true},
		{"prev never reaches zero", 1, PrevBreakpoint, "5", end, false},
		{"prev from terminal", end, PrevBreakpoint, "4", 3, true},
		{"over a call", 1, StepOver, "", 4, true},
		{"over stops at breakpoint", 1, StepOver, "3", 2, true},
		{"over leaves a frame", 3, StepOver, "", 4, true},
		{"over from start", -1, StepOver, "", 0, true},
		{"out of subroutine", 3, StepOut, "", 4, true},
		{"out of circuit", 1, StepOut, "", end, false},
		{"into", 2, StepInto, "", 3, true},
		{"into at last command", end - 1, StepInto, "", end - 1, false},
		{"restart", 3, Restart, "4", 0, true},
		{"restart from terminal", -1, Restart, "", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, found := Navigate(commands, tt.index, tt.action, ParseBreakpoints(tt.bps))
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.found, found)
		})
	}
}

func TestRestartIgnoresState(t *testing.T) {
	for index := -1; index <= len(commands); index++ {
		got, found := Navigate(commands, index, Restart, ParseBreakpoints("3 4 5"))
		assert.Equal(t, 0, got)
		assert.True(t, found)
	}
}

func TestNavigateEmpty(t *testing.T) {
	got, found := Navigate(nil, -1, StepOver, nil)
	assert.Equal(t, 0, got)
	assert.False(t, found)
}

func TestParseAction(t *testing.T) {
	a, err := ParseAction(" step_out ")
	require.NoError(t, err)
	assert.Equal(t, StepOut, a)

	_, err = ParseAction("continue")
	assert.Error(t, err)
}

func TestBreakpoints(t *testing.T) {
	b := ParseBreakpoints("7  3 x")
	assert.True(t, b.Has(3))
	assert.False(t, b.Has(4))
	assert.Equal(t, "3 7", b.String())

	b.Toggle(3)
	b.Toggle(4)
	assert.Equal(t, []int{4, 7}, b.Lines())
}
