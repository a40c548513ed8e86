// Package debugger moves a debug index through a command sequence.
//
// A debug index in [0, len) means execution is stopped before that
// command. -1 and len are terminal: nothing is stopped and the whole
// circuit is shown.
package debugger

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"circinspect/internal/command"
)

// Action names a navigation step.
type Action string

const (
	NextBreakpoint Action = "next_breakpoint"
	PrevBreakpoint Action = "prev_breakpoint"
	StepOver       Action = "step_over"
	StepInto       Action = "step_into"
	StepOut        Action = "step_out"
	Restart        Action = "restart"
)

// Actions lists every action in menu order.
var Actions = []Action{NextBreakpoint, PrevBreakpoint, StepOver, StepInto, StepOut, Restart}

// ParseAction validates an action name.
func ParseAction(s string) (Action, error) {
	a := Action(strings.TrimSpace(s))
	if !slices.Contains(Actions, a) {
		return "", fmt.Errorf("unknown debug action %q", s)
	}
	return a, nil
}

// Breakpoints is a set of source line numbers, kept as the strings the
// caller sent.
type Breakpoints map[string]bool

// ParseBreakpoints reads a space-separated list of line numbers.
func ParseBreakpoints(s string) Breakpoints {
	b := make(Breakpoints)
	for _, f := range strings.Fields(s) {
		b[f] = true
	}
	return b
}

// Has reports whether line is a breakpoint.
func (b Breakpoints) Has(line int) bool {
	return b[strconv.Itoa(line)]
}

// Toggle adds or removes a breakpoint.
func (b Breakpoints) Toggle(line int) {
	key := strconv.Itoa(line)
	if b[key] {
		delete(b, key)
		return
	}
	b[key] = true
}

// Lines returns the numeric breakpoints in ascending order.
func (b Breakpoints) Lines() []int {
	var lines []int
	for k := range b {
		if n, err := strconv.Atoi(k); err == nil {
			lines = append(lines, n)
		}
	}
	slices.Sort(lines)
	return lines
}

// String renders the set in the form ParseBreakpoints reads.
func (b Breakpoints) String() string {
	lines := b.Lines()
	parts := make([]string, len(lines))
	for i, n := range lines {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, " ")
}

// Navigate applies action at index and returns the new index. found is
// false when a scan ran off the end; the index is then len(cmds).
// step_into at the last command stays put and reports not found.
func Navigate(cmds []command.Command, index int, action Action, bps Breakpoints) (next int, found bool) {
	end := len(cmds)
	scan := func(from int, stop func(command.Command) bool) (int, bool) {
		for i := max(from, 0); i < end; i++ {
			if stop(cmds[i]) {
				return i, true
			}
		}
		return end, false
	}

	switch action {
	case NextBreakpoint:
		return scan(index+1, func(c command.Command) bool { return bps.Has(c.Line) })

	case PrevBreakpoint:
		for i := min(index, end) - 1; i >= 1; i-- {
			if bps.Has(cmds[i].Line) {
				return i, true
			}
		}
		return end, false

	case StepOver, StepOut:
		if end == 0 {
			return end, false
		}
		if index < 0 {
			return 0, true
		}
		if index >= end {
			return end, false
		}
		cur := cmds[index]
		grandparent := command.NoParent
		if cur.Parent != command.NoParent {
			grandparent = cmds[cur.Parent].Parent
		}
		return scan(index+1, func(c command.Command) bool {
			if action == StepOver && c.Function == cur.Function {
				return true
			}
			// The first command is the only one without a parent.
			return bps.Has(c.Line) || (grandparent != command.NoParent && c.Parent == grandparent)
		})

	case StepInto:
		if index+1 < end {
			return index + 1, true
		}
		return index, false

	case Restart:
		return 0, true
	}
	return end, false
}
