// Package replay re-executes a prefix of a command sequence and draws it.
// It holds no state; equal inputs give equal results.
package replay

import (
	"circinspect/internal/command"
	"circinspect/internal/draw"
	"circinspect/internal/qml"
	"circinspect/internal/sim"
)

// Options tune drawing and simulation.
type Options struct {
	Draw draw.Options
	Sim  sim.Options
}

// Snapshot is the circuit state after a prefix of the commands.
type Snapshot struct {
	Diagram string
	Output  *sim.Result
}

// Normalized returns the output with spaces and newlines removed.
func (s *Snapshot) Normalized() string {
	return sim.Normalize(s.Output.String())
}

// Ops returns the operations of the quantum commands with ID below cut.
// A negative cut or one past the end selects every command.
func Ops(cmds []command.Command, cut int) []qml.Operation {
	cut = clamp(cut, len(cmds))
	var ops []qml.Operation
	for _, c := range cmds[:cut] {
		if !c.IsQuantum() {
			continue
		}
		for _, o := range c.Ops {
			ops = append(ops, o.Clone())
		}
	}
	return ops
}

// RootChildren returns the children of the first command within
// cmds[:cut], without a trailing return of the root frame.
func RootChildren(cmds []command.Command, cut int) []command.Command {
	if len(cmds) == 0 {
		return nil
	}
	cut = clamp(cut, len(cmds))
	root := cmds[0]
	children := command.ChildrenOf(cmds[:cut], root.ID)
	if n := len(children); n > 0 {
		last := children[n-1]
		if last.Type == command.Return && last.Function == root.Function {
			children = children[:n-1]
		}
	}
	return children
}

// Diagram draws the root frame up to cut with subroutine placeholders,
// followed by the terminal measurements.
func Diagram(m *command.Model, cut int, opts draw.Options) string {
	children := RootChildren(m.Commands, cut)
	ops := command.Circuit(children, m.Commands, m.Device.Wires)
	return draw.Draw(ops, m.Terminal(), m.Device.Wires, opts)
}

// Run replays the commands before cut on the model's device and draws
// the same prefix.
func Run(m *command.Model, cut int, opts Options) (*Snapshot, error) {
	res, err := sim.Run(Ops(m.Commands, cut), m.Terminal(), m.Device.Device(), opts.Sim)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		Diagram: Diagram(m, cut, opts.Draw),
		Output:  res,
	}, nil
}

func clamp(cut, n int) int {
	if cut < 0 || cut > n {
		return n
	}
	return cut
}
