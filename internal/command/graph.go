package command

import (
	"slices"

	"circinspect/internal/draw"
	"circinspect/internal/monitor"
	"circinspect/internal/qml"
)

// ChildrenOf returns the commands whose parent is id, in order.
func ChildrenOf(cmds []Command, id int) []Command {
	var out []Command
	for _, c := range cmds {
		if c.Parent == id {
			out = append(out, c)
		}
	}
	return out
}

// descendants returns the IDs of every command below id. Parents precede
// their children, so one pass suffices.
func descendants(cmds []Command, id int) map[int]bool {
	below := map[int]bool{id: true}
	for _, c := range cmds {
		if c.Parent != NoParent && below[c.Parent] {
			below[c.ID] = true
		}
	}
	delete(below, id)
	return below
}

// subroutineWires is the sorted union of wires the quantum descendants of
// id touch, or every wire when there are none.
func subroutineWires(all []Command, id, numWires int) []int {
	var wires []int
	below := descendants(all, id)
	for _, c := range all {
		if !below[c.ID] || !c.IsQuantum() {
			continue
		}
		for _, o := range c.Ops {
			wires = append(wires, o.AllWires()...)
		}
		for _, m := range c.Measurements {
			wires = append(wires, m.Wires...)
		}
	}
	if len(wires) == 0 {
		for w := range max(numWires, 1) {
			wires = append(wires, w)
		}
		return wires
	}
	slices.Sort(wires)
	return slices.Compact(wires)
}

// Circuit lays out the operations of a frame's children: quantum lines
// contribute their operations, and each subroutine call becomes one
// placeholder box spanning the wires of everything below its call site.
// all is the full command sequence the children came from.
func Circuit(children, all []Command, numWires int) []qml.Operation {
	var ops []qml.Operation
	for i, c := range children {
		switch {
		case c.IsQuantum():
			for _, o := range c.Ops {
				ops = append(ops, o.Clone())
			}
		case c.IsSubroutineCall():
			if i > 0 && children[i-1].IsQuantum() {
				// A wrapped call site already stands for the subroutine.
				continue
			}
			wires := make([]int, 0, numWires)
			if i > 0 {
				wires = subroutineWires(all, children[i-1].ID, numWires)
			} else {
				for w := range max(numWires, 1) {
					wires = append(wires, w)
				}
			}
			ops = append(ops, qml.Operation{Name: c.Function, Wires: wires, Kind: qml.KindPlaceholder, Token: qml.NoToken})
		}
	}
	return ops
}

// Child summarizes one subroutine call below an expanded command.
type Child struct {
	Name    string `json:"name"`
	Diagram string `json:"diagram"`
	// ID and Line are those of the call site.
	ID          int                `json:"id"`
	Line        int                `json:"line_number"`
	Arguments   []monitor.Argument `json:"arguments,omitempty"`
	HasChildren bool               `json:"has_children"`
}

// ExpandChildren returns one summary per subroutine called directly below
// id. Only commands before cut are considered; a negative cut considers
// all of them. Diagrams carry no terminal measurements.
func ExpandChildren(cmds []Command, id, cut, numWires int, opts draw.Options) []Child {
	scope := cmds
	if cut >= 0 && cut < len(cmds) {
		scope = cmds[:cut]
	}
	children := ChildrenOf(scope, id)

	var out []Child
	for i, c := range children {
		if !c.IsSubroutineCall() || i == 0 {
			continue
		}
		site := children[i-1]
		grand := ChildrenOf(scope, site.ID)
		out = append(out, Child{
			Name:        c.Function,
			Diagram:     draw.Draw(Circuit(grand, cmds, numWires), nil, numWires, opts),
			ID:          site.ID,
			Line:        site.Line,
			Arguments:   c.Args,
			HasChildren: slices.ContainsFunc(grand, func(g Command) bool { return g.Type == Call }),
		})
	}
	return out
}
