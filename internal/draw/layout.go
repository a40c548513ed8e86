// Package draw renders circuits as box-drawing text diagrams.
//
// Operations are packed into columns: each operation goes in the first
// column after every earlier operation touching a wire in its span, and a
// conditioned operation also after the measurement it reads. Every wire is
// drawn as three text rows.
package draw

import (
	"slices"

	"circinspect/internal/qml"
)

// Diagram is a laid-out circuit.
type Diagram struct {
	NumWires     int
	Columns      [][]qml.Operation
	Measurements []qml.Measurement
}

// Layout packs ops into columns. numWires is raised to cover every wire
// the circuit touches.
func Layout(ops []qml.Operation, measurements []qml.Measurement, numWires int) *Diagram {
	for _, op := range ops {
		for _, w := range op.AllWires() {
			numWires = max(numWires, w+1)
		}
	}
	for _, m := range measurements {
		for _, w := range m.MeasuredWires() {
			numWires = max(numWires, w+1)
		}
	}
	numWires = max(numWires, 1)

	d := &Diagram{NumWires: numWires, Measurements: measurements}
	next := make([]int, numWires)
	measured := make(map[int]int)
	for _, op := range ops {
		lo, hi := span(op, numWires)
		col := 0
		for w := lo; w <= hi; w++ {
			col = max(col, next[w])
		}
		if op.Condition != nil {
			if mc, ok := measured[op.Condition.MeasureID]; ok {
				col = max(col, mc+1)
			}
		}
		if op.Kind == qml.KindMidMeasure {
			measured[op.MeasureID] = col
		}
		for len(d.Columns) <= col {
			d.Columns = append(d.Columns, nil)
		}
		d.Columns[col] = append(d.Columns[col], op)
		for w := lo; w <= hi; w++ {
			next[w] = col + 1
		}
	}
	return d
}

// span returns the lowest and highest wire an operation occupies. An
// operation without wires, such as a bare barrier, spans the register.
func span(op qml.Operation, numWires int) (lo, hi int) {
	wires := op.AllWires()
	if len(wires) == 0 {
		return 0, numWires - 1
	}
	return slices.Min(wires), slices.Max(wires)
}
