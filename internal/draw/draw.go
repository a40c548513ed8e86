package draw

import (
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"circinspect/internal/qml"
)

// Options control labels and highlighting.
type Options struct {
	Decimals int
	ShowPi   bool

	// Highlight selects operations whose labels are passed through Mark.
	Highlight func(op qml.Operation) bool
	Mark      func(string) string
}

// DefaultOptions prints two decimals and symbolic pi fractions.
func DefaultOptions() Options {
	return Options{Decimals: 2, ShowPi: true}
}

// Draw lays out and renders a circuit in one call.
func Draw(ops []qml.Operation, measurements []qml.Measurement, numWires int, opts Options) string {
	return Layout(ops, measurements, numWires).Render(opts)
}

// Render draws the diagram. Rows that end up blank are dropped and
// trailing spaces are trimmed.
func (d *Diagram) Render(opts Options) string {
	grid := make([][]cellInfo, len(d.Columns))
	widths := make([]int, len(d.Columns))
	for c, ops := range d.Columns {
		grid[c] = make([]cellInfo, d.NumWires)
		for _, op := range ops {
			d.place(grid[c], op, opts)
		}
		widths[c] = columnWidth(grid[c])
	}

	labelW := len(fmt.Sprintf("%d", d.NumWires-1)) + 2
	meas := d.measurementLabels()

	var lines []string
	for w := range d.NumWires {
		top := strings.Repeat(" ", labelW+1)
		mid := fmt.Sprintf("%*s", labelW, fmt.Sprintf("%d: ", w)) + "─"
		bot := top
		for c := range d.Columns {
			t, m, b := renderCell(grid[c][w], widths[c], opts.Mark)
			top += t
			mid += m
			bot += b
		}
		if len(d.Columns) == 0 {
			mid += "─"
		}
		if label, ok := meas[w]; ok {
			mid += "┤  " + label
		}
		lines = append(lines, top, mid, bot)
	}

	out := make([]string, 0, len(lines))
	for _, l := range lines {
		l = strings.TrimRight(l, " ")
		if l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func columnWidth(cells []cellInfo) int {
	w := 3
	for _, c := range cells {
		if c.kind == cellBox {
			w = max(w, lipgloss.Width(c.label)+6)
		}
	}
	return w
}

// place fills the cells one operation occupies in a column.
func (d *Diagram) place(cells []cellInfo, op qml.Operation, opts Options) {
	lo, hi := span(op, d.NumWires)
	marked := opts.Highlight != nil && opts.Highlight(op)

	connect := func() {
		for w := lo; w <= hi; w++ {
			c := &cells[w]
			c.vertAbove = c.vertAbove || w > lo
			c.vertBelow = c.vertBelow || w < hi
			if c.kind == cellEmpty && w > lo && w < hi {
				c.passThrough = true
			}
		}
	}
	box := func(wires []int, label string) {
		blo, bhi := slices.Min(wires), slices.Max(wires)
		for w := blo; w <= bhi; w++ {
			c := &cells[w]
			c.kind = cellBox
			c.boxTop = w == blo
			c.boxBottom = w == bhi
			c.marked = marked
			if w == blo {
				c.label = label
			}
		}
	}
	symbol := func(w int, s string) {
		cells[w] = cellInfo{kind: cellSymbol, label: s, marked: marked}
	}

	switch op.Kind {
	case qml.KindBarrier:
		for w := lo; w <= hi; w++ {
			cells[w].kind = cellBarrier
		}
		connect()
		return
	case qml.KindMidMeasure:
		label := "↗"
		if op.Reset {
			label = "↗│0⟩"
		}
		box(op.Wires, label)
		return
	case qml.KindPlaceholder:
		wires := op.Wires
		if len(wires) == 0 {
			wires = []int{0, d.NumWires - 1}
		}
		box(wires, op.Name)
		return
	}
	if op.Name == "Barrier" {
		op.Kind = qml.KindBarrier
		d.place(cells, op, opts)
		return
	}

	controls, targets := qml.SplitControls(op)
	if len(targets) == 0 {
		targets = make([]int, d.NumWires)
		for i := range targets {
			targets[i] = i
		}
	}
	for _, w := range controls {
		symbol(w, "●")
	}

	base := Label(op, opts)
	switch {
	case op.Name == "SWAP" || op.Name == "CSWAP":
		for _, w := range targets {
			symbol(w, "×")
		}
	case len(controls) > 0 && op.Condition == nil && !op.Adjoint && base == "X" && len(targets) == 1:
		symbol(targets[0], "⊕")
	case op.Name == "CZ" && len(op.Controls) == 0 && op.Condition == nil:
		symbol(targets[0], "●")
	default:
		box(targets, base)
	}
	if len(controls) > 0 {
		connect()
	}
}

// Label returns the text drawn for an operation: its short name, its
// parameters, an adjoint dagger and the measurement it is conditioned on.
func Label(op qml.Operation, opts Options) string {
	name := op.Name
	if spec, ok := qml.Lookup(op.Name); ok && spec.Label != "" {
		name = spec.Label
	}
	if len(op.Params) > 0 {
		ps := make([]string, len(op.Params))
		for i, p := range op.Params {
			ps[i] = qml.FormatParam(p, opts.Decimals, opts.ShowPi)
		}
		name += "(" + strings.Join(ps, ",") + ")"
	}
	if op.Adjoint {
		name += "†"
	}
	if op.Condition != nil {
		if op.Condition.Negated {
			name += "|¬m" + fmt.Sprint(op.Condition.MeasureID)
		} else {
			name += "|m" + fmt.Sprint(op.Condition.MeasureID)
		}
	}
	return name
}

// measurementLabels maps each measured wire to the text written after the
// final column.
func (d *Diagram) measurementLabels() map[int]string {
	labels := make(map[int]string)
	add := func(w int, s string) {
		if prev, ok := labels[w]; ok {
			s = prev + " " + s
		}
		labels[w] = s
	}
	for _, m := range d.Measurements {
		var text string
		switch {
		case m.Observable != nil:
			obs := Label(*m.Observable, Options{})
			switch m.Kind {
			case qml.Expval:
				text = "<" + obs + ">"
			case qml.Var:
				text = "Var[" + obs + "]"
			default:
				text = measurementName(m.Kind) + "[" + obs + "]"
			}
		default:
			text = measurementName(m.Kind)
		}
		wires := m.MeasuredWires()
		if len(wires) == 0 {
			for w := range d.NumWires {
				add(w, text)
			}
			continue
		}
		for _, w := range wires {
			add(w, text)
		}
	}
	return labels
}

func measurementName(k qml.MeasurementKind) string {
	s := string(k)
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
