package draw

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type cellKind int

const (
	cellEmpty cellKind = iota
	cellBox
	cellSymbol
	cellBarrier
)

// cellInfo describes what occupies a single cell of the grid.
type cellInfo struct {
	kind  cellKind
	label string

	// Multi-wire boxes draw their top border on the first row and their
	// bottom border on the last.
	boxTop, boxBottom bool

	vertAbove   bool
	vertBelow   bool
	passThrough bool
	marked      bool
}

// padCenter centres a string within the given visual width.
func padCenter(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	total := width - w
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}

// renderCell returns the three rows (top, mid, bot) of one cell, each
// exactly width columns wide. mark styles the label of a highlighted cell.
func renderCell(info cellInfo, width int, mark func(string) string) (top, mid, bot string) {
	emptyRow := strings.Repeat(" ", width)
	halfW := (width - 1) / 2
	vertRow := strings.Repeat(" ", halfW) + "│" + strings.Repeat(" ", width-halfW-1)
	dashL := halfW
	dashR := width - dashL - 1

	label := info.label
	if info.marked && mark != nil {
		label = mark(label)
	}

	switch info.kind {
	case cellBarrier:
		top = vertRow
		if !info.vertAbove {
			top = emptyRow
		}
		mid = strings.Repeat("─", dashL) + "║" + strings.Repeat("─", dashR)
		bot = vertRow
		if !info.vertBelow {
			bot = emptyRow
		}

	case cellSymbol:
		top = emptyRow
		if info.vertAbove {
			top = vertRow
		}
		mid = strings.Repeat("─", dashL) + label + strings.Repeat("─", dashR)
		bot = emptyRow
		if info.vertBelow {
			bot = vertRow
		}

	case cellBox:
		nameW := width - 4
		hl := (nameW - 1) / 2
		hr := nameW - hl - 1
		side := " │" + strings.Repeat(" ", nameW) + "│ "

		top = side
		if info.boxTop {
			join := "─"
			if info.vertAbove {
				join = "┴"
			}
			top = " ┌" + strings.Repeat("─", hl) + join + strings.Repeat("─", hr) + "┐ "
		}
		bot = side
		if info.boxBottom {
			join := "─"
			if info.vertBelow {
				join = "┬"
			}
			bot = " └" + strings.Repeat("─", hl) + join + strings.Repeat("─", hr) + "┘ "
		}
		mid = "─┤" + padCenter(label, nameW) + "├─"

	default:
		top = emptyRow
		if info.vertAbove {
			top = vertRow
		}
		bot = emptyRow
		if info.vertBelow {
			bot = vertRow
		}
		if info.passThrough {
			mid = strings.Repeat("─", dashL) + "┼" + strings.Repeat("─", dashR)
		} else {
			mid = strings.Repeat("─", width)
		}
	}
	return top, mid, bot
}
