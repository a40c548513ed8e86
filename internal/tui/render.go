package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
)

func (m Model) sourceWidth() int {
	return max(m.width*2/5, minSourceW+4)
}

func (m Model) topHeight() int {
	return max(m.height-controlsH-2, 8)
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	srcW := m.sourceWidth()
	rightW := max(m.width-srcW-4, minDiagramW)
	topH := m.topHeight()
	outH := outputPanelH

	left := m.renderSourcePanel(srcW-2, topH)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderDiagramPanel(rightW, max(topH-outH-2, 3)),
		m.renderOutputPanel(rightW, outH),
	)
	top := lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	frame := lipgloss.JoinVertical(lipgloss.Left, top, m.renderControlsPanel(m.width-4, controlsH-2))

	switch m.focus {
	case focusMenu:
		frame = overlayAt(frame, m.renderMenu(), overlayOffset, overlayOffset)
	case focusBreakpoints:
		frame = overlayAt(frame, m.renderBreakpointInput(), overlayOffset, overlayOffset)
	case focusChildren:
		frame = overlayAt(frame, m.renderChildren(), srcW/2, overlayOffset)
	case focusTransforms:
		frame = overlayAt(frame, m.renderTransforms(), srcW/2, overlayOffset)
	}
	return frame
}

// sourceContent renders the program with its gutter.
func (m Model) sourceContent() string {
	cur := m.current()
	var sb strings.Builder
	for i, text := range m.lines {
		n := i + 1
		mark := " "
		if m.bps.Has(n) {
			mark = breakpointStyle.Render("●")
		}
		arrow := " "
		if n == cur {
			arrow = keyStyle.Render("▶")
		}
		sb.WriteString(mark + arrow + lineNumberStyle.Render(fmt.Sprintf("%4d│", n)))

		text = strings.ReplaceAll(text, "\t", "    ")
		switch {
		case n == cur:
			text = currentLineStyle.Render(text)
		case n == m.cursor && m.focus == focusSource:
			text = cursorLineStyle.Render(text)
		}
		sb.WriteString(text)
		if i < len(m.lines)-1 {
			sb.WriteString("\n")
		}
	}
	return sb.String()
}

func (m Model) renderSourcePanel(width, height int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.path))
	sb.WriteString("\n\n")
	sb.WriteString(m.source.View())
	return sourceStyle.Width(width).Height(height).Render(sb.String())
}

func (m Model) renderDiagramPanel(width, height int) string {
	var sb strings.Builder
	title := "Circuit"
	switch {
	case m.vis == nil:
	case m.step != nil && m.step.Found:
		title += fmt.Sprintf(" before line %d", m.step.Highlight)
	default:
		title += " " + m.vis.Name
	}
	sb.WriteString(titleStyle.Render(title))
	sb.WriteString("\n\n")

	switch {
	case m.step != nil:
		sb.WriteString(m.step.Diagram)
	case m.vis != nil:
		sb.WriteString(m.vis.Diagram)
	default:
		sb.WriteString(dimStyle.Render("no circuit loaded"))
	}
	return diagramStyle.Width(width).Height(height).Render(sb.String())
}

func (m Model) renderOutputPanel(width, height int) string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Output"))
	sb.WriteString("\n")
	switch {
	case m.step != nil:
		sb.WriteString(m.step.Output)
	case m.vis != nil:
		sb.WriteString(m.vis.Output)
		if m.vis.Stdout != "" {
			sb.WriteString("\n" + dimStyle.Render(strings.TrimRight(m.vis.Stdout, "\n")))
		}
	}
	return outputStyle.Width(width).Height(height).Render(sb.String())
}

func (m Model) renderControlsPanel(width, height int) string {
	var sb strings.Builder

	sb.WriteString(keyStyle.Render("Debug: "))
	sb.WriteString("n/p Breakpoint  o Over  i Into  u Out  r Restart")
	sb.WriteString("    ")
	sb.WriteString(keyStyle.Render("a"))
	sb.WriteString(" Actions\n")

	if m.failed {
		sb.WriteString(errorStyle.Render(m.status))
	} else {
		sb.WriteString(keyStyle.Render("Lines: "))
		sb.WriteString("↑↓/jk Move  b Breakpoint  e Expand  t Transforms  q Quit")
		if m.status != "" {
			fmt.Fprintf(&sb, "  │  %s", dimStyle.Render(m.status))
		}
	}
	return controlsStyle.Width(width).Height(height).Render(sb.String())
}

func (m Model) renderBreakpointInput() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Breakpoints"))
	sb.WriteString("\n\n")
	sb.WriteString(m.bpInput.View())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Line numbers, separated by spaces or commas"))
	return menuBorderStyle.Render(sb.String())
}

func (m Model) renderChildren() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Subroutines of " + strings.Join(m.trail, " › ")))
	sb.WriteString("\n\n")
	for i, c := range m.children {
		label := fmt.Sprintf("%s (line %d)", c.Name, c.Line)
		if c.HasChildren {
			label += " ▸"
		}
		if i == m.childIdx {
			sb.WriteString(menuSelectedStyle.Render("▸ " + label))
		} else {
			sb.WriteString(menuNormalStyle.Render("  " + label))
		}
		sb.WriteString("\n")
	}
	if len(m.children) > 0 {
		sb.WriteString("\n")
		sb.WriteString(m.children[m.childIdx].Diagram)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("↑↓ Select  ⏎ Expand  Esc ✕"))
	return menuBorderStyle.Render(sb.String())
}

func (m Model) renderTransforms() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Transforms"))
	sb.WriteString("\n\n")
	recs := m.vis.Transforms
	for i, r := range recs {
		label := fmt.Sprintf("%s (line %d)", r.Text, r.Line)
		if i == m.transformIdx {
			sb.WriteString(menuSelectedStyle.Render("▸ " + label))
		} else {
			sb.WriteString(menuNormalStyle.Render("  " + label))
		}
		sb.WriteString("\n")
	}
	if m.transformIdx < len(recs) {
		r := recs[m.transformIdx]
		sb.WriteString("\n")
		sb.WriteString(r.Diagram)
		sb.WriteString("\n")
		sb.WriteString(keyStyle.Render("output: "))
		sb.WriteString(r.Output)
		sb.WriteString("\n")
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render("↑↓ Select  Esc ✕"))
	return menuBorderStyle.Render(sb.String())
}

// ──────────────────────────── Overlay helpers ────────────────────────────

// overlayAt composites the overlay string on top of the background at
// position (x, y), counting visible columns.
func overlayAt(bg, overlay string, x, y int) string {
	bgLines := strings.Split(bg, "\n")
	for i, ovLine := range strings.Split(overlay, "\n") {
		idx := y + i
		if idx < 0 || idx >= len(bgLines) {
			continue
		}
		bgLines[idx] = spliceLineAt(bgLines[idx], ovLine, x)
	}
	return strings.Join(bgLines, "\n")
}

// spliceLineAt replaces the visible columns of line starting at x with
// overlay. Styling on both sides of the overlay is preserved.
func spliceLineAt(line, overlay string, x int) string {
	prefix := ansi.Truncate(line, x, "")
	if w := ansi.StringWidth(prefix); w < x {
		prefix += strings.Repeat(" ", x-w)
	}
	suffix := ansi.TruncateLeft(line, x+ansi.StringWidth(overlay), "")
	return prefix + "\x1b[0m" + overlay + "\x1b[0m" + suffix
}
