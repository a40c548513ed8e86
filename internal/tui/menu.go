package tui

import (
	"fmt"
	"strings"

	"circinspect/internal/debugger"
)

// menuCmd is what a menu entry does besides stepping.
type menuCmd int

const (
	cmdStep menuCmd = iota
	cmdToggleBreakpoint
	cmdEditBreakpoints
	cmdExpand
	cmdTransforms
	cmdReload
)

// menuItem represents a single choice in the action menu.
type menuItem struct {
	name   string
	key    string
	cmd    menuCmd
	action debugger.Action
}

// menuCategory groups related menu items under a tab.
type menuCategory struct {
	name  string
	items []menuItem
}

// actionMenu defines the action picker categories and items.
var actionMenu = []menuCategory{
	{
		name: "Navigate",
		items: []menuItem{
			{name: "Next breakpoint", key: "n", action: debugger.NextBreakpoint},
			{name: "Previous breakpoint", key: "p", action: debugger.PrevBreakpoint},
			{name: "Step over", key: "o", action: debugger.StepOver},
			{name: "Step into", key: "i", action: debugger.StepInto},
			{name: "Step out", key: "u", action: debugger.StepOut},
			{name: "Restart", key: "r", action: debugger.Restart},
		},
	},
	{
		name: "Inspect",
		items: []menuItem{
			{name: "Toggle breakpoint", key: "b", cmd: cmdToggleBreakpoint},
			{name: "Set breakpoints", key: "B", cmd: cmdEditBreakpoints},
			{name: "Expand subroutines", key: "e", cmd: cmdExpand},
			{name: "Transforms", key: "t", cmd: cmdTransforms},
			{name: "Reload file", key: "R", cmd: cmdReload},
		},
	},
}

// keyActions maps single keys to navigation actions.
var keyActions = map[string]debugger.Action{
	"n": debugger.NextBreakpoint,
	"p": debugger.PrevBreakpoint,
	"o": debugger.StepOver,
	"i": debugger.StepInto,
	"u": debugger.StepOut,
	"r": debugger.Restart,
}

// renderMenu renders the floating action popup.
func (m Model) renderMenu() string {
	var sb strings.Builder

	sb.WriteString(titleStyle.Render("Actions"))
	sb.WriteString("\n")

	for i, cat := range actionMenu {
		name := " " + cat.name + " "
		if i == m.menuCat {
			sb.WriteString(keyStyle.Render(name))
		} else {
			sb.WriteString(dimStyle.Render(name))
		}
		if i < len(actionMenu)-1 {
			sb.WriteString(dimStyle.Render("│"))
		}
	}
	sb.WriteString("\n")
	sb.WriteString(dimStyle.Render(strings.Repeat("─", 30)))
	sb.WriteString("\n")

	for i, item := range actionMenu[m.menuCat].items {
		if i == m.menuItem {
			sb.WriteString(menuSelectedStyle.Render(" ▸ "))
			sb.WriteString(menuSelectedStyle.Render(fmt.Sprintf("%-22s", item.name)))
			sb.WriteString(keyStyle.Render(item.key))
		} else {
			sb.WriteString("   ")
			sb.WriteString(menuNormalStyle.Render(fmt.Sprintf("%-22s", item.name)))
			sb.WriteString(dimStyle.Render(item.key))
		}
		sb.WriteString("\n")
	}
	sb.WriteString(dimStyle.Render(" ↑↓ Select  ←→ Tab  ⏎ Ok  Esc ✕"))

	return menuBorderStyle.Render(sb.String())
}
