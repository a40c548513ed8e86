// Package tui is the interactive terminal debugger. It keeps only the
// current debug index and breakpoint set; every step is a stateless
// engine call carrying the session token.
package tui

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"circinspect/internal/command"
	"circinspect/internal/debugger"
	"circinspect/internal/engine"
	clog "circinspect/internal/log"
	cierrors "circinspect/pkg/errors"
)

// Backend is the engine surface the debugger drives.
type Backend interface {
	Visualize(ctx context.Context, program string) (*engine.Visualization, error)
	Step(ctx context.Context, req engine.StepRequest) (*engine.StepResult, error)
	Expand(ctx context.Context, token string, id, endIdx int) ([]command.Child, error)
}

// focus represents which panel/mode has keyboard input.
type focus int

const (
	focusSource focus = iota
	focusMenu
	focusBreakpoints
	focusChildren
	focusTransforms
)

type loadedMsg struct {
	lines []string
	vis   *engine.Visualization
	err   error
}

type steppedMsg struct {
	res *engine.StepResult
	err error
}

type expandedMsg struct {
	parent   string
	children []command.Child
	err      error
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	backend Backend
	path    string
	logger  *slog.Logger
	watch   *watcher

	lines []string
	vis   *engine.Visualization
	step  *engine.StepResult
	index int
	bps   debugger.Breakpoints

	cursor int // 1-based source line
	width  int
	height int
	focus  focus
	status string
	failed bool

	source  viewport.Model
	bpInput textinput.Model

	// Menu state
	menuCat  int
	menuItem int

	// Expansion state
	children []command.Child
	trail    []string
	childIdx int

	transformIdx int
}

// New returns the debugger model for the program at path. The program is
// loaded by Init.
func New(ctx context.Context, backend Backend, path string, logger *slog.Logger) Model {
	ti := textinput.New()
	ti.Placeholder = "3 5 8"
	ti.Prompt = "lines: "
	ti.CharLimit = 256
	ti.Width = 30

	return Model{
		ctx:     ctx,
		backend: backend,
		path:    path,
		logger:  clog.WithComponent(clog.Or(logger), "tui"),
		index:   -1,
		bps:     make(debugger.Breakpoints),
		cursor:  1,
		source:  viewport.New(minSourceW, 10),
		bpInput: ti,
	}
}

// Run starts the debugger on the program at path and blocks until the
// user quits. The file is reloaded whenever it is written.
func Run(ctx context.Context, backend Backend, path string, logger *slog.Logger) error {
	m := New(ctx, backend, path, logger)
	w, err := newWatcher(path)
	if err != nil {
		m.logger.Warn("file watching disabled", "path", path, "error", err)
	} else {
		m.watch = w
		defer w.close()
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// ──────────────────────────── Commands ────────────────────────────

func (m Model) load() tea.Cmd {
	ctx, backend, path := m.ctx, m.backend, m.path
	return func() tea.Msg {
		data, err := os.ReadFile(path)
		if err != nil {
			return loadedMsg{err: err}
		}
		vis, err := backend.Visualize(ctx, string(data))
		return loadedMsg{lines: strings.Split(string(data), "\n"), vis: vis, err: err}
	}
}

func (m Model) stepCmd(a debugger.Action) tea.Cmd {
	if m.vis == nil {
		return nil
	}
	ctx, backend := m.ctx, m.backend
	req := engine.StepRequest{
		Token:       m.vis.Token,
		DebugIndex:  m.index,
		Action:      a,
		Breakpoints: maps.Clone(m.bps),
		Mark:        func(s string) string { return gateMarkStyle.Render(s) },
	}
	return func() tea.Msg {
		res, err := backend.Step(ctx, req)
		return steppedMsg{res: res, err: err}
	}
}

func (m Model) expandCmd(name string, id int) tea.Cmd {
	if m.vis == nil {
		return nil
	}
	ctx, backend, token := m.ctx, m.backend, m.vis.Token
	end := -1
	if m.step != nil {
		end = m.step.EndIdx
	}
	return func() tea.Msg {
		children, err := backend.Expand(ctx, token, id, end)
		return expandedMsg{parent: name, children: children, err: err}
	}
}

// ──────────────────────────── Init / Update ────────────────────────────

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.load()}
	if m.watch != nil {
		cmds = append(cmds, m.watch.wait())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.source.Width = max(m.sourceWidth()-4, minSourceW)
		m.source.Height = max(m.topHeight()-4, 3)

	case loadedMsg:
		if msg.err != nil {
			m.fail(msg.err)
			break
		}
		m.lines = msg.lines
		m.vis = msg.vis
		m.step = nil
		m.index = -1
		m.children = nil
		m.failed = false
		m.cursor = min(max(m.cursor, 1), max(len(m.lines), 1))
		m.status = fmt.Sprintf("loaded %s: %d commands", m.path, m.vis.Commands)
		m.logger.Debug("program loaded", clog.CommandsKey, m.vis.Commands)

	case steppedMsg:
		if msg.err != nil {
			m.fail(msg.err)
			break
		}
		m.step = msg.res
		m.index = msg.res.DebugIndex
		m.failed = false
		if msg.res.Found {
			m.cursor = msg.res.Highlight
			m.status = fmt.Sprintf("stopped before line %d", msg.res.Highlight)
		} else {
			m.status = "finished"
		}

	case expandedMsg:
		if msg.err != nil {
			m.fail(msg.err)
			break
		}
		if len(msg.children) == 0 {
			m.status = "no subroutine calls below " + msg.parent
			break
		}
		m.children = msg.children
		m.trail = append(m.trail, msg.parent)
		m.childIdx = 0
		m.focus = focusChildren

	case fileChangedMsg:
		m.status = "reloading " + m.path
		cmds = append(cmds, m.load())
		if m.watch != nil {
			cmds = append(cmds, m.watch.wait())
		}

	case watchErrMsg:
		m.logger.Warn("file watch error", "error", msg.err)
		if m.watch != nil {
			cmds = append(cmds, m.watch.wait())
		}

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	default:
		if m.focus == focusBreakpoints {
			var cmd tea.Cmd
			m.bpInput, cmd = m.bpInput.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	m.syncSource()
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key == "ctrl+c" {
		return tea.Quit
	}

	switch m.focus {
	case focusSource:
		if a, ok := keyActions[key]; ok {
			return m.stepCmd(a)
		}
		switch key {
		case "q":
			return tea.Quit
		case "up", "k":
			m.cursor = max(m.cursor-1, 1)
		case "down", "j":
			m.cursor = min(m.cursor+1, max(len(m.lines), 1))
		case "b", " ":
			return m.run(menuItem{cmd: cmdToggleBreakpoint})
		case "B":
			return m.run(menuItem{cmd: cmdEditBreakpoints})
		case "e":
			return m.run(menuItem{cmd: cmdExpand})
		case "t":
			return m.run(menuItem{cmd: cmdTransforms})
		case "R":
			return m.run(menuItem{cmd: cmdReload})
		case "a":
			m.focus = focusMenu
			m.menuCat = 0
			m.menuItem = 0
		}

	case focusMenu:
		switch key {
		case "esc", "a":
			m.focus = focusSource
		case "up", "k":
			m.menuItem = max(m.menuItem-1, 0)
		case "down", "j":
			m.menuItem = min(m.menuItem+1, len(actionMenu[m.menuCat].items)-1)
		case "left", "h":
			if m.menuCat > 0 {
				m.menuCat--
				m.menuItem = 0
			}
		case "right", "l":
			if m.menuCat < len(actionMenu)-1 {
				m.menuCat++
				m.menuItem = 0
			}
		case "enter":
			m.focus = focusSource
			return m.run(actionMenu[m.menuCat].items[m.menuItem])
		}

	case focusBreakpoints:
		switch key {
		case "esc":
			m.focus = focusSource
			m.bpInput.Blur()
		case "enter":
			m.bps = debugger.ParseBreakpoints(strings.ReplaceAll(m.bpInput.Value(), ",", " "))
			m.focus = focusSource
			m.bpInput.Blur()
			m.status = "breakpoints: " + orNone(m.bps.String())
		default:
			var cmd tea.Cmd
			m.bpInput, cmd = m.bpInput.Update(msg)
			return cmd
		}

	case focusChildren:
		switch key {
		case "esc", "e", "q":
			m.focus = focusSource
			m.children = nil
			m.trail = nil
		case "up", "k":
			m.childIdx = max(m.childIdx-1, 0)
		case "down", "j":
			m.childIdx = min(m.childIdx+1, len(m.children)-1)
		case "enter":
			c := m.children[m.childIdx]
			if c.HasChildren {
				return m.expandCmd(c.Name, c.ID)
			}
			m.status = c.Name + " calls no subroutines"
		}

	case focusTransforms:
		switch key {
		case "esc", "t", "q":
			m.focus = focusSource
		case "up", "k":
			m.transformIdx = max(m.transformIdx-1, 0)
		case "down", "j":
			m.transformIdx = min(m.transformIdx+1, len(m.vis.Transforms)-1)
		}
	}
	return nil
}

// run performs a menu command.
func (m *Model) run(item menuItem) tea.Cmd {
	switch item.cmd {
	case cmdStep:
		return m.stepCmd(item.action)
	case cmdToggleBreakpoint:
		m.bps.Toggle(m.cursor)
		m.status = "breakpoints: " + orNone(m.bps.String())
	case cmdEditBreakpoints:
		m.bpInput.SetValue(m.bps.String())
		m.focus = focusBreakpoints
		return m.bpInput.Focus()
	case cmdExpand:
		if m.vis == nil {
			return nil
		}
		m.trail = nil
		return m.expandCmd(m.vis.Name, m.vis.ID)
	case cmdTransforms:
		if m.vis == nil || len(m.vis.Transforms) == 0 {
			m.status = "no transforms"
			return nil
		}
		m.transformIdx = 0
		m.focus = focusTransforms
	case cmdReload:
		m.status = "reloading " + m.path
		return m.load()
	}
	return nil
}

func (m *Model) fail(err error) {
	m.failed = true
	var pe *cierrors.ProgramError
	if cierrors.As(err, &pe) {
		m.status = "error: " + pe.Error()
		if pe.Line > 0 {
			m.cursor = pe.Line
		}
		return
	}
	m.status = "error: " + err.Error()
	m.logger.Debug("request failed", "error", err)
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// syncSource refreshes the source viewport and keeps the cursor in view.
func (m *Model) syncSource() {
	m.source.SetContent(m.sourceContent())
	top := m.source.YOffset
	switch {
	case m.cursor-1 < top:
		m.source.SetYOffset(m.cursor - 1)
	case m.cursor-1 >= top+m.source.Height:
		m.source.SetYOffset(m.cursor - m.source.Height)
	}
}

// current is the source line execution is stopped before, or 0.
func (m Model) current() int {
	if m.step != nil && m.step.Found {
		return m.step.Highlight
	}
	return 0
}
