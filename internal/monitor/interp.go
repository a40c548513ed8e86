package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/resolve"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	clog "circinspect/internal/log"
	"circinspect/internal/qml"
	perrors "circinspect/pkg/errors"
)

const filename = "<string>"

// Options bound a run.
type Options struct {
	// MaxSteps bounds executed statements plus Starlark evaluation steps.
	MaxSteps uint64
	// MaxCallDepth bounds nested user function calls.
	MaxCallDepth int
	// MaxWires bounds device sizes and wire indices.
	MaxWires int
	// Seed feeds finite-shot sampling.
	Seed uint64

	Logger *slog.Logger
}

type failure struct {
	line int
	msg  string
}

type control int

const (
	ctlNone control = iota
	ctlBreak
	ctlContinue
	ctlReturn
)

// frame is one activation of user code.
type frame struct {
	name    string
	fn      *Function
	locals  starlark.StringDict
	globals map[string]bool
	// enclosing is the lexical parent frame of a nested function.
	enclosing *frame

	event    int
	lastLine int
}

type interp struct {
	ctx    context.Context
	opts   Options
	logger *slog.Logger
	thread *starlark.Thread
	rec    Recorder

	trace    *Trace
	stdout   strings.Builder
	builtins starlark.StringDict
	modules  map[string]starlark.Value
	module   *frame

	frames    []*frame
	queues    []*qml.Queue
	steps     uint64
	measureID int
	failure   *failure
}

// Run parses and executes src once. rec, when non-nil, sees every event
// as it is recorded.
//
// A program that fails yields a *errors.ProgramError naming the innermost
// user line that failed; a context deadline yields *errors.TimeoutError.
// The partial trace is returned in both cases.
func Run(ctx context.Context, src string, opts Options, rec Recorder) (*Trace, error) {
	in := &interp{
		ctx:    ctx,
		opts:   opts,
		logger: clog.WithComponent(clog.Or(opts.Logger), "monitor"),
		rec:    rec,
		trace:  &Trace{},
	}
	in.thread = &starlark.Thread{
		Name: "program",
		Print: func(_ *starlark.Thread, msg string) {
			in.stdout.WriteString(msg)
			in.stdout.WriteByte('\n')
		},
	}
	if opts.MaxSteps > 0 {
		in.thread.SetMaxExecutionSteps(opts.MaxSteps)
	}
	stop := context.AfterFunc(ctx, func() { in.thread.Cancel(ctx.Err().Error()) })
	defer stop()

	in.builtins = builtins()
	in.modules = map[string]starlark.Value{
		"pennylane": newQMLModule(in),
		"numpy":     numpyModule,
		"math":      mathModule,
	}
	in.module = &frame{name: ModuleFunction, locals: starlark.StringDict{}}

	err := in.run(src)
	in.trace.Stdout = in.stdout.String()
	in.logger.Debug("program finished", "events", len(in.trace.Events), "runs", in.trace.Runs(), "error", err)
	return in.trace, err
}

func (in *interp) run(src string) error {
	nodes, err := parseProgram(src)
	if err != nil {
		var se *syntaxError
		if errors.As(err, &se) {
			return &perrors.ProgramError{Message: se.msg, Line: se.line}
		}
		return err
	}

	in.frames = append(in.frames, in.module)
	_, _, err = in.execBlock(in.module, nodes)
	in.frames = in.frames[:len(in.frames)-1]
	if err == nil {
		return nil
	}
	if ctxErr := in.ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return &perrors.TimeoutError{}
		}
		return ctxErr
	}
	if in.failure != nil {
		return &perrors.ProgramError{Message: in.failure.msg, Line: in.failure.line}
	}
	return &perrors.ProgramError{Message: message(err)}
}

// message strips Starlark's positions and call stack from an error and
// names it the way Python would.
func message(err error) string {
	var ee *starlark.EvalError
	if errors.As(err, &ee) {
		if strings.Contains(ee.Msg, "too many steps") {
			return "execution step limit exceeded"
		}
		return pythonMessage(ee.Msg)
	}
	var rl resolve.ErrorList
	if errors.As(err, &rl) && len(rl) > 0 {
		if name, ok := strings.CutPrefix(rl[0].Msg, "undefined: "); ok {
			name, _, _ = strings.Cut(name, " ")
			return fmt.Sprintf("NameError: name '%s' is not defined", name)
		}
		return "SyntaxError: " + rl[0].Msg
	}
	var se syntax.Error
	if errors.As(err, &se) {
		return "SyntaxError: " + se.Msg
	}
	return pythonMessage(err.Error())
}

// zeroDivision maps interpreter arithmetic errors to their Python wording.
var zeroDivision = []struct{ from, to string }{
	{"floating-point division by zero", "ZeroDivisionError: division by zero"},
	{"integer division by zero", "ZeroDivisionError: integer division or modulo by zero"},
	{"floating-point modulo by zero", "ZeroDivisionError: float modulo"},
	{"integer modulo by zero", "ZeroDivisionError: integer modulo by zero"},
}

func pythonMessage(msg string) string {
	for _, z := range zeroDivision {
		if strings.Contains(msg, z.from) {
			return z.to
		}
	}
	return msg
}

// fail records the first failing line; nested calls fail first, so the
// recorded line is the innermost one.
func (in *interp) fail(line int, err error) error {
	if in.failure == nil {
		in.failure = &failure{line: line, msg: message(err)}
	}
	return err
}

func (in *interp) emit(ev Event) int {
	idx := len(in.trace.Events)
	in.trace.Events = append(in.trace.Events, ev)
	if in.rec != nil {
		in.rec(idx, ev)
	}
	if in.logger.Enabled(in.ctx, clog.LevelTrace) {
		in.logger.Log(in.ctx, clog.LevelTrace, "event", "index", idx, "function", ev.Function, clog.LineKey, ev.Line, "kind", ev.Kind)
	}
	return idx
}

// token is the correlation token for an entry queued now: the index of
// the line event the innermost user frame is executing.
func (in *interp) token() int {
	if len(in.frames) == 0 {
		return qml.NoToken
	}
	return in.frames[len(in.frames)-1].event
}

func (in *interp) step() error {
	if err := in.ctx.Err(); err != nil {
		return err
	}
	in.steps++
	if in.opts.MaxSteps > 0 && in.steps > in.opts.MaxSteps {
		return errors.New("execution step limit exceeded")
	}
	return nil
}

func (fr *frame) args() []Argument {
	if fr.fn == nil {
		return nil
	}
	out := make([]Argument, 0, len(fr.fn.params))
	for _, p := range fr.fn.params {
		if v, ok := fr.locals[p.name]; ok {
			out = append(out, Argument{Name: p.name, Value: v.String()})
		}
	}
	return out
}

func (in *interp) lineEvent(fr *frame, line int) {
	fr.event = in.emit(Event{Function: fr.name, Line: line, Kind: KindLine, Origin: OriginUser, Args: fr.args()})
	fr.lastLine = line
}

// env builds the name environment an expression in fr sees.
func (in *interp) env(fr *frame) starlark.StringDict {
	env := make(starlark.StringDict, len(in.builtins)+len(in.module.locals)+len(fr.locals))
	for k, v := range in.builtins {
		env[k] = v
	}
	for k, v := range in.module.locals {
		env[k] = v
	}
	var chain []*frame
	for f := fr; f != nil && f != in.module; f = f.enclosing {
		chain = append(chain, f)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		for k, v := range chain[i].locals {
			env[k] = v
		}
	}
	return env
}

func (in *interp) evalText(fr *frame, text string) (starlark.Value, error) {
	expr, err := syntax.ParseExpr(filename, text, 0)
	if err != nil {
		return nil, err
	}
	return in.eval(fr, expr)
}

func (in *interp) eval(fr *frame, expr syntax.Expr) (starlark.Value, error) {
	return starlark.EvalExpr(in.thread, expr, in.env(fr))
}

func (in *interp) execBlock(fr *frame, nodes []*node) (control, starlark.Value, error) {
	for _, n := range nodes {
		ctl, v, err := in.exec(fr, n)
		if err != nil || ctl != ctlNone {
			return ctl, v, err
		}
	}
	return ctlNone, nil, nil
}

func (in *interp) exec(fr *frame, n *node) (control, starlark.Value, error) {
	if err := in.step(); err != nil {
		return ctlNone, nil, in.fail(n.line, err)
	}

	switch n.kind {
	case nodeIf:
		in.lineEvent(fr, n.line)
		cond, err := in.evalText(fr, n.header)
		if err != nil {
			return ctlNone, nil, in.fail(n.line, err)
		}
		if cond.Truth() {
			return in.execBlock(fr, n.body)
		}
		return in.execBlock(fr, n.orelse)

	case nodeWhile:
		for {
			in.lineEvent(fr, n.line)
			cond, err := in.evalText(fr, n.header)
			if err != nil {
				return ctlNone, nil, in.fail(n.line, err)
			}
			if !cond.Truth() {
				return ctlNone, nil, nil
			}
			ctl, v, err := in.execBlock(fr, n.body)
			if err != nil || ctl == ctlReturn {
				return ctl, v, err
			}
			if ctl == ctlBreak {
				return ctlNone, nil, nil
			}
			if err := in.step(); err != nil {
				return ctlNone, nil, in.fail(n.line, err)
			}
		}

	case nodeFor:
		return in.execFor(fr, n)

	case nodeDef:
		line := n.firstLine()
		in.lineEvent(fr, line)
		if err := in.define(fr, n); err != nil {
			return ctlNone, nil, in.fail(line, err)
		}
		return ctlNone, nil, nil

	case nodeImport:
		in.lineEvent(fr, n.line)
		if err := in.importStmt(fr, n.text); err != nil {
			return ctlNone, nil, in.fail(n.line, err)
		}
		return ctlNone, nil, nil

	case nodeGlobal:
		in.lineEvent(fr, n.line)
		if fr.globals == nil {
			fr.globals = make(map[string]bool)
		}
		for _, name := range strings.Split(n.header, ",") {
			fr.globals[strings.TrimSpace(name)] = true
		}
		return ctlNone, nil, nil
	}

	in.lineEvent(fr, n.line)
	file, err := syntax.Parse(filename, n.text+"\n", 0)
	if err != nil {
		return ctlNone, nil, in.fail(n.line, fmt.Errorf("SyntaxError: %s", syntaxMessage(err)))
	}
	for _, stmt := range file.Stmts {
		ctl, v, err := in.simple(fr, stmt)
		if err != nil {
			return ctlNone, nil, in.fail(n.line, err)
		}
		if ctl != ctlNone {
			return ctl, v, nil
		}
	}
	return ctlNone, nil, nil
}

func syntaxMessage(err error) string {
	var se syntax.Error
	if errors.As(err, &se) {
		return se.Msg
	}
	return err.Error()
}

func (in *interp) execFor(fr *frame, n *node) (control, starlark.Value, error) {
	file, err := syntax.Parse(filename, "for "+n.header+":\n    pass\n", 0)
	if err != nil {
		in.lineEvent(fr, n.line)
		return ctlNone, nil, in.fail(n.line, fmt.Errorf("SyntaxError: %s", syntaxMessage(err)))
	}
	loop, ok := file.Stmts[0].(*syntax.ForStmt)
	if !ok {
		in.lineEvent(fr, n.line)
		return ctlNone, nil, in.fail(n.line, errors.New("SyntaxError: invalid for statement"))
	}

	in.lineEvent(fr, n.line)
	seq, err := in.eval(fr, loop.X)
	if err != nil {
		return ctlNone, nil, in.fail(n.line, err)
	}
	iterable, ok := seq.(starlark.Iterable)
	if !ok {
		return ctlNone, nil, in.fail(n.line, fmt.Errorf("TypeError: '%s' object is not iterable", seq.Type()))
	}
	// Iterating a snapshot lets the body mutate the sequence.
	var items []starlark.Value
	iter := iterable.Iterate()
	var x starlark.Value
	for iter.Next(&x) {
		items = append(items, x)
	}
	iter.Done()

	for i, item := range items {
		if i > 0 {
			in.lineEvent(fr, n.line)
		}
		if err := in.assign(fr, loop.Vars, item); err != nil {
			return ctlNone, nil, in.fail(n.line, err)
		}
		ctl, v, err := in.execBlock(fr, n.body)
		if err != nil || ctl == ctlReturn {
			return ctl, v, err
		}
		if ctl == ctlBreak {
			return ctlNone, nil, nil
		}
		if err := in.step(); err != nil {
			return ctlNone, nil, in.fail(n.line, err)
		}
	}
	if len(items) > 0 {
		// The exhausted iterator is checked once more on the header.
		in.lineEvent(fr, n.line)
	}
	return ctlNone, nil, nil
}

func (in *interp) simple(fr *frame, stmt syntax.Stmt) (control, starlark.Value, error) {
	switch s := stmt.(type) {
	case *syntax.ExprStmt:
		_, err := in.eval(fr, s.X)
		return ctlNone, nil, err

	case *syntax.AssignStmt:
		rhs, err := in.eval(fr, s.RHS)
		if err != nil {
			return ctlNone, nil, err
		}
		if s.Op != syntax.EQ {
			lhs, err := in.eval(fr, s.LHS)
			if err != nil {
				return ctlNone, nil, err
			}
			if rhs, err = starlark.Binary(syntax.Token(s.Op-syntax.PLUS_EQ+syntax.PLUS), lhs, rhs); err != nil {
				return ctlNone, nil, err
			}
		}
		return ctlNone, nil, in.assign(fr, s.LHS, rhs)

	case *syntax.ReturnStmt:
		if fr.fn == nil {
			return ctlNone, nil, errors.New("SyntaxError: 'return' outside function")
		}
		if s.Result == nil {
			return ctlReturn, starlark.None, nil
		}
		v, err := in.eval(fr, s.Result)
		return ctlReturn, v, err

	case *syntax.BranchStmt:
		switch s.Token {
		case syntax.BREAK:
			return ctlBreak, nil, nil
		case syntax.CONTINUE:
			return ctlContinue, nil, nil
		}
		return ctlNone, nil, nil
	}
	return ctlNone, nil, fmt.Errorf("SyntaxError: unsupported statement")
}

// assign binds v to a target expression: a name, a tuple or list of
// targets, an index or an attribute.
func (in *interp) assign(fr *frame, lhs syntax.Expr, v starlark.Value) error {
	switch t := lhs.(type) {
	case *syntax.Ident:
		in.setName(fr, t.Name, v)
		return nil

	case *syntax.ParenExpr:
		return in.assign(fr, t.X, v)

	case *syntax.TupleExpr:
		return in.unpack(fr, t.List, v)

	case *syntax.ListExpr:
		return in.unpack(fr, t.List, v)

	case *syntax.IndexExpr:
		x, err := in.eval(fr, t.X)
		if err != nil {
			return err
		}
		y, err := in.eval(fr, t.Y)
		if err != nil {
			return err
		}
		return setIndex(x, y, v)

	case *syntax.DotExpr:
		x, err := in.eval(fr, t.X)
		if err != nil {
			return err
		}
		if sf, ok := x.(starlark.HasSetField); ok {
			return sf.SetField(t.Name.Name, v)
		}
		return fmt.Errorf("AttributeError: '%s' object attribute '%s' is read-only", x.Type(), t.Name.Name)
	}
	return errors.New("SyntaxError: cannot assign to expression")
}

func (in *interp) unpack(fr *frame, targets []syntax.Expr, v starlark.Value) error {
	iterable, ok := v.(starlark.Iterable)
	if !ok {
		return fmt.Errorf("TypeError: cannot unpack non-iterable %s object", v.Type())
	}
	var items []starlark.Value
	iter := iterable.Iterate()
	var x starlark.Value
	for iter.Next(&x) {
		items = append(items, x)
	}
	iter.Done()
	switch {
	case len(items) > len(targets):
		return fmt.Errorf("ValueError: too many values to unpack (expected %d)", len(targets))
	case len(items) < len(targets):
		return fmt.Errorf("ValueError: not enough values to unpack (expected %d, got %d)", len(targets), len(items))
	}
	for i, t := range targets {
		if err := in.assign(fr, t, items[i]); err != nil {
			return err
		}
	}
	return nil
}

func setIndex(x, y, v starlark.Value) error {
	if m, ok := x.(starlark.HasSetKey); ok {
		return m.SetKey(y, v)
	}
	if s, ok := x.(starlark.HasSetIndex); ok {
		i, err := starlark.AsInt32(y)
		if err != nil {
			return fmt.Errorf("TypeError: indices must be integers, not %s", y.Type())
		}
		if i < 0 {
			i += s.Len()
		}
		if i < 0 || i >= s.Len() {
			return errors.New("IndexError: list assignment index out of range")
		}
		return s.SetIndex(i, v)
	}
	return fmt.Errorf("TypeError: '%s' object does not support item assignment", x.Type())
}

func (in *interp) setName(fr *frame, name string, v starlark.Value) {
	if fr == in.module || fr.globals[name] {
		in.module.locals[name] = v
		return
	}
	fr.locals[name] = v
}
