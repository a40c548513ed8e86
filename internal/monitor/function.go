package monitor

import (
	"errors"
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"circinspect/internal/qml"
)

type paramKind uint8

const (
	paramPlain paramKind = iota
	paramArgs
	paramKwargs
)

type param struct {
	name string
	kind paramKind
	def  starlark.Value
}

// Function is a user-defined function. Calling it records a call event,
// runs its body in a fresh frame and records a return event.
type Function struct {
	in        *interp
	name      string
	node      *node
	params    []param
	enclosing *frame

	// transforms decorate a quantum subroutine; they rewrite whatever
	// the body queues.
	transforms []qml.Transform
}

var _ starlark.Callable = (*Function)(nil)

func (f *Function) String() string        { return fmt.Sprintf("<function %s>", f.name) }
func (f *Function) Type() string          { return "function" }
func (f *Function) Freeze()               {}
func (f *Function) Truth() starlark.Bool  { return starlark.True }
func (f *Function) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: function") }
func (f *Function) Name() string          { return f.name }

// withTransform returns a copy of f that applies t to what it queues.
func (f *Function) withTransform(t qml.Transform) *Function {
	g := *f
	g.transforms = append(append([]qml.Transform(nil), f.transforms...), t)
	return &g
}

func (f *Function) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	in := f.in
	if in.opts.MaxCallDepth > 0 && len(in.frames) > in.opts.MaxCallDepth {
		return nil, errors.New("RecursionError: maximum recursion depth exceeded")
	}
	locals, err := f.bind(args, kwargs)
	if err != nil {
		return nil, err
	}

	fr := &frame{name: f.name, fn: f, locals: locals, enclosing: f.enclosing}
	line := f.node.firstLine()
	fr.event = in.emit(Event{Function: f.name, Line: line, Kind: KindCall, Origin: OriginUser, Args: fr.args()})
	fr.lastLine = line

	if len(f.transforms) > 0 {
		in.queues = append(in.queues, &qml.Queue{})
	}
	in.frames = append(in.frames, fr)
	ctl, result, err := in.execBlock(fr, f.node.body)
	in.frames = in.frames[:len(in.frames)-1]
	if len(f.transforms) > 0 {
		q := in.queues[len(in.queues)-1]
		in.queues = in.queues[:len(in.queues)-1]
		if err == nil {
			err = in.requeue(q, f.transforms)
		}
	}
	if err != nil {
		return nil, err
	}
	if ctl != ctlReturn || result == nil {
		result = starlark.None
	}
	in.emit(Event{Function: f.name, Line: fr.lastLine, Kind: KindReturn, Origin: OriginUser, Value: result.String(), Args: fr.args()})
	return result, nil
}

// requeue applies transforms to the operations of q and queues the result
// into the enclosing queue, followed by q's measurements.
func (in *interp) requeue(q *qml.Queue, transforms []qml.Transform) error {
	ops, err := qml.ApplyAll(transforms, q.Ops(), q.TerminalMeasurements())
	if err != nil {
		return err
	}
	for i := range ops {
		in.queueOp(&ops[i])
	}
	for _, e := range q.Entries {
		if e.Measurement != nil {
			in.queueMeasurement(e.Measurement)
		}
	}
	return nil
}

func (f *Function) bind(args starlark.Tuple, kwargs []starlark.Tuple) (starlark.StringDict, error) {
	locals := make(starlark.StringDict, len(f.params))
	var varargs *param
	var varkw *param
	var positional []param
	for i := range f.params {
		switch f.params[i].kind {
		case paramArgs:
			varargs = &f.params[i]
		case paramKwargs:
			varkw = &f.params[i]
		default:
			positional = append(positional, f.params[i])
		}
	}

	rest := starlark.Tuple{}
	for i, a := range args {
		if i < len(positional) {
			locals[positional[i].name] = a
			continue
		}
		if varargs == nil {
			return nil, fmt.Errorf("TypeError: %s() takes %d positional arguments but %d were given", f.name, len(positional), len(args))
		}
		rest = append(rest, a)
	}
	if varargs != nil {
		locals[varargs.name] = rest
	}

	var extra *starlark.Dict
	if varkw != nil {
		extra = starlark.NewDict(len(kwargs))
		locals[varkw.name] = extra
	}
	for _, kv := range kwargs {
		name := string(kv[0].(starlark.String))
		known := false
		for _, p := range positional {
			if p.name == name {
				known = true
				break
			}
		}
		switch {
		case known:
			if _, dup := locals[name]; dup {
				return nil, fmt.Errorf("TypeError: %s() got multiple values for argument '%s'", f.name, name)
			}
			locals[name] = kv[1]
		case extra != nil:
			if err := extra.SetKey(kv[0], kv[1]); err != nil {
				return nil, err
			}
		default:
			return nil, fmt.Errorf("TypeError: %s() got an unexpected keyword argument '%s'", f.name, name)
		}
	}

	var missing []string
	for _, p := range positional {
		if _, ok := locals[p.name]; ok {
			continue
		}
		if p.def != nil {
			locals[p.name] = p.def
			continue
		}
		missing = append(missing, "'"+p.name+"'")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("TypeError: %s() missing %d required positional argument(s): %s", f.name, len(missing), strings.Join(missing, ", "))
	}
	return locals, nil
}

// define binds the function defined by n in fr, applying its decorators
// innermost first.
func (in *interp) define(fr *frame, n *node) error {
	file, err := syntax.Parse(filename, "def "+n.header+":\n    pass\n", 0)
	if err != nil {
		return fmt.Errorf("SyntaxError: %s", syntaxMessage(err))
	}
	def, ok := file.Stmts[0].(*syntax.DefStmt)
	if !ok {
		return errors.New("SyntaxError: invalid function definition")
	}

	f := &Function{in: in, name: def.Name.Name, node: n, enclosing: fr}
	for _, p := range def.Params {
		switch p := p.(type) {
		case *syntax.Ident:
			f.params = append(f.params, param{name: p.Name})
		case *syntax.BinaryExpr:
			id, ok := p.X.(*syntax.Ident)
			if p.Op != syntax.EQ || !ok {
				return errors.New("SyntaxError: invalid parameter")
			}
			v, err := in.eval(fr, p.Y)
			if err != nil {
				return err
			}
			f.params = append(f.params, param{name: id.Name, def: v})
		case *syntax.UnaryExpr:
			id, ok := p.X.(*syntax.Ident)
			if !ok {
				return errors.New("SyntaxError: keyword-only parameters are not supported")
			}
			kind := paramArgs
			if p.Op == syntax.STARSTAR {
				kind = paramKwargs
			}
			f.params = append(f.params, param{name: id.Name, kind: kind})
		}
	}

	var v starlark.Value = f
	for i := len(n.decorators) - 1; i >= 0; i-- {
		dec, err := in.evalText(fr, n.decorators[i].expr)
		if err != nil {
			return err
		}
		if v, err = starlark.Call(in.thread, dec, starlark.Tuple{v}, nil); err != nil {
			return err
		}
	}
	in.setName(fr, f.name, v)
	return nil
}

// importStmt binds the modules or names of an import statement.
func (in *interp) importStmt(fr *frame, text string) error {
	if rest, ok := strings.CutPrefix(text, "from "); ok {
		modName, names, ok := strings.Cut(rest, " import ")
		if !ok {
			return errors.New("SyntaxError: invalid syntax")
		}
		mod, err := in.resolveModule(strings.TrimSpace(modName))
		if err != nil {
			return err
		}
		names = strings.Trim(strings.TrimSpace(names), "()")
		for _, item := range strings.Split(names, ",") {
			name, alias := splitAlias(item)
			if name == "*" {
				if err := in.importAll(fr, mod); err != nil {
					return err
				}
				continue
			}
			v, err := attr(mod, name)
			if err != nil {
				return fmt.Errorf("ImportError: cannot import name '%s' from '%s'", name, strings.TrimSpace(modName))
			}
			in.setName(fr, alias, v)
		}
		return nil
	}

	rest := strings.TrimSpace(strings.TrimPrefix(text, "import"))
	for _, item := range strings.Split(rest, ",") {
		name, alias := splitAlias(item)
		mod, err := in.resolveModule(name)
		if err != nil {
			return err
		}
		if alias == name && strings.Contains(name, ".") {
			root, _, _ := strings.Cut(name, ".")
			rootMod, err := in.resolveModule(root)
			if err != nil {
				return err
			}
			in.setName(fr, root, rootMod)
			continue
		}
		in.setName(fr, alias, mod)
	}
	return nil
}

func (in *interp) importAll(fr *frame, mod starlark.Value) error {
	ha, ok := mod.(starlark.HasAttrs)
	if !ok {
		return nil
	}
	for _, name := range ha.AttrNames() {
		v, err := ha.Attr(name)
		if err != nil {
			return err
		}
		in.setName(fr, name, v)
	}
	return nil
}

func splitAlias(item string) (name, alias string) {
	item = strings.TrimSpace(item)
	if n, a, ok := strings.Cut(item, " as "); ok {
		return strings.TrimSpace(n), strings.TrimSpace(a)
	}
	return item, item
}

// resolveModule resolves a possibly dotted module path.
func (in *interp) resolveModule(path string) (starlark.Value, error) {
	parts := strings.Split(path, ".")
	mod, ok := in.modules[parts[0]]
	if !ok {
		return nil, fmt.Errorf("ModuleNotFoundError: No module named '%s'", parts[0])
	}
	for _, p := range parts[1:] {
		v, err := attr(mod, p)
		if err != nil {
			return nil, fmt.Errorf("ModuleNotFoundError: No module named '%s'", path)
		}
		mod = v
	}
	return mod, nil
}

func attr(v starlark.Value, name string) (starlark.Value, error) {
	ha, ok := v.(starlark.HasAttrs)
	if !ok {
		return nil, fmt.Errorf("'%s' object has no attribute '%s'", v.Type(), name)
	}
	a, err := ha.Attr(name)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, fmt.Errorf("'%s' object has no attribute '%s'", v.Type(), name)
	}
	return a, nil
}
