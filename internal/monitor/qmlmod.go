package monitor

import (
	"errors"
	"fmt"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"circinspect/internal/draw"
	"circinspect/internal/qasm"
	"circinspect/internal/qml"
	"circinspect/internal/sim"
)

// newQMLModule builds the pennylane module bound to one run.
func newQMLModule(in *interp) *starlarkstruct.Module {
	members := starlark.StringDict{
		"adjoint":   starlark.NewBuiltin("adjoint", in.adjoint),
		"ctrl":      starlark.NewBuiltin("ctrl", in.ctrl),
		"cond":      starlark.NewBuiltin("cond", in.cond),
		"measure":   starlark.NewBuiltin("measure", in.measure),
		"probs":     starlark.NewBuiltin("probs", in.measurement(qml.Probs)),
		"expval":    starlark.NewBuiltin("expval", in.measurement(qml.Expval)),
		"var":       starlark.NewBuiltin("var", in.measurement(qml.Var)),
		"sample":    starlark.NewBuiltin("sample", in.measurement(qml.Sample)),
		"counts":    starlark.NewBuiltin("counts", in.measurement(qml.Counts)),
		"state":     starlark.NewBuiltin("state", in.measurement(qml.State)),
		"device":    starlark.NewBuiltin("device", in.device),
		"qnode":     starlark.NewBuiltin("qnode", in.qnode),
		"QNode":     starlark.NewBuiltin("QNode", in.qnodeClass),
		"draw":      starlark.NewBuiltin("draw", in.draw),
		"from_qasm": starlark.NewBuiltin("from_qasm", in.fromQASM),
		"numpy":     numpyModule,
		"pi":        starlark.Float(piValue),
		"transforms": &starlarkstruct.Module{Name: "transforms", Members: starlark.StringDict{
			qml.CancelInverses: transformValue{qml.Transform{Name: qml.CancelInverses}},
			qml.MergeRotations: transformValue{qml.Transform{Name: qml.MergeRotations}},
			qml.Insert:         starlark.NewBuiltin(qml.Insert, insertTransform),
		}},
	}
	for _, name := range qml.GateNames() {
		spec, _ := qml.Lookup(name)
		members[name] = in.gate(spec, name)
	}
	return &starlarkstruct.Module{Name: "pennylane", Members: members}
}

func (in *interp) queueOp(op *qml.Operation) {
	if len(in.queues) > 0 {
		in.queues[len(in.queues)-1].AppendOp(op)
	}
}

func (in *interp) queueMeasurement(m *qml.Measurement) {
	if len(in.queues) > 0 {
		in.queues[len(in.queues)-1].AppendMeasurement(m)
	}
}

func (in *interp) unqueue(op *qml.Operation) {
	if len(in.queues) > 0 {
		in.queues[len(in.queues)-1].Remove(op)
	}
}

// capture calls fn with its own queue and returns what it queued.
func (in *interp) capture(thread *starlark.Thread, fn starlark.Value, args starlark.Tuple, kwargs []starlark.Tuple) ([]qml.Operation, starlark.Value, error) {
	in.queues = append(in.queues, &qml.Queue{})
	res, err := starlark.Call(thread, fn, args, kwargs)
	q := in.queues[len(in.queues)-1]
	in.queues = in.queues[:len(in.queues)-1]
	if err != nil {
		return nil, nil, err
	}
	for _, e := range q.Entries {
		if e.Measurement != nil {
			return nil, nil, errors.New("QuantumFunctionError: measurements cannot be wrapped")
		}
	}
	return q.Ops(), res, nil
}

func (in *interp) toWires(v starlark.Value) ([]int, error) {
	var wires []int
	add := func(x starlark.Value) error {
		w, err := starlark.AsInt32(x)
		if err != nil {
			return fmt.Errorf("WireError: wire labels must be integers, got %s", x.Type())
		}
		if w < 0 {
			return fmt.Errorf("WireError: wire %d is negative", w)
		}
		if in.opts.MaxWires > 0 && w >= in.opts.MaxWires {
			return fmt.Errorf("WireError: wire %d exceeds the limit of %d wires", w, in.opts.MaxWires)
		}
		if slices.Contains(wires, w) {
			return errors.New("WireError: wires must be unique")
		}
		wires = append(wires, w)
		return nil
	}
	if iterable, ok := v.(starlark.Iterable); ok {
		for x := range starlarkValues(iterable) {
			if err := add(x); err != nil {
				return nil, err
			}
		}
		return wires, nil
	}
	if err := add(v); err != nil {
		return nil, err
	}
	return wires, nil
}

func toFloat(v starlark.Value) (float64, error) {
	f, ok := starlark.AsFloat(v)
	if !ok {
		return 0, fmt.Errorf("TypeError: expected a number, got %s", v.Type())
	}
	return f, nil
}

func kwName(kv starlark.Tuple) string {
	return string(kv[0].(starlark.String))
}

// gate returns the constructor of one gate: parameters first, then wires,
// positionally or by keyword.
func (in *interp) gate(spec qml.GateSpec, name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		params := make([]starlark.Value, spec.Params)
		var wiresArg, controlArg starlark.Value
		for i, a := range args {
			switch {
			case i < spec.Params:
				params[i] = a
			case i == spec.Params:
				wiresArg = a
			default:
				return nil, fmt.Errorf("TypeError: %s() takes at most %d positional arguments", name, spec.Params+1)
			}
		}
		for _, kv := range kwargs {
			switch k := kwName(kv); {
			case k == "wires":
				wiresArg = kv[1]
			case k == "control_wires" && spec.Name == "MultiControlledX":
				controlArg = kv[1]
			case k == "id":
			default:
				i := slices.Index(spec.ParamNames, k)
				if i < 0 {
					return nil, fmt.Errorf("TypeError: %s() got an unexpected keyword argument '%s'", name, k)
				}
				params[i] = kv[1]
			}
		}

		op := &qml.Operation{Name: spec.Name, Kind: qml.KindGate, Token: in.token()}
		if spec.Name == "Barrier" {
			op.Kind = qml.KindBarrier
		}
		for i, p := range params {
			if p == nil {
				return nil, fmt.Errorf("TypeError: %s() missing parameter '%s'", name, spec.ParamNames[i])
			}
			f, err := toFloat(p)
			if err != nil {
				return nil, err
			}
			op.Params = append(op.Params, f)
		}
		if controlArg != nil {
			controls, err := in.toWires(controlArg)
			if err != nil {
				return nil, err
			}
			op.Wires = controls
		}
		if wiresArg != nil {
			wires, err := in.toWires(wiresArg)
			if err != nil {
				return nil, err
			}
			op.Wires = append(op.Wires, wires...)
		}
		switch {
		case len(op.Wires) == 0 && op.Kind != qml.KindBarrier:
			return nil, fmt.Errorf("TypeError: %s() missing required argument 'wires'", name)
		case spec.Wires > 0 && len(op.Wires) != spec.Wires:
			return nil, fmt.Errorf("ValueError: %s: wrong number of wires. %d wires given, %d expected", spec.Name, len(op.Wires), spec.Wires)
		case spec.Name == "MultiControlledX" && len(op.Wires) < 2:
			return nil, errors.New("ValueError: MultiControlledX needs at least one control wire")
		}
		in.queueOp(op)
		return opValue{op}, nil
	})
}

func (in *interp) adjoint(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, errors.New("TypeError: adjoint() takes exactly one argument")
	}
	if v, ok := args[0].(opValue); ok {
		if v.op.Kind != qml.KindGate {
			return nil, fmt.Errorf("TypeError: cannot take the adjoint of %s", v.op.Name)
		}
		in.unqueue(v.op)
		inv := v.op.Inverse()
		inv.Token = in.token()
		in.queueOp(&inv)
		return opValue{&inv}, nil
	}
	fn, ok := args[0].(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("TypeError: adjoint() expects an operation or a callable, got %s", args[0].Type())
	}
	return starlark.NewBuiltin("adjoint("+fn.Name()+")", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		ops, _, err := in.capture(thread, fn, args, kwargs)
		if err != nil {
			return nil, err
		}
		var last *qml.Operation
		for i := len(ops) - 1; i >= 0; i-- {
			if ops[i].Kind != qml.KindGate && ops[i].Kind != qml.KindBarrier {
				return nil, fmt.Errorf("TypeError: cannot take the adjoint of %s", ops[i].Name)
			}
			inv := ops[i].Inverse()
			inv.Token = in.token()
			in.queueOp(&inv)
			last = &inv
		}
		if len(ops) == 1 {
			return opValue{last}, nil
		}
		return starlark.None, nil
	}), nil
}

func (in *interp) ctrl(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target, control, values starlark.Value = nil, nil, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "op", &target, "control", &control, "control_values?", &values); err != nil {
		return nil, err
	}
	controls, err := in.toWires(control)
	if err != nil {
		return nil, err
	}
	flips, err := zeroControls(controls, values)
	if err != nil {
		return nil, err
	}

	wrap := func(ops []qml.Operation) (starlark.Value, error) {
		token := in.token()
		flip := func() {
			for _, w := range flips {
				in.queueOp(&qml.Operation{Name: "PauliX", Wires: []int{w}, Kind: qml.KindGate, Token: token})
			}
		}
		flip()
		var last *qml.Operation
		for _, o := range ops {
			c := o.Clone()
			for _, w := range controls {
				if slices.Contains(c.AllWires(), w) {
					return nil, errors.New("ValueError: the control wires must be different from the base operation wires")
				}
			}
			c.Controls = append(slices.Clone(controls), c.Controls...)
			c.Token = token
			in.queueOp(&c)
			last = &c
		}
		flip()
		if len(ops) == 1 {
			return opValue{last}, nil
		}
		return starlark.None, nil
	}

	if v, ok := target.(opValue); ok {
		in.unqueue(v.op)
		return wrap([]qml.Operation{*v.op})
	}
	fn, ok := target.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("TypeError: ctrl() expects an operation or a callable, got %s", target.Type())
	}
	return starlark.NewBuiltin("ctrl("+fn.Name()+")", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		ops, _, err := in.capture(thread, fn, args, kwargs)
		if err != nil {
			return nil, err
		}
		return wrap(ops)
	}), nil
}

// zeroControls returns the control wires that must read 0.
func zeroControls(controls []int, values starlark.Value) ([]int, error) {
	if values == starlark.None {
		return nil, nil
	}
	var bits []bool
	if iterable, ok := values.(starlark.Iterable); ok {
		for v := range starlarkValues(iterable) {
			bits = append(bits, bool(v.Truth()))
		}
	} else {
		bits = []bool{bool(values.Truth())}
	}
	if len(bits) != len(controls) {
		return nil, errors.New("ValueError: control_values must have one entry per control wire")
	}
	var zeros []int
	for i, b := range bits {
		if !b {
			zeros = append(zeros, controls[i])
		}
	}
	return zeros, nil
}

func (in *interp) cond(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var condition, trueFn starlark.Value
	var falseFn starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "condition", &condition, "true_fn", &trueFn, "false_fn?", &falseFn); err != nil {
		return nil, err
	}
	m, ok := condition.(measureValue)
	if !ok {
		return nil, fmt.Errorf("TypeError: cond() expects a mid-circuit measurement value, got %s", condition.Type())
	}
	branch := func(thread *starlark.Thread, fn starlark.Value, c *qml.Condition, args starlark.Tuple, kwargs []starlark.Tuple) error {
		if v, ok := fn.(opValue); ok {
			in.unqueue(v.op)
			op := v.op.Clone()
			op.Condition = c
			op.Token = in.token()
			in.queueOp(&op)
			return nil
		}
		ops, _, err := in.capture(thread, fn, args, kwargs)
		if err != nil {
			return err
		}
		for _, o := range ops {
			if o.Condition != nil {
				return errors.New("ValueError: nested conditions are not supported")
			}
			c2 := *c
			o.Condition = &c2
			o.Token = in.token()
			in.queueOp(&o)
		}
		return nil
	}
	return starlark.NewBuiltin("cond", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if err := branch(thread, trueFn, m.condition(), args, kwargs); err != nil {
			return nil, err
		}
		if falseFn != starlark.None {
			neg := measureValue{id: m.id, negated: !m.negated}
			if err := branch(thread, falseFn, neg.condition(), args, kwargs); err != nil {
				return nil, err
			}
		}
		return starlark.None, nil
	}), nil
}

func (in *interp) measure(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var wiresArg starlark.Value
	var reset bool
	var postselect starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "wires", &wiresArg, "reset?", &reset, "postselect?", &postselect); err != nil {
		return nil, err
	}
	if postselect != starlark.None {
		return nil, errors.New("ValueError: postselection is not supported")
	}
	wires, err := in.toWires(wiresArg)
	if err != nil {
		return nil, err
	}
	if len(wires) != 1 {
		return nil, errors.New("QuantumFunctionError: only a single wire can be measured")
	}
	op := &qml.Operation{Name: "MidMeasure", Kind: qml.KindMidMeasure, Wires: wires, MeasureID: in.measureID, Reset: reset, Token: in.token()}
	in.measureID++
	in.queueOp(op)
	return measureValue{id: op.MeasureID}, nil
}

// measurement returns the constructor of one terminal measurement kind.
func (in *interp) measurement(kind qml.MeasurementKind) func(*starlark.Thread, *starlark.Builtin, starlark.Tuple, []starlark.Tuple) (starlark.Value, error) {
	return func(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var target, wiresArg starlark.Value = starlark.None, starlark.None
		if kind == qml.State {
			if err := starlark.UnpackArgs(b.Name(), args, kwargs); err != nil {
				return nil, err
			}
		} else if err := starlark.UnpackArgs(b.Name(), args, kwargs, "op?", &target, "wires?", &wiresArg); err != nil {
			return nil, err
		}

		m := &qml.Measurement{Kind: kind, Token: in.token()}
		switch t := target.(type) {
		case opValue:
			spec, _ := qml.Lookup(t.op.Name)
			if !spec.Observable || len(t.op.Controls) > 0 || t.op.Condition != nil {
				return nil, fmt.Errorf("QuantumFunctionError: %s is not an observable", t.op.Name)
			}
			in.unqueue(t.op)
			obs := t.op.Clone()
			obs.Token = qml.NoToken
			m.Observable = &obs
		case starlark.NoneType:
		default:
			// probs(0) and sample([0, 1]) pass wires positionally.
			wiresArg = target
		}
		if m.Observable == nil && kind != qml.State && kind != qml.Probs && kind != qml.Sample && kind != qml.Counts {
			return nil, fmt.Errorf("QuantumFunctionError: %s() requires an observable", kind)
		}
		if wiresArg != starlark.None {
			if m.Observable != nil {
				return nil, fmt.Errorf("ValueError: %s() takes an observable or wires, not both", kind)
			}
			wires, err := in.toWires(wiresArg)
			if err != nil {
				return nil, err
			}
			m.Wires = wires
		}
		in.queueMeasurement(m)
		return measurementValue{m}, nil
	}
}

func (in *interp) device(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var name string
	var wiresArg, shotsArg starlark.Value = starlark.MakeInt(1), starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "name", &name, "wires?", &wiresArg, "shots?", &shotsArg); err != nil {
		return nil, err
	}
	if !slices.Contains(qml.SupportedDevices, name) {
		return nil, fmt.Errorf("DeviceError: Device %s does not exist", name)
	}
	dev := qml.Device{Name: name}
	if iterable, ok := wiresArg.(starlark.Iterable); ok {
		for range starlarkValues(iterable) {
			dev.Wires++
		}
	} else {
		n, err := starlark.AsInt32(wiresArg)
		if err != nil || n < 1 {
			return nil, errors.New("ValueError: wires must be a positive integer or a sequence of labels")
		}
		dev.Wires = n
	}
	if in.opts.MaxWires > 0 && dev.Wires > in.opts.MaxWires {
		return nil, fmt.Errorf("DeviceError: %d wires requested, at most %d are supported", dev.Wires, in.opts.MaxWires)
	}
	if shotsArg != starlark.None {
		n, err := starlark.AsInt32(shotsArg)
		if err != nil || n < 1 {
			return nil, errors.New("ValueError: shots must be a positive integer or None")
		}
		dev.Shots = n
	}

	fr := in.frames[len(in.frames)-1]
	in.emit(Event{Function: fr.name, Line: fr.lastLine, Kind: KindDevice, Origin: OriginLibrary, Device: &dev})
	return deviceValue{dev}, nil
}

func (in *interp) qnode(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	if len(args) != 1 {
		return nil, errors.New("TypeError: qnode() takes a device")
	}
	dev, ok := args[0].(deviceValue)
	if !ok {
		return nil, fmt.Errorf("TypeError: qnode() expects a device, got %s", args[0].Type())
	}
	// interface, diff_method and friends do not change simulation.
	return starlark.NewBuiltin("qnode", func(_ *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		if len(args) != 1 || len(kwargs) > 0 {
			return nil, errors.New("TypeError: qnode decorator takes one function")
		}
		return in.newQNode(args[0], dev.dev)
	}), nil
}

func (in *interp) qnodeClass(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn, devArg starlark.Value
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "func", &fn, "device", &devArg); err != nil {
		return nil, err
	}
	dev, ok := devArg.(deviceValue)
	if !ok {
		return nil, fmt.Errorf("TypeError: QNode() expects a device, got %s", devArg.Type())
	}
	return in.newQNode(fn, dev.dev)
}

func (in *interp) newQNode(fn starlark.Value, dev qml.Device) (starlark.Value, error) {
	c, ok := fn.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("TypeError: a circuit must be a function, got %s", fn.Type())
	}
	return &qnodeValue{in: in, fn: c, dev: dev}, nil
}

// qnodeValue is a circuit entry point: calling it runs the quantum
// function, applies its transforms and simulates the result.
type qnodeValue struct {
	in         *interp
	fn         starlark.Callable
	dev        qml.Device
	transforms []qml.Transform
}

var _ starlark.Callable = (*qnodeValue)(nil)

func (q *qnodeValue) String() string        { return fmt.Sprintf("<QNode: device='%s', wires=%d>", q.dev.Name, q.dev.Wires) }
func (q *qnodeValue) Type() string          { return "QNode" }
func (q *qnodeValue) Freeze()               {}
func (q *qnodeValue) Truth() starlark.Bool  { return starlark.True }
func (q *qnodeValue) Hash() (uint32, error) { return 0, fmt.Errorf("unhashable type: QNode") }
func (q *qnodeValue) Name() string          { return q.fn.Name() }

func (q *qnodeValue) withTransform(t qml.Transform) *qnodeValue {
	c := *q
	c.transforms = append(slices.Clone(q.transforms), t)
	return &c
}

// construct runs the quantum function and applies the transforms.
func (q *qnodeValue) construct(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (*CircuitRun, error) {
	in := q.in
	queue := &qml.Queue{}
	in.queues = append(in.queues, queue)
	res, err := starlark.Call(thread, q.fn, args, kwargs)
	in.queues = in.queues[:len(in.queues)-1]
	if err != nil {
		return nil, err
	}

	meas, ok := measurements(res)
	if !ok {
		if res != starlark.None {
			return nil, errors.New("QuantumFunctionError: a quantum function must return either a single measurement, or a nonempty sequence of measurements")
		}
		meas = queue.TerminalMeasurements()
	}
	ops, err := qml.ApplyAll(q.transforms, queue.Ops(), meas)
	if err != nil {
		return nil, err
	}
	return &CircuitRun{
		Name:         q.fn.Name(),
		Queue:        queue,
		Ops:          ops,
		Measurements: meas,
		Device:       q.dev,
		Transforms:   slices.Clone(q.transforms),
	}, nil
}

func (q *qnodeValue) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	in := q.in
	run, err := q.construct(thread, args, kwargs)
	if err != nil {
		return nil, err
	}
	if run.Result, err = sim.Run(run.Ops, run.Measurements, q.dev, sim.Options{Seed: in.opts.Seed, MaxWires: in.opts.MaxWires}); err != nil {
		return nil, err
	}
	fr := in.frames[len(in.frames)-1]
	in.emit(Event{Function: run.Name, Line: fr.lastLine, Kind: KindQueue, Origin: OriginLibrary, Value: run.Result.String(), Run: run})
	return toValue(run.Result), nil
}

func (in *interp) draw(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var target starlark.Value
	decimals := 2
	showPi := true
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "qnode", &target, "decimals?", &decimals, "show_pi?", &showPi); err != nil {
		return nil, err
	}
	q, ok := target.(*qnodeValue)
	if !ok {
		return nil, fmt.Errorf("TypeError: draw() expects a QNode, got %s", target.Type())
	}
	return starlark.NewBuiltin("draw("+q.Name()+")", func(thread *starlark.Thread, _ *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		run, err := q.construct(thread, args, kwargs)
		if err != nil {
			return nil, err
		}
		opts := draw.DefaultOptions()
		opts.Decimals, opts.ShowPi = decimals, showPi
		return starlark.String(draw.Draw(run.Ops, run.Measurements, q.dev.Wires, opts)), nil
	}), nil
}

func (in *interp) fromQASM(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var src string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "quantum_circuit", &src); err != nil {
		return nil, err
	}
	prog, err := qasm.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("QasmError: %w", err)
	}
	return starlark.NewBuiltin("from_qasm", func(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var wiresArg starlark.Value = starlark.None
		if err := starlark.UnpackArgs(b.Name(), args, kwargs, "wires?", &wiresArg); err != nil {
			return nil, err
		}
		wireMap := seq(prog.NumQubits)
		if wiresArg != starlark.None {
			if wireMap, err = in.toWires(wiresArg); err != nil {
				return nil, err
			}
			if len(wireMap) != prog.NumQubits {
				return nil, fmt.Errorf("ValueError: the circuit has %d qubits, %d wires given", prog.NumQubits, len(wireMap))
			}
		}
		base := in.measureID
		for _, o := range prog.Ops {
			op := o.Clone()
			for i, w := range op.Wires {
				op.Wires[i] = wireMap[w]
			}
			for i, w := range op.Controls {
				op.Controls[i] = wireMap[w]
			}
			if op.Kind == qml.KindMidMeasure {
				op.MeasureID += base
				in.measureID = max(in.measureID, op.MeasureID+1)
			}
			if op.Condition != nil {
				op.Condition.MeasureID += base
			}
			op.Token = in.token()
			in.queueOp(&op)
		}
		return starlark.None, nil
	}), nil
}

func insertTransform(thread *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var op, opArgs starlark.Value
	position := "all"
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "op", &op, "op_args", &opArgs, "position?", &position); err != nil {
		return nil, err
	}
	t := qml.Transform{Name: qml.Insert, Position: position}
	switch o := op.(type) {
	case starlark.String:
		t.Op = string(o)
	case *starlark.Builtin:
		t.Op = o.Name()
	default:
		return nil, fmt.Errorf("TypeError: insert() expects a gate, got %s", op.Type())
	}
	if spec, ok := qml.Lookup(t.Op); ok {
		t.Op = spec.Name
	}
	if iterable, ok := opArgs.(starlark.Iterable); ok {
		for v := range starlarkValues(iterable) {
			f, err := toFloat(v)
			if err != nil {
				return nil, err
			}
			t.Params = append(t.Params, f)
		}
	} else if opArgs != starlark.None {
		f, err := toFloat(opArgs)
		if err != nil {
			return nil, err
		}
		t.Params = []float64{f}
	}
	return transformValue{t}, nil
}
