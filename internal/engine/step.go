package engine

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"

	"circinspect/internal/command"
	"circinspect/internal/debugger"
	clog "circinspect/internal/log"
	"circinspect/internal/metrics"
	"circinspect/internal/qasm"
	"circinspect/internal/qml"
	"circinspect/internal/replay"
	"circinspect/internal/session"
	"circinspect/internal/source"
)

// StepRequest moves the debugger one action from DebugIndex.
type StepRequest struct {
	Token       string
	DebugIndex  int
	Action      debugger.Action
	Breakpoints debugger.Breakpoints

	// Mark, when set, decorates the operations of the last quantum
	// command before the new index.
	Mark func(string) string
}

// StepResult is the circuit state at the new debug index.
type StepResult struct {
	RequestID  string `json:"request_id"`
	DebugIndex int    `json:"debug_index"`
	// Highlight is the source line about to run, or -1 at the end.
	Highlight int `json:"highlight"`
	// EndIdx bounds the commands a following Expand considers.
	EndIdx  int     `json:"end_idx"`
	Found   bool    `json:"found"`
	Diagram string  `json:"diagram"`
	Output  string  `json:"output"`
	Timings Timings `json:"timings"`
}

// Step applies one debugger action to the model in the token.
func (e *Engine) Step(ctx context.Context, req StepRequest) (res *StepResult, err error) {
	ctx, r := e.begin(ctx, FlowStep)
	defer e.end(r, &err)

	if _, err := debugger.ParseAction(string(req.Action)); err != nil {
		return nil, err
	}
	m, err := session.Decode(req.Token)
	if err != nil {
		return nil, err
	}

	_, span := e.tracer.Start(ctx, "engine.navigate")
	next, found := debugger.Navigate(m.Commands, req.DebugIndex, req.Action, req.Breakpoints)
	span.SetAttributes(attribute.Int("from", req.DebugIndex), attribute.Int("to", next), attribute.Bool("found", found))
	span.End()
	metrics.ObserveStep(string(req.Action), found)

	end := len(m.Commands)
	if !found || next < 0 || next >= end {
		next, found = end, false
	}

	opts := e.DrawOptions()
	if req.Mark != nil {
		opts.Mark = req.Mark
		opts.Highlight = lastQuantum(m.Commands, next)
	}
	cut := next
	if !found {
		cut = -1
	}
	snap, err := replay.Run(m, cut, e.replayOptions(opts))
	if err != nil {
		return nil, err
	}

	res = &StepResult{
		RequestID:  r.id,
		DebugIndex: next,
		Highlight:  -1,
		EndIdx:     next,
		Found:      found,
		Diagram:    snap.Diagram,
		Output:     snap.Output.String(),
	}
	if found {
		res.Highlight = m.Commands[next].Line
	}
	r.logger.Debug("debug step",
		clog.ActionKey, req.Action,
		clog.DebugIndexKey, next,
		"from", req.DebugIndex,
		"found", found)
	res.Timings = r.timings()
	return res, nil
}

// lastQuantum selects the operations of the last quantum command before
// index.
func lastQuantum(cmds []command.Command, index int) func(op qml.Operation) bool {
	var tokens []int
	for i := min(index, len(cmds)) - 1; i >= 0; i-- {
		if cmds[i].IsQuantum() {
			for _, o := range cmds[i].Ops {
				if o.Token != qml.NoToken {
					tokens = append(tokens, o.Token)
				}
			}
			break
		}
	}
	return func(op qml.Operation) bool { return slices.Contains(tokens, op.Token) }
}

// Expand summarizes the subroutine calls directly below command id,
// considering only commands before endIdx. A negative endIdx considers
// all of them.
func (e *Engine) Expand(ctx context.Context, token string, id, endIdx int) (children []command.Child, err error) {
	_, r := e.begin(ctx, FlowExpand)
	defer e.end(r, &err)

	m, err := session.Decode(token)
	if err != nil {
		return nil, err
	}
	if id < 0 || id >= len(m.Commands) {
		return nil, fmt.Errorf("command %d is out of range [0, %d)", id, len(m.Commands))
	}
	children = command.ExpandChildren(m.Commands, id, endIdx, m.Device.Wires, e.DrawOptions())
	r.logger.Debug("expanded", "id", id, "end_idx", endIdx, "children", len(children))
	return children, nil
}

// QASM exports the quantum commands of a program before cut as an
// OpenQASM 2.0 program with the terminal measurements. A negative cut
// exports the whole circuit.
func (e *Engine) QASM(ctx context.Context, program string, cut int) (out string, err error) {
	ctx, r := e.begin(ctx, FlowQASM)
	defer e.end(r, &err)

	src := source.Normalize(program)
	if err := source.CheckRestricted(src); err != nil {
		return "", err
	}
	plain := source.CommentOutTransforms(src)
	tr, err := e.execute(ctx, r, plain)
	if err != nil {
		return "", err
	}
	m, err := e.build(ctx, r, tr, plain)
	if err != nil {
		return "", err
	}
	return qasm.Emit(replay.Ops(m.Commands, cut), m.Terminal(), m.Device.Wires)
}
