package engine

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"circinspect/internal/command"
	clog "circinspect/internal/log"
	"circinspect/internal/metrics"
	"circinspect/internal/monitor"
	"circinspect/internal/replay"
	"circinspect/internal/session"
	"circinspect/internal/source"
	"circinspect/internal/transform"
)

// Visualization is the response to Visualize.
type Visualization struct {
	RequestID string `json:"request_id"`

	// Name, ID, Line and Arguments describe the circuit entry point.
	Name      string             `json:"name"`
	ID        int                `json:"id"`
	Line      int                `json:"line_number"`
	Arguments []monitor.Argument `json:"arguments,omitempty"`

	Diagram    string             `json:"diagram"`
	Output     string             `json:"output"`
	Children   []command.Child    `json:"children"`
	Transforms []transform.Record `json:"transforms,omitempty"`
	Device     command.DeviceInfo `json:"device"`

	Token      string  `json:"token"`
	DebugIndex int     `json:"debug_index"`
	Commands   int     `json:"commands"`
	Stdout     string  `json:"stdout,omitempty"`
	Timings    Timings `json:"timings"`
}

// Visualize runs a program, builds its command model and returns the
// whole-circuit view with a session token for later steps.
func (e *Engine) Visualize(ctx context.Context, program string) (v *Visualization, err error) {
	ctx, r := e.begin(ctx, FlowVisualize)
	defer e.end(r, &err)

	src := source.Normalize(program)
	if err := source.CheckRestricted(src); err != nil {
		return nil, err
	}

	// A first run with transforms enabled surfaces their errors.
	if _, err := e.execute(ctx, r, src); err != nil {
		return nil, err
	}

	plain := source.CommentOutTransforms(src)
	tr, err := e.execute(ctx, r, plain)
	if err != nil {
		return nil, err
	}

	m, err := e.build(ctx, r, tr, plain)
	if err != nil {
		return nil, err
	}

	d := e.DrawOptions()
	snap, err := replay.Run(m, -1, e.replayOptions(d))
	if err != nil {
		return nil, err
	}

	root := m.Commands[0]
	last := m.Commands[len(m.Commands)-1]
	runner := transform.RunnerFunc(func(ctx context.Context, src string) (*monitor.Trace, error) {
		return e.execute(ctx, r, src)
	})
	records, err := transform.Expand(ctx, src, last.ID, runner, transform.Options{Draw: d, Logger: r.logger})
	if err != nil {
		return nil, err
	}

	token, err := session.Encode(m)
	if err != nil {
		return nil, err
	}

	r.logger.Info("program visualized",
		clog.CommandsKey, len(m.Commands),
		"wires", m.Device.Wires,
		"transforms", len(records))

	return &Visualization{
		RequestID:  r.id,
		Name:       root.Function,
		ID:         root.ID,
		Line:       root.Line,
		Arguments:  root.Args,
		Diagram:    snap.Diagram,
		Output:     snap.Output.String(),
		Children:   command.ExpandChildren(m.Commands, root.ID, -1, m.Device.Wires, d),
		Transforms: records,
		Device:     m.Device,
		Token:      token,
		DebugIndex: -1,
		Commands:   len(m.Commands),
		Stdout:     tr.Stdout,
		Timings:    r.timings(),
	}, nil
}

func (e *Engine) build(ctx context.Context, r *request, tr *monitor.Trace, src string) (*command.Model, error) {
	_, span := e.tracer.Start(ctx, "engine.build")
	defer span.End()

	m, err := command.Build(tr, src, r.logger)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("commands", len(m.Commands)))
	metrics.ObserveModel(len(m.Commands))
	return m, nil
}
