// Package transform replays a program once per transform decorator, each
// time with one more decorator enabled, and records what the circuit
// looks like after it.
package transform

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"circinspect/internal/draw"
	clog "circinspect/internal/log"
	"circinspect/internal/monitor"
	"circinspect/internal/source"
	"circinspect/internal/sim"
	cierrors "circinspect/pkg/errors"
)

// Runner executes a program and returns its trace.
type Runner interface {
	Run(ctx context.Context, src string) (*monitor.Trace, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, src string) (*monitor.Trace, error)

func (f RunnerFunc) Run(ctx context.Context, src string) (*monitor.Trace, error) {
	return f(ctx, src)
}

// Record is the circuit after one transform stage and every stage below
// it in application order.
type Record struct {
	Diagram string `json:"diagram"`
	// Output is the normalized result.
	Output string `json:"output"`
	// Text is the decorator line.
	Text string `json:"name"`
	// OutputLine places the record after the command listing.
	OutputLine int `json:"output_line"`
	Line       int `json:"line"`
}

// Options configure Expand.
type Options struct {
	Draw   draw.Options
	Logger *slog.Logger
	// Durations, when set, receives the wall time of each run.
	Durations func(time.Duration)
}

// Expand enables the transform decorators of src one at a time, starting
// from the one applied first, and reruns the program after each. lastID
// is the ID of the last command of the untransformed model.
func Expand(ctx context.Context, src string, lastID int, r Runner, opts Options) ([]Record, error) {
	stages := source.TransformStages(src)
	if len(stages) == 0 {
		return nil, nil
	}
	logger := clog.Or(opts.Logger)

	text := source.CommentOutTransforms(src)
	records := make([]Record, 0, len(stages))
	for _, st := range slices.Backward(stages) {
		text = source.Uncomment(text, st.Line)

		start := time.Now()
		tr, err := r.Run(ctx, text)
		if opts.Durations != nil {
			opts.Durations(time.Since(start))
		}
		if err != nil {
			return nil, err
		}
		run := tr.FirstRun()
		if run == nil {
			return nil, &cierrors.NoCircuitError{Reason: "transform stage " + st.Text + " ran no circuit"}
		}

		wires := max(run.Device.Wires, run.Queue.NumWires())
		records = append(records, Record{
			Diagram:    draw.Draw(run.Ops, run.Measurements, wires, opts.Draw),
			Output:     sim.Normalize(run.Result.String()),
			Text:       st.Text,
			OutputLine: st.Line + 1 + lastID,
			Line:       st.Line,
		})
		logger.Debug("transform stage replayed", clog.LineKey, st.Line, "stage", st.Text)
	}

	slices.SortFunc(records, func(a, b Record) int { return cmp.Compare(a.OutputLine, b.OutputLine) })
	return records, nil
}
