// Package engine serves the inspector's request flows: visualize a
// program, step the debugger through it, expand subroutine calls and
// export a prefix as OpenQASM.
//
// An Engine keeps no per-session state. Everything a debug step needs
// travels in the session token, so one Engine can serve concurrent
// requests.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"circinspect/internal/config"
	"circinspect/internal/draw"
	clog "circinspect/internal/log"
	"circinspect/internal/metrics"
	"circinspect/internal/monitor"
	"circinspect/internal/replay"
	"circinspect/internal/sim"
	cierrors "circinspect/pkg/errors"
)

// Flow names, used for spans, metrics and logs.
const (
	FlowVisualize = "visualize"
	FlowStep      = "step"
	FlowExpand    = "expand"
	FlowQASM      = "qasm"
)

// Engine runs request flows against a configuration.
type Engine struct {
	cfg    *config.Config
	logger *slog.Logger
	tracer trace.Tracer
}

// New returns an Engine. A nil cfg uses the defaults.
func New(cfg *config.Config, logger *slog.Logger) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Engine{
		cfg:    cfg,
		logger: clog.WithComponent(clog.Or(logger), "engine"),
		tracer: otel.Tracer("circinspect/engine"),
	}
}

// Timings reports where a request spent its time, in milliseconds.
type Timings struct {
	// Processing excludes program executions.
	Processing float64   `json:"processing_ms"`
	Executions []float64 `json:"executions_ms,omitempty"`
}

type request struct {
	id     string
	flow   string
	start  time.Time
	logger *slog.Logger
	span   trace.Span
	execs  []time.Duration
}

func (e *Engine) begin(ctx context.Context, flow string) (context.Context, *request) {
	id := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "engine."+flow, trace.WithAttributes(
		attribute.String("request_id", id),
	))
	return ctx, &request{
		id:     id,
		flow:   flow,
		start:  time.Now(),
		logger: clog.WithRequestID(e.logger, id).With("flow", flow),
		span:   span,
	}
}

// end closes the request. It must be deferred with a pointer to the
// flow's named error so a panic becomes that request's error.
func (e *Engine) end(r *request, errp *error) {
	if p := recover(); p != nil {
		r.logger.Error("request panicked", "panic", p, "stack", string(debug.Stack()))
		*errp = fmt.Errorf("internal error: %v", p)
	}
	err := *errp
	elapsed := time.Since(r.start)
	outcome := outcomeOf(err)
	metrics.ObserveRequest(r.flow, outcome, elapsed)

	if err != nil {
		r.span.RecordError(err)
		r.span.SetStatus(codes.Error, err.Error())
		level := slog.LevelWarn
		if outcome == metrics.OutcomeInternal {
			level = slog.LevelError
		}
		r.logger.Log(context.Background(), level, "request failed", "error", err, clog.DurationKey, elapsed.Milliseconds())
	} else {
		r.span.SetStatus(codes.Ok, "")
		r.logger.Debug("request finished", clog.DurationKey, elapsed.Milliseconds())
	}
	r.span.SetAttributes(attribute.String("outcome", outcome))
	r.span.End()
}

func (r *request) timings() Timings {
	t := Timings{}
	processing := time.Since(r.start)
	for _, d := range r.execs {
		processing -= d
		t.Executions = append(t.Executions, ms(d))
	}
	t.Processing = ms(max(processing, 0))
	return t
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000 }

func outcomeOf(err error) string {
	var (
		pe *cierrors.ProgramError
		nc *cierrors.NoCircuitError
		te *cierrors.TimeoutError
		ke *cierrors.TokenError
	)
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case cierrors.As(err, &pe):
		return metrics.OutcomeProgramError
	case cierrors.As(err, &nc):
		return metrics.OutcomeNoCircuit
	case cierrors.As(err, &te):
		return metrics.OutcomeTimeout
	case cierrors.As(err, &ke):
		return metrics.OutcomeBadToken
	}
	return metrics.OutcomeInternal
}

// execute runs src once under the configured bounds.
func (e *Engine) execute(ctx context.Context, r *request, src string) (*monitor.Trace, error) {
	ctx, span := e.tracer.Start(ctx, "engine.execute")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, e.cfg.Exec.Timeout)
	defer cancel()

	start := time.Now()
	tr, err := monitor.Run(ctx, src, e.monitorOptions(r.logger), nil)
	d := time.Since(start)
	r.execs = append(r.execs, d)
	metrics.ObserveExecution(d)

	var te *cierrors.TimeoutError
	if cierrors.As(err, &te) {
		te.Limit = e.cfg.Exec.Timeout
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("events", len(tr.Events)))
	return tr, nil
}

func (e *Engine) monitorOptions(logger *slog.Logger) monitor.Options {
	return monitor.Options{
		MaxSteps:     e.cfg.Exec.MaxSteps,
		MaxCallDepth: e.cfg.Exec.MaxCallDepth,
		MaxWires:     e.cfg.Exec.MaxWires,
		Seed:         e.cfg.Sim.Seed,
		Logger:       logger,
	}
}

// DrawOptions returns the configured label options.
func (e *Engine) DrawOptions() draw.Options {
	opts := draw.DefaultOptions()
	opts.Decimals = e.cfg.Draw.Decimals
	if e.cfg.Draw.ShowPi != nil {
		opts.ShowPi = *e.cfg.Draw.ShowPi
	}
	return opts
}

func (e *Engine) replayOptions(d draw.Options) replay.Options {
	return replay.Options{
		Draw: d,
		Sim:  sim.Options{Seed: e.cfg.Sim.Seed, MaxWires: e.cfg.Exec.MaxWires},
	}
}
