package command

import (
	"log/slog"
	"strings"

	clog "circinspect/internal/log"
	"circinspect/internal/monitor"
	"circinspect/internal/qml"
	"circinspect/internal/source"
	perrors "circinspect/pkg/errors"
)

// raw is a command before classification.
type raw struct {
	function string
	line     int
	text     string
	kind     monitor.Kind
	args     []monitor.Argument
	// event is the index of the trace event the command came from; it is
	// the correlation token of whatever the line queued.
	event int
}

// Build runs the builder over a trace of src. src must be the text the
// trace was recorded from.
func Build(tr *monitor.Trace, src string, logger *slog.Logger) (*Model, error) {
	logger = clog.WithComponent(clog.Or(logger), "command")

	queue := tr.Queue()
	if queue == nil {
		return nil, &perrors.NoCircuitError{Reason: "no circuit was executed"}
	}
	if n := tr.Runs(); n > 1 {
		logger.Warn("program ran more than one circuit, using the first", "runs", n)
	}

	raws := collect(tr.Events, source.MethodNames(src), strings.Split(src, "\n"))
	raws = trim(raws)
	if len(raws) == 0 {
		return nil, &perrors.NoCircuitError{Reason: "no circuit entry point was found"}
	}

	cmds := classify(raws, queue, logger)
	cmds[len(cmds)-1].Terminal = queue.TerminalMeasurements()
	IndexParents(cmds)

	m := &Model{Commands: cmds, Queue: queue, Device: deviceInfo(tr, queue)}
	logger.Debug("command model built", clog.CommandsKey, len(cmds), "wires", m.Device.Wires)
	return m, nil
}

// collect keeps the events user functions raised and folds a return into
// the command before it when both name the same source line text.
func collect(events []monitor.Event, names map[string]bool, lines []string) []raw {
	var out []raw
	for i, ev := range events {
		if ev.Origin != monitor.OriginUser || !names[ev.Function] {
			continue
		}
		if ev.Kind != monitor.KindCall && ev.Kind != monitor.KindLine && ev.Kind != monitor.KindReturn {
			continue
		}
		text := source.Line(lines, ev.Line)
		if n := len(out); n > 0 && ev.Kind == monitor.KindReturn && out[n-1].text == text {
			out[n-1].kind = monitor.KindReturn
			continue
		}
		out = append(out, raw{function: ev.Function, line: ev.Line, text: text, kind: ev.Kind, args: ev.Args, event: i})
	}
	return out
}

// trim keeps the span from the first line naming a circuit decorator to
// the first return of that circuit function, inclusive.
func trim(raws []raw) []raw {
	start := -1
	for i, r := range raws {
		if strings.Contains(r.text, "@qml.qnode") {
			start = i
			break
		}
	}
	if start < 0 {
		return nil
	}
	circuit := raws[start].function
	for i := start; i < len(raws); i++ {
		if raws[i].function == circuit && raws[i].kind == monitor.KindReturn {
			return raws[start : i+1]
		}
	}
	return raws[start:]
}

// looksQuantum is the source-text test for a circuit operation line. It
// only cross-checks the correlation tokens.
func looksQuantum(text string) bool {
	if strings.Contains(text, "qml.adjoint") {
		return false
	}
	return strings.HasPrefix(text, "qml") ||
		strings.Contains(text, "return qml.") ||
		(strings.Contains(text, "qml") && !strings.HasPrefix(text, "@"))
}

// classify builds the final commands. A command is quantum iff the queue
// holds entries stamped with its event.
func classify(raws []raw, queue *qml.Queue, logger *slog.Logger) []Command {
	byToken := queue.ByToken()
	cmds := make([]Command, len(raws))
	textCount, queueCount := 0, 0
	for i, r := range raws {
		c := Command{
			Function: r.function,
			Line:     r.line,
			Text:     r.text,
			Type:     LineType(r.kind),
			Args:     r.args,
		}
		if strings.Contains(r.text, "qml.adjoint") {
			c.Function = "adjoint of " + r.function
		}
		for _, e := range byToken[r.event] {
			if e.Op != nil {
				c.Ops = append(c.Ops, e.Op.Clone())
			} else {
				c.Measurements = append(c.Measurements, *e.Measurement)
			}
		}
		if len(c.Ops) > 0 || len(c.Measurements) > 0 {
			c.Class = Quantum
			queueCount++
		}
		if looksQuantum(r.text) {
			textCount++
		}
		cmds[i] = c
	}
	if textCount != queueCount {
		logger.Warn("operation lines disagree with the queue", "by_text", textCount, "by_queue", queueCount)
	}
	return cmds
}

// IndexParents assigns IDs by position and parents with one stack: a
// definition line opens a frame owned by the command before it, and a
// return closes the current frame.
func IndexParents(cmds []Command) {
	if len(cmds) == 0 {
		return
	}
	for i := range cmds {
		cmds[i].ID = i
	}
	cmds[0].Parent = NoParent
	stack := []int{cmds[0].ID}
	for i := 1; i < len(cmds); i++ {
		c := &cmds[i]
		c.Parent = stack[len(stack)-1]
		if source.IsDefinition(c.Text) {
			stack = append(stack, cmds[i-1].ID)
			continue
		}
		if c.Type == Return && len(stack) > 1 {
			stack = stack[:len(stack)-1]
		}
	}
}

// deviceInfo takes the device name from the circuit, the shots from the
// last device constructed with shots, and sizes the wires to the queue.
func deviceInfo(tr *monitor.Trace, queue *qml.Queue) DeviceInfo {
	info := DeviceInfo{Wires: queue.NumWires()}
	if run := tr.FirstRun(); run != nil {
		info.Name = run.Device.Name
	}
	for _, ev := range tr.Events {
		if ev.Kind == monitor.KindDevice && ev.Device != nil && ev.Device.Shots > 0 {
			info.Shots = ev.Device.Shots
		}
	}
	return info
}
