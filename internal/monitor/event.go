// Package monitor executes a circuit program once and records a line-level
// trace of it.
//
// Programs are written in the Python subset circuit programs use.
// Statements are interpreted here; expressions are evaluated with
// go.starlark.net. Every statement executed in user code produces a line
// event, every user function call a call and a return event, and every
// completed circuit execution a queue event carrying the operations it
// queued.
package monitor

import (
	"circinspect/internal/qml"
	"circinspect/internal/sim"
)

// Kind is the kind of a trace event.
type Kind string

const (
	KindCall   Kind = "call"
	KindLine   Kind = "line"
	KindReturn Kind = "return"

	// KindDevice and KindQueue are raised by the circuit library.
	KindDevice Kind = "device"
	KindQueue  Kind = "queue"
)

// Origin tags for events.
const (
	// OriginUser marks events from the submitted program.
	OriginUser = "<string>"
	// OriginLibrary marks events raised by the circuit library itself:
	// device construction and completed circuit queues.
	OriginLibrary = "<qml>"
)

// ModuleFunction names the top-level frame of a program.
const ModuleFunction = "<module>"

// Argument is a parameter binding of the frame that raised an event.
type Argument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Event is one record of the trace.
type Event struct {
	Function string     `json:"function"`
	Line     int        `json:"line"`
	Kind     Kind       `json:"kind"`
	Origin   string     `json:"origin"`
	Value    string     `json:"value,omitempty"`
	Args     []Argument `json:"args,omitempty"`

	// Device is set on device construction events.
	Device *qml.Device `json:"-"`
	// Run is set on queue events.
	Run *CircuitRun `json:"-"`
}

// CircuitRun is one execution of a circuit entry point.
type CircuitRun struct {
	// Name is the name of the decorated function.
	Name string
	// Queue holds what the quantum function queued, before transforms.
	Queue *qml.Queue
	// Ops and Measurements are what was simulated, after transforms.
	Ops          []qml.Operation
	Measurements []qml.Measurement
	Device       qml.Device
	Transforms   []qml.Transform
	Result       *sim.Result
}

// Recorder receives each event as it is recorded.
type Recorder func(index int, ev Event)

// Trace is the record of one program execution.
type Trace struct {
	Events []Event
	// Stdout collects what the program printed.
	Stdout string
}

// FirstRun returns the first completed circuit execution, or nil.
func (t *Trace) FirstRun() *CircuitRun {
	for _, ev := range t.Events {
		if ev.Run != nil {
			return ev.Run
		}
	}
	return nil
}

// Queue returns the queue of the first circuit execution, or nil.
func (t *Trace) Queue() *qml.Queue {
	if r := t.FirstRun(); r != nil {
		return r.Queue
	}
	return nil
}

// Runs counts completed circuit executions.
func (t *Trace) Runs() int {
	n := 0
	for _, ev := range t.Events {
		if ev.Run != nil {
			n++
		}
	}
	return n
}
