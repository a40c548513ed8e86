// Package command turns an execution trace into the command model of a
// circuit: one Command per executed source line of the circuit function
// and the functions it calls, with call-graph parent links.
package command

import (
	"circinspect/internal/monitor"
	"circinspect/internal/qml"
)

// LineType is the trace event kind a Command was created from.
type LineType string

const (
	Call   LineType = "call"
	Return LineType = "return"
	Line   LineType = "line"
)

// Class tags a Command as classical source or as circuit operations.
type Class uint8

const (
	Classical Class = iota
	Quantum
)

func (c Class) String() string {
	if c == Quantum {
		return "quantum"
	}
	return "classical"
}

// NoParent is the parent of the first Command.
const NoParent = -1

// Command is one executed line of the circuit function or of a function
// it calls.
type Command struct {
	ID int
	// Parent is the ID of the command that opened the enclosing frame.
	Parent   int
	Function string
	Line     int
	// Text is the trimmed source line.
	Text  string
	Type  LineType
	Class Class

	// Ops and Measurements are the queue entries this line produced.
	Ops          []qml.Operation
	Measurements []qml.Measurement
	// Terminal holds the circuit's terminal measurements on the last
	// command only.
	Terminal []qml.Measurement

	// Args are the parameter bindings of the frame at this line.
	Args []monitor.Argument
}

// IsQuantum reports whether the command produced circuit operations.
func (c Command) IsQuantum() bool { return c.Class == Quantum }

// IsSubroutineCall reports whether the command opens a user subroutine
// frame.
func (c Command) IsSubroutineCall() bool { return c.Class == Classical && c.Type == Call }

// DeviceInfo describes the backend a model replays on.
type DeviceInfo struct {
	Name  string `json:"name"`
	Wires int    `json:"wires"`
	Shots int    `json:"shots"`
}

// Device returns the replay device for d.
func (d DeviceInfo) Device() qml.Device {
	return qml.Device{Name: d.Name, Wires: d.Wires, Shots: d.Shots}
}

// Model is a built command sequence with the queue and device it was
// built from.
type Model struct {
	Commands []Command
	Queue    *qml.Queue
	Device   DeviceInfo
}

// Terminal returns the terminal measurements of the model.
func (m *Model) Terminal() []qml.Measurement {
	if len(m.Commands) == 0 {
		return nil
	}
	return m.Commands[len(m.Commands)-1].Terminal
}
