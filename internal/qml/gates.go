package qml

// GateSpec describes a gate the interpreter can queue and the simulator
// can apply.
type GateSpec struct {
	Name string
	// Params is the number of real parameters.
	Params int
	// ParamNames are the keyword names accepted for the parameters.
	ParamNames []string
	// Wires is the number of wires; 0 means any number.
	Wires int
	// Label is the short name drawn inside the gate box.
	Label string

	SelfInverse bool
	// Rotation gates compose by adding their angles.
	Rotation bool
	// Symmetric gates act the same under any permutation of their wires.
	Symmetric bool
	// Observable gates can be used as measurement observables.
	Observable bool
}

var gateSpecs = []GateSpec{
	{Name: "Hadamard", Wires: 1, Label: "H", SelfInverse: true, Observable: true},
	{Name: "PauliX", Wires: 1, Label: "X", SelfInverse: true, Observable: true},
	{Name: "PauliY", Wires: 1, Label: "Y", SelfInverse: true, Observable: true},
	{Name: "PauliZ", Wires: 1, Label: "Z", SelfInverse: true, Observable: true},
	{Name: "Identity", Wires: 1, Label: "I", SelfInverse: true, Observable: true},
	{Name: "S", Wires: 1, Label: "S"},
	{Name: "T", Wires: 1, Label: "T"},
	{Name: "SX", Wires: 1, Label: "SX"},
	{Name: "RX", Params: 1, ParamNames: []string{"phi"}, Wires: 1, Label: "RX", Rotation: true},
	{Name: "RY", Params: 1, ParamNames: []string{"phi"}, Wires: 1, Label: "RY", Rotation: true},
	{Name: "RZ", Params: 1, ParamNames: []string{"phi"}, Wires: 1, Label: "RZ", Rotation: true},
	{Name: "PhaseShift", Params: 1, ParamNames: []string{"phi"}, Wires: 1, Label: "Rϕ", Rotation: true},
	{Name: "Rot", Params: 3, ParamNames: []string{"phi", "theta", "omega"}, Wires: 1, Label: "Rot"},
	{Name: "U3", Params: 3, ParamNames: []string{"theta", "phi", "delta"}, Wires: 1, Label: "U3"},
	{Name: "CNOT", Wires: 2, Label: "X", SelfInverse: true},
	{Name: "CZ", Wires: 2, Label: "Z", SelfInverse: true, Symmetric: true},
	{Name: "CY", Wires: 2, Label: "Y", SelfInverse: true},
	{Name: "SWAP", Wires: 2, Label: "SWAP", SelfInverse: true, Symmetric: true},
	{Name: "CRX", Params: 1, ParamNames: []string{"phi"}, Wires: 2, Label: "RX", Rotation: true},
	{Name: "CRY", Params: 1, ParamNames: []string{"phi"}, Wires: 2, Label: "RY", Rotation: true},
	{Name: "CRZ", Params: 1, ParamNames: []string{"phi"}, Wires: 2, Label: "RZ", Rotation: true},
	{Name: "ControlledPhaseShift", Params: 1, ParamNames: []string{"phi"}, Wires: 2, Label: "Rϕ", Rotation: true, Symmetric: true},
	{Name: "Toffoli", Wires: 3, Label: "X", SelfInverse: true},
	{Name: "CSWAP", Wires: 3, Label: "SWAP", SelfInverse: true},
	{Name: "MultiControlledX", Wires: 0, Label: "X", SelfInverse: true},
	{Name: "QFT", Wires: 0, Label: "QFT"},
	{Name: "Barrier", Wires: 0, Label: "||", SelfInverse: true},
}

var aliases = map[string]string{
	"H":      "Hadamard",
	"X":      "PauliX",
	"Y":      "PauliY",
	"Z":      "PauliZ",
	"I":      "Identity",
	"CCX":    "Toffoli",
	"CX":     "CNOT",
	"CPhase": "ControlledPhaseShift",
	"U1":     "PhaseShift",
}

var gateIndex = func() map[string]GateSpec {
	idx := make(map[string]GateSpec, len(gateSpecs))
	for _, g := range gateSpecs {
		idx[g.Name] = g
	}
	return idx
}()

// Lookup returns the spec for a gate name or one of its aliases.
func Lookup(name string) (GateSpec, bool) {
	if canonical, ok := aliases[name]; ok {
		name = canonical
	}
	g, ok := gateIndex[name]
	return g, ok
}

// GateNames returns every name the qml module exposes as a gate,
// including aliases.
func GateNames() []string {
	names := make([]string, 0, len(gateSpecs)+len(aliases))
	for _, g := range gateSpecs {
		names = append(names, g.Name)
	}
	for a := range aliases {
		names = append(names, a)
	}
	return names
}

// controlCount returns how many leading wires of a gate act as controls.
func controlCount(o Operation) int {
	switch o.Name {
	case "CNOT", "CZ", "CY", "CRX", "CRY", "CRZ", "ControlledPhaseShift", "CSWAP":
		return 1
	case "Toffoli":
		return 2
	case "MultiControlledX":
		return max(len(o.Wires)-1, 0)
	}
	return 0
}

// SplitControls returns the control and target wires of an operation,
// counting both built-in controls (CNOT's first wire) and qml.ctrl ones.
func SplitControls(o Operation) (controls, targets []int) {
	n := controlCount(o)
	controls = append(append([]int{}, o.Controls...), o.Wires[:n]...)
	return controls, o.Wires[n:]
}
