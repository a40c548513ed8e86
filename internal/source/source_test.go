package source

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cierrors "circinspect/pkg/errors"
)

func TestJoinLines(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "call split across lines",
			in:   "\nqml.PauliX(\nwires=0\n)\n",
			want: "\nqml.PauliX(wires=0)\n\n\n",
		},
		{
			name: "whitespace collapsed inside brackets",
			in:   "qml.RX(0.1,\n       wires=[0,\n              1])\nx = 1\n",
			want: "qml.RX(0.1, wires=[0, 1])\n\n\nx = 1\n",
		},
		{
			name: "single line untouched",
			in:   "    qml.Hadamard(wires=0)\n",
			want: "    qml.Hadamard(wires=0)\n",
		},
		{
			name: "paren inside string ignored",
			in:   "print(\"(\")\nx = 2\n",
			want: "print(\"(\")\nx = 2\n",
		},
		{
			name: "triple quoted string joined",
			in:   "s = \"\"\"a\nb\"\"\"\ny = 1",
			want: "s = \"\"\"a\\nb\"\"\"\n\ny = 1",
		},
		{
			name: "backslash continuation",
			in:   "x = 1 + \\\n2\n",
			want: "x = 1 + 2\n\n",
		},
		{
			name: "no trailing newline",
			in:   "f(\n1)",
			want: "f(1)\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := JoinLines(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, strings.Count(tt.in, "\n"), strings.Count(got, "\n"))
		})
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"\n# comment\nprint(\"#not comment\")\n", "\n\nprint(\"#not comment\")\n"},
		{"x = 1  # trailing\n", "x = 1  \n"},
		{"s = '#' # real\n", "s = '#' \n"},
		{"s = \"it's\" # c", "s = \"it's\" "},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripComments(tt.in))
	}
}

func TestNormalizeCommentInsideCall(t *testing.T) {
	in := "qml.RX(0.5, # angle\n  wires=0)\nqml.Hadamard(wires=1)\n"
	got := Normalize(in)
	assert.Equal(t, "qml.RX(0.5, wires=0)\n\nqml.Hadamard(wires=1)\n", got)
}

func TestCheckRestricted(t *testing.T) {
	tests := []struct {
		name    string
		src     string
		message string
		line    int
	}{
		{"banned import", "import pennylane as qml\nimport os\n", "No module named: os", 2},
		{"from import", "from sys import argv", "No module named: sys", 1},
		{"open", "x = 1\ny = open('f')", "Filesystem functionality such as open() is disabled. ", 2},
		{"eval", "eval('1')", "eval() function is disabled. ", 1},
		{"breakpoint", "\n\nbreakpoint()", "Other debuggers cannot be used inside CircInspect. ", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckRestricted(tt.src)
			var pe *cierrors.ProgramError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.message, pe.Message)
			assert.Equal(t, tt.line, pe.Line)
		})
	}

	assert.NoError(t, CheckRestricted("import pennylane as qml\nopened = 1\n"))
}

func TestMethodNames(t *testing.T) {
	src := "def f0():\n    pass\n\n@qml.qnode(dev)\ndef circuit(theta, wires=1):\n    def inner(x):\n        return x\n"
	names := MethodNames(src)
	assert.Equal(t, map[string]bool{"f0": true, "circuit": true, "inner": true}, names)
}

const transformSrc = `import pennylane as qml
dev = qml.device("default.qubit", wires=1)

@qml.transforms.merge_rotations

@qml.transforms.cancel_inverses
@qml.qnode(dev)
@qml.transforms.insert(qml.RX, 0.1, position="end")
def circuit():
    qml.Hadamard(wires=0)
    return qml.probs()
`

func TestTransformStages(t *testing.T) {
	stages := TransformStages(transformSrc)
	require.Len(t, stages, 3)
	assert.Equal(t, Stage{Text: "@qml.transforms.merge_rotations", Line: 4}, stages[0])
	assert.Equal(t, 6, stages[1].Line)
	assert.Equal(t, 8, stages[2].Line)

	assert.Nil(t, TransformStages("x = 1\n"))
}

func TestCommentOutTransforms(t *testing.T) {
	out := CommentOutTransforms(transformSrc)
	lines := strings.Split(out, "\n")
	assert.Equal(t, "#@qml.transforms.merge_rotations", lines[3])
	assert.Equal(t, "#@qml.transforms.cancel_inverses", lines[5])
	assert.Equal(t, "@qml.qnode(dev)", lines[6])
	assert.True(t, strings.HasPrefix(lines[7], "#@"))
	assert.Equal(t, len(strings.Split(transformSrc, "\n")), len(lines))

	back := Uncomment(out, 6)
	assert.Equal(t, "@qml.transforms.cancel_inverses", strings.Split(back, "\n")[5])
	assert.Empty(t, TransformStages(out))
}

func TestQNodeLine(t *testing.T) {
	assert.Equal(t, 6, QNodeLine(strings.Split(transformSrc, "\n")))
	assert.Equal(t, -1, QNodeLine([]string{"@qml.transforms.cancel_inverses", "def f(): pass"}))
	assert.Equal(t, 0, QNodeLine([]string{"@ qml . qnode(dev)"}))
}
