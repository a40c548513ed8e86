package session

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"circinspect/internal/command"
	"circinspect/internal/debugger"
	"circinspect/internal/draw"
	clog "circinspect/internal/log"
	"circinspect/internal/monitor"
	"circinspect/internal/replay"
	cierrors "circinspect/pkg/errors"
)

const program = `import pennylane as qml
dev = qml.device("default.qubit", wires=2, shots=50)
def prepare(theta):
    qml.RY(theta, wires=0)
@qml.qnode(dev)
def circuit(theta):
    prepare(theta)
    m = qml.measure(0)
    qml.cond(m, qml.PauliX)(wires=1)
    return qml.probs(wires=[0, 1])
circuit(3.14159)`

func model(t *testing.T) *command.Model {
	t.Helper()
	tr, err := monitor.Run(context.Background(), program, monitor.Options{MaxSteps: 100000}, nil)
	require.NoError(t, err)
	m, err := command.Build(tr, program, clog.Discard())
	require.NoError(t, err)
	return m
}

func TestRoundTrip(t *testing.T) {
	m := model(t)
	token, err := Encode(m)
	require.NoError(t, err)
	assert.NotContains(t, token, "+")
	assert.NotContains(t, token, "/")

	got, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, m.Device, got.Device)
	require.Len(t, got.Commands, len(m.Commands))
	for i, c := range m.Commands {
		g := got.Commands[i]
		assert.Equal(t, c.ID, g.ID)
		assert.Equal(t, c.Parent, g.Parent)
		assert.Equal(t, c.Function, g.Function)
		assert.Equal(t, c.Line, g.Line)
		assert.Equal(t, c.Text, g.Text)
		assert.Equal(t, c.Type, g.Type)
		assert.Equal(t, c.Class, g.Class)
		assert.Len(t, g.Ops, len(c.Ops))
		assert.ElementsMatch(t, c.Args, g.Args)
	}
	assert.Len(t, got.Queue.Entries, len(m.Queue.Entries))
	assert.Equal(t, len(m.Terminal()), len(got.Terminal()))

	// The conditioned op on the first measurement survives the trip.
	var conditioned int
	for _, c := range got.Commands {
		for _, o := range c.Ops {
			if o.Condition != nil {
				assert.Equal(t, 0, o.Condition.MeasureID)
				conditioned++
			}
		}
	}
	assert.Equal(t, 1, conditioned)

	opts := replay.Options{Draw: draw.DefaultOptions()}
	for cut := range len(m.Commands) + 1 {
		want, err := replay.Run(m, cut, opts)
		require.NoError(t, err)
		have, err := replay.Run(got, cut, opts)
		require.NoError(t, err)
		assert.Equal(t, want.Diagram, have.Diagram, "cut %d", cut)
		assert.Equal(t, want.Normalized(), have.Normalized(), "cut %d", cut)
	}

	bps := debugger.ParseBreakpoints("7 9")
	for _, action := range debugger.Actions {
		for idx := -1; idx <= len(m.Commands); idx++ {
			wantIdx, wantFound := debugger.Navigate(m.Commands, idx, action, bps)
			haveIdx, haveFound := debugger.Navigate(got.Commands, idx, action, bps)
			assert.Equal(t, wantIdx, haveIdx)
			assert.Equal(t, wantFound, haveFound)
		}
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	m := model(t)
	a, err := Encode(m)
	require.NoError(t, err)
	b, err := Encode(m)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecodeRejects(t *testing.T) {
	m := model(t)
	good, err := Encode(m)
	require.NoError(t, err)

	future, err := encode(payload{Version: Version + 1, Commands: m.Commands, Queue: m.Queue, Device: m.Device})
	require.NoError(t, err)

	shuffled := payload{Version: Version, Commands: append([]command.Command(nil), m.Commands...), Queue: m.Queue}
	shuffled.Commands[0], shuffled.Commands[1] = shuffled.Commands[1], shuffled.Commands[0]
	bad, err := encode(shuffled)
	require.NoError(t, err)

	tests := []struct {
		name   string
		token  string
		reason string
	}{
		{"empty", "", "not compressed"},
		{"not base64", "%%%", "not base64url"},
		{"not gzip", "aGVsbG8", "not compressed"},
		{"truncated", good[:len(good)/8*4], "corrupt payload"},
		{"unknown version", future, "unsupported version"},
		{"inconsistent indices", bad, "inconsistent command indices"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.token)
			var te *cierrors.TokenError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, tt.reason, te.Reason)
			assert.True(t, strings.HasPrefix(err.Error(), "invalid session token"))
		})
	}
}
