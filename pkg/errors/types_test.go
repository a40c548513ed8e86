package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgramError(t *testing.T) {
	tests := []struct {
		name    string
		err     *ProgramError
		message string
		payload [2]string
	}{
		{
			name:    "with line",
			err:     &ProgramError{Message: "NameError: x", Line: 4},
			message: "NameError: x (line 4)",
			payload: [2]string{"NameError: x", " line 4"},
		},
		{
			name:    "unknown line",
			err:     &ProgramError{Message: "boom"},
			message: "boom",
			payload: [2]string{"boom", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.message, tt.err.Error())
			assert.Equal(t, tt.payload, tt.err.Payload())
		})
	}
}

func TestUserFacing(t *testing.T) {
	assert.True(t, IsUserFacing(Wrap(&ProgramError{Message: "x"}, "running")))
	assert.True(t, IsUserFacing(&NoCircuitError{}))
	assert.True(t, IsUserFacing(&TimeoutError{Limit: time.Second}))
	assert.False(t, IsUserFacing(fmt.Errorf("disk full")))
	assert.False(t, IsUserFacing(&TokenError{Reason: "bad"}))
}

func TestUnwrap(t *testing.T) {
	cause := fmt.Errorf("gzip: invalid header")
	err := Wrap(&TokenError{Reason: "decompress", Cause: cause}, "step")

	var te *TokenError
	require.True(t, As(err, &te))
	assert.Equal(t, "decompress", te.Reason)
	assert.True(t, Is(err, cause))
	assert.Contains(t, err.Error(), "invalid session token")

	assert.Nil(t, Wrap(nil, "ignored"))
	assert.Nil(t, Wrapf(nil, "ignored %d", 1))
}

func TestNoCircuitMessage(t *testing.T) {
	assert.Equal(t, "Please run exactly one quantum circuit.", (&NoCircuitError{}).Error())
	assert.Contains(t, (&NoCircuitError{Reason: "no @qml.qnode"}).Error(), "no @qml.qnode")
}
