package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cierrors "circinspect/pkg/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.Exec.Timeout)
	assert.Equal(t, 20, cfg.Exec.MaxWires)
	assert.Equal(t, 2, cfg.Draw.Decimals)
	assert.True(t, *cfg.Draw.ShowPi)
	assert.EqualValues(t, 42, cfg.Sim.Seed)
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "circinspect.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
exec:
  timeout: 3s
  max_wires: 8
draw:
  decimals: 3
  show_pi: false
sim:
  seed: 7
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3*time.Second, cfg.Exec.Timeout)
	assert.Equal(t, 8, cfg.Exec.MaxWires)
	assert.Equal(t, 200, cfg.Exec.MaxCallDepth)
	assert.Equal(t, 3, cfg.Draw.Decimals)
	assert.False(t, *cfg.Draw.ShowPi)
	assert.EqualValues(t, 7, cfg.Sim.Seed)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CIRCINSPECT_TIMEOUT", "250ms")
	t.Setenv("CIRCINSPECT_MAX_WIRES", "5")
	t.Setenv("CIRCINSPECT_SEED", "99")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, cfg.Exec.Timeout)
	assert.Equal(t, 5, cfg.Exec.MaxWires)
	assert.EqualValues(t, 99, cfg.Sim.Seed)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
		var ce *cierrors.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "config_file", ce.Key)
	})

	t.Run("invalid wires", func(t *testing.T) {
		t.Setenv("CIRCINSPECT_MAX_WIRES", "64")
		_, err := Load("")
		var ce *cierrors.ConfigError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, "exec.max_wires", ce.Key)
	})
}
