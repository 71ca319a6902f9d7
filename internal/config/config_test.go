package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/money-model/internal/engine"
)

func TestLoad_EmptyPathGivesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	require.NoError(t, cfg.Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
agents: 50
steps: 200
seed: 42
exclude_self: true
api:
  port: 9000
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 50, cfg.Agents)
	assert.Equal(t, 200, cfg.Steps)
	assert.Equal(t, 100, cfg.Trials, "unset fields keep defaults")
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int64(42), *cfg.Seed)
	assert.True(t, cfg.ExcludeSelf)
	assert.Equal(t, 9000, cfg.API.Port)
	assert.Equal(t, 60, cfg.API.RateLimitHour)

	p := cfg.Params(7)
	assert.Equal(t, int64(42), p.Seed, "pinned seed wins")
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents: [1, 2"), 0o644))
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.yaml")
	_, err := Load(path)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.ErrorContains(t, err, path)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MONEYSIM_AGENTS", "25")
	t.Setenv("MONEYSIM_TRIALS", "not-a-number")
	t.Setenv("MONEYSIM_SEED", "99")
	t.Setenv("MONEYSIM_ADMIN_KEY", "secret")

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.Equal(t, 25, cfg.Agents)
	assert.Equal(t, 100, cfg.Trials)
	require.NotNil(t, cfg.Seed)
	assert.Equal(t, int64(99), *cfg.Seed)
	assert.Equal(t, "secret", cfg.API.AdminKey)
}

func TestApplyEnv_BadSeed(t *testing.T) {
	t.Setenv("MONEYSIM_SEED", "forty-two")

	cfg := Default()
	err := cfg.ApplyEnv()
	require.ErrorIs(t, err, engine.ErrInvalidParameter)
	assert.ErrorContains(t, err, "MONEYSIM_SEED")
	assert.Nil(t, cfg.Seed, "no seed is pinned from a bad value")
}

func TestApplyEnv_TrustProxy(t *testing.T) {
	t.Setenv("MONEYSIM_TRUST_PROXY", "true")
	cfg := Default()
	require.NoError(t, cfg.ApplyEnv())
	assert.True(t, cfg.API.TrustProxy)

	t.Setenv("MONEYSIM_TRUST_PROXY", "maybe")
	require.ErrorIs(t, cfg.ApplyEnv(), engine.ErrInvalidParameter)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Agents = 0
	require.ErrorIs(t, cfg.Validate(), engine.ErrInvalidParameter)

	cfg = Default()
	cfg.Steps = -1
	require.ErrorIs(t, cfg.Validate(), engine.ErrInvalidParameter)

	cfg = Default()
	cfg.API.Port = 70000
	require.ErrorIs(t, cfg.Validate(), engine.ErrInvalidParameter)

	cfg = Default()
	assert.Equal(t, int64(5), cfg.Params(5).Seed)
}
