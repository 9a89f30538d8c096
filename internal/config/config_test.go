package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidation(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMergesYAMLOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
chunk:
  target_size: 2048
  min_size: 20
fusion:
  k0: 30
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2048, cfg.Chunk.TargetSize)
	assert.Equal(t, 20, cfg.Chunk.MinSize)
	assert.Equal(t, 30, cfg.Fusion.K0)
	// Untouched fields keep their defaults.
	assert.Equal(t, 1024, cfg.Embedding.Dim)
}

func TestLoadMissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestEnvOverrideWinsOverYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fusion:\n  k0: 30\n"), 0o644))
	t.Setenv("RAGENGINE_FUSION_K0", "99")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 99, cfg.Fusion.K0)
}

func TestValidateRejectsNonPositiveWorkerCounts(t *testing.T) {
	cfg := Default()
	cfg.Pipeline.EmbedWorkers = 0
	assert.Error(t, cfg.Validate())
}

func TestValidateRequiresDSNForPostgresBackend(t *testing.T) {
	cfg := Default()
	cfg.Backend.Kind = BackendPostgres
	assert.Error(t, cfg.Validate())
	cfg.Backend.DSN = "postgres://localhost/ragengine"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsUnknownBackendKind(t *testing.T) {
	cfg := Default()
	cfg.Backend.Kind = "sqlite3-legacy"
	assert.Error(t, cfg.Validate())
}
