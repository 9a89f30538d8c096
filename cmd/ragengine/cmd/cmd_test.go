package cmd

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTestConfig writes a minimal YAML config pointing at kbDir/dataDir
// using the static embedder, and points the package-level configPath at
// it for the duration of the calling test.
func writeTestConfig(t *testing.T, kbDir, dataDir string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ragengine.yaml")
	contents := `
embedding:
  dim: 256
  provider: static
paths:
  knowledge_base: ` + kbDir + `
  data_dir: ` + dataDir + `
watcher:
  debounce_ms: 20
logging:
  level: error
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })
}

func withTestContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
