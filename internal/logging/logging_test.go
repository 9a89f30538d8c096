package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "engine.log")
	logger, closeFn, err := Setup("info", path)
	require.NoError(t, err)
	defer closeFn()

	logger.Info("ingest started", slog.String("path", "notes/a.txt"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"path":"notes/a.txt"`)
	assert.Contains(t, string(data), `"msg":"ingest started"`)
}

func TestStageAddsField(t *testing.T) {
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))
	Stage(base, "chunk").Info("working")
	assert.Contains(t, buf.String(), `"stage":"chunk"`)
}
