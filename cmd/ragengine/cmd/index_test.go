package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexCmdAdmitsAndDrainsFiles(t *testing.T) {
	kbDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(kbDir, "note.md"), []byte("# alpha beta gamma"), 0o644))
	writeTestConfig(t, kbDir, t.TempDir())

	cmd := newIndexCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetContext(withTestContext(t))

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "admitted 1 files")
	assert.Contains(t, buf.String(), "done: 1 documents")
}
