package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchCmdReturnsNoResultsOnEmptyKnowledgeBase(t *testing.T) {
	kbDir := t.TempDir()
	writeTestConfig(t, kbDir, t.TempDir())

	cmd := newSearchCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetContext(withTestContext(t))

	require.NoError(t, cmd.Flags().Set("threshold", "0"))
	cmd.SetArgs([]string{"nothing indexed yet"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "no results")
}

func TestSearchCmdJSONOutputAfterIndexing(t *testing.T) {
	kbDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(kbDir, "note.md"), []byte("alpha beta gamma delta"), 0o644))
	writeTestConfig(t, kbDir, t.TempDir())

	idx := newIndexCmd()
	idx.SetOut(&bytes.Buffer{})
	idx.SetContext(withTestContext(t))
	require.NoError(t, idx.Execute())

	time.Sleep(100 * time.Millisecond)

	cmd := newSearchCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetContext(withTestContext(t))
	require.NoError(t, cmd.Flags().Set("json", "true"))
	require.NoError(t, cmd.Flags().Set("threshold", "0"))
	cmd.SetArgs([]string{"alpha beta"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"source"`)
}
