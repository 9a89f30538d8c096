package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCmdReportsZeroDocumentsOnEmptyKnowledgeBase(t *testing.T) {
	kbDir := t.TempDir()
	writeTestConfig(t, kbDir, t.TempDir())

	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetContext(withTestContext(t))

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "documents: 0")
}

func TestStatusCmdJSONOutput(t *testing.T) {
	kbDir := t.TempDir()
	writeTestConfig(t, kbDir, t.TempDir())

	cmd := newStatusCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetContext(withTestContext(t))
	require.NoError(t, cmd.Flags().Set("json", "true"))

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"indexed_documents"`)
}
