package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoctorCmdReportsOKOnHealthyConfig(t *testing.T) {
	kbDir := t.TempDir()
	writeTestConfig(t, kbDir, t.TempDir())

	cmd := newDoctorCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetContext(withTestContext(t))

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "[ok] load configuration")
	assert.Contains(t, buf.String(), "[ok] knowledge base directory exists")
	assert.Contains(t, buf.String(), "[ok] data directory writable")
	assert.Contains(t, buf.String(), "[ok] startup sequence")
	assert.NotContains(t, buf.String(), "FAIL")
}

func TestDoctorCmdFailsWhenKnowledgeBaseMissing(t *testing.T) {
	missingKB := "/nonexistent/path/that/does/not/exist"
	writeTestConfig(t, missingKB, t.TempDir())

	cmd := newDoctorCmd()
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetContext(withTestContext(t))

	err := cmd.Execute()
	assert.Error(t, err)
	assert.Contains(t, buf.String(), "FAIL")
}
