package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPatternsIgnoreVCSAndDataDir(t *testing.T) {
	m := New()
	assert.True(t, m.Match(".git/HEAD", false))
	assert.True(t, m.Match(".ragengine/state.db", false))
	assert.True(t, m.Match("notes/__pycache__/mod.pyc", false))
	assert.False(t, m.Match("notes/todo.md", false))
}

func TestAddPatternWildcardAndAnchored(t *testing.T) {
	m := &Matcher{}
	m.AddPattern("*.log")
	m.AddPattern("/build")

	assert.True(t, m.Match("error.log", false))
	assert.True(t, m.Match("nested/error.log", false))
	assert.True(t, m.Match("build", true))
	assert.False(t, m.Match("src/build", true))
}

func TestAddPatternNegationOverridesEarlierMatch(t *testing.T) {
	m := &Matcher{}
	m.AddPattern("*.log")
	m.AddPattern("!important.log")

	assert.True(t, m.Match("debug.log", false))
	assert.False(t, m.Match("important.log", false))
}

func TestAddPatternDirOnlyMatchesContents(t *testing.T) {
	m := &Matcher{}
	m.AddPattern("temp/")

	assert.True(t, m.Match("temp", true))
	assert.True(t, m.Match("temp/file.txt", false))
	assert.False(t, m.Match("template", true))
}

func TestAddFromFileScopesPatternsToBase(t *testing.T) {
	dir := t.TempDir()
	ignoreFile := filepath.Join(dir, ".gitignore")
	require.NoError(t, os.WriteFile(ignoreFile, []byte("*.tmp\n"), 0o644))

	m := &Matcher{}
	require.NoError(t, m.AddFromFile(ignoreFile, "sub"))

	assert.True(t, m.Match("sub/scratch.tmp", false))
	assert.False(t, m.Match("other/scratch.tmp", false))
}
