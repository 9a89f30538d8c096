package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToVectorLiteralFormatsAsPgvectorArray(t *testing.T) {
	assert.Equal(t, "[1,0.5,-2]", toVectorLiteral([]float32{1, 0.5, -2}))
	assert.Equal(t, "[]", toVectorLiteral(nil))
}

func TestFirstLineTrimsMultilineStatement(t *testing.T) {
	assert.Equal(t, "CREATE TABLE foo (", firstLine("CREATE TABLE foo (\n  id INT\n)"))
	assert.Equal(t, "SELECT 1", firstLine("SELECT 1"))
}

func TestMetadataOrEmptyNeverReturnsNil(t *testing.T) {
	assert.NotNil(t, metadataOrEmpty(nil))
	assert.Equal(t, map[string]string{"a": "b"}, metadataOrEmpty(map[string]string{"a": "b"}))
}

func TestRefreshKeywordIndexIsNoop(t *testing.T) {
	s := &Store{}
	assert.NoError(t, s.RefreshKeywordIndex(nil))
}
