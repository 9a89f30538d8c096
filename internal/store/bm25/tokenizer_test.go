package bm25

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenizeSplitsCamelCaseAndSnakeCase(t *testing.T) {
	tokens := Tokenize("getUserById fetch_user_data")
	assert.Contains(t, tokens, "get")
	assert.Contains(t, tokens, "user")
	assert.Contains(t, tokens, "by")
	assert.Contains(t, tokens, "id")
	assert.Contains(t, tokens, "fetch")
	assert.Contains(t, tokens, "data")
}

func TestTokenizeDropsSingleCharacterTokens(t *testing.T) {
	tokens := Tokenize("a I x y hello")
	assert.NotContains(t, tokens, "a")
	assert.Contains(t, tokens, "hello")
}

func TestJoinQuotesEachToken(t *testing.T) {
	out := Join([]string{"alpha", "beta"})
	assert.Equal(t, `"alpha" OR "beta"`, out)
}
