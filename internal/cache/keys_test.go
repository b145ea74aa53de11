package cache

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyStableAcrossMapOrder(t *testing.T) {
	a, err := Key("search", map[string]interface{}{"query": "q", "k": 5, "lang": "en"})
	require.NoError(t, err)
	b, err := Key("search", map[string]interface{}{"lang": "en", "k": 5, "query": "q"})
	require.NoError(t, err)
	assert.Equal(t, a, b, "same params in different map order must hash identically")
}

func TestKeyStructAndMapAgree(t *testing.T) {
	type params struct {
		Query string `json:"query"`
		K     int    `json:"k"`
	}
	a, err := Key("search", params{Query: "q", K: 5})
	require.NoError(t, err)
	b, err := Key("search", map[string]interface{}{"query": "q", "k": 5})
	require.NoError(t, err)
	assert.Equal(t, a, b, "struct and equivalent map must produce the same key")
}

func TestKeyShape(t *testing.T) {
	k, err := Key("embed", map[string]interface{}{"text": "hello"})
	require.NoError(t, err)
	parts := strings.Split(k, ":")
	require.Len(t, parts, 3)
	assert.Equal(t, "kensaku", parts[0])
	assert.Equal(t, "embed", parts[1])
	assert.Len(t, parts[2], 32, "hash segment is 16 hex-encoded bytes")
}

func TestKeyDistinguishesOpAndParams(t *testing.T) {
	a, err := Key("search", map[string]interface{}{"q": "x"})
	require.NoError(t, err)
	b, err := Key("embed", map[string]interface{}{"q": "x"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "different ops must not collide")

	c, err := Key("search", map[string]interface{}{"q": "y"})
	require.NoError(t, err)
	assert.NotEqual(t, a, c, "different params must not collide")
}

func TestKeyRejectsUnmarshalableParams(t *testing.T) {
	_, err := Key("search", make(chan int))
	assert.Error(t, err)
}
