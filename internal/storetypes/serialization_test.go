package storetypes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadVersionInfo(t *testing.T) {
	t.Run("item", func(t *testing.T) {
		version, deleted, err := ReadVersionInfo([]byte(`{"key":"a","version":3,"on":true,"rules":[{"id":"x"}]}`))
		require.NoError(t, err)
		assert.Equal(t, 3, version)
		assert.False(t, deleted)
	})

	t.Run("tombstone", func(t *testing.T) {
		version, deleted, err := ReadVersionInfo(MakeDeletedItemJSON("a", 9))
		require.NoError(t, err)
		assert.Equal(t, 9, version)
		assert.True(t, deleted)
	})

	t.Run("malformed", func(t *testing.T) {
		_, _, err := ReadVersionInfo([]byte(`{"version":`))
		assert.Error(t, err)
	})
}

func TestMakeDeletedItemJSON(t *testing.T) {
	assert.JSONEq(t, `{"key":"k","version":2,"deleted":true}`, string(MakeDeletedItemJSON("k", 2)))
}

func TestSortCollectionsForInit(t *testing.T) {
	first := DataKind{Name: "first", Priority: 1}
	second := DataKind{Name: "second", Priority: 2}
	input := []Collection{{Kind: second}, {Kind: first}}

	sorted := SortCollectionsForInit(input)

	require.Len(t, sorted, 2)
	assert.Equal(t, "first", sorted[0].Kind.Name)
	assert.Equal(t, "second", sorted[1].Kind.Name)
	assert.Equal(t, "second", input[0].Kind.Name, "input should not be modified")
}
