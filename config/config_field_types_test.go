package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaleValuesPolicyUnmarshalText(t *testing.T) {
	for input, expected := range map[string]StaleValuesPolicy{
		"evict":        StaleValuesEvict,
		"Refresh":      StaleValuesRefresh,
		"refreshAsync": StaleValuesRefreshAsync,
		"REFRESHASYNC": StaleValuesRefreshAsync,
		"":             "",
	} {
		t.Run(input, func(t *testing.T) {
			var p StaleValuesPolicy
			require.NoError(t, p.UnmarshalText([]byte(input)))
			assert.Equal(t, expected, p)
		})
	}

	var p StaleValuesPolicy
	assert.Error(t, p.UnmarshalText([]byte("never")))
}

func TestStaleValuesPolicyGetOrElse(t *testing.T) {
	assert.Equal(t, StaleValuesRefresh, StaleValuesPolicy("").GetOrElse(StaleValuesRefresh))
	assert.Equal(t, StaleValuesEvict, StaleValuesEvict.GetOrElse(StaleValuesRefresh))
}
