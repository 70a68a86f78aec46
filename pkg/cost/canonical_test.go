package cost_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/cost"
)

func TestHashCanonicalIgnoresKeyOrder(t *testing.T) {
	a := map[string]interface{}{"b": 2, "a": 1}
	b := map[string]interface{}{"a": 1, "b": 2}

	ha, err := cost.HashCanonical(a)
	require.NoError(t, err)
	hb, err := cost.HashCanonical(b)
	require.NoError(t, err)

	require.Equal(t, ha, hb)
}

func TestHashCanonicalDiffersOnValueChange(t *testing.T) {
	ha, err := cost.HashCanonical(map[string]interface{}{"a": 1})
	require.NoError(t, err)
	hb, err := cost.HashCanonical(map[string]interface{}{"a": 2})
	require.NoError(t, err)

	require.NotEqual(t, ha, hb)
}
