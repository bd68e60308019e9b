package uuid

import (
	"sort"
	"testing"

	goUUID "github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGeneratorNewID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewID()
	require.NoError(t, err)
	id2, err := gen.NewID()
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	parsed, err := goUUID.Parse(id1)
	require.NoError(t, err)
	require.Equal(t, goUUID.Version(7), parsed.Version())
}

func TestGeneratorIDsSortByTime(t *testing.T) {
	t.Parallel()

	gen := New()
	ids := make([]string, 0, 20)
	for range 20 {
		id, err := gen.NewID()
		require.NoError(t, err)
		ids = append(ids, id)
	}
	require.True(t, sort.StringsAreSorted(ids))
}

func TestValid(t *testing.T) {
	t.Parallel()

	require.True(t, Valid("0190b8a4-6f7e-7c3a-9d2e-3b1f4a5c6d7e"))
	require.False(t, Valid("../etc"))
	require.False(t, Valid(""))
}
