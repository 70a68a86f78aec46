package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/host"
)

func TestNewClientDisabledIsNoop(t *testing.T) {
	c, err := NewClient(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	require.False(t, c.IsEnabled())
	require.NoError(t, c.Health(context.Background()))
	require.NoError(t, c.Close())
}

func TestNewClientEnabledRequiresProjectID(t *testing.T) {
	_, err := NewClient(context.Background(), &Config{Enabled: true})
	require.Error(t, err)
}

func TestRecordBlockNoopsWhenDisabled(t *testing.T) {
	c, err := NewClient(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	trail := NewBlockTrail(c, nil)

	// Must not panic or block even though no Firestore connection exists.
	trail.RecordBlock(context.Background(), host.BlockInfo{Height: 1}, []byte("root"), []host.TransitionResult{{Applied: true}})
}

func TestComputeEntryHashIsDeterministicAndChainSensitive(t *testing.T) {
	ts := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	a := &BlockEntry{EntryID: "block_1", Height: 1, RootHash: "abc", Applied: 2, Rejected: 0, RecordedAt: ts, PreviousHash: "genesis"}
	b := &BlockEntry{EntryID: "block_1", Height: 1, RootHash: "abc", Applied: 2, Rejected: 0, RecordedAt: ts, PreviousHash: "genesis"}
	require.Equal(t, computeEntryHash(a), computeEntryHash(b))

	c := &BlockEntry{EntryID: "block_1", Height: 1, RootHash: "abc", Applied: 2, Rejected: 0, RecordedAt: ts, PreviousHash: "different-parent"}
	require.NotEqual(t, computeEntryHash(a), computeEntryHash(c))
}

func TestCollectionReturnsNilWhenDisabled(t *testing.T) {
	c, err := NewClient(context.Background(), &Config{Enabled: false})
	require.NoError(t, err)
	trail := NewBlockTrail(c, nil)
	require.Nil(t, trail.collection())
}
