package cost_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/cost"
	"github.com/driveplatform/drive/pkg/treestore"
)

func TestChargesSplitsProcessingAndStorage(t *testing.T) {
	p := cost.Pricing{StoragePricePerByte: 27000, CPUPricePerUnit: 1}

	fee := p.Charges(treestore.CostVector{StorageBytesAdded: 10, CPUUnits: 5})

	require.Equal(t, int64(10*27000), fee.StorageFeeCredits)
	require.Equal(t, int64(5), fee.ProcessingFeeCredits)
}

func TestRefundDecaysOverEpochs(t *testing.T) {
	p := cost.Pricing{RefundDecayPermille: 100}

	full := p.Refund(0, 0, 100, 1000)
	require.Equal(t, int64(100000), full)

	decayed := p.Refund(0, 3, 100, 1000)
	require.Equal(t, int64(70000), decayed)

	exhausted := p.Refund(0, 20, 100, 1000)
	require.Equal(t, int64(0), exhausted)
}

func TestRefundRejectsFutureCharge(t *testing.T) {
	p := cost.Pricing{RefundDecayPermille: 0}
	require.Equal(t, int64(0), p.Refund(5, 2, 100, 1000))
}

func TestAddBytesChargedMergesSameEpochBucket(t *testing.T) {
	flags := cost.NewStorageFlags(1, []byte("owner"), 10)
	cost.AddBytesCharged(flags, 1, 5)

	require.Len(t, flags.RefundEpochByteCounts, 1)
	require.Equal(t, uint32(15), flags.RefundEpochByteCounts[0].Bytes)
}

func TestRemoveBytesFreedDrawsOldestFirst(t *testing.T) {
	flags := &treestore.StorageFlags{
		RefundEpochByteCounts: []treestore.EpochByteCount{
			{EpochIndex: 1, Bytes: 10},
			{EpochIndex: 2, Bytes: 10},
		},
	}

	drawn := cost.RemoveBytesFreed(flags, 15)

	require.Len(t, drawn, 2)
	require.Equal(t, uint32(10), drawn[0].Bytes)
	require.Equal(t, uint32(5), drawn[1].Bytes)
	require.Len(t, flags.RefundEpochByteCounts, 1)
	require.Equal(t, uint32(5), flags.RefundEpochByteCounts[0].Bytes)
}
