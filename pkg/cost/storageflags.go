package cost

import "github.com/driveplatform/drive/pkg/treestore"

// NewStorageFlags builds the flags an element gets when first inserted at
// the given epoch, owned by ownerID (the identity whose balance paid for
// it — used when computing who a later refund belongs to).
func NewStorageFlags(epochIndex uint64, ownerID []byte, bytesCharged uint32) *treestore.StorageFlags {
	return &treestore.StorageFlags{
		EpochIndex: epochIndex,
		OwnerID:    ownerID,
		RefundEpochByteCounts: []treestore.EpochByteCount{
			{EpochIndex: epochIndex, Bytes: bytesCharged},
		},
	}
}

// AddBytesCharged records that bytesCharged more bytes were added under
// currentEpoch's price, merging into an existing bucket for that epoch if
// one is already present.
func AddBytesCharged(flags *treestore.StorageFlags, currentEpoch uint64, bytesCharged uint32) *treestore.StorageFlags {
	if flags == nil {
		return NewStorageFlags(currentEpoch, nil, bytesCharged)
	}
	for i := range flags.RefundEpochByteCounts {
		if flags.RefundEpochByteCounts[i].EpochIndex == currentEpoch {
			flags.RefundEpochByteCounts[i].Bytes += bytesCharged
			return flags
		}
	}
	flags.RefundEpochByteCounts = append(flags.RefundEpochByteCounts, treestore.EpochByteCount{
		EpochIndex: currentEpoch,
		Bytes:      bytesCharged,
	})
	return flags
}

// RemoveBytesFreed takes bytesFreed bytes out of flags' oldest epoch
// buckets first (oldest-charged bytes are refunded first), returning the
// buckets it actually drew from for the caller to compute a refund over.
func RemoveBytesFreed(flags *treestore.StorageFlags, bytesFreed uint32) []treestore.EpochByteCount {
	if flags == nil || bytesFreed == 0 {
		return nil
	}

	var drawn []treestore.EpochByteCount
	remaining := bytesFreed
	kept := flags.RefundEpochByteCounts[:0]

	for _, bucket := range flags.RefundEpochByteCounts {
		if remaining == 0 {
			kept = append(kept, bucket)
			continue
		}
		if bucket.Bytes <= remaining {
			drawn = append(drawn, bucket)
			remaining -= bucket.Bytes
			continue
		}
		drawn = append(drawn, treestore.EpochByteCount{EpochIndex: bucket.EpochIndex, Bytes: remaining})
		kept = append(kept, treestore.EpochByteCount{EpochIndex: bucket.EpochIndex, Bytes: bucket.Bytes - remaining})
		remaining = 0
	}

	flags.RefundEpochByteCounts = kept
	return drawn
}
