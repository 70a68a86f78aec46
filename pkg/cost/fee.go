// Package cost converts the tree store's raw CostVectors into credits,
// and tracks the per-epoch refund bookkeeping a storage flag needs to
// give back exactly what an element's bytes cost when they were inserted.
package cost

import "github.com/driveplatform/drive/pkg/treestore"

// Pricing is the versioned per-byte/per-CPU-unit price table. A new
// feature version of the pricing method may change these constants; the
// engine looks them up through pkg/version before constructing a Pricing.
type Pricing struct {
	StoragePricePerByte int64
	CPUPricePerUnit     int64

	// RefundDecayPermille is how much of the original per-byte price the
	// refund loses for each epoch that has elapsed since the byte was
	// charged, in permille subtracted per epoch (0 means no decay).
	RefundDecayPermille int64

	// MaxUserFeeIncreasePermille is the upper bound a signer may have
	// offered to pad the base fee estimate by, in permille (1000 = a full
	// 100% premium on top of the required fee). Charges stamps it onto
	// every FeeResult so Desired can be computed; the pipeline's pre-apply
	// balance check covers only the required fee, and the part of the
	// desired fee the balance cannot pay is recorded as debt.
	MaxUserFeeIncreasePermille uint32
}

// FeeResult is what every state-transition apply step produces and the
// host applies against the signer's balance.
type FeeResult struct {
	ProcessingFeeCredits    int64
	StorageFeeCredits       int64
	RefundsPerEpoch         map[uint64]int64
	FeeRefunds              int64
	UserFeeIncreasePermille uint32
}

// Required is the base fee estimate: what the transition costs with no
// premium applied. A balance that cannot cover this is rejected outright.
func (f FeeResult) Required() int64 {
	return f.ProcessingFeeCredits + f.StorageFeeCredits
}

// Desired is Required padded by UserFeeIncreasePermille, the amount the
// pipeline debits after apply. A balance that
// covers Required but not Desired is still accepted; the shortfall is
// recorded as debt instead.
func (f FeeResult) Desired() int64 {
	required := f.Required()
	return required + required*int64(f.UserFeeIncreasePermille)/1000
}

// Charges converts a CostVector into the processing/storage credit split
// of a FeeResult, with no refunds (a pure charge, used for an upper-bound
// estimate before any bytes have actually been freed). p's configured
// MaxUserFeeIncreasePermille is carried onto the result so callers can
// derive both the required and desired fee from it.
func (p Pricing) Charges(cv treestore.CostVector) FeeResult {
	storage := int64(cv.StorageBytesAdded+cv.StorageBytesReplaced) * p.StoragePricePerByte
	processing := int64(cv.CPUUnits) * p.CPUPricePerUnit
	return FeeResult{
		ProcessingFeeCredits:    processing,
		StorageFeeCredits:       storage,
		RefundsPerEpoch:         map[uint64]int64{},
		UserFeeIncreasePermille: p.MaxUserFeeIncreasePermille,
	}
}

// Refund computes the credits owed back for freeing byteCount bytes that
// were charged at epoch chargedEpoch, given the current epoch and this
// Pricing's decay curve.
func (p Pricing) Refund(chargedEpoch, currentEpoch uint64, byteCount uint32, priceAtCharge int64) int64 {
	if currentEpoch < chargedEpoch {
		return 0
	}
	elapsed := currentEpoch - chargedEpoch
	decay := p.RefundDecayPermille * int64(elapsed)
	if decay > 1000 {
		decay = 1000
	}
	remainingPermille := int64(1000) - decay
	gross := int64(byteCount) * priceAtCharge
	return gross * remainingPermille / 1000
}

// RefundForFlags walks flags.RefundEpochByteCounts and sums the refund
// owed for every epoch bucket, using priceAtCharge as the price that
// applied at the time each bucket's bytes were charged (the engine looks
// this up per epoch from its own price history; Pricing only applies the
// decay curve here).
func (p Pricing) RefundForFlags(flags *treestore.StorageFlags, currentEpoch uint64, priceAtCharge int64) map[uint64]int64 {
	out := make(map[uint64]int64)
	if flags == nil {
		return out
	}
	for _, bucket := range flags.RefundEpochByteCounts {
		r := p.Refund(bucket.EpochIndex, currentEpoch, bucket.Bytes, priceAtCharge)
		if r != 0 {
			out[bucket.EpochIndex] = r
		}
	}
	return out
}
