// Package drive is the typed wrapper around the tree store: it owns the
// fixed root-tree layout, the per-block cost-metered batch engine, and the
// shared block/global caches that every domain module reads and writes
// through.
package drive

// BlockInfo is the per-block context a consensus host supplies to every
// apply or query call. Field names mirror what a state-transition action
// needs to stamp onto the records it writes (timestamps, epoch, fee
// pricing context) rather than anything ABCI-specific.
type BlockInfo struct {
	Height            uint64
	Epoch             uint16
	TimeMs            uint64
	CoreHeight        uint32
	ProposerProTxHash []byte
	ProtocolVersion   uint32
}

// Mode selects whether a batch engine call touches the tree store (Apply)
// or only an estimated-layer-info map to produce worst-case costs without
// reading state (Estimate).
type Mode int

const (
	ModeApply Mode = iota
	ModeEstimate
)
