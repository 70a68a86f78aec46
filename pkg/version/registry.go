package version

import (
	"sync"
	"sync/atomic"
)

// PatchFunc transforms a base PlatformVersion into a patched one. It must
// not mutate the PlatformVersion it is handed; use Clone/WithFeature.
type PatchFunc func(base *PlatformVersion) *PlatformVersion

type patchKey struct {
	protocolVersion uint32
	height          uint64
}

// Registry is the process-lifetime home for the platform's current
// feature-version table. Reads go through an atomic.Pointer so dispatch
// sites (called on every state-transition apply) never take a lock;
// registration and height advancement are rare and take patchMu.
//
// CONCURRENCY: Current is safe to call from any number of goroutines at
// any time. RegisterPatch and ApplyHeight are intended to be called only
// from the single thread that drives block processing; calling them
// concurrently with each other is not supported.
type Registry struct {
	current *atomic.Pointer[PlatformVersion]

	patchMu sync.Mutex
	patches map[patchKey]PatchFunc

	lastProtocolVersion uint32
	base                *PlatformVersion
}

// NewRegistry creates a Registry whose current version starts at base,
// with no patches applied.
func NewRegistry(base *PlatformVersion) *Registry {
	p := &atomic.Pointer[PlatformVersion]{}
	p.Store(base)
	return &Registry{
		current:             p,
		patches:             make(map[patchKey]PatchFunc),
		lastProtocolVersion: base.ProtocolVersion,
		base:                base,
	}
}

// Current returns the active PlatformVersion, including any patch applied
// for the current height.
func (r *Registry) Current() *PlatformVersion {
	return r.current.Load()
}

// RegisterPatch installs fn to run whenever ApplyHeight is called with
// height, as long as the registry's base protocol version at that time is
// still protocolVersion. A later protocol version change drops every
// patch registered under the old version, matching a hot patch's lifetime
// being scoped to the protocol version it shipped for.
func (r *Registry) RegisterPatch(protocolVersion uint32, height uint64, fn PatchFunc) {
	r.patchMu.Lock()
	defer r.patchMu.Unlock()
	r.patches[patchKey{protocolVersion: protocolVersion, height: height}] = fn
}

// SetBaseProtocolVersion changes the unpatched protocol version the
// registry tracks. If this differs from the previously tracked protocol
// version, every registered patch is dropped — patches never carry over
// across a protocol version bump, even if the new version happens to
// reuse the same height.
func (r *Registry) SetBaseProtocolVersion(base *PlatformVersion) {
	r.patchMu.Lock()
	defer r.patchMu.Unlock()

	if base.ProtocolVersion != r.lastProtocolVersion {
		r.patches = make(map[patchKey]PatchFunc)
		r.lastProtocolVersion = base.ProtocolVersion
	}
	r.base = base
	r.current.Store(base)
}

// ApplyHeight recomputes the current PlatformVersion for height: the base
// version patched by whatever PatchFunc (if any) is registered for
// (current protocol version, height). Heights with no matching patch
// leave the base version in effect.
func (r *Registry) ApplyHeight(height uint64) {
	r.patchMu.Lock()
	fn, ok := r.patches[patchKey{protocolVersion: r.lastProtocolVersion, height: height}]
	base := r.base
	r.patchMu.Unlock()

	if !ok {
		r.current.Store(base)
		return
	}
	r.current.Store(fn(base))
}

// UpgradeState is the queryable snapshot of one epoch's protocol-version
// vote tally (§4.8, §8 scenario 6), answering "query for
// version_upgrade_state" against a given epoch's recorded votes.
type UpgradeState struct {
	EpochIndex                uint64
	Tallies                   map[uint32]int64
	TotalVotes                int64
	UpgradePercentagePermille uint32
	WinningVersion            uint32
	ThresholdMet              bool
	ActiveProtocolVersion     uint32
}

// EvaluateUpgrade reports whether tallies crossed upgradePercentagePermille
// (expressed out of 1000; e.g. 670 for 67%) in favor of a single candidate
// protocol version. The candidate with the most votes wins ties against the
// threshold; a tallies map with no entries never meets the threshold.
func EvaluateUpgrade(tallies map[uint32]int64, upgradePercentagePermille uint32) (winner uint32, total int64, met bool) {
	for _, c := range tallies {
		total += c
	}
	if total == 0 {
		return 0, 0, false
	}
	var winnerVotes int64
	for v, c := range tallies {
		if c > winnerVotes {
			winner, winnerVotes = v, c
		}
	}
	if winnerVotes*1000 < total*int64(upgradePercentagePermille) {
		return 0, total, false
	}
	return winner, total, true
}

// RolloverEpoch evaluates epochIndex's tallies against upgradePercentage and,
// if the threshold is met and candidates names a PlatformVersion for the
// winning protocol version, activates it as the new base — Current reports
// the new version as soon as RolloverEpoch returns, so the next block
// dispatches at the new version. It returns the
// resulting UpgradeState either way, so a caller can tell a met-but-unknown
// candidate apart from a tally that never reached the threshold.
func (r *Registry) RolloverEpoch(epochIndex uint64, tallies map[uint32]int64, upgradePercentagePermille uint32, candidates map[uint32]*PlatformVersion) UpgradeState {
	winner, total, met := EvaluateUpgrade(tallies, upgradePercentagePermille)
	state := UpgradeState{
		EpochIndex:                epochIndex,
		Tallies:                   tallies,
		TotalVotes:                total,
		UpgradePercentagePermille: upgradePercentagePermille,
		WinningVersion:            winner,
		ThresholdMet:              met,
		ActiveProtocolVersion:     r.Current().ProtocolVersion,
	}
	if !met {
		return state
	}
	next, ok := candidates[winner]
	if !ok {
		return state
	}
	r.SetBaseProtocolVersion(next)
	state.ActiveProtocolVersion = next.ProtocolVersion
	return state
}
