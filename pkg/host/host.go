// Package host defines the boundary a consensus host drives: apply an
// ordered block of already-serialized state transitions, and answer typed
// queries against committed state. Everything upstream of this package
// (peer-to-peer networking, block proposal/finality, RPC transport) is out
// of scope - host only shapes the in-process API such a driver would call.
package host

import (
	"time"

	"github.com/google/uuid"

	"github.com/driveplatform/drive/pkg/action"
	"github.com/driveplatform/drive/pkg/consensuserrors"
	"github.com/driveplatform/drive/pkg/cost"
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/creditpool"
	"github.com/driveplatform/drive/pkg/drive/versionvote"
	"github.com/driveplatform/drive/pkg/logging"
	"github.com/driveplatform/drive/pkg/metrics"
	"github.com/driveplatform/drive/pkg/version"
)

// BlockInfo is the consensus context a host supplies for every block.
type BlockInfo struct {
	Height     uint64
	Epoch      uint16
	TimeMs     uint64
	CoreHeight uint32

	// ProposerID identifies the block's proposer, credited by creditpool's
	// per-epoch block counts and, via ProposedProtocolVersion, by the
	// versioning fabric's upgrade vote tally.
	ProposerID []byte

	// ProposedProtocolVersion is the protocol version this block's proposer
	// is signaling support for (§4.8). A zero value means the proposer did
	// not signal a version and casts no vote.
	ProposedProtocolVersion uint32
}

// TransitionResult is what ApplyBlock reports for one transition.
type TransitionResult struct {
	// TransitionID correlates this result back to the raw bytes the host
	// submitted, independent of block position.
	TransitionID string
	Applied      bool
	Fee          cost.FeeResult
	Error        error
}

// Decoder turns one raw serialized state transition into a decoded
// action.StateTransition, rejecting an unrecognized format-version byte
// before Host ever sees it. Wire decoding (spec's bincode-style format) has
// no grounding library in the pack, so it stays the host's job.
type Decoder func(raw []byte) (action.StateTransition, error)

// Host drives one Engine through block application and query serving.
type Host struct {
	engine   *drive.Engine
	pipeline *action.Pipeline
	decode   Decoder
	log      *logging.Logger
	rec      *metrics.Recorder
}

// New wires an engine, a decoder, a logger, and a metrics recorder into a
// Host. logger and rec may be nil, in which case logging.Noop() and a
// no-op recorder are substituted so callers never need a nil check.
func New(engine *drive.Engine, pipeline *action.Pipeline, decode Decoder, log *logging.Logger, rec *metrics.Recorder) *Host {
	if log == nil {
		log = logging.Noop()
	}
	return &Host{engine: engine, pipeline: pipeline, decode: decode, log: log, rec: rec}
}

func (h *Host) recordApplied() {
	if h.rec != nil {
		h.rec.RecordApplied()
	}
}

func (h *Host) recordRejected(err error) {
	if h.rec != nil {
		h.rec.RecordRejected(err)
	}
}

// ApplyBlock decodes and executes each raw transition in order against
// info, in the order given. A transition that fails decoding, validation,
// or any pipeline step is rejected - it contributes no state change and no
// fee - while later transitions in the same block still run. Once every
// transition has been attempted, the engine's block-scoped contract cache
// overlay is committed into its global cache, matching the per-block
// commit boundary pkg/drive.Cache documents.
func (h *Host) ApplyBlock(info BlockInfo, raw [][]byte) []TransitionResult {
	started := time.Now()
	results := make([]TransitionResult, len(raw))

	for i, bytes := range raw {
		id := uuid.NewString()
		t, err := h.decode(bytes)
		if err != nil {
			err = consensuserrors.Protocol(consensuserrors.CodeUnknownVersion, "decode transition %d: %v", i, err)
			h.log.Error("transition rejected at decode", "transition_id", id, "height", info.Height, "error", err)
			h.recordRejected(err)
			results[i] = TransitionResult{TransitionID: id, Applied: false, Error: err}
			continue
		}

		result, err := h.pipeline.Execute(t)
		if err != nil {
			h.log.Warn("transition rejected", "transition_id", id, "height", info.Height, "variant", t.Variant(), "error", err)
			h.recordRejected(err)
			results[i] = TransitionResult{TransitionID: id, Applied: false, Error: err}
			continue
		}

		h.log.Info("transition applied", "transition_id", id, "height", info.Height, "variant", t.Variant(), "fee", result.Fee.ProcessingFeeCredits+result.Fee.StorageFeeCredits)
		h.recordApplied()
		results[i] = TransitionResult{TransitionID: id, Applied: true, Fee: result.Fee}
	}

	if len(info.ProposerID) > 0 {
		if err := h.engine.Apply(func(ctx *drive.Context) error {
			if _, err := creditpool.RecordProposedBlock(ctx, uint64(info.Epoch), info.ProposerID); err != nil {
				return err
			}
			if info.ProposedProtocolVersion != 0 {
				_, err := versionvote.RecordVote(ctx, uint64(info.Epoch), info.ProposedProtocolVersion)
				return err
			}
			return nil
		}); err != nil {
			h.log.Error("failed to record proposer block/vote", "height", info.Height, "error", err)
		}
	}

	h.engine.Cache().CommitBlock()
	if h.rec != nil {
		h.rec.ObserveApplyDuration(started)
	}
	h.log.Info("block applied", "height", info.Height, "epoch", info.Epoch, "transitions", len(raw))
	return results
}

// RolloverEpoch evaluates epochIndex's protocol-version vote tally against
// upgradePercentagePermille and activates the winning candidate's
// PlatformVersion (looked up in candidates) as the new base version when the
// threshold is met (§4.8, §8 scenario 6). Callers invoke this once per
// epoch boundary, after the epoch's last block has been applied — mirroring
// pkg/drive/creditpool's rollover steps, this is a composable function, not
// something ApplyBlock triggers on its own, since only the driver knows
// when an epoch has actually closed.
func (h *Host) RolloverEpoch(epochIndex uint64, upgradePercentagePermille uint32, candidates map[uint32]*version.PlatformVersion) (version.UpgradeState, error) {
	tallies, err := versionvote.FetchTallies(h.engine.Store(), epochIndex)
	if err != nil {
		return version.UpgradeState{}, err
	}
	return h.engine.Versions().RolloverEpoch(epochIndex, tallies, upgradePercentagePermille, candidates), nil
}
