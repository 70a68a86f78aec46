// Package vote implements the Votes subtree (§3, §4.5): contested-resource
// polls and the per-identity reference each cast vote leaves behind, so a
// voter's prior choice can always be found and revised without rescanning
// every poll.
package vote

import (
	"encoding/json"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// Poll is a single contested-resource vote: one contestant per candidate
// document id, tallied by masternode voting weight. A unique index whose
// write path collides with an existing document triggers one of these
// instead of an outright StateError (§4.5's "contested indices ... trigger
// a resolution vote").
type Poll struct {
	ID           []byte           `json:"id"`
	ContractID   []byte           `json:"contract_id"`
	DocumentType string           `json:"document_type"`
	IndexName    string           `json:"index_name"`
	Contestants  [][]byte         `json:"contestants"` // candidate document ids
	Tally        map[string]int64 `json:"tally"`        // contestant id (hex-free raw string key) -> vote weight
	EndsAtMs     uint64           `json:"ends_at_ms"`
	ResolvedAt   uint64           `json:"resolved_at,omitempty"`
	WinnerID     []byte           `json:"winner_id,omitempty"`
}

const recordKey = "record"

// Fetch reads pollID's current state.
func Fetch(store treestore.Store, pollID []byte) (*Poll, error) {
	el, err := store.Get(pathschema.VotePollPath(pollID), []byte(recordKey))
	if err != nil {
		if err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound {
			return nil, drive.ErrGroupActionNotFound
		}
		return nil, err
	}
	var p Poll
	if err := json.Unmarshal(el.ItemValue, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Prove builds a proved path query for pollID's current state.
func Prove(store treestore.Store, pollID []byte) ([]byte, error) {
	pq := &treestore.PathQuery{
		Path: pathschema.VotePollPath(pollID),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.ExactKey([]byte(recordKey))},
			OrderAscending: true,
		},
	}
	return store.QueryProved(pq)
}

// Open registers a new poll.
func Open(ctx *drive.Context, p *Poll) error {
	if p.Tally == nil {
		p.Tally = make(map[string]int64)
	}
	if err := ctx.EnsureSubtree([][]byte{pathschema.RootVotes}, p.ID, treestore.NewTree(nil)); err != nil {
		return err
	}
	return writeRecord(ctx, p)
}

func writeRecord(ctx *drive.Context, p *Poll) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ctx.Insert(pathschema.VotePollPath(p.ID), []byte(recordKey), treestore.NewItem(raw, nil))
	return nil
}

// voterChoice is what a VoterReferencePath entry records: which poll and
// which contestant a voter most recently chose, so a later re-vote can
// find and retract the prior tally contribution.
type voterChoice struct {
	PollID       []byte `json:"poll_id"`
	ContestantID []byte `json:"contestant_id"`
	Weight       int64  `json:"weight"`
}

// FetchVoterChoice returns voterID's current choice on pollID, if any.
func FetchVoterChoice(store treestore.Store, voterID, pollID []byte) (contestantID []byte, weight int64, found bool, err error) {
	el, getErr := store.Get(pathschema.VoterReferencePath(voterID), pollID)
	if getErr != nil {
		if getErr == treestore.ErrNotFound || getErr == treestore.ErrSubtreeNotFound {
			return nil, 0, false, nil
		}
		return nil, 0, false, getErr
	}
	return decodeVoterChoice(el)
}

func decodeVoterChoice(el *treestore.Element) (contestantID []byte, weight int64, found bool, err error) {
	var vc voterChoice
	if err := json.Unmarshal(el.ItemValue, &vc); err != nil {
		return nil, 0, false, err
	}
	return vc.ContestantID, vc.Weight, true, nil
}

// CastVote records voterID's vote of weight for contestantID on poll,
// retracting any prior choice's weight from the tally first so a voter
// can change their mind without double-counting. Only valid in apply mode
// (it reads the voter's prior choice through ctx.Get).
func CastVote(ctx *drive.Context, p *Poll, voterID, contestantID []byte, weight int64) error {
	var (
		prevContestant []byte
		prevWeight     int64
		found          bool
	)
	el, getErr := ctx.Get(pathschema.VoterReferencePath(voterID), p.ID)
	switch {
	case getErr == nil:
		prevContestant, prevWeight, found, getErr = decodeVoterChoice(el)
		if getErr != nil {
			return getErr
		}
	case getErr == treestore.ErrNotFound || getErr == treestore.ErrSubtreeNotFound:
		// no prior vote to retract
	default:
		return getErr
	}
	if p.Tally == nil {
		p.Tally = make(map[string]int64)
	}
	if found {
		p.Tally[string(prevContestant)] -= prevWeight
	}
	p.Tally[string(contestantID)] += weight

	if err := ctx.EnsureSubtree([][]byte{pathschema.RootVotes}, voterID, treestore.NewTree(nil)); err != nil {
		return err
	}
	raw, err := json.Marshal(voterChoice{PollID: p.ID, ContestantID: contestantID, Weight: weight})
	if err != nil {
		return err
	}
	ctx.Insert(pathschema.VoterReferencePath(voterID), p.ID, treestore.NewItem(raw, nil))
	return writeRecord(ctx, p)
}

// Resolve closes p, recording winnerID and resolvedAtMs. The caller picks
// the winner (highest tally, ties broken by caller policy); Resolve only
// persists the decision.
func Resolve(ctx *drive.Context, p *Poll, winnerID []byte, resolvedAtMs uint64) error {
	p.WinnerID = winnerID
	p.ResolvedAt = resolvedAtMs
	return writeRecord(ctx, p)
}

// Leader returns the contestant with the highest tally and its weight. It
// is deterministic only when the tally has no tie; callers are expected
// to break ties by a stable secondary rule (e.g. document creation order)
// not expressed in this package.
func Leader(p *Poll) (contestantID []byte, weight int64) {
	var best string
	var bestWeight int64
	first := true
	for id, w := range p.Tally {
		if first || w > bestWeight {
			best, bestWeight, first = id, w, false
		}
	}
	if first {
		return nil, 0
	}
	return []byte(best), bestWeight
}
