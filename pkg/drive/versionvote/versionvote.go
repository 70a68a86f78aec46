// Package versionvote implements the per-epoch protocol-version vote tally
// the versioning fabric's rollover mechanism reads (§4.8, §8 scenario 6):
// one sum-tree per epoch mapping a candidate protocol version to the number
// of blocks whose proposer signaled for it so far. Evaluating the tally
// against the upgrade threshold and activating a new PlatformVersion is
// pkg/version's job; this package only tallies and reports.
package versionvote

import (
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

func encodeVersion(v uint32) []byte {
	return []byte{byte(v >> 24), byte(v >> 16), byte(v >> 8), byte(v)}
}

func decodeVersion(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// ensureEpoch brings epochIndex's vote-tally sum-tree into existence: the
// UpgradeVoteTallies grouping subtree under RootMisc (shared by every
// epoch), then the epoch's own sum-tree nested under it.
func ensureEpoch(ctx *drive.Context, epochIndex uint64) error {
	path := pathschema.UpgradeVoteTalliesPath(epochIndex)
	groupPath := path[:len(path)-1]
	if err := ctx.EnsureSubtree(groupPath[:len(groupPath)-1], groupPath[len(groupPath)-1], treestore.NewTree(nil)); err != nil {
		return err
	}
	return ctx.EnsureSubtree(path[:len(path)-1], path[len(path)-1], treestore.NewSumTree(nil))
}

// RecordVote registers one proposer's vote for proposedVersion in
// epochIndex's tally and returns the new count for that version. A block's
// proposer votes for the version by proposing it; callers record one vote
// per block, not one per proposer per epoch, so a proposer that proposes
// many blocks in the epoch is weighted by how many it actually won.
func RecordVote(ctx *drive.Context, epochIndex uint64, proposedVersion uint32) (int64, error) {
	if err := ensureEpoch(ctx, epochIndex); err != nil {
		return 0, err
	}
	path := pathschema.UpgradeVoteTalliesPath(epochIndex)
	key := encodeVersion(proposedVersion)
	el, err := ctx.Get(path, key)
	var current int64
	switch {
	case err == nil:
		current = el.SumItemValue
	case err == treestore.ErrNotFound || err == treestore.ErrSubtreeNotFound:
		current = 0
	default:
		return 0, err
	}
	next := current + 1
	ctx.Insert(path, key, treestore.NewSumItem(next, nil))
	return next, nil
}

// FetchTallies returns epochIndex's per-candidate-version vote counts. A
// missing epoch (no vote yet recorded) reads as an empty map.
func FetchTallies(store treestore.Store, epochIndex uint64) (map[uint32]int64, error) {
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: pathschema.UpgradeVoteTalliesPath(epochIndex),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			OrderAscending: true,
		},
	})
	if err != nil {
		if err == treestore.ErrSubtreeNotFound {
			return map[uint32]int64{}, nil
		}
		return nil, err
	}
	out := make(map[uint32]int64, len(pairs))
	for _, pair := range pairs {
		out[decodeVersion(pair.Key)] = pair.Element.SumItemValue
	}
	return out, nil
}
