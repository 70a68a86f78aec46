package token

import (
	"encoding/binary"
	"encoding/json"

	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// ScheduleKind distinguishes the four distribution schedule shapes §3/§4.5
// describe. Pre-programmed and time-based schedules queue by wall-clock
// timestamp; block-based and epoch-based schedules queue by height, but
// the engine still stores them under the same millisecond-timed queue,
// converted at enqueue time by the caller who knows the block schedule.
type ScheduleKind byte

const (
	SchedulePreProgrammed ScheduleKind = iota
	ScheduleBlockBased
	ScheduleTimeBased
	ScheduleEpochBased
)

// DistributionEntry is one pending credit waiting in a token's queue.
type DistributionEntry struct {
	TimestampMs  uint64       `json:"timestamp_ms"`
	RecipientID  []byte       `json:"recipient_id"`
	Amount       int64        `json:"amount"`
	ScheduleKind ScheduleKind `json:"schedule_kind"`
}

// Enqueue places entry in tokenID's distribution queue, keyed by
// timestamp so ascending iteration yields due-soonest first. Ties between
// entries sharing a timestamp are broken by appending the recipient id to
// the key.
func Enqueue(ctx *drive.Context, tokenID []byte, entry *DistributionEntry) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	ctx.Insert(pathschema.TokenDistributionQueuePath(tokenID), queueKey(entry.TimestampMs, entry.RecipientID), treestore.NewItem(raw, nil))
	return nil
}

func queueKey(timestampMs uint64, recipientID []byte) []byte {
	key := make([]byte, 8+len(recipientID))
	binary.BigEndian.PutUint64(key[:8], timestampMs)
	copy(key[8:], recipientID)
	return key
}

// DueEntries returns every queued entry whose timestamp is ≤ blockTimeMs,
// in ascending timestamp order, per §4.5's "dequeue all entries with
// timestamp ≤ block.time_ms" rule.
func DueEntries(store treestore.Store, tokenID []byte, blockTimeMs uint64) ([]*DistributionEntry, error) {
	pairs, _, err := store.Query(&treestore.PathQuery{
		Path: pathschema.TokenDistributionQueuePath(tokenID),
		Query: treestore.SizedQuery{
			QueryItems:     []treestore.QueryItem{treestore.KeyRangeFrom(nil)},
			OrderAscending: true,
		},
	})
	if err != nil {
		return nil, err
	}

	var due []*DistributionEntry
	for _, pair := range pairs {
		var entry DistributionEntry
		if err := json.Unmarshal(pair.Element.ItemValue, &entry); err != nil {
			return nil, err
		}
		if entry.TimestampMs > blockTimeMs {
			break
		}
		due = append(due, &entry)
	}
	return due, nil
}

// Dequeue removes entry from tokenID's queue, for use once it has been
// credited within the same batch.
func Dequeue(ctx *drive.Context, tokenID []byte, entry *DistributionEntry) {
	ctx.Delete(pathschema.TokenDistributionQueuePath(tokenID), queueKey(entry.TimestampMs, entry.RecipientID))
}
