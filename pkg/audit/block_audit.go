package audit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	gcpfirestore "cloud.google.com/go/firestore"

	"github.com/driveplatform/drive/pkg/host"
	"github.com/driveplatform/drive/pkg/logging"
)

// BlockEntry is one mirrored audit record: a summary of everything a host
// applied in one block, chained to the previous entry by hash so a
// reviewer can detect a gap or a tampered record in the off-chain trail
// without needing to trust Firestore itself.
type BlockEntry struct {
	EntryID      string    `json:"entry_id" firestore:"entryId"`
	Height       uint64    `json:"height" firestore:"height"`
	Epoch        uint16    `json:"epoch" firestore:"epoch"`
	RootHash     string    `json:"root_hash" firestore:"rootHash"`
	Applied      int       `json:"applied" firestore:"applied"`
	Rejected     int       `json:"rejected" firestore:"rejected"`
	RecordedAt   time.Time `json:"recorded_at" firestore:"recordedAt"`
	PreviousHash string    `json:"previous_hash" firestore:"previousHash"`
	EntryHash    string    `json:"entry_hash" firestore:"entryHash"`
}

// BlockTrail mirrors one BlockEntry per applied block under a single
// Firestore collection, chained by hash the same way a per-user
// compliance audit trail would chain its own entries.
type BlockTrail struct {
	client *Client
	log    *logging.Logger
}

func NewBlockTrail(client *Client, log *logging.Logger) *BlockTrail {
	if log == nil {
		log = logging.Noop()
	}
	return &BlockTrail{client: client, log: log}
}

func (t *BlockTrail) collection() *gcpfirestore.CollectionRef {
	if t.client == nil || !t.client.enabled || t.client.firestore == nil {
		return nil
	}
	return t.client.firestore.Collection("driveBlockAuditTrail")
}

// RecordBlock summarizes results into a BlockEntry, chains it to the
// previous entry's hash, and mirrors it to Firestore. It swallows errors
// after logging them - a failed mirror write must never block block
// application, since it records history rather than participating in it.
func (t *BlockTrail) RecordBlock(ctx context.Context, info host.BlockInfo, rootHash []byte, results []host.TransitionResult) {
	if t.client == nil || !t.client.enabled {
		return
	}

	applied, rejected := 0, 0
	for _, r := range results {
		if r.Applied {
			applied++
		} else {
			rejected++
		}
	}

	previousHash, err := t.latestHash(ctx)
	if err != nil {
		t.log.Warn("audit: failed to read previous block entry", "error", err)
	}

	entry := &BlockEntry{
		EntryID:      fmt.Sprintf("block_%d", info.Height),
		Height:       info.Height,
		Epoch:        info.Epoch,
		RootHash:     hex.EncodeToString(rootHash),
		Applied:      applied,
		Rejected:     rejected,
		RecordedAt:   time.Now().UTC(),
		PreviousHash: previousHash,
	}
	entry.EntryHash = computeEntryHash(entry)

	coll := t.collection()
	if coll == nil {
		return
	}
	if _, err := coll.Doc(entry.EntryID).Set(ctx, entry); err != nil {
		t.log.Warn("audit: failed to mirror block entry", "height", info.Height, "error", err)
		return
	}
	t.log.Info("audit: mirrored block entry", "height", info.Height, "applied", applied, "rejected", rejected)
}

func (t *BlockTrail) latestHash(ctx context.Context) (string, error) {
	coll := t.collection()
	if coll == nil {
		return "", nil
	}
	docs, err := coll.OrderBy("height", gcpfirestore.Desc).Limit(1).Documents(ctx).GetAll()
	if err != nil {
		return "", fmt.Errorf("query latest block entry: %w", err)
	}
	if len(docs) == 0 {
		return "", nil
	}
	var prev BlockEntry
	if err := docs[0].DataTo(&prev); err != nil {
		return "", fmt.Errorf("parse latest block entry: %w", err)
	}
	return prev.EntryHash, nil
}

// computeEntryHash hashes every field but EntryHash itself, so the chain
// breaks visibly if any prior field is altered after the fact.
func computeEntryHash(e *BlockEntry) string {
	payload, _ := json.Marshal(struct {
		EntryID      string    `json:"entry_id"`
		Height       uint64    `json:"height"`
		Epoch        uint16    `json:"epoch"`
		RootHash     string    `json:"root_hash"`
		Applied      int       `json:"applied"`
		Rejected     int       `json:"rejected"`
		RecordedAt   time.Time `json:"recorded_at"`
		PreviousHash string    `json:"previous_hash"`
	}{e.EntryID, e.Height, e.Epoch, e.RootHash, e.Applied, e.Rejected, e.RecordedAt, e.PreviousHash})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
