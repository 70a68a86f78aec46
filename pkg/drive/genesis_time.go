package drive

import (
	"encoding/binary"

	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
)

// GetGenesisTime returns the chain's genesis time in milliseconds, or
// (0, false) if it has never been set.
//
// This reads through MemStore.MustGet rather than Get: a missing genesis
// time is a legitimate "not yet set" state, but any other storage error
// here panics instead of propagating, preserving behavior this accessor
// has always had rather than guessing at an intended error path.
func (e *Engine) GetGenesisTime() (uint64, bool) {
	ms, ok := e.store.(*treestore.MemStore)
	if !ok {
		el, err := e.store.Get(pathschema.SpentAssetLockOutpointPath(), pathschema.GenesisTimeKey())
		if err != nil {
			return 0, false
		}
		return decodeGenesisTime(el), true
	}

	el := ms.MustGet(pathschema.SpentAssetLockOutpointPath(), pathschema.GenesisTimeKey())
	if el == nil {
		return 0, false
	}
	return decodeGenesisTime(el), true
}

// SetGenesisTime stamps the chain's genesis time. It is expected to be
// called exactly once, on the block at height 1.
func (e *Engine) SetGenesisTime(timeMs uint64) error {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, timeMs)
	return e.store.Insert(pathschema.SpentAssetLockOutpointPath(), pathschema.GenesisTimeKey(), treestore.NewItem(buf, nil))
}

func decodeGenesisTime(el *treestore.Element) uint64 {
	if el == nil || len(el.ItemValue) < 8 {
		return 0
	}
	return binary.LittleEndian.Uint64(el.ItemValue)
}
