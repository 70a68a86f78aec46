package drive

import (
	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultContractCacheCapacity = 512

// ContractFetchInfo is the cached, already-deserialized shape of a data
// contract plus the bookkeeping a document/token lookup needs on every
// access: its config flags and the feature version it was last read
// under.
type ContractFetchInfo struct {
	ContractID     []byte
	Schema         []byte
	ConfigFlags    uint32
	FeatureVersion uint16
}

// Cache holds the engine-owned caches described in §5: a global,
// persistent contract-fetch-info cache, and a block-scoped overlay that
// holds speculative entries written during the block currently being
// executed. The overlay is merged into the global cache on commit and
// thrown away on rollback; nothing here is safe for concurrent writers,
// matching the single-writer block-commit thread the rest of the engine
// assumes.
type Cache struct {
	global *lru.Cache[string, *ContractFetchInfo]
	block  map[string]*ContractFetchInfo
}

// NewCache builds a Cache with the default global capacity.
func NewCache() *Cache {
	g, err := lru.New[string, *ContractFetchInfo](defaultContractCacheCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// defaultContractCacheCapacity never is.
		panic(err)
	}
	return &Cache{global: g, block: make(map[string]*ContractFetchInfo)}
}

func contractCacheKey(contractID []byte) string { return string(contractID) }

// GetContract looks the block overlay up first, then the global cache.
func (c *Cache) GetContract(contractID []byte) (*ContractFetchInfo, bool) {
	key := contractCacheKey(contractID)
	if info, ok := c.block[key]; ok {
		return info, true
	}
	return c.global.Get(key)
}

// PutContractSpeculative records info in the block overlay only. Call
// this from within a block's execution; it becomes visible to the global
// cache only once CommitBlock runs.
func (c *Cache) PutContractSpeculative(info *ContractFetchInfo) {
	c.block[contractCacheKey(info.ContractID)] = info
}

// PutContractGlobal writes directly to the global cache, bypassing the
// block overlay. Used for immutable system-contract handles that never
// participate in rollback.
func (c *Cache) PutContractGlobal(info *ContractFetchInfo) {
	c.global.Add(contractCacheKey(info.ContractID), info)
}

// CommitBlock merges every speculative entry written during the block
// into the global cache and clears the overlay.
func (c *Cache) CommitBlock() {
	for _, info := range c.block {
		c.global.Add(contractCacheKey(info.ContractID), info)
	}
	c.block = make(map[string]*ContractFetchInfo)
}

// RollbackBlock discards every speculative entry without touching the
// global cache.
func (c *Cache) RollbackBlock() {
	c.block = make(map[string]*ContractFetchInfo)
}
