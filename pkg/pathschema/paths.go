// Package pathschema is the closed set of functions that produce the
// tree-store paths for every well-known subtree and its sub-locations.
// Every function here must keep returning byte-identical paths across
// releases: a path is part of the on-disk layout, not an implementation
// detail, and changing one is a breaking change to every proof a light
// client has ever verified.
package pathschema

// Root tree keys. Renumbering any of these is a breaking change.
var (
	RootIdentities                 = []byte{0x00}
	RootBalances                   = []byte{0x01}
	RootSpentAssetLockTransactions = []byte{0x02}
	RootDataContracts              = []byte{0x03}
	RootDocuments                  = []byte{0x04}
	RootTokens                     = []byte{0x05}
	RootVotes                      = []byte{0x06}
	RootWithdrawalTransactions     = []byte{0x07}
	RootCreditPools                = []byte{0x08}
	RootGroups                     = []byte{0x09}
	RootMisc                       = []byte{0x0a}
)

// Sub-location keys used within more than one subtree.
var (
	keyKeysByID       = []byte{0x00} // identity_id/keys/<key_id>
	keyKeysByPurpose  = []byte{0x01} // identity_id/keys_by_purpose/<purpose>/<security_level>/<key_id>
	keyHistory        = []byte{0x02} // contract history index
	keyPrimary        = []byte{0x00} // documents primary-key subtree
	keyIndexPrefix    = []byte{0x01} // documents index subtrees
	keyGenesisTimeKey = []byte("g")
	keyEpochPrefix    = []byte{0x00}
	keyStorageFeePool = []byte{0x01}
	keyQueuedPrefix   = []byte{0x00}
	keyPooledPrefix   = []byte{0x01}
	keyBroadcastedKey = []byte{0x02}
	keyExpiredPrefix  = []byte{0x03}
	keyBalancesPrefix = []byte{0x00} // token balances subtree within a token's own space
	keyFrozenPrefix   = []byte{0x01}
	keyDistPrefix     = []byte{0x02}
	keyContractInfo   = []byte{0x03}
	keyContractNonces = []byte{0x03} // identity_id/contract_nonces/<contract_id>
)

// IdentityPath returns the path to the subtree holding one identity's
// own record and key-by-id index.
func IdentityPath(id []byte) [][]byte {
	return [][]byte{RootIdentities, id}
}

// IdentityKeysByIDPath returns the subtree under which an identity's
// public keys are stored keyed by key_id, for iteration.
func IdentityKeysByIDPath(id []byte) [][]byte {
	return [][]byte{RootIdentities, id, keyKeysByID}
}

// IdentityQueryKeysForAuthenticationPath returns the subtree of
// reference-only entries for a given (purpose, security_level), used to
// answer "which of this identity's keys satisfy this requirement"
// without scanning every key.
func IdentityQueryKeysForAuthenticationPath(id []byte, purpose byte, securityLevel byte) [][]byte {
	return [][]byte{RootIdentities, id, keyKeysByPurpose, {purpose}, {securityLevel}}
}

// IdentityContractNoncePath returns the subtree of one identity's
// per-contract nonce counters (the second of I4's two nonce axes: Batch
// actions scoped to a single contract bump this counter instead of the
// identity's global one).
func IdentityContractNoncePath(identityID []byte) [][]byte {
	return [][]byte{RootIdentities, identityID, keyContractNonces}
}

// BalancePath returns the path to the sum-tree of all identity balances.
func BalancePath() [][]byte {
	return [][]byte{RootBalances}
}

// BalanceKey returns the key of identityID's entry within RootBalances.
func BalanceKey(identityID []byte) []byte {
	return identityID
}

// SpentAssetLockOutpointPath returns the dedup subtree for spent
// asset-lock outpoints.
func SpentAssetLockOutpointPath() [][]byte {
	return [][]byte{RootSpentAssetLockTransactions}
}

// GenesisTimeKey returns the key genesis time is stored under within
// RootSpentAssetLockTransactions — a single little-endian i64 Item, not a
// subtree of its own.
func GenesisTimeKey() []byte {
	return keyGenesisTimeKey
}

// DataContractPath returns the path to a contract's current record.
func DataContractPath(contractID []byte) [][]byte {
	return [][]byte{RootDataContracts, contractID}
}

// DataContractHistoryPath returns the path to a versioned contract's
// history-by-timestamp subtree, present only when keeps_history is set.
func DataContractHistoryPath(contractID []byte) [][]byte {
	return [][]byte{RootDataContracts, contractID, keyHistory}
}

// ContractDocumentsPrimaryKeyPath returns the primary-key subtree for one
// document type within one contract.
func ContractDocumentsPrimaryKeyPath(contractID []byte, documentType string) [][]byte {
	return [][]byte{RootDocuments, contractID, []byte(documentType), keyPrimary}
}

// ContractDocumentsIndexPath returns the subtree for a single named index
// on a document type.
func ContractDocumentsIndexPath(contractID []byte, documentType, indexName string) [][]byte {
	return [][]byte{RootDocuments, contractID, []byte(documentType), keyIndexPrefix, []byte(indexName)}
}

// TokenBalancesPath returns the sum-tree of per-identity balances for one
// token.
func TokenBalancesPath(tokenID []byte) [][]byte {
	return [][]byte{RootTokens, tokenID, keyBalancesPrefix}
}

// TokenFrozenPath returns the subtree of frozen-identity markers for one
// token.
func TokenFrozenPath(tokenID []byte) [][]byte {
	return [][]byte{RootTokens, tokenID, keyFrozenPrefix}
}

// TokenDistributionQueuePath returns the millisecond-timed queue subtree
// a token's pre-programmed/time-based/block-based distributions wait in.
func TokenDistributionQueuePath(tokenID []byte) [][]byte {
	return [][]byte{RootTokens, tokenID, keyDistPrefix}
}

// TokenContractInfoPath returns the back-reference to the contract that
// defines this token.
func TokenContractInfoPath(tokenID []byte) [][]byte {
	return [][]byte{RootTokens, tokenID, keyContractInfo}
}

// VotePollPath returns the path to a single contested-resource poll's
// tally subtree.
func VotePollPath(pollID []byte) [][]byte {
	return [][]byte{RootVotes, pollID}
}

// VoterReferencePath returns the subtree of one voter identity's cast
// votes, each an Item naming the poll, the contestant and the vote weight.
func VoterReferencePath(identityID []byte) [][]byte {
	return [][]byte{RootVotes, identityID}
}

// WithdrawalQueuedPath, WithdrawalPooledPath, WithdrawalBroadcastedPath,
// and WithdrawalExpiredPath return the subtrees for each stage of a
// withdrawal's lifecycle.
func WithdrawalQueuedPath() [][]byte      { return [][]byte{RootWithdrawalTransactions, keyQueuedPrefix} }
func WithdrawalPooledPath() [][]byte      { return [][]byte{RootWithdrawalTransactions, keyPooledPrefix} }
func WithdrawalBroadcastedPath() [][]byte { return [][]byte{RootWithdrawalTransactions, keyBroadcastedKey} }
func WithdrawalExpiredPath() [][]byte     { return [][]byte{RootWithdrawalTransactions, keyExpiredPrefix} }

// EpochPoolPath returns the per-epoch processing-fee pool subtree.
func EpochPoolPath(epochIndex uint64) [][]byte {
	return [][]byte{RootCreditPools, keyEpochPrefix, encodeEpoch(epochIndex)}
}

// StorageFeePoolPath returns the single storage-fee pool sum-tree shared
// across epochs.
func StorageFeePoolPath() [][]byte {
	return [][]byte{RootCreditPools, keyStorageFeePool}
}

// GroupActionPath returns the subtree of pending multi-party actions
// registered against one contract.
func GroupActionPath(contractID []byte) [][]byte {
	return [][]byte{RootGroups, contractID}
}

// SystemCreditsKey and PatchedVersionKey return keys within RootMisc.
var (
	SystemCreditsKey    = []byte("system_credits")
	PatchedVersionKey   = []byte("patched_version")
	UpgradeVoteTallies  = []byte("upgrade_vote_tallies")
	NegativeBalanceDebt = []byte("negative_balance_debt")
)

// NegativeBalanceDebtPath returns the path to the sum-tree of debt each
// identity has accrued from a desired fee that exceeded its balance
// (§4.6, §8 I1): a debit that clamps the Balances sum-tree entry to zero
// increments this entry by the shortfall instead of going negative there.
func NegativeBalanceDebtPath() [][]byte {
	return [][]byte{RootMisc, NegativeBalanceDebt}
}

// UpgradeVoteTalliesPath returns the path to one epoch's proposer-vote
// tally sum-tree, mapping a candidate protocol version to the number of
// blocks whose proposer signaled for it so far this epoch (§4.8).
func UpgradeVoteTalliesPath(epochIndex uint64) [][]byte {
	return [][]byte{RootMisc, UpgradeVoteTallies, encodeEpoch(epochIndex)}
}

func encodeEpoch(epochIndex uint64) []byte {
	b := make([]byte, 8)
	for i := 0; i < 8; i++ {
		b[i] = byte(epochIndex >> uint(56-8*i))
	}
	return b
}
