package host

import (
	"encoding/json"

	"github.com/driveplatform/drive/pkg/consensuserrors"
	"github.com/driveplatform/drive/pkg/drive/balance"
	"github.com/driveplatform/drive/pkg/drive/contract"
	"github.com/driveplatform/drive/pkg/drive/creditpool"
	"github.com/driveplatform/drive/pkg/drive/document"
	"github.com/driveplatform/drive/pkg/drive/identity"
	"github.com/driveplatform/drive/pkg/drive/token"
	"github.com/driveplatform/drive/pkg/drive/versionvote"
	"github.com/driveplatform/drive/pkg/drive/vote"
	"github.com/driveplatform/drive/pkg/treestore"
)

// QueryKind selects which domain surface a QueryRequest targets.
type QueryKind int

const (
	QueryIdentity QueryKind = iota
	QueryBalance
	QueryDataContract
	QueryDocuments
	QueryTokenBalance
	QueryTokenStatus
	QueryVote
	QueryEpoch
	QuerySystem
	QueryVersionUpgradeState
)

// QueryRequest carries one domain lookup. Only the fields relevant to Kind
// are read; the rest are ignored.
type QueryRequest struct {
	Kind QueryKind
	// Prove requests a proof artifact instead of a materialized value.
	Prove bool

	IdentityID    []byte
	ContractID    []byte
	TokenID       []byte
	PollID        []byte
	EpochIndex    uint64
	DocumentType  string
	DocumentID    []byte
	DocumentQuery document.Query
}

// Metadata is attached to every QueryResponse, proved or not, so a caller
// can tell which block and protocol version produced the answer.
type Metadata struct {
	Height                uint64
	CoreChainLockedHeight uint32
	Epoch                 uint16
	TimeMs                uint64
	ProtocolVersion       uint32
}

// QueryResponse holds either Proof (when the request asked to prove) or
// Value (the JSON-marshaled materialized result), never both.
type QueryResponse struct {
	Proof    []byte
	Value    []byte
	Metadata Metadata
}

// Query answers req against the engine's current committed state, stamping
// info into the response metadata. The ProtocolVersion field reads the
// engine's version registry when one was supplied to drive.NewEngine, and
// is left zero otherwise.
func (h *Host) Query(info BlockInfo, req QueryRequest) (QueryResponse, error) {
	meta := Metadata{
		Height:                info.Height,
		CoreChainLockedHeight: info.CoreHeight,
		Epoch:                 info.Epoch,
		TimeMs:                info.TimeMs,
	}
	if v := h.engine.Versions(); v != nil {
		meta.ProtocolVersion = v.Current().ProtocolVersion
	}

	store := h.engine.Store()

	if req.Prove {
		proof, err := h.proveQuery(store, req)
		if err != nil {
			return QueryResponse{}, err
		}
		return QueryResponse{Proof: proof, Metadata: meta}, nil
	}

	value, err := h.resolveQuery(store, req)
	if err != nil {
		return QueryResponse{}, err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return QueryResponse{}, consensuserrors.QuerySyntax(consensuserrors.CodeWrongProofFormat, "marshal query result: %v", err)
	}
	return QueryResponse{Value: raw, Metadata: meta}, nil
}

func (h *Host) proveQuery(store treestore.Store, req QueryRequest) ([]byte, error) {
	switch req.Kind {
	case QueryIdentity:
		return identity.Prove(store, req.IdentityID)
	case QueryBalance:
		return balance.Prove(store, req.IdentityID)
	case QueryDataContract:
		return contract.Prove(store, req.ContractID)
	case QueryDocuments:
		return document.Prove(store, req.ContractID, req.DocumentType, req.DocumentID)
	case QueryTokenBalance:
		return token.Prove(store, req.TokenID, req.IdentityID)
	case QueryVote:
		return vote.Prove(store, req.PollID)
	case QueryTokenStatus, QueryEpoch, QuerySystem, QueryVersionUpgradeState:
		return nil, consensuserrors.QuerySyntax(consensuserrors.CodeWrongProofFormat, "query kind %d has no proof form", req.Kind)
	default:
		return nil, consensuserrors.QuerySyntax(consensuserrors.CodeWrongProofFormat, "unknown query kind %d", req.Kind)
	}
}

func (h *Host) resolveQuery(store treestore.Store, req QueryRequest) (interface{}, error) {
	switch req.Kind {
	case QueryIdentity:
		return identity.Fetch(store, req.IdentityID)
	case QueryBalance:
		bal, err := balance.Fetch(store, req.IdentityID)
		if err != nil {
			return nil, err
		}
		debt, err := balance.FetchDebt(store, req.IdentityID)
		if err != nil {
			return nil, err
		}
		return struct {
			Balance             int64 `json:"balance"`
			NegativeBalanceDebt int64 `json:"negative_balance_debt"`
		}{Balance: bal, NegativeBalanceDebt: debt}, nil
	case QueryDataContract:
		return contract.Fetch(store, req.ContractID)
	case QueryDocuments:
		if req.DocumentID != nil {
			return document.Fetch(store, req.ContractID, req.DocumentType, req.DocumentID)
		}
		c, err := contract.Fetch(store, req.ContractID)
		if err != nil {
			return nil, err
		}
		dt, ok := c.FindDocumentType(req.DocumentType)
		if !ok {
			return nil, consensuserrors.QuerySyntax(consensuserrors.CodeNoMatchingIndex, "unknown document type %q", req.DocumentType)
		}
		q := req.DocumentQuery
		q.ContractID = req.ContractID
		q.DocumentType = req.DocumentType
		return document.Query(store, dt, q)
	case QueryTokenBalance:
		return token.Balance(store, req.TokenID, req.IdentityID)
	case QueryTokenStatus:
		info, err := token.FetchContractInfo(store, req.TokenID)
		if err != nil {
			return nil, err
		}
		supply, err := token.CirculatingSupply(store, req.TokenID)
		if err != nil {
			return nil, err
		}
		return struct {
			Info               *token.ContractInfo `json:"info"`
			CirculatingSupply int64                `json:"circulating_supply"`
		}{Info: info, CirculatingSupply: supply}, nil
	case QueryVote:
		return vote.Fetch(store, req.PollID)
	case QueryEpoch:
		total, err := creditpool.FetchProcessingPoolTotal(store, req.EpochIndex)
		if err != nil {
			return nil, err
		}
		paid, err := creditpool.IsPaid(store, req.EpochIndex)
		if err != nil {
			return nil, err
		}
		counts, err := creditpool.FetchBlockCounts(store, req.EpochIndex)
		if err != nil {
			return nil, err
		}
		return struct {
			ProcessingPoolTotal int64            `json:"processing_pool_total"`
			Paid                bool             `json:"paid"`
			BlockCounts         map[string]int64 `json:"block_counts"`
		}{ProcessingPoolTotal: total, Paid: paid, BlockCounts: counts}, nil
	case QuerySystem:
		credits, err := balance.TotalSystemCredits(store)
		if err != nil {
			return nil, err
		}
		debt, err := balance.TotalNegativeBalanceDebt(store)
		if err != nil {
			return nil, err
		}
		feePool, err := creditpool.FetchStorageFeePool(store)
		if err != nil {
			return nil, err
		}
		return struct {
			TotalSystemCredits      int64 `json:"total_system_credits"`
			TotalNegativeBalanceDebt int64 `json:"total_negative_balance_debt"`
			StorageFeePool          int64 `json:"storage_fee_pool"`
		}{TotalSystemCredits: credits, TotalNegativeBalanceDebt: debt, StorageFeePool: feePool}, nil
	case QueryVersionUpgradeState:
		tallies, err := versionvote.FetchTallies(store, req.EpochIndex)
		if err != nil {
			return nil, err
		}
		var total int64
		for _, c := range tallies {
			total += c
		}
		return struct {
			EpochIndex            uint64           `json:"epoch_index"`
			Tallies               map[uint32]int64 `json:"tallies"`
			TotalVotes            int64            `json:"total_votes"`
			ActiveProtocolVersion uint32           `json:"active_protocol_version"`
		}{EpochIndex: req.EpochIndex, Tallies: tallies, TotalVotes: total, ActiveProtocolVersion: h.engine.Versions().Current().ProtocolVersion}, nil
	default:
		return nil, consensuserrors.QuerySyntax(consensuserrors.CodeWrongProofFormat, "unknown query kind %d", req.Kind)
	}
}

