package host_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/driveplatform/drive/pkg/action"
	"github.com/driveplatform/drive/pkg/cost"
	"github.com/driveplatform/drive/pkg/drive"
	"github.com/driveplatform/drive/pkg/drive/balance"
	"github.com/driveplatform/drive/pkg/drive/identity"
	"github.com/driveplatform/drive/pkg/host"
	"github.com/driveplatform/drive/pkg/kvdb"
	"github.com/driveplatform/drive/pkg/metrics"
	"github.com/driveplatform/drive/pkg/pathschema"
	"github.com/driveplatform/drive/pkg/treestore"
	"github.com/driveplatform/drive/pkg/version"

	"github.com/prometheus/client_golang/prometheus"
)

const testMethod = "action.execute.4" // VariantIdentityTopUp == 4

func newEngine(t *testing.T) *drive.Engine {
	t.Helper()
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootIdentities, treestore.NewTree(nil)))
	require.NoError(t, store.Insert(nil, pathschema.RootBalances, treestore.NewSumTree(nil)))
	require.NoError(t, store.Insert(nil, pathschema.RootMisc, treestore.NewTree(nil)))
	vr := version.NewRegistry(version.New(1, map[string]uint16{testMethod: 1}))
	return drive.NewEngine(store, vr)
}

func testIdentity() *identity.Identity {
	return &identity.Identity{
		ID: []byte("signer-identity-aaaaaaaaaaaaaaaaaa"),
		Keys: []identity.PublicKey{
			{ID: 7, Purpose: identity.PurposeTransfer, SecurityLevel: identity.SecurityLevelCritical, KeyType: identity.KeyTypeECDSASecp256k1, Data: []byte("pub")},
		},
	}
}

type topUpTransition struct {
	signerID []byte
	nonce    uint64
	amount   int64
	keyID    uint32
	sig      []byte
}

func (t *topUpTransition) Variant() action.Variant           { return action.VariantIdentityTopUp }
func (t *topUpTransition) Version() uint16                   { return 1 }
func (t *topUpTransition) Validate() error                   { return nil }
func (t *topUpTransition) SignerID() []byte                  { return t.signerID }
func (t *topUpTransition) ContractNonceScope() []byte        { return nil }
func (t *topUpTransition) Nonce() uint64                     { return t.nonce }
func (t *topUpTransition) RequiredKeyPurpose() identity.Purpose { return identity.PurposeTransfer }
func (t *topUpTransition) RequiredSecurityLevel() identity.SecurityLevel {
	return identity.SecurityLevelCritical
}
func (t *topUpTransition) SignaturePublicKeyID() uint32 { return t.keyID }
func (t *topUpTransition) Signature() []byte            { return t.sig }
func (t *topUpTransition) SigningMessage() []byte       { return []byte("top-up-message") }

func (t *topUpTransition) Construct(store treestore.Store) (action.Action, error) {
	current, err := balance.Fetch(store, t.signerID)
	if err != nil {
		return nil, err
	}
	return action.NewIdentityTopUpAction(t.signerID, current, t.amount), nil
}

func acceptAllVerifier(identity.PublicKey, []byte, []byte) (bool, error) { return true, nil }

func setupSignerWithBalance(t *testing.T, e *drive.Engine, startingBalance int64) *identity.Identity {
	t.Helper()
	ident := testIdentity()
	require.NoError(t, e.Apply(func(ctx *drive.Context) error {
		if err := identity.Insert(ctx, ident); err != nil {
			return err
		}
		return balance.Set(ctx, ident.ID, startingBalance)
	}))
	return ident
}

// wireTopUp is the exported mirror topUpTransition's unexported fields are
// marshaled through: a stand-in for the real bincode-style wire format,
// which decoding is host-owned for and out of this module's scope.
type wireTopUp struct {
	SignerID []byte `json:"signer_id"`
	Nonce    uint64 `json:"nonce"`
	Amount   int64  `json:"amount"`
	KeyID    uint32 `json:"key_id"`
	Sig      []byte `json:"sig"`
}

func encodeTopUp(tr *topUpTransition) []byte {
	raw, err := json.Marshal(wireTopUp{SignerID: tr.signerID, Nonce: tr.nonce, Amount: tr.amount, KeyID: tr.keyID, Sig: tr.sig})
	if err != nil {
		panic(err)
	}
	return raw
}

func jsonDecoder() host.Decoder {
	return func(raw []byte) (action.StateTransition, error) {
		var w wireTopUp
		if err := json.Unmarshal(raw, &w); err != nil {
			return nil, err
		}
		return &topUpTransition{signerID: w.SignerID, nonce: w.Nonce, amount: w.Amount, keyID: w.KeyID, sig: w.Sig}, nil
	}
}

func TestApplyBlockAppliesValidTransitionAndCommitsCache(t *testing.T) {
	e := newEngine(t)
	ident := setupSignerWithBalance(t, e, 1_000_000)

	p := action.NewPipeline(e, cost.Pricing{StoragePricePerByte: 1, CPUPricePerUnit: 1}, acceptAllVerifier)
	h := host.New(e, p, jsonDecoder(), nil, nil)

	tr := &topUpTransition{signerID: ident.ID, nonce: 1, amount: 500, keyID: 7, sig: []byte("sig")}
	results := h.ApplyBlock(host.BlockInfo{Height: 10}, [][]byte{encodeTopUp(tr)})

	require.Len(t, results, 1)
	require.True(t, results[0].Applied)
	require.NoError(t, results[0].Error)
	require.NotEmpty(t, results[0].TransitionID)

	bal, err := balance.Fetch(e.Store(), ident.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1_000_000+500-results[0].Fee.ProcessingFeeCredits-results[0].Fee.StorageFeeCredits), bal)
}

func TestApplyBlockRejectsBadDecodeButContinues(t *testing.T) {
	e := newEngine(t)
	ident := setupSignerWithBalance(t, e, 1_000_000)

	p := action.NewPipeline(e, cost.Pricing{StoragePricePerByte: 1, CPUPricePerUnit: 1}, acceptAllVerifier)
	h := host.New(e, p, jsonDecoder(), nil, nil)

	good := &topUpTransition{signerID: ident.ID, nonce: 1, amount: 500, keyID: 7, sig: []byte("sig")}
	results := h.ApplyBlock(host.BlockInfo{Height: 1}, [][]byte{[]byte("not json"), encodeTopUp(good)})

	require.Len(t, results, 2)
	require.False(t, results[0].Applied)
	require.Error(t, results[0].Error)
	require.True(t, results[1].Applied)
}

func TestApplyBlockRecordsMetrics(t *testing.T) {
	e := newEngine(t)
	ident := setupSignerWithBalance(t, e, 1_000_000)

	p := action.NewPipeline(e, cost.Pricing{StoragePricePerByte: 1, CPUPricePerUnit: 1}, acceptAllVerifier)
	reg := prometheus.NewRegistry()
	rec := metrics.New(reg)
	h := host.New(e, p, jsonDecoder(), nil, rec)

	good := &topUpTransition{signerID: ident.ID, nonce: 1, amount: 500, keyID: 7, sig: []byte("sig")}
	bad := &topUpTransition{signerID: ident.ID, nonce: 1, amount: 500, keyID: 7, sig: []byte("sig")} // replay -> stale nonce
	h.ApplyBlock(host.BlockInfo{Height: 1}, [][]byte{encodeTopUp(good), encodeTopUp(bad)})

	mfs, err := reg.Gather()
	require.NoError(t, err)
	var sawApplied, sawRejected bool
	for _, mf := range mfs {
		if mf.GetName() == "drive_transitions_applied_total" {
			sawApplied = mf.Metric[0].GetCounter().GetValue() == 1
		}
		if mf.GetName() == "drive_transitions_rejected_total" {
			sawRejected = len(mf.Metric) > 0
		}
	}
	require.True(t, sawApplied)
	require.True(t, sawRejected)
}

func TestQueryIdentityReturnsValueWithMetadata(t *testing.T) {
	e := newEngine(t)
	ident := setupSignerWithBalance(t, e, 1_000_000)

	p := action.NewPipeline(e, cost.Pricing{StoragePricePerByte: 1, CPUPricePerUnit: 1}, acceptAllVerifier)
	h := host.New(e, p, jsonDecoder(), nil, nil)

	resp, err := h.Query(host.BlockInfo{Height: 42, Epoch: 3}, host.QueryRequest{Kind: host.QueryIdentity, IdentityID: ident.ID})
	require.NoError(t, err)
	require.Nil(t, resp.Proof)
	require.NotEmpty(t, resp.Value)
	require.Equal(t, uint64(42), resp.Metadata.Height)
	require.Equal(t, uint16(3), resp.Metadata.Epoch)

	var got identity.Identity
	require.NoError(t, json.Unmarshal(resp.Value, &got))
	require.Equal(t, ident.ID, got.ID)
}

func TestQueryBalanceProvedReturnsProof(t *testing.T) {
	e := newEngine(t)
	ident := setupSignerWithBalance(t, e, 1_000_000)

	p := action.NewPipeline(e, cost.Pricing{StoragePricePerByte: 1, CPUPricePerUnit: 1}, acceptAllVerifier)
	h := host.New(e, p, jsonDecoder(), nil, nil)

	resp, err := h.Query(host.BlockInfo{Height: 1}, host.QueryRequest{Kind: host.QueryBalance, IdentityID: ident.ID, Prove: true})
	require.NoError(t, err)
	require.Nil(t, resp.Value)
	require.NotEmpty(t, resp.Proof)

	root, pairs, err := treestore.VerifyProof(resp.Proof)
	require.NoError(t, err)
	require.Equal(t, e.Store().RootHash(), root)
	require.Len(t, pairs, 1)
}

func TestQueryUnprovableKindReturnsError(t *testing.T) {
	e := newEngine(t)
	p := action.NewPipeline(e, cost.Pricing{StoragePricePerByte: 1, CPUPricePerUnit: 1}, acceptAllVerifier)
	h := host.New(e, p, jsonDecoder(), nil, nil)

	_, err := h.Query(host.BlockInfo{}, host.QueryRequest{Kind: host.QuerySystem, Prove: true})
	require.Error(t, err)
}

func TestApplyBlockRecordsProposerVoteAndRolloverActivatesVersion(t *testing.T) {
	store := treestore.NewMemStore(kvdb.New(kvdb.NewMemDB()))
	require.NoError(t, store.Insert(nil, pathschema.RootIdentities, treestore.NewTree(nil)))
	require.NoError(t, store.Insert(nil, pathschema.RootBalances, treestore.NewSumTree(nil)))
	require.NoError(t, store.Insert(nil, pathschema.RootMisc, treestore.NewTree(nil)))
	require.NoError(t, store.Insert(nil, pathschema.RootCreditPools, treestore.NewTree(nil)))
	e := drive.NewEngine(store, version.NewRegistry(version.New(1, map[string]uint16{testMethod: 1})))
	ident := setupSignerWithBalance(t, e, 1_000_000)

	p := action.NewPipeline(e, cost.Pricing{StoragePricePerByte: 1, CPUPricePerUnit: 1}, acceptAllVerifier)
	h := host.New(e, p, jsonDecoder(), nil, nil)

	for i := 0; i < 3; i++ {
		tr := &topUpTransition{signerID: ident.ID, nonce: uint64(i + 1), amount: 500, keyID: 7, sig: []byte("sig")}
		h.ApplyBlock(host.BlockInfo{Height: uint64(i + 1), Epoch: 9, ProposerID: []byte("proposer-a"), ProposedProtocolVersion: 2}, [][]byte{encodeTopUp(tr)})
	}
	h.ApplyBlock(host.BlockInfo{Height: 4, Epoch: 9, ProposerID: []byte("proposer-b"), ProposedProtocolVersion: 1}, nil)

	resp, err := h.Query(host.BlockInfo{}, host.QueryRequest{Kind: host.QueryVersionUpgradeState, EpochIndex: 9})
	require.NoError(t, err)
	var got struct {
		EpochIndex            uint64           `json:"epoch_index"`
		Tallies               map[uint32]int64 `json:"tallies"`
		TotalVotes            int64            `json:"total_votes"`
		ActiveProtocolVersion uint32           `json:"active_protocol_version"`
	}
	require.NoError(t, json.Unmarshal(resp.Value, &got))
	require.Equal(t, int64(3), got.Tallies[2])
	require.Equal(t, int64(1), got.Tallies[1])
	require.Equal(t, int64(4), got.TotalVotes)
	require.Equal(t, uint32(1), got.ActiveProtocolVersion)

	next := version.New(2, map[string]uint16{testMethod: 1})
	state, err := h.RolloverEpoch(9, 670, map[uint32]*version.PlatformVersion{2: next})
	require.NoError(t, err)
	require.True(t, state.ThresholdMet)
	require.Equal(t, uint32(2), state.ActiveProtocolVersion)
	require.Equal(t, uint32(2), e.Versions().Current().ProtocolVersion)
}
