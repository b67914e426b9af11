package indexer_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/indexer"
	"github.com/tolelom/tolledger/internal/testutil"
	"github.com/tolelom/tolledger/sequencer"
	"github.com/tolelom/tolledger/storage"
	"github.com/tolelom/tolledger/vm"

	_ "github.com/tolelom/tolledger/vm/modules/assets"
	_ "github.com/tolelom/tolledger/vm/modules/uniques"
)

type fixture struct {
	db      *testutil.MemDB
	state   *storage.StateDB
	bc      *core.Blockchain
	mempool *core.Mempool
	seq     *sequencer.Sequencer
	idx     *indexer.Indexer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{db: testutil.NewMemDB(), mempool: core.NewMempool()}
	f.state = storage.NewStateDB(f.db)
	f.bc = core.NewBlockchain(storage.NewBlockStore(f.db))
	require.NoError(t, f.bc.Init())
	em := events.NewEmitter()
	f.idx = indexer.New(f.db, f.state, em)
	f.seq = sequencer.New(f.bc, f.state, f.mempool, vm.NewExecutor(f.state), em, 0)
	return f
}

func mustTx(t *testing.T, typ core.TxType, from core.Account, payload any) *core.Transaction {
	t.Helper()
	tx, err := core.NewTransaction(typ, from, payload)
	require.NoError(t, err)
	return tx
}

// setup returns a call func that applies each call as its own committed block.
func setup(t *testing.T) (*indexer.Indexer, *storage.StateDB, func(core.TxType, core.Account, any)) {
	t.Helper()
	f := newFixture(t)
	_, err := f.seq.Genesis(nil)
	require.NoError(t, err)
	call := func(typ core.TxType, from core.Account, payload any) {
		require.NoError(t, f.mempool.Add(mustTx(t, typ, from, payload)))
		_, err := f.seq.ProduceBlock()
		require.NoError(t, err)
	}
	return f.idx, f.state, call
}

// requireMatchesState checks the holder index of ref against actual balances.
func requireMatchesState(t *testing.T, idx *indexer.Indexer, state core.State, kind core.LedgerKind, id core.AssetID) {
	t.Helper()
	holders, err := state.Holders(kind, id)
	require.NoError(t, err)
	indexed, err := idx.Holders(kind, id)
	require.NoError(t, err)
	want := make([]core.Account, 0, len(holders))
	for a := range holders {
		want = append(want, a)
	}
	assert.ElementsMatch(t, want, indexed)
}

func TestIndexTracksBalances(t *testing.T) {
	idx, state, call := setup(t)

	call(core.TxAssetsCreate, "alice", nil)
	assert.Empty(t, mustAssets(t, idx, "alice"), "creating an asset holds nothing")

	call(core.TxAssetsMint, "alice", core.MintPayload{AssetID: 0, Amount: core.NewAmount(100), To: "bob"})
	assert.Equal(t, []indexer.AssetRef{{Ledger: core.LedgerAssets, AssetID: 0}}, mustAssets(t, idx, "bob"))

	call(core.TxAssetsTransfer, "bob", core.TransferPayload{AssetID: 0, Amount: core.NewAmount(30), To: "carol"})
	requireMatchesState(t, idx, state, core.LedgerAssets, 0)
	assert.Len(t, mustAssets(t, idx, "carol"), 1)

	call(core.TxAssetsBurn, "bob", core.BurnPayload{AssetID: 0, Amount: core.NewAmount(1000)})
	assert.Empty(t, mustAssets(t, idx, "bob"))
	requireMatchesState(t, idx, state, core.LedgerAssets, 0)

	call(core.TxUniquesMint, "carol", core.MintUniquePayload{Supply: core.NewAmount(2)})
	assert.Equal(t, []indexer.AssetRef{
		{Ledger: core.LedgerAssets, AssetID: 0},
		{Ledger: core.LedgerUniques, AssetID: 0},
	}, mustAssets(t, idx, "carol"))

	call(core.TxUniquesTransfer, "carol", core.TransferPayload{AssetID: 0, Amount: core.NewAmount(2), To: "dave"})
	requireMatchesState(t, idx, state, core.LedgerUniques, 0)
	assert.Equal(t, []indexer.AssetRef{{Ledger: core.LedgerAssets, AssetID: 0}}, mustAssets(t, idx, "carol"))
}

func TestFailedCallLeavesIndexAlone(t *testing.T) {
	idx, _, call := setup(t)
	call(core.TxAssetsCreate, "alice", nil)
	call(core.TxAssetsMint, "mallory", core.MintPayload{AssetID: 0, Amount: core.NewAmount(5), To: "mallory"})
	assert.Empty(t, mustAssets(t, idx, "mallory"))
}

func mustAssets(t *testing.T, idx *indexer.Indexer, a core.Account) []indexer.AssetRef {
	t.Helper()
	refs, err := idx.AccountAssets(a)
	require.NoError(t, err)
	return refs
}

func TestAbortedGenesisLeavesIndexEmpty(t *testing.T) {
	f := newFixture(t)
	_, err := f.seq.Genesis([]*core.Transaction{
		mustTx(t, core.TxAssetsCreate, "alice", nil),
		mustTx(t, core.TxAssetsMint, "alice", core.MintPayload{AssetID: 0, Amount: core.NewAmount(10), To: "bob"}),
		mustTx(t, core.TxAssetsMint, "mallory", core.MintPayload{AssetID: 0, Amount: core.NewAmount(1), To: "mallory"}),
	})
	require.ErrorIs(t, err, core.ErrNoPermission)
	assert.Empty(t, mustAssets(t, f.idx, "bob"))
	assert.Equal(t, 0, f.db.Len(), "no index entries written")
}

func TestUnsealedBlockLeavesIndexAlone(t *testing.T) {
	f := newFixture(t)
	_, err := f.seq.Genesis(nil)
	require.NoError(t, err)

	require.NoError(t, f.mempool.Add(mustTx(t, core.TxUniquesMint, "alice", core.MintUniquePayload{Supply: core.NewAmount(1)})))
	f.db.FailBatches(errors.New("disk full"))
	_, err = f.seq.ProduceBlock()
	require.Error(t, err)
	f.db.FailBatches(nil)

	assert.Empty(t, mustAssets(t, f.idx, "alice"))
	h, err := f.idx.Holders(core.LedgerUniques, 0)
	require.NoError(t, err)
	assert.Empty(t, h)
}
