package sequencer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/internal/testutil"
	"github.com/tolelom/tolledger/ledger"
	"github.com/tolelom/tolledger/sequencer"
	"github.com/tolelom/tolledger/storage"
	"github.com/tolelom/tolledger/vm"

	_ "github.com/tolelom/tolledger/vm/modules/assets"
	_ "github.com/tolelom/tolledger/vm/modules/uniques"
)

type fixture struct {
	db      *testutil.MemDB
	bc      *core.Blockchain
	state   *storage.StateDB
	mempool *core.Mempool
	seq     *sequencer.Sequencer
	commits []int64
	seen    []events.Event
}

func newFixture(t *testing.T, maxTxs int) *fixture {
	t.Helper()
	f := &fixture{db: testutil.NewMemDB(), mempool: core.NewMempool()}
	f.state = storage.NewStateDB(f.db)
	f.bc = core.NewBlockchain(storage.NewBlockStore(f.db))
	require.NoError(t, f.bc.Init())
	em := events.NewEmitter()
	em.Subscribe(events.EventBlockCommit, func(ev events.Event) { f.commits = append(f.commits, ev.BlockHeight) })
	em.SubscribeAll(func(ev events.Event) {
		// every notification must describe state that is already durable
		if ev.AssetID != nil && ev.Ledger == core.LedgerAssets {
			_, err := storage.NewStateDB(f.db).GetAsset(*ev.AssetID)
			assert.NoError(t, err, "%s delivered before its block was committed", ev.Type)
		}
		f.seen = append(f.seen, ev)
	})
	f.seq = sequencer.New(f.bc, f.state, f.mempool, vm.NewExecutor(f.state), em, maxTxs)
	return f
}

func mustTx(t *testing.T, typ core.TxType, from core.Account, payload any) *core.Transaction {
	t.Helper()
	tx, err := core.NewTransaction(typ, from, payload)
	require.NoError(t, err)
	return tx
}

func (f *fixture) supply(t *testing.T, id core.AssetID) core.Amount {
	t.Helper()
	var d *core.AssetDetails
	require.NoError(t, f.seq.View(func(st core.State) (err error) {
		d, err = ledger.NewAssets(st, nil).Asset(id)
		return err
	}))
	return d.Supply
}

func TestGenesis(t *testing.T) {
	f := newFixture(t, 0)
	txs := []*core.Transaction{
		mustTx(t, core.TxAssetsCreate, "alice", nil),
		mustTx(t, core.TxAssetsMint, "alice", core.MintPayload{AssetID: 0, Amount: core.NewAmount(50), To: "bob"}),
	}
	block, err := f.seq.Genesis(txs)
	require.NoError(t, err)
	assert.Equal(t, int64(0), block.Header.Height)
	assert.Equal(t, int64(0), block.Header.Timestamp)
	assert.Len(t, block.Receipts, 2)
	assert.Equal(t, core.NewAmount(50), f.supply(t, 0))
	assert.Equal(t, []int64{0}, f.commits)

	_, err = f.seq.Genesis(nil)
	assert.ErrorIs(t, err, sequencer.ErrChainStarted)
}

func TestGenesisAbortsOnFailingCall(t *testing.T) {
	f := newFixture(t, 0)
	txs := []*core.Transaction{
		mustTx(t, core.TxAssetsCreate, "alice", nil),
		mustTx(t, core.TxAssetsMint, "mallory", core.MintPayload{AssetID: 0, Amount: core.NewAmount(1), To: "mallory"}),
	}
	_, err := f.seq.Genesis(txs)
	assert.ErrorIs(t, err, core.ErrNoPermission)
	assert.Nil(t, f.bc.Tip())
	assert.Equal(t, 0, f.db.Len(), "nothing persisted")
	assert.Empty(t, f.commits)
	assert.Empty(t, f.seen, "no notifications from an aborted genesis")
}

// stuckState refuses to roll back to the outermost snapshot.
type stuckState struct{ *storage.StateDB }

func (s stuckState) RevertToSnapshot(id int) error {
	if id == 0 {
		return errors.New("revert refused")
	}
	return s.StateDB.RevertToSnapshot(id)
}

func TestGenesisReportsRevertFailure(t *testing.T) {
	db := testutil.NewMemDB()
	st := stuckState{storage.NewStateDB(db)}
	bc := core.NewBlockchain(storage.NewBlockStore(db))
	require.NoError(t, bc.Init())
	seq := sequencer.New(bc, st, core.NewMempool(), vm.NewExecutor(st), nil, 0)

	_, err := seq.Genesis([]*core.Transaction{
		mustTx(t, core.TxAssetsCreate, "alice", nil),
		mustTx(t, core.TxAssetsMint, "mallory", core.MintPayload{AssetID: 0, Amount: core.NewAmount(1), To: "mallory"}),
	})
	assert.ErrorIs(t, err, core.ErrNoPermission)
	assert.ErrorContains(t, err, "revert refused")
	assert.Nil(t, bc.Tip())
}

func TestNotificationsFollowCommit(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.seq.Genesis([]*core.Transaction{
		mustTx(t, core.TxAssetsCreate, "alice", nil),
		mustTx(t, core.TxAssetsMint, "alice", core.MintPayload{AssetID: 0, Amount: core.NewAmount(5), To: "bob"}),
	})
	require.NoError(t, err)

	types := make([]events.EventType, len(f.seen))
	for i, ev := range f.seen {
		types[i] = ev.Type
	}
	assert.Equal(t, []events.EventType{
		events.EventAssetCreated, events.EventTxExecuted,
		events.EventAssetMinted, events.EventTxExecuted,
		events.EventBlockCommit,
	}, types)
}

func TestUnstoredBlockIsDropped(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.seq.Genesis(nil)
	require.NoError(t, err)
	f.seen = nil
	stored := f.db.Len()

	require.NoError(t, f.mempool.Add(mustTx(t, core.TxAssetsCreate, "alice", nil)))
	f.db.FailBatches(errors.New("disk full"))
	_, err = f.seq.ProduceBlock()
	assert.ErrorContains(t, err, "disk full")
	f.db.FailBatches(nil)

	assert.Empty(t, f.seen, "nothing published for a block that was not stored")
	assert.Equal(t, stored, f.db.Len())
	assert.Equal(t, int64(0), f.bc.Height())
	assert.Equal(t, 1, f.mempool.Size(), "the call stays pending")

	// the next attempt goes through with the same call
	block, err := f.seq.ProduceBlock()
	require.NoError(t, err)
	assert.Equal(t, int64(1), block.Header.Height)
	assert.Equal(t, core.ReceiptOK, block.Receipts[0].Status)
}

func TestUnreadableStateIsNotSealed(t *testing.T) {
	f := newFixture(t, 0)
	_, err := f.seq.Genesis(nil)
	require.NoError(t, err)
	f.seen = nil

	require.NoError(t, f.mempool.Add(mustTx(t, core.TxAssetsCreate, "alice", nil)))
	f.db.FailIterators(errors.New("bad sector"))
	_, err = f.seq.ProduceBlock()
	f.db.FailIterators(nil)
	assert.ErrorContains(t, err, "state root")
	assert.Empty(t, f.seen)
	assert.Equal(t, int64(0), f.bc.Height())

	_, err = ledger.NewAssets(f.state, nil).Asset(0)
	assert.ErrorIs(t, err, core.ErrUnknown, "the block's writes were reverted")
}

func TestProduceBlockRecordsFailures(t *testing.T) {
	f := newFixture(t, 0)
	good := mustTx(t, core.TxAssetsCreate, "alice", nil)
	bad := mustTx(t, core.TxAssetsMint, "bob", core.MintPayload{AssetID: 0, Amount: core.NewAmount(1), To: "bob"})
	after := mustTx(t, core.TxAssetsMint, "alice", core.MintPayload{AssetID: 0, Amount: core.NewAmount(7), To: "carol"})
	for _, tx := range []*core.Transaction{good, bad, after} {
		require.NoError(t, f.mempool.Add(tx))
	}

	block, err := f.seq.ProduceBlock()
	require.NoError(t, err)
	require.Len(t, block.Receipts, 3)
	assert.Equal(t, core.ReceiptOK, block.Receipts[0].Status)
	assert.Equal(t, core.ReceiptFailed, block.Receipts[1].Status)
	assert.Equal(t, core.CodeNoPermission, block.Receipts[1].Code)
	assert.Equal(t, core.ReceiptOK, block.Receipts[2].Status)
	assert.NotEmpty(t, block.Header.StateRoot)
	assert.Equal(t, 0, f.mempool.Size())
	assert.Equal(t, core.NewAmount(7), f.supply(t, 0))

	r, err := f.bc.GetReceipt(bad.ID)
	require.NoError(t, err)
	assert.Equal(t, core.ReceiptFailed, r.Status)
}

func TestProduceBlockEmptyMempool(t *testing.T) {
	f := newFixture(t, 0)
	block, err := f.seq.ProduceBlock()
	require.NoError(t, err)
	assert.Nil(t, block)
	assert.Nil(t, f.bc.Tip())
}

func TestProduceBlockRespectsLimit(t *testing.T) {
	f := newFixture(t, 2)
	for i := 0; i < 5; i++ {
		require.NoError(t, f.mempool.Add(mustTx(t, core.TxAssetsCreate, "alice", nil)))
	}
	for _, want := range []int{2, 2, 1} {
		block, err := f.seq.ProduceBlock()
		require.NoError(t, err)
		assert.Len(t, block.Transactions, want)
	}
	assert.Equal(t, []int64{0, 1, 2}, f.commits)
	assert.Equal(t, int64(2), f.bc.Height())
}

func TestRunProducesUntilCancelled(t *testing.T) {
	f := newFixture(t, 0)
	require.NoError(t, f.mempool.Add(mustTx(t, core.TxAssetsCreate, "alice", nil)))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		f.seq.Run(ctx, 10*time.Millisecond)
		close(done)
	}()

	require.Eventually(t, func() bool {
		var tip *core.Block
		_ = f.seq.View(func(core.State) error {
			tip = f.bc.Tip()
			return nil
		})
		return tip != nil
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
