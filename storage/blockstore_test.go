package storage_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/internal/testutil"
	"github.com/tolelom/tolledger/storage"
)

func TestBlockStoreRoundTrip(t *testing.T) {
	bs := storage.NewBlockStore(testutil.NewMemDB())

	tip, err := bs.GetTip()
	require.NoError(t, err)
	assert.Empty(t, tip)

	tx, err := core.NewTransaction(core.TxAssetsMint, "alice", core.MintPayload{AssetID: 0, Amount: core.NewAmount(5), To: "bob"})
	require.NoError(t, err)
	r := &core.Receipt{TxID: tx.ID, Type: tx.Type, From: tx.From, Status: core.ReceiptOK}
	r.SetAmount(core.NewAmount(5))

	b := core.NewBlock(0, core.GenesisHash, []*core.Transaction{tx})
	b.Receipts = []*core.Receipt{r}
	b.Seal()
	require.NoError(t, bs.CommitBlock(b))

	tip, err = bs.GetTip()
	require.NoError(t, err)
	assert.Equal(t, b.Hash, tip)

	got, err := bs.GetBlockByHeight(0)
	require.NoError(t, err)
	assert.Equal(t, b.Hash, got.Hash)
	assert.NoError(t, got.Verify(), "a stored block still matches its header")
	require.Len(t, got.Transactions, 1)
	assert.JSONEq(t, string(tx.Payload), string(got.Transactions[0].Payload))

	rcpt, err := bs.GetReceipt(tx.ID)
	require.NoError(t, err)
	require.NotNil(t, rcpt.Amount)
	assert.Equal(t, core.NewAmount(5), *rcpt.Amount)

	_, err = bs.GetReceipt("nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
	_, err = bs.GetBlockByHeight(1)
	assert.ErrorIs(t, err, core.ErrNotFound)
}
