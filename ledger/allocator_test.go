package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/internal/testutil"
)

func TestAllocatorSequence(t *testing.T) {
	st := testutil.NewStateDB()
	ids := NewIDAllocator(st, core.LedgerAssets)

	for want := core.AssetID(0); want < 5; want++ {
		got, err := ids.NextID()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	cur, err := ids.Current()
	require.NoError(t, err)
	assert.Equal(t, core.AssetID(5), cur)
}

func TestAllocatorCeiling(t *testing.T) {
	st := testutil.NewStateDB()
	require.NoError(t, st.SetNonce(core.LedgerAssets, maxAssetID-1))
	ids := NewIDAllocator(st, core.LedgerAssets)

	last, err := ids.NextID()
	require.NoError(t, err)
	assert.Equal(t, maxAssetID-1, last)

	_, err = ids.NextID()
	assert.ErrorIs(t, err, core.ErrIDsExhausted)
	_, err = ids.NextID()
	assert.ErrorIs(t, err, core.ErrIDsExhausted)

	cur, _ := ids.Current()
	assert.Equal(t, maxAssetID, cur, "nonce stays at the ceiling")
	assert.Equal(t, maxAssetID, saturatingIncr(maxAssetID))
}

func TestCreateAtCeilingFails(t *testing.T) {
	st := testutil.NewStateDB()
	require.NoError(t, st.SetNonce(core.LedgerAssets, maxAssetID))
	a := NewAssets(st, nil)

	_, err := a.Create(alice)
	assert.ErrorIs(t, err, core.ErrIDsExhausted)

	_, err = a.Asset(maxAssetID)
	assert.ErrorIs(t, err, core.ErrUnknown, "post-ceiling ids are never allocated")
}
