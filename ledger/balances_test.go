package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/internal/testutil"
)

func TestBalanceStoreDefaultsToZero(t *testing.T) {
	b := NewBalanceStore(testutil.NewStateDB(), core.LedgerAssets)
	bal, err := b.Get(1, alice)
	require.NoError(t, err)
	assert.True(t, bal.IsZero())
}

func TestBalanceStoreSaturates(t *testing.T) {
	st := testutil.NewStateDB()
	b := NewBalanceStore(st, core.LedgerAssets)

	removed, err := b.Decrease(1, alice, amt(10))
	require.NoError(t, err)
	assert.True(t, removed.IsZero(), "no wraparound below zero")

	added, err := b.Increase(1, alice, core.MaxAmount)
	require.NoError(t, err)
	assert.Equal(t, core.MaxAmount, added)

	added, err = b.Increase(1, alice, amt(1))
	require.NoError(t, err)
	assert.True(t, added.IsZero())

	removed, err = b.Decrease(1, alice, core.MaxAmount)
	require.NoError(t, err)
	assert.Equal(t, core.MaxAmount, removed)

	holders, err := b.Holders(1)
	require.NoError(t, err)
	assert.Empty(t, holders, "a zeroed balance is indistinguishable from absent")
}

func TestBalanceStoreMutate(t *testing.T) {
	b := NewBalanceStore(testutil.NewStateDB(), core.LedgerUniques)
	old, updated, err := b.Mutate(2, bob, func(core.Amount) core.Amount { return amt(7) })
	require.NoError(t, err)
	assert.True(t, old.IsZero())
	assert.Equal(t, amt(7), updated)

	holders, err := b.Holders(2)
	require.NoError(t, err)
	assert.Equal(t, map[core.Account]core.Amount{bob: amt(7)}, holders)
}
