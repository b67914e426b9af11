package vm_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/vm"
)

func TestRegistryBindsSchemaAndHandler(t *testing.T) {
	r := vm.NewRegistry()
	var got []json.RawMessage
	r.Register(core.TxAssetsBurn, func(_ *vm.Context, payload json.RawMessage) error {
		got = append(got, payload)
		return nil
	})

	assert.True(t, r.Has(core.TxAssetsBurn))
	assert.False(t, r.Has(core.TxAssetsMint), "a schema alone does not make a call type accepted")
	assert.Equal(t, []core.TxType{core.TxAssetsBurn}, r.Types())

	dispatch := func(typ core.TxType, payload string) error {
		tx, err := core.NewTransaction(typ, "alice", nil)
		require.NoError(t, err)
		tx.Payload = json.RawMessage(payload)
		return r.Dispatch(&vm.Context{Tx: tx})
	}
	require.NoError(t, dispatch(core.TxAssetsBurn, `{"asset_id":1,"amount":"2"}`))
	assert.ErrorIs(t, dispatch(core.TxAssetsBurn, `{"asset_id":1}`), core.ErrInvalidCall)
	assert.ErrorIs(t, dispatch(core.TxAssetsMint, `{"asset_id":1,"amount":"2","to":"bob"}`), core.ErrInvalidCall)
	assert.Len(t, got, 1, "the handler only sees valid payloads")

	assert.NoError(t, r.Validate(core.TxAssetsBurn, []byte(`{"asset_id":1,"amount":"2"}`)))
	assert.ErrorIs(t, r.Validate(core.TxAssetsMint, []byte(`{}`)), core.ErrInvalidCall)
}

func TestRegistryRejectsBadRegistrations(t *testing.T) {
	r := vm.NewRegistry()
	noop := func(*vm.Context, json.RawMessage) error { return nil }
	assert.Panics(t, func() { r.Register("assets.freeze", noop) }, "call type without schema")
	r.Register(core.TxUniquesMint, noop)
	assert.Panics(t, func() { r.Register(core.TxUniquesMint, noop) }, "duplicate call type")
}

func TestAdmitChecksRegisteredCalls(t *testing.T) {
	mp := core.NewMempool(core.WithAdmission(vm.Admit))

	ok, err := core.NewTransaction(core.TxUniquesMint, "alice", core.MintUniquePayload{Supply: core.NewAmount(1)})
	require.NoError(t, err)
	require.NoError(t, mp.Add(ok))

	unknown, err := core.NewTransaction("assets.freeze", "alice", nil)
	require.NoError(t, err)
	assert.ErrorIs(t, mp.Add(unknown), core.ErrInvalidCall)

	malformed, err := core.NewTransaction(core.TxAssetsTransfer, "alice", map[string]any{"asset_id": 0, "amount": "1"})
	require.NoError(t, err)
	assert.ErrorIs(t, mp.Add(malformed), core.ErrInvalidCall)
	assert.Equal(t, 1, mp.Size())
}
