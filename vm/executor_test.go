package vm_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/internal/testutil"
	"github.com/tolelom/tolledger/ledger"
	"github.com/tolelom/tolledger/vm"

	// Register VM modules
	_ "github.com/tolelom/tolledger/vm/modules/assets"
	_ "github.com/tolelom/tolledger/vm/modules/uniques"
)

type harness struct {
	t      *testing.T
	state  core.State
	exec   *vm.Executor
	events []events.Event
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, state: testutil.NewStateDB()}
	h.exec = vm.NewExecutor(h.state)
	return h
}

func (h *harness) call(typ core.TxType, from core.Account, payload any) (*core.Receipt, error) {
	h.t.Helper()
	tx, err := core.NewTransaction(typ, from, payload)
	require.NoError(h.t, err)
	return h.run(tx)
}

func (h *harness) raw(typ core.TxType, from core.Account, payload string) (*core.Receipt, error) {
	h.t.Helper()
	tx, err := core.NewTransaction(typ, from, nil)
	require.NoError(h.t, err)
	tx.Payload = json.RawMessage(payload)
	return h.run(tx)
}

func (h *harness) run(tx *core.Transaction) (*core.Receipt, error) {
	rcpt, evs, err := h.exec.ExecuteTx(1, tx)
	if err != nil {
		assert.Empty(h.t, evs, "failed call %s returned notifications", tx.Type)
	}
	h.events = append(h.events, evs...)
	return rcpt, err
}

func (h *harness) ledgerEvents() []events.EventType {
	var out []events.EventType
	for _, ev := range h.events {
		if ev.Ledger != "" {
			out = append(out, ev.Type)
		}
	}
	return out
}

func TestExecutorScenario(t *testing.T) {
	h := newHarness(t)

	r, err := h.call(core.TxAssetsCreate, "alice", core.CreateAssetPayload{})
	require.NoError(t, err)
	require.NotNil(t, r.AssetID)
	id := *r.AssetID
	assert.Equal(t, core.AssetID(0), id)

	r, err = h.call(core.TxAssetsMint, "alice", core.MintPayload{AssetID: id, Amount: core.NewAmount(100), To: "bob"})
	require.NoError(t, err)
	assert.Equal(t, core.NewAmount(100), *r.Amount)
	assert.Equal(t, core.NewAmount(100), *r.Supply)

	r, err = h.call(core.TxAssetsTransfer, "bob", core.TransferPayload{AssetID: id, Amount: core.NewAmount(30), To: "carol"})
	require.NoError(t, err)
	assert.Equal(t, core.NewAmount(30), *r.Amount)

	r, err = h.call(core.TxAssetsBurn, "bob", core.BurnPayload{AssetID: id, Amount: core.NewAmount(1000)})
	require.NoError(t, err)
	assert.Equal(t, core.NewAmount(70), *r.Amount)
	assert.Equal(t, core.NewAmount(30), *r.Supply)

	assert.Equal(t, []events.EventType{
		events.EventAssetCreated, events.EventAssetMinted,
		events.EventAssetTransferred, events.EventAssetBurned,
	}, h.ledgerEvents())

	burned := h.events[len(h.events)-2]
	require.Equal(t, events.EventAssetBurned, burned.Type)
	assert.Equal(t, ledger.Burned{Kind: core.LedgerAssets, AssetID: id, Owner: "bob", TotalSupply: core.NewAmount(30)}, burned.Data)
	assert.Equal(t, events.EventTxExecuted, h.events[len(h.events)-1].Type)
}

func TestFailedCallIsRolledBackSilently(t *testing.T) {
	h := newHarness(t)
	r, err := h.call(core.TxAssetsCreate, "alice", nil)
	require.NoError(t, err)
	id := *r.AssetID
	root := mustRoot(t, h.state)
	n := len(h.events)

	r, err = h.call(core.TxAssetsMint, "mallory", core.MintPayload{AssetID: id, Amount: core.NewAmount(5), To: "mallory"})
	assert.ErrorIs(t, err, core.ErrNoPermission)
	assert.Equal(t, core.ReceiptFailed, r.Status)
	assert.Equal(t, core.CodeNoPermission, r.Code)
	assert.Nil(t, r.Amount)

	r, err = h.call(core.TxUniquesTransfer, "alice", core.TransferPayload{AssetID: 9, Amount: core.NewAmount(1), To: "bob"})
	assert.ErrorIs(t, err, core.ErrUnknown)
	assert.Equal(t, core.CodeUnknown, r.Code)

	assert.Equal(t, root, mustRoot(t, h.state))
	assert.Len(t, h.events, n, "no notifications for failed calls")
}

func TestCallsReleaseTheirSnapshot(t *testing.T) {
	h := newHarness(t)
	outer, err := h.state.Snapshot()
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := h.call(core.TxAssetsCreate, "alice", nil)
		require.NoError(t, err)
	}
	_, err = h.call(core.TxAssetsMint, "mallory", core.MintPayload{AssetID: 0, Amount: core.NewAmount(1), To: "mallory"})
	require.Error(t, err)

	next, err := h.state.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, outer+1, next, "no per-call snapshots left behind")

	// the outer snapshot still rolls back every call made since
	require.NoError(t, h.state.RevertToSnapshot(outer))
	_, err = ledger.NewAssets(h.state, nil).Asset(0)
	assert.ErrorIs(t, err, core.ErrUnknown)
}

func TestNotificationsAreReturnedNotPublished(t *testing.T) {
	h := newHarness(t)
	tx, err := core.NewTransaction(core.TxAssetsCreate, "alice", nil)
	require.NoError(t, err)
	_, evs, err := h.exec.ExecuteTx(4, tx)
	require.NoError(t, err)
	require.Len(t, evs, 2)
	assert.Equal(t, events.EventAssetCreated, evs[0].Type)
	assert.Equal(t, events.EventTxExecuted, evs[1].Type)
	for _, ev := range evs {
		assert.Equal(t, tx.ID, ev.TxID)
		assert.Equal(t, int64(4), ev.BlockHeight)
	}
}

func mustRoot(t *testing.T, st core.State) string {
	t.Helper()
	root, err := st.ComputeRoot()
	require.NoError(t, err)
	return root
}

func TestUniqueCalls(t *testing.T) {
	h := newHarness(t)

	r, err := h.call(core.TxUniquesMint, "alice", core.MintUniquePayload{Metadata: []byte("art"), Supply: core.ZeroAmount})
	assert.ErrorIs(t, err, core.ErrNoSupply)
	assert.Equal(t, core.CodeNoSupply, r.Code)

	r, err = h.call(core.TxUniquesMint, "alice", core.MintUniquePayload{Metadata: []byte("art"), Supply: core.NewAmount(3)})
	require.NoError(t, err)
	assert.Equal(t, core.AssetID(0), *r.AssetID, "failed mint did not consume an id")

	_, err = h.call(core.TxUniquesTransfer, "bob", core.TransferPayload{AssetID: 0, Amount: core.NewAmount(1), To: "carol"})
	assert.ErrorIs(t, err, core.ErrNotOwned)

	r, err = h.call(core.TxUniquesTransfer, "alice", core.TransferPayload{AssetID: 0, Amount: core.NewAmount(2), To: "bob"})
	require.NoError(t, err)
	assert.Equal(t, core.NewAmount(2), *r.Amount)

	r, err = h.call(core.TxUniquesBurn, "bob", core.BurnPayload{AssetID: 0, Amount: core.NewAmount(1)})
	require.NoError(t, err)
	assert.Equal(t, core.NewAmount(2), *r.Supply)

	assert.Equal(t, []events.EventType{
		events.EventUniqueCreated, events.EventUniqueTransferred, events.EventUniqueBurned,
	}, h.ledgerEvents())
}

func TestPayloadValidation(t *testing.T) {
	h := newHarness(t)
	cases := map[string]struct {
		typ     core.TxType
		payload string
	}{
		"negative amount":   {core.TxAssetsMint, `{"asset_id":0,"amount":"-1","to":"bob"}`},
		"decimal amount":    {core.TxAssetsBurn, `{"asset_id":0,"amount":"1.5"}`},
		"too many digits":   {core.TxAssetsBurn, `{"asset_id":0,"amount":"1234567890123456789012345678901234567890"}`},
		"missing recipient": {core.TxAssetsTransfer, `{"asset_id":0,"amount":"1"}`},
		"empty recipient":   {core.TxAssetsTransfer, `{"asset_id":0,"amount":"1","to":""}`},
		"unknown field":     {core.TxUniquesMint, `{"supply":"1","owner":"x"}`},
		"negative id":       {core.TxUniquesBurn, `{"asset_id":-1,"amount":"1"}`},
		"unknown type":      {"assets.freeze", `{}`},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r, err := h.raw(tc.typ, "alice", tc.payload)
			assert.ErrorIs(t, err, core.ErrInvalidCall)
			assert.Equal(t, core.CodeInvalid, r.Code)
		})
	}

	// create takes no payload at all
	r, err := h.raw(core.TxAssetsCreate, "alice", ``)
	require.NoError(t, err)
	assert.Equal(t, core.ReceiptOK, r.Status)
}

func TestValidatePayloadAcceptsBareIntegers(t *testing.T) {
	assert.NoError(t, vm.ValidatePayload(core.TxAssetsMint, []byte(`{"asset_id":1,"amount":25,"to":"bob"}`)))
	assert.NoError(t, vm.ValidatePayload(core.TxAssetsSetMetadata, []byte(`{"asset_id":1,"name":"R29sZA==","symbol":null}`)))
	for _, typ := range []core.TxType{
		core.TxAssetsCreate, core.TxAssetsSetMetadata, core.TxAssetsMint, core.TxAssetsBurn,
		core.TxAssetsTransfer, core.TxUniquesMint, core.TxUniquesBurn, core.TxUniquesTransfer,
	} {
		assert.True(t, vm.Registered(typ), "handler for %s", typ)
	}
	assert.Len(t, vm.CallTypes(), 8)
}
