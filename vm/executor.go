package vm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/ledger"
)

// Context is passed to every Handler. Handlers build ledgers over State with
// Events as the notifier and record realized amounts on Receipt.
type Context struct {
	State   core.State
	Tx      *core.Transaction
	Height  int64
	Events  *ledger.EventLog
	Receipt *core.Receipt
}

// Assets returns the fungible ledger bound to this call.
func (c *Context) Assets() *ledger.Assets { return ledger.NewAssets(c.State, c.Events) }

// Uniques returns the unique ledger bound to this call.
func (c *Context) Uniques() *ledger.Uniques { return ledger.NewUniques(c.State, c.Events) }

// Decode unmarshals payload into v, treating an empty payload as {}.
func (c *Context) Decode(payload json.RawMessage, v any) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: decode %s payload: %v", core.ErrInvalidCall, c.Tx.Type, err)
	}
	return nil
}

// Executor applies calls to the state using the global Handler registry.
// Each call runs inside a state snapshot: a failing call is rolled back in
// full and its notifications are dropped. Notifications of successful calls
// are handed back to the caller, which publishes them once the block holding
// the call is committed.
type Executor struct {
	state   core.State
	verbose bool
}

// NewExecutor creates an Executor over state.
func NewExecutor(state core.State) *Executor {
	return &Executor{state: state}
}

// SetVerbose toggles per-call logging.
func (e *Executor) SetVerbose(v bool) { e.verbose = v }

// ExecuteTx runs tx at the given block height and returns its receipt along
// with the notifications it produced, ending in tx_executed. The receipt is
// always non-nil; the error is the call's failure, already recorded on the
// receipt, and a failed call yields no notifications.
func (e *Executor) ExecuteTx(height int64, tx *core.Transaction) (*core.Receipt, []events.Event, error) {
	rcpt := &core.Receipt{TxID: tx.ID, Type: tx.Type, From: tx.From, BlockHeight: height, Status: core.ReceiptOK}

	emitted, err := e.execute(height, tx, rcpt)
	if err != nil {
		rcpt.Status = core.ReceiptFailed
		rcpt.Code = core.ErrorCode(err)
		rcpt.Error = err.Error()
		rcpt.AssetID, rcpt.Amount, rcpt.Supply = nil, nil, nil
		if e.verbose {
			log.Printf("[vm] call %s (%s from %s) failed: %v", tx.ID, tx.Type, tx.From, err)
		}
		return rcpt, nil, err
	}
	if e.verbose {
		log.Printf("[vm] call %s (%s from %s) ok", tx.ID, tx.Type, tx.From)
	}

	evs := make([]events.Event, 0, len(emitted.Events())+1)
	for _, ev := range emitted.Events() {
		evs = append(evs, events.FromLedger(ev, tx.ID, height))
	}
	evs = append(evs, events.Event{
		Type:        events.EventTxExecuted,
		TxID:        tx.ID,
		BlockHeight: height,
		Data:        map[string]any{"type": string(tx.Type), "from": tx.From},
	})
	return rcpt, evs, nil
}

func (e *Executor) execute(height int64, tx *core.Transaction, rcpt *core.Receipt) (*ledger.EventLog, error) {
	if err := tx.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrInvalidCall, err)
	}

	snapID, err := e.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}

	ctx := &Context{
		State:   e.state,
		Tx:      tx,
		Height:  height,
		Events:  &ledger.EventLog{},
		Receipt: rcpt,
	}
	if err := calls.Dispatch(ctx); err != nil {
		if revertErr := e.state.RevertToSnapshot(snapID); revertErr != nil {
			return nil, fmt.Errorf("revert snapshot after call failure: %w (revert: %v)", err, revertErr)
		}
		return nil, err
	}
	if err := e.state.DiscardSnapshot(snapID); err != nil {
		return nil, fmt.Errorf("release snapshot: %w", err)
	}
	return ctx.Events, nil
}
