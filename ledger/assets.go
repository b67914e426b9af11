// Package ledger implements the accounting core of the fungible and unique
// asset ledgers: id allocation, registry, balances and the operations that
// move supply and balances together.
//
// Every operation checks existence and authorization before it writes, and
// all arithmetic saturates. Operations are not safe for concurrent use: the
// caller runs each one to completion against a State nobody else touches,
// and rolls the State back if an operation returns an error.
package ledger

import (
	"fmt"

	"github.com/tolelom/tolledger/core"
)

// BurnResult reports a burn: Burned is the realized amount, Supply the
// asset's supply afterwards.
type BurnResult struct {
	Burned core.Amount
	Supply core.Amount
}

// Assets is the fungible asset ledger.
type Assets struct {
	registry *Registry
	balances *BalanceStore
	ids      *IDAllocator
	state    core.State
	notifier Notifier
}

// NewAssets returns the fungible ledger over state. A nil notifier discards
// events.
func NewAssets(state core.State, notifier Notifier) *Assets {
	if notifier == nil {
		notifier = Discard
	}
	return &Assets{
		registry: NewRegistry(state),
		balances: NewBalanceStore(state, core.LedgerAssets),
		ids:      NewIDAllocator(state, core.LedgerAssets),
		state:    state,
		notifier: notifier,
	}
}

// Create registers a new asset owned by caller with zero supply.
func (a *Assets) Create(caller core.Account) (core.AssetID, error) {
	id, err := a.ids.NextID()
	if err != nil {
		return 0, err
	}
	if err := a.registry.Insert(&core.AssetDetails{ID: id, Owner: caller, Supply: core.ZeroAmount}); err != nil {
		return 0, fmt.Errorf("insert asset %d: %w", id, err)
	}
	a.notifier.Notify(Created{Owner: caller, AssetID: id})
	return id, nil
}

// SetMetadata replaces the name and symbol of id. Only the owner may do so.
func (a *Assets) SetMetadata(caller core.Account, id core.AssetID, name, symbol []byte) error {
	if err := a.registry.EnsureIsOwner(id, caller); err != nil {
		return err
	}
	if err := a.state.SetMetadata(id, &core.AssetMetadata{Name: name, Symbol: symbol}); err != nil {
		return fmt.Errorf("write metadata %d: %w", id, err)
	}
	a.notifier.Notify(MetadataSet{AssetID: id, AssetName: name, Symbol: symbol})
	return nil
}

// Mint raises the supply of id by amount, saturating at the 128-bit ceiling,
// and credits the realized increase to to. Only the owner may mint. The
// returned amount is the realized increase.
func (a *Assets) Mint(caller core.Account, id core.AssetID, amount core.Amount, to core.Account) (core.Amount, error) {
	if err := a.registry.EnsureIsOwner(id, caller); err != nil {
		return core.ZeroAmount, err
	}

	var minted core.Amount
	err := a.registry.TryMutate(id, func(d *core.AssetDetails) error {
		old := d.Supply
		d.Supply = core.SaturatingAdd(old, amount)
		minted = core.SaturatingSub(d.Supply, old)
		return nil
	})
	if err != nil {
		return core.ZeroAmount, err
	}

	if _, err := a.balances.Increase(id, to, minted); err != nil {
		return core.ZeroAmount, err
	}

	a.notifier.Notify(Minted{AssetID: id, Owner: caller, TotalSupply: minted})
	return minted, nil
}

// Burn destroys up to amount of caller's balance of id and lowers the supply
// by the realized amount. Anyone may burn their own holding.
func (a *Assets) Burn(caller core.Account, id core.AssetID, amount core.Amount) (BurnResult, error) {
	if _, err := a.registry.Get(id); err != nil {
		return BurnResult{}, err
	}

	burned, err := a.balances.Decrease(id, caller, amount)
	if err != nil {
		return BurnResult{}, err
	}

	var supply core.Amount
	err = a.registry.TryMutate(id, func(d *core.AssetDetails) error {
		d.Supply = core.SaturatingSub(d.Supply, burned)
		supply = d.Supply
		return nil
	})
	if err != nil {
		return BurnResult{}, err
	}

	a.notifier.Notify(Burned{Kind: core.LedgerAssets, AssetID: id, Owner: caller, TotalSupply: supply})
	return BurnResult{Burned: burned, Supply: supply}, nil
}

// Transfer moves up to amount of caller's balance of id to to and returns the
// realized amount. There is no ownership gate beyond holding the balance.
func (a *Assets) Transfer(caller core.Account, id core.AssetID, amount core.Amount, to core.Account) (core.Amount, error) {
	if _, err := a.registry.Get(id); err != nil {
		return core.ZeroAmount, err
	}

	moved, err := a.balances.Move(id, caller, to, amount)
	if err != nil {
		return core.ZeroAmount, err
	}

	a.notifier.Notify(Transferred{Kind: core.LedgerAssets, AssetID: id, From: caller, To: to, Amount: moved})
	return moved, nil
}

// ---- queries ----

// Asset returns the registry entry of id, or core.ErrUnknown.
func (a *Assets) Asset(id core.AssetID) (*core.AssetDetails, error) {
	return a.registry.Get(id)
}

// Metadata returns the metadata of id. An existing asset without metadata
// yields empty name and symbol.
func (a *Assets) Metadata(id core.AssetID) (*core.AssetMetadata, error) {
	if _, err := a.registry.Get(id); err != nil {
		return nil, err
	}
	m, err := a.state.GetMetadata(id)
	if err != nil {
		if isNotFound(err) {
			return &core.AssetMetadata{}, nil
		}
		return nil, fmt.Errorf("read metadata %d: %w", id, err)
	}
	return m, nil
}

// Balance returns account's balance of id (zero if none).
func (a *Assets) Balance(id core.AssetID, account core.Account) (core.Amount, error) {
	return a.balances.Get(id, account)
}

// Holders returns every account holding id.
func (a *Assets) Holders(id core.AssetID) (map[core.Account]core.Amount, error) {
	if _, err := a.registry.Get(id); err != nil {
		return nil, err
	}
	return a.balances.Holders(id)
}

// NextID returns the id the next Create will allocate.
func (a *Assets) NextID() (core.AssetID, error) {
	return a.ids.Current()
}
