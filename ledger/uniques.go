package ledger

import (
	"errors"
	"fmt"

	"github.com/tolelom/tolledger/core"
)

// NFTCapability lets other components read and move unique asset balances
// without going through the caller-authorized entry points.
type NFTCapability interface {
	// AmountOwned returns account's balance of id.
	AmountOwned(id core.AssetID, account core.Account) (core.Amount, error)
	// Transfer moves up to amount from from to to and returns the realized
	// amount.
	Transfer(id core.AssetID, from, to core.Account, amount core.Amount) (core.Amount, error)
}

// Uniques is the unique (non-fungible) asset ledger. Supply is fixed at mint
// and only decreases through burns.
type Uniques struct {
	registry *UniqueRegistry
	balances *BalanceStore
	ids      *IDAllocator
	notifier Notifier
}

// NewUniques returns the unique ledger over state. A nil notifier discards
// events.
func NewUniques(state core.State, notifier Notifier) *Uniques {
	if notifier == nil {
		notifier = Discard
	}
	balances := NewBalanceStore(state, core.LedgerUniques)
	return &Uniques{
		registry: NewUniqueRegistry(state, balances),
		balances: balances,
		ids:      NewIDAllocator(state, core.LedgerUniques),
		notifier: notifier,
	}
}

// Mint creates a unique asset with the given supply, all of it held by
// caller. A zero supply fails with core.ErrNoSupply before an id is taken.
func (u *Uniques) Mint(caller core.Account, metadata []byte, supply core.Amount) (core.AssetID, error) {
	if supply.IsZero() {
		return 0, core.ErrNoSupply
	}
	id, err := u.ids.NextID()
	if err != nil {
		return 0, err
	}
	d := &core.UniqueAssetDetails{ID: id, Creator: caller, Supply: supply, Metadata: metadata}
	if err := u.registry.Insert(d); err != nil {
		return 0, fmt.Errorf("insert unique asset %d: %w", id, err)
	}
	if _, _, err := u.balances.Mutate(id, caller, func(core.Amount) core.Amount { return supply }); err != nil {
		return 0, err
	}
	u.notifier.Notify(UniqueCreated{Creator: caller, AssetID: id})
	return id, nil
}

// Burn destroys up to amount of caller's holding of id. The caller must hold
// some of it.
func (u *Uniques) Burn(caller core.Account, id core.AssetID, amount core.Amount) (BurnResult, error) {
	if _, err := u.registry.Get(id); err != nil {
		return BurnResult{}, err
	}
	if err := u.registry.EnsureOwnSome(id, caller); err != nil {
		return BurnResult{}, err
	}

	var res BurnResult
	err := u.registry.TryMutate(id, func(d *core.UniqueAssetDetails) error {
		burned, err := u.balances.Decrease(id, caller, amount)
		if err != nil {
			return err
		}
		// holdings never exceed supply, so this does not clamp
		d.Supply = core.SaturatingSub(d.Supply, burned)
		res = BurnResult{Burned: burned, Supply: d.Supply}
		return nil
	})
	if err != nil {
		return BurnResult{}, err
	}

	u.notifier.Notify(Burned{Kind: core.LedgerUniques, AssetID: id, Owner: caller, TotalSupply: res.Supply})
	return res, nil
}

// Transfer moves up to amount of caller's holding of id to to. The caller
// must hold some of it.
func (u *Uniques) Transfer(caller core.Account, id core.AssetID, amount core.Amount, to core.Account) (core.Amount, error) {
	if _, err := u.registry.Get(id); err != nil {
		return core.ZeroAmount, err
	}
	if err := u.registry.EnsureOwnSome(id, caller); err != nil {
		return core.ZeroAmount, err
	}
	return u.TransferFrom(id, caller, to, amount)
}

// TransferFrom moves up to amount from from to to without any existence or
// ownership checks and reports the move. It backs both Transfer and the
// NFTCapability.
func (u *Uniques) TransferFrom(id core.AssetID, from, to core.Account, amount core.Amount) (core.Amount, error) {
	moved, err := u.balances.Move(id, from, to, amount)
	if err != nil {
		return core.ZeroAmount, err
	}
	u.notifier.Notify(Transferred{Kind: core.LedgerUniques, AssetID: id, From: from, To: to, Amount: moved})
	return moved, nil
}

// AmountOwned returns account's balance of id.
func (u *Uniques) AmountOwned(id core.AssetID, account core.Account) (core.Amount, error) {
	return u.balances.Get(id, account)
}

// Capability exposes u as an NFTCapability.
func (u *Uniques) Capability() NFTCapability {
	return capability{u}
}

type capability struct{ u *Uniques }

func (c capability) AmountOwned(id core.AssetID, account core.Account) (core.Amount, error) {
	return c.u.AmountOwned(id, account)
}

func (c capability) Transfer(id core.AssetID, from, to core.Account, amount core.Amount) (core.Amount, error) {
	return c.u.TransferFrom(id, from, to, amount)
}

// ---- queries ----

// Asset returns the registry entry of id, or core.ErrUnknown.
func (u *Uniques) Asset(id core.AssetID) (*core.UniqueAssetDetails, error) {
	return u.registry.Get(id)
}

// Balance returns account's balance of id (zero if none).
func (u *Uniques) Balance(id core.AssetID, account core.Account) (core.Amount, error) {
	return u.balances.Get(id, account)
}

// Holders returns every account holding id.
func (u *Uniques) Holders(id core.AssetID) (map[core.Account]core.Amount, error) {
	if _, err := u.registry.Get(id); err != nil {
		return nil, err
	}
	return u.balances.Holders(id)
}

// NextID returns the id the next Mint will allocate.
func (u *Uniques) NextID() (core.AssetID, error) {
	return u.ids.Current()
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
