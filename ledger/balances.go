package ledger

import (
	"fmt"

	"github.com/tolelom/tolledger/core"
)

// BalanceStore reads and mutates the (asset, account) balances of one ledger.
// An absent balance reads as zero.
type BalanceStore struct {
	state core.State
	kind  core.LedgerKind
}

// NewBalanceStore returns the balance store for kind.
func NewBalanceStore(state core.State, kind core.LedgerKind) *BalanceStore {
	return &BalanceStore{state: state, kind: kind}
}

// Get returns the balance of account in id.
func (b *BalanceStore) Get(id core.AssetID, account core.Account) (core.Amount, error) {
	amt, err := b.state.GetBalance(b.kind, id, account)
	if err != nil {
		return core.ZeroAmount, fmt.Errorf("read %s balance %d/%s: %w", b.kind, id, account, err)
	}
	return amt, nil
}

// Mutate replaces the balance with f(balance) and returns the old and new
// values.
func (b *BalanceStore) Mutate(id core.AssetID, account core.Account, f func(core.Amount) core.Amount) (old, updated core.Amount, err error) {
	old, err = b.Get(id, account)
	if err != nil {
		return old, old, err
	}
	updated = f(old)
	if err := b.state.SetBalance(b.kind, id, account, updated); err != nil {
		return old, old, fmt.Errorf("write %s balance %d/%s: %w", b.kind, id, account, err)
	}
	return old, updated, nil
}

// Increase adds amount (saturating) and returns the amount actually added.
func (b *BalanceStore) Increase(id core.AssetID, account core.Account, amount core.Amount) (core.Amount, error) {
	old, updated, err := b.Mutate(id, account, func(bal core.Amount) core.Amount {
		return core.SaturatingAdd(bal, amount)
	})
	if err != nil {
		return core.ZeroAmount, err
	}
	return core.SaturatingSub(updated, old), nil
}

// Decrease subtracts amount (saturating at zero) and returns the amount
// actually removed, which is at most the old balance.
func (b *BalanceStore) Decrease(id core.AssetID, account core.Account, amount core.Amount) (core.Amount, error) {
	old, updated, err := b.Mutate(id, account, func(bal core.Amount) core.Amount {
		return core.SaturatingSub(bal, amount)
	})
	if err != nil {
		return core.ZeroAmount, err
	}
	return core.SaturatingSub(old, updated), nil
}

// Move decreases from's balance by up to amount and credits the realized
// amount to to. Supply is not touched.
func (b *BalanceStore) Move(id core.AssetID, from, to core.Account, amount core.Amount) (core.Amount, error) {
	moved, err := b.Decrease(id, from, amount)
	if err != nil {
		return core.ZeroAmount, err
	}
	if _, err := b.Increase(id, to, moved); err != nil {
		return core.ZeroAmount, err
	}
	return moved, nil
}

// Holders returns every account holding a non-zero balance of id.
func (b *BalanceStore) Holders(id core.AssetID) (map[core.Account]core.Amount, error) {
	return b.state.Holders(b.kind, id)
}
