package ledger

import (
	"errors"
	"fmt"

	"github.com/tolelom/tolledger/core"
)

// Registry holds fungible asset details. Ownership here is administrative:
// only the single registered owner may mint or set metadata.
type Registry struct {
	state core.State
}

// NewRegistry returns the fungible registry over state.
func NewRegistry(state core.State) *Registry {
	return &Registry{state: state}
}

// Get returns the details of id, or core.ErrUnknown.
func (r *Registry) Get(id core.AssetID) (*core.AssetDetails, error) {
	d, err := r.state.GetAsset(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("asset %d: %w", id, core.ErrUnknown)
	}
	if err != nil {
		return nil, fmt.Errorf("read asset %d: %w", id, err)
	}
	return d, nil
}

// Insert stores d under d.ID, overwriting any existing entry. Callers get
// fresh ids from the IDAllocator.
func (r *Registry) Insert(d *core.AssetDetails) error {
	return r.state.SetAsset(d)
}

// TryMutate applies f to the existing details of id and stores the result.
// Nothing is written if id is unknown or f fails.
func (r *Registry) TryMutate(id core.AssetID, f func(*core.AssetDetails) error) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := f(d); err != nil {
		return err
	}
	return r.state.SetAsset(d)
}

// EnsureIsOwner fails with core.ErrUnknown if id does not exist and with
// core.ErrNoPermission if account is not its owner.
func (r *Registry) EnsureIsOwner(id core.AssetID, account core.Account) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}
	if d.Owner != account {
		return fmt.Errorf("asset %d owned by %s, not %s: %w", id, d.Owner, account, core.ErrNoPermission)
	}
	return nil
}

// UniqueRegistry holds unique asset details. There is no owner field to
// check: an account "owns" a unique asset while it holds any of it.
type UniqueRegistry struct {
	state    core.State
	balances *BalanceStore
}

// NewUniqueRegistry returns the unique registry over state; balances must be
// the uniques balance store.
func NewUniqueRegistry(state core.State, balances *BalanceStore) *UniqueRegistry {
	return &UniqueRegistry{state: state, balances: balances}
}

// Get returns the details of id, or core.ErrUnknown.
func (r *UniqueRegistry) Get(id core.AssetID) (*core.UniqueAssetDetails, error) {
	d, err := r.state.GetUniqueAsset(id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, fmt.Errorf("unique asset %d: %w", id, core.ErrUnknown)
	}
	if err != nil {
		return nil, fmt.Errorf("read unique asset %d: %w", id, err)
	}
	return d, nil
}

// Insert stores d under d.ID.
func (r *UniqueRegistry) Insert(d *core.UniqueAssetDetails) error {
	return r.state.SetUniqueAsset(d)
}

// TryMutate applies f to the existing details of id and stores the result.
func (r *UniqueRegistry) TryMutate(id core.AssetID, f func(*core.UniqueAssetDetails) error) error {
	d, err := r.Get(id)
	if err != nil {
		return err
	}
	if err := f(d); err != nil {
		return err
	}
	return r.state.SetUniqueAsset(d)
}

// EnsureOwnSome fails with core.ErrNotOwned unless account holds a positive
// balance of id.
func (r *UniqueRegistry) EnsureOwnSome(id core.AssetID, account core.Account) error {
	owned, err := r.balances.Get(id, account)
	if err != nil {
		return err
	}
	if owned.IsZero() {
		return fmt.Errorf("unique asset %d: %s holds none: %w", id, account, core.ErrNotOwned)
	}
	return nil
}
