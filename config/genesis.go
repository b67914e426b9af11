package config

import (
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/tolelom/tolledger/core"
)

// GenesisConfig describes the ledger's initial state. It is applied as block 0
// through the regular ledger calls, so genesis obeys the same rules as any
// later block.
type GenesisConfig struct {
	Assets  []GenesisAsset  `json:"assets,omitempty" mapstructure:"assets"`
	Uniques []GenesisUnique `json:"uniques,omitempty" mapstructure:"uniques"`
}

// GenesisAsset is a fungible asset created at genesis. Allocations are minted
// by the owner.
type GenesisAsset struct {
	Owner       string              `json:"owner" mapstructure:"owner"`
	Name        string              `json:"name,omitempty" mapstructure:"name"`
	Symbol      string              `json:"symbol,omitempty" mapstructure:"symbol"`
	Allocations []GenesisAllocation `json:"allocations,omitempty" mapstructure:"allocations"`
}

// GenesisAllocation credits Amount (decimal string) to Account.
type GenesisAllocation struct {
	Account string `json:"account" mapstructure:"account"`
	Amount  string `json:"amount" mapstructure:"amount"`
}

// GenesisUnique is a unique asset minted at genesis, held in full by Creator.
type GenesisUnique struct {
	Creator  string `json:"creator" mapstructure:"creator"`
	Metadata string `json:"metadata,omitempty" mapstructure:"metadata"`
	Supply   string `json:"supply" mapstructure:"supply"`
}

// Validate checks accounts and amounts without building any call.
func (g *GenesisConfig) Validate() error {
	_, err := g.Transactions()
	return err
}

// Transactions expands the genesis into the calls that produce it. Fungible
// assets receive ids 0..n-1 and unique assets 0..m-1 in declaration order.
// Call ids and timestamps are fixed so every node derives the same block 0.
func (g *GenesisConfig) Transactions() ([]*core.Transaction, error) {
	var txs []*core.Transaction
	add := func(typ core.TxType, from string, payload any) error {
		if from == "" {
			return fmt.Errorf("%s: empty account", typ)
		}
		tx, err := core.NewTransaction(typ, core.Account(from), payload)
		if err != nil {
			return err
		}
		tx.ID = fmt.Sprintf("genesis-%d", len(txs))
		tx.Timestamp = 0
		txs = append(txs, tx)
		return nil
	}

	for i, a := range g.Assets {
		id := core.AssetID(i)
		if err := add(core.TxAssetsCreate, a.Owner, core.CreateAssetPayload{}); err != nil {
			return nil, fmt.Errorf("asset %d: %w", i, err)
		}
		if a.Name != "" || a.Symbol != "" {
			p := core.SetMetadataPayload{AssetID: id, Name: []byte(a.Name), Symbol: []byte(a.Symbol)}
			if err := add(core.TxAssetsSetMetadata, a.Owner, p); err != nil {
				return nil, fmt.Errorf("asset %d: %w", i, err)
			}
		}
		for j, alloc := range a.Allocations {
			amt, err := core.ParseAmount(alloc.Amount)
			if err != nil {
				return nil, fmt.Errorf("asset %d allocation %d: %w", i, j, err)
			}
			if alloc.Account == "" {
				return nil, fmt.Errorf("asset %d allocation %d: empty account", i, j)
			}
			p := core.MintPayload{AssetID: id, Amount: amt, To: core.Account(alloc.Account)}
			if err := add(core.TxAssetsMint, a.Owner, p); err != nil {
				return nil, fmt.Errorf("asset %d: %w", i, err)
			}
		}
	}

	for i, u := range g.Uniques {
		supply, err := core.ParseAmount(u.Supply)
		if err != nil {
			return nil, fmt.Errorf("unique %d: %w", i, err)
		}
		if supply.IsZero() {
			return nil, fmt.Errorf("unique %d: %w", i, core.ErrNoSupply)
		}
		meta, err := decodeMetadata(u.Metadata)
		if err != nil {
			return nil, fmt.Errorf("unique %d: %w", i, err)
		}
		if err := add(core.TxUniquesMint, u.Creator, core.MintUniquePayload{Metadata: meta, Supply: supply}); err != nil {
			return nil, fmt.Errorf("unique %d: %w", i, err)
		}
	}
	return txs, nil
}

// decodeMetadata accepts "base64:<data>" for binary metadata and treats
// anything else as raw text.
func decodeMetadata(s string) ([]byte, error) {
	const prefix = "base64:"
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		b, err := base64.StdEncoding.DecodeString(s[len(prefix):])
		if err != nil {
			return nil, errors.New("metadata: invalid base64")
		}
		return b, nil
	}
	return []byte(s), nil
}
