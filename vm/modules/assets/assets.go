// Package assets registers the fungible ledger call handlers.
package assets

import (
	"encoding/json"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/vm"
)

func init() {
	vm.Register(core.TxAssetsCreate, handleCreate)
	vm.Register(core.TxAssetsSetMetadata, handleSetMetadata)
	vm.Register(core.TxAssetsMint, handleMint)
	vm.Register(core.TxAssetsBurn, handleBurn)
	vm.Register(core.TxAssetsTransfer, handleTransfer)
}

func handleCreate(ctx *vm.Context, _ json.RawMessage) error {
	id, err := ctx.Assets().Create(ctx.Tx.From)
	if err != nil {
		return err
	}
	ctx.Receipt.SetAssetID(id)
	ctx.Receipt.SetSupply(core.ZeroAmount)
	return nil
}

func handleSetMetadata(ctx *vm.Context, payload json.RawMessage) error {
	var p core.SetMetadataPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	if err := ctx.Assets().SetMetadata(ctx.Tx.From, p.AssetID, p.Name, p.Symbol); err != nil {
		return err
	}
	ctx.Receipt.SetAssetID(p.AssetID)
	return nil
}

func handleMint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MintPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	l := ctx.Assets()
	minted, err := l.Mint(ctx.Tx.From, p.AssetID, p.Amount, p.To)
	if err != nil {
		return err
	}
	d, err := l.Asset(p.AssetID)
	if err != nil {
		return err
	}
	ctx.Receipt.SetAssetID(p.AssetID)
	ctx.Receipt.SetAmount(minted)
	ctx.Receipt.SetSupply(d.Supply)
	return nil
}

func handleBurn(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BurnPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	res, err := ctx.Assets().Burn(ctx.Tx.From, p.AssetID, p.Amount)
	if err != nil {
		return err
	}
	ctx.Receipt.SetAssetID(p.AssetID)
	ctx.Receipt.SetAmount(res.Burned)
	ctx.Receipt.SetSupply(res.Supply)
	return nil
}

func handleTransfer(ctx *vm.Context, payload json.RawMessage) error {
	var p core.TransferPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	moved, err := ctx.Assets().Transfer(ctx.Tx.From, p.AssetID, p.Amount, p.To)
	if err != nil {
		return err
	}
	ctx.Receipt.SetAssetID(p.AssetID)
	ctx.Receipt.SetAmount(moved)
	return nil
}
