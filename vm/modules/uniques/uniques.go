// Package uniques registers the unique asset call handlers.
package uniques

import (
	"encoding/json"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/vm"
)

func init() {
	vm.Register(core.TxUniquesMint, handleMint)
	vm.Register(core.TxUniquesBurn, handleBurn)
	vm.Register(core.TxUniquesTransfer, handleTransfer)
}

func handleMint(ctx *vm.Context, payload json.RawMessage) error {
	var p core.MintUniquePayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	id, err := ctx.Uniques().Mint(ctx.Tx.From, p.Metadata, p.Supply)
	if err != nil {
		return err
	}
	ctx.Receipt.SetAssetID(id)
	ctx.Receipt.SetAmount(p.Supply)
	ctx.Receipt.SetSupply(p.Supply)
	return nil
}

func handleBurn(ctx *vm.Context, payload json.RawMessage) error {
	var p core.BurnPayload
	if err := ctx.Decode(payload, &p); err != nil {
		return err
	}
	res, err := ctx.Uniques().Burn(ctx.Tx.From, p.AssetID, p.Amount)
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
	moved, err := ctx.Uniques().Transfer(ctx.Tx.From, p.AssetID, p.Amount, p.To)
	if err != nil {
		return err
	}
	ctx.Receipt.SetAssetID(p.AssetID)
	ctx.Receipt.SetAmount(moved)
	return nil
}
