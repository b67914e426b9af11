package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolledger/core"
)

// txOptions holds flags shared by every call-submitting command.
type txOptions struct {
	*rootOptions
	From   string
	NoWait bool
}

func parseAssetID(s string) (core.AssetID, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "cannot parse asset id %q", s)
	}
	return core.AssetID(n), nil
}

func parseAmount(s string) (core.Amount, error) {
	a, err := core.ParseAmount(s)
	if err != nil {
		return core.Amount{}, errors.Wrapf(err, "cannot parse amount %q", s)
	}
	return a, nil
}

// submit sends the call and, unless --no-wait, prints its receipt once
// sequenced. A failed call is reported as an error.
func (o *txOptions) submit(cmd *cobra.Command, typ core.TxType, payload any) error {
	if o.From == "" {
		return fmt.Errorf("--from is required")
	}
	c, err := o.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.Timeout)
	defer cancel()

	out := o.output(cmd)
	id, err := c.SendTx(ctx, typ, core.Account(o.From), payload)
	if err != nil {
		return errors.Wrapf(err, "cannot submit %s", typ)
	}
	if o.NoWait {
		if out.json {
			return out.encode(map[string]string{"tx_id": id})
		}
		out.line("submitted %s", id)
		return nil
	}
	r, err := c.WaitReceipt(ctx, id, 0)
	if err != nil {
		return errors.Wrapf(err, "cannot get receipt for %s", id)
	}
	if err := out.receipt(r); err != nil {
		return err
	}
	if r.Status != core.ReceiptOK {
		return fmt.Errorf("call %s failed: %s", id, r.Code)
	}
	return nil
}

func addTxFlags(cmd *cobra.Command, opts *txOptions) {
	cmd.PersistentFlags().StringVar(&opts.From, "from", "", "caller account")
	cmd.PersistentFlags().BoolVar(&opts.NoWait, "no-wait", false, "return after submission without waiting for the receipt")
}

func newAssetsCommand(root *rootOptions) *cobra.Command {
	opts := &txOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "assets",
		Short: "Fungible asset calls and queries",
	}
	addTxFlags(cmd, opts)

	cmd.AddCommand(&cobra.Command{
		Use:   "create",
		Short: "Register a new asset owned by --from",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.submit(cmd, core.TxAssetsCreate, core.CreateAssetPayload{})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "set-metadata asset_id name symbol",
		Short: "Set an asset's name and symbol",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			return opts.submit(cmd, core.TxAssetsSetMetadata, core.SetMetadataPayload{
				AssetID: id, Name: []byte(args[1]), Symbol: []byte(args[2]),
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "mint asset_id amount to",
		Short: "Mint into an account (owner only)",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, amount, err := idAndAmount(args)
			if err != nil {
				return err
			}
			return opts.submit(cmd, core.TxAssetsMint, core.MintPayload{AssetID: id, Amount: amount, To: core.Account(args[2])})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "burn asset_id amount",
		Short: "Burn up to amount of the caller's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, amount, err := idAndAmount(args)
			if err != nil {
				return err
			}
			return opts.submit(cmd, core.TxAssetsBurn, core.BurnPayload{AssetID: id, Amount: amount})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "transfer asset_id amount to",
		Short: "Transfer up to amount to another account",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, amount, err := idAndAmount(args)
			if err != nil {
				return err
			}
			return opts.submit(cmd, core.TxAssetsTransfer, core.TransferPayload{AssetID: id, Amount: amount, To: core.Account(args[2])})
		},
	})

	cmd.AddCommand(newInfoCommand(root, core.LedgerAssets))
	cmd.AddCommand(newBalanceCommand(root, core.LedgerAssets))
	cmd.AddCommand(newHoldersCommand(root, core.LedgerAssets))
	return cmd
}

func newUniquesCommand(root *rootOptions) *cobra.Command {
	opts := &txOptions{rootOptions: root}
	cmd := &cobra.Command{
		Use:   "uniques",
		Short: "Unique asset calls and queries",
	}
	addTxFlags(cmd, opts)

	var metadata string
	mint := &cobra.Command{
		Use:   "mint supply",
		Short: "Mint a new unique asset with the given supply to --from",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			supply, err := parseAmount(args[0])
			if err != nil {
				return err
			}
			return opts.submit(cmd, core.TxUniquesMint, core.MintUniquePayload{Metadata: []byte(metadata), Supply: supply})
		},
	}
	mint.Flags().StringVar(&metadata, "metadata", "", "opaque metadata")
	cmd.AddCommand(mint)

	cmd.AddCommand(&cobra.Command{
		Use:   "burn asset_id amount",
		Short: "Burn up to amount of the caller's units",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, amount, err := idAndAmount(args)
			if err != nil {
				return err
			}
			return opts.submit(cmd, core.TxUniquesBurn, core.BurnPayload{AssetID: id, Amount: amount})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "transfer asset_id amount to",
		Short: "Transfer up to amount of the caller's units",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, amount, err := idAndAmount(args)
			if err != nil {
				return err
			}
			return opts.submit(cmd, core.TxUniquesTransfer, core.TransferPayload{AssetID: id, Amount: amount, To: core.Account(args[2])})
		},
	})

	cmd.AddCommand(newInfoCommand(root, core.LedgerUniques))
	cmd.AddCommand(newBalanceCommand(root, core.LedgerUniques))
	cmd.AddCommand(newHoldersCommand(root, core.LedgerUniques))
	return cmd
}

func idAndAmount(args []string) (core.AssetID, core.Amount, error) {
	id, err := parseAssetID(args[0])
	if err != nil {
		return 0, core.Amount{}, err
	}
	amount, err := parseAmount(args[1])
	return id, amount, err
}
