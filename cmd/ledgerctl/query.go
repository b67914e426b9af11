package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/journal"
	"github.com/tolelom/tolledger/rpc"
)

// call runs one RPC query with the global timeout.
func (o *rootOptions) call(cmd *cobra.Command, method string, params, out any) error {
	c, err := o.client()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), o.Timeout)
	defer cancel()
	if err := c.Call(ctx, method, params, out); err != nil {
		return errors.Wrap(err, method)
	}
	return nil
}

func newInfoCommand(root *rootOptions, kind core.LedgerKind) *cobra.Command {
	return &cobra.Command{
		Use:   "info asset_id",
		Short: "Show an asset's registry entry",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			params := map[string]any{"asset_id": id}
			out := root.output(cmd)
			if kind == core.LedgerUniques {
				var d core.UniqueAssetDetails
				if err := root.call(cmd, "uniques.getAsset", params, &d); err != nil {
					return err
				}
				return out.keyValues(d, [][2]string{
					{"id", strconv.FormatUint(uint64(d.ID), 10)},
					{"creator", string(d.Creator)},
					{"supply", d.Supply.String()},
					{"metadata", string(d.Metadata)},
				})
			}

			var d core.AssetDetails
			if err := root.call(cmd, "assets.getAsset", params, &d); err != nil {
				return err
			}
			var m core.AssetMetadata
			if err := root.call(cmd, "assets.getMetadata", params, &m); err != nil {
				return err
			}
			return out.keyValues(map[string]any{"asset": d, "metadata": m}, [][2]string{
				{"id", strconv.FormatUint(uint64(d.ID), 10)},
				{"owner", string(d.Owner)},
				{"supply", d.Supply.String()},
				{"name", string(m.Name)},
				{"symbol", string(m.Symbol)},
			})
		},
	}
}

func newBalanceCommand(root *rootOptions, kind core.LedgerKind) *cobra.Command {
	return &cobra.Command{
		Use:   "balance asset_id account",
		Short: "Show an account's balance",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			var res rpc.BalanceResult
			if err := root.call(cmd, string(kind)+".getBalance", map[string]any{"asset_id": id, "account": args[1]}, &res); err != nil {
				return err
			}
			out := root.output(cmd)
			if out.json {
				return out.encode(res)
			}
			out.line("%s", res.Balance)
			return nil
		},
	}
}

func newHoldersCommand(root *rootOptions, kind core.LedgerKind) *cobra.Command {
	return &cobra.Command{
		Use:   "holders asset_id",
		Short: "List accounts holding an asset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseAssetID(args[0])
			if err != nil {
				return err
			}
			var holders []rpc.Holding
			if err := root.call(cmd, string(kind)+".getHolders", map[string]any{"asset_id": id}, &holders); err != nil {
				return err
			}
			out := root.output(cmd)
			if out.json {
				return out.encode(holders)
			}
			rows := make([][]string, len(holders))
			for i, h := range holders {
				rows[i] = []string{h.Account, h.Balance}
			}
			out.table([]string{"account", "balance"}, rows)
			return nil
		},
	}
}

func newAccountCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "account account",
		Short: "List every asset an account holds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var held []rpc.AccountAsset
			if err := root.call(cmd, "getAccountAssets", map[string]string{"account": args[0]}, &held); err != nil {
				return err
			}
			out := root.output(cmd)
			if out.json {
				return out.encode(held)
			}
			rows := make([][]string, len(held))
			for i, a := range held {
				rows[i] = []string{a.Ledger, strconv.FormatUint(a.AssetID, 10), a.Balance}
			}
			out.table([]string{"ledger", "asset", "balance"}, rows)
			return nil
		},
	}
}

func newReceiptCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "receipt tx_id",
		Short: "Show the receipt of a sequenced call",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var r core.Receipt
			if err := root.call(cmd, "getReceipt", map[string]string{"tx_id": args[0]}, &r); err != nil {
				return err
			}
			return root.output(cmd).receipt(&r)
		},
	}
}

func newEventsCommand(root *rootOptions) *cobra.Command {
	var (
		f     journal.Filter
		asset int64
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Query the notification journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asset >= 0 {
				id := core.AssetID(asset)
				f.AssetID = &id
			}
			var records []journal.Record
			if err := root.call(cmd, "getEvents", f, &records); err != nil {
				return err
			}
			out := root.output(cmd)
			if out.json {
				return out.encode(records)
			}
			rows := make([][]string, len(records))
			for i, r := range records {
				rows[i] = []string{
					strconv.FormatInt(r.Seq, 10),
					strconv.FormatInt(r.BlockHeight, 10),
					r.Type,
					strconv.FormatUint(uint64(r.AssetID), 10),
					r.TxID,
					string(r.Data),
				}
			}
			out.table([]string{"seq", "block", "type", "asset", "tx", "data"}, rows)
			return nil
		},
	}
	fl := cmd.Flags()
	fl.StringVar((*string)(&f.Ledger), "ledger", "", "assets or uniques")
	fl.Int64Var(&asset, "asset", -1, "asset id")
	fl.StringVar(&f.TxID, "tx", "", "call id")
	fl.Int64Var(&f.AfterSeq, "after", 0, "only records after this sequence number")
	fl.IntVar(&f.Limit, "limit", 0, "maximum records (node default 100)")
	return cmd
}

func newWatchCommand(root *rootOptions) *cobra.Command {
	var (
		filter rpc.StreamFilter
		asset  int64
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream ledger notifications until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if asset >= 0 {
				id := core.AssetID(asset)
				filter.AssetID = &id
			}
			c, err := root.client()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			out := root.output(cmd)
			return c.Subscribe(ctx, filter, func(ev events.Event) {
				if out.json {
					_ = out.encode(ev)
					return
				}
				id := "-"
				if ev.AssetID != nil {
					id = strconv.FormatUint(uint64(*ev.AssetID), 10)
				}
				out.line("%d\t%s\t%s\t%s", ev.BlockHeight, ev.Type, id, ev.TxID)
			})
		},
	}
	fl := cmd.Flags()
	fl.StringVar((*string)(&filter.Ledger), "ledger", "", "assets or uniques")
	fl.StringVar((*string)(&filter.Type), "type", "", "event type, e.g. assets.Transferred")
	fl.Int64Var(&asset, "asset", -1, "asset id")
	return cmd
}

func newPendingCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending account",
		Short: "List an account's calls that are waiting for a block",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var txs []*core.Transaction
			if err := root.call(cmd, "getPendingCalls", map[string]string{"from": args[0]}, &txs); err != nil {
				return err
			}
			out := root.output(cmd)
			if out.json {
				return out.encode(txs)
			}
			rows := make([][]string, len(txs))
			for i, tx := range txs {
				rows[i] = []string{tx.ID, string(tx.Type), time.Unix(0, tx.Timestamp).UTC().Format(time.RFC3339)}
			}
			out.table([]string{"tx", "type", "submitted"}, rows)
			return nil
		},
	}
}

func newStatusCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show chain height, state root and pending calls",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sr struct {
				Height    int64  `json:"height"`
				StateRoot string `json:"state_root"`
			}
			if err := root.call(cmd, "getStateRoot", nil, &sr); err != nil {
				return err
			}
			var pending int
			if err := root.call(cmd, "getMempoolSize", nil, &pending); err != nil {
				return err
			}
			status := map[string]any{"height": sr.Height, "state_root": sr.StateRoot, "pending": pending}
			return root.output(cmd).keyValues(status, [][2]string{
				{"height", strconv.FormatInt(sr.Height, 10)},
				{"state_root", sr.StateRoot},
				{"pending", fmt.Sprint(pending)},
			})
		},
	}
}
