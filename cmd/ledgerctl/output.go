package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/tolelom/tolledger/core"
)

// output renders results either as indented JSON or as tables.
type output struct {
	w    io.Writer
	json bool
}

func (o *output) encode(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) table(header []string, rows [][]string) {
	t := tablewriter.NewWriter(o.w)
	t.SetHeader(header)
	t.SetAutoWrapText(false)
	t.AppendBulk(rows)
	t.Render()
}

// keyValues prints v as JSON or as a two-column table.
func (o *output) keyValues(v any, pairs [][2]string) error {
	if o.json {
		return o.encode(v)
	}
	rows := make([][]string, len(pairs))
	for i, p := range pairs {
		rows[i] = []string{p[0], p[1]}
	}
	o.table([]string{"field", "value"}, rows)
	return nil
}

func (o *output) receipt(r *core.Receipt) error {
	pairs := [][2]string{
		{"tx", r.TxID},
		{"type", string(r.Type)},
		{"from", string(r.From)},
		{"block", strconv.FormatInt(r.BlockHeight, 10)},
		{"status", r.Status},
	}
	if r.Code != "" {
		pairs = append(pairs, [2]string{"code", r.Code}, [2]string{"error", r.Error})
	}
	if r.AssetID != nil {
		pairs = append(pairs, [2]string{"asset_id", strconv.FormatUint(uint64(*r.AssetID), 10)})
	}
	if r.Amount != nil {
		pairs = append(pairs, [2]string{"amount", r.Amount.String()})
	}
	if r.Supply != nil {
		pairs = append(pairs, [2]string{"supply", r.Supply.String()})
	}
	return o.keyValues(r, pairs)
}

func (o *output) line(format string, args ...any) {
	fmt.Fprintf(o.w, format+"\n", args...)
}
