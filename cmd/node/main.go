// Command node runs a tolledger node: it sequences ledger calls into blocks
// and serves the JSON-RPC API.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tolelom/tolledger/config"
)

type rootOptions struct {
	ConfigPath string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "tolledger-node",
		Short: "Run a tolledger asset ledger node",
		Long: `tolledger-node keeps a fungible asset ledger and a unique asset ledger,
orders inbound calls into blocks and serves them over JSON-RPC.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "",
		"config file (default <data dir>/config.json when present)")

	cmd.AddCommand(newStartCommand(opts))
	cmd.AddCommand(newInitCommand(opts))
	cmd.AddCommand(newCertsCommand(opts))
	return cmd
}

// resolveConfigPath falls back to the default data dir's config.json if it
// exists, else to no file at all.
func (o *rootOptions) resolveConfigPath() string {
	if o.ConfigPath != "" {
		return o.ConfigPath
	}
	p := filepath.Join(config.DefaultDataDir(), "config.json")
	if _, err := os.Stat(p); err == nil {
		return p
	}
	return ""
}
