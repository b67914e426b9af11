package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolledger/config"
	"github.com/tolelom/tolledger/rpc"
)

// rootOptions holds global flags for all commands.
type rootOptions struct {
	Endpoint string
	Token    string
	CAFile   string
	CertFile string
	KeyFile  string
	Format   string // "text" | "json"
	Timeout  time.Duration
}

var validFormats = []string{"text", "json"}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Submit calls to and query a tolledger node",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			for _, f := range validFormats {
				if f == opts.Format {
					return nil
				}
			}
			return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
		},
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.Endpoint, "rpc", "http://127.0.0.1:8545", "node RPC endpoint")
	pf.StringVar(&opts.Token, "token", "", "RPC bearer token (env TOLLEDGER_AUTH_TOKEN)")
	pf.StringVar(&opts.CAFile, "ca", "", "CA certificate for https endpoints")
	pf.StringVar(&opts.CertFile, "cert", "", "client certificate")
	pf.StringVar(&opts.KeyFile, "key", "", "client key")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.DurationVar(&opts.Timeout, "timeout", 30*time.Second, "time to wait for a call to be sequenced")

	cmd.AddCommand(newAssetsCommand(opts))
	cmd.AddCommand(newUniquesCommand(opts))
	cmd.AddCommand(newAccountCommand(opts))
	cmd.AddCommand(newReceiptCommand(opts))
	cmd.AddCommand(newEventsCommand(opts))
	cmd.AddCommand(newWatchCommand(opts))
	cmd.AddCommand(newPendingCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	return cmd
}

// client builds an RPC client from the global flags.
func (o *rootOptions) client() (*rpc.Client, error) {
	token := o.Token
	if token == "" {
		token = os.Getenv("TOLLEDGER_AUTH_TOKEN")
	}
	c := rpc.NewClient(o.Endpoint, token)
	if o.CAFile != "" || o.CertFile != "" {
		tlsCfg, err := config.LoadClientTLS(o.CAFile, o.CertFile, o.KeyFile)
		if err != nil {
			return nil, errors.Wrap(err, "cannot load client tls")
		}
		c.SetTLS(tlsCfg)
	}
	return c, nil
}

func (o *rootOptions) output(cmd *cobra.Command) *output {
	return &output{w: cmd.OutOrStdout(), json: o.Format == "json"}
}
