package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolledger/config"
	"github.com/tolelom/tolledger/crypto/certgen"
)

func newInitCommand(root *rootOptions) *cobra.Command {
	var (
		dataDir string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if dataDir != "" {
				cfg.DataDir = dataDir
			}
			path := root.ConfigPath
			if path == "" {
				path = filepath.Join(cfg.DataDir, "config.json")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(cfg, path); err != nil {
				return errors.Wrap(err, "cannot write config")
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote config to %s\n", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data-dir", "", "data directory (default ~/.tolledger)")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")
	return cmd
}

func newCertsCommand(root *rootOptions) *cobra.Command {
	var (
		dir, host, client string
		mutual            bool
	)
	cmd := &cobra.Command{
		Use:   "certs",
		Short: "Generate a CA and RPC TLS certificates and enable them in the config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := root.resolveConfigPath()
			cfg, err := config.Load(path)
			if err != nil {
				return errors.Wrap(err, "cannot load config")
			}
			if dir == "" {
				dir = filepath.Join(cfg.DataDir, "tls")
			}
			b, err := certgen.Generate(dir, host, client, nil)
			if err != nil {
				return errors.Wrap(err, "cannot generate certificates")
			}
			cfg.TLS = config.TLSConfig{CertFile: b.ServerCert, KeyFile: b.ServerKey}
			if mutual {
				cfg.TLS.ClientCA = b.CACert
			}
			if path == "" {
				path = filepath.Join(cfg.DataDir, "config.json")
			}
			if err := config.Save(cfg, path); err != nil {
				return errors.Wrap(err, "cannot write config")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "certificates written to %s\n", dir)
			fmt.Fprintf(out, "config %s updated (client certificates required: %t)\n", path, mutual)
			fmt.Fprintf(out, "ledgerctl flags: --ca %s --cert %s --key %s\n", b.CACert, b.ClientCert, b.ClientKey)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "out", "", "output directory (default <data dir>/tls)")
	cmd.Flags().StringVar(&host, "host", "localhost", "server host name or IP")
	cmd.Flags().StringVar(&client, "client", "ledgerctl", "client certificate common name")
	cmd.Flags().BoolVar(&mutual, "mutual", true, "require client certificates")
	return cmd
}
