// Package config loads node configuration through viper. Values come from,
// in increasing precedence: DefaultConfig, the config file (JSON, YAML or
// TOML by extension) and TOLLEDGER_* environment variables.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TOLLEDGER_RPC_ADDR.
const EnvPrefix = "TOLLEDGER"

// Config holds all node configuration.
type Config struct {
	NodeID          string        `json:"node_id" mapstructure:"node_id"`
	DataDir         string        `json:"data_dir" mapstructure:"data_dir"`
	RPCAddr         string        `json:"rpc_addr" mapstructure:"rpc_addr"`
	AuthToken       string        `json:"auth_token" mapstructure:"auth_token"` // required on sendTx when set
	BlockIntervalMS int           `json:"block_interval_ms" mapstructure:"block_interval_ms"`
	MaxBlockTxs     int           `json:"max_block_txs" mapstructure:"max_block_txs"`       // max calls per block; 0 → 500
	MaxPending      int           `json:"max_pending" mapstructure:"max_pending"`           // mempool capacity; 0 → 10000
	MaxCallerCalls  int           `json:"max_caller_calls" mapstructure:"max_caller_calls"` // pending calls per caller; 0 → 1000
	Journal         bool          `json:"journal" mapstructure:"journal"`                   // keep the SQLite notification journal
	Verbose         bool          `json:"verbose" mapstructure:"verbose"`                   // log every call
	TLS             TLSConfig     `json:"tls" mapstructure:"tls"`
	Genesis         GenesisConfig `json:"genesis" mapstructure:"genesis"`
}

// DefaultDataDir returns ~/.tolledger, or ./data when the home directory
// cannot be determined.
func DefaultDataDir() string {
	dir, err := homedir.Dir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(dir, ".tolledger")
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		NodeID:          "node0",
		DataDir:         DefaultDataDir(),
		RPCAddr:         "127.0.0.1:8545",
		BlockIntervalMS: 1000,
		MaxBlockTxs:     500,
		MaxPending:      10_000,
		MaxCallerCalls:  1_000,
		Journal:         true,
	}
}

// BlockInterval returns the block production period.
func (c *Config) BlockInterval() time.Duration {
	if c.BlockIntervalMS <= 0 {
		return time.Second
	}
	return time.Duration(c.BlockIntervalMS) * time.Millisecond
}

// ChainDir is the LevelDB directory holding state and blocks.
func (c *Config) ChainDir() string { return filepath.Join(c.DataDir, "chain") }

// JournalPath is the SQLite notification journal file.
func (c *Config) JournalPath() string { return filepath.Join(c.DataDir, "journal.db") }

// Load reads configuration from path (optional) and the environment. A
// leading ~ in data_dir is expanded.
func Load(path string) (*Config, error) {
	v := viper.New()
	def := DefaultConfig()
	v.SetDefault("node_id", def.NodeID)
	v.SetDefault("data_dir", def.DataDir)
	v.SetDefault("rpc_addr", def.RPCAddr)
	v.SetDefault("auth_token", def.AuthToken)
	v.SetDefault("block_interval_ms", def.BlockIntervalMS)
	v.SetDefault("max_block_txs", def.MaxBlockTxs)
	v.SetDefault("max_pending", def.MaxPending)
	v.SetDefault("max_caller_calls", def.MaxCallerCalls)
	v.SetDefault("journal", def.Journal)
	v.SetDefault("verbose", def.Verbose)
	v.SetDefault("tls.cert_file", "")
	v.SetDefault("tls.key_file", "")
	v.SetDefault("tls.client_ca", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	dir, err := homedir.Expand(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("expand data_dir: %w", err)
	}
	cfg.DataDir = dir
	if err := cfg.Genesis.Validate(); err != nil {
		return nil, fmt.Errorf("genesis: %w", err)
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
