package main

import (
	"log"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tolelom/tolledger/config"
	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/indexer"
	"github.com/tolelom/tolledger/journal"
	"github.com/tolelom/tolledger/rpc"
	"github.com/tolelom/tolledger/sequencer"
	"github.com/tolelom/tolledger/storage"
	"github.com/tolelom/tolledger/vm"

	// Import VM modules to trigger their init() self-registration.
	_ "github.com/tolelom/tolledger/vm/modules/assets"
	_ "github.com/tolelom/tolledger/vm/modules/uniques"
)

func newStartCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(root.resolveConfigPath())
			if err != nil {
				return errors.Wrap(err, "cannot load config")
			}
			n, err := openNode(cfg)
			if err != nil {
				return err
			}
			defer n.close()

			if err := n.startRPC(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			log.Printf("Sequencer running (block interval %s, max %d calls)", cfg.BlockInterval(), cfg.MaxBlockTxs)
			n.seq.Run(ctx, cfg.BlockInterval())
			log.Println("Shutting down...")
			return nil
		},
	}
}

// ledgerNode owns every long-lived component of a running node.
type ledgerNode struct {
	cfg     *config.Config
	db      *storage.LevelDB
	bc      *core.Blockchain
	state   *storage.StateDB
	mempool *core.Mempool
	emitter *events.Emitter
	indexer *indexer.Indexer
	journal *journal.Store
	seq     *sequencer.Sequencer
	hub     *rpc.Hub
	server  *rpc.Server
}

// openNode opens storage, wires the components and applies genesis on a
// fresh chain. The RPC server is not started.
func openNode(cfg *config.Config) (_ *ledgerNode, err error) {
	n := &ledgerNode{cfg: cfg}
	defer func() {
		if err != nil {
			n.close()
		}
	}()

	if n.db, err = storage.NewLevelDB(cfg.ChainDir()); err != nil {
		return nil, errors.Wrap(err, "cannot open chain db")
	}
	n.state = storage.NewStateDB(n.db)
	n.bc = core.NewBlockchain(storage.NewBlockStore(n.db))
	if err = n.bc.Init(); err != nil {
		return nil, errors.Wrap(err, "cannot init blockchain")
	}

	n.emitter = events.NewEmitter()
	n.mempool = core.NewMempool(
		core.WithAdmission(vm.Admit),
		core.WithLimits(cfg.MaxPending, cfg.MaxCallerCalls),
	)
	n.indexer = indexer.New(n.db, n.state, n.emitter)
	if cfg.Journal {
		if n.journal, err = journal.Open(cfg.JournalPath()); err != nil {
			return nil, errors.Wrap(err, "cannot open journal")
		}
		n.journal.Attach(n.emitter)
	}

	exec := vm.NewExecutor(n.state)
	exec.SetVerbose(cfg.Verbose)
	n.seq = sequencer.New(n.bc, n.state, n.mempool, exec, n.emitter, cfg.MaxBlockTxs)

	n.hub = rpc.NewHub(n.emitter)
	handler := rpc.NewHandler(n.bc, n.mempool, n.seq, n.indexer, n.journal)
	n.server = rpc.NewServer(cfg.RPCAddr, handler, n.hub, cfg.AuthToken)

	if n.bc.Tip() == nil {
		txs, gerr := cfg.Genesis.Transactions()
		if gerr != nil {
			return nil, errors.Wrap(gerr, "cannot build genesis")
		}
		if _, gerr = n.seq.Genesis(txs); gerr != nil {
			return nil, errors.Wrap(gerr, "cannot apply genesis")
		}
	} else {
		log.Printf("Resuming chain at height %d (tip %s)", n.bc.Height(), n.bc.Tip().Hash)
	}
	return n, nil
}

func (n *ledgerNode) startRPC() error {
	tlsCfg, err := config.LoadTLSConfig(n.cfg.TLS)
	if err != nil {
		return errors.Wrap(err, "cannot load tls config")
	}
	if tlsCfg != nil {
		n.server.SetTLS(tlsCfg)
		if n.cfg.TLS.ClientCA != "" {
			log.Println("RPC client certificates required")
		}
	}
	if err := n.server.Start(); err != nil {
		return errors.Wrap(err, "cannot start rpc")
	}
	log.Printf("RPC listening on %s (tls=%t)", n.server.Addr(), tlsCfg != nil)
	if n.cfg.AuthToken != "" {
		log.Println("RPC Bearer token authentication enabled")
	}
	return nil
}

// close releases everything in reverse order of opening.
func (n *ledgerNode) close() {
	if n.server != nil {
		if err := n.server.Stop(); err != nil {
			log.Printf("rpc stop: %v", err)
		}
	}
	if n.journal != nil {
		if err := n.journal.Close(); err != nil {
			log.Printf("journal close: %v", err)
		}
	}
	if n.db != nil {
		if err := n.db.Close(); err != nil {
			log.Printf("db close: %v", err)
		}
	}
}
