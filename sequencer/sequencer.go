// Package sequencer is the single point that orders and applies ledger calls.
// It drains the mempool on a timer, executes the calls one at a time and
// commits the resulting block. Readers go through View so they never observe
// a block half applied.
package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/vm"
)

const defaultMaxBlockTxs = 500

// ErrChainStarted is returned by Genesis once block 0 exists.
var ErrChainStarted = errors.New("chain already has a genesis block")

// Sequencer produces blocks from pending calls.
type Sequencer struct {
	mu      sync.RWMutex
	bc      *core.Blockchain
	state   core.State
	mempool *core.Mempool
	exec    *vm.Executor
	emitter *events.Emitter
	maxTxs  int
}

// New creates a Sequencer. maxTxs <= 0 selects the default of 500 calls per
// block. emitter may be nil.
func New(
	bc *core.Blockchain,
	state core.State,
	mempool *core.Mempool,
	exec *vm.Executor,
	emitter *events.Emitter,
	maxTxs int,
) *Sequencer {
	if maxTxs <= 0 {
		maxTxs = defaultMaxBlockTxs
	}
	return &Sequencer{
		bc:      bc,
		state:   state,
		mempool: mempool,
		exec:    exec,
		emitter: emitter,
		maxTxs:  maxTxs,
	}
}

// Genesis applies txs as block 0 on a fresh chain. Unlike ProduceBlock, any
// failing call aborts genesis and leaves the state untouched.
func (s *Sequencer) Genesis(txs []*core.Transaction) (*core.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bc.Tip() != nil {
		return nil, ErrChainStarted
	}

	snap, err := s.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	block := core.NewBlock(0, core.GenesisHash, txs)
	block.Header.Timestamp = 0
	var evs []events.Event
	for _, tx := range txs {
		rcpt, txEvs, err := s.exec.ExecuteTx(0, tx)
		if err != nil {
			return nil, s.abort(snap, fmt.Errorf("genesis call %s (%s): %w", tx.ID, tx.Type, err))
		}
		block.Receipts = append(block.Receipts, rcpt)
		evs = append(evs, txEvs...)
	}
	if err := s.seal(block, snap, evs); err != nil {
		return nil, err
	}
	log.Printf("[sequencer] genesis block %s (%d calls, root %s)", block.Hash, len(txs), block.Header.StateRoot)
	return block, nil
}

// ProduceBlock executes up to maxTxs pending calls and commits them as the
// next block. Failing calls are recorded with a failed receipt and do not
// affect the others. It returns (nil, nil) when there is nothing to sequence.
func (s *Sequencer) ProduceBlock() (*core.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	txs := s.mempool.Pending(s.maxTxs)
	if len(txs) == 0 {
		return nil, nil
	}

	height, prevHash := s.bc.Next()
	block := core.NewBlock(height, prevHash, txs)

	snap, err := s.state.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	var evs []events.Event
	for _, tx := range txs {
		rcpt, txEvs, _ := s.exec.ExecuteTx(height, tx)
		block.Receipts = append(block.Receipts, rcpt)
		evs = append(evs, txEvs...)
	}

	if err := s.seal(block, snap, evs); err != nil {
		return nil, err
	}

	txIDs := make([]string, len(txs))
	for i, tx := range txs {
		txIDs[i] = tx.ID
	}
	s.mempool.Remove(txIDs)

	log.Printf("[sequencer] block %d committed: %d calls, %d failed", height, len(txs), block.Failed())
	return block, nil
}

// seal computes the state root, stores the block and flushes state. Only
// then are evs and block_commit published, so subscribers never see a
// notification for a block that did not land. If the block cannot be
// sealed, state is reverted to snap and evs are dropped.
func (s *Sequencer) seal(block *core.Block, snap int, evs []events.Event) error {
	// Compute root from the write buffer BEFORE flushing so that if AddBlock
	// fails the state has not yet been persisted and the node stays consistent.
	root, err := s.state.ComputeRoot()
	if err != nil {
		return s.abort(snap, fmt.Errorf("state root: %w", err))
	}
	block.Header.StateRoot = root
	block.Seal()

	if err := s.bc.AddBlock(block); err != nil {
		return s.abort(snap, fmt.Errorf("add block: %w", err))
	}

	// Flush state only after the block is safely stored.
	if err := s.state.Commit(); err != nil {
		log.Fatalf("[sequencer] FATAL: block %d stored but state commit failed: %v",
			block.Header.Height, err)
	}

	if s.emitter != nil {
		for _, ev := range evs {
			s.emitter.Emit(ev)
		}
		s.emitter.Emit(events.Event{
			Type:        events.EventBlockCommit,
			BlockHeight: block.Header.Height,
			Data:        map[string]any{"hash": block.Hash, "txs": len(block.Transactions)},
		})
	}
	return nil
}

// abort reverts state to snap and returns cause, annotated with the revert
// failure if there was one.
func (s *Sequencer) abort(snap int, cause error) error {
	if revertErr := s.state.RevertToSnapshot(snap); revertErr != nil {
		return fmt.Errorf("%w (revert: %v)", cause, revertErr)
	}
	return cause
}

// View runs fn with a read lock on the ledger state. fn sees the state as of
// the last committed block and must not retain it.
func (s *Sequencer) View(fn func(core.State) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return fn(s.state)
}

// Run starts the block-production loop with the given interval. It blocks
// until ctx is cancelled.
func (s *Sequencer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ProduceBlock(); err != nil {
				log.Printf("[sequencer] produce block error: %v", err)
			}
		}
	}
}
