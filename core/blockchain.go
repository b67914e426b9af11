package core

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotNext is returned by AddBlock for a block that does not extend the tip.
var ErrNotNext = errors.New("block does not extend the tip")

// BlockStore persists sealed blocks. Implementations live in the storage
// package.
type BlockStore interface {
	GetBlock(hash string) (*Block, error)
	GetBlockByHeight(height int64) (*Block, error)
	// GetReceipt returns the receipt of the call with the given id.
	GetReceipt(txID string) (*Receipt, error)
	// GetTip returns the current tip hash, or ("", nil) for a fresh chain.
	GetTip() (string, error)
	// CommitBlock writes the block, its height and receipt index entries and
	// the tip pointer in one batch.
	CommitBlock(block *Block) error
}

// Blockchain is the append-only sequence of sealed blocks. Only the tip is
// kept in memory; everything else is read through the store.
type Blockchain struct {
	store BlockStore

	mu  sync.RWMutex
	tip *Block
}

// NewBlockchain returns a Blockchain over store. Call Init before use.
func NewBlockchain(store BlockStore) *Blockchain {
	return &Blockchain{store: store}
}

// Init loads and verifies the persisted tip. A fresh store leaves the chain
// empty.
func (bc *Blockchain) Init() error {
	tipHash, err := bc.store.GetTip()
	if err != nil {
		return fmt.Errorf("get tip: %w", err)
	}
	if tipHash == "" {
		return nil
	}
	tip, err := bc.store.GetBlock(tipHash)
	if err != nil {
		return fmt.Errorf("load tip block: %w", err)
	}
	if err := tip.Verify(); err != nil {
		return fmt.Errorf("tip %d: %w", tip.Header.Height, err)
	}

	bc.mu.Lock()
	bc.tip = tip
	bc.mu.Unlock()
	return nil
}

// AddBlock verifies block, checks that it extends the tip and persists it.
func (bc *Blockchain) AddBlock(block *Block) error {
	if err := block.Verify(); err != nil {
		return err
	}

	bc.mu.Lock()
	defer bc.mu.Unlock()
	height, prev := bc.next()
	if block.Header.Height != height || block.Header.PrevHash != prev {
		return fmt.Errorf("%w: got height %d on %s, want height %d on %s",
			ErrNotNext, block.Header.Height, block.Header.PrevHash, height, prev)
	}
	if err := bc.store.CommitBlock(block); err != nil {
		return fmt.Errorf("commit block: %w", err)
	}
	bc.tip = block
	return nil
}

// GetBlock returns a block by its hash.
func (bc *Blockchain) GetBlock(hash string) (*Block, error) {
	return bc.store.GetBlock(hash)
}

// GetBlockByHeight returns the block at the given height.
func (bc *Blockchain) GetBlockByHeight(height int64) (*Block, error) {
	return bc.store.GetBlockByHeight(height)
}

// GetReceipt returns the receipt recorded for txID.
func (bc *Blockchain) GetReceipt(txID string) (*Receipt, error) {
	return bc.store.GetReceipt(txID)
}

// Tip returns the latest block, or nil for an empty chain.
func (bc *Blockchain) Tip() *Block {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.tip
}

// Height returns the tip's height, 0 for an empty chain.
func (bc *Blockchain) Height() int64 {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	if bc.tip == nil {
		return 0
	}
	return bc.tip.Header.Height
}

// Next returns the height and previous hash the next block must carry.
func (bc *Blockchain) Next() (int64, string) {
	bc.mu.RLock()
	defer bc.mu.RUnlock()
	return bc.next()
}

func (bc *Blockchain) next() (int64, string) {
	if bc.tip == nil {
		return 0, GenesisHash
	}
	return bc.tip.Header.Height + 1, bc.tip.Hash
}
