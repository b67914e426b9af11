package storage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tolelom/tolledger/core"
)

const (
	prefixBlock   = "block:"
	prefixHeight  = "height:"
	prefixReceipt = "rcpt:"
	keyTip        = "chain:tip"
)

// BlockStore implements core.BlockStore on top of any DB.
type BlockStore struct {
	db DB
}

// NewBlockStore wraps db as a core.BlockStore.
func NewBlockStore(db DB) *BlockStore {
	return &BlockStore{db: db}
}

func (s *BlockStore) GetBlock(hash string) (*core.Block, error) {
	data, err := s.db.Get([]byte(prefixBlock + hash))
	if err != nil {
		return nil, err
	}
	var b core.Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BlockStore) GetBlockByHeight(height int64) (*core.Block, error) {
	hash, err := s.db.Get(heightKey(height))
	if err != nil {
		return nil, err
	}
	return s.GetBlock(string(hash))
}

// GetReceipt resolves txID to its block and returns the matching receipt.
func (s *BlockStore) GetReceipt(txID string) (*core.Receipt, error) {
	hash, err := s.db.Get([]byte(prefixReceipt + txID))
	if err != nil {
		return nil, err
	}
	b, err := s.GetBlock(string(hash))
	if err != nil {
		return nil, fmt.Errorf("receipt %s: %w", txID, err)
	}
	for _, r := range b.Receipts {
		if r.TxID == txID {
			return r, nil
		}
	}
	return nil, core.ErrNotFound
}

func (s *BlockStore) GetTip() (string, error) {
	val, err := s.db.Get([]byte(keyTip))
	if errors.Is(err, core.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(val), nil
}

func (s *BlockStore) CommitBlock(block *core.Block) error {
	data, err := json.Marshal(block)
	if err != nil {
		return err
	}
	batch := s.db.NewBatch()
	batch.Set([]byte(prefixBlock+block.Hash), data)
	batch.Set(heightKey(block.Header.Height), []byte(block.Hash))
	for _, r := range block.Receipts {
		batch.Set([]byte(prefixReceipt+r.TxID), []byte(block.Hash))
	}
	batch.Set([]byte(keyTip), []byte(block.Hash))
	return batch.Write()
}

func heightKey(height int64) []byte {
	return []byte(fmt.Sprintf("%s%d", prefixHeight, height))
}
