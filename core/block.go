package core

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tolelom/tolledger/crypto"
)

// GenesisHash is the all-zeros previous hash of block 0.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// ErrBadBlock is returned for a block whose contents do not match its header.
var ErrBadBlock = errors.New("block does not match its header")

// BlockHeader is the hashed part of a block. TxRoot commits to the calls in
// order and ReceiptRoot to their outcomes, so two nodes that agree on a hash
// agree on which calls failed and why.
type BlockHeader struct {
	Height      int64  `json:"height"`
	PrevHash    string `json:"prev_hash"`
	StateRoot   string `json:"state_root"`
	TxRoot      string `json:"tx_root"`
	ReceiptRoot string `json:"receipt_root"`
	Timestamp   int64  `json:"timestamp"`
}

// Block is one sequenced batch of calls with one receipt per call, in the
// same order. Failed calls stay in the block.
type Block struct {
	Header       BlockHeader    `json:"header"`
	Transactions []*Transaction `json:"transactions"`
	Receipts     []*Receipt     `json:"receipts"`
	Hash         string         `json:"hash"`
}

// NewBlock creates an unsealed block over txs.
func NewBlock(height int64, prevHash string, txs []*Transaction) *Block {
	return &Block{
		Header: BlockHeader{
			Height:    height,
			PrevHash:  prevHash,
			TxRoot:    ComputeTxRoot(txs),
			Timestamp: time.Now().UnixNano(),
		},
		Transactions: txs,
	}
}

// ComputeHash hashes the serialized header.
func (b *Block) ComputeHash() string {
	data, err := json.Marshal(b.Header)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Seal fills in ReceiptRoot from the receipts and sets Hash. Call once
// StateRoot is known.
func (b *Block) Seal() {
	b.Header.ReceiptRoot = ComputeReceiptRoot(b.Receipts)
	b.Hash = b.ComputeHash()
}

// Verify checks that the calls, receipts and hash agree with the header.
func (b *Block) Verify() error {
	switch {
	case len(b.Receipts) != len(b.Transactions):
		return fmt.Errorf("%w: %d receipts for %d calls", ErrBadBlock, len(b.Receipts), len(b.Transactions))
	case b.Header.TxRoot != ComputeTxRoot(b.Transactions):
		return fmt.Errorf("%w: tx root", ErrBadBlock)
	case b.Header.ReceiptRoot != ComputeReceiptRoot(b.Receipts):
		return fmt.Errorf("%w: receipt root", ErrBadBlock)
	case b.Hash == "" || b.Hash != b.ComputeHash():
		return fmt.Errorf("%w: hash", ErrBadBlock)
	}
	for i, r := range b.Receipts {
		if r.TxID != b.Transactions[i].ID {
			return fmt.Errorf("%w: receipt %d is for call %s, not %s", ErrBadBlock, i, r.TxID, b.Transactions[i].ID)
		}
	}
	return nil
}

// Receipt returns the receipt of call txID within this block.
func (b *Block) Receipt(txID string) (*Receipt, bool) {
	for _, r := range b.Receipts {
		if r.TxID == txID {
			return r, true
		}
	}
	return nil, false
}

// Failed counts the calls whose receipt records a failure.
func (b *Block) Failed() int {
	n := 0
	for _, r := range b.Receipts {
		if r.Status == ReceiptFailed {
			n++
		}
	}
	return n
}

// ComputeTxRoot hashes the length-prefixed call IDs in order.
func ComputeTxRoot(txs []*Transaction) string {
	parts := make([][]byte, len(txs))
	for i, tx := range txs {
		parts[i] = []byte(tx.ID)
	}
	return hashParts(parts)
}

// ComputeReceiptRoot hashes the length-prefixed JSON encodings of receipts
// in order.
func ComputeReceiptRoot(receipts []*Receipt) string {
	parts := make([][]byte, len(receipts))
	for i, r := range receipts {
		data, err := json.Marshal(r)
		if err != nil {
			return ""
		}
		parts[i] = data
	}
	return hashParts(parts)
}

func hashParts(parts [][]byte) string {
	var buf []byte
	var n [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(n[:], uint32(len(p)))
		buf = append(buf, n[:]...)
		buf = append(buf, p...)
	}
	return crypto.Hash(buf)
}
