package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TxType identifies the ledger operation a call performs.
type TxType string

const (
	TxAssetsCreate      TxType = "assets.create"
	TxAssetsSetMetadata TxType = "assets.set_metadata"
	TxAssetsMint        TxType = "assets.mint"
	TxAssetsBurn        TxType = "assets.burn"
	TxAssetsTransfer    TxType = "assets.transfer"
	TxUniquesMint       TxType = "uniques.mint"
	TxUniquesBurn       TxType = "uniques.burn"
	TxUniquesTransfer   TxType = "uniques.transfer"
)

// Transaction is one inbound ledger call. From is the caller identity,
// already authenticated by whatever sits in front of the node.
type Transaction struct {
	ID        string          `json:"id"`
	Type      TxType          `json:"type"`
	From      Account         `json:"from"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewTransaction creates a call with a fresh id and the current timestamp.
func NewTransaction(typ TxType, from Account, payload any) (*Transaction, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Transaction{
		ID:        uuid.NewString(),
		Type:      typ,
		From:      from,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// Validate checks the envelope fields. Payload contents are checked by the
// executor against the call type's schema.
func (tx *Transaction) Validate() error {
	if tx.ID == "" {
		return errors.New("missing id")
	}
	if tx.Type == "" {
		return errors.New("missing type")
	}
	if tx.From == "" {
		return errors.New("missing from")
	}
	return nil
}

// ---- Payload types ----

// CreateAssetPayload registers a new fungible asset owned by the caller.
type CreateAssetPayload struct{}

// SetMetadataPayload replaces a fungible asset's name and symbol.
type SetMetadataPayload struct {
	AssetID AssetID `json:"asset_id"`
	Name    []byte  `json:"name"`
	Symbol  []byte  `json:"symbol"`
}

// MintPayload mints Amount of a fungible asset into To.
type MintPayload struct {
	AssetID AssetID `json:"asset_id"`
	Amount  Amount  `json:"amount"`
	To      Account `json:"to"`
}

// BurnPayload destroys up to Amount of the caller's holding.
type BurnPayload struct {
	AssetID AssetID `json:"asset_id"`
	Amount  Amount  `json:"amount"`
}

// TransferPayload moves up to Amount of the caller's holding to To.
type TransferPayload struct {
	AssetID AssetID `json:"asset_id"`
	Amount  Amount  `json:"amount"`
	To      Account `json:"to"`
}

// MintUniquePayload creates a unique asset with a fixed supply held by the
// caller.
type MintUniquePayload struct {
	Metadata []byte `json:"metadata"`
	Supply   Amount `json:"supply"`
}

// ---- Receipts ----

// Receipt statuses.
const (
	ReceiptOK     = "ok"
	ReceiptFailed = "failed"
)

// Receipt records the outcome of one call. AssetID is set by calls that
// allocate an id; Amount carries the realized amount (minted, burned or
// transferred) which may be lower than the requested one; Supply is the
// asset's supply after the call when the call touched it.
type Receipt struct {
	TxID        string   `json:"tx_id"`
	Type        TxType   `json:"type"`
	From        Account  `json:"from"`
	BlockHeight int64    `json:"block_height"`
	Status      string   `json:"status"`
	Code        string   `json:"code,omitempty"`
	Error       string   `json:"error,omitempty"`
	AssetID     *AssetID `json:"asset_id,omitempty"`
	Amount      *Amount  `json:"amount,omitempty"`
	Supply      *Amount  `json:"supply,omitempty"`
}

// SetAssetID records the id allocated by the call.
func (r *Receipt) SetAssetID(id AssetID) { r.AssetID = &id }

// SetAmount records the realized amount.
func (r *Receipt) SetAmount(a Amount) { r.Amount = &a }

// SetSupply records the resulting supply.
func (r *Receipt) SetSupply(a Amount) { r.Supply = &a }
