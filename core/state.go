package core

// AssetID identifies an asset within one ledger. Ids are handed out by the
// ledger's allocator in increasing order and are never reused.
type AssetID uint64

// Account is an opaque caller identity supplied by the host.
type Account string

// LedgerKind namespaces the two ledgers' nonces and balances.
type LedgerKind string

const (
	LedgerAssets  LedgerKind = "assets"  // fungible
	LedgerUniques LedgerKind = "uniques" // non-fungible
)

// AssetDetails is the registry record of a fungible asset. Owner never
// changes after create; Supply moves only with mint and burn.
type AssetDetails struct {
	ID     AssetID `json:"id"`
	Owner  Account `json:"owner"`
	Supply Amount  `json:"supply"`
}

// AssetMetadata is the name/symbol pair attached to a fungible asset.
type AssetMetadata struct {
	Name   []byte `json:"name"`
	Symbol []byte `json:"symbol"`
}

// UniqueAssetDetails is the registry record of a unique asset. Supply is set
// at mint and only decreases afterwards.
type UniqueAssetDetails struct {
	ID       AssetID `json:"id"`
	Creator  Account `json:"creator"`
	Supply   Amount  `json:"supply"`
	Metadata []byte  `json:"metadata"`
}

// State is the ledger's view of storage. Implementations must be
// snapshot-able so the executor can roll back failed calls.
type State interface {
	// Id allocator nonce, one per ledger.
	GetNonce(kind LedgerKind) (AssetID, error)
	SetNonce(kind LedgerKind, next AssetID) error

	// Fungible registry. GetAsset and GetMetadata return ErrNotFound for
	// absent entries.
	GetAsset(id AssetID) (*AssetDetails, error)
	SetAsset(d *AssetDetails) error
	GetMetadata(id AssetID) (*AssetMetadata, error)
	SetMetadata(id AssetID, m *AssetMetadata) error

	// Unique registry.
	GetUniqueAsset(id AssetID) (*UniqueAssetDetails, error)
	SetUniqueAsset(d *UniqueAssetDetails) error

	// Balances read as zero when absent; writing zero removes the entry.
	GetBalance(kind LedgerKind, id AssetID, account Account) (Amount, error)
	SetBalance(kind LedgerKind, id AssetID, account Account, amount Amount) error
	// Holders returns every account with a non-zero balance of id.
	Holders(kind LedgerKind, id AssetID) (map[Account]Amount, error)

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// DiscardSnapshot drops snapshot id and every later one while keeping
	// the writes made since.
	DiscardSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing.
	ComputeRoot() (string, error)
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
