package ledger

import "github.com/tolelom/tolledger/core"

// Event names, shared by both ledgers.
const (
	EventCreated     = "Created"
	EventMetadataSet = "MetadataSet"
	EventMinted      = "Minted"
	EventBurned      = "Burned"
	EventTransferred = "Transferred"
)

// Event is a notification produced by a successful ledger operation.
type Event interface {
	Ledger() core.LedgerKind
	Name() string
	Asset() core.AssetID
}

// Created reports a new fungible asset.
type Created struct {
	Owner   core.Account `json:"owner"`
	AssetID core.AssetID `json:"asset_id"`
}

// MetadataSet reports replaced name/symbol metadata.
type MetadataSet struct {
	AssetID   core.AssetID `json:"asset_id"`
	AssetName []byte       `json:"name"`
	Symbol    []byte       `json:"symbol"`
}

// Minted reports a fungible mint. TotalSupply carries the amount actually
// minted by this call, not the asset's new supply.
type Minted struct {
	AssetID     core.AssetID `json:"asset_id"`
	Owner       core.Account `json:"owner"`
	TotalSupply core.Amount  `json:"total_supply"`
}

// Burned reports a burn on either ledger. TotalSupply is the asset's supply
// after the burn.
type Burned struct {
	Kind        core.LedgerKind `json:"ledger"`
	AssetID     core.AssetID    `json:"asset_id"`
	Owner       core.Account    `json:"owner"`
	TotalSupply core.Amount     `json:"total_supply"`
}

// Transferred reports a balance move on either ledger with the realized
// amount.
type Transferred struct {
	Kind    core.LedgerKind `json:"ledger"`
	AssetID core.AssetID    `json:"asset_id"`
	From    core.Account    `json:"from"`
	To      core.Account    `json:"to"`
	Amount  core.Amount     `json:"amount"`
}

// UniqueCreated reports a newly minted unique asset.
type UniqueCreated struct {
	Creator core.Account `json:"creator"`
	AssetID core.AssetID `json:"asset_id"`
}

func (Created) Ledger() core.LedgerKind       { return core.LedgerAssets }
func (Created) Name() string                  { return EventCreated }
func (e Created) Asset() core.AssetID         { return e.AssetID }
func (MetadataSet) Ledger() core.LedgerKind   { return core.LedgerAssets }
func (MetadataSet) Name() string              { return EventMetadataSet }
func (e MetadataSet) Asset() core.AssetID     { return e.AssetID }
func (Minted) Ledger() core.LedgerKind        { return core.LedgerAssets }
func (Minted) Name() string                   { return EventMinted }
func (e Minted) Asset() core.AssetID          { return e.AssetID }
func (e Burned) Ledger() core.LedgerKind      { return e.Kind }
func (Burned) Name() string                   { return EventBurned }
func (e Burned) Asset() core.AssetID          { return e.AssetID }
func (e Transferred) Ledger() core.LedgerKind { return e.Kind }
func (Transferred) Name() string              { return EventTransferred }
func (e Transferred) Asset() core.AssetID     { return e.AssetID }
func (UniqueCreated) Ledger() core.LedgerKind { return core.LedgerUniques }
func (UniqueCreated) Name() string            { return EventCreated }
func (e UniqueCreated) Asset() core.AssetID   { return e.AssetID }

// Notifier receives ledger events. Operations call Notify at most once, after
// every mutation of the operation has been applied.
type Notifier interface {
	Notify(ev Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Event)

func (f NotifierFunc) Notify(ev Event) { f(ev) }

type discard struct{}

func (discard) Notify(Event) {}

// Discard drops every event.
var Discard Notifier = discard{}

// EventLog buffers events in order. The executor collects a call's events in
// an EventLog and only publishes them once the call has succeeded.
type EventLog struct {
	events []Event
}

func (l *EventLog) Notify(ev Event) { l.events = append(l.events, ev) }

// Events returns the buffered events.
func (l *EventLog) Events() []Event { return l.events }

// Reset empties the log.
func (l *EventLog) Reset() { l.events = nil }
