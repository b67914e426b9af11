package events

import (
	"log"
	"sync"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/ledger"
)

// EventType labels what happened.
type EventType string

const (
	EventBlockCommit EventType = "block_commit"
	EventTxExecuted  EventType = "tx_executed"

	EventAssetCreated      EventType = "assets.Created"
	EventAssetMetadataSet  EventType = "assets.MetadataSet"
	EventAssetMinted       EventType = "assets.Minted"
	EventAssetBurned       EventType = "assets.Burned"
	EventAssetTransferred  EventType = "assets.Transferred"
	EventUniqueCreated     EventType = "uniques.Created"
	EventUniqueBurned      EventType = "uniques.Burned"
	EventUniqueTransferred EventType = "uniques.Transferred"
)

// LedgerTypes lists every event type that carries a ledger notification.
var LedgerTypes = []EventType{
	EventAssetCreated, EventAssetMetadataSet, EventAssetMinted, EventAssetBurned,
	EventAssetTransferred, EventUniqueCreated, EventUniqueBurned, EventUniqueTransferred,
}

// wildcard is the internal key for SubscribeAll handlers.
const wildcard EventType = "*"

// Event carries a typed payload emitted after a state change. Ledger and
// AssetID are set for ledger notifications only.
type Event struct {
	Type        EventType       `json:"type"`
	TxID        string          `json:"tx_id"`
	BlockHeight int64           `json:"block_height"`
	Ledger      core.LedgerKind `json:"ledger,omitempty"`
	AssetID     *core.AssetID   `json:"asset_id,omitempty"`
	Data        any             `json:"data"`
}

// TypeOf returns the event type for a ledger notification, e.g.
// "uniques.Transferred".
func TypeOf(ev ledger.Event) EventType {
	return EventType(string(ev.Ledger()) + "." + ev.Name())
}

// FromLedger wraps a ledger notification produced by call txID in block
// height.
func FromLedger(ev ledger.Event, txID string, height int64) Event {
	id := ev.Asset()
	return Event{
		Type:        TypeOf(ev),
		TxID:        txID,
		BlockHeight: height,
		Ledger:      ev.Ledger(),
		AssetID:     &id,
		Data:        ev,
	}
}

// Handler is a callback invoked for matching events.
type Handler func(Event)

// Emitter is a simple pub/sub broker. Subscribe before Emit.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[EventType][]Handler
}

// NewEmitter creates an Emitter with no subscribers.
func NewEmitter() *Emitter {
	return &Emitter{handlers: make(map[EventType][]Handler)}
}

// Subscribe registers h to be called whenever typ is emitted.
func (e *Emitter) Subscribe(typ EventType, h Handler) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.handlers[typ] = append(e.handlers[typ], h)
}

// SubscribeAll registers h for every event type, including ones added later.
func (e *Emitter) SubscribeAll(h Handler) {
	e.Subscribe(wildcard, h)
}

// Emit delivers ev to all subscribers for ev.Type synchronously, then to the
// SubscribeAll handlers.
// Each handler is guarded by panic recovery so a misbehaving subscriber
// cannot crash the node or halt block production.
func (e *Emitter) Emit(ev Event) {
	e.mu.RLock()
	typed := e.handlers[ev.Type]
	all := e.handlers[wildcard]
	handlers := make([]Handler, 0, len(typed)+len(all))
	handlers = append(handlers, typed...)
	handlers = append(handlers, all...)
	e.mu.RUnlock()
	for _, h := range handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("[events] handler panicked for %s: %v", ev.Type, r)
				}
			}()
			h(ev)
		}()
	}
}
