// Package indexer maintains secondary indexes over the ledger so clients can
// list an account's assets without scanning full state.
package indexer

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
	"github.com/tolelom/tolledger/storage"
)

const (
	prefixAccountAssets = "idx:acct:"
	prefixAssetHolders  = "idx:holders:"
)

// HolderReader returns the current non-zero holdings of an asset. core.State
// satisfies it.
type HolderReader interface {
	Holders(kind core.LedgerKind, id core.AssetID) (map[core.Account]core.Amount, error)
}

// AssetRef names an asset in one of the two ledgers.
type AssetRef struct {
	Ledger  core.LedgerKind `json:"ledger"`
	AssetID core.AssetID    `json:"asset_id"`
}

func (r AssetRef) String() string {
	return string(r.Ledger) + ":" + strconv.FormatUint(uint64(r.AssetID), 10)
}

func parseRef(s string) (AssetRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return AssetRef{}, fmt.Errorf("malformed asset ref %q", s)
	}
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return AssetRef{}, fmt.Errorf("malformed asset ref %q: %w", s, err)
	}
	return AssetRef{Ledger: core.LedgerKind(kind), AssetID: core.AssetID(n)}, nil
}

// Indexer subscribes to ledger events and keeps, per asset, the accounts
// holding a non-zero balance and, per account, the assets it holds.
//
// Notifications arrive once their block is committed and while the block
// producer still holds the state, so reader must be that same state. The
// index then never records a call whose block did not land.
type Indexer struct {
	db     storage.DB
	reader HolderReader
}

// New creates an Indexer backed by db and subscribes to ledger events.
func New(db storage.DB, reader HolderReader, emitter *events.Emitter) *Indexer {
	idx := &Indexer{db: db, reader: reader}
	for _, typ := range events.LedgerTypes {
		emitter.Subscribe(typ, idx.onLedgerEvent)
	}
	return idx
}

// AccountAssets returns every asset account holds, ordered by ledger then id.
func (idx *Indexer) AccountAssets(account core.Account) ([]AssetRef, error) {
	list, err := idx.getList(prefixAccountAssets + string(account))
	if err != nil {
		return nil, err
	}
	refs := make([]AssetRef, 0, len(list))
	for _, s := range list {
		ref, err := parseRef(s)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	sort.Slice(refs, func(i, j int) bool {
		if refs[i].Ledger != refs[j].Ledger {
			return refs[i].Ledger < refs[j].Ledger
		}
		return refs[i].AssetID < refs[j].AssetID
	})
	return refs, nil
}

// Holders returns the indexed holders of an asset, sorted.
func (idx *Indexer) Holders(kind core.LedgerKind, id core.AssetID) ([]core.Account, error) {
	list, err := idx.getList(holdersKey(AssetRef{Ledger: kind, AssetID: id}))
	if err != nil {
		return nil, err
	}
	out := make([]core.Account, len(list))
	for i, a := range list {
		out[i] = core.Account(a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// Reconcile brings the index for ref in line with the reader's current
// holders.
func (idx *Indexer) Reconcile(ref AssetRef) error {
	current, err := idx.reader.Holders(ref.Ledger, ref.AssetID)
	if err != nil {
		return fmt.Errorf("read holders of %s: %w", ref, err)
	}
	previous, err := idx.getList(holdersKey(ref))
	if err != nil {
		return err
	}

	seen := make(map[string]bool, len(previous))
	for _, acct := range previous {
		seen[acct] = true
		if _, still := current[core.Account(acct)]; !still {
			if err := idx.removeFromList(prefixAccountAssets+acct, ref.String()); err != nil {
				return err
			}
		}
	}
	next := make([]string, 0, len(current))
	for acct := range current {
		next = append(next, string(acct))
		if !seen[string(acct)] {
			if err := idx.addToList(prefixAccountAssets+string(acct), ref.String()); err != nil {
				return err
			}
		}
	}
	sort.Strings(next)
	return idx.setList(holdersKey(ref), next)
}

func holdersKey(ref AssetRef) string { return prefixAssetHolders + ref.String() }

// ---- event handler ----

func (idx *Indexer) onLedgerEvent(ev events.Event) {
	if ev.AssetID == nil || ev.Ledger == "" {
		return
	}
	ref := AssetRef{Ledger: ev.Ledger, AssetID: *ev.AssetID}
	if err := idx.Reconcile(ref); err != nil {
		log.Printf("[indexer] reconcile %s after %s: %v", ref, ev.Type, err)
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, fmt.Errorf("indexer unmarshal: %w", err)
	}
	return ids, nil
}

func (idx *Indexer) setList(key string, ids []string) error {
	if len(ids) == 0 {
		return idx.db.Delete([]byte(key))
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return idx.db.Set([]byte(key), data)
}

func (idx *Indexer) addToList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == value {
			return nil
		}
	}
	return idx.setList(key, append(ids, value))
}

func (idx *Indexer) removeFromList(key, value string) error {
	ids, err := idx.getList(key)
	if err != nil {
		return err
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	return idx.setList(key, filtered)
}
