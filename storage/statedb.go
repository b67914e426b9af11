package storage

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/crypto"
)

// registerPrefix records a state-key prefix into statePrefixes so that
// ComputeRoot() always covers it.  All prefix constants must be declared
// via this function; manually editing statePrefixes is not required.
func registerPrefix(p string) string {
	statePrefixes = append(statePrefixes, p)
	return p
}

// statePrefixes is populated automatically by registerPrefix() below.
// ComputeRoot() iterates these prefixes to build the full world-state view.
var statePrefixes []string

var (
	prefixNonce    = registerPrefix("nonce:")
	prefixAsset    = registerPrefix("asset:")
	prefixMetadata = registerPrefix("meta:")
	prefixUnique   = registerPrefix("uniq:")
	prefixBalance  = registerPrefix("bal:")
)

// idKey encodes an asset id as hex(Blake2_128Concat(le64(id))).
func idKey(id core.AssetID) string {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(id))
	return hex.EncodeToString(crypto.Blake2_128Concat(b[:]))
}

func accountKey(a core.Account) string {
	return hex.EncodeToString(crypto.Blake2_128Concat([]byte(a)))
}

func balancePrefix(kind core.LedgerKind, id core.AssetID) string {
	return prefixBalance + string(kind) + ":" + idKey(id)
}

// accountFromKey recovers the account from the tail of a balance key.
func accountFromKey(prefix, key string) (core.Account, error) {
	raw, err := hex.DecodeString(strings.TrimPrefix(key, prefix))
	if err != nil {
		return "", fmt.Errorf("balance key %q: %w", key, err)
	}
	if len(raw) < crypto.Blake2_128Size {
		return "", fmt.Errorf("balance key %q: short account hash", key)
	}
	return core.Account(raw[crypto.Blake2_128Size:]), nil
}

type stateSnapshot struct {
	dirty   map[string][]byte
	deleted map[string]bool
}

// StateDB implements core.State on top of a DB with in-memory write buffer,
// snapshot/rollback, and deterministic state-root computation.
type StateDB struct {
	db        DB
	dirty     map[string][]byte
	deleted   map[string]bool
	snapshots []stateSnapshot
}

// NewStateDB creates a StateDB backed by db.
func NewStateDB(db DB) *StateDB {
	return &StateDB{
		db:      db,
		dirty:   make(map[string][]byte),
		deleted: make(map[string]bool),
	}
}

// ---- internal helpers ----

func (s *StateDB) get(key string) ([]byte, error) {
	if s.deleted[key] {
		return nil, core.ErrNotFound
	}
	if v, ok := s.dirty[key]; ok {
		return v, nil
	}
	return s.db.Get([]byte(key))
}

func (s *StateDB) set(key string, val []byte) {
	delete(s.deleted, key)
	s.dirty[key] = val
}

func (s *StateDB) del(key string) {
	delete(s.dirty, key)
	s.deleted[key] = true
}

func (s *StateDB) getJSON(key string, v any) error {
	data, err := s.get(key)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *StateDB) setJSON(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.set(key, data)
	return nil
}

// scan returns every live entry under prefix: persisted entries overlaid with
// the write buffer, minus deleted keys.
func (s *StateDB) scan(prefix string) (map[string][]byte, error) {
	merged := make(map[string][]byte)
	it := s.db.NewIterator([]byte(prefix))
	for it.Next() {
		k := string(it.Key())
		v := make([]byte, len(it.Value()))
		copy(v, it.Value())
		merged[k] = v
	}
	it.Release()
	if err := it.Error(); err != nil {
		return nil, err
	}
	for k, v := range s.dirty {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	for k := range s.deleted {
		delete(merged, k)
	}
	return merged, nil
}

// ---- Nonce ----

func (s *StateDB) GetNonce(kind core.LedgerKind) (core.AssetID, error) {
	var n core.AssetID
	err := s.getJSON(prefixNonce+string(kind), &n)
	if errors.Is(err, core.ErrNotFound) {
		return 0, nil
	}
	return n, err
}

func (s *StateDB) SetNonce(kind core.LedgerKind, next core.AssetID) error {
	return s.setJSON(prefixNonce+string(kind), next)
}

// ---- Fungible registry ----

func (s *StateDB) GetAsset(id core.AssetID) (*core.AssetDetails, error) {
	var d core.AssetDetails
	if err := s.getJSON(prefixAsset+idKey(id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *StateDB) SetAsset(d *core.AssetDetails) error {
	return s.setJSON(prefixAsset+idKey(d.ID), d)
}

func (s *StateDB) GetMetadata(id core.AssetID) (*core.AssetMetadata, error) {
	var m core.AssetMetadata
	if err := s.getJSON(prefixMetadata+idKey(id), &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *StateDB) SetMetadata(id core.AssetID, m *core.AssetMetadata) error {
	return s.setJSON(prefixMetadata+idKey(id), m)
}

// ---- Unique registry ----

func (s *StateDB) GetUniqueAsset(id core.AssetID) (*core.UniqueAssetDetails, error) {
	var d core.UniqueAssetDetails
	if err := s.getJSON(prefixUnique+idKey(id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *StateDB) SetUniqueAsset(d *core.UniqueAssetDetails) error {
	return s.setJSON(prefixUnique+idKey(d.ID), d)
}

// ---- Balances ----

func (s *StateDB) GetBalance(kind core.LedgerKind, id core.AssetID, account core.Account) (core.Amount, error) {
	var a core.Amount
	err := s.getJSON(balancePrefix(kind, id)+accountKey(account), &a)
	if errors.Is(err, core.ErrNotFound) {
		return core.ZeroAmount, nil
	}
	return a, err
}

// SetBalance stores amount, deleting the entry when it is zero so that a
// zeroed balance and an absent one are the same state.
func (s *StateDB) SetBalance(kind core.LedgerKind, id core.AssetID, account core.Account, amount core.Amount) error {
	key := balancePrefix(kind, id) + accountKey(account)
	if amount.IsZero() {
		s.del(key)
		return nil
	}
	return s.setJSON(key, amount)
}

func (s *StateDB) Holders(kind core.LedgerKind, id core.AssetID) (map[core.Account]core.Amount, error) {
	prefix := balancePrefix(kind, id)
	entries, err := s.scan(prefix)
	if err != nil {
		return nil, err
	}
	out := make(map[core.Account]core.Amount, len(entries))
	for k, v := range entries {
		acct, err := accountFromKey(prefix, k)
		if err != nil {
			return nil, err
		}
		var a core.Amount
		if err := json.Unmarshal(v, &a); err != nil {
			return nil, fmt.Errorf("balance of %s: %w", acct, err)
		}
		out[acct] = a
	}
	return out, nil
}

// ---- Snapshot / Rollback / Commit ----

// Snapshot saves the current write buffer and returns a snapshot ID.
func (s *StateDB) Snapshot() (int, error) {
	snap := stateSnapshot{
		dirty:   make(map[string][]byte, len(s.dirty)),
		deleted: make(map[string]bool, len(s.deleted)),
	}
	for k, v := range s.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		snap.dirty[k] = cp
	}
	for k, v := range s.deleted {
		snap.deleted[k] = v
	}
	s.snapshots = append(s.snapshots, snap)
	return len(s.snapshots) - 1, nil
}

// RevertToSnapshot restores the write buffer to a previously saved snapshot
// and drops it together with every later snapshot.
func (s *StateDB) RevertToSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	snap := s.snapshots[id]

	dirty := make(map[string][]byte, len(snap.dirty))
	for k, v := range snap.dirty {
		cp := make([]byte, len(v))
		copy(cp, v)
		dirty[k] = cp
	}
	deleted := make(map[string]bool, len(snap.deleted))
	for k, v := range snap.deleted {
		deleted[k] = v
	}

	s.dirty = dirty
	s.deleted = deleted
	s.snapshots = s.snapshots[:id]
	return nil
}

// DiscardSnapshot releases a snapshot that is no longer needed, together
// with every later snapshot. The write buffer is left as is.
func (s *StateDB) DiscardSnapshot(id int) error {
	if id < 0 || id >= len(s.snapshots) {
		return fmt.Errorf("invalid snapshot id %d", id)
	}
	s.snapshots = s.snapshots[:id]
	return nil
}

// ComputeRoot returns the deterministic hash of the complete ledger state:
// the sorted, length-prefixed key-value pairs under every state prefix,
// including uncommitted writes. It does not flush anything.
func (s *StateDB) ComputeRoot() (string, error) {
	merged := make(map[string][]byte)
	for _, prefix := range statePrefixes {
		entries, err := s.scan(prefix)
		if err != nil {
			return "", fmt.Errorf("scan %q: %w", prefix, err)
		}
		for k, v := range entries {
			merged[k] = v
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	var lenBuf [4]byte
	for _, k := range keys {
		v := merged[k]
		kb := []byte(k)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(kb)))
		buf.Write(lenBuf[:])
		buf.Write(kb)
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(v)))
		buf.Write(lenBuf[:])
		buf.Write(v)
	}
	return crypto.Hash(buf.Bytes()), nil
}

// Commit atomically flushes the write buffer to the underlying DB via a
// Batch and then clears it.
func (s *StateDB) Commit() error {
	batch := s.db.NewBatch()
	for k, v := range s.dirty {
		batch.Set([]byte(k), v)
	}
	for k := range s.deleted {
		batch.Delete([]byte(k))
	}
	if err := batch.Write(); err != nil {
		return err
	}
	s.dirty = make(map[string][]byte)
	s.deleted = make(map[string]bool)
	s.snapshots = nil
	return nil
}
