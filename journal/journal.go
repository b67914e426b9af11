// Package journal keeps an append-only SQLite log of ledger notifications so
// clients can replay an asset's history after the fact.
package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
)

//go:embed schema.sql
var schemaSQL string

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// Record is one journaled notification.
type Record struct {
	Seq         int64           `json:"seq"`
	Type        string          `json:"type"`
	Ledger      core.LedgerKind `json:"ledger"`
	AssetID     core.AssetID    `json:"asset_id"`
	TxID        string          `json:"tx_id"`
	BlockHeight int64           `json:"block_height"`
	Data        json.RawMessage `json:"data"`
}

// Filter selects records. Zero fields match everything. Records are returned
// in append order starting after AfterSeq.
type Filter struct {
	Ledger   core.LedgerKind `json:"ledger,omitempty"`
	AssetID  *core.AssetID   `json:"asset_id,omitempty"`
	TxID     string          `json:"tx_id,omitempty"`
	AfterSeq int64           `json:"after_seq,omitempty"`
	Limit    int             `json:"limit,omitempty"`
}

// Store is the notification journal.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens the journal at path. ":memory:" gives a private
// in-memory journal.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time, so limit connections.
	// A single connection also keeps a :memory: database alive.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Attach subscribes the journal to every ledger notification on emitter.
// Write failures are logged and do not disturb block production.
func (s *Store) Attach(emitter *events.Emitter) {
	for _, typ := range events.LedgerTypes {
		emitter.Subscribe(typ, func(ev events.Event) {
			if _, err := s.Append(context.Background(), ev); err != nil {
				log.Printf("[journal] append %s for tx %s: %v", ev.Type, ev.TxID, err)
			}
		})
	}
}

// Append stores ev and returns its sequence number. Only ledger
// notifications (those carrying an asset id) are accepted.
func (s *Store) Append(ctx context.Context, ev events.Event) (int64, error) {
	if ev.AssetID == nil || ev.Ledger == "" {
		return 0, fmt.Errorf("event %s is not a ledger notification", ev.Type)
	}
	data, err := json.Marshal(ev.Data)
	if err != nil {
		return 0, fmt.Errorf("marshal %s: %w", ev.Type, err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (type, ledger, asset_id, tx_id, block_height, data) VALUES (?, ?, ?, ?, ?, ?)`,
		string(ev.Type), string(ev.Ledger), strconv.FormatUint(uint64(*ev.AssetID), 10), ev.TxID, ev.BlockHeight, string(data),
	)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.LastInsertId()
}

// Query returns the records matching f in append order.
func (s *Store) Query(ctx context.Context, f Filter) ([]Record, error) {
	var (
		where []string
		args  []any
	)
	where = append(where, "seq > ?")
	args = append(args, f.AfterSeq)
	if f.Ledger != "" {
		where = append(where, "ledger = ?")
		args = append(args, string(f.Ledger))
	}
	if f.AssetID != nil {
		where = append(where, "asset_id = ?")
		args = append(args, strconv.FormatUint(uint64(*f.AssetID), 10))
	}
	if f.TxID != "" {
		where = append(where, "tx_id = ?")
		args = append(args, f.TxID)
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	args = append(args, limit)

	q := `SELECT seq, type, ledger, asset_id, tx_id, block_height, data FROM events WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY seq LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			r      Record
			ledger string
			id     string
			data   string
		)
		if err := rows.Scan(&r.Seq, &r.Type, &ledger, &id, &r.TxID, &r.BlockHeight, &data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		n, err := strconv.ParseUint(id, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("event %d: bad asset id %q", r.Seq, id)
		}
		r.Ledger = core.LedgerKind(ledger)
		r.AssetID = core.AssetID(n)
		r.Data = json.RawMessage(data)
		out = append(out, r)
	}
	return out, rows.Err()
}
