package core

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	defaultPoolLimit   = 10_000
	defaultCallerLimit = 1_000

	maxCallAge  = time.Hour
	maxCallSkew = 5 * time.Minute
)

var (
	// ErrDuplicateTx is returned by Add for an id that is already pending.
	ErrDuplicateTx = errors.New("call already pending")
	// ErrMempoolFull is returned by Add once the pool holds its limit.
	ErrMempoolFull = errors.New("mempool full")
	// ErrCallerBusy is returned by Add when the caller already has its
	// share of pending calls.
	ErrCallerBusy = errors.New("too many pending calls from caller")
)

// MempoolOption configures a Mempool.
type MempoolOption func(*Mempool)

// WithAdmission runs check on every call that passes the envelope and
// timestamp checks. A non-nil result rejects the call as is.
func WithAdmission(check func(*Transaction) error) MempoolOption {
	return func(m *Mempool) { m.admit = check }
}

// WithLimits caps the number of pending calls overall and per caller.
// Values <= 0 keep the defaults.
func WithLimits(pool, perCaller int) MempoolOption {
	return func(m *Mempool) {
		if pool > 0 {
			m.poolLimit = pool
		}
		if perCaller > 0 {
			m.callerLimit = perCaller
		}
	}
}

// WithClock replaces time.Now when checking call timestamps.
func WithClock(now func() time.Time) MempoolOption {
	return func(m *Mempool) { m.now = now }
}

// Mempool queues admitted calls in arrival order until the sequencer takes
// them. It is safe for concurrent use.
type Mempool struct {
	admit       func(*Transaction) error
	now         func() time.Time
	poolLimit   int
	callerLimit int

	mu       sync.RWMutex
	queue    []*Transaction
	byID     map[string]*Transaction
	byCaller map[Account]int
}

// NewMempool creates an empty mempool.
func NewMempool(opts ...MempoolOption) *Mempool {
	m := &Mempool{
		now:         time.Now,
		poolLimit:   defaultPoolLimit,
		callerLimit: defaultCallerLimit,
		byID:        make(map[string]*Transaction),
		byCaller:    make(map[Account]int),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Add queues tx. Malformed calls, calls stamped more than an hour ago or
// more than five minutes ahead, and calls the admission check refuses are
// rejected with ErrInvalidCall.
func (m *Mempool) Add(tx *Transaction) error {
	if err := m.check(tx); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.byID[tx.ID] != nil:
		return ErrDuplicateTx
	case len(m.queue) >= m.poolLimit:
		return ErrMempoolFull
	case m.byCaller[tx.From] >= m.callerLimit:
		return fmt.Errorf("%w %q", ErrCallerBusy, tx.From)
	}
	m.queue = append(m.queue, tx)
	m.byID[tx.ID] = tx
	m.byCaller[tx.From]++
	return nil
}

func (m *Mempool) check(tx *Transaction) error {
	if err := tx.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidCall, err)
	}
	age := m.now().Sub(time.Unix(0, tx.Timestamp))
	if age > maxCallAge {
		return fmt.Errorf("%w: call is older than %s", ErrInvalidCall, maxCallAge)
	}
	if age < -maxCallSkew {
		return fmt.Errorf("%w: call is stamped more than %s ahead", ErrInvalidCall, maxCallSkew)
	}
	if m.admit != nil {
		if err := m.admit(tx); err != nil {
			if !errors.Is(err, ErrInvalidCall) {
				err = fmt.Errorf("%w: %v", ErrInvalidCall, err)
			}
			return err
		}
	}
	return nil
}

// Get returns a pending call by ID.
func (m *Mempool) Get(id string) (*Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.byID[id]
	return tx, ok
}

// Pending returns the oldest n pending calls.
func (m *Mempool) Pending(n int) []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if n > len(m.queue) {
		n = len(m.queue)
	}
	out := make([]*Transaction, n)
	copy(out, m.queue)
	return out
}

// PendingFrom returns the pending calls submitted by caller, oldest first.
func (m *Mempool) PendingFrom(caller Account) []*Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Transaction, 0, m.byCaller[caller])
	for _, tx := range m.queue {
		if tx.From == caller {
			out = append(out, tx)
		}
	}
	return out
}

// Remove drops sequenced calls. Unknown ids are ignored.
func (m *Mempool) Remove(ids []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		tx, ok := m.byID[id]
		if !ok {
			continue
		}
		delete(m.byID, id)
		if m.byCaller[tx.From]--; m.byCaller[tx.From] == 0 {
			delete(m.byCaller, tx.From)
		}
	}
	kept := m.queue[:0]
	for _, tx := range m.queue {
		if m.byID[tx.ID] == tx {
			kept = append(kept, tx)
		}
	}
	clear(m.queue[len(kept):])
	m.queue = kept
}

// Size returns the number of pending calls.
func (m *Mempool) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.queue)
}
