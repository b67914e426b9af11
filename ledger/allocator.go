package ledger

import (
	"fmt"
	"math"

	"github.com/tolelom/tolledger/core"
)

// maxAssetID is the allocator ceiling. The nonce saturates here and the
// ceiling value itself is never issued, so no id is handed out twice.
const maxAssetID = core.AssetID(math.MaxUint64)

// IDAllocator hands out fresh asset ids for one ledger from its stored nonce.
type IDAllocator struct {
	state core.State
	kind  core.LedgerKind
}

// NewIDAllocator returns the allocator for kind.
func NewIDAllocator(state core.State, kind core.LedgerKind) *IDAllocator {
	return &IDAllocator{state: state, kind: kind}
}

// Current returns the id the next NextID call will issue.
func (a *IDAllocator) Current() (core.AssetID, error) {
	return a.state.GetNonce(a.kind)
}

// NextID returns the current nonce and advances it by one.
func (a *IDAllocator) NextID() (core.AssetID, error) {
	id, err := a.state.GetNonce(a.kind)
	if err != nil {
		return 0, fmt.Errorf("read %s nonce: %w", a.kind, err)
	}
	if id == maxAssetID {
		return 0, core.ErrIDsExhausted
	}
	if err := a.state.SetNonce(a.kind, saturatingIncr(id)); err != nil {
		return 0, fmt.Errorf("write %s nonce: %w", a.kind, err)
	}
	return id, nil
}

func saturatingIncr(id core.AssetID) core.AssetID {
	if id == maxAssetID {
		return id
	}
	return id + 1
}
