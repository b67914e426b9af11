package vm

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/tolelom/tolledger/core"
)

// Handler applies one call. It runs inside the executor's per-call snapshot,
// so it may write freely and return on the first failure.
type Handler func(ctx *Context, payload json.RawMessage) error

// callSpec is what a call type resolves to: the schema its payload must
// satisfy and the handler that applies it.
type callSpec struct {
	schema *gojsonschema.Schema
	handle Handler
}

// Registry maps call types to their payload schema and handler. A call type
// is only accepted once a handler is bound to it.
type Registry struct {
	mu    sync.RWMutex
	calls map[core.TxType]callSpec
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{calls: make(map[core.TxType]callSpec)}
}

// Register binds h to typ. It panics if typ is already bound or has no
// embedded payload schema.
func (r *Registry) Register(typ core.TxType, h Handler) {
	s, ok := payloadSchemas[typ]
	if !ok {
		panic(fmt.Sprintf("vm: no payload schema for call type %q", typ))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.calls[typ]; exists {
		panic(fmt.Sprintf("vm: handler already registered for call type %q", typ))
	}
	r.calls[typ] = callSpec{schema: s, handle: h}
}

func (r *Registry) lookup(typ core.TxType) (callSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.calls[typ]
	if !ok {
		return callSpec{}, fmt.Errorf("%w: unknown call type %q", core.ErrInvalidCall, typ)
	}
	return spec, nil
}

// Has reports whether typ is bound.
func (r *Registry) Has(typ core.TxType) bool {
	_, err := r.lookup(typ)
	return err == nil
}

// Types returns the bound call types in sorted order.
func (r *Registry) Types() []core.TxType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.TxType, 0, len(r.calls))
	for typ := range r.calls {
		out = append(out, typ)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Validate checks payload against the schema of typ.
func (r *Registry) Validate(typ core.TxType, payload []byte) error {
	spec, err := r.lookup(typ)
	if err != nil {
		return err
	}
	return checkPayload(spec.schema, typ, payload)
}

// Dispatch validates the payload of ctx.Tx and hands it to its handler.
func (r *Registry) Dispatch(ctx *Context) error {
	spec, err := r.lookup(ctx.Tx.Type)
	if err != nil {
		return err
	}
	if err := checkPayload(spec.schema, ctx.Tx.Type, ctx.Tx.Payload); err != nil {
		return err
	}
	return spec.handle(ctx, ctx.Tx.Payload)
}

// calls is the registry the executor dispatches through. Call modules bind
// into it from their init functions.
var calls = NewRegistry()

// Register binds h to typ in the executor's registry.
func Register(typ core.TxType, h Handler) {
	calls.Register(typ, h)
}

// Registered reports whether the executor accepts typ.
func Registered(typ core.TxType) bool {
	return calls.Has(typ)
}

// CallTypes lists the call types the executor accepts.
func CallTypes() []core.TxType {
	return calls.Types()
}

// ValidatePayload checks payload against the schema of typ. Unbound call
// types are rejected. Failures wrap core.ErrInvalidCall.
func ValidatePayload(typ core.TxType, payload []byte) error {
	return calls.Validate(typ, payload)
}

// Admit is a mempool admission check: it accepts tx only if its call type
// is bound and its payload matches the schema.
func Admit(tx *core.Transaction) error {
	return ValidatePayload(tx.Type, tx.Payload)
}
