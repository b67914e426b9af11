package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/indexer"
	"github.com/tolelom/tolledger/journal"
	"github.com/tolelom/tolledger/ledger"
	"github.com/tolelom/tolledger/sequencer"
)

// Handler holds all dependencies needed to serve RPC methods. Every state
// read goes through the sequencer's View so results reflect whole blocks.
type Handler struct {
	bc      *core.Blockchain
	mempool *core.Mempool
	seq     *sequencer.Sequencer
	indexer *indexer.Indexer
	journal *journal.Store // nil → getEvents unavailable
}

// NewHandler creates an RPC Handler. j may be nil.
func NewHandler(bc *core.Blockchain, mempool *core.Mempool, seq *sequencer.Sequencer, idx *indexer.Indexer, j *journal.Store) *Handler {
	return &Handler{bc: bc, mempool: mempool, seq: seq, indexer: idx, journal: j}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "getBlockHeight":
		return okResponse(req.ID, h.bc.Height())

	case "getBlock":
		return h.getBlock(req)

	case "getReceipt":
		return h.getReceipt(req)

	case "sendTx":
		return h.sendTx(req)

	case "getMempoolSize":
		return okResponse(req.ID, h.mempool.Size())

	case "getPendingCalls":
		return h.getPendingCalls(req)

	case "getStateRoot":
		return h.getStateRoot(req)

	case "assets.getAsset":
		return h.getAsset(req)
	case "assets.getMetadata":
		return h.getMetadata(req)
	case "assets.getBalance":
		return h.getBalance(req, core.LedgerAssets)
	case "assets.nextId":
		return h.nextID(req, core.LedgerAssets)
	case "assets.getHolders":
		return h.getHolders(req, core.LedgerAssets)

	case "uniques.getAsset":
		return h.getUniqueAsset(req)
	case "uniques.getBalance":
		return h.getBalance(req, core.LedgerUniques)
	case "uniques.nextId":
		return h.nextID(req, core.LedgerUniques)
	case "uniques.getHolders":
		return h.getHolders(req, core.LedgerUniques)

	case "getAccountAssets":
		return h.getAccountAssets(req)

	case "getEvents":
		return h.getEvents(req)

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// failure maps err onto a JSON-RPC error: ledger failures become
// CodeLedgerError with their stable code in Data.
func failure(id any, err error) Response {
	resp := errResponse(id, CodeInternalError, err.Error())
	switch code := core.ErrorCode(err); {
	case errors.Is(err, core.ErrNotFound):
		resp.Error.Code = CodeNotFound
	case code == core.CodeInvalid:
		resp.Error.Code = CodeInvalidParams
		resp.Error.Data = code
	case code != core.CodeInternal:
		resp.Error.Code = CodeLedgerError
		resp.Error.Data = code
	}
	return resp
}

func parseParams(req Request, v any) *Response {
	if len(req.Params) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params, v); err != nil {
		resp := errResponse(req.ID, CodeInvalidParams, "params: "+err.Error())
		return &resp
	}
	return nil
}

type assetParams struct {
	AssetID *core.AssetID `json:"asset_id"`
	Account core.Account  `json:"account"`
}

func (h *Handler) assetParams(req Request, needAccount bool) (assetParams, *Response) {
	var p assetParams
	if resp := parseParams(req, &p); resp != nil {
		return p, resp
	}
	if p.AssetID == nil {
		resp := errResponse(req.ID, CodeInvalidParams, "asset_id is required")
		return p, &resp
	}
	if needAccount && p.Account == "" {
		resp := errResponse(req.ID, CodeInvalidParams, "account is required")
		return p, &resp
	}
	return p, nil
}

func (h *Handler) getBlock(req Request) Response {
	var params struct {
		Hash   string `json:"hash"`
		Height *int64 `json:"height"`
	}
	if resp := parseParams(req, &params); resp != nil {
		return *resp
	}

	var block *core.Block
	var err error
	if params.Hash != "" {
		block, err = h.bc.GetBlock(params.Hash)
	} else if params.Height != nil {
		block, err = h.bc.GetBlockByHeight(*params.Height)
	} else {
		block = h.bc.Tip()
	}
	if err != nil {
		return failure(req.ID, err)
	}
	if block == nil {
		return errResponse(req.ID, CodeNotFound, "no block found")
	}
	return okResponse(req.ID, block)
}

func (h *Handler) getReceipt(req Request) Response {
	var params struct {
		TxID string `json:"tx_id"`
	}
	if resp := parseParams(req, &params); resp != nil {
		return *resp
	}
	if params.TxID == "" {
		return errResponse(req.ID, CodeInvalidParams, "tx_id is required")
	}
	r, err := h.bc.GetReceipt(params.TxID)
	if err != nil {
		if _, pending := h.mempool.Get(params.TxID); pending && errors.Is(err, core.ErrNotFound) {
			return errResponse(req.ID, CodeNotFound, "call is pending")
		}
		return failure(req.ID, err)
	}
	return okResponse(req.ID, r)
}

func (h *Handler) sendTx(req Request) Response {
	var p SendTxParams
	if resp := parseParams(req, &p); resp != nil {
		return *resp
	}
	tx := &core.Transaction{
		ID:        p.ID,
		Type:      core.TxType(p.Type),
		From:      core.Account(p.From),
		Timestamp: p.Timestamp,
		Payload:   p.Payload,
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.Timestamp == 0 {
		tx.Timestamp = time.Now().UnixNano()
	}
	if err := h.mempool.Add(tx); err != nil {
		switch {
		case errors.Is(err, core.ErrInvalidCall):
			return failure(req.ID, err)
		case errors.Is(err, core.ErrMempoolFull), errors.Is(err, core.ErrCallerBusy):
			return errResponse(req.ID, CodeUnavailable, err.Error())
		}
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"tx_id": tx.ID})
}

func (h *Handler) getPendingCalls(req Request) Response {
	var params struct {
		From core.Account `json:"from"`
	}
	if resp := parseParams(req, &params); resp != nil {
		return *resp
	}
	if params.From == "" {
		return errResponse(req.ID, CodeInvalidParams, "from is required")
	}
	return okResponse(req.ID, h.mempool.PendingFrom(params.From))
}

func (h *Handler) getStateRoot(req Request) Response {
	var root string
	err := h.seq.View(func(st core.State) (err error) {
		root, err = st.ComputeRoot()
		return err
	})
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"height": h.bc.Height(), "state_root": root})
}

func (h *Handler) getAsset(req Request) Response {
	p, resp := h.assetParams(req, false)
	if resp != nil {
		return *resp
	}
	var d *core.AssetDetails
	err := h.seq.View(func(st core.State) (err error) {
		d, err = ledger.NewAssets(st, nil).Asset(*p.AssetID)
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, d)
}

func (h *Handler) getMetadata(req Request) Response {
	p, resp := h.assetParams(req, false)
	if resp != nil {
		return *resp
	}
	var m *core.AssetMetadata
	err := h.seq.View(func(st core.State) (err error) {
		m, err = ledger.NewAssets(st, nil).Metadata(*p.AssetID)
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, m)
}

func (h *Handler) getUniqueAsset(req Request) Response {
	p, resp := h.assetParams(req, false)
	if resp != nil {
		return *resp
	}
	var d *core.UniqueAssetDetails
	err := h.seq.View(func(st core.State) (err error) {
		d, err = ledger.NewUniques(st, nil).Asset(*p.AssetID)
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, d)
}

func (h *Handler) getBalance(req Request, kind core.LedgerKind) Response {
	p, resp := h.assetParams(req, true)
	if resp != nil {
		return *resp
	}
	var bal core.Amount
	err := h.seq.View(func(st core.State) (err error) {
		bal, err = ledger.NewBalanceStore(st, kind).Get(*p.AssetID, p.Account)
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, BalanceResult{
		Ledger: string(kind), AssetID: uint64(*p.AssetID), Account: string(p.Account), Balance: bal.String(),
	})
}

func (h *Handler) nextID(req Request, kind core.LedgerKind) Response {
	var next core.AssetID
	err := h.seq.View(func(st core.State) (err error) {
		next, err = ledger.NewIDAllocator(st, kind).Current()
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, map[string]uint64{"next_id": uint64(next)})
}

func (h *Handler) getHolders(req Request, kind core.LedgerKind) Response {
	p, resp := h.assetParams(req, false)
	if resp != nil {
		return *resp
	}
	var holders map[core.Account]core.Amount
	err := h.seq.View(func(st core.State) (err error) {
		switch kind {
		case core.LedgerAssets:
			holders, err = ledger.NewAssets(st, nil).Holders(*p.AssetID)
		default:
			holders, err = ledger.NewUniques(st, nil).Holders(*p.AssetID)
		}
		return err
	})
	if err != nil {
		return failure(req.ID, err)
	}
	out := make([]Holding, 0, len(holders))
	for a, bal := range holders {
		out = append(out, Holding{Account: string(a), Balance: bal.String()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return okResponse(req.ID, out)
}

func (h *Handler) getAccountAssets(req Request) Response {
	var params struct {
		Account core.Account `json:"account"`
	}
	if resp := parseParams(req, &params); resp != nil {
		return *resp
	}
	if params.Account == "" {
		return errResponse(req.ID, CodeInvalidParams, "account is required")
	}
	out := []AccountAsset{}
	err := h.seq.View(func(st core.State) error {
		refs, err := h.indexer.AccountAssets(params.Account)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			bal, err := st.GetBalance(ref.Ledger, ref.AssetID, params.Account)
			if err != nil {
				return err
			}
			out = append(out, AccountAsset{Ledger: string(ref.Ledger), AssetID: uint64(ref.AssetID), Balance: bal.String()})
		}
		return nil
	})
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, out)
}

func (h *Handler) getEvents(req Request) Response {
	if h.journal == nil {
		return errResponse(req.ID, CodeUnavailable, "event journal is disabled")
	}
	var f journal.Filter
	if resp := parseParams(req, &f); resp != nil {
		return *resp
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	records, err := h.journal.Query(ctx, f)
	if err != nil {
		return failure(req.ID, err)
	}
	return okResponse(req.ID, records)
}
