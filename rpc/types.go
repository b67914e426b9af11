// Package rpc exposes the ledger via a JSON-RPC 2.0 HTTP endpoint and streams
// ledger notifications over a websocket.
package rpc

import "encoding/json"

// Request is a JSON-RPC 2.0 request envelope.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      any             `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// Response is a JSON-RPC 2.0 response envelope.
type Response struct {
	JSONRPC string `json:"jsonrpc"`
	ID      any    `json:"id"`
	Result  any    `json:"result,omitempty"`
	Error   *Error `json:"error,omitempty"`
}

// Error represents a JSON-RPC error object. Ledger failures carry their
// stable code (e.g. "NoPermission") in Data.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data,omitempty"`
}

func (e *Error) Error() string {
	if e.Data != "" {
		return e.Data + ": " + e.Message
	}
	return e.Message
}

// Standard JSON-RPC error codes.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeUnauthorized   = -32000
	CodeLedgerError    = -32001
	CodeNotFound       = -32004
	CodeUnavailable    = -32005
)

func errResponse(id any, code int, msg string) Response {
	return Response{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &Error{Code: code, Message: msg},
	}
}

func okResponse(id, result any) Response {
	return Response{JSONRPC: "2.0", ID: id, Result: result}
}

// ---- result shapes ----

// BalanceResult answers *.getBalance.
type BalanceResult struct {
	Ledger  string `json:"ledger"`
	AssetID uint64 `json:"asset_id"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// Holding is one account's balance of an asset.
type Holding struct {
	Account string `json:"account"`
	Balance string `json:"balance"`
}

// AccountAsset is one entry of getAccountAssets.
type AccountAsset struct {
	Ledger  string `json:"ledger"`
	AssetID uint64 `json:"asset_id"`
	Balance string `json:"balance"`
}

// SendTxParams is the sendTx request. ID and Timestamp are filled in by the
// node when absent.
type SendTxParams struct {
	ID        string          `json:"id,omitempty"`
	Type      string          `json:"type"`
	From      string          `json:"from"`
	Timestamp int64           `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}
