package rpc

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
)

// Client talks JSON-RPC to a ledger node.
type Client struct {
	endpoint  string
	authToken string
	http      *http.Client
	dialer    *websocket.Dialer
	nextID    atomic.Int64
}

// NewClient creates a client for the node at endpoint, e.g.
// "http://127.0.0.1:8545". authToken may be empty.
func NewClient(endpoint, authToken string) *Client {
	return &Client{
		endpoint:  strings.TrimRight(endpoint, "/"),
		authToken: authToken,
		http:      &http.Client{Timeout: 30 * time.Second},
		dialer:    websocket.DefaultDialer,
	}
}

// SetTLS uses cfg for both RPC calls and the notification stream.
func (c *Client) SetTLS(cfg *tls.Config) {
	c.http.Transport = &http.Transport{TLSClientConfig: cfg}
	d := *websocket.DefaultDialer
	d.TLSClientConfig = cfg
	c.dialer = &d
}

// Call invokes method with params and decodes the result into out (which may
// be nil). RPC-level failures are returned as *Error.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: c.nextID.Add(1), Method: method, Params: raw})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("rpc %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope struct {
		Result json.RawMessage `json:"result"`
		Error  *Error          `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("rpc %s: decode response (HTTP %d): %w", method, resp.StatusCode, err)
	}
	if envelope.Error != nil {
		return envelope.Error
	}
	if out == nil || len(envelope.Result) == 0 {
		return nil
	}
	return json.Unmarshal(envelope.Result, out)
}

// SendTx submits a call and returns its id.
func (c *Client) SendTx(ctx context.Context, typ core.TxType, from core.Account, payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	var res struct {
		TxID string `json:"tx_id"`
	}
	err = c.Call(ctx, "sendTx", SendTxParams{Type: string(typ), From: string(from), Payload: raw}, &res)
	return res.TxID, err
}

// Receipt fetches the receipt of a sequenced call.
func (c *Client) Receipt(ctx context.Context, txID string) (*core.Receipt, error) {
	var r core.Receipt
	if err := c.Call(ctx, "getReceipt", map[string]string{"tx_id": txID}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// WaitReceipt polls until the call is sequenced or ctx expires.
func (c *Client) WaitReceipt(ctx context.Context, txID string, poll time.Duration) (*core.Receipt, error) {
	if poll <= 0 {
		poll = 200 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		r, err := c.Receipt(ctx, txID)
		if err == nil {
			return r, nil
		}
		var rpcErr *Error
		if !errors.As(err, &rpcErr) || rpcErr.Code != CodeNotFound {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Subscribe streams notifications matching filter to fn until ctx is
// cancelled or the connection drops.
func (c *Client) Subscribe(ctx context.Context, filter StreamFilter, fn func(events.Event)) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = "/ws"
	q := url.Values{}
	if filter.Ledger != "" {
		q.Set("ledger", string(filter.Ledger))
	}
	if filter.Type != "" {
		q.Set("type", string(filter.Type))
	}
	if filter.AssetID != nil {
		q.Set("asset_id", strconv.FormatUint(uint64(*filter.AssetID), 10))
	}
	u.RawQuery = q.Encode()

	header := http.Header{}
	if c.authToken != "" {
		header.Set("Authorization", "Bearer "+c.authToken)
	}
	conn, _, err := c.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", u, err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	for {
		var ev events.Event
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		fn(ev)
	}
}
