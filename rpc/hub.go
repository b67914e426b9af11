package rpc

import (
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tolelom/tolledger/core"
	"github.com/tolelom/tolledger/events"
)

const (
	wsSendBuffer = 256
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// StreamFilter narrows a websocket subscription. Empty fields match all.
// Only ledger notifications and block commits are streamed.
type StreamFilter struct {
	Ledger  core.LedgerKind
	AssetID *core.AssetID
	Type    events.EventType
}

func (f StreamFilter) match(ev events.Event) bool {
	if f.Type != "" && ev.Type != f.Type {
		return false
	}
	if f.Ledger != "" && ev.Ledger != f.Ledger {
		return false
	}
	if f.AssetID != nil && (ev.AssetID == nil || *ev.AssetID != *f.AssetID) {
		return false
	}
	return true
}

// Hub fans emitter events out to websocket subscribers. A subscriber that
// falls wsSendBuffer events behind is disconnected rather than blocking
// block production.
type Hub struct {
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn   *websocket.Conn
	filter StreamFilter
	send   chan events.Event
	once   sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() { close(c.send) })
}

// NewHub creates a Hub fed by emitter.
func NewHub(emitter *events.Emitter) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		clients:  make(map[*wsClient]struct{}),
	}
	for _, typ := range events.LedgerTypes {
		emitter.Subscribe(typ, h.broadcast)
	}
	emitter.Subscribe(events.EventBlockCommit, h.broadcast)
	return h
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) broadcast(ev events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.filter.match(ev) {
			continue
		}
		select {
		case c.send <- ev:
		default:
			log.Printf("[rpc] dropping slow websocket subscriber %s", c.conn.RemoteAddr())
			delete(h.clients, c)
			c.close()
		}
	}
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		c.close()
	}
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		c.close()
	}
}

// ServeWS upgrades the request and streams matching events as JSON. Query
// parameters ledger, asset_id and type set the filter.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	filter, err := parseStreamFilter(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	c := &wsClient{conn: conn, filter: filter, send: make(chan events.Event, wsSendBuffer)}
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		_ = conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	go h.writePump(c)
	go h.readPump(c)
}

// readPump discards client messages and notices disconnects.
func (h *Hub) readPump(c *wsClient) {
	defer h.remove(c)
	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *wsClient) {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case ev, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				h.remove(c)
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				h.remove(c)
				return
			}
		}
	}
}

func parseStreamFilter(r *http.Request) (StreamFilter, error) {
	q := r.URL.Query()
	f := StreamFilter{
		Ledger: core.LedgerKind(q.Get("ledger")),
		Type:   events.EventType(q.Get("type")),
	}
	if s := q.Get("asset_id"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return f, err
		}
		id := core.AssetID(n)
		f.AssetID = &id
	}
	return f, nil
}
