package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// FirehoseChannel carries every order event; per-debtor channels are
	// DebtorChannel(addr).
	FirehoseChannel = "orders"

	wsPongWait   = 60 * time.Second
	wsPingEvery  = 54 * time.Second
	wsWriteWait  = 10 * time.Second
	wsSendBuffer = 64
)

// DebtorChannel names the channel carrying a single debtor's order events.
func DebtorChannel(debtorHex string) string {
	return "orders:" + debtorHex
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are screened by the CORS layer on the REST side; the
	// socket itself accepts any.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub fans order events out to subscribed WebSocket clients. Events are
// published once and delivered to the firehose channel and the debtor's
// own channel; slow clients are skipped, never waited on.
type Hub struct {
	mu      sync.RWMutex
	clients map[*wsClient]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*wsClient]struct{})}
}

func (h *Hub) attach(c *wsClient) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	log.Printf("[ws] client connected: %s (total: %d)", c.id, total)
}

func (h *Hub) detach(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
		close(c.send)
	}
	total := len(h.clients)
	h.mu.Unlock()
	if ok {
		log.Printf("[ws] client disconnected: %s (total: %d)", c.id, total)
	}
}

// Publish delivers an order update to every client subscribed to either
// the firehose or the debtor's channel.
func (h *Hub) Publish(update OrderUpdate) {
	message, err := json.Marshal(update)
	if err != nil {
		log.Printf("[ws] marshal error: %v", err)
		return
	}
	channels := []string{FirehoseChannel, DebtorChannel(update.Debtor)}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.subscribedToAny(channels) {
			continue
		}
		select {
		case c.send <- message:
		default:
			// Buffer full; drop rather than stall the publisher.
		}
	}
}

// wsClient is one upgraded connection plus its channel subscriptions.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	mu   sync.RWMutex
	subs map[string]struct{}
}

func (c *wsClient) subscribedToAny(channels []string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ch := range channels {
		if _, ok := c.subs[ch]; ok {
			return true
		}
	}
	return false
}

func (c *wsClient) apply(req WSSubscribeRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch req.Op {
	case "subscribe":
		for _, ch := range req.Channels {
			c.subs[ch] = struct{}{}
		}
	case "unsubscribe":
		for _, ch := range req.Channels {
			delete(c.subs, ch)
		}
	default:
		log.Printf("[ws] client %s: unknown op %q", c.id, req.Op)
		return
	}
	log.Printf("[ws] client %s: %s %v", c.id, req.Op, req.Channels)
}

// readPump consumes subscribe/unsubscribe requests until the peer goes
// away, then detaches the client.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[ws] read error: %v", err)
			}
			return
		}
		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			log.Printf("[ws] invalid message from %s: %v", c.id, err)
			continue
		}
		c.apply(req)
	}
}

// writePump drains the send buffer to the peer and keeps the connection
// alive with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingEvery)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleWebSocket upgrades the connection and starts the client's pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	client := &wsClient{
		hub:  s.hub,
		conn: conn,
		send: make(chan []byte, wsSendBuffer),
		id:   conn.RemoteAddr().String(),
		subs: make(map[string]struct{}),
	}
	s.hub.attach(client)

	go client.writePump()
	go client.readPump()
}
