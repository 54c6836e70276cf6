package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"sma-vol-breakdown/internal/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:       func(r *http.Request) bool { return true },
	EnableCompression: true,
}

// envelope is the frame sent to WebSocket clients.
type envelope struct {
	Seq    int64          `json:"seq"`
	Replay bool           `json:"replay,omitempty"`
	Event  model.RunEvent `json:"event"`
}

// Hub streams pipeline run events to WebSocket clients. Recent events are
// kept in a replay buffer so a client that connects mid-run, or reconnects
// with ?since=<seq>, catches up before receiving live frames.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	seq     int64
	replay  *replayBuffer

	// OnClientCount is called with the new count whenever a client joins or leaves.
	OnClientCount func(n int)
}

// NewHub creates a hub that retains the last replayCap events.
func NewHub(replayCap int) *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
		replay:  newReplayBuffer(replayCap),
	}
}

// Run broadcasts events until ctx is cancelled or events is closed.
func (h *Hub) Run(ctx context.Context, events <-chan model.RunEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			h.Broadcast(ev)
		}
	}
}

// Broadcast assigns the next sequence number to ev, records it for replay and
// sends it to every client. Slow clients drop the frame.
func (h *Hub) Broadcast(ev model.RunEvent) {
	h.mu.Lock()
	h.seq++
	seq := h.seq
	env := envelope{Seq: seq, Event: ev}
	data, err := json.Marshal(env)
	if err != nil {
		h.mu.Unlock()
		log.Printf("[gateway] marshal %s event: %v", ev.Type, err)
		return
	}
	h.replay.push(env)

	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			log.Printf("[gateway] client send buffer full, dropping seq %d", seq)
		}
	}
	h.mu.Unlock()
}

// ServeHTTP upgrades the request to a WebSocket and registers the client.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var since int64
	if s := r.URL.Query().Get("since"); s != "" {
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil || n < 0 {
			http.Error(w, "invalid since", http.StatusBadRequest)
			return
		}
		since = n
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] ws upgrade error: %v", err)
		return
	}
	h.register(conn, since)
}

func (h *Hub) register(conn *websocket.Conn, since int64) {
	client := &Client{
		conn: conn,
		send: make(chan []byte, h.replay.capacity()+sendBuffer),
		hub:  h,
	}

	// Replay and registration happen under one lock so no event is missed
	// or delivered twice.
	h.mu.Lock()
	if since > 0 && h.replay.len() > 0 && since+1 < h.replay.oldest() {
		log.Printf("[gateway] client asked for seq %d, oldest retained is %d", since+1, h.replay.oldest())
	}
	for _, env := range h.replay.since(since) {
		b, err := json.Marshal(env)
		if err != nil {
			continue
		}
		client.send <- b
	}
	h.clients[client] = true
	count := len(h.clients)
	h.mu.Unlock()

	log.Printf("[gateway] ws client connected (%d total)", count)
	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}

	go client.writePump()
	go client.readPump()
}

// RemoveClient unregisters a client and closes its send channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if !h.clients[c] {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	count := len(h.clients)
	h.mu.Unlock()

	if h.OnClientCount != nil {
		h.OnClientCount(count)
	}
}

// ClientCount returns the number of connected WS clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Seq returns the sequence number of the last broadcast event.
func (h *Hub) Seq() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.seq
}

const (
	sendBuffer = 64

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)
