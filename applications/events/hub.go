// Package events fans the kernel's structural object-pool events out to
// websocket clients, purely as additive observability: it is not part of
// the core's tested contract (spec.md §6 explicitly scopes the event bus
// itself as core, the wire transport is not).
package events

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/opentcs-go/kernel/internal/eventbus"
	"github.com/opentcs-go/kernel/internal/kernellog"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wireEvent is the JSON shape delivered to each connected client.
type wireEvent struct {
	Kind     string      `json:"kind"`
	Type     string      `json:"type"`
	Current  interface{} `json:"current,omitempty"`
	Previous interface{} `json:"previous,omitempty"`
}

// Hub fans every event published on a Bus out to its connected websocket
// clients. Publish runs on the goroutine that made the object-pool mutation,
// so Hub never blocks it: each client gets a bounded outbound queue and a
// slow client is disconnected rather than stalling the publisher.
type Hub struct {
	log *kernellog.Logger

	mu      sync.Mutex
	clients map[*client]struct{}
}

type client struct {
	conn *websocket.Conn
	out  chan wireEvent
}

// NewHub returns a Hub subscribed to bus.
func NewHub(bus *eventbus.Bus, log *kernellog.Logger) *Hub {
	h := &Hub{log: log, clients: make(map[*client]struct{})}
	bus.Subscribe(h.onEvent)
	return h
}

func (h *Hub) onEvent(ev eventbus.Event) {
	we := wireEvent{Kind: string(ev.Kind), Type: ev.Type, Current: ev.Current, Previous: ev.Previous}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.out <- we:
		default:
			h.log.Warn("events: client queue full, dropping connection")
			delete(h.clients, c)
			close(c.out)
		}
	}
}

// ServeHTTP upgrades the request to a websocket and streams every
// subsequent event to it until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("events: upgrade failed")
		return
	}

	c := &client{conn: conn, out: make(chan wireEvent, 64)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, c)
		h.mu.Unlock()
		conn.Close()
	}()

	for we := range c.out {
		data, err := json.Marshal(we)
		if err != nil {
			continue
		}
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}
