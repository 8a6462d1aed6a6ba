// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
)

const (
	// clientQueueSize is the number of chunks buffered per client
	clientQueueSize = 256

	// broadcastQueueSize is the number of chunks waiting for fan-out
	broadcastQueueSize = 256
)

// Hub fans UART chunks out to every connected client. Only Run touches the
// client set; everything else talks to it over channels.
type Hub struct {
	log logging.LeveledLogger

	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	// Client count for readers outside Run
	mu    sync.RWMutex
	count int

	dropped atomic.Uint64
	nextID  atomic.Uint64
}

// NewHub creates a hub. Run must be started before clients register.
func NewHub(log logging.LeveledLogger) *Hub {
	return &Hub{
		log:        log,
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastQueueSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run is the hub main loop. When ctx ends every client send queue is closed.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for client := range h.clients {
				close(client.send)
				delete(h.clients, client)
			}
			h.setCount(0)
			return

		case client := <-h.register:
			h.clients[client] = struct{}{}
			h.setCount(len(h.clients))
			h.log.Infof("client #%d connected (%d total)", client.id, len(h.clients))

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.setCount(len(h.clients))
			h.log.Infof("client #%d disconnected (%d remaining)", client.id, len(h.clients))

		case chunk := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- chunk:
				default:
					// A slow client loses this chunk; the UART is never held up
					h.dropped.Add(1)
					h.log.Debugf("client #%d queue full, dropping %d bytes", client.id, len(chunk))
				}
			}
		}
	}
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

// Broadcast queues a chunk for every client. It never blocks; when the
// broadcast queue is full the chunk is dropped.
func (h *Hub) Broadcast(chunk []byte) {
	data := make([]byte, len(chunk))
	copy(data, chunk)

	select {
	case h.broadcast <- data:
	default:
		h.dropped.Add(1)
		h.log.Warnf("broadcast queue full, dropping %d bytes", len(chunk))
	}
}

// Register adds a client. It reports false once the hub has stopped.
func (h *Hub) Register(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client and closes its send queue
func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// Dropped returns the number of chunks dropped for slow clients
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// NewClient creates a client with an empty send queue
func (h *Hub) NewClient() *Client {
	return &Client{
		id:   h.nextID.Add(1),
		send: make(chan []byte, clientQueueSize),
	}
}
