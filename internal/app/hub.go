// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for local development
	},
}

const (
	wsWriteWait = 2 * time.Second
	wsSendQueue = 16
)

type wsClient struct {
	id   string
	conn *websocket.Conn
	send chan []byte
}

// Hub fans camera pushes out to browser clients and hands their touch,
// sensor and fov messages to a handler.
type Hub struct {
	handle func(clientID string, msg wsInbound)

	mu      sync.Mutex
	clients map[string]*wsClient
}

// NewHub creates a hub. handle runs on the client's read goroutine.
func NewHub(handle func(clientID string, msg wsInbound)) *Hub {
	return &Hub{handle: handle, clients: make(map[string]*wsClient)}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues msg for every client. Slow clients drop messages rather
// than stall the engine.
func (h *Hub) Broadcast(msg wsOutbound) {
	payload, err := json.Marshal(msg)
	if err != nil {
		log.Printf("ws: marshal error: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, c := range h.clients {
		select {
		case c.send <- payload:
		default:
		}
	}
}

// ServeHTTP upgrades the connection and serves one client until it leaves.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws: websocket upgrade error: %v", err)
		return
	}

	c := &wsClient{id: uuid.NewString(), conn: conn, send: make(chan []byte, wsSendQueue)}
	hello, _ := json.Marshal(wsOutbound{Type: "hello", ID: c.id})
	c.send <- hello

	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	log.Printf("ws: client %s connected from %s", c.id, r.RemoteAddr)

	done := make(chan struct{})
	go h.writeLoop(c, done)
	h.readLoop(c)

	h.mu.Lock()
	delete(h.clients, c.id)
	h.mu.Unlock()
	close(done)
	conn.Close()
	log.Printf("ws: client %s disconnected", c.id)
}

func (h *Hub) readLoop(c *wsClient) {
	for {
		var msg wsInbound
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read error from %s: %v", c.id, err)
			}
			return
		}
		if h.handle != nil {
			h.handle(c.id, msg)
		}
	}
}

func (h *Hub) writeLoop(c *wsClient, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case payload := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				log.Printf("ws: write error to %s: %v", c.id, err)
				return
			}
		}
	}
}
