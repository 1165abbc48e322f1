// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/AleutianAI/reactivestore/store"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// wsCommand is one inbound frame: exactly one of its fields is set.
type wsCommand struct {
	Set     map[string]any `json:"set,omitempty"`
	Push    *arrayCommand  `json:"push,omitempty"`
	Pop     *pathCommand   `json:"pop,omitempty"`
	Shift   *pathCommand   `json:"shift,omitempty"`
	Unshift *arrayCommand  `json:"unshift,omitempty"`
	Splice  *spliceCommand `json:"splice,omitempty"`
}

type pathCommand struct {
	Path string `json:"path"`
}

type arrayCommand struct {
	Path  string `json:"path"`
	Items []any  `json:"items"`
}

type spliceCommand struct {
	Path        string `json:"path"`
	Start       int    `json:"start"`
	DeleteCount int    `json:"deleteCount"`
	Items       []any  `json:"items"`
}

// wsFrame is one outbound frame: a full property snapshot pushed after
// every settled flush this connection was cascaded into.
type wsFrame struct {
	Type  string         `json:"type"`
	State map[string]any `json:"state,omitempty"`
	Error string         `json:"error,omitempty"`
}

// hub owns the shared Store and every connected client's outbound queue.
//
// Every connection's read loop runs on its own per-connection goroutine,
// but none of them ever touches s directly: each queues its command on
// commands instead, and run drains that queue on a single goroutine,
// matching the one-goroutine-per-Store contract store.Store documents.
type hub struct {
	s      *store.Store
	logger *slog.Logger
	ctx    context.Context

	mu      sync.Mutex
	clients map[*wsConn]struct{}

	commands chan hubCommand
	joins    chan *wsConn
	leaves   chan *wsConn
}

// hubCommand pairs an inbound frame with the connection it arrived on, so
// run can route apply's reply (or error) back to the right client.
type hubCommand struct {
	conn *wsConn
	cmd  wsCommand
}

func newHub(ctx context.Context, s *store.Store, logger *slog.Logger) *hub {
	return &hub{
		s:        s,
		logger:   logger,
		ctx:      ctx,
		clients:  make(map[*wsConn]struct{}),
		commands: make(chan hubCommand, 64),
		joins:    make(chan *wsConn),
		leaves:   make(chan *wsConn),
	}
}

// run is the single goroutine permitted to call into h.s. It drains
// commands queued by every connection's read loop, applies each one, and
// settles any flush AsyncEffects deferred before moving to the next
// command. Client registration is funneled through the same goroutine —
// AddClient/RemoveClient mutate the same store.Store the flush cycle
// reads from cascadeClients, so they need the same serialization as any
// other mutation. run returns when ctx is canceled.
func (h *hub) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case conn := <-h.joins:
			h.s.AddClient(conn)
			conn.out <- wsFrame{Type: "state", State: snapshot(h.s)}
		case conn := <-h.leaves:
			h.s.RemoveClient(conn)
		case hc := <-h.commands:
			h.apply(hc.conn, hc.cmd)
			if err := h.s.DrainAsync(); err != nil {
				h.logger.Warn("storesrv: async flush failed", slog.Any("error", err))
			}
		}
	}
}

// wsConn is a hub-registered store.Client: one WebSocket connection with
// a buffered outbound channel drained by its own writer goroutine.
type wsConn struct {
	hub *hub
	ws  *websocket.Conn
	out chan wsFrame
}

func (c *wsConn) FlushProperties(fromAbove bool) {
	frame := wsFrame{Type: "state", State: snapshot(c.hub.s)}
	select {
	case c.out <- frame:
	default:
		c.hub.logger.Warn("storesrv: dropping frame, client outbound buffer full")
	}
}

func (h *hub) serveWS(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("storesrv: upgrade failed", slog.Any("error", err))
		return
	}
	defer ws.Close()

	conn := &wsConn{hub: h, ws: ws, out: make(chan wsFrame, 32)}
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
		select {
		case h.leaves <- conn:
		case <-h.ctx.Done():
		}
		close(conn.out)
	}()

	go conn.writeLoop()

	select {
	case h.joins <- conn:
	case <-h.ctx.Done():
		return
	}

	for {
		var cmd wsCommand
		if err := ws.ReadJSON(&cmd); err != nil {
			return
		}
		select {
		case h.commands <- hubCommand{conn: conn, cmd: cmd}:
		case <-h.ctx.Done():
			return
		}
	}
}

func (c *wsConn) writeLoop() {
	for frame := range c.out {
		if err := c.ws.WriteJSON(frame); err != nil {
			return
		}
	}
}

func (h *hub) apply(conn *wsConn, cmd wsCommand) {
	switch {
	case cmd.Set != nil:
		h.s.SetProperties(cmd.Set)
	case cmd.Push != nil:
		h.s.Push(cmd.Push.Path, cmd.Push.Items...)
	case cmd.Pop != nil:
		h.s.Pop(cmd.Pop.Path)
	case cmd.Shift != nil:
		h.s.Shift(cmd.Shift.Path)
	case cmd.Unshift != nil:
		h.s.Unshift(cmd.Unshift.Path, cmd.Unshift.Items...)
	case cmd.Splice != nil:
		h.s.Splice(cmd.Splice.Path, cmd.Splice.Start, cmd.Splice.DeleteCount, cmd.Splice.Items...)
	default:
		conn.out <- wsFrame{Type: "error", Error: "empty command"}
	}
}

func snapshot(s *store.Store) map[string]any {
	tree, ok := s.Tree().(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]any, len(tree))
	for k, v := range tree {
		out[k] = v
	}
	return out
}
