package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/citada/supplier-portal/utils"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Message is the frame written to websocket peers.
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Hub is the in-process realtime backend. Channels join it to receive row
// changes published by the change monitor and broadcasts sent by other
// channels of the same name. Websocket peers can listen to named channels too.
type Hub struct {
	mu        sync.Mutex
	channels  map[*hubChannel]struct{}
	peers     map[*websocket.Conn]*peer
	connected bool
	lastErr   error
	closed    bool
}

type Stats struct {
	Channels  int  `json:"channels"`
	Peers     int  `json:"peers"`
	Connected bool `json:"connected"`
}

func NewHub() *Hub {
	return &Hub{
		channels:  make(map[*hubChannel]struct{}),
		peers:     make(map[*websocket.Conn]*peer),
		connected: true,
	}
}

func (h *Hub) Channel(name string) Channel {
	return &hubChannel{
		hub:        h,
		name:       name,
		broadcasts: make(map[string][]func(BroadcastEvent)),
	}
}

func (h *Hub) RemoveChannel(c Channel) error {
	ch, ok := c.(*hubChannel)
	if !ok {
		return errors.New("channel does not belong to this hub")
	}
	h.mu.Lock()
	delete(h.channels, ch)
	h.mu.Unlock()

	ch.mu.Lock()
	ch.joined = false
	ch.status = nil
	ch.mu.Unlock()
	return nil
}

// Publish delivers a committed change to every joined channel whose filter
// matches it.
func (h *Hub) Publish(ev ChangeEvent) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	var handlers []func(ChangeEvent)
	for ch := range h.channels {
		handlers = append(handlers, ch.matching(ev)...)
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}
}

// MarkDisconnected drops every joined channel and reports the loss to its
// subscriber. Channels subscribing while disconnected get CHANNEL_ERROR.
func (h *Hub) MarkDisconnected(cause error) {
	h.mu.Lock()
	h.lastErr = cause
	if !h.connected || h.closed {
		h.mu.Unlock()
		return
	}
	h.connected = false
	dropped := h.drainLocked()
	h.mu.Unlock()

	utils.ErrorLogger.WithFields(logrus.Fields{
		"channels": len(dropped),
		"error":    cause,
	}).Error("realtime feed disconnected")
	notify(dropped, StatusClosed, cause)
}

func (h *Hub) MarkConnected() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.connected {
		utils.InfoLogger.Info("realtime feed connected")
	}
	h.connected = true
	h.lastErr = nil
}

func (h *Hub) Connected() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.connected && !h.closed
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		Channels:  len(h.channels),
		Peers:     len(h.peers),
		Connected: h.connected && !h.closed,
	}
}

// Close releases every channel and peer. Later subscriptions fail.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	dropped := h.drainLocked()
	peers := h.peers
	h.peers = make(map[*websocket.Conn]*peer)
	h.mu.Unlock()

	notify(dropped, StatusClosed, ErrHubClosed)
	for conn := range peers {
		conn.Close()
	}
}

func (h *Hub) drainLocked() []*hubChannel {
	dropped := make([]*hubChannel, 0, len(h.channels))
	for ch := range h.channels {
		dropped = append(dropped, ch)
	}
	h.channels = make(map[*hubChannel]struct{})
	return dropped
}

func notify(channels []*hubChannel, st Status, err error) {
	for _, ch := range channels {
		ch.mu.Lock()
		ch.joined = false
		fn := ch.status
		ch.mu.Unlock()
		if fn != nil {
			fn(st, err)
		}
	}
}

func (h *Hub) subscribe(ch *hubChannel, fn func(Status, error)) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	ch.mu.Lock()
	ch.status = fn
	ch.mu.Unlock()

	if !h.connected {
		cause := h.lastErr
		h.mu.Unlock()
		if fn != nil {
			fn(StatusChannelError, cause)
		}
		return nil
	}

	h.channels[ch] = struct{}{}
	ch.mu.Lock()
	ch.joined = true
	ch.mu.Unlock()
	h.mu.Unlock()

	if fn != nil {
		fn(StatusSubscribed, nil)
	}
	return nil
}

func (h *Hub) broadcast(ctx context.Context, from *hubChannel, ev BroadcastEvent) error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return ErrHubClosed
	}
	if _, ok := h.channels[from]; !ok {
		h.mu.Unlock()
		return ErrNotJoined
	}
	var handlers []func(BroadcastEvent)
	for ch := range h.channels {
		if ch == from || ch.name != ev.Channel {
			continue
		}
		handlers = append(handlers, ch.broadcastHandlers(ev.Event)...)
	}
	var listeners []*peer
	for _, p := range h.peers {
		if p.listens(ev.Channel) {
			listeners = append(listeners, p)
		}
	}
	h.mu.Unlock()

	for _, fn := range handlers {
		fn(ev)
	}

	data, err := json.Marshal(Message{Event: ev.Event, Data: ev})
	if err != nil {
		return err
	}
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(writeWait)
	}
	for _, p := range listeners {
		if err := p.write(data, deadline); err != nil {
			utils.ErrorLogger.Printf("Error sending broadcast to peer: %v", err)
		}
	}
	return ctx.Err()
}

type changeHandler struct {
	filter ChangeFilter
	fn     func(ChangeEvent)
}

type hubChannel struct {
	hub  *Hub
	name string

	mu         sync.Mutex
	changes    []changeHandler
	broadcasts map[string][]func(BroadcastEvent)
	status     func(Status, error)
	joined     bool
}

func (c *hubChannel) Name() string { return c.name }

func (c *hubChannel) OnChange(filter ChangeFilter, fn func(ChangeEvent)) Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.changes = append(c.changes, changeHandler{filter: filter, fn: fn})
	return c
}

func (c *hubChannel) OnBroadcast(event string, fn func(BroadcastEvent)) Channel {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.broadcasts[event] = append(c.broadcasts[event], fn)
	return c
}

func (c *hubChannel) Subscribe(fn func(Status, error)) error {
	return c.hub.subscribe(c, fn)
}

func (c *hubChannel) Send(ctx context.Context, event string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.hub.broadcast(ctx, c, BroadcastEvent{
		Channel: c.name,
		Event:   event,
		Payload: raw,
		SentAt:  time.Now().UTC(),
	})
}

func (c *hubChannel) matching(ev ChangeEvent) []func(ChangeEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []func(ChangeEvent)
	for _, h := range c.changes {
		if h.filter.Match(ev) {
			out = append(out, h.fn)
		}
	}
	return out
}

func (c *hubChannel) broadcastHandlers(event string) []func(BroadcastEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]func(BroadcastEvent){}, c.broadcasts[event]...)
}
