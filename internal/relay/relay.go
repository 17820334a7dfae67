// Package relay implements the channel-based pub/sub transport boundary
// described in spec.md §6: clients subscribe to named channels, broadcast
// frames to "all subscribers except sender", and the game server injects
// snapshot frames directly onto a room's session channel. Hub is the one
// Relay implementation: internal/gameserver's tests use it in memory, and
// real network clients reach the same Hub through WSConn
// (websocket.go), a gorilla/websocket-backed Subscriber.
package relay

import (
	"encoding/json"
	"sync"
)

// Subscriber is anything that can receive relay frames. *websocket.Conn
// (wrapped below) and an in-memory test double both implement it.
type Subscriber interface {
	// ID uniquely identifies this subscriber within the relay, for
	// excluding the sender from its own broadcast.
	ID() int
	// Deliver sends one outbound frame. Implementations must not block
	// indefinitely; a slow consumer is the transport's problem to solve
	// (spec.md §5's "backpressure is the transport's concern").
	Deliver(f Frame)
}

// Relay is the minimal pub/sub surface the game server and room injection
// path depend on, decoupling both from any one transport implementation —
// the teacher's own "GameServer interface decouples Client from Server"
// habit, generalized to the transport boundary.
type Relay interface {
	Subscribe(channel string, sub Subscriber)
	Unsubscribe(channel string, sub Subscriber)
	// Broadcast delivers payload to every subscriber of channel except
	// sender (sender may be nil for server-originated injection, e.g.
	// snapshot broadcast, which has no single sender to exclude).
	Broadcast(channel string, payload any, sender Subscriber)
	// HandleFrame processes one client-originated frame (subscribe,
	// unsubscribe, or broadcast) from sub, per spec.md §6. Unknown frame
	// types produce an error frame back to sub rather than any connection
	// action.
	HandleFrame(sub Subscriber, raw []byte)
}

// Hub is the in-memory Relay implementation: channel membership is a plain
// map of subscriber sets, guarded by a mutex, mirroring the teacher's own
// register/unregister-under-lock pattern in internal/loop/server/server.go.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[int]Subscriber
}

// NewHub constructs an empty in-memory relay.
func NewHub() *Hub {
	return &Hub{channels: make(map[string]map[int]Subscriber)}
}

// Subscribe adds sub to channel's subscriber set.
func (h *Hub) Subscribe(channel string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		set = make(map[int]Subscriber)
		h.channels[channel] = set
	}
	set[sub.ID()] = sub
}

// Unsubscribe removes sub from channel's subscriber set.
func (h *Hub) Unsubscribe(channel string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.channels[channel]
	if !ok {
		return
	}
	delete(set, sub.ID())
	if len(set) == 0 {
		delete(h.channels, channel)
	}
}

// UnsubscribeAll removes sub from every channel it belongs to, used on
// transport disconnect.
func (h *Hub) UnsubscribeAll(sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for channel, set := range h.channels {
		delete(set, sub.ID())
		if len(set) == 0 {
			delete(h.channels, channel)
		}
	}
}

// Broadcast delivers payload to every subscriber of channel except sender.
func (h *Hub) Broadcast(channel string, payload any, sender Subscriber) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set, ok := h.channels[channel]
	if !ok {
		return
	}
	senderID := -1
	if sender != nil {
		senderID = sender.ID()
	}
	for id, sub := range set {
		if id == senderID {
			continue
		}
		sub.Deliver(Frame{Type: FrameMessage, Channel: channel, Payload: payload})
	}
}

// HandleFrame decodes raw as a client-originated Frame and dispatches it.
// A malformed frame or an unknown type produces an error reply to sub
// without dropping the connection, per spec.md §6.
func (h *Hub) HandleFrame(sub Subscriber, raw []byte) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		sub.Deliver(Frame{Type: FrameError, Message: "invalid frame"})
		return
	}

	switch f.Type {
	case FrameSubscribe:
		if f.Channel == "" {
			sub.Deliver(Frame{Type: FrameError, Message: "subscribe requires a channel"})
			return
		}
		h.Subscribe(f.Channel, sub)
	case FrameUnsubscribe:
		if f.Channel == "" {
			sub.Deliver(Frame{Type: FrameError, Message: "unsubscribe requires a channel"})
			return
		}
		h.Unsubscribe(f.Channel, sub)
	case FrameBroadcast:
		if f.Channel == "" {
			sub.Deliver(Frame{Type: FrameError, Message: "broadcast requires a channel"})
			return
		}
		if !h.isSubscribed(f.Channel, sub) {
			sub.Deliver(Frame{Type: FrameError, Message: "not subscribed to channel"})
			return
		}
		h.Broadcast(f.Channel, f.Payload, sub)
	default:
		sub.Deliver(Frame{Type: FrameError, Message: "unknown frame type: " + f.Type})
	}
}

func (h *Hub) isSubscribed(channel string, sub Subscriber) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set, ok := h.channels[channel]
	if !ok {
		return false
	}
	_, ok = set[sub.ID()]
	return ok
}

// Inject delivers payload directly to channel's subscribers without going
// through HandleFrame's sender-subscription check — the snapshot-broadcast
// path spec.md §4.8 describes as "injecting a framed payload onto the
// relay's subscriber set".
func (h *Hub) Inject(channel string, payload any) {
	h.Broadcast(channel, payload, nil)
}
