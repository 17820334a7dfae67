// Package gameserver implements spec.md §4.8's game server: a mapping of
// room-id to Room plus the transport-authenticated identity mapping
// client-slots, and the relay interceptor that turns channel-relay frames
// into routed room commands. It is the one place a transport-assigned
// client id is trusted as identity — nothing here ever reads a
// payload-declared slot.
package gameserver

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/asterobia/core/internal/command"
	"github.com/asterobia/core/internal/metrics"
	"github.com/asterobia/core/internal/relay"
	"github.com/asterobia/core/internal/room"
)

// Default per-client ingress limits for routed game commands (HOST_ANNOUNCE,
// SPAWN_MANIFEST, JOIN_ACK, MOVE_INPUT, PATH_DATA, CMD_ADMIN, CMD_BATCH). MOVE_INPUT is sent every
// client tick, so the burst must comfortably cover a tick-rate's worth of
// frames; PATH_DATA/CMD_ADMIN are rarer but share the same bucket since a
// hostile client mixing frame types shouldn't get a bigger budget for it.
const (
	defaultIngressRate  = 40 // frames/sec
	defaultIngressBurst = 80
)

// CMD_BATCH tunables, per spec.md §6's "Constants (normative)" table: a
// batch schedules its inner commands fixed-buffer ticks ahead of the sender's
// believed sim-tick, and a batch may carry at most MaxBatchCommands entries.
const (
	cmdBatchScheduleBuffer = 2
	maxBatchCommands       = 50
)

// ClientSlot is one transport client's mapped identity, per spec.md §4.8.
type ClientSlot struct {
	RoomID string
	Slot   int
}

// RoomFactory constructs a new Room for hostID, letting callers customize
// Config (terrain preset, tick rate, physics) per host announcement.
type RoomFactory func(hostID string) *room.Room

// GameServer holds every live room and the transport-authenticated
// client-slots mapping, and dispatches relay frames into room commands
// per spec.md §4.8.
type GameServer struct {
	mu          sync.RWMutex
	rooms       map[string]*room.Room
	clientSlots map[int]ClientSlot
	guestSlots  map[string]int // roomID -> next unmapped guest slot

	limiterMu sync.Mutex
	limiters  map[int]*rate.Limiter

	batchMu      sync.Mutex
	lastBatchSeq map[int]uint64

	relay   *relay.Hub
	metrics metrics.Recorder
	newRoom RoomFactory

	ctx context.Context
	eg  *errgroup.Group
}

// New constructs a GameServer. ctx bounds every room's PhysicsInit await;
// newRoom is called once per HOST_ANNOUNCE to build a fresh Room (tests can
// substitute a RoomFactory that returns a physics-disabled room for speed).
func New(ctx context.Context, hub *relay.Hub, rec metrics.Recorder, newRoom RoomFactory) *GameServer {
	if rec == nil {
		rec = metrics.Noop{}
	}
	eg, egCtx := errgroup.WithContext(ctx)
	return &GameServer{
		rooms:        make(map[string]*room.Room),
		clientSlots:  make(map[int]ClientSlot),
		guestSlots:   make(map[string]int),
		limiters:     make(map[int]*rate.Limiter),
		lastBatchSeq: make(map[int]uint64),
		relay:        hub,
		metrics:      rec,
		newRoom:      newRoom,
		ctx:          egCtx,
		eg:           eg,
	}
}

// Wait blocks until every room goroutine this GameServer launched has
// returned, propagating the first error (if any), per golang.org/x/sync/errgroup's
// fail-fast semantics.
func (gs *GameServer) Wait() error { return gs.eg.Wait() }

// runRoom launches r's fixed-timestep tick loop on gs's errgroup, stopping
// r when the loop exits for any reason (context cancellation, Stop, or a
// tick error) so its physics resources are always freed.
func (gs *GameServer) runRoom(r *room.Room) {
	loop := command.NewSimLoop(r.TickRate(), r.OnSimTick)
	gs.eg.Go(func() error {
		defer func() {
			r.Stop()
			gs.metrics.RoomEnded()
		}()
		if err := loop.Run(gs.ctx); err != nil && gs.ctx.Err() == nil {
			log.Printf("gameserver: room %s tick loop stopped: %v", r.ID, err)
		}
		return nil
	})
}

// roomCount reports how many rooms currently exist.
func (gs *GameServer) roomCount() int {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	return len(gs.rooms)
}

// nextGuestSlot assigns and consumes the next unmapped guest slot (1..max)
// for roomID, monotonically — spec.md §4.8's "first unmapped guest slot"
// lazy-mapping rule, implemented as an incrementing counter per room since
// room creation rather than a reuse-on-disconnect search (see DESIGN.md).
// Returns -1 once every guest slot is taken.
func (gs *GameServer) nextGuestSlot(roomID string, maxSlot int) int {
	gs.mu.Lock()
	defer gs.mu.Unlock()
	slot, ok := gs.guestSlots[roomID]
	if !ok {
		slot = 1
	}
	if slot > maxSlot {
		return -1
	}
	gs.guestSlots[roomID] = slot + 1
	return slot
}

// gameEnvelope is the inner discriminator every broadcast payload carries,
// distinct from the relay Frame's own "type" (always "broadcast" on the
// wire for these messages).
type gameEnvelope struct {
	Type string `json:"type"`
}

// HandleFrame is the relay interceptor spec.md §4.8's wire_to_relay
// installs: every frame is first delivered to normal subscribers via the
// underlying hub, then (for broadcast frames) inspected by its inner
// payload type and routed into room/client-slot state.
func (gs *GameServer) HandleFrame(sub relay.Subscriber, raw []byte) {
	gs.relay.HandleFrame(sub, raw)

	var f relay.Frame
	if err := json.Unmarshal(raw, &f); err != nil || f.Type != relay.FrameBroadcast {
		return
	}

	payloadBytes, err := json.Marshal(f.Payload)
	if err != nil {
		return
	}
	var env gameEnvelope
	if err := json.Unmarshal(payloadBytes, &env); err != nil {
		return
	}

	switch env.Type {
	case "HOST_ANNOUNCE", "SPAWN_MANIFEST", "JOIN_ACK", "MOVE_INPUT", "PATH_DATA", "CMD_ADMIN", "CMD_BATCH":
		if !gs.allowFrame(sub) {
			gs.metrics.CommandDropped("rate_limited:" + strings.ToLower(env.Type))
			logIgnored(env.Type, "per-client ingress rate exceeded")
			return
		}
	}

	switch env.Type {
	case "HOST_ANNOUNCE":
		gs.handleHostAnnounce(sub, payloadBytes)
	case "SPAWN_MANIFEST":
		gs.handleSpawnManifest(sub, payloadBytes)
	case "JOIN_ACK":
		gs.handleJoinAck(sub, payloadBytes)
	case "MOVE_INPUT":
		gs.handleMoveInput(sub, f.Channel, payloadBytes)
	case "PATH_DATA":
		gs.handlePathData(sub, payloadBytes)
	case "CMD_ADMIN":
		gs.handleCmdAdmin(sub, payloadBytes)
	case "CMD_BATCH":
		gs.handleCmdBatch(sub, payloadBytes)
	}
}

// allowFrame enforces defaultIngressRate/defaultIngressBurst per transport
// client, lazily creating each subscriber's token bucket on first use via
// golang.org/x/time/rate. A client with no mapped room yet (pre-HOST_ANNOUNCE)
// is still keyed by its transport id, so the limiter can't be bypassed by
// racing HOST_ANNOUNCE before a slot exists.
func (gs *GameServer) allowFrame(sub relay.Subscriber) bool {
	gs.limiterMu.Lock()
	lim, ok := gs.limiters[sub.ID()]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(defaultIngressRate), defaultIngressBurst)
		gs.limiters[sub.ID()] = lim
	}
	gs.limiterMu.Unlock()
	return lim.Allow()
}

// Disconnect drops sub's client-slots entry, per spec.md §4.8.
func (gs *GameServer) Disconnect(sub relay.Subscriber) {
	gs.relay.UnsubscribeAll(sub)
	gs.mu.Lock()
	delete(gs.clientSlots, sub.ID())
	gs.mu.Unlock()
	gs.limiterMu.Lock()
	delete(gs.limiters, sub.ID())
	gs.limiterMu.Unlock()
	gs.batchMu.Lock()
	delete(gs.lastBatchSeq, sub.ID())
	gs.batchMu.Unlock()
}

// Room looks up a room by id.
func (gs *GameServer) Room(id string) (*room.Room, bool) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	r, ok := gs.rooms[id]
	return r, ok
}

// slotFor resolves sub's mapped {room, slot}, if any.
func (gs *GameServer) slotFor(sub relay.Subscriber) (ClientSlot, bool) {
	gs.mu.RLock()
	defer gs.mu.RUnlock()
	cs, ok := gs.clientSlots[sub.ID()]
	return cs, ok
}

func (gs *GameServer) mapSlot(sub relay.Subscriber, cs ClientSlot) {
	gs.mu.Lock()
	gs.clientSlots[sub.ID()] = cs
	gs.mu.Unlock()
}

func logIgnored(kind string, reason string) {
	log.Printf("gameserver: ignoring %s: %s", kind, reason)
}
