// Package room composes sphere math, terrain, physics, the headless unit
// state machine, and the gameplay event services into the per-room
// simulation described in spec.md §4.7: a Room owns its command queue,
// terrain field, collider manager, physics world, units, obstacles, and
// mines, and advances them one fixed tick at a time.
package room

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/asterobia/core/internal/command"
	"github.com/asterobia/core/internal/events"
	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/metrics"
	"github.com/asterobia/core/internal/physics"
	"github.com/asterobia/core/internal/terrain"
	"github.com/asterobia/core/internal/unit"
)

// State is a room's lifecycle stage, per spec.md §3: WAITING -> RUNNING ->
// ENDED, monotonic.
type State int32

const (
	Waiting State = iota
	Running
	Ended
)

func (s State) String() string {
	switch s {
	case Waiting:
		return "WAITING"
	case Running:
		return "RUNNING"
	case Ended:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// HostSlot is the always-reserved slot for the room's host, per spec.md §3.
const HostSlot = 0

// DefaultStateHashSampleTicks is how often (in ticks) the room computes and
// reports its determinism-evidence state hash, per spec.md §6.
const DefaultStateHashSampleTicks = 60

// Config collects the tunables spec.md §6's "Constants (normative)" table
// names into one struct, so a Room can be constructed from a named terrain
// preset plus targeted overrides (SPEC_FULL.md §4's RoomConfig).
type Config struct {
	TickRate  int
	PhysicsHz int
	SubSteps  int

	EnablePhysics bool

	MaxSlot          int
	MaxPatches       int
	MaxObstacles     int
	MaxMines         int
	MaxManifestUnits int
	MaxWaypoints     int
	MaxSegmentLength float64

	Terrain          terrain.FieldConfig
	GravityMagnitude float64

	RolloverThreshold float64 // 0 = use unit.RolloverThresholdRad
	StateHashSample   int     // 0 = DefaultStateHashSampleTicks
}

// DefaultConfig returns the spec's normative defaults (spec.md §6).
func DefaultConfig() Config {
	return Config{
		TickRate:         command.DefaultTickRate,
		PhysicsHz:        60,
		SubSteps:         3,
		EnablePhysics:    true,
		MaxSlot:          15,
		MaxPatches:       terrain.DefaultMaxPatches,
		MaxObstacles:     64,
		MaxMines:         32,
		MaxManifestUnits: 200,
		MaxWaypoints:     32,
		MaxSegmentLength: 200,
		Terrain:          terrain.DefaultFieldConfig(),
		GravityMagnitude: physics.DefaultGravityMagnitude,
		StateHashSample:  DefaultStateHashSampleTicks,
	}
}

// Obstacle is a fixed ball obstacle a host/admin has placed, per spec.md §3.
type Obstacle struct {
	Handle   int
	Body     physics.BodyHandle
	Collider physics.ColliderHandle
	Position mathvec.Vec3
	Radius   float64
}

// Mine is a one-shot proximity explosive, per spec.md §3. Mines carry no
// physics-world presence of their own — spec.md §4.4's component table
// already classes mine detonation as a "pure service" alongside radial and
// directed impulse, so detection is the same id-ordered proximity pass
// CollisionService.CheckMineContacts runs every tick (see DESIGN.md).
type Mine struct {
	ID            int
	Position      mathvec.Vec3
	TriggerRadius float64
	Upward        float64
	Radial        float64
	Blast         float64
}

// Mine defaults, per spec.md §6.
const (
	DefaultMineTrigger = 1.5
	DefaultMineUpward  = 8.0
	DefaultMineRadial  = 5.0
	DefaultMineBlast   = 6.0
)

// Player is a room seat, per spec.md §3. ClientRef is an opaque reference
// to the transport endpoint that owns this slot (internal/gameserver sets
// it from the relay's server-assigned client id); the room itself never
// interprets it.
type Player struct {
	UserID      string
	DisplayName string
	ClientRef   string
}

// Snapshot is the per-tick broadcast payload, per spec.md §3/§6.
type Snapshot struct {
	Version      int             `json:"version"`
	Tick         int             `json:"tick"`
	ServerTimeMs int64           `json:"serverTimeMs"`
	Units        []unit.Snapshot `json:"units"`
	StateHash    string          `json:"stateHash,omitempty"`
}

// SnapshotVersion is the wire version stamped on every Snapshot.
const SnapshotVersion = 1

// Room composes the four core subsystems for one procedural-planet match.
// Per spec.md §5, mutation of a running Room's simulation state happens
// only on the tick goroutine that calls OnSimTick; EnqueueCommand and Stop
// are the only entry points meant to be called from other goroutines
// (command.Queue is internally synchronized; state is an atomic so Stop can
// be called concurrently with a tick in flight).
type Room struct {
	ID  string
	cfg Config

	state atomic.Int32

	queue *command.Queue
	tick  int

	terrainField *terrain.Field
	collider     *terrain.ColliderManager
	physWorld    *physics.World

	eventSvc     *events.PhysicsEventService
	collisionSvc *events.CollisionService

	mu         sync.Mutex // guards players/units/obstacles/mines below
	players    map[int]*Player
	units      []*unit.Unit
	unitsByID  map[int]*unit.Unit
	nextUnitID int

	obstacles          map[int]*Obstacle
	nextObstacleHandle int
	mines              map[int]*Mine
	nextMineID         int

	colliderToUnit     map[physics.ColliderHandle]int
	colliderToObstacle map[physics.ColliderHandle]int

	onSnapshot      func(Snapshot)
	nowMs           func() int64
	rapierDebugFlag bool
	metrics         metrics.Recorder

	// PhysicsInit, if set, is awaited by Start before the room can leave
	// WAITING — the async-resource boundary spec.md §4.7/§9 calls out for
	// an engine whose module init is itself asynchronous. The from-scratch
	// solver in internal/physics needs no such init; this hook exists so a
	// room built around a future engine binding can plug one in without
	// changing the lifecycle contract.
	PhysicsInit func(ctx context.Context) error
}

// New constructs a Room in WAITING with cfg's terrain and (if enabled)
// physics world/collider manager already built.
func New(id string, cfg Config) *Room {
	if cfg.TickRate <= 0 {
		cfg.TickRate = command.DefaultTickRate
	}
	if cfg.PhysicsHz <= 0 {
		cfg.PhysicsHz = 60
	}
	if cfg.SubSteps <= 0 {
		cfg.SubSteps = 3
	}
	if cfg.MaxManifestUnits <= 0 {
		cfg.MaxManifestUnits = 200
	}
	if cfg.MaxWaypoints <= 0 {
		cfg.MaxWaypoints = 32
	}
	if cfg.MaxSegmentLength <= 0 {
		cfg.MaxSegmentLength = 200
	}
	if cfg.MaxObstacles <= 0 {
		cfg.MaxObstacles = 64
	}
	if cfg.MaxMines <= 0 {
		cfg.MaxMines = 32
	}
	if cfg.StateHashSample <= 0 {
		cfg.StateHashSample = DefaultStateHashSampleTicks
	}

	field := terrain.NewField(cfg.Terrain)

	r := &Room{
		ID:                 id,
		cfg:                cfg,
		queue:              command.NewQueue(),
		terrainField:       field,
		eventSvc:           events.NewPhysicsEventService(),
		collisionSvc:       events.NewCollisionService(),
		players:            make(map[int]*Player),
		unitsByID:          make(map[int]*unit.Unit),
		obstacles:          make(map[int]*Obstacle),
		mines:              make(map[int]*Mine),
		colliderToUnit:     make(map[physics.ColliderHandle]int),
		colliderToObstacle: make(map[physics.ColliderHandle]int),
		nowMs:              defaultNowMs,
		metrics:            metrics.Noop{},
	}

	if cfg.EnablePhysics {
		r.physWorld = physics.NewWorld(cfg.PhysicsHz, cfg.SubSteps)
		r.physWorld.SetTerrainField(field)
		if cfg.GravityMagnitude > 0 {
			r.physWorld.SetGravityMagnitude(cfg.GravityMagnitude)
		}
		maxPatches := cfg.MaxPatches
		if maxPatches <= 0 {
			maxPatches = terrain.DefaultMaxPatches
		}
		r.collider = terrain.NewColliderManager(field, r.physWorld, maxPatches, terrain.DefaultPatchSize)
	}

	return r
}

// SetSnapshotHandler installs the callback invoked with every tick's
// snapshot. internal/gameserver wires this to relay injection.
func (r *Room) SetSnapshotHandler(fn func(Snapshot)) { r.onSnapshot = fn }

// SetMetricsRecorder installs rec as the destination for this room's
// per-tick/per-event metrics. internal/gameserver wires this to its shared
// Prom recorder right after a room is created; a nil rec is ignored so the
// room keeps discarding into metrics.Noop.
func (r *Room) SetMetricsRecorder(rec metrics.Recorder) {
	if rec != nil {
		r.metrics = rec
	}
}

// State reports the room's current lifecycle stage.
func (r *Room) State() State { return State(r.state.Load()) }

// TerrainField exposes the room's height field (read-only queries).
func (r *Room) TerrainField() *terrain.Field { return r.terrainField }

// MaxSlot reports the highest valid player slot for this room.
func (r *Room) MaxSlot() int { return r.cfg.MaxSlot }

// TickRate reports the room's configured simulation tick rate in Hz.
func (r *Room) TickRate() int { return r.cfg.TickRate }

// EnablePhysics reports whether this room was constructed with a physics
// world, per spec.md §4.8's admin dev gate ("enable_physics == true").
func (r *Room) EnablePhysics() bool { return r.cfg.EnablePhysics }

// AddPlayer registers a player at slot. The host must be registered at
// HostSlot, per spec.md §3.
func (r *Room) AddPlayer(slot int, p Player) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := p
	r.players[slot] = &cp
}

// Player looks up the player at slot.
func (r *Room) Player(slot int) (Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[slot]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Start awaits PhysicsInit (if set and physics enabled) and transitions the
// room from WAITING to RUNNING. Per spec.md §5 it must complete before the
// room can tick.
func (r *Room) Start(ctx context.Context) error {
	if State(r.state.Load()) != Waiting {
		return ErrRoomNotWaiting
	}
	if r.cfg.EnablePhysics && r.PhysicsInit != nil {
		if err := r.PhysicsInit(ctx); err != nil {
			return fmt.Errorf("room: physics init: %w", err)
		}
	}
	r.state.Store(int32(Running))
	return nil
}

// Stop is immediate and idempotent: it marks the room ENDED and frees
// physics resources. Subsequent OnSimTick calls no-op, per spec.md §5.
func (r *Room) Stop() {
	if !r.state.CompareAndSwap(int32(Waiting), int32(Ended)) &&
		!r.state.CompareAndSwap(int32(Running), int32(Ended)) {
		return
	}
	if r.physWorld != nil {
		r.collider.DestroyAll()
		r.physWorld.Shutdown()
	}
}

// EnqueueCommand buffers c for the next eligible tick's Flush, reporting
// false if the queue is at QueueMax.
func (r *Room) EnqueueCommand(c command.Command) bool {
	return r.queue.Enqueue(c)
}

// Tick returns the number of ticks the room has run.
func (r *Room) Tick() int { return r.tick }

// unitsSortedByID returns the room's units in ascending id order, the
// deterministic iteration order spec.md §5 requires whenever physics
// services consume them.
func (r *Room) unitsSortedByID() []*unit.Unit {
	ordered := make([]*unit.Unit, len(r.units))
	copy(ordered, r.units)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	return ordered
}

func (r *Room) unitByID(id int) (*unit.Unit, bool) {
	u, ok := r.unitsByID[id]
	return u, ok
}

func (r *Room) unitByOwnerSlot(slot int) (*unit.Unit, bool) {
	for _, u := range r.unitsSortedByID() {
		if u.OwnerSlot == slot {
			return u, true
		}
	}
	return nil, false
}
