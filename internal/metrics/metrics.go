// Package metrics wraps the handful of Prometheus series the game server
// and room package care about behind a small interface, so callers depend
// on an interface rather than the concrete prometheus/client_golang types —
// the teacher's own "GameServer interface decouples Client from Server"
// habit (internal/loop/server/server.go), applied to observability.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder is every metrics operation a room or game server needs to
// perform. A no-op implementation (below) satisfies it for tests.
type Recorder interface {
	TickObserved(roomID string)
	CommandDropped(reason string)
	CommandRouted(kind string)
	PatchEvicted()
	MineDetonated()
	RoomStarted()
	RoomEnded()
	SetActiveRooms(n int)
	SetActiveUnits(roomID string, n int)
}

// Prom is the real Recorder, registering its series on reg.
type Prom struct {
	ticks           *prometheus.CounterVec
	commandsDropped *prometheus.CounterVec
	commandsRouted  *prometheus.CounterVec
	patchesEvicted  prometheus.Counter
	minesDetonated  prometheus.Counter
	roomsStarted    prometheus.Counter
	roomsEnded      prometheus.Counter
	activeRooms     prometheus.Gauge
	activeUnits     *prometheus.GaugeVec
}

// NewProm constructs and registers a Prom recorder on reg. Pass
// prometheus.DefaultRegisterer for the global registry, or a fresh
// prometheus.NewRegistry() in tests to avoid collisions across runs.
func NewProm(reg prometheus.Registerer) *Prom {
	p := &Prom{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asterobia_room_ticks_total",
			Help: "Number of simulation ticks processed, by room.",
		}, []string{"room"}),
		commandsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asterobia_commands_dropped_total",
			Help: "Commands dropped before reaching a room, by reason.",
		}, []string{"reason"}),
		commandsRouted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "asterobia_commands_routed_total",
			Help: "Commands routed to a room, by kind.",
		}, []string{"kind"}),
		patchesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asterobia_terrain_patches_evicted_total",
			Help: "Terrain collider patches evicted for lying too far from every dynamic unit.",
		}),
		minesDetonated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asterobia_mines_detonated_total",
			Help: "Mines consumed by a proximity trigger.",
		}),
		roomsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asterobia_rooms_started_total",
			Help: "Rooms transitioned from WAITING to RUNNING.",
		}),
		roomsEnded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "asterobia_rooms_ended_total",
			Help: "Rooms transitioned to ENDED.",
		}),
		activeRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "asterobia_active_rooms",
			Help: "Rooms currently in WAITING or RUNNING.",
		}),
		activeUnits: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "asterobia_active_units",
			Help: "Units currently live in a room.",
		}, []string{"room"}),
	}
	reg.MustRegister(
		p.ticks, p.commandsDropped, p.commandsRouted, p.patchesEvicted,
		p.minesDetonated, p.roomsStarted, p.roomsEnded, p.activeRooms, p.activeUnits,
	)
	return p
}

func (p *Prom) TickObserved(roomID string)   { p.ticks.WithLabelValues(roomID).Inc() }
func (p *Prom) CommandDropped(reason string) { p.commandsDropped.WithLabelValues(reason).Inc() }
func (p *Prom) CommandRouted(kind string)    { p.commandsRouted.WithLabelValues(kind).Inc() }
func (p *Prom) PatchEvicted()                { p.patchesEvicted.Inc() }
func (p *Prom) MineDetonated()               { p.minesDetonated.Inc() }
func (p *Prom) RoomStarted()                 { p.roomsStarted.Inc() }
func (p *Prom) RoomEnded()                   { p.roomsEnded.Inc() }
func (p *Prom) SetActiveRooms(n int)         { p.activeRooms.Set(float64(n)) }
func (p *Prom) SetActiveUnits(roomID string, n int) {
	p.activeUnits.WithLabelValues(roomID).Set(float64(n))
}

// Noop is a Recorder that discards everything, used where a caller hasn't
// wired real metrics (tests, standalone room use).
type Noop struct{}

func (Noop) TickObserved(string)          {}
func (Noop) CommandDropped(string)        {}
func (Noop) CommandRouted(string)         {}
func (Noop) PatchEvicted()                {}
func (Noop) MineDetonated()               {}
func (Noop) RoomStarted()                 {}
func (Noop) RoomEnded()                   {}
func (Noop) SetActiveRooms(int)           {}
func (Noop) SetActiveUnits(string, int)   {}
