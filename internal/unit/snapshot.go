package unit

import "github.com/asterobia/core/internal/mathvec"

// StateLabel is the coarse per-unit state label carried in a snapshot, per
// spec.md §3.
type StateLabel string

const (
	StateIdle     StateLabel = "IDLE"
	StateMoving   StateLabel = "MOVING"
	StateAirborne StateLabel = "AIRBORNE"
	StateDynamic  StateLabel = "DYNAMIC"
	StateSettled  StateLabel = "SETTLED"
)

// Snapshot is the flat, wire-friendly view of a Unit broadcast every room
// tick, per spec.md §3/§6: alongside the coarse State label, it also
// carries the MovementMode (GROUNDED/AIRBORNE) and PhysicsMode
// (KINEMATIC/DYNAMIC/SETTLED) spec.md §6's SERVER_SNAPSHOT names
// separately as "mode" and "physics-mode", plus Altitude.
type Snapshot struct {
	ID          int          `json:"id"`
	OwnerSlot   int          `json:"ownerSlot"`
	ModelIndex  int          `json:"modelIndex"`
	Position    mathvec.Vec3 `json:"position"`
	Heading     float64      `json:"heading"`
	Orientation mathvec.Quat `json:"orientation"`
	Speed       float64      `json:"speed"`
	HP          int          `json:"hp"`
	State       StateLabel   `json:"state"`
	Mode        string       `json:"mode"`
	PhysicsMode string       `json:"physicsMode"`
	Altitude    float64      `json:"altitude"`
}

func (u *Unit) state() StateLabel {
	switch u.PhysicsMode {
	case Dynamic:
		return StateDynamic
	case Settled:
		return StateSettled
	}
	if u.MovementMode == Airborne {
		return StateAirborne
	}
	if u.Speed > headingMotionEpsilon || len(u.Waypoints) > 0 {
		return StateMoving
	}
	return StateIdle
}

// ToSnapshot produces the wire-facing view of the unit's current state.
func (u *Unit) ToSnapshot() Snapshot {
	return Snapshot{
		ID:          u.ID,
		OwnerSlot:   u.OwnerSlot,
		ModelIndex:  u.ModelIndex,
		Position:    u.Position,
		Heading:     u.Heading,
		Orientation: u.Orientation,
		Speed:       u.Speed,
		HP:          u.HP,
		State:       u.state(),
		Mode:        u.MovementMode.String(),
		PhysicsMode: u.PhysicsMode.String(),
		Altitude:    u.Altitude,
	}
}
