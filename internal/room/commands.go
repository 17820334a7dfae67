package room

import (
	"github.com/asterobia/core/internal/command"
	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/unit"
)

// MoveInputPayload is the MOVE_INPUT command body, per spec.md §6. UnitID
// is nil when the sender means "my owned unit".
type MoveInputPayload struct {
	UnitID   *int
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
}

// PathDataPayload is the PATH_DATA command body, per spec.md §6.
type PathDataPayload struct {
	UnitID    int
	Waypoints []mathvec.Vec3
	Closed    bool
}

// AdminAction names a CMD_ADMIN dispatch target, per spec.md §4.7/§6.
type AdminAction string

const (
	ActionTriggerExplosion     AdminAction = "TRIGGER_EXPLOSION"
	ActionPlaceMine            AdminAction = "PLACE_MINE"
	ActionSpawnRock            AdminAction = "SPAWN_ROCK"
	ActionToggleUnitPhysics    AdminAction = "TOGGLE_UNIT_PHYSICS"
	ActionDropTest             AdminAction = "DROP_TEST"
	ActionSetAltitude          AdminAction = "SET_ALTITUDE"
	ActionToggleRapier         AdminAction = "TOGGLE_RAPIER"
	ActionSetRolloverThreshold AdminAction = "SET_ROLLOVER_THRESHOLD"
)

// AdminPayload is the CMD_ADMIN command body. Fields not relevant to a
// given Action are simply left at their zero value.
type AdminPayload struct {
	Action    AdminAction
	UnitID    *int
	Position  mathvec.Vec3
	Radius    float64
	Strength  float64
	Altitude  float64
	Threshold float64
}

// routeCommand dispatches one drained command to its handler, per spec.md
// §4.7 step 2. A payload of the wrong type for its Kind (a ingress bug, not
// a client-triggerable condition) is silently ignored.
func (r *Room) routeCommand(c command.Command) {
	switch c.Kind {
	case command.KindMoveInput:
		if p, ok := c.Payload.(MoveInputPayload); ok {
			r.routeMoveInput(c.ClientSlot, p)
		}
	case command.KindPathData:
		if p, ok := c.Payload.(PathDataPayload); ok {
			r.routePathData(c.ClientSlot, p)
		}
	case command.KindAdmin:
		if p, ok := c.Payload.(AdminPayload); ok {
			r.routeAdmin(c.ClientSlot, p)
		}
	}
}

// authorized reports whether slot may drive u: the current controller if
// one is set, else (the ownership-legacy path spec.md §4.7 names) the
// owning slot.
func authorized(u *unit.Unit, slot int) bool {
	if u.Controller != nil {
		return slot == *u.Controller
	}
	return slot == u.OwnerSlot
}

func (r *Room) routeMoveInput(slot int, in MoveInputPayload) {
	r.mu.Lock()
	var u *unit.Unit
	var ok bool
	if in.UnitID != nil {
		u, ok = r.unitByID(*in.UnitID)
	} else {
		u, ok = r.unitByOwnerSlot(slot)
	}
	if !ok || !authorized(u, slot) {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	u.ApplyInput(unit.MoveInput{
		Forward:  in.Forward,
		Backward: in.Backward,
		Left:     in.Left,
		Right:    in.Right,
	}, r.terrainField)
}

func (r *Room) routePathData(slot int, pd PathDataPayload) {
	if len(pd.Waypoints) == 0 || len(pd.Waypoints) > r.cfg.MaxWaypoints {
		return
	}
	if !segmentsWithinLimit(pd.Waypoints, pd.Closed, r.cfg.MaxSegmentLength) {
		return
	}

	r.mu.Lock()
	u, ok := r.unitByID(pd.UnitID)
	if !ok || !authorized(u, slot) {
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()

	u.Waypoints = append([]mathvec.Vec3(nil), pd.Waypoints...)
	u.WaypointIdx = 0
	u.PathClosed = pd.Closed
}

// segmentsWithinLimit checks every consecutive waypoint segment against
// maxLen, including the wrap segment back to the first waypoint when closed
// is true, per spec.md §6's PATH_DATA validation.
func segmentsWithinLimit(waypoints []mathvec.Vec3, closed bool, maxLen float64) bool {
	for i := 1; i < len(waypoints); i++ {
		if mathvec.Length(mathvec.Sub(waypoints[i], waypoints[i-1])) > maxLen {
			return false
		}
	}
	if closed && len(waypoints) > 1 {
		if mathvec.Length(mathvec.Sub(waypoints[0], waypoints[len(waypoints)-1])) > maxLen {
			return false
		}
	}
	return true
}

func (r *Room) routeAdmin(slot int, p AdminPayload) {
	switch p.Action {
	case ActionTriggerExplosion:
		r.adminTriggerExplosion(p)
	case ActionPlaceMine:
		r.adminPlaceMine(p)
	case ActionSpawnRock:
		r.adminSpawnRock(p)
	case ActionToggleUnitPhysics:
		r.adminToggleUnitPhysics(p)
	case ActionDropTest:
		r.adminDropTest(p)
	case ActionSetAltitude:
		r.adminSetAltitude(p)
	case ActionToggleRapier:
		r.adminToggleRapier()
	case ActionSetRolloverThreshold:
		r.adminSetRolloverThreshold(p)
	}
}
