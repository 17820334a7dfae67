package room

import (
	"github.com/asterobia/core/internal/events"
	"github.com/asterobia/core/internal/unit"
)

// defaultObstacleRadius is used by SPAWN_ROCK when the payload doesn't
// specify one.
const defaultObstacleRadius = 2.0

// defaultDropAltitude is used by DROP_TEST when the payload doesn't specify
// one.
const defaultDropAltitude = 10.0

func (r *Room) adminTriggerExplosion(p AdminPayload) {
	if p.UnitID == nil {
		return
	}
	r.mu.Lock()
	center, ok := r.unitByID(*p.UnitID)
	units := r.unitsSortedByID()
	r.mu.Unlock()
	if !ok {
		return
	}

	results := r.eventSvc.RadialImpulse(units, center.Position, p.Radius, p.Strength)
	r.applyEventResults(results)
}

// adminPlaceMine reuses AdminPayload's generic fields for the mine's four
// tunables: Threshold is the trigger radius, Altitude the upward impulse,
// Strength the radial impulse, and Radius the blast radius.
func (r *Room) adminPlaceMine(p AdminPayload) {
	r.PlaceMine(p.Position, p.Threshold, p.Altitude, p.Strength, p.Radius)
}

func (r *Room) adminSpawnRock(p AdminPayload) {
	radius := p.Radius
	if radius <= 0 {
		radius = defaultObstacleRadius
	}
	r.CreateObstacle(p.Position, radius)
}

func (r *Room) adminToggleUnitPhysics(p AdminPayload) {
	if p.UnitID == nil || r.physWorld == nil {
		return
	}
	r.mu.Lock()
	u, ok := r.unitByID(*p.UnitID)
	r.mu.Unlock()
	if !ok {
		return
	}

	switch u.PhysicsMode {
	case unit.Kinematic:
		_ = u.EnterDynamic(r.physWorld, r.terrainField, nil)
	case unit.Dynamic, unit.Settled:
		if body, err := r.physWorld.GetBody(u.RigidBody.Body); err == nil {
			u.SyncFromRigidBody(body)
		}
		_ = u.ExitDynamic(r.physWorld, r.terrainField)
	}
}

func (r *Room) adminDropTest(p AdminPayload) {
	if p.UnitID == nil {
		return
	}
	r.mu.Lock()
	u, ok := r.unitByID(*p.UnitID)
	r.mu.Unlock()
	if !ok {
		return
	}
	altitude := p.Altitude
	if altitude <= 0 {
		altitude = defaultDropAltitude
	}
	u.MovementMode = unit.Airborne
	u.Altitude = altitude
	u.VerticalVelocity = 0
}

func (r *Room) adminSetAltitude(p AdminPayload) {
	if p.UnitID == nil {
		return
	}
	r.mu.Lock()
	u, ok := r.unitByID(*p.UnitID)
	r.mu.Unlock()
	if !ok {
		return
	}
	u.Altitude = p.Altitude
	if p.Altitude > 0 {
		u.MovementMode = unit.Airborne
	} else {
		u.Altitude = 0
		u.MovementMode = unit.Grounded
	}
}

// adminToggleRapier flips a diagnostic flag surfaced for tooling; spec.md
// §4.8 lists TOGGLE_RAPIER among the dispatchable admin actions without
// further detail beyond the name (see DESIGN.md).
func (r *Room) adminToggleRapier() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rapierDebugFlag = !r.rapierDebugFlag
}

func (r *Room) adminSetRolloverThreshold(p AdminPayload) {
	if p.Threshold <= 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cfg.RolloverThreshold = p.Threshold
	for _, u := range r.units {
		u.RolloverThreshold = p.Threshold
	}
}

// applyEventResults routes every events.Result onto its target unit: a
// KINEMATIC unit enters DYNAMIC with the impulse; an already-DYNAMIC unit
// simply receives an extra kick via the physics world directly.
func (r *Room) applyEventResults(results []events.Result) {
	for _, res := range results {
		r.mu.Lock()
		u, ok := r.unitByID(res.UnitID)
		r.mu.Unlock()
		if !ok {
			continue
		}
		impulse := res.Impulse
		switch u.PhysicsMode {
		case unit.Kinematic:
			_ = u.EnterDynamic(r.physWorld, r.terrainField, &impulse)
		case unit.Dynamic:
			if r.physWorld != nil && u.RigidBody != nil {
				_ = r.physWorld.ApplyImpulse(u.RigidBody.Body, impulse)
			}
		}
	}
}
