package room

import (
	"github.com/asterobia/core/internal/events"
	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/physics"
	"github.com/asterobia/core/internal/unit"
)

// evictDistanceFactor is evict_distant's default multiplier on patch size,
// per spec.md §4.4.
const evictDistanceFactor = 3.0

// patchCoverageRadius is how far ensure_patches_around reaches from a
// dynamic unit's position each tick.
const patchCoverageRadius = 24.0

// OnSimTick advances the room by one fixed step, per spec.md §4.7. It is a
// no-op once the room has left RUNNING (e.g. after Stop), so a tick driver
// racing a Stop call never panics or mutates freed state.
func (r *Room) OnSimTick(tick int, dt float64) error {
	if State(r.state.Load()) != Running {
		return nil
	}
	r.tick = tick
	r.metrics.TickObserved(r.ID)

	// Step 1-2: drain and route this tick's commands, in order.
	for _, c := range r.queue.Flush(tick) {
		r.routeCommand(c)
	}

	r.mu.Lock()
	units := r.unitsSortedByID()
	r.mu.Unlock()
	r.metrics.SetActiveUnits(r.ID, len(units))

	// Step 3: sync kinematic bodies to their unit's authoritative position
	// before anything else reads the physics world this tick.
	if r.physWorld != nil {
		for _, u := range units {
			if u.PhysicsMode == unit.Kinematic && u.RigidBody != nil {
				_ = r.physWorld.SetPosition(u.RigidBody.Body, u.Position)
				_ = r.physWorld.SetOrientation(u.RigidBody.Body, u.Orientation)
			}
		}
	}

	// Step 4: advance every unit's own kinematics (or blend-down mix).
	for _, u := range units {
		_ = u.UpdatePosition(dt, r.terrainField, r.physAccessor())
	}

	if r.physWorld == nil {
		r.broadcastSnapshot(tick)
		return nil
	}

	// Step 5a: sub-step the physics world (spherical gravity applied
	// internally, once per sub-step).
	if err := r.physWorld.Step(); err != nil {
		return err
	}

	// Step 5b: sync every still-dynamic unit from its rigid body, advancing
	// settle/takeover bookkeeping.
	for _, u := range units {
		if u.PhysicsMode != unit.Dynamic || u.RigidBody == nil {
			continue
		}
		body, err := r.physWorld.GetBody(u.RigidBody.Body)
		if err != nil {
			continue
		}
		if u.SettleConditionsMet(body) {
			_ = u.SettleDynamic(r.physWorld, r.terrainField)
			continue
		}
		u.CheckTakeoverReady(r.terrainField, body)
	}

	// Step 5c: slope-rollover trigger for every still-kinematic unit.
	for _, u := range units {
		if u.PhysicsMode != unit.Kinematic {
			continue
		}
		if enter, impulse := u.CheckSlopeRollover(r.terrainField); enter {
			_ = u.EnterDynamic(r.physWorld, r.terrainField, &impulse)
		}
	}

	// Step 5d: drain same-tick collision events and dispatch by collider
	// ownership.
	r.drainCollisionEvents()

	// Step 5e: proximity passes for contacts the event stream may have
	// missed, per spec.md §9's open question about kinematic-kinematic
	// events.
	r.mu.Lock()
	obstacles := r.obstacleContacts()
	r.mu.Unlock()
	r.applyEventResults(r.collisionSvc.CheckKinematicCollisions(units))
	r.applyEventResults(r.collisionSvc.CheckObstacleCollisions(units, obstacles))

	// Step 5f: mine contacts — pure proximity service, consumed on trigger.
	r.mu.Lock()
	mines := r.mineContacts()
	r.mu.Unlock()
	mineResults, detonated := r.collisionSvc.CheckMineContacts(units, mines, r.terrainField)
	r.applyEventResults(mineResults)
	for _, id := range detonated {
		r.RemoveMine(id)
		r.metrics.MineDetonated()
	}

	// Step 5g: just-in-time terrain colliders around every dynamic body.
	r.updateTerrainColliders(units)

	// Step 6: snapshot + broadcast.
	r.broadcastSnapshot(tick)
	return nil
}

// physAccessor returns the unit.PhysicsAccessor units should drive, or nil
// when the room has no physics world (units then run purely kinematically,
// snapping to terrain every tick as §4.5 describes).
func (r *Room) physAccessor() unit.PhysicsAccessor {
	if r.physWorld == nil {
		return nil
	}
	return r.physWorld
}

func (r *Room) obstacleContacts() []events.ObstacleContact {
	contacts := make([]events.ObstacleContact, 0, len(r.obstacles))
	for _, o := range r.obstacles {
		contacts = append(contacts, events.ObstacleContact{Handle: o.Handle, Position: o.Position, Radius: o.Radius})
	}
	return contacts
}

func (r *Room) mineContacts() []events.MineContact {
	contacts := make([]events.MineContact, 0, len(r.mines))
	for _, m := range r.mines {
		contacts = append(contacts, events.MineContact{
			ID: m.ID, Position: m.Position, TriggerRadius: m.TriggerRadius,
			Upward: m.Upward, Radial: m.Radial, Blast: m.Blast,
		})
	}
	return contacts
}

// drainCollisionEvents resolves every started contact this tick's Step
// reported, identifying each collider's owner (unit or obstacle) and
// dispatching to the collision service, per spec.md §4.7.
func (r *Room) drainCollisionEvents() {
	var unitUnit [][2]int
	var unitObstacle []struct {
		unitID   int
		obstacle int
	}

	_ = r.physWorld.DrainCollisionEvents(func(ev physics.CollisionEvent) {
		if !ev.Started {
			return
		}
		r.mu.Lock()
		uA, aIsUnit := r.colliderToUnit[ev.ColliderA]
		uB, bIsUnit := r.colliderToUnit[ev.ColliderB]
		oA, aIsObstacle := r.colliderToObstacle[ev.ColliderA]
		oB, bIsObstacle := r.colliderToObstacle[ev.ColliderB]
		r.mu.Unlock()

		switch {
		case aIsUnit && bIsUnit:
			unitUnit = append(unitUnit, [2]int{uA, uB})
		case aIsUnit && bIsObstacle:
			unitObstacle = append(unitObstacle, struct {
				unitID   int
				obstacle int
			}{uA, oB})
		case bIsUnit && aIsObstacle:
			unitObstacle = append(unitObstacle, struct {
				unitID   int
				obstacle int
			}{uB, oA})
		}
	})

	for _, pair := range unitUnit {
		r.mu.Lock()
		a, aok := r.unitByID(pair[0])
		b, bok := r.unitByID(pair[1])
		r.mu.Unlock()
		if !aok || !bok {
			continue
		}
		r.applyEventResults(r.collisionSvc.ResolveUnitUnitContact(a, b))
	}
	for _, pair := range unitObstacle {
		r.mu.Lock()
		u, uok := r.unitByID(pair.unitID)
		o, ook := r.obstacles[pair.obstacle]
		var contact events.ObstacleContact
		if ook {
			contact = events.ObstacleContact{Handle: o.Handle, Position: o.Position, Radius: o.Radius}
		}
		r.mu.Unlock()
		if !uok || !ook {
			continue
		}
		r.applyEventResults(r.collisionSvc.ResolveUnitObstacleContact(u, contact))
	}
}

// updateTerrainColliders generates missing patches around every dynamic
// unit and evicts patches too far from all of them, per spec.md §4.4/§4.7.
func (r *Room) updateTerrainColliders(units []*unit.Unit) {
	var dynamicPositions []mathvec.Vec3
	for _, u := range units {
		if u.PhysicsMode == unit.Dynamic {
			dynamicPositions = append(dynamicPositions, u.Position)
		}
	}
	for _, pos := range dynamicPositions {
		r.collider.EnsurePatchesAround(pos, patchCoverageRadius)
	}
	evicted := r.collider.EvictDistant(dynamicPositions, evictDistanceFactor*r.collider.PatchSize())
	for i := 0; i < evicted; i++ {
		r.metrics.PatchEvicted()
	}
}
