package events

import (
	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/unit"
)

// unitCollisionRadius is the broad-phase radius used for kinematic contact
// tests, matching the ball collider radius internal/room gives each unit
// (the cuboid's half-height, CuboidHalfY).
const unitCollisionRadius = unit.CuboidHalfY

// ObstacleContact is the subset of a room's Obstacle the collision service
// needs, passed in by value so this package never imports internal/room
// (which in turn imports internal/events).
type ObstacleContact struct {
	Handle   int
	Position mathvec.Vec3
	Radius   float64
}

// MineContact is the subset of a room's Mine the collision service needs.
type MineContact struct {
	ID            int
	Position      mathvec.Vec3
	TriggerRadius float64
	Upward        float64
	Radial        float64
	Blast         float64
}

// SurfaceProvider is the minimal terrain query the mine handler needs to
// give detonations a vertical ("upward") component. terrain.Field satisfies
// this structurally.
type SurfaceProvider interface {
	NormalAt(pos mathvec.Vec3) mathvec.Vec3
}

// CollisionService resolves kinematic-kinematic, unit-obstacle, and mine
// contacts into outward impulses, per spec.md §4.7. It layers a
// proximity-based pass (CheckKinematicCollisions / CheckObstacleCollisions)
// over whatever the physics world's own contact-event stream reports,
// because spec.md §9's open question notes kinematic-kinematic events
// aren't reliably emitted by the rigid-body solver.
type CollisionService struct {
	Impulse float64
}

// NewCollisionService constructs a service using the spec's default
// collision-impulse magnitude.
func NewCollisionService() *CollisionService {
	return &CollisionService{Impulse: CollisionImpulse}
}

func (c *CollisionService) impulseMagnitude() float64 {
	if c.Impulse > 0 {
		return c.Impulse
	}
	return CollisionImpulse
}

// ResolveUnitUnitContact produces the pair of outward impulses for two
// overlapping kinematic units — both ends of the contact bounce apart along
// the line between them, with the lower-id unit always processed first so
// results are deterministic regardless of iteration order.
func (c *CollisionService) ResolveUnitUnitContact(a, b *unit.Unit) []Result {
	if a.ID > b.ID {
		a, b = b, a
	}
	delta := mathvec.Sub(b.Position, a.Position)
	dist := mathvec.Length(delta)
	if dist < zeroDirectionEpsilon {
		return nil
	}
	normal := mathvec.Scale(delta, 1/dist)
	mag := c.impulseMagnitude()
	return []Result{
		{Kind: KindKinematicCollision, UnitID: a.ID, Impulse: mathvec.Scale(normal, -mag)},
		{Kind: KindKinematicCollision, UnitID: b.ID, Impulse: mathvec.Scale(normal, mag)},
	}
}

// ResolveUnitObstacleContact pushes a unit directly away from a fixed
// obstacle it has touched.
func (c *CollisionService) ResolveUnitObstacleContact(u *unit.Unit, obstacle ObstacleContact) []Result {
	delta := mathvec.Sub(u.Position, obstacle.Position)
	dist := mathvec.Length(delta)
	if dist < zeroDirectionEpsilon {
		return nil
	}
	normal := mathvec.Scale(delta, 1/dist)
	return []Result{
		{Kind: KindObstacleCollision, UnitID: u.ID, Impulse: mathvec.Scale(normal, c.impulseMagnitude())},
	}
}

// CheckKinematicCollisions scans every pair of KINEMATIC units in id order
// for proximity overlap the event stream may have missed, resolving each
// overlapping pair exactly once.
func (c *CollisionService) CheckKinematicCollisions(units []*unit.Unit) []Result {
	ordered := sortedByID(units)
	var results []Result
	for i := 0; i < len(ordered); i++ {
		a := ordered[i]
		if a.PhysicsMode != unit.Kinematic {
			continue
		}
		for j := i + 1; j < len(ordered); j++ {
			b := ordered[j]
			if b.PhysicsMode != unit.Kinematic {
				continue
			}
			if mathvec.Distance(a.Position, b.Position) >= 2*unitCollisionRadius {
				continue
			}
			results = append(results, c.ResolveUnitUnitContact(a, b)...)
		}
	}
	return results
}

// CheckObstacleCollisions scans every KINEMATIC unit against every
// obstacle, in id order, for proximity overlap missed by the event stream.
func (c *CollisionService) CheckObstacleCollisions(units []*unit.Unit, obstacles []ObstacleContact) []Result {
	ordered := sortedByID(units)
	var results []Result
	for _, u := range ordered {
		if u.PhysicsMode != unit.Kinematic {
			continue
		}
		for _, obstacle := range obstacles {
			if mathvec.Distance(u.Position, obstacle.Position) >= obstacle.Radius+unitCollisionRadius {
				continue
			}
			results = append(results, c.ResolveUnitObstacleContact(u, obstacle)...)
		}
	}
	return results
}

// CheckMineContacts detonates every mine that has at least one KINEMATIC
// unit within its trigger radius, applying a blast-radius falloff impulse
// (radial in the tangent plane plus a vertical component along the local
// surface normal) to every unit within blast radius, mines processed in id
// order and each consumed on its first trigger (spec.md §3, §4.7). Returns
// the impulse results and the ids of mines that detonated, so the caller
// can remove them from room state.
func (c *CollisionService) CheckMineContacts(units []*unit.Unit, mines []MineContact, surface SurfaceProvider) ([]Result, []int) {
	orderedUnits := sortedByID(units)

	orderedMines := make([]MineContact, len(mines))
	copy(orderedMines, mines)
	sortMinesByID(orderedMines)

	var results []Result
	var detonated []int

	for _, mine := range orderedMines {
		triggered := false
		for _, u := range orderedUnits {
			if u.PhysicsMode != unit.Kinematic {
				continue
			}
			if mathvec.Distance(u.Position, mine.Position) <= mine.TriggerRadius {
				triggered = true
				break
			}
		}
		if !triggered {
			continue
		}
		detonated = append(detonated, mine.ID)

		blast := mine.Blast
		if blast <= 0 {
			continue
		}
		for _, u := range orderedUnits {
			if u.PhysicsMode != unit.Kinematic {
				continue
			}
			delta := mathvec.Sub(u.Position, mine.Position)
			dist := mathvec.Length(delta)
			if dist > blast {
				continue
			}
			falloff := 1 - dist/blast
			if falloff <= 0 {
				continue
			}

			var outward mathvec.Vec3
			if dist >= zeroDirectionEpsilon {
				outward = mathvec.Scale(delta, 1/dist)
			} else {
				outward = surface.NormalAt(u.Position)
			}
			up := surface.NormalAt(u.Position)

			impulse := mathvec.Add(
				mathvec.Scale(outward, mine.Radial*falloff),
				mathvec.Scale(up, mine.Upward*falloff),
			)
			results = append(results, Result{Kind: KindMineDetonation, UnitID: u.ID, Impulse: impulse})
		}
	}

	return results, detonated
}

func sortMinesByID(mines []MineContact) {
	for i := 1; i < len(mines); i++ {
		for j := i; j > 0 && mines[j].ID < mines[j-1].ID; j-- {
			mines[j], mines[j-1] = mines[j-1], mines[j]
		}
	}
}
