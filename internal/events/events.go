// Package events implements the pure gameplay event services named in
// spec.md §4.7: PhysicsEventService (radial/directed impulse) and
// CollisionService (kinematic-kinematic, unit-obstacle, and mine contact
// resolution). Every entry point here is a pure function over its
// arguments — no clock reads, no randomness, no held state beyond
// configuration — with NaN/Infinity defense and id-sorted deterministic
// ordering, per spec.md §7 and §5 (Numeric-hazard handling, determinism
// discipline).
package events

import (
	"math"
	"sort"

	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/unit"
)

// Kind tags which gameplay event produced a Result, per the Design Note
// "dynamic dispatch / inheritance -> tagged variants" in spec.md §9.
type Kind int

const (
	KindRadial Kind = iota
	KindDirected
	KindKinematicCollision
	KindObstacleCollision
	KindMineDetonation
)

// Result is one unit's outward impulse from a gameplay event. The caller
// (internal/room) is responsible for applying it via Unit.EnterDynamic —
// these services never mutate a Unit or touch a physics.World directly,
// keeping them pure and independently testable.
type Result struct {
	Kind    Kind
	UnitID  int
	Impulse mathvec.Vec3
}

// Tunables per spec.md §6's "Constants (normative)" table.
const (
	DefaultMaxRadius   = 50.0
	DefaultMaxImpulse  = 20.0
	DefaultMaxAffected = 16
	CollisionImpulse   = 5.0

	zeroDirectionEpsilon = 1e-6
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func isFiniteScalar(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// PhysicsEventService produces the impulses for radial (explosion) and
// directed events, per spec.md §4.7 and §6's physics-event constants.
type PhysicsEventService struct {
	MaxRadius   float64
	MaxImpulse  float64
	MaxAffected int
}

// NewPhysicsEventService constructs a service with the spec's default caps.
func NewPhysicsEventService() *PhysicsEventService {
	return &PhysicsEventService{
		MaxRadius:   DefaultMaxRadius,
		MaxImpulse:  DefaultMaxImpulse,
		MaxAffected: DefaultMaxAffected,
	}
}

// RadialImpulse computes an outward, distance-falloff impulse for every
// unit within radius of center, skipping units exactly at center (the
// zero-direction guard spec.md §8 requires) and truncating at MaxAffected.
// Malformed input (non-finite center/radius/strength) yields no impulses
// at all, per the Numeric-hazard rule: "the event is a no-op ... no
// partial application."
func (s *PhysicsEventService) RadialImpulse(units []*unit.Unit, center mathvec.Vec3, radius, strength float64) []Result {
	if !mathvec.IsFinite(center) || !isFiniteScalar(radius) || !isFiniteScalar(strength) {
		return nil
	}
	if radius <= 0 || strength <= 0 {
		return nil
	}
	radius = clamp(radius, 0, s.maxRadius())
	strength = clamp(strength, 0, s.maxImpulse())

	ordered := sortedByID(units)

	var results []Result
	for _, u := range ordered {
		if len(results) >= s.maxAffected() {
			break
		}
		dir := mathvec.Sub(u.Position, center)
		dist := mathvec.Length(dir)
		if dist < zeroDirectionEpsilon || dist > radius {
			continue
		}
		falloff := 1 - dist/radius
		magnitude := strength * falloff
		if magnitude <= 0 {
			continue
		}
		impulse := mathvec.Scale(mathvec.Normalize(dir), magnitude)
		results = append(results, Result{Kind: KindRadial, UnitID: u.ID, Impulse: impulse})
	}
	return results
}

// DirectedImpulse produces a single impulse along direction, scaled by
// strength and capped at MaxImpulse. Reports false (no-op) for a
// non-finite or zero-length direction, or non-positive strength.
func (s *PhysicsEventService) DirectedImpulse(unitID int, direction mathvec.Vec3, strength float64) (Result, bool) {
	if !mathvec.IsFinite(direction) || !isFiniteScalar(strength) || strength <= 0 {
		return Result{}, false
	}
	length := mathvec.Length(direction)
	if length < zeroDirectionEpsilon {
		return Result{}, false
	}
	strength = clamp(strength, 0, s.maxImpulse())
	impulse := mathvec.Scale(direction, strength/length)
	return Result{Kind: KindDirected, UnitID: unitID, Impulse: impulse}, true
}

func (s *PhysicsEventService) maxRadius() float64 {
	if s.MaxRadius > 0 {
		return s.MaxRadius
	}
	return DefaultMaxRadius
}

func (s *PhysicsEventService) maxImpulse() float64 {
	if s.MaxImpulse > 0 {
		return s.MaxImpulse
	}
	return DefaultMaxImpulse
}

func (s *PhysicsEventService) maxAffected() int {
	if s.MaxAffected > 0 {
		return s.MaxAffected
	}
	return DefaultMaxAffected
}

func sortedByID(units []*unit.Unit) []*unit.Unit {
	ordered := make([]*unit.Unit, len(units))
	copy(ordered, units)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })
	return ordered
}
