package physics

import "github.com/asterobia/core/internal/mathvec"

// BodyType is the rigid-body solver's notion of how a body is driven.
type BodyType int

const (
	BodyFixed BodyType = iota
	BodyKinematic
	BodyDynamic
)

// BodyHandle is an opaque, arena-style reference to a Body; the World owns
// the actual struct, per the "cyclic references -> arenas + handles" design
// note.
type BodyHandle int

// ColliderHandle is an opaque reference to a Collider.
type ColliderHandle int

// ColliderShape distinguishes the two shapes spec.md §4.3 names.
type ColliderShape int

const (
	ColliderBall ColliderShape = iota
	ColliderTrimesh
)

// Body is a rigid body owned by a World.
type Body struct {
	Handle BodyHandle
	Type   BodyType

	Position    mathvec.Vec3
	Orientation mathvec.Quat
	LinVel      mathvec.Vec3
	AngVel      mathvec.Vec3

	Mass           float64
	LinearDamping  float64
	AngularDamping float64
	CCD            bool
	GravityScale   float64 // 0 disables spherical gravity for this body

	colliders []ColliderHandle
}

// Collider is a shape attached to a Body.
type Collider struct {
	Handle ColliderHandle
	Body   BodyHandle
	Shape  ColliderShape

	Radius float64 // meaningful for ColliderBall

	Sensor        bool
	EventsEnabled bool
}

// CollisionEvent reports a contact transition between two colliders during
// a single Step call, per spec.md §4.3's drain_collision_events.
type CollisionEvent struct {
	ColliderA ColliderHandle
	ColliderB ColliderHandle
	Started   bool
}
