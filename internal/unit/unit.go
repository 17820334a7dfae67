// Package unit implements the headless hybrid kinematic/dynamic unit state
// machine: tangent-plane movement on a sphere while KINEMATIC, handoff to
// the physics world while DYNAMIC, and settle-in-place tumbling, per
// spec.md §4.5. Nothing here touches a socket or a renderer; a Unit is
// advanced by whatever owns it (internal/room) each tick.
package unit

import (
	"math"

	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/physics"
)

// PhysicsMode is a unit's current drive mode.
type PhysicsMode int

const (
	Kinematic PhysicsMode = iota
	Dynamic
	Settled
)

func (m PhysicsMode) String() string {
	switch m {
	case Kinematic:
		return "KINEMATIC"
	case Dynamic:
		return "DYNAMIC"
	case Settled:
		return "SETTLED"
	default:
		return "UNKNOWN"
	}
}

// MovementMode distinguishes grounded tangent-plane motion from the ballistic
// hop used by the debug drop-test / altitude admin ops.
type MovementMode int

const (
	Grounded MovementMode = iota
	Airborne
)

func (m MovementMode) String() string {
	switch m {
	case Airborne:
		return "AIRBORNE"
	default:
		return "GROUNDED"
	}
}

// Tunables, per spec.md §4.5 and §6. None of these read from the environment
// directly; internal/room wires config.GetEnv* overrides in at room-creation
// time.
const (
	DefaultMoveSpeed = 5.0

	CuboidHalfX = 0.3
	CuboidHalfY = 0.25
	CuboidHalfZ = 0.5

	KinematicAirborneGravity = 9.8

	SettleLinearThreshold  = 0.1
	SettleAngularThreshold = 0.1
	SettleDurationTicks    = 100

	RolloverThresholdRad = 25 * math.Pi / 180
	SlopeDebounceTicks   = 3
	SlopeImpulseStrength = 5.0

	ReentryCooldownTicks = 20

	TakeoverTiltRad             = 15 * math.Pi / 180
	TakeoverLinVelThreshold     = 0.5
	TakeoverAngVelThreshold     = 0.3
	TakeoverDebounceTicks       = 5
	TakeoverGroundEpsilonMeters = 0.05

	// BlendDurationSeconds also doubles as the post-exit orientation-blend
	// duration (~20 ticks at the 20Hz room rate), per the open-question
	// decision recorded in DESIGN.md.
	BlendDurationSeconds    = 1.0
	BlendVelocityDecayRatio = 0.9

	SpringGain        = 0.4
	MaxCorrectionStep = 0.05

	headingMotionEpsilon = 1e-4
	tangentEpsilon       = 1e-9
)

// RigidBodyRef is the physics-world handle pair a unit owns once a room has
// created its body and ball collider. Units never hold the *physics.World
// itself — it is always passed in by the caller (internal/room), per the
// "explicit context, no global singletons" design note.
type RigidBodyRef struct {
	Body     physics.BodyHandle
	Collider physics.ColliderHandle
}

// SurfaceProvider is the subset of terrain.Field a unit needs.
// terrain.Field satisfies this structurally.
type SurfaceProvider interface {
	RadiusAt(dir mathvec.Vec3) float64
	NormalAt(pos mathvec.Vec3) mathvec.Vec3
}

// PhysicsAccessor is the subset of *physics.World a unit needs to drive its
// own rigid body. *physics.World satisfies this structurally.
type PhysicsAccessor interface {
	SetBodyType(h physics.BodyHandle, t physics.BodyType) error
	SetPosition(h physics.BodyHandle, pos mathvec.Vec3) error
	SetOrientation(h physics.BodyHandle, q mathvec.Quat) error
	SetLinearVelocity(h physics.BodyHandle, v mathvec.Vec3) error
	SetAngularVelocity(h physics.BodyHandle, v mathvec.Vec3) error
	SetDamping(h physics.BodyHandle, linear, angular float64) error
	SetCCD(h physics.BodyHandle, enabled bool) error
	ApplyImpulse(h physics.BodyHandle, impulse mathvec.Vec3) error
	SetColliderSensor(h physics.ColliderHandle, sensor bool) error
	GetBody(h physics.BodyHandle) (physics.Body, error)
}

// MoveInput is one tick's worth of directional intent for a unit, per
// spec.md §6's MOVE_INPUT message.
type MoveInput struct {
	Forward  bool
	Backward bool
	Left     bool
	Right    bool
}

func (in MoveInput) any() bool { return in.Forward || in.Backward || in.Left || in.Right }

// Unit is one player-controlled (or uncontrolled) actor on the planet
// surface, per spec.md §3.
type Unit struct {
	ID         int
	OwnerSlot  int
	Controller *int // nil when unpossessed
	ModelIndex int

	Position    mathvec.Vec3
	Velocity    mathvec.Vec3 // tangential, meaningful while KINEMATIC
	Heading     float64      // radians, measured from tangent "north" toward "east"
	Speed       float64
	Orientation mathvec.Quat
	HP          int

	MovementMode     MovementMode
	Altitude         float64
	VerticalVelocity float64

	Waypoints   []mathvec.Vec3
	WaypointIdx int
	PathClosed  bool

	PhysicsMode PhysicsMode
	RigidBody   *RigidBodyRef

	MoveSpeed         float64
	RolloverThreshold float64 // configurable per-room override of RolloverThresholdRad

	settleTicks        int
	slopeDebounceTicks int
	reentryCooldown    int
	takeoverReadyTicks int

	blending                bool
	blendFactor             float64
	inheritedTangentVel     mathvec.Vec3
	orientationBlendElapsed float64
	rapierExitQuat          mathvec.Quat

	lastBodyLinVel mathvec.Vec3
	lastBodyAngVel mathvec.Vec3

	// terrainSnapped becomes true the first time a KINEMATIC idle tick
	// hard-snaps the unit to radius_at(...)+CuboidHalfY, per spec.md §8
	// Scenario 1 (a unit spawned at a raw manifest position reaches the
	// terrain-relative radius within its very first tick, not over several
	// bounded-spring ticks). EnterDynamic also sets it, so a later
	// ExitDynamic/SettleDynamic still "does not snap to terrain" as §4.5
	// requires — only a unit that has never been dynamic gets the one-time
	// spawn snap.
	terrainSnapped bool
}

// New constructs a Unit at position, oriented so its local up matches the
// surface normal there.
func New(id, ownerSlot, modelIndex int, position mathvec.Vec3, surface SurfaceProvider) *Unit {
	up := surface.NormalAt(position)
	u := &Unit{
		ID:                id,
		OwnerSlot:         ownerSlot,
		ModelIndex:        modelIndex,
		Position:          position,
		Orientation:       mathvec.LookRotation(mathvec.Vec3{X: 0, Y: 0, Z: -1}, up),
		HP:                100,
		MoveSpeed:         DefaultMoveSpeed,
		RolloverThreshold: RolloverThresholdRad,
	}
	refForward, _ := tangentBasis(position, up)
	u.Orientation = mathvec.LookRotation(refForward, up)
	return u
}

// AttachRigidBody associates the unit with a physics-world body+collider
// pair, created and owned by internal/room.
func (u *Unit) AttachRigidBody(ref RigidBodyRef) { u.RigidBody = &ref }

// tangentBasis returns the reference forward/right axes of the tangent
// plane at pos, degenerating gracefully at the poles where "north" (world
// +Y) projects to (near) zero.
func tangentBasis(pos, up mathvec.Vec3) (forward, right mathvec.Vec3) {
	north := mathvec.Vec3{X: 0, Y: 1, Z: 0}
	forward = mathvec.ProjectOntoPlane(north, up)
	if mathvec.LengthSq(forward) < tangentEpsilon {
		forward = mathvec.ProjectOntoPlane(mathvec.Vec3{X: 1, Y: 0, Z: 0}, up)
	}
	forward = mathvec.Normalize(forward)
	right = mathvec.Normalize(mathvec.Cross(forward, up))
	return forward, right
}

// headingFromTangent resolves a tangent-plane direction into the unit's
// heading convention: atan2 of its component along refRight over its
// component along refForward.
func headingFromTangent(dir, up, pos mathvec.Vec3) float64 {
	forward, right := tangentBasis(pos, up)
	d := mathvec.Normalize(dir)
	return math.Atan2(mathvec.Dot(d, right), mathvec.Dot(d, forward))
}

// forwardFromHeading is the inverse of headingFromTangent: the tangent
// direction a given heading faces at pos.
func forwardFromHeading(heading float64, pos, up mathvec.Vec3) mathvec.Vec3 {
	forward, right := tangentBasis(pos, up)
	dir := mathvec.Add(mathvec.Scale(forward, math.Cos(heading)), mathvec.Scale(right, math.Sin(heading)))
	return mathvec.Normalize(dir)
}

func clampAbs(v, limit float64) float64 {
	if v > limit {
		return limit
	}
	if v < -limit {
		return -limit
	}
	return v
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
