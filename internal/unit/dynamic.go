package unit

import (
	"errors"
	"math"

	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/physics"
)

// ErrNoRigidBody is returned by any dynamic-mode transition attempted on a
// unit that was never given a rigid body (internal/room creates one for
// every unit in a physics-enabled room).
var ErrNoRigidBody = errors.New("unit: no rigid body attached")

// preSnapMargin keeps the cuboid from spawning already overlapping terrain
// when entering dynamic mode on a slope.
const preSnapMargin = 0.02

// EnterDynamic hands control of the unit to the physics world: the body
// switches to dynamic, any active path is abandoned, and an optional
// impulse (e.g. an explosion or a slope-rollover kick) is applied. The
// "gravity-scale 0" sub-step named in spec.md §4.5 offsets a built-in
// engine gravity vector that our from-scratch solver never had in the
// first place (spherical gravity always applies to every dynamic body
// regardless of any per-body scale, per spec.md §4.3), so it is not
// replicated here — see DESIGN.md.
func (u *Unit) EnterDynamic(phys PhysicsAccessor, surface SurfaceProvider, impulse *mathvec.Vec3) error {
	if u.RigidBody == nil {
		return ErrNoRigidBody
	}
	u.terrainSnapped = true
	u.Waypoints = nil
	u.WaypointIdx = 0
	u.Velocity = mathvec.Vec3{}
	u.Speed = 0

	dir := mathvec.Normalize(u.Position)
	minRadius := surface.RadiusAt(dir) + CuboidHalfY + preSnapMargin
	if mathvec.Length(u.Position) < minRadius {
		u.Position = mathvec.Scale(dir, minRadius)
	}

	if err := phys.SetBodyType(u.RigidBody.Body, physics.BodyDynamic); err != nil {
		return err
	}
	if err := phys.SetColliderSensor(u.RigidBody.Collider, false); err != nil {
		return err
	}
	if err := phys.SetDamping(u.RigidBody.Body, 0.3, 0.3); err != nil {
		return err
	}
	if err := phys.SetCCD(u.RigidBody.Body, true); err != nil {
		return err
	}
	if err := phys.SetPosition(u.RigidBody.Body, u.Position); err != nil {
		return err
	}
	if err := phys.SetOrientation(u.RigidBody.Body, u.Orientation); err != nil {
		return err
	}
	if err := phys.SetLinearVelocity(u.RigidBody.Body, mathvec.Vec3{}); err != nil {
		return err
	}
	if err := phys.SetAngularVelocity(u.RigidBody.Body, mathvec.Vec3{}); err != nil {
		return err
	}
	if impulse != nil && mathvec.IsValid(*impulse) {
		if err := phys.ApplyImpulse(u.RigidBody.Body, *impulse); err != nil {
			return err
		}
	}

	u.PhysicsMode = Dynamic
	u.takeoverReadyTicks = 0
	u.settleTicks = 0
	u.blending = false
	u.blendFactor = 0
	return nil
}

// exitCommon reads the rigid body's final pose back onto the unit and
// restores the body to its KINEMATIC-safe configuration (sensor collider,
// zero damping/CCD, zeroed velocities).
func (u *Unit) exitCommon(phys PhysicsAccessor, surface SurfaceProvider) (physics.Body, error) {
	body, err := phys.GetBody(u.RigidBody.Body)
	if err != nil {
		return physics.Body{}, err
	}
	u.Position = body.Position

	if err := phys.SetBodyType(u.RigidBody.Body, physics.BodyKinematic); err != nil {
		return physics.Body{}, err
	}
	if err := phys.SetLinearVelocity(u.RigidBody.Body, mathvec.Vec3{}); err != nil {
		return physics.Body{}, err
	}
	if err := phys.SetAngularVelocity(u.RigidBody.Body, mathvec.Vec3{}); err != nil {
		return physics.Body{}, err
	}
	if err := phys.SetColliderSensor(u.RigidBody.Collider, true); err != nil {
		return physics.Body{}, err
	}
	if err := phys.SetDamping(u.RigidBody.Body, 0, 0); err != nil {
		return physics.Body{}, err
	}
	if err := phys.SetCCD(u.RigidBody.Body, false); err != nil {
		return physics.Body{}, err
	}

	up := surface.NormalAt(u.Position)
	tangentVel := mathvec.ProjectOntoPlane(body.LinVel, up)
	u.Velocity = tangentVel
	u.Speed = mathvec.Length(tangentVel)
	return body, nil
}

// ExitDynamic is invoked when the blend-down ramp reaches zero: the unit
// returns to KINEMATIC control with its heading derived from the rigid
// body's exit velocity (or, if it came to rest, its exit facing), and a
// post-exit orientation blend begins so the cross-fade (initiated in
// advanceBlendDown) has a smooth visual finish.
func (u *Unit) ExitDynamic(phys PhysicsAccessor, surface SurfaceProvider) error {
	body, err := u.exitCommon(phys, surface)
	if err != nil {
		return err
	}

	up := surface.NormalAt(u.Position)
	if u.Speed > headingMotionEpsilon {
		u.Heading = headingFromTangent(u.Velocity, up, u.Position)
	} else {
		tangentForward := mathvec.ProjectOntoPlane(mathvec.LocalForward(body.Orientation), up)
		if mathvec.LengthSq(tangentForward) > tangentEpsilon {
			u.Heading = headingFromTangent(tangentForward, up, u.Position)
		}
	}

	u.PhysicsMode = Kinematic
	u.reentryCooldown = ReentryCooldownTicks
	u.takeoverReadyTicks = 0
	u.blending = false
	u.blendFactor = 0
	u.rapierExitQuat = mathvec.NormalizeQuat(body.Orientation)
	u.orientationBlendElapsed = 0
	return nil
}

// SettleDynamic is invoked once a DYNAMIC unit has held near-zero linear and
// angular velocity for SettleDurationTicks: control returns to a frozen
// KINEMATIC body, but unlike ExitDynamic the tumbled orientation is kept
// permanently (no orientation blend) since the unit is now inert.
func (u *Unit) SettleDynamic(phys PhysicsAccessor, surface SurfaceProvider) error {
	body, err := u.exitCommon(phys, surface)
	if err != nil {
		return err
	}
	u.Orientation = mathvec.NormalizeQuat(body.Orientation)
	u.PhysicsMode = Settled
	u.blending = false
	u.blendFactor = 0
	u.orientationBlendElapsed = BlendDurationSeconds
	return nil
}

// SyncFromRigidBody copies the live rigid-body velocities onto the unit so
// the takeover-ready gate and settle-conditions check can evaluate motion
// without calling back into the physics world themselves. internal/room
// calls this once per DYNAMIC unit, every tick, right after physics.Step.
func (u *Unit) SyncFromRigidBody(body physics.Body) {
	u.lastBodyLinVel = body.LinVel
	u.lastBodyAngVel = body.AngVel
	u.Position = body.Position
}

// CheckTakeoverReady evaluates the triple grounding/orientation/motion gate
// against the unit's last synced rigid-body state, incrementing or
// resetting the debounce counter, and reports whether the debounce has
// been held long enough to allow re-entering kinematic control.
func (u *Unit) CheckTakeoverReady(surface SurfaceProvider, body physics.Body) bool {
	u.SyncFromRigidBody(body)

	dir := mathvec.Normalize(u.Position)
	groundRadius := surface.RadiusAt(dir) + CuboidHalfY
	actualRadius := mathvec.Length(u.Position)
	grounded := math.Abs(actualRadius-groundRadius) <= TakeoverGroundEpsilonMeters

	localUp := mathvec.LocalUp(body.Orientation)
	normal := surface.NormalAt(u.Position)
	orientationOK := mathvec.Dot(localUp, normal) >= math.Cos(TakeoverTiltRad)

	linSpeed := mathvec.Length(u.lastBodyLinVel)
	angSpeed := mathvec.Length(u.lastBodyAngVel)
	motionOK := linSpeed <= TakeoverLinVelThreshold && angSpeed <= TakeoverAngVelThreshold

	if grounded && orientationOK && motionOK {
		u.takeoverReadyTicks++
	} else {
		u.takeoverReadyTicks = 0
	}
	return u.takeoverReadyTicks >= TakeoverDebounceTicks
}

// SettleConditionsMet evaluates whether the unit's last synced rigid-body
// velocities have stayed below the settle thresholds for SettleDurationTicks
// in a row.
func (u *Unit) SettleConditionsMet(body physics.Body) bool {
	u.SyncFromRigidBody(body)
	linSpeed := mathvec.Length(body.LinVel)
	angSpeed := mathvec.Length(body.AngVel)
	if linSpeed <= SettleLinearThreshold && angSpeed <= SettleAngularThreshold {
		u.settleTicks++
	} else {
		u.settleTicks = 0
	}
	return u.settleTicks >= SettleDurationTicks
}

// IsBlending reports whether the cross-fade back to kinematic control is in
// progress, per the Room orchestration note in spec.md §4.7 step 5: a
// blending unit exits via advanceBlendDown reaching zero, not via the
// ordinary settle check.
func (u *Unit) IsBlending() bool { return u.blending }

// startBlendDown begins the cross-fade from rigid-body motion back to
// kinematic control, capturing the rigid body's current tangential velocity
// as the decaying "inherited" component of the mix.
func (u *Unit) startBlendDown(surface SurfaceProvider) {
	up := surface.NormalAt(u.Position)
	u.inheritedTangentVel = mathvec.ProjectOntoPlane(u.lastBodyLinVel, up)
	u.blending = true
	u.blendFactor = 1
}

// advanceBlendDown mixes the player's live WASD velocity with the decaying
// inherited rigid-body velocity, applies soft spring correction toward the
// terrain, and — once the ramp reaches zero — hands off to ExitDynamic.
func (u *Unit) advanceBlendDown(dt float64, surface SurfaceProvider, phys PhysicsAccessor) error {
	u.inheritedTangentVel = mathvec.Scale(u.inheritedTangentVel, BlendVelocityDecayRatio)

	mixed := mathvec.Add(
		mathvec.Scale(u.Velocity, 1-u.blendFactor),
		mathvec.Scale(u.inheritedTangentVel, u.blendFactor),
	)
	u.Position = mathvec.Add(u.Position, mathvec.Scale(mixed, dt))

	dir := mathvec.Normalize(u.Position)
	ideal := surface.RadiusAt(dir) + CuboidHalfY
	current := mathvec.Length(u.Position)
	step := clampAbs((ideal-current)*SpringGain, MaxCorrectionStep)
	u.Position = mathvec.Scale(dir, current+step)

	if err := phys.SetPosition(u.RigidBody.Body, u.Position); err != nil {
		return err
	}
	if err := phys.SetLinearVelocity(u.RigidBody.Body, mathvec.Vec3{}); err != nil {
		return err
	}

	u.updateOrientation(dt, surface)

	u.blendFactor -= dt / BlendDurationSeconds
	if u.blendFactor <= 0 {
		u.blendFactor = 0
		return u.ExitDynamic(phys, surface)
	}
	return nil
}
