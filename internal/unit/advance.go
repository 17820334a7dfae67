package unit

import "github.com/asterobia/core/internal/mathvec"

// UpdatePosition advances the unit by dt seconds, per spec.md §4.5:
//   - SETTLED: no-op.
//   - DYNAMIC: if blending down, mixes toward the inherited rigid-body
//     velocity and applies soft terrain correction; otherwise the rigid
//     body (not this method) owns position entirely.
//   - path-following: advances toward the current waypoint.
//   - KINEMATIC: integrates tangent velocity, handles airborne free-fall,
//     and either hard-snaps to terrain (while moving, or on the unit's
//     first-ever idle tick) or spring-corrects toward it (while idle
//     thereafter).
// Orientation is recomputed at the end of every non-SETTLED branch.
func (u *Unit) UpdatePosition(dt float64, surface SurfaceProvider, phys PhysicsAccessor) error {
	if u.reentryCooldown > 0 {
		u.reentryCooldown--
	}

	switch u.PhysicsMode {
	case Settled:
		return nil
	case Dynamic:
		if u.blending {
			return u.advanceBlendDown(dt, surface, phys)
		}
		return nil
	}

	if len(u.Waypoints) > 0 {
		u.advancePath(dt, surface)
		u.updateOrientation(dt, surface)
		return nil
	}

	u.Position = mathvec.Add(u.Position, mathvec.Scale(u.Velocity, dt))

	if u.MovementMode == Airborne {
		u.VerticalVelocity -= KinematicAirborneGravity * dt
		u.Altitude += u.VerticalVelocity * dt
		if u.Altitude <= 0 {
			u.Altitude = 0
			u.VerticalVelocity = 0
			u.MovementMode = Grounded
		}
	}

	dir := mathvec.Normalize(u.Position)
	currentRadius := mathvec.Length(u.Position)
	idealRadius := surface.RadiusAt(dir) + CuboidHalfY + u.Altitude

	moving := mathvec.LengthSq(u.Velocity) > tangentEpsilon || u.MovementMode == Airborne
	if moving || !u.terrainSnapped {
		u.Position = mathvec.Scale(dir, idealRadius)
		u.terrainSnapped = true
	} else {
		step := clampAbs((idealRadius-currentRadius)*SpringGain, MaxCorrectionStep)
		u.Position = mathvec.Scale(dir, currentRadius+step)
	}

	u.updateOrientation(dt, surface)
	return nil
}

// advancePath moves the unit toward its current waypoint at MoveSpeed,
// advancing WaypointIdx (wrapping if PathClosed, clearing the path
// otherwise) on arrival, then hard-snapping to terrain.
func (u *Unit) advancePath(dt float64, surface SurfaceProvider) {
	target := u.Waypoints[u.WaypointIdx]
	toTarget := mathvec.Sub(target, u.Position)
	dist := mathvec.Length(toTarget)

	speed := u.MoveSpeed
	if speed <= 0 {
		speed = DefaultMoveSpeed
	}
	step := speed * dt

	if dist <= step {
		u.Position = target
		u.WaypointIdx++
		if u.WaypointIdx >= len(u.Waypoints) {
			if u.PathClosed {
				u.WaypointIdx = 0
			} else {
				u.Waypoints = nil
				u.WaypointIdx = 0
			}
		}
	} else {
		moveDir := mathvec.Scale(toTarget, 1/dist)
		u.Position = mathvec.Add(u.Position, mathvec.Scale(moveDir, step))

		up := surface.NormalAt(u.Position)
		tangentDir := mathvec.ProjectOntoPlane(moveDir, up)
		if mathvec.LengthSq(tangentDir) > tangentEpsilon {
			u.Heading = headingFromTangent(tangentDir, up, u.Position)
		}
	}

	dir := mathvec.Normalize(u.Position)
	u.Position = mathvec.Scale(dir, surface.RadiusAt(dir)+CuboidHalfY)
}

// updateOrientation rebuilds the unit's orientation from heading and the
// local surface normal, or advances the post-exit-dynamic blend if one is
// in progress.
func (u *Unit) updateOrientation(dt float64, surface SurfaceProvider) {
	if u.orientationBlendElapsed < BlendDurationSeconds && u.PhysicsMode == Kinematic && u.rapierExitQuat != (mathvec.Quat{}) {
		u.advanceOrientationBlend(dt, surface)
		return
	}
	up := surface.NormalAt(u.Position)
	forward := forwardFromHeading(u.Heading, u.Position, up)
	u.Orientation = mathvec.LookRotation(forward, up)
}

func (u *Unit) advanceOrientationBlend(dt float64, surface SurfaceProvider) {
	up := surface.NormalAt(u.Position)
	forward := forwardFromHeading(u.Heading, u.Position, up)
	target := mathvec.LookRotation(forward, up)

	u.orientationBlendElapsed += dt
	factor := u.orientationBlendElapsed / BlendDurationSeconds
	if factor >= 1 {
		factor = 1
		u.rapierExitQuat = mathvec.Quat{}
	}
	u.Orientation = mathvec.Slerp(u.rapierExitQuat, target, factor)
}
