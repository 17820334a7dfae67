package unit

import (
	"math"

	"github.com/asterobia/core/internal/mathvec"
)

// ApplyInput folds one tick's directional input into the unit's tangential
// velocity and heading, per spec.md §4.5:
//   - SETTLED: no-op, the unit is inert.
//   - DYNAMIC: ignored until takeover-ready has been held for
//     TakeoverDebounceTicks; once ready, any directional bit starts the
//     blend-down ramp and the WASD components are folded into Velocity as
//     normal (they drive the kinematic half of the blend mix).
//   - KINEMATIC: any directional bit cancels an active path; the four bits
//     combine into a tangent-plane vector, normalized so a diagonal press
//     moves at the same speed as a single direction.
func (u *Unit) ApplyInput(in MoveInput, surface SurfaceProvider) {
	switch u.PhysicsMode {
	case Settled:
		return
	case Dynamic:
		if u.takeoverReadyTicks < TakeoverDebounceTicks {
			return
		}
		if in.any() && !u.blending {
			u.startBlendDown(surface)
		}
		u.applyTangentInput(in, surface)
		return
	}

	if in.any() {
		u.Waypoints = nil
		u.WaypointIdx = 0
	}
	u.applyTangentInput(in, surface)
}

func (u *Unit) applyTangentInput(in MoveInput, surface SurfaceProvider) {
	fwd := 0.0
	if in.Forward {
		fwd++
	}
	if in.Backward {
		fwd--
	}
	rgt := 0.0
	if in.Right {
		rgt++
	}
	if in.Left {
		rgt--
	}

	mag := mathvec.Length(mathvec.Vec3{X: rgt, Y: 0, Z: fwd})
	if mag > tangentEpsilon {
		fwd /= mag
		rgt /= mag
	}

	speed := u.MoveSpeed
	if speed <= 0 {
		speed = DefaultMoveSpeed
	}

	up := surface.NormalAt(u.Position)
	forward, right := tangentBasis(u.Position, up)
	u.Velocity = mathvec.Add(mathvec.Scale(forward, fwd*speed), mathvec.Scale(right, rgt*speed))
	u.Speed = mathvec.Length(u.Velocity)

	if mag > tangentEpsilon {
		u.Heading = math.Atan2(rgt, fwd)
	}
}
