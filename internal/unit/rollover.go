package unit

import (
	"math"

	"github.com/asterobia/core/internal/mathvec"
)

// CheckSlopeRollover evaluates the debounced tilt-angle trigger: while
// KINEMATIC and outside the post-exit reentry cooldown, if the angle
// between the unit's local up and the radial "up" exceeds RolloverThreshold
// for SlopeDebounceTicks consecutive ticks, the unit should roll over into
// DYNAMIC mode. On trigger it returns the down-slope impulse to apply via
// EnterDynamic, per spec.md §4.5.
func (u *Unit) CheckSlopeRollover(surface SurfaceProvider) (shouldEnter bool, impulse mathvec.Vec3) {
	if u.PhysicsMode != Kinematic || u.reentryCooldown > 0 {
		u.slopeDebounceTicks = 0
		return false, mathvec.Vec3{}
	}

	threshold := u.RolloverThreshold
	if threshold <= 0 {
		threshold = RolloverThresholdRad
	}

	localUp := mathvec.LocalUp(u.Orientation)
	radial := mathvec.Normalize(u.Position)
	angle := math.Acos(clampUnit(mathvec.Dot(localUp, radial)))

	if angle <= threshold {
		u.slopeDebounceTicks = 0
		return false, mathvec.Vec3{}
	}

	u.slopeDebounceTicks++
	if u.slopeDebounceTicks < SlopeDebounceTicks {
		return false, mathvec.Vec3{}
	}
	u.slopeDebounceTicks = 0

	tangentTilt := mathvec.ProjectOntoPlane(localUp, radial)
	if mathvec.LengthSq(tangentTilt) < tangentEpsilon {
		return true, mathvec.Vec3{}
	}
	downSlope := mathvec.Normalize(mathvec.Scale(tangentTilt, -1))
	return true, mathvec.Scale(downSlope, SlopeImpulseStrength)
}
