package mathvec

import "math"

// Quat is a Hamilton quaternion (X,Y,Z,W) used for orientation. Identity is
// the zero rotation.
type Quat struct {
	X, Y, Z, W float64
}

// Identity is the zero rotation.
var Identity = Quat{X: 0, Y: 0, Z: 0, W: 1}

// closenessThreshold is the dot-product cutoff above which Slerp falls back
// to linear interpolation to avoid the numerical instability of dividing by
// a near-zero sine of the half-angle.
const closenessThreshold = 0.9995

func quatLengthSq(q Quat) float64 { return q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W }

// NormalizeQuat returns a unit quaternion, falling back to Identity if q is
// (numerically) the zero quaternion.
func NormalizeQuat(q Quat) Quat {
	l := math.Sqrt(quatLengthSq(q))
	if l < 1e-9 {
		return Identity
	}
	inv := 1 / l
	return Quat{q.X * inv, q.Y * inv, q.Z * inv, q.W * inv}
}

// FromAxisAngle builds a rotation of angle radians around axis. axis need
// not be normalized.
func FromAxisAngle(axis Vec3, angle float64) Quat {
	n := Normalize(axis)
	half := angle / 2
	s := math.Sin(half)
	return Quat{X: n.X * s, Y: n.Y * s, Z: n.Z * s, W: math.Cos(half)}
}

// RotateVector rotates v by q (q must be unit-length; callers that built q
// from FromAxisAngle or LookRotation already have that guarantee).
func RotateVector(q Quat, v Vec3) Vec3 {
	// q * v * q^-1, expanded via the standard quaternion-vector identity to
	// avoid building an intermediate quaternion for v.
	u := Vec3{q.X, q.Y, q.Z}
	s := q.W

	uvCross := Cross(u, v)
	t := Scale(uvCross, 2)
	rotated := Add(v, Scale(t, s))
	rotated = Add(rotated, Cross(u, t))
	return rotated
}

// Conjugate returns the inverse rotation of a unit quaternion.
func Conjugate(q Quat) Quat { return Quat{-q.X, -q.Y, -q.Z, q.W} }

// Mul composes rotations: applying Mul(a, b) to a vector applies b first,
// then a (matches the usual quaternion composition convention).
func Mul(a, b Quat) Quat {
	return Quat{
		X: a.W*b.X + a.X*b.W + a.Y*b.Z - a.Z*b.Y,
		Y: a.W*b.Y - a.X*b.Z + a.Y*b.W + a.Z*b.X,
		Z: a.W*b.Z + a.X*b.Y - a.Y*b.X + a.Z*b.W,
		W: a.W*b.W - a.X*b.X - a.Y*b.Y - a.Z*b.Z,
	}
}

// LookRotation builds the orientation whose local -Z axis points along
// forward and whose local +Y axis points along up, the Three.js-compatible
// convention named in spec.md §4.1. Falls back to a rotation purely from
// forward (ignoring up) when forward and up are (nearly) parallel.
func LookRotation(forward, up Vec3) Quat {
	f := Normalize(forward)
	u := Normalize(up)

	right := Cross(f, u)
	if LengthSq(right) < 1e-10 {
		// forward and up are parallel: pick any right vector orthogonal to f.
		alt := Vec3{X: 1, Y: 0, Z: 0}
		if math.Abs(f.X) > 0.9 {
			alt = Vec3{X: 0, Y: 0, Z: 1}
		}
		right = Normalize(Cross(alt, f))
	} else {
		right = Normalize(right)
	}
	trueUp := Cross(right, f)

	// Build a rotation matrix from basis vectors (right, trueUp, -f maps to
	// local X, Y, Z respectively since local -Z == forward) and convert to a
	// quaternion via Shepperd's method.
	m00, m01, m02 := right.X, trueUp.X, -f.X
	m10, m11, m12 := right.Y, trueUp.Y, -f.Y
	m20, m21, m22 := right.Z, trueUp.Z, -f.Z

	trace := m00 + m11 + m22
	var q Quat
	switch {
	case trace > 0:
		s := 0.5 / math.Sqrt(trace+1.0)
		q = Quat{
			W: 0.25 / s,
			X: (m21 - m12) * s,
			Y: (m02 - m20) * s,
			Z: (m10 - m01) * s,
		}
	case m00 > m11 && m00 > m22:
		s := 2.0 * math.Sqrt(1.0+m00-m11-m22)
		q = Quat{
			W: (m21 - m12) / s,
			X: 0.25 * s,
			Y: (m01 + m10) / s,
			Z: (m02 + m20) / s,
		}
	case m11 > m22:
		s := 2.0 * math.Sqrt(1.0+m11-m00-m22)
		q = Quat{
			W: (m02 - m20) / s,
			X: (m01 + m10) / s,
			Y: 0.25 * s,
			Z: (m12 + m21) / s,
		}
	default:
		s := 2.0 * math.Sqrt(1.0+m22-m00-m11)
		q = Quat{
			W: (m10 - m01) / s,
			X: (m02 + m20) / s,
			Y: (m12 + m21) / s,
			Z: 0.25 * s,
		}
	}
	return NormalizeQuat(q)
}

// Slerp spherically interpolates between a and b by t in [0,1], taking the
// shortest path (flipping the sign of b when the dot product is negative)
// and falling back to linear interpolation when a and b are nearly
// coincident, per spec.md §4.1.
func Slerp(a, b Quat, t float64) Quat {
	d := a.X*b.X + a.Y*b.Y + a.Z*b.Z + a.W*b.W

	if d < 0 {
		b = Quat{-b.X, -b.Y, -b.Z, -b.W}
		d = -d
	}

	if d > closenessThreshold {
		lerped := Quat{
			X: a.X + (b.X-a.X)*t,
			Y: a.Y + (b.Y-a.Y)*t,
			Z: a.Z + (b.Z-a.Z)*t,
			W: a.W + (b.W-a.W)*t,
		}
		return NormalizeQuat(lerped)
	}

	theta0 := math.Acos(d)
	theta := theta0 * t
	sinTheta0 := math.Sin(theta0)
	sinTheta := math.Sin(theta)

	s0 := math.Cos(theta) - d*sinTheta/sinTheta0
	s1 := sinTheta / sinTheta0

	return Quat{
		X: a.X*s0 + b.X*s1,
		Y: a.Y*s0 + b.Y*s1,
		Z: a.Z*s0 + b.Z*s1,
		W: a.W*s0 + b.W*s1,
	}
}

// LocalUp returns the world-space direction of the local +Y axis under q —
// used by the takeover-ready orientation check and slope-rollover trigger.
func LocalUp(q Quat) Vec3 { return RotateVector(q, Vec3{X: 0, Y: 1, Z: 0}) }

// LocalForward returns the world-space direction of the local -Z axis
// under q.
func LocalForward(q Quat) Vec3 { return RotateVector(q, Vec3{X: 0, Y: 0, Z: -1}) }
