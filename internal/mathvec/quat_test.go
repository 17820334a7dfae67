package mathvec

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromAxisAngleRotatesQuarterTurn(t *testing.T) {
	q := FromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, math.Pi/2)
	v := RotateVector(q, Vec3{X: 1, Y: 0, Z: 0})
	assert.InDelta(t, 0, v.X, 1e-9)
	assert.InDelta(t, 0, v.Y, 1e-9)
	assert.InDelta(t, -1, v.Z, 1e-9)
}

func TestLookRotationMapsForwardAndUp(t *testing.T) {
	forward := Vec3{X: 0, Y: 0, Z: -1}
	up := Vec3{X: 0, Y: 1, Z: 0}
	q := LookRotation(forward, up)
	assert.InDelta(t, 0, Distance3(LocalForward(q), forward), 1e-6)
}

func TestLookRotationFallbackWhenParallel(t *testing.T) {
	forward := Vec3{X: 0, Y: 1, Z: 0}
	up := Vec3{X: 0, Y: 1, Z: 0}
	q := LookRotation(forward, up)
	assert.True(t, IsFinite(LocalForward(q)))
	assert.True(t, IsFinite(LocalUp(q)))
}

func TestSlerpEndpoints(t *testing.T) {
	a := Identity
	b := FromAxisAngle(Vec3{X: 0, Y: 1, Z: 0}, math.Pi/2)
	assert.InDelta(t, 0, quatDist(Slerp(a, b, 0), a), 1e-9)
	assert.InDelta(t, 0, quatDist(Slerp(a, b, 1), b), 1e-9)
}

func TestSlerpShortestPath(t *testing.T) {
	a := Quat{X: 0, Y: 0, Z: 0, W: 1}
	b := Quat{X: 0, Y: 0, Z: 0, W: -1} // same rotation as a, opposite sign
	mid := Slerp(a, b, 0.5)
	assert.True(t, IsFiniteQuat(mid))
}

func Distance3(a, b Vec3) float64 { return Length(Sub(a, b)) }

func quatDist(a, b Quat) float64 {
	dx, dy, dz, dw := a.X-b.X, a.Y-b.Y, a.Z-b.Z, a.W-b.W
	return math.Sqrt(dx*dx + dy*dy + dz*dz + dw*dw)
}

func IsFiniteQuat(q Quat) bool {
	return !math.IsNaN(q.X) && !math.IsNaN(q.Y) && !math.IsNaN(q.Z) && !math.IsNaN(q.W)
}
