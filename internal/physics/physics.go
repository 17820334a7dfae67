// Package physics wraps a small deterministic rigid-body-lite solver: zero
// global gravity, spherical gravity applied per dynamic body per sub-step,
// a fixed timestep, and a same-tick collision event queue (spec.md §4.3).
//
// No third-party 3D rigid-body engine appears anywhere in this retrieval
// pack (see DESIGN.md), so the solver below is written from scratch in the
// teacher's own style: small structs, free functions, explicit handles
// instead of back-pointers. The sphere-overlap helpers here generalize the
// teacher's 2D circle helpers (internal/physics/physics.go in
// tomz197/asteroids — PointInCircle, CirclesOverlap) to 3D balls.
package physics

import "github.com/asterobia/core/internal/mathvec"

// BallsOverlap reports whether two balls (center + radius) overlap,
// generalizing the teacher's CirclesOverlap to 3D.
func BallsOverlap(c1 mathvec.Vec3, r1 float64, c2 mathvec.Vec3, r2 float64) bool {
	minDist := r1 + r2
	return mathvec.DistanceSquared(c1, c2) < minDist*minDist
}

// PointInBall reports whether p lies within radius of center, generalizing
// the teacher's PointInCircle to 3D.
func PointInBall(p, center mathvec.Vec3, radius float64) bool {
	return mathvec.DistanceSquared(p, center) <= radius*radius
}
