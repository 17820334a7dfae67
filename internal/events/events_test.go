package events

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/unit"
)

func newUnitAt(id int, pos mathvec.Vec3) *unit.Unit {
	return unit.New(id, id, 0, pos, flatSurface{})
}

// flatSurface is the minimal unit.SurfaceProvider a pure-math unit needs:
// a sphere of radius 10 with a constant +Y normal, so RadiusAt/NormalAt
// are trivial constants.
type flatSurface struct{}

func (flatSurface) RadiusAt(dir mathvec.Vec3) float64     { return 10 }
func (flatSurface) NormalAt(pos mathvec.Vec3) mathvec.Vec3 { return mathvec.Vec3{X: 0, Y: 1, Z: 0} }

func TestRadialImpulseFalloffAndZeroDirectionSkip(t *testing.T) {
	svc := NewPhysicsEventService()
	center := mathvec.Vec3{X: 0, Y: 0, Z: 0}
	near := newUnitAt(1, mathvec.Vec3{X: 1, Y: 0, Z: 0})
	far := newUnitAt(2, mathvec.Vec3{X: 9, Y: 0, Z: 0})
	atCenter := newUnitAt(3, center)
	outside := newUnitAt(4, mathvec.Vec3{X: 100, Y: 0, Z: 0})

	results := svc.RadialImpulse([]*unit.Unit{outside, atCenter, far, near}, center, 10, 10)

	byID := map[int]Result{}
	for _, r := range results {
		byID[r.UnitID] = r
	}
	_, hasCenter := byID[3]
	_, hasOutside := byID[4]
	assert.False(t, hasCenter, "a unit exactly at the explosion center must be skipped (zero-direction guard)")
	assert.False(t, hasOutside, "a unit outside radius must not be affected")

	require.Contains(t, byID, 1)
	require.Contains(t, byID, 2)
	assert.Greater(t, mathvec.Length(byID[1].Impulse), mathvec.Length(byID[2].Impulse),
		"closer units receive a stronger impulse than farther ones")
}

func TestRadialImpulseNonFiniteInputIsNoOp(t *testing.T) {
	svc := NewPhysicsEventService()
	u := newUnitAt(1, mathvec.Vec3{X: 1, Y: 0, Z: 0})
	results := svc.RadialImpulse([]*unit.Unit{u}, mathvec.Vec3{X: math.NaN(), Y: 0, Z: 0}, 10, 10)
	assert.Nil(t, results)
}

func TestRadialImpulseRespectsMaxAffected(t *testing.T) {
	svc := NewPhysicsEventService()
	svc.MaxAffected = 2
	units := []*unit.Unit{
		newUnitAt(1, mathvec.Vec3{X: 1, Y: 0, Z: 0}),
		newUnitAt(2, mathvec.Vec3{X: 2, Y: 0, Z: 0}),
		newUnitAt(3, mathvec.Vec3{X: 3, Y: 0, Z: 0}),
	}
	results := svc.RadialImpulse(units, mathvec.Vec3{}, 10, 10)
	assert.Len(t, results, 2)
}

func TestDirectedImpulseZeroLengthRejected(t *testing.T) {
	svc := NewPhysicsEventService()
	_, ok := svc.DirectedImpulse(1, mathvec.Vec3{}, 5)
	assert.False(t, ok)
}

func TestDirectedImpulseCapsAtMaxImpulse(t *testing.T) {
	svc := NewPhysicsEventService()
	svc.MaxImpulse = 3
	res, ok := svc.DirectedImpulse(1, mathvec.Vec3{X: 1, Y: 0, Z: 0}, 100)
	require.True(t, ok)
	assert.InDelta(t, 3, mathvec.Length(res.Impulse), 1e-9)
}

func TestResolveUnitUnitContactIsOrderIndependent(t *testing.T) {
	svc := NewCollisionService()
	a := newUnitAt(5, mathvec.Vec3{X: 0, Y: 0, Z: 0})
	b := newUnitAt(2, mathvec.Vec3{X: 1, Y: 0, Z: 0})

	forward := svc.ResolveUnitUnitContact(a, b)
	backward := svc.ResolveUnitUnitContact(b, a)
	require.Len(t, forward, 2)
	require.Len(t, backward, 2)
	assert.Equal(t, forward[0].UnitID, backward[0].UnitID, "the lower-id unit is always processed first")
}

func TestCheckKinematicCollisionsOnlyOverlappingPairs(t *testing.T) {
	svc := NewCollisionService()
	close1 := newUnitAt(1, mathvec.Vec3{X: 0, Y: 0, Z: 0})
	close2 := newUnitAt(2, mathvec.Vec3{X: 0.1, Y: 0, Z: 0})
	farAway := newUnitAt(3, mathvec.Vec3{X: 500, Y: 0, Z: 0})

	results := svc.CheckKinematicCollisions([]*unit.Unit{close1, close2, farAway})
	assert.Len(t, results, 2, "exactly one overlapping pair produces two impulses")
}

func TestCheckMineContactsDetonatesOnceAndFalloff(t *testing.T) {
	svc := NewCollisionService()
	u := newUnitAt(1, mathvec.Vec3{X: 0, Y: 0, Z: 0})
	mines := []MineContact{
		{ID: 1, Position: mathvec.Vec3{X: 0.5, Y: 0, Z: 0}, TriggerRadius: 2, Upward: 8, Radial: 5, Blast: 6},
	}

	results, detonated := svc.CheckMineContacts([]*unit.Unit{u}, mines, flatSurface{})
	assert.Equal(t, []int{1}, detonated)
	require.Len(t, results, 1)
	assert.Equal(t, KindMineDetonation, results[0].Kind)
	// dist 0.5 of blast 6 gives falloff 1-0.5/6 on the radial 5 and upward 8
	// components, which are perpendicular here.
	assert.InDelta(t, (1-0.5/6)*math.Sqrt(5*5+8*8), mathvec.Length(results[0].Impulse), 1e-9)
}

func TestCheckMineContactsNoTriggerOutOfRange(t *testing.T) {
	svc := NewCollisionService()
	u := newUnitAt(1, mathvec.Vec3{X: 100, Y: 0, Z: 0})
	mines := []MineContact{
		{ID: 1, Position: mathvec.Vec3{}, TriggerRadius: 2, Upward: 8, Radial: 5, Blast: 6},
	}

	results, detonated := svc.CheckMineContacts([]*unit.Unit{u}, mines, flatSurface{})
	assert.Empty(t, detonated)
	assert.Empty(t, results)
}
