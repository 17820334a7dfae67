package unit

import (
	"math"
	"testing"

	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/physics"
	"github.com/asterobia/core/internal/terrain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlatSurface() *terrain.Field {
	return terrain.NewField(terrain.FlatFieldConfig())
}

func spawnUnit(t *testing.T, surface *terrain.Field) *Unit {
	t.Helper()
	pos := mathvec.Scale(mathvec.Vec3{X: 0, Y: 1, Z: 0}, surface.RadiusAt(mathvec.Vec3{X: 0, Y: 1, Z: 0})+CuboidHalfY)
	return New(1, 1, 0, pos, surface)
}

func attachRigidBody(t *testing.T, w *physics.World, u *Unit) {
	t.Helper()
	body, err := w.CreateBody(physics.BodyKinematic, u.Position, u.Orientation)
	require.NoError(t, err)
	coll, err := w.AttachBallCollider(body, CuboidHalfY)
	require.NoError(t, err)
	require.NoError(t, w.SetColliderSensor(coll, true))
	u.AttachRigidBody(RigidBodyRef{Body: body, Collider: coll})
}

func TestApplyInputForwardSetsVelocityAndHeading(t *testing.T) {
	surface := newFlatSurface()
	u := spawnUnit(t, surface)
	u.ApplyInput(MoveInput{Forward: true}, surface)
	assert.InDelta(t, DefaultMoveSpeed, u.Speed, 1e-9)
	assert.InDelta(t, 0, u.Heading, 1e-9)
}

func TestApplyInputDiagonalMatchesSingleDirectionSpeed(t *testing.T) {
	surface := newFlatSurface()
	u := spawnUnit(t, surface)
	u.ApplyInput(MoveInput{Forward: true, Right: true}, surface)
	assert.InDelta(t, DefaultMoveSpeed, u.Speed, 1e-9)
}

func TestApplyInputCancelsActivePath(t *testing.T) {
	surface := newFlatSurface()
	u := spawnUnit(t, surface)
	u.Waypoints = []mathvec.Vec3{{X: 1, Y: 1, Z: 1}}
	u.ApplyInput(MoveInput{Left: true}, surface)
	assert.Nil(t, u.Waypoints)
}

func TestApplyInputSettledIsNoOp(t *testing.T) {
	surface := newFlatSurface()
	u := spawnUnit(t, surface)
	u.PhysicsMode = Settled
	u.ApplyInput(MoveInput{Forward: true}, surface)
	assert.Equal(t, 0.0, u.Speed)
}

func TestUpdatePositionIntegratesKinematicVelocity(t *testing.T) {
	surface := newFlatSurface()
	u := spawnUnit(t, surface)
	u.ApplyInput(MoveInput{Forward: true}, surface)
	start := u.Position
	require.NoError(t, u.UpdatePosition(0.1, surface, nil))
	assert.Greater(t, mathvec.Distance(start, u.Position), 0.0)

	dir := mathvec.Normalize(u.Position)
	assert.InDelta(t, surface.RadiusAt(dir)+CuboidHalfY, mathvec.Length(u.Position), 1e-6)
}

func TestUpdatePositionHardSnapsOnFirstTickAfterSpawn(t *testing.T) {
	// spec.md §8 Scenario 1: a unit spawned at the raw manifest position
	// (py:60, flat terrain, BaseRadius=60) reaches py ≈ 60 + CuboidHalfY
	// within its very first tick, not over several bounded-spring ticks.
	surface := newFlatSurface()
	raw := mathvec.Vec3{X: 0, Y: 60, Z: 0}
	u := New(1, 0, 0, raw, surface)

	require.NoError(t, u.UpdatePosition(1.0/20, surface, nil))

	want := surface.RadiusAt(mathvec.Vec3{X: 0, Y: 1, Z: 0}) + CuboidHalfY
	assert.InDelta(t, want, u.Position.Y, 1e-9)
	assert.InDelta(t, 0, u.Position.X, 1e-9)
	assert.InDelta(t, 0, u.Position.Z, 1e-9)
}

func TestUpdatePositionSpringCorrectsWhenIdle(t *testing.T) {
	surface := newFlatSurface()
	u := spawnUnit(t, surface)
	// consume the one-time post-spawn hard snap before exercising the
	// bounded-spring idle branch.
	require.NoError(t, u.UpdatePosition(1.0/20, surface, nil))

	dir := mathvec.Normalize(u.Position)
	ideal := surface.RadiusAt(dir) + CuboidHalfY
	// push the unit slightly below the terrain so the idle branch must
	// correct it back up, bounded by MaxCorrectionStep.
	currentRadius := mathvec.Length(u.Position) - 1
	u.Position = mathvec.Scale(dir, currentRadius)

	require.NoError(t, u.UpdatePosition(1.0/20, surface, nil))
	want := currentRadius + clampAbs((ideal-currentRadius)*SpringGain, MaxCorrectionStep)
	assert.InDelta(t, want, mathvec.Length(u.Position), 1e-9)
}

func TestEnterDynamicSwitchesBodyTypeAndClearsPath(t *testing.T) {
	surface := newFlatSurface()
	w := physics.NewWorld(60, 3)
	u := spawnUnit(t, surface)
	attachRigidBody(t, w, u)
	u.Waypoints = []mathvec.Vec3{{X: 1}}

	require.NoError(t, u.EnterDynamic(w, surface, nil))
	assert.Equal(t, Dynamic, u.PhysicsMode)
	assert.Nil(t, u.Waypoints)

	body, err := w.GetBody(u.RigidBody.Body)
	require.NoError(t, err)
	assert.Equal(t, physics.BodyDynamic, body.Type)
}

func TestEnterDynamicWithoutRigidBodyFails(t *testing.T) {
	surface := newFlatSurface()
	u := spawnUnit(t, surface)
	assert.ErrorIs(t, u.EnterDynamic(nil, surface, nil), ErrNoRigidBody)
}

func TestExitDynamicRestoresKinematicAndDerivesHeadingFromVelocity(t *testing.T) {
	surface := newFlatSurface()
	w := physics.NewWorld(60, 3)
	u := spawnUnit(t, surface)
	attachRigidBody(t, w, u)
	require.NoError(t, u.EnterDynamic(w, surface, nil))

	dir := mathvec.Normalize(u.Position)
	up := surface.NormalAt(u.Position)
	forward, _ := tangentBasis(u.Position, up)
	require.NoError(t, w.SetLinearVelocity(u.RigidBody.Body, mathvec.Scale(forward, 3)))
	_ = dir

	require.NoError(t, u.ExitDynamic(w, surface))
	assert.Equal(t, Kinematic, u.PhysicsMode)
	assert.InDelta(t, 0, u.Heading, 1e-6)
	assert.Equal(t, ReentryCooldownTicks, u.reentryCooldownForTest())
}

func TestSettleDynamicKeepsOrientationAndSetsSettled(t *testing.T) {
	surface := newFlatSurface()
	w := physics.NewWorld(60, 3)
	u := spawnUnit(t, surface)
	attachRigidBody(t, w, u)
	require.NoError(t, u.EnterDynamic(w, surface, nil))

	tumbled := mathvec.FromAxisAngle(mathvec.Vec3{X: 1, Y: 0, Z: 0}, 1.2)
	require.NoError(t, w.SetOrientation(u.RigidBody.Body, tumbled))

	require.NoError(t, u.SettleDynamic(w, surface))
	assert.Equal(t, Settled, u.PhysicsMode)
	assert.InDelta(t, tumbled.W, u.Orientation.W, 1e-9)

	before := u.Orientation
	u.ApplyInput(MoveInput{Forward: true}, surface)
	require.NoError(t, u.UpdatePosition(0.05, surface, w))
	assert.Equal(t, before, u.Orientation)
}

func TestCheckTakeoverReadyRequiresDebounce(t *testing.T) {
	surface := newFlatSurface()
	w := physics.NewWorld(60, 3)
	u := spawnUnit(t, surface)
	attachRigidBody(t, w, u)
	require.NoError(t, u.EnterDynamic(w, surface, nil))

	body, err := w.GetBody(u.RigidBody.Body)
	require.NoError(t, err)

	var ready bool
	for i := 0; i < TakeoverDebounceTicks; i++ {
		ready = u.CheckTakeoverReady(surface, body)
		if i < TakeoverDebounceTicks-1 {
			assert.False(t, ready)
		}
	}
	assert.True(t, ready)
}

func TestCheckSlopeRolloverRequiresDebounceAndRespectsCooldown(t *testing.T) {
	surface := newFlatSurface()
	u := spawnUnit(t, surface)
	// tilt the unit's orientation far past the rollover threshold
	u.Orientation = mathvec.FromAxisAngle(mathvec.Vec3{X: 1, Y: 0, Z: 0}, math.Pi/2)

	var triggered bool
	for i := 0; i < SlopeDebounceTicks; i++ {
		triggered, _ = u.CheckSlopeRollover(surface)
	}
	assert.True(t, triggered)

	u.reentryCooldown = ReentryCooldownTicks
	triggered, _ = u.CheckSlopeRollover(surface)
	assert.False(t, triggered)
}

func TestBlendDownEventuallyExitsDynamic(t *testing.T) {
	surface := newFlatSurface()
	w := physics.NewWorld(60, 3)
	u := spawnUnit(t, surface)
	attachRigidBody(t, w, u)
	require.NoError(t, u.EnterDynamic(w, surface, nil))
	u.takeoverReadyTicks = TakeoverDebounceTicks

	u.ApplyInput(MoveInput{Forward: true}, surface)
	assert.True(t, u.IsBlending())

	dt := 1.0 / 20
	ticks := int(BlendDurationSeconds/dt) + 5
	for i := 0; i < ticks && u.PhysicsMode == Dynamic; i++ {
		require.NoError(t, u.UpdatePosition(dt, surface, w))
	}
	assert.Equal(t, Kinematic, u.PhysicsMode)
}

// reentryCooldownForTest exposes the private cooldown counter to tests in
// this package without promoting it to public API.
func (u *Unit) reentryCooldownForTest() int { return u.reentryCooldown }
