package room

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/asterobia/core/internal/command"
	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/terrain"
	"github.com/asterobia/core/internal/unit"
)

func flatConfig() Config {
	cfg := DefaultConfig()
	cfg.Terrain = terrain.FlatFieldConfig()
	return cfg
}

func mustStart(t *testing.T, r *Room) {
	t.Helper()
	require.NoError(t, r.Start(context.Background()))
}

func spawnPos(field *terrain.Field) mathvec.Vec3 {
	dir := mathvec.Vec3{X: 0, Y: 1, Z: 0}
	return mathvec.Scale(dir, field.RadiusAt(dir)+unit.CuboidHalfY)
}

// Scenario 1 (spec.md §8): host announces, spawns a manifest with the
// literal raw manifest position (py:60, flat terrain ⇒ BaseRadius=60), the
// room starts, and after one tick the unit has hard-snapped to
// py ≈ 60 + CuboidHalfY, GROUNDED and KINEMATIC.
func TestHostSpawnTick(t *testing.T) {
	r := New("room-1", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})

	pos := mathvec.Vec3{X: 0, Y: 60, Z: 0}
	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	var snaps []Snapshot
	r.SetSnapshotHandler(func(s Snapshot) { snaps = append(snaps, s) })

	require.NoError(t, r.OnSimTick(1, 0.05))
	require.NoError(t, r.OnSimTick(2, 0.05))

	assert.Equal(t, 2, r.Tick())
	require.Len(t, snaps, 2)
	assert.Equal(t, 1, snaps[0].Tick)
	assert.Equal(t, 2, snaps[1].Tick)
	require.Len(t, snaps[1].Units, 1)
	assert.Equal(t, 1, snaps[1].Units[0].ID)

	u, ok := r.unitByID(1)
	require.True(t, ok)
	want := r.TerrainField().RadiusAt(mathvec.Vec3{X: 0, Y: 1, Z: 0}) + unit.CuboidHalfY
	assert.InDelta(t, want, u.Position.Y, 1e-9)
	assert.Equal(t, unit.Kinematic, u.PhysicsMode)
	assert.Equal(t, unit.Grounded, u.MovementMode)
}

// Scenario 2: a guest's MOVE_INPUT is routed to their own unit only, never
// to a unit they don't own or control.
func TestGuestInputRouting(t *testing.T) {
	r := New("room-2", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	pos := spawnPos(r.TerrainField())
	// The guest's unit spawns a quarter turn around the planet from the
	// host's, so no unit-unit contact knocks either one out of KINEMATIC.
	guestDir := mathvec.Vec3{X: 1, Y: 0, Z: 0}
	guestPos := mathvec.Scale(guestDir, r.TerrainField().RadiusAt(guestDir)+unit.CuboidHalfY)

	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
		{ID: 2, OwnerSlot: 1, ModelIndex: 0, Position: guestPos},
	}))
	mustStart(t, r)

	// Guest at slot 1 drives their own unit (id 2).
	r.EnqueueCommand(command.Command{
		ClientSlot: 1,
		Kind:       command.KindMoveInput,
		Payload:    MoveInputPayload{Forward: true},
	})
	// Guest at slot 1 tries to drive the host's unit explicitly — must be
	// rejected by the authorized() ownership check.
	hostUnitID := 1
	r.EnqueueCommand(command.Command{
		ClientSlot: 1,
		Kind:       command.KindMoveInput,
		Payload:    MoveInputPayload{UnitID: &hostUnitID, Forward: true},
	})

	require.NoError(t, r.OnSimTick(1, 0.05))

	guestUnit, ok := r.unitByID(2)
	require.True(t, ok)
	assert.Greater(t, guestUnit.Speed, 0.0)

	hostUnit, ok := r.unitByID(1)
	require.True(t, ok)
	assert.Equal(t, 0.0, hostUnit.Speed, "unauthorized input must not move the host's unit")
}

// PATH_DATA with a segment longer than MaxSegmentLength must be rejected
// outright, leaving the unit's existing waypoints untouched.
func TestPathDataRejectsOversizedSegment(t *testing.T) {
	r := New("room-2b", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	field := r.TerrainField()
	pos := spawnPos(field)

	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	far := mathvec.Add(pos, mathvec.Vec3{X: r.cfg.MaxSegmentLength + 1, Y: 0, Z: 0})
	r.EnqueueCommand(command.Command{
		ClientSlot: HostSlot,
		Kind:       command.KindPathData,
		Payload: PathDataPayload{
			UnitID:    1,
			Waypoints: []mathvec.Vec3{pos, far},
		},
	})

	require.NoError(t, r.OnSimTick(1, 0.05))

	u, ok := r.unitByID(1)
	require.True(t, ok)
	assert.Nil(t, u.Waypoints, "a PATH_DATA batch with an over-length segment must be dropped entirely")
}

// Scenario 3: a TRIGGER_EXPLOSION admin command radially impulses nearby
// kinematic units, knocking them into DYNAMIC, except the unit at the
// explosion's own center (the zero-direction edge case).
func TestExplosionAtOwnCenterStaysKinematic(t *testing.T) {
	r := New("room-3", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	field := r.TerrainField()
	pos := spawnPos(field)

	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	centerUnitID := 1
	r.EnqueueCommand(command.Command{
		ClientSlot: HostSlot,
		Kind:       command.KindAdmin,
		Payload: AdminPayload{
			Action:   ActionTriggerExplosion,
			UnitID:   &centerUnitID,
			Radius:   5,
			Strength: 10,
		},
	})

	require.NoError(t, r.OnSimTick(1, 0.05))

	u, ok := r.unitByID(1)
	require.True(t, ok)
	assert.Equal(t, unit.Kinematic, u.PhysicsMode, "a unit at its own explosion center is the zero-direction edge case and stays kinematic")
}

// Scenario 3b: a unit away from its own center does take the radial impulse
// and enters DYNAMIC.
func TestExplosionAtDistanceEntersDynamic(t *testing.T) {
	r := New("room-3b", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	field := r.TerrainField()
	dir := mathvec.Vec3{X: 0, Y: 1, Z: 0}
	pos := mathvec.Scale(dir, field.RadiusAt(dir)+unit.CuboidHalfY)

	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
		{ID: 2, OwnerSlot: 1, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	centerUnitID := 1
	r.EnqueueCommand(command.Command{
		ClientSlot: HostSlot,
		Kind:       command.KindAdmin,
		Payload: AdminPayload{
			Action:   ActionTriggerExplosion,
			UnitID:   &centerUnitID,
			Radius:   50,
			Strength: 10,
		},
	})

	require.NoError(t, r.OnSimTick(1, 0.05))

	// Unit 2 sits exactly atop unit 1 in this setup (zero distance), so both
	// are at the zero-direction edge case; move unit 2 off-center by
	// nudging its position before re-running, proving the impulse applies
	// once a finite direction exists.
	u2, ok := r.unitByID(2)
	require.True(t, ok)
	u2.Position = mathvec.Add(u2.Position, mathvec.Vec3{X: 1, Y: 0, Z: 0})

	r.EnqueueCommand(command.Command{
		ClientSlot: HostSlot,
		Kind:       command.KindAdmin,
		Payload: AdminPayload{
			Action:   ActionTriggerExplosion,
			UnitID:   &centerUnitID,
			Radius:   50,
			Strength: 10,
		},
	})
	require.NoError(t, r.OnSimTick(2, 0.05))

	u2, ok = r.unitByID(2)
	require.True(t, ok)
	assert.Equal(t, unit.Dynamic, u2.PhysicsMode)
}

// Scenario 4: a unit on a steep slope triggers slope rollover into DYNAMIC.
func TestSlopeRolloverEntersDynamic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Terrain = terrain.SteepFieldConfig()
	r := New("room-4", cfg)
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	field := r.TerrainField()
	pos := spawnPos(field)

	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	u, ok := r.unitByID(1)
	require.True(t, ok)

	// Force the steep-tilt condition rather than relying on where procedural
	// slopes happen to fall: with a near-zero per-unit rollover threshold,
	// any tilt of the surface normal away from the radial counts as steep,
	// so OnSimTick's CheckSlopeRollover fires once SlopeDebounceTicks pass.
	u.RolloverThreshold = 1e-6
	for i := 1; i <= unit.SlopeDebounceTicks+2; i++ {
		require.NoError(t, r.OnSimTick(i, 0.05))
		if u.PhysicsMode != unit.Kinematic {
			break
		}
	}
	assert.GreaterOrEqual(t, r.Tick(), 1)
	assert.Equal(t, unit.Dynamic, u.PhysicsMode)
}

// Scenario 5: a mine detonates once a kinematic unit enters its trigger
// radius, consuming the mine and impulsing nearby units into DYNAMIC.
func TestMineDetonation(t *testing.T) {
	r := New("room-5", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	field := r.TerrainField()
	pos := spawnPos(field)

	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	_, ok := r.PlaceMine(pos, 2, 8, 5, 6)
	require.True(t, ok)
	assert.Equal(t, 1, r.MineCount())

	require.NoError(t, r.OnSimTick(1, 0.05))

	assert.Equal(t, 0, r.MineCount(), "the mine must be consumed on its first trigger")
}

// Scenario 6: a SPAWN_MANIFEST (and other WAITING-only admission) is
// rejected once the room has left WAITING.
func TestManifestRejectedOutsideWaiting(t *testing.T) {
	r := New("room-6", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	pos := spawnPos(r.TerrainField())

	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	err := r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 2, OwnerSlot: 1, ModelIndex: 0, Position: pos},
	})
	assert.ErrorIs(t, err, ErrRoomNotWaiting)
}

func TestStopIsIdempotentAndStopsTicking(t *testing.T) {
	r := New("room-7", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	pos := spawnPos(r.TerrainField())
	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	r.Stop()
	r.Stop() // must not panic

	require.NoError(t, r.OnSimTick(1, 0.05))
	assert.Equal(t, 0, r.Tick(), "OnSimTick must no-op once the room has left RUNNING")
	assert.Equal(t, Ended, r.State())
}

func TestStateHashSampledOnSchedule(t *testing.T) {
	cfg := flatConfig()
	cfg.StateHashSample = 2
	r := New("room-8", cfg)
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	pos := spawnPos(r.TerrainField())
	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	var snaps []Snapshot
	r.SetSnapshotHandler(func(s Snapshot) { snaps = append(snaps, s) })
	require.NoError(t, r.OnSimTick(1, 0.05))
	require.NoError(t, r.OnSimTick(2, 0.05))

	require.Len(t, snaps, 2)
	assert.Empty(t, snaps[0].StateHash)
	assert.NotEmpty(t, snaps[1].StateHash)
}

func TestEnsureGuestUnitIsIdempotentPerSlot(t *testing.T) {
	r := New("room-9", flatConfig())
	r.AddPlayer(HostSlot, Player{DisplayName: "host"})
	pos := spawnPos(r.TerrainField())
	require.NoError(t, r.CreateUnitsFromManifest([]ManifestUnit{
		{ID: 1, OwnerSlot: HostSlot, ModelIndex: 0, Position: pos},
	}))
	mustStart(t, r)

	u1 := r.EnsureGuestUnit(1)
	u2 := r.EnsureGuestUnit(1)
	assert.Same(t, u1, u2, "a second EnsureGuestUnit for an already-mapped slot must not spawn a duplicate")
}
