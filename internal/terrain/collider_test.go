package terrain

import (
	"testing"

	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/physics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, maxPatches int) (*ColliderManager, *physics.World) {
	t.Helper()
	field := NewField(FlatFieldConfig())
	world := physics.NewWorld(60, 1)
	return NewColliderManager(field, world, maxPatches, DefaultPatchSize), world
}

func TestEnsurePatchesAroundCreatesAtLeastOnePatch(t *testing.T) {
	m, _ := newTestManager(t, DefaultMaxPatches)
	pos := mathvec.Vec3{X: 60, Y: 0, Z: 0}
	m.EnsurePatchesAround(pos, 10)
	assert.Greater(t, m.Count(), 0)
}

func TestPatchCountNeverExceedsMax(t *testing.T) {
	m, _ := newTestManager(t, 4)
	pos := mathvec.Vec3{X: 60, Y: 0, Z: 0}
	m.EnsurePatchesAround(pos, 200)
	assert.LessOrEqual(t, m.Count(), 4)
}

func TestEvictDistantRemovesFarPatches(t *testing.T) {
	m, _ := newTestManager(t, DefaultMaxPatches)
	near := mathvec.Vec3{X: 60, Y: 0, Z: 0}
	m.EnsurePatchesAround(near, 10)
	require.Greater(t, m.Count(), 0)

	far := mathvec.Vec3{X: -60, Y: 0, Z: 0}
	evicted := m.EvictDistant([]mathvec.Vec3{far}, DefaultPatchSize)
	assert.Equal(t, 0, m.Count())
	assert.Greater(t, evicted, 0)
}

func TestInvalidateRegionDestroysOverlappingPatches(t *testing.T) {
	m, _ := newTestManager(t, DefaultMaxPatches)
	pos := mathvec.Vec3{X: 60, Y: 0, Z: 0}
	m.EnsurePatchesAround(pos, 10)
	require.Greater(t, m.Count(), 0)

	m.InvalidateRegion(pos, 5)
	assert.Equal(t, 0, m.Count())
}

func TestDestroyAllClearsEverything(t *testing.T) {
	m, _ := newTestManager(t, DefaultMaxPatches)
	m.EnsurePatchesAround(mathvec.Vec3{X: 60, Y: 0, Z: 0}, 20)
	require.Greater(t, m.Count(), 0)
	m.DestroyAll()
	assert.Equal(t, 0, m.Count())
}
