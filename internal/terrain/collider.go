package terrain

import (
	"fmt"
	"math"
	"sort"

	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/physics"
)

// DefaultMaxPatches is the hard cap on concurrently live trimesh patches,
// per spec.md §4.4.
const DefaultMaxPatches = 64

// DefaultPatchSize is the world-space edge length of one patch.
const DefaultPatchSize = 16.0

// gridStep is the spacing between adjacent grid vertices within a patch.
const gridStep = 2.0

// Patch is a trimesh collider covering a quantized angular tile of the
// sphere, created lazily near active bodies.
type Patch struct {
	Key         string
	Body        physics.BodyHandle
	Collider    physics.ColliderHandle
	Center      mathvec.Vec3
	VertexCount int
}

// bodyCreator is the subset of *physics.World the collider manager needs;
// declared as an interface so tests can substitute a fake without standing
// up a full World.
type bodyCreator interface {
	CreateBody(t physics.BodyType, pos mathvec.Vec3, orient mathvec.Quat) (physics.BodyHandle, error)
	AttachTrimeshCollider(body physics.BodyHandle) (physics.ColliderHandle, error)
	RemoveBody(h physics.BodyHandle) error
}

// ColliderManager maintains at most MaxPatches trimesh collider patches on
// fixed bodies, generating them lazily near active positions, evicting by
// distance, and invalidating by region (the deformation hook), per
// spec.md §4.4.
type ColliderManager struct {
	field    *Field
	physics  bodyCreator
	patches  map[string]*Patch
	maxPatches int

	patchSize     float64
	terrainRadius float64
	angularSize   float64 // patch-size / terrain-radius
}

// NewColliderManager constructs a manager bound to field and phys, using
// the field's base radius as the reference terrain radius for angular
// sizing.
func NewColliderManager(field *Field, phys bodyCreator, maxPatches int, patchSize float64) *ColliderManager {
	if maxPatches <= 0 {
		maxPatches = DefaultMaxPatches
	}
	if patchSize <= 0 {
		patchSize = DefaultPatchSize
	}
	terrainRadius := field.Config().BaseRadius
	if terrainRadius <= 0 {
		terrainRadius = 1
	}
	return &ColliderManager{
		field:         field,
		physics:       phys,
		patches:       make(map[string]*Patch),
		maxPatches:    maxPatches,
		patchSize:     patchSize,
		terrainRadius: terrainRadius,
		angularSize:   patchSize / terrainRadius,
	}
}

// Count returns the number of currently live patches.
func (m *ColliderManager) Count() int { return len(m.patches) }

// PatchSize returns the configured world-space edge length of one patch.
func (m *ColliderManager) PatchSize() float64 { return m.patchSize }

func dirToLatLon(dir mathvec.Vec3) (lat, lon float64) {
	lat = math.Asin(clampUnit(dir.Y))
	lon = math.Atan2(dir.Z, dir.X)
	return
}

func clampUnit(v float64) float64 {
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

func latLonToDir(lat, lon float64) mathvec.Vec3 {
	cosLat := math.Cos(lat)
	return mathvec.Vec3{
		X: cosLat * math.Cos(lon),
		Y: math.Sin(lat),
		Z: cosLat * math.Sin(lon),
	}
}

func patchKey(iLat, iLon int) string {
	return fmt.Sprintf("%d:%d", iLat, iLon)
}

// EnsurePatchesAround generates every missing patch in the angular coverage
// disk around position within radius, halting once maxPatches is reached.
func (m *ColliderManager) EnsurePatchesAround(position mathvec.Vec3, radius float64) {
	dir := mathvec.Normalize(position)
	lat, lon := dirToLatLon(dir)

	angularRadius := radius / m.terrainRadius
	steps := int(math.Ceil(angularRadius/m.angularSize)) + 1

	baseLat := int(math.Round(lat / m.angularSize))
	baseLon := int(math.Round(lon / m.angularSize))

	for dLat := -steps; dLat <= steps; dLat++ {
		for dLon := -steps; dLon <= steps; dLon++ {
			if len(m.patches) >= m.maxPatches {
				return
			}
			iLat := baseLat + dLat
			iLon := baseLon + dLon
			key := patchKey(iLat, iLon)
			if _, exists := m.patches[key]; exists {
				continue
			}
			centerLat := float64(iLat) * m.angularSize
			centerLon := float64(iLon) * m.angularSize
			centerDir := latLonToDir(centerLat, centerLon)
			if math.Acos(clampUnit(mathvec.Dot(centerDir, dir))) > angularRadius+m.angularSize {
				continue
			}
			m.createPatch(key, centerLat, centerLon)
		}
	}
}

func (m *ColliderManager) createPatch(key string, centerLat, centerLon float64) {
	centerDir := latLonToDir(centerLat, centerLon)
	centerDir = mathvec.Normalize(centerDir)
	center := mathvec.Scale(centerDir, m.field.RadiusAt(centerDir))

	up := mathvec.Vec3{X: 0, Y: 1, Z: 0}
	tangentU := mathvec.Cross(up, centerDir)
	if mathvec.LengthSq(tangentU) < 1e-8 {
		tangentU = mathvec.Cross(mathvec.Vec3{X: 1, Y: 0, Z: 0}, centerDir)
	}
	tangentU = mathvec.Normalize(tangentU)

	halfExtent := m.patchSize / 2
	gridW := int(math.Floor(2*halfExtent/gridStep)) + 1

	vertexCount := gridW * gridW

	body, err := m.physics.CreateBody(physics.BodyFixed, center, mathvec.Identity)
	if err != nil {
		return
	}
	collider, err := m.physics.AttachTrimeshCollider(body)
	if err != nil {
		_ = m.physics.RemoveBody(body)
		return
	}

	m.patches[key] = &Patch{
		Key:         key,
		Body:        body,
		Collider:    collider,
		Center:      center,
		VertexCount: vertexCount,
	}
}

// PatchVertex computes the world-space position of grid cell (i,j) within
// the patch centered on centerDir, per spec.md §4.4's mesh-generation rule:
// the vertex direction is centerDir rotated angU around tangentV then angV
// around tangentU, normalized and projected to the terrain radius at that
// direction. It returns a single vertex; no triangle list is built from
// these vertices here.
func (m *ColliderManager) PatchVertex(centerDir mathvec.Vec3, gridW int, i, j int) mathvec.Vec3 {
	halfExtent := m.patchSize / 2
	up := mathvec.Vec3{X: 0, Y: 1, Z: 0}
	tangentU := mathvec.Cross(up, centerDir)
	if mathvec.LengthSq(tangentU) < 1e-8 {
		tangentU = mathvec.Cross(mathvec.Vec3{X: 1, Y: 0, Z: 0}, centerDir)
	}
	tangentU = mathvec.Normalize(tangentU)
	tangentV := mathvec.Normalize(mathvec.Cross(centerDir, tangentU))

	u := (float64(i)*gridStep - halfExtent) / m.terrainRadius
	v := (float64(j)*gridStep - halfExtent) / m.terrainRadius

	rotatedU := rotateAround(centerDir, tangentV, u)
	rotatedUV := rotateAround(rotatedU, tangentU, v)
	dir := mathvec.Normalize(rotatedUV)
	return mathvec.Scale(dir, m.field.RadiusAt(dir))
}

// rotateAround rotates v by angle radians about axis via the axis-angle
// quaternion from mathvec.FromAxisAngle.
func rotateAround(v, axis mathvec.Vec3, angle float64) mathvec.Vec3 {
	q := mathvec.FromAxisAngle(axis, angle)
	return mathvec.RotateVector(q, v)
}

// EvictDistant destroys any patch whose world center is farther than
// maxDistance from every position in activePositions, per spec.md §4.4,
// returning how many patches it evicted so callers can report it.
func (m *ColliderManager) EvictDistant(activePositions []mathvec.Vec3, maxDistance float64) int {
	evicted := 0
	for key, p := range m.patches {
		farFromAll := true
		for _, pos := range activePositions {
			if mathvec.Distance(p.Center, pos) <= maxDistance {
				farFromAll = false
				break
			}
		}
		if farFromAll {
			m.destroyPatch(key)
			evicted++
		}
	}
	return evicted
}

// InvalidateRegion destroys any patch whose center lies within
// radius + patchSize*sqrt(2) of center — the deformation-invalidation hook
// from spec.md §4.4.
func (m *ColliderManager) InvalidateRegion(center mathvec.Vec3, radius float64) {
	threshold := radius + m.patchSize*math.Sqrt2
	for key, p := range m.patches {
		if mathvec.Distance(p.Center, center) <= threshold {
			m.destroyPatch(key)
		}
	}
}

// DestroyAll removes every patch.
func (m *ColliderManager) DestroyAll() {
	keys := make([]string, 0, len(m.patches))
	for k := range m.patches {
		keys = append(keys, k)
	}
	sort.Strings(keys) // deterministic destruction order
	for _, k := range keys {
		m.destroyPatch(k)
	}
}

func (m *ColliderManager) destroyPatch(key string) {
	p, ok := m.patches[key]
	if !ok {
		return
	}
	_ = m.physics.RemoveBody(p.Body)
	delete(m.patches, key)
}
