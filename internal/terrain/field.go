// Package terrain implements the deterministic procedural height field over
// a sphere (spec.md §4.2) and the just-in-time trimesh collider manager
// built on top of it (spec.md §4.4).
package terrain

import "github.com/asterobia/core/internal/mathvec"

// LayerConfig is one noise layer's tunables (scale, octave count, amplitude
// falloff).
type LayerConfig struct {
	Scale       float64
	Octaves     int
	Persistence float64
}

// FieldConfig fully parameterizes a Field. NewField replaces a zero
// BaseRadius, and any layer whose Octaves is zero, with DefaultFieldConfig's
// values; HeightMultiplier and ErosionStrength are used as given, so a zero
// there means flat terrain or no erosion shaping.
type FieldConfig struct {
	BaseRadius       float64
	HeightMultiplier float64

	Continent LayerConfig
	Mountains LayerConfig
	Detail    LayerConfig

	ErosionStrength float64 // 0 = no shaping, 1 = full erosion curve
}

// DefaultFieldConfig is the "default" terrain preset: gentle continents,
// moderate mountains, fine surface detail.
func DefaultFieldConfig() FieldConfig {
	return FieldConfig{
		BaseRadius:       60,
		HeightMultiplier: 4.0,
		Continent:        LayerConfig{Scale: 0.6, Octaves: 4, Persistence: 0.5},
		Mountains:        LayerConfig{Scale: 1.8, Octaves: 5, Persistence: 0.55},
		Detail:           LayerConfig{Scale: 6.0, Octaves: 3, Persistence: 0.4},
		ErosionStrength:  0.35,
	}
}

// Field is a pure, deterministic scalar height field over the unit sphere.
// It is safe for concurrent read-only use once constructed — there is no
// mutable state.
type Field struct {
	cfg FieldConfig
}

// NewField constructs a Field from cfg, filling a zero BaseRadius and any
// zero-octave layer from DefaultFieldConfig; the other tunables are kept
// as given.
func NewField(cfg FieldConfig) *Field {
	def := DefaultFieldConfig()
	if cfg.BaseRadius == 0 {
		cfg.BaseRadius = def.BaseRadius
	}
	if cfg.Continent.Octaves == 0 {
		cfg.Continent = def.Continent
	}
	if cfg.Mountains.Octaves == 0 {
		cfg.Mountains = def.Mountains
	}
	if cfg.Detail.Octaves == 0 {
		cfg.Detail = def.Detail
	}
	return &Field{cfg: cfg}
}

// Config returns the field's effective configuration.
func (f *Field) Config() FieldConfig { return f.cfg }

// erosionShape squashes raw combined noise through an S-curve whose
// steepness is controlled by ErosionStrength, simulating coarse erosion:
// stronger erosion flattens valleys and sharpens ridges.
func (f *Field) erosionShape(h float64) float64 {
	s := f.cfg.ErosionStrength
	if s <= 0 {
		return h
	}
	sign := 1.0
	if h < 0 {
		sign = -1.0
		h = -h
	}
	shaped := h / (1 + s*(1-h))
	return sign * shaped
}

// GetHeight returns the signed terrain height offset at the given point
// (interpreted as a direction from the planet center), combining continent,
// mountain, and detail layers per spec.md §4.2.
func (f *Field) GetHeight(p mathvec.Vec3) float64 {
	d := mathvec.Normalize(p)

	continent := sampleNoise(d.X, d.Y, d.Z, f.cfg.Continent.Scale, f.cfg.Continent.Octaves, f.cfg.Continent.Persistence, ModePlain)
	mountains := sampleNoise(d.X, d.Y, d.Z, f.cfg.Mountains.Scale, f.cfg.Mountains.Octaves, f.cfg.Mountains.Persistence, ModeRidged)
	detail := sampleNoise(d.X, d.Y, d.Z, f.cfg.Detail.Scale, f.cfg.Detail.Octaves, f.cfg.Detail.Persistence, ModeBillow)

	combined := continent + 0.5*mountains + detail
	shaped := f.erosionShape(combined)
	return shaped * f.cfg.HeightMultiplier
}

// RadiusAt returns the terrain's local radius in the given direction.
// This is the server's authoritative surface height, per spec.md §4.2.
func (f *Field) RadiusAt(dir mathvec.Vec3) float64 {
	return f.cfg.BaseRadius + f.GetHeight(dir)
}

// normalEpsilon is the tangent-frame sampling step used by NormalAt.
const normalEpsilon = 0.01

// NormalAt builds a tangent frame at normalize(pos), samples three nearby
// surface points, and returns the normalized cross product of the two
// surface-space edges — falling back to a second tangent axis near the
// poles where the primary tangent degenerates, per spec.md §4.2.
func (f *Field) NormalAt(pos mathvec.Vec3) mathvec.Vec3 {
	dir := mathvec.Normalize(pos)

	up := mathvec.Vec3{X: 0, Y: 1, Z: 0}
	tangentU := mathvec.Cross(up, dir)
	if mathvec.LengthSq(tangentU) < 1e-8 {
		// dir is (nearly) parallel to world up: fall back to a second axis.
		tangentU = mathvec.Cross(mathvec.Vec3{X: 1, Y: 0, Z: 0}, dir)
	}
	tangentU = mathvec.Normalize(tangentU)
	tangentV := mathvec.Normalize(mathvec.Cross(dir, tangentU))

	center := mathvec.Scale(dir, f.RadiusAt(dir))

	dirU := mathvec.Normalize(mathvec.Add(dir, mathvec.Scale(tangentU, normalEpsilon)))
	pointU := mathvec.Scale(dirU, f.RadiusAt(dirU))

	dirV := mathvec.Normalize(mathvec.Add(dir, mathvec.Scale(tangentV, normalEpsilon)))
	pointV := mathvec.Scale(dirV, f.RadiusAt(dirV))

	edgeU := mathvec.Sub(pointU, center)
	edgeV := mathvec.Sub(pointV, center)

	return mathvec.Normalize(mathvec.Cross(edgeU, edgeV))
}
