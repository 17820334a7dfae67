package terrain

import (
	"testing"

	"github.com/asterobia/core/internal/mathvec"
	"github.com/stretchr/testify/assert"
)

func TestGetHeightIsBitStableAcrossInvocations(t *testing.T) {
	f := NewField(DefaultFieldConfig())
	p := mathvec.Vec3{X: 12.3, Y: -4.2, Z: 7.7}
	h1 := f.GetHeight(p)
	h2 := f.GetHeight(p)
	assert.Equal(t, h1, h2)
}

func TestRadiusAtIsBaseRadiusPlusHeight(t *testing.T) {
	cfg := DefaultFieldConfig()
	f := NewField(cfg)
	dir := mathvec.Normalize(mathvec.Vec3{X: 1, Y: 2, Z: 3})
	assert.InDelta(t, cfg.BaseRadius+f.GetHeight(dir), f.RadiusAt(dir), 1e-9)
}

func TestFlatTerrainHasZeroHeight(t *testing.T) {
	cfg := DefaultFieldConfig()
	cfg.HeightMultiplier = 0
	f := NewField(cfg)
	dir := mathvec.Normalize(mathvec.Vec3{X: 1, Y: 1, Z: 1})
	assert.Equal(t, 0.0, f.GetHeight(dir))
	assert.Equal(t, cfg.BaseRadius, f.RadiusAt(dir))
}

func TestNormalAtIsUnitLength(t *testing.T) {
	f := NewField(DefaultFieldConfig())
	dir := mathvec.Normalize(mathvec.Vec3{X: 0.3, Y: 0.8, Z: 0.1})
	n := f.NormalAt(mathvec.Scale(dir, f.RadiusAt(dir)))
	assert.InDelta(t, 1.0, mathvec.Length(n), 1e-6)
}

func TestNormalAtPolesStaysFinite(t *testing.T) {
	f := NewField(DefaultFieldConfig())
	pole := mathvec.Vec3{X: 0, Y: 1, Z: 0}
	n := f.NormalAt(mathvec.Scale(pole, f.RadiusAt(pole)))
	assert.True(t, mathvec.IsFinite(n))
	assert.InDelta(t, 1.0, mathvec.Length(n), 1e-4)
}

func TestSteepPresetProducesLargerHeightVarianceThanFlat(t *testing.T) {
	steep := NewField(SteepFieldConfig())
	flat := NewField(FlatFieldConfig())

	var steepMax, flatMax float64
	dirs := []mathvec.Vec3{
		{X: 1, Y: 0, Z: 0}, {X: 0, Y: 1, Z: 0}, {X: 0, Y: 0, Z: 1},
		{X: 1, Y: 1, Z: 0}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1},
	}
	for _, d := range dirs {
		d = mathvec.Normalize(d)
		if h := abs(steep.GetHeight(d)); h > steepMax {
			steepMax = h
		}
		if h := abs(flat.GetHeight(d)); h > flatMax {
			flatMax = h
		}
	}
	assert.Greater(t, steepMax, flatMax)
}

func TestGetHeightCombinesLayersWithSpecWeights(t *testing.T) {
	cfg := DefaultFieldConfig()
	cfg.ErosionStrength = 0 // isolate the combination weights from erosionShape
	cfg.HeightMultiplier = 1
	f := NewField(cfg)

	dir := mathvec.Normalize(mathvec.Vec3{X: 1, Y: 2, Z: 3})

	continent := sampleNoise(dir.X, dir.Y, dir.Z, cfg.Continent.Scale, cfg.Continent.Octaves, cfg.Continent.Persistence, ModePlain)
	mountains := sampleNoise(dir.X, dir.Y, dir.Z, cfg.Mountains.Scale, cfg.Mountains.Octaves, cfg.Mountains.Persistence, ModeRidged)
	detail := sampleNoise(dir.X, dir.Y, dir.Z, cfg.Detail.Scale, cfg.Detail.Octaves, cfg.Detail.Persistence, ModeBillow)

	want := continent + 0.5*mountains + detail
	assert.InDelta(t, want, f.GetHeight(dir), 1e-9)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
