package room

import (
	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/physics"
	"github.com/asterobia/core/internal/unit"
)

// ManifestUnit is one entry of a SPAWN_MANIFEST message, per spec.md §6.
type ManifestUnit struct {
	ID         int
	OwnerSlot  int
	ModelIndex int
	Position   mathvec.Vec3
}

// CreateUnitsFromManifest validates and instantiates the host's one-shot
// unit declaration, per spec.md §3/§4.8: rejected outside WAITING, size
// capped at MaxManifestUnits, every slot must be in [0, MaxSlot]. Unit ids
// are host-provided so the server-client mapping is 1:1, per the GLOSSARY.
func (r *Room) CreateUnitsFromManifest(manifest []ManifestUnit) error {
	if State(r.state.Load()) != Waiting {
		return ErrRoomNotWaiting
	}
	if len(manifest) > r.cfg.MaxManifestUnits {
		return ErrManifestTooLarge
	}
	for _, m := range manifest {
		if m.OwnerSlot < 0 || m.OwnerSlot > r.cfg.MaxSlot {
			return ErrManifestInvalid
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	maxID := r.nextUnitID
	for _, m := range manifest {
		if _, exists := r.unitsByID[m.ID]; exists {
			continue
		}
		u := unit.New(m.ID, m.OwnerSlot, m.ModelIndex, m.Position, r.terrainField)
		r.attachUnitLocked(u)
		if m.ID >= maxID {
			maxID = m.ID + 1
		}
	}
	r.nextUnitID = maxID
	return nil
}

// attachUnitLocked registers u in the room's unit lookups and, if physics
// is enabled, creates its rigid body and ball collider (a sensor while
// KINEMATIC, per spec.md §4.5's enter/exit-dynamic sensor toggling).
// Callers must hold r.mu.
func (r *Room) attachUnitLocked(u *unit.Unit) {
	if r.cfg.RolloverThreshold > 0 {
		u.RolloverThreshold = r.cfg.RolloverThreshold
	}
	r.units = append(r.units, u)
	r.unitsByID[u.ID] = u

	if r.physWorld == nil {
		return
	}
	body, err := r.physWorld.CreateBody(physics.BodyKinematic, u.Position, u.Orientation)
	if err != nil {
		return
	}
	collider, err := r.physWorld.AttachBallCollider(body, unit.CuboidHalfY)
	if err != nil {
		return
	}
	_ = r.physWorld.SetColliderSensor(collider, true)
	_ = r.physWorld.SetColliderEventsEnabled(collider, true)
	u.AttachRigidBody(unit.RigidBodyRef{Body: body, Collider: collider})
	r.colliderToUnit[collider] = u.ID
}

// EnsureGuestUnit implements the JOIN_ACK open question recorded in
// DESIGN.md: manifest creation is authoritative, and a guest unit is only
// synthesized here if the manifest did not already supply one for slot.
// Server-generated ids are taken from the counter seeded past every
// manifest id, so they can never collide with a host-chosen id.
func (r *Room) EnsureGuestUnit(slot int) *unit.Unit {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.units {
		if u.OwnerSlot == slot {
			return u
		}
	}

	id := r.nextUnitID
	r.nextUnitID++
	spawnDir := mathvec.Vec3{X: 0, Y: 1, Z: 0}
	spawnPos := mathvec.Scale(spawnDir, r.terrainField.RadiusAt(spawnDir)+unit.CuboidHalfY)
	u := unit.New(id, slot, 0, spawnPos, r.terrainField)
	r.attachUnitLocked(u)
	return u
}
