package room

import (
	"fmt"
	"math"

	"github.com/asterobia/core/internal/unit"
)

// hashMultiplier is the rolling multiply step's constant (FNV-1a's prime,
// reused here since it gives good bit dispersion over the small int
// streams a state hash folds in).
const hashMultiplier = 16777619

// BuildSnapshot assembles the tick's broadcast payload from every unit's
// current state, in ascending id order.
func (r *Room) BuildSnapshot(tick int) Snapshot {
	r.mu.Lock()
	units := r.unitsSortedByID()
	r.mu.Unlock()

	out := Snapshot{
		Version:      SnapshotVersion,
		Tick:         tick,
		ServerTimeMs: r.nowMs(),
		Units:        make([]unit.Snapshot, len(units)),
	}
	for i, u := range units {
		out.Units[i] = u.ToSnapshot()
	}
	return out
}

// broadcastSnapshot builds and, if a handler is installed, delivers the
// tick's snapshot, stamping the sampled determinism-evidence hash on every
// StateHashSample'th tick, per spec.md §6.
func (r *Room) broadcastSnapshot(tick int) {
	snap := r.BuildSnapshot(tick)
	if r.cfg.StateHashSample > 0 && tick%r.cfg.StateHashSample == 0 {
		snap.StateHash = stateHash(tick, snap.Units)
	}
	if r.onSnapshot != nil {
		r.onSnapshot(snap)
	}
}

// stateHash computes the version-1 rolling XOR/multiply hash over tick and
// every unit (already in ascending id order) per spec.md §6, truncated to
// 32 bits and hex-encoded.
func stateHash(tick int, units []unit.Snapshot) string {
	var h uint32
	h = rollIn(h, uint32(tick))
	for _, u := range units {
		h = rollIn(h, uint32(u.ID))
		h = rollIn(h, floorMilli(u.Position.X))
		h = rollIn(h, floorMilli(u.Position.Y))
		h = rollIn(h, floorMilli(u.Position.Z))
		h = rollIn(h, uint32(u.HP))
	}
	return fmt.Sprintf("%08x", h)
}

func rollIn(h, v uint32) uint32 {
	h ^= v
	h *= hashMultiplier
	return h
}

func floorMilli(v float64) uint32 {
	return uint32(int64(math.Floor(v * 1000)))
}
