package room

import (
	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/physics"
)

// CreateObstacle places a fixed ball obstacle at position, per spec.md §3.
// Obstacles require physics (they are admin/dev-gated operations, and the
// gate itself requires EnablePhysics, per spec.md §4.8). Resource
// exhaustion (MaxObstacles) truncates the operation silently, per spec.md
// §7 — it returns ok=false rather than an error.
func (r *Room) CreateObstacle(position mathvec.Vec3, radius float64) (handle int, ok bool) {
	if r.physWorld == nil {
		return 0, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.obstacles) >= r.cfg.MaxObstacles {
		return 0, false
	}

	body, err := r.physWorld.CreateBody(physics.BodyFixed, position, mathvec.Identity)
	if err != nil {
		return 0, false
	}
	collider, err := r.physWorld.AttachBallCollider(body, radius)
	if err != nil {
		_ = r.physWorld.RemoveBody(body)
		return 0, false
	}
	_ = r.physWorld.SetColliderEventsEnabled(collider, true)

	r.nextObstacleHandle++
	h := r.nextObstacleHandle
	r.obstacles[h] = &Obstacle{Handle: h, Body: body, Collider: collider, Position: position, Radius: radius}
	r.colliderToObstacle[collider] = h
	return h, true
}

// RemoveObstacle destroys the obstacle's rigid body and forgets its handle.
func (r *Room) RemoveObstacle(handle int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.obstacles[handle]
	if !ok {
		return false
	}
	if r.physWorld != nil {
		_ = r.physWorld.RemoveBody(o.Body)
	}
	delete(r.colliderToObstacle, o.Collider)
	delete(r.obstacles, handle)
	return true
}

// ObstacleCount reports how many obstacles are currently live.
func (r *Room) ObstacleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.obstacles)
}

// PlaceMine adds a one-shot proximity mine, per spec.md §3/§6. Zero-valued
// fields fall back to the spec's mine defaults. Resource exhaustion
// (MaxMines) truncates the operation, returning ok=false.
func (r *Room) PlaceMine(position mathvec.Vec3, trigger, upward, radial, blast float64) (id int, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.mines) >= r.cfg.MaxMines {
		return 0, false
	}
	if trigger <= 0 {
		trigger = DefaultMineTrigger
	}
	if upward <= 0 {
		upward = DefaultMineUpward
	}
	if radial <= 0 {
		radial = DefaultMineRadial
	}
	if blast <= 0 {
		blast = DefaultMineBlast
	}

	r.nextMineID++
	id = r.nextMineID
	r.mines[id] = &Mine{ID: id, Position: position, TriggerRadius: trigger, Upward: upward, Radial: radial, Blast: blast}
	return id, true
}

// MineCount reports how many mines are currently live (unconsumed).
func (r *Room) MineCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.mines)
}

// RemoveMine destroys a mine without detonating it (used for admin cleanup
// and to consume a mine once CheckMineContacts reports it detonated).
func (r *Room) RemoveMine(id int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.mines[id]; !ok {
		return false
	}
	delete(r.mines, id)
	return true
}
