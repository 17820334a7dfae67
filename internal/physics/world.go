package physics

import (
	"sync"

	"github.com/asterobia/core/internal/mathvec"
)

// HeightField is the minimal surface query a World needs to resolve
// dynamic-body-vs-terrain contact without depending on the terrain
// package (which itself depends on physics for its collider manager).
// internal/terrain.Field satisfies this interface.
type HeightField interface {
	RadiusAt(dir mathvec.Vec3) float64
}

// DefaultGravityMagnitude is the spherical gravity acceleration applied to
// every dynamic body each sub-step, per spec.md §4.3.
const DefaultGravityMagnitude = 9.8

// originEpsilon bodies within this distance of the planet center are
// skipped by spherical gravity (direction is undefined at the origin).
const originEpsilon = 1e-6

// World wraps a fixed-timestep rigid-body-lite solver. Global gravity is
// always zero; spherical gravity is applied to every dynamic body before
// each internal sub-step. All methods fail with ErrShutDown after Shutdown.
type World struct {
	mu sync.Mutex

	bodies    map[BodyHandle]*Body
	colliders map[ColliderHandle]*Collider
	nextBody  BodyHandle
	nextColl  ColliderHandle

	gravityMagnitude float64
	subSteps         int
	dt               float64 // seconds per sub-step

	terrain HeightField

	activeContacts map[contactKey]bool
	pendingEvents  []CollisionEvent

	shutDown bool
}

type contactKey struct {
	a, b ColliderHandle
}

func normalizedKey(a, b ColliderHandle) contactKey {
	if a > b {
		a, b = b, a
	}
	return contactKey{a, b}
}

// NewWorld constructs a World stepping at 1/physicsHz seconds per sub-step,
// running subSteps sub-steps per Step call.
func NewWorld(physicsHz int, subSteps int) *World {
	if physicsHz <= 0 {
		physicsHz = 60
	}
	if subSteps <= 0 {
		subSteps = 1
	}
	return &World{
		bodies:           make(map[BodyHandle]*Body),
		colliders:        make(map[ColliderHandle]*Collider),
		gravityMagnitude: DefaultGravityMagnitude,
		subSteps:         subSteps,
		dt:               1.0 / float64(physicsHz),
		activeContacts:   make(map[contactKey]bool),
	}
}

// SetGravityMagnitude overrides the default spherical gravity strength.
func (w *World) SetGravityMagnitude(g float64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.gravityMagnitude = g
}

// SetTerrainField installs the height field used for dynamic-vs-terrain
// contact resolution. The server's radius_at is authoritative, per
// spec.md §4.2, so the physics world queries it directly rather than
// building its own trimesh narrow-phase.
func (w *World) SetTerrainField(f HeightField) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.terrain = f
}

// CreateBody allocates a new body of the given type at the given pose.
func (w *World) CreateBody(bodyType BodyType, pos mathvec.Vec3, orient mathvec.Quat) (BodyHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return 0, ErrShutDown
	}
	w.nextBody++
	h := w.nextBody
	w.bodies[h] = &Body{
		Handle:         h,
		Type:           bodyType,
		Position:       pos,
		Orientation:    orient,
		GravityScale:   1,
		LinearDamping:  0,
		AngularDamping: 0,
		Mass:           1,
	}
	return h, nil
}

// RemoveBody destroys a body and all its colliders.
func (w *World) RemoveBody(h BodyHandle) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return ErrShutDown
	}
	b, ok := w.bodies[h]
	if !ok {
		return ErrUnknownBody
	}
	for _, ch := range b.colliders {
		delete(w.colliders, ch)
	}
	delete(w.bodies, h)
	return nil
}

// AttachBallCollider attaches a ball collider of the given radius to body.
func (w *World) AttachBallCollider(body BodyHandle, radius float64) (ColliderHandle, error) {
	return w.attachCollider(body, ColliderBall, radius)
}

// AttachTrimeshCollider attaches a trimesh collider to body. Trimesh
// colliders may only attach to fixed bodies, per spec.md §4.3.
func (w *World) AttachTrimeshCollider(body BodyHandle) (ColliderHandle, error) {
	w.mu.Lock()
	b, ok := w.bodies[body]
	shutDown := w.shutDown
	w.mu.Unlock()
	if shutDown {
		return 0, ErrShutDown
	}
	if !ok {
		return 0, ErrUnknownBody
	}
	if b.Type != BodyFixed {
		return 0, ErrTrimeshOnNonFixed
	}
	return w.attachCollider(body, ColliderTrimesh, 0)
}

func (w *World) attachCollider(body BodyHandle, shape ColliderShape, radius float64) (ColliderHandle, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return 0, ErrShutDown
	}
	b, ok := w.bodies[body]
	if !ok {
		return 0, ErrUnknownBody
	}
	w.nextColl++
	ch := w.nextColl
	w.colliders[ch] = &Collider{Handle: ch, Body: body, Shape: shape, Radius: radius}
	b.colliders = append(b.colliders, ch)
	return ch, nil
}

// SetColliderEventsEnabled enables or disables collision-event emission for
// a collider.
func (w *World) SetColliderEventsEnabled(h ColliderHandle, enabled bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return ErrShutDown
	}
	c, ok := w.colliders[h]
	if !ok {
		return ErrUnknownCollider
	}
	c.EventsEnabled = enabled
	return nil
}

// SetColliderSensor marks a collider as a sensor (no physical contact
// response, events only) or not.
func (w *World) SetColliderSensor(h ColliderHandle, sensor bool) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return ErrShutDown
	}
	c, ok := w.colliders[h]
	if !ok {
		return ErrUnknownCollider
	}
	c.Sensor = sensor
	return nil
}

// GetBody returns a copy of the body state for h.
func (w *World) GetBody(h BodyHandle) (Body, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return Body{}, ErrShutDown
	}
	b, ok := w.bodies[h]
	if !ok {
		return Body{}, ErrUnknownBody
	}
	return *b, nil
}

// GetBodyByCollider resolves the owning body of a collider handle.
func (w *World) GetBodyByCollider(h ColliderHandle) (Body, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return Body{}, ErrShutDown
	}
	c, ok := w.colliders[h]
	if !ok {
		return Body{}, ErrUnknownCollider
	}
	b, ok := w.bodies[c.Body]
	if !ok {
		return Body{}, ErrUnknownBody
	}
	return *b, nil
}

// mutateBody is a small helper so the many SetX methods below stay terse.
func (w *World) mutateBody(h BodyHandle, fn func(*Body)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return ErrShutDown
	}
	b, ok := w.bodies[h]
	if !ok {
		return ErrUnknownBody
	}
	fn(b)
	return nil
}

func (w *World) SetBodyType(h BodyHandle, t BodyType) error {
	return w.mutateBody(h, func(b *Body) { b.Type = t })
}

func (w *World) SetPosition(h BodyHandle, pos mathvec.Vec3) error {
	return w.mutateBody(h, func(b *Body) { b.Position = pos })
}

func (w *World) SetOrientation(h BodyHandle, q mathvec.Quat) error {
	return w.mutateBody(h, func(b *Body) { b.Orientation = q })
}

func (w *World) SetLinearVelocity(h BodyHandle, v mathvec.Vec3) error {
	return w.mutateBody(h, func(b *Body) { b.LinVel = v })
}

func (w *World) SetAngularVelocity(h BodyHandle, v mathvec.Vec3) error {
	return w.mutateBody(h, func(b *Body) { b.AngVel = v })
}

func (w *World) SetDamping(h BodyHandle, linear, angular float64) error {
	return w.mutateBody(h, func(b *Body) {
		b.LinearDamping = linear
		b.AngularDamping = angular
	})
}

func (w *World) SetCCD(h BodyHandle, enabled bool) error {
	return w.mutateBody(h, func(b *Body) { b.CCD = enabled })
}

func (w *World) SetGravityScale(h BodyHandle, scale float64) error {
	return w.mutateBody(h, func(b *Body) { b.GravityScale = scale })
}

// ApplyImpulse adds an instantaneous change in linear velocity (impulse /
// mass) to a dynamic body.
func (w *World) ApplyImpulse(h BodyHandle, impulse mathvec.Vec3) error {
	return w.mutateBody(h, func(b *Body) {
		if b.Mass <= 0 {
			return
		}
		b.LinVel = mathvec.Add(b.LinVel, mathvec.Scale(impulse, 1/b.Mass))
	})
}

// Shutdown idempotently frees all bodies/colliders. Any method call after
// Shutdown returns ErrShutDown.
func (w *World) Shutdown() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return
	}
	w.shutDown = true
	w.bodies = nil
	w.colliders = nil
	w.activeContacts = nil
	w.pendingEvents = nil
}

// Step runs subSteps internal solver sub-steps. Before every internal step
// it applies spherical gravity to each dynamic body (force =
// normalize(-position) * gravityMagnitude * mass; bodies within
// originEpsilon of the planet center are skipped), then integrates
// velocities, resolves ball-ball contacts, and resolves dynamic-vs-terrain
// contact using the installed HeightField. Collision events raised during
// this Step are queued for DrainCollisionEvents.
func (w *World) Step() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.shutDown {
		return ErrShutDown
	}

	for i := 0; i < w.subSteps; i++ {
		w.applyGravityLocked()
		w.integrateLocked()
		w.resolveBallContactsLocked()
		w.resolveTerrainContactLocked()
	}
	return nil
}

func (w *World) applyGravityLocked() {
	for _, b := range w.bodies {
		if b.Type != BodyDynamic || b.GravityScale == 0 {
			continue
		}
		if mathvec.LengthSq(b.Position) < originEpsilon*originEpsilon {
			continue
		}
		dir := mathvec.Normalize(mathvec.Scale(b.Position, -1))
		accel := mathvec.Scale(dir, w.gravityMagnitude*b.GravityScale)
		b.LinVel = mathvec.Add(b.LinVel, mathvec.Scale(accel, w.dt))
	}
}

func (w *World) integrateLocked() {
	for _, b := range w.bodies {
		if b.Type != BodyDynamic {
			continue
		}
		b.Position = mathvec.Add(b.Position, mathvec.Scale(b.LinVel, w.dt))

		if mathvec.LengthSq(b.AngVel) > 0 {
			angle := mathvec.Length(b.AngVel) * w.dt
			delta := mathvec.FromAxisAngle(b.AngVel, angle)
			b.Orientation = mathvec.NormalizeQuat(mathvec.Mul(delta, b.Orientation))
		}

		if b.LinearDamping > 0 {
			b.LinVel = mathvec.Scale(b.LinVel, 1-clamp01(b.LinearDamping*w.dt))
		}
		if b.AngularDamping > 0 {
			b.AngVel = mathvec.Scale(b.AngVel, 1-clamp01(b.AngularDamping*w.dt))
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// ballColliderOf returns the single ball collider of a body, if any (units
// and obstacles each carry exactly one).
func (w *World) ballColliderOf(b *Body) (*Collider, bool) {
	for _, ch := range b.colliders {
		if c, ok := w.colliders[ch]; ok && c.Shape == ColliderBall {
			return c, true
		}
	}
	return nil, false
}

// ballBroadPhaseCellSize sizes the SpatialGrid so a 3x3x3 neighborhood
// query always covers the largest ball-vs-ball interaction distance a room
// sees in practice (the cuboid half-extent plus typical obstacle radii).
const ballBroadPhaseCellSize = 8.0

// resolveBallContactsLocked generalizes the teacher's elastic-collision
// bounceAsteroids (internal/loop/server/collision.go in tomz197/asteroids)
// from 2D circles to 3D balls. It reuses the teacher's own broad-phase
// habit (internal/physics/grid.go's SpatialGrid, built for a 2D
// screen-wrapped world) instead of a full pairwise scan: every ball
// collider is inserted into a 3D grid keyed by world position, and only
// the 3x3x3 cell neighborhood around each body is narrow-phase tested.
// Emits start/end CollisionEvents for any pair of event-enabled colliders.
func (w *World) resolveBallContactsLocked() {
	type entry struct {
		body     *Body
		collider *Collider
	}
	var entries []entry
	for _, b := range w.bodies {
		if c, ok := w.ballColliderOf(b); ok {
			entries = append(entries, entry{b, c})
		}
	}

	grid := NewSpatialGrid(ballBroadPhaseCellSize)
	for i, e := range entries {
		grid.Insert(e.body.Position, i)
	}

	seen := make(map[contactKey]bool)
	tested := make(map[[2]int]bool)

	for i, e1 := range entries {
		grid.QueryAround(e1.body.Position, func(j int) bool {
			if j <= i {
				return false
			}
			pair := [2]int{i, j}
			if tested[pair] {
				return false
			}
			tested[pair] = true

			e2 := entries[j]
			dist := mathvec.Distance(e1.body.Position, e2.body.Position)
			minDist := e1.collider.Radius + e2.collider.Radius
			if dist >= minDist {
				return false
			}

			key := normalizedKey(e1.collider.Handle, e2.collider.Handle)
			if e1.collider.EventsEnabled && e2.collider.EventsEnabled {
				seen[key] = true
				if !w.activeContacts[key] {
					w.emitEvent(e1.collider.Handle, e2.collider.Handle, true)
				}
			}
			if !e1.collider.Sensor && !e2.collider.Sensor && dist > 1e-9 {
				w.resolveElasticContact(e1.body, e2.body, dist, minDist)
			}
			return false
		})
	}

	for key, active := range w.activeContacts {
		if active && !seen[key] {
			w.emitEvent(key.a, key.b, false)
		}
	}
	w.activeContacts = seen
}

// resolveElasticContact is the 3D generalization of the teacher's
// bounceAsteroids: equal-and-opposite impulse along the contact normal,
// using each body's Mass (1 when unset; a non-dynamic body counts as
// immovable, see massOf), plus positional separation to prevent sustained
// overlap.
func (w *World) resolveElasticContact(a, b *Body, dist, minDist float64) {
	if a.Type != BodyDynamic && b.Type != BodyDynamic {
		return
	}
	normal := mathvec.Scale(mathvec.Sub(b.Position, a.Position), 1/dist)

	relVel := mathvec.Sub(a.LinVel, b.LinVel)
	along := mathvec.Dot(relVel, normal)
	if along < 0 {
		return // separating already
	}

	m1 := massOf(a)
	m2 := massOf(b)
	total := m1 + m2
	if total <= 0 {
		return
	}
	impulse := 2 * along / total

	if a.Type == BodyDynamic {
		a.LinVel = mathvec.Sub(a.LinVel, mathvec.Scale(normal, impulse*m2))
	}
	if b.Type == BodyDynamic {
		b.LinVel = mathvec.Add(b.LinVel, mathvec.Scale(normal, impulse*m1))
	}

	overlap := minDist - dist
	if overlap > 0 {
		if a.Type == BodyDynamic && b.Type == BodyDynamic {
			sep1 := overlap * m2 / total
			sep2 := overlap * m1 / total
			a.Position = mathvec.Sub(a.Position, mathvec.Scale(normal, sep1))
			b.Position = mathvec.Add(b.Position, mathvec.Scale(normal, sep2))
		} else if a.Type == BodyDynamic {
			a.Position = mathvec.Sub(a.Position, mathvec.Scale(normal, overlap))
		} else if b.Type == BodyDynamic {
			b.Position = mathvec.Add(b.Position, mathvec.Scale(normal, overlap))
		}
	}
}

func massOf(b *Body) float64 {
	if b.Type != BodyDynamic {
		return 1e9 // effectively infinite/immovable
	}
	if b.Mass <= 0 {
		return 1
	}
	return b.Mass
}

// resolveTerrainContactLocked keeps dynamic ball bodies from sinking below
// the authoritative terrain surface: the physics world has no trimesh
// narrow-phase of its own (spec.md §4.2 designates radius_at authoritative),
// so it queries the installed HeightField directly.
func (w *World) resolveTerrainContactLocked() {
	if w.terrain == nil {
		return
	}
	for _, b := range w.bodies {
		if b.Type != BodyDynamic {
			continue
		}
		c, ok := w.ballColliderOf(b)
		if !ok || c.Sensor {
			continue
		}
		dir := mathvec.Normalize(b.Position)
		surfaceR := w.terrain.RadiusAt(dir) + c.Radius
		dist := mathvec.Length(b.Position)
		if dist < surfaceR {
			b.Position = mathvec.Scale(dir, surfaceR)
			radialVel := mathvec.Dot(b.LinVel, dir)
			if radialVel < 0 {
				b.LinVel = mathvec.Sub(b.LinVel, mathvec.Scale(dir, radialVel))
			}
		}
	}
}

func (w *World) emitEvent(a, b ColliderHandle, started bool) {
	w.pendingEvents = append(w.pendingEvents, CollisionEvent{ColliderA: a, ColliderB: b, Started: started})
}

// DrainCollisionEvents invokes fn once per collision event queued during
// the most recent Step call, then clears the queue, per spec.md §4.3.
func (w *World) DrainCollisionEvents(fn func(CollisionEvent)) error {
	w.mu.Lock()
	if w.shutDown {
		w.mu.Unlock()
		return ErrShutDown
	}
	events := w.pendingEvents
	w.pendingEvents = nil
	w.mu.Unlock()

	for _, e := range events {
		fn(e)
	}
	return nil
}
