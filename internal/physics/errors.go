package physics

import "errors"

// ErrShutDown is returned (and, per spec.md §7, treated as a fatal program
// bug by callers) when any World method is invoked after Shutdown.
var ErrShutDown = errors.New("physics: world is shut down")

// ErrUnknownBody / ErrUnknownCollider are returned for handles that were
// never allocated or have already been removed.
var (
	ErrUnknownBody      = errors.New("physics: unknown body handle")
	ErrUnknownCollider  = errors.New("physics: unknown collider handle")
	ErrTrimeshOnNonFixed = errors.New("physics: trimesh colliders may only attach to fixed bodies")
)
