package room

import "errors"

// Sentinel errors for the State-violation cases spec.md §7 calls out:
// logged-and-ignored by ordinary callers, but treated as a caller bug if an
// internal package forgets to check the room's lifecycle stage first.
var (
	ErrRoomNotWaiting   = errors.New("room: not in WAITING state")
	ErrRoomEnded        = errors.New("room: room has ended")
	ErrManifestTooLarge = errors.New("room: manifest exceeds max unit count")
	ErrManifestInvalid  = errors.New("room: manifest entry out of range")
	ErrUnknownUnit      = errors.New("room: unknown unit id")
	ErrNotAuthorized    = errors.New("room: sender is not authorized for this unit")
	ErrPhysicsDisabled  = errors.New("room: physics is not enabled for this room")
)
