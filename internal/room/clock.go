package room

import "time"

// defaultNowMs is the only wall-clock read anywhere in the room package,
// and it is confined to snapshot timestamping (Snapshot.ServerTimeMs):
// spec.md §8's determinism invariant compares snapshots "ignoring
// server-time-ms" precisely so this read never affects simulation state.
func defaultNowMs() int64 { return time.Now().UnixMilli() }
