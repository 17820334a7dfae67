package gameserver

import (
	"encoding/json"
	"strings"

	"github.com/asterobia/core/internal/command"
	"github.com/asterobia/core/internal/mathvec"
	"github.com/asterobia/core/internal/relay"
	"github.com/asterobia/core/internal/room"
)

// MaxManifestUnits bounds a SPAWN_MANIFEST frame; room.CreateUnitsFromManifest
// re-checks this against the room's own configured cap, this is the
// transport-level first line of defense.
const MaxManifestUnits = 200

// toWireSnapshot flattens a room.Snapshot into the wire-tagged
// relay.ServerSnapshot shape, per spec.md §6.
func toWireSnapshot(snap room.Snapshot) relay.ServerSnapshot {
	units := make([]relay.UnitSnapshot, len(snap.Units))
	for i, u := range snap.Units {
		units[i] = relay.UnitSnapshot{
			ID:         u.ID,
			OwnerSlot:  u.OwnerSlot,
			ModelIndex: u.ModelIndex,
			PX:         u.Position.X,
			PY:         u.Position.Y,
			PZ:         u.Position.Z,
			QX:         u.Orientation.X,
			QY:         u.Orientation.Y,
			QZ:         u.Orientation.Z,
			QW:         u.Orientation.W,
			Heading:     u.Heading,
			Speed:       u.Speed,
			State:       string(u.State),
			HP:          u.HP,
			Mode:        u.Mode,
			PhysicsMode: u.PhysicsMode,
			Altitude:    u.Altitude,
		}
	}
	return relay.ServerSnapshot{
		Version:      snap.Version,
		Tick:         snap.Tick,
		ServerTimeMs: snap.ServerTimeMs,
		Units:        units,
		StateHash:    snap.StateHash,
	}
}

func roomIDFromChannel(channel string) (string, bool) {
	const prefix = "asterobia:session:"
	if !strings.HasPrefix(channel, prefix) {
		return "", false
	}
	return strings.TrimPrefix(channel, prefix), true
}

func (gs *GameServer) handleHostAnnounce(sub relay.Subscriber, payload []byte) {
	var msg relay.HostAnnounce
	if err := json.Unmarshal(payload, &msg); err != nil || msg.HostID == "" {
		logIgnored("HOST_ANNOUNCE", "malformed payload")
		return
	}

	gs.mu.Lock()
	if _, exists := gs.rooms[msg.HostID]; exists {
		gs.mu.Unlock()
		return
	}
	r := gs.newRoom(msg.HostID)
	r.SetMetricsRecorder(gs.metrics)
	gs.rooms[msg.HostID] = r
	gs.guestSlots[msg.HostID] = 1
	gs.mu.Unlock()

	r.SetSnapshotHandler(func(snap room.Snapshot) {
		gs.relay.Inject(relay.SessionChannel(msg.HostID), toWireSnapshot(snap))
	})

	gs.mapSlot(sub, ClientSlot{RoomID: msg.HostID, Slot: room.HostSlot})
	r.AddPlayer(room.HostSlot, room.Player{DisplayName: msg.HostDisplayName})
	gs.metrics.SetActiveRooms(gs.roomCount())
}

func (gs *GameServer) handleSpawnManifest(sub relay.Subscriber, payload []byte) {
	cs, ok := gs.slotFor(sub)
	if !ok || cs.Slot != room.HostSlot {
		logIgnored("SPAWN_MANIFEST", "sender is not the host")
		return
	}
	r, ok := gs.Room(cs.RoomID)
	if !ok || r.State() != room.Waiting {
		logIgnored("SPAWN_MANIFEST", "room missing or not WAITING")
		return
	}

	var msg relay.SpawnManifest
	if err := json.Unmarshal(payload, &msg); err != nil || len(msg.Units) > MaxManifestUnits {
		logIgnored("SPAWN_MANIFEST", "malformed or oversized payload")
		return
	}

	units := make([]room.ManifestUnit, len(msg.Units))
	for i, u := range msg.Units {
		pos := mathvec.Vec3{}
		if u.PX != nil {
			pos.X = *u.PX
		}
		if u.PY != nil {
			pos.Y = *u.PY
		}
		if u.PZ != nil {
			pos.Z = *u.PZ
		}
		units[i] = room.ManifestUnit{ID: u.ID, OwnerSlot: u.OwnerSlot, ModelIndex: u.ModelIndex, Position: pos}
	}

	if err := r.CreateUnitsFromManifest(units); err != nil {
		logIgnored("SPAWN_MANIFEST", err.Error())
		return
	}
	if err := r.Start(gs.ctx); err != nil {
		logIgnored("SPAWN_MANIFEST", "room start failed: "+err.Error())
		return
	}
	gs.runRoom(r)
	gs.metrics.RoomStarted()
}

func (gs *GameServer) handleJoinAck(sub relay.Subscriber, payload []byte) {
	cs, ok := gs.slotFor(sub)
	if !ok || cs.Slot != room.HostSlot {
		logIgnored("JOIN_ACK", "sender is not the host")
		return
	}
	r, ok := gs.Room(cs.RoomID)
	if !ok {
		return
	}

	var msg relay.JoinAck
	if err := json.Unmarshal(payload, &msg); err != nil || !msg.Accepted {
		return
	}
	if msg.AssignedSlot <= room.HostSlot || msg.AssignedSlot > r.MaxSlot() {
		logIgnored("JOIN_ACK", "assigned-slot out of range")
		return
	}
	r.EnsureGuestUnit(msg.AssignedSlot)
}

func (gs *GameServer) handleMoveInput(sub relay.Subscriber, channel string, payload []byte) {
	cs, ok := gs.slotFor(sub)
	if !ok {
		roomID, isSession := roomIDFromChannel(channel)
		if !isSession {
			logIgnored("MOVE_INPUT", "sender has no mapped slot and channel is not a session channel")
			return
		}
		r, exists := gs.Room(roomID)
		if !exists {
			return
		}
		slot := gs.nextGuestSlot(roomID, r.MaxSlot())
		if slot < 0 {
			logIgnored("MOVE_INPUT", "room has no free guest slot")
			return
		}
		cs = ClientSlot{RoomID: roomID, Slot: slot}
		gs.mapSlot(sub, cs)
	}

	r, ok := gs.Room(cs.RoomID)
	if !ok {
		return
	}

	var msg relay.MoveInput
	if err := json.Unmarshal(payload, &msg); err != nil {
		logIgnored("MOVE_INPUT", "malformed payload")
		return
	}

	r.EnqueueCommand(command.Command{
		ClientSlot: cs.Slot,
		Kind:       command.KindMoveInput,
		Payload: room.MoveInputPayload{
			UnitID:   msg.UnitID,
			Forward:  msg.Forward,
			Backward: msg.Backward,
			Left:     msg.Left,
			Right:    msg.Right,
		},
	})
	gs.metrics.CommandRouted("move_input")
}

func (gs *GameServer) handlePathData(sub relay.Subscriber, payload []byte) {
	cs, ok := gs.slotFor(sub)
	if !ok {
		logIgnored("PATH_DATA", "unknown sender")
		return
	}
	r, ok := gs.Room(cs.RoomID)
	if !ok || r.State() != room.Running {
		logIgnored("PATH_DATA", "room missing or not RUNNING")
		return
	}

	var msg relay.PathData
	if err := json.Unmarshal(payload, &msg); err != nil || len(msg.Waypoints) == 0 {
		logIgnored("PATH_DATA", "malformed payload")
		return
	}

	waypoints := make([]mathvec.Vec3, len(msg.Waypoints))
	for i, w := range msg.Waypoints {
		v := mathvec.Vec3{X: w.X, Y: w.Y, Z: w.Z}
		if !mathvec.IsFinite(v) {
			logIgnored("PATH_DATA", "non-finite waypoint")
			return
		}
		waypoints[i] = v
	}

	r.EnqueueCommand(command.Command{
		ClientSlot: cs.Slot,
		Kind:       command.KindPathData,
		Payload: room.PathDataPayload{
			UnitID:    msg.UnitID,
			Waypoints: waypoints,
			Closed:    msg.Closed,
		},
	})
	gs.metrics.CommandRouted("path_data")
}

// handleCmdBatch implements CMD_BATCH, per spec.md §6: a client-predicted
// batch of MOVE_INPUT/PATH_DATA commands, buffered for sim-tick plus a fixed
// scheduling buffer. Out-of-order or duplicate batch-seqs are dropped;
// batches over maxBatchCommands are truncated; every inner command's slot
// is the sender's own transport-authenticated mapping, never the payload's
// own "slot" field, per the universal identity-mapping invariant.
func (gs *GameServer) handleCmdBatch(sub relay.Subscriber, payload []byte) {
	cs, ok := gs.slotFor(sub)
	if !ok {
		logIgnored("CMD_BATCH", "unknown sender")
		return
	}
	r, ok := gs.Room(cs.RoomID)
	if !ok || r.State() != room.Running {
		logIgnored("CMD_BATCH", "room missing or not RUNNING")
		return
	}

	var msg relay.CmdBatch
	if err := json.Unmarshal(payload, &msg); err != nil {
		logIgnored("CMD_BATCH", "malformed payload")
		return
	}

	gs.batchMu.Lock()
	last, seen := gs.lastBatchSeq[sub.ID()]
	if seen && msg.BatchSeq <= last {
		gs.batchMu.Unlock()
		gs.metrics.CommandDropped("cmd_batch:out_of_order")
		logIgnored("CMD_BATCH", "duplicate or out-of-order batch-seq")
		return
	}
	gs.lastBatchSeq[sub.ID()] = msg.BatchSeq
	gs.batchMu.Unlock()

	cmds := msg.Commands
	if len(cmds) > maxBatchCommands {
		gs.metrics.CommandDropped("cmd_batch:truncated")
		cmds = cmds[:maxBatchCommands]
	}

	scheduledTick := r.Tick() + cmdBatchScheduleBuffer
	for _, c := range cmds {
		switch c.Type {
		case "MOVE_INPUT":
			var mi relay.MoveInput
			if err := json.Unmarshal(c.Params, &mi); err != nil {
				continue
			}
			r.EnqueueCommand(command.Command{
				ClientSlot:    cs.Slot,
				Kind:          command.KindMoveInput,
				ScheduledTick: &scheduledTick,
				Payload: room.MoveInputPayload{
					UnitID:   mi.UnitID,
					Forward:  mi.Forward,
					Backward: mi.Backward,
					Left:     mi.Left,
					Right:    mi.Right,
				},
			})
			gs.metrics.CommandRouted("cmd_batch:move_input")
		case "PATH_DATA":
			var pd relay.PathData
			if err := json.Unmarshal(c.Params, &pd); err != nil || len(pd.Waypoints) == 0 {
				continue
			}
			waypoints := make([]mathvec.Vec3, len(pd.Waypoints))
			finite := true
			for i, w := range pd.Waypoints {
				v := mathvec.Vec3{X: w.X, Y: w.Y, Z: w.Z}
				if !mathvec.IsFinite(v) {
					finite = false
					break
				}
				waypoints[i] = v
			}
			if !finite {
				continue
			}
			r.EnqueueCommand(command.Command{
				ClientSlot:    cs.Slot,
				Kind:          command.KindPathData,
				ScheduledTick: &scheduledTick,
				Payload: room.PathDataPayload{
					UnitID:    pd.UnitID,
					Waypoints: waypoints,
					Closed:    pd.Closed,
				},
			})
			gs.metrics.CommandRouted("cmd_batch:path_data")
		default:
			logIgnored("CMD_BATCH", "unknown inner command type: "+c.Type)
		}
	}
}

func (gs *GameServer) handleCmdAdmin(sub relay.Subscriber, payload []byte) {
	cs, ok := gs.slotFor(sub)
	if !ok || cs.Slot != room.HostSlot {
		logIgnored("CMD_ADMIN", "sender is not the host")
		return
	}
	r, ok := gs.Room(cs.RoomID)
	if !ok || !r.EnablePhysics() {
		logIgnored("CMD_ADMIN", "room missing or physics disabled")
		return
	}

	var msg relay.CmdAdmin
	if err := json.Unmarshal(payload, &msg); err != nil {
		logIgnored("CMD_ADMIN", "malformed payload")
		return
	}

	action := room.AdminAction(msg.Action)
	switch action {
	case room.ActionTriggerExplosion, room.ActionPlaceMine, room.ActionSpawnRock,
		room.ActionToggleUnitPhysics, room.ActionDropTest, room.ActionSetAltitude,
		room.ActionToggleRapier, room.ActionSetRolloverThreshold:
	default:
		logIgnored("CMD_ADMIN", "unknown action: "+msg.Action)
		return
	}

	r.EnqueueCommand(command.Command{
		ClientSlot: cs.Slot,
		Kind:       command.KindAdmin,
		Payload: room.AdminPayload{
			Action:   action,
			UnitID:   msg.UnitID,
			Position: mathvec.Vec3{X: msg.Position.X, Y: msg.Position.Y, Z: msg.Position.Z},
			Radius:   msg.Radius,
			Strength: msg.Strength,
			Altitude: msg.Altitude,
			Threshold: msg.Threshold,
		},
	})
	gs.metrics.CommandRouted("admin")
}
