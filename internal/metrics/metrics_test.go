package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gaugeValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.Metric {
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		for _, m := range fam.Metric {
			if !labelsMatch(m.GetLabel(), labels) {
				continue
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(pairs []*dto.LabelPair, want map[string]string) bool {
	if len(want) == 0 {
		return true
	}
	got := make(map[string]string, len(pairs))
	for _, p := range pairs {
		got[p.GetName()] = p.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestPromRecordsRoomLifecycleAndGauges(t *testing.T) {
	reg := prometheus.NewRegistry()
	rec := NewProm(reg)

	rec.RoomStarted()
	rec.RoomEnded()
	rec.SetActiveRooms(3)
	rec.SetActiveUnits("room-1", 5)
	rec.TickObserved("room-1")
	rec.CommandRouted("move_input")
	rec.CommandDropped("rate_limited:move_input")
	rec.PatchEvicted()
	rec.MineDetonated()

	assert.Equal(t, float64(3), gaugeValue(t, reg, "asterobia_active_rooms"))
	assert.Equal(t, float64(1), counterValue(t, reg, "asterobia_rooms_started_total", nil))
	assert.Equal(t, float64(1), counterValue(t, reg, "asterobia_rooms_ended_total", nil))
	assert.Equal(t, float64(1), counterValue(t, reg, "asterobia_commands_routed_total", map[string]string{"kind": "move_input"}))
	assert.Equal(t, float64(1), counterValue(t, reg, "asterobia_commands_dropped_total", map[string]string{"reason": "rate_limited:move_input"}))
}

func TestNoopRecorderDiscardsEverything(t *testing.T) {
	var rec Recorder = Noop{}
	assert.NotPanics(t, func() {
		rec.TickObserved("room")
		rec.CommandDropped("reason")
		rec.CommandRouted("kind")
		rec.PatchEvicted()
		rec.MineDetonated()
		rec.RoomStarted()
		rec.RoomEnded()
		rec.SetActiveRooms(1)
		rec.SetActiveUnits("room", 1)
	})
}
