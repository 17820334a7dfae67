package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestFlushReturnsUnscheduledCommandsImmediately(t *testing.T) {
	q := NewQueue()
	require.True(t, q.Enqueue(Command{ClientSlot: 1, Kind: KindMoveInput}))
	require.True(t, q.Enqueue(Command{ClientSlot: 2, Kind: KindMoveInput}))

	ready := q.Flush(0)
	require.Len(t, ready, 2)
	assert.Equal(t, 1, ready[0].ClientSlot)
	assert.Equal(t, 2, ready[1].ClientSlot)
}

func TestFlushHoldsBackFutureScheduledCommands(t *testing.T) {
	q := NewQueue()
	require.True(t, q.Enqueue(Command{ClientSlot: 1, ScheduledTick: intPtr(5)}))
	require.True(t, q.Enqueue(Command{ClientSlot: 2}))

	ready := q.Flush(0)
	require.Len(t, ready, 1)
	assert.Equal(t, 2, ready[0].ClientSlot)

	ready = q.Flush(4)
	assert.Empty(t, ready)

	ready = q.Flush(5)
	require.Len(t, ready, 1)
	assert.Equal(t, 1, ready[0].ClientSlot)
}

func TestSuccessiveFlushesPartitionTheStream(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 10; i++ {
		require.True(t, q.Enqueue(Command{ClientSlot: i}))
	}

	first := q.Flush(0)
	second := q.Flush(1)
	assert.Len(t, first, 10)
	assert.Empty(t, second)
}

func TestFlushPreservesArrivalOrder(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 50; i++ {
		require.True(t, q.Enqueue(Command{ClientSlot: i}))
	}
	ready := q.Flush(0)
	require.Len(t, ready, 50)
	for i, c := range ready {
		assert.Equal(t, i, c.ClientSlot)
	}
}

func TestEnqueueDropsPastQueueMax(t *testing.T) {
	q := NewQueue()
	for i := 0; i < QueueMax; i++ {
		require.True(t, q.Enqueue(Command{ClientSlot: i}))
	}
	assert.False(t, q.Enqueue(Command{ClientSlot: QueueMax}))
	assert.Equal(t, uint64(1), q.Dropped())
}
