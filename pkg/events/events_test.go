package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmitReachesAllWatchers(t *testing.T) {
	m := &Manager{}
	a := m.Watch()
	b := m.Watch()
	assert.Equal(t, 2, m.Len())

	assert.Equal(t, 2, m.Emit("hello"))
	assert.Equal(t, "hello", <-a.Ch)
	assert.Equal(t, "hello", <-b.Ch)

	a.Stop()
	_, open := <-a.Ch
	assert.False(t, open)
	assert.Equal(t, 1, m.Emit("again"))

	b.Stop()
	b.Stop() // second stop is a no-op
	assert.Equal(t, 0, m.Len())
}

func TestEmitDropsForSlowWatchers(t *testing.T) {
	m := &Manager{}
	w := m.Watch()
	defer w.Stop()

	for i := 0; i < watcherBuffer+3; i++ {
		m.Emit(i)
	}
	assert.Equal(t, int64(3), w.Dropped())

	first := <-w.Ch
	require.Equal(t, 0, first)
}

func TestFollowKeepsEveryEventInOrder(t *testing.T) {
	m := &Manager{}
	w := m.Follow()
	lossy := m.Watch()
	defer lossy.Stop()

	total := watcherBuffer * 5
	for i := 0; i < total; i++ {
		m.Emit(i)
	}
	assert.Equal(t, int64(total-watcherBuffer), m.Dropped())

	for i := 0; i < total; i++ {
		require.Equal(t, i, <-w.Ch)
	}
	assert.Equal(t, int64(0), w.Dropped())
	assert.Zero(t, w.Pending())

	w.Stop()
	_, open := <-w.Ch
	assert.False(t, open)
}

func TestFollowStopWithBacklog(t *testing.T) {
	m := &Manager{}
	w := m.Follow()
	for i := 0; i < 3; i++ {
		m.Emit(i)
	}
	w.Stop()

	// Ch closes even though nobody read the backlog
	for range w.Ch {
	}
	assert.Equal(t, 0, m.Len())
}
