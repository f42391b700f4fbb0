package audit

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingStampsTimestamp(t *testing.T) {
	r := NewRing(10)
	r.Add(Entry{"event_id": "evt-1"})

	got := r.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, "evt-1", got[0]["event_id"])
	assert.NotZero(t, got[0]["ts"])
}

func TestRingKeepsCallerTimestamp(t *testing.T) {
	r := NewRing(10)
	r.Add(Entry{"ts": int64(42)})

	got := r.Snapshot()
	require.Len(t, got, 1)
	assert.Equal(t, int64(42), got[0]["ts"])
}

func TestRingEvictsOldest(t *testing.T) {
	r := NewRing(3)
	for i := 0; i < 5; i++ {
		r.Add(Entry{"n": i})
	}

	got := r.Snapshot()
	require.Len(t, got, 3)
	assert.Equal(t, 2, got[0]["n"])
	assert.Equal(t, 4, got[2]["n"])
}

func TestRingSnapshotIsCopy(t *testing.T) {
	r := NewRing(10)
	r.Add(Entry{"n": 1})

	snap := r.Snapshot()
	r.Add(Entry{"n": 2})

	assert.Len(t, snap, 1)
	assert.Equal(t, 2, r.Len())
}

func TestRingConcurrentAdds(t *testing.T) {
	r := NewRing(100)
	done := make(chan struct{})
	for g := 0; g < 8; g++ {
		go func(g int) {
			defer func() { done <- struct{}{} }()
			for i := 0; i < 50; i++ {
				r.Add(Entry{"id": fmt.Sprintf("%d-%d", g, i)})
			}
		}(g)
	}
	for g := 0; g < 8; g++ {
		<-done
	}

	assert.Equal(t, 100, r.Len())
}

func TestNewTrailDefaults(t *testing.T) {
	tr := NewTrail()
	assert.NotNil(t, tr.Events)
	assert.NotNil(t, tr.Errors)
	assert.NotNil(t, tr.Replies)
}
