package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"guardnet/utils/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db, err := database.Init(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, time.Hour)
}

func TestSweepFiresDueTimersOnce(t *testing.T) {
	s := newService(t)
	var fired atomic.Int32
	var got string
	s.Register("poll", func(payload string) {
		fired.Add(1)
		got = payload
	})

	_, err := s.Create(time.Now().Add(-time.Minute), "poll", `{"id":42}`)
	require.NoError(t, err)
	_, err = s.Create(time.Now().Add(time.Hour), "poll", `{"id":43}`)
	require.NoError(t, err)

	s.Sweep()
	assert.Equal(t, int32(1), fired.Load(), "only the overdue timer fires")
	assert.Equal(t, `{"id":42}`, got)

	// The fired row is gone; the future one stays armed.
	s.Sweep()
	assert.Equal(t, int32(1), fired.Load())
}

func TestSweepKeepsUnhandledEvents(t *testing.T) {
	s := newService(t)
	_, err := s.Create(time.Now().Add(-time.Minute), "mystery", "{}")
	require.NoError(t, err)

	// No handler: the row is retried on the next sweep instead of
	// being dropped.
	s.Sweep()

	var fired atomic.Int32
	s.Register("mystery", func(string) { fired.Add(1) })
	s.Sweep()
	assert.Equal(t, int32(1), fired.Load())
}

func TestCancelMatchesPayloadExactly(t *testing.T) {
	s := newService(t)
	var fired atomic.Int32
	s.Register("draft_expire", func(string) { fired.Add(1) })

	_, err := s.Create(time.Now().Add(-time.Minute), "draft_expire", `{"id":7}`)
	require.NoError(t, err)
	// Id 71 shares a decimal prefix with id 7 and must survive.
	_, err = s.Create(time.Now().Add(-time.Minute), "draft_expire", `{"id":71}`)
	require.NoError(t, err)
	_, err = s.Create(time.Now().Add(-time.Minute), "draft_expire", `{"id":8}`)
	require.NoError(t, err)

	require.NoError(t, s.Cancel("draft_expire", `{"id":7}`))
	s.Sweep()
	assert.Equal(t, int32(2), fired.Load())
}

func TestStartFiresOverdueImmediately(t *testing.T) {
	s := newService(t)
	fired := make(chan string, 1)
	s.Register("sanction", func(payload string) { fired <- payload })

	_, err := s.Create(time.Now().Add(-time.Hour), "sanction", `{"case_id":1}`)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case payload := <-fired:
		assert.Equal(t, `{"case_id":1}`, payload)
	case <-time.After(5 * time.Second):
		t.Fatal("startup sweep did not fire the overdue timer")
	}
}
