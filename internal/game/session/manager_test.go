package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/crystalpowers/internal/game/actor"
)

func TestOutbox_Push(t *testing.T) {
	o := NewOutbox("test", 4)
	require.NoError(t, o.Push("hello"))
	assert.Equal(t, "hello", <-o.Notices())
}

func TestOutbox_PushClosed(t *testing.T) {
	o := NewOutbox("test", 4)
	o.Close()
	assert.True(t, o.IsClosed())
	assert.Error(t, o.Push("fail"))
}

func TestOutbox_PushFull(t *testing.T) {
	o := NewOutbox("test", 1)
	require.NoError(t, o.Push("first"))
	err := o.Push("overflow")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestOutbox_CloseIdempotent(t *testing.T) {
	o := NewOutbox("test", 4)
	o.Close()
	o.Close()
	assert.True(t, o.IsClosed())
}

func TestManager_AddRemove(t *testing.T) {
	m := NewManager()
	a := actor.NewSim(uuid.New(), "alice")
	s, err := m.Add(a)
	require.NoError(t, err)
	assert.Same(t, a, s.Actor.(*actor.Sim))
	assert.Equal(t, 1, m.Count())

	_, err = m.Add(a)
	assert.ErrorIs(t, err, ErrAlreadyConnected)

	got, ok := m.Get(a.ID())
	require.True(t, ok)
	assert.Same(t, s, got)

	removed, err := m.Remove(a.ID())
	require.NoError(t, err)
	assert.True(t, removed.Outbox.IsClosed())
	assert.Zero(t, m.Count())

	_, err = m.Remove(a.ID())
	assert.ErrorIs(t, err, ErrNotConnected)
}

func TestManager_Notify(t *testing.T) {
	m := NewManager()
	a := actor.NewSim(uuid.New(), "alice")
	s, err := m.Add(a)
	require.NoError(t, err)

	m.Notify(a.ID(), "power applied")
	m.Notify(uuid.New(), "nobody")
	assert.Equal(t, "power applied", <-s.Outbox.Notices())
}

func TestManager_AllOrdered(t *testing.T) {
	m := NewManager()
	for i := 0; i < 5; i++ {
		_, err := m.Add(actor.NewSim(uuid.New(), fmt.Sprintf("p%d", i)))
		require.NoError(t, err)
	}
	all := m.All()
	require.Len(t, all, 5)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].Actor.ID().String(), all[i].Actor.ID().String())
	}
}

func TestManager_ConcurrentAdd(t *testing.T) {
	m := NewManager()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = m.Add(actor.NewSim(uuid.New(), "p"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, m.Count())
}

func TestPropertyAddRemoveCount(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 30).Draw(t, "n")
		m := NewManager()
		ids := make([]uuid.UUID, n)
		for i := range ids {
			ids[i] = uuid.New()
			if _, err := m.Add(actor.NewSim(ids[i], "p")); err != nil {
				t.Fatal(err)
			}
		}
		k := rapid.IntRange(0, n).Draw(t, "removed")
		for _, id := range ids[:k] {
			if _, err := m.Remove(id); err != nil {
				t.Fatal(err)
			}
		}
		if m.Count() != n-k {
			t.Fatalf("count %d want %d", m.Count(), n-k)
		}
	})
}
