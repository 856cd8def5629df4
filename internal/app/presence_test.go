package app

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/careerlab/overseer/internal/core"
	"github.com/careerlab/overseer/internal/domain"
)

type fakeConn struct {
	id core.HandleID

	mu     sync.Mutex
	frames []core.Frame
	closed bool
}

func newFakeConn(id string) *fakeConn {
	return &fakeConn{id: core.HandleID(id)}
}

func (f *fakeConn) ID() core.HandleID { return f.id }

func (f *fakeConn) TrySend(fr core.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, fr)
	return nil
}

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// types decodes the "type" field of every frame sent so far.
func (f *fakeConn) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.frames))
	for _, fr := range f.frames {
		var env struct {
			Type string `json:"type"`
		}
		_ = json.Unmarshal(fr, &env)
		out = append(out, env.Type)
	}
	return out
}

func (f *fakeConn) lastFrame() []byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.frames) == 0 {
		return nil
	}
	return f.frames[len(f.frames)-1]
}

func collectEvents(r *Registry) *[]core.PresenceEvent {
	events := &[]core.PresenceEvent{}
	r.Subscribe(func(ev core.PresenceEvent) {
		*events = append(*events, ev)
	})
	return events
}

func TestRegistryRegisterFlipsOnline(t *testing.T) {
	r := NewRegistry(false, nil)
	events := collectEvents(r)

	conn := newFakeConn("h1")
	r.Register("EMP-1", conn)

	require.True(t, r.IsOnline("EMP-1"))
	require.False(t, r.IsOnline("EMP-2"))

	bound, ok := r.Lookup("EMP-1")
	require.True(t, ok)
	require.Equal(t, core.HandleID("h1"), bound.ID())

	require.Len(t, *events, 1)
	require.Equal(t, domain.Identity("EMP-1"), (*events)[0].Identity)
	require.True(t, (*events)[0].Online)
}

func TestRegistrySingleBindingPerIdentity(t *testing.T) {
	r := NewRegistry(false, nil)

	first := newFakeConn("h1")
	second := newFakeConn("h2")
	r.Register("EMP-1", first)
	r.Register("EMP-1", second)

	bound, ok := r.Lookup("EMP-1")
	require.True(t, ok)
	require.Equal(t, core.HandleID("h2"), bound.ID())
	require.Len(t, r.Snapshot(), 1)
	// Old handle stays open unless the policy says otherwise.
	require.False(t, first.isClosed())
}

func TestRegistryCloseOldOnReregister(t *testing.T) {
	r := NewRegistry(true, nil)

	first := newFakeConn("h1")
	second := newFakeConn("h2")
	r.Register("EMP-1", first)
	r.Register("EMP-1", second)

	require.True(t, first.isClosed())
	require.False(t, second.isClosed())
	require.True(t, r.IsOnline("EMP-1"))
}

func TestRegistryStaleTeardownIsNoop(t *testing.T) {
	r := NewRegistry(false, nil)
	events := collectEvents(r)

	first := newFakeConn("h1")
	second := newFakeConn("h2")
	r.Register("EMP-1", first)
	r.Register("EMP-1", second)

	// The superseded connection's teardown must not flip presence.
	r.Unregister(first)
	require.True(t, r.IsOnline("EMP-1"))

	r.Unregister(second)
	require.False(t, r.IsOnline("EMP-1"))

	var online []bool
	for _, ev := range *events {
		online = append(online, ev.Online)
	}
	require.Equal(t, []bool{true, true, false}, online)
}

func TestRegistryUnregisterUnknownConn(t *testing.T) {
	r := NewRegistry(false, nil)
	events := collectEvents(r)

	r.Unregister(newFakeConn("ghost"))
	require.Empty(t, *events)
}

func TestRegistryEventTimestampsOrdered(t *testing.T) {
	r := NewRegistry(false, nil)
	base := time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	tick := 0
	r.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Minute)
	}
	events := collectEvents(r)

	conn := newFakeConn("h1")
	r.Register("EMP-1", conn)
	r.Unregister(conn)

	require.Len(t, *events, 2)
	checkIn := (*events)[0].At
	checkOut := (*events)[1].At
	require.True(t, !checkOut.Before(checkIn))
}
