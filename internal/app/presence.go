package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/core"
	"github.com/careerlab/overseer/internal/domain"
	"github.com/careerlab/overseer/internal/metrics"
)

// Registry owns the binding table: identity -> one live connection.
// It is the only writer of presence state; the relay and the snapshot
// API read through core.PresenceSource.
type Registry struct {
	mu       sync.RWMutex
	bindings map[domain.Identity]core.SignalConnection
	subs     []func(core.PresenceEvent)

	// closeOld closes a superseded connection on re-registration.
	// Default false: the old handle may still carry an in-flight
	// negotiation, so it is left to die on its own teardown.
	closeOld bool

	metrics *metrics.Metrics
	now     func() time.Time
}

func NewRegistry(closeOldOnReregister bool, m *metrics.Metrics) *Registry {
	return &Registry{
		bindings: make(map[domain.Identity]core.SignalConnection),
		closeOld: closeOldOnReregister,
		metrics:  m,
		now:      time.Now,
	}
}

// Subscribe adds a presence listener. Listeners are invoked while the
// registry lock is held so per-identity events arrive strictly ordered;
// they must return quickly and never call back into the registry.
func (r *Registry) Subscribe(fn func(core.PresenceEvent)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, fn)
}

// Register installs the binding, unconditionally replacing any prior
// one for the same identity. It never fails.
func (r *Registry) Register(id domain.Identity, conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, had := r.bindings[id]
	r.bindings[id] = conn
	if had && r.closeOld && old.ID() != conn.ID() {
		old.Close()
	}

	log.Info().Str("module", "app.presence").Str("identity", string(id)).Str("handle", string(conn.ID())).Bool("superseded", had).Msg("check-in")
	r.emit(core.PresenceEvent{Identity: id, Online: true, At: r.now()})
}

// Unregister removes the binding owned by conn, if conn still owns one.
// A superseded connection's teardown is a no-op: presence is never
// flipped false by a stale handle.
func (r *Registry) Unregister(conn core.SignalConnection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, bound := range r.bindings {
		if bound.ID() != conn.ID() {
			continue
		}
		delete(r.bindings, id)
		log.Info().Str("module", "app.presence").Str("identity", string(id)).Str("handle", string(conn.ID())).Msg("check-out")
		r.emit(core.PresenceEvent{Identity: id, Online: false, At: r.now()})
		return
	}
}

func (r *Registry) IsOnline(id domain.Identity) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bindings[id]
	return ok
}

func (r *Registry) Lookup(id domain.Identity) (core.SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.bindings[id]
	return conn, ok
}

// Snapshot lists the identities currently online.
func (r *Registry) Snapshot() []domain.Identity {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Identity, 0, len(r.bindings))
	for id := range r.bindings {
		out = append(out, id)
	}
	return out
}

// emit is called with r.mu held.
func (r *Registry) emit(ev core.PresenceEvent) {
	r.metrics.IncPresenceTransition(ev.Online)
	r.metrics.SetOnline(len(r.bindings))
	for _, fn := range r.subs {
		fn(ev)
	}
}
