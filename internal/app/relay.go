package app

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/core"
	"github.com/careerlab/overseer/internal/domain"
	"github.com/careerlab/overseer/internal/metrics"
	"github.com/careerlab/overseer/internal/signal"
)

// Relay routes negotiation messages between observers and the single
// bound connection of a target identity. It holds no negotiation state,
// only the watcher table: who asked to observe whom. Delivery is
// point-to-point via the presence source; offers still fan out to every
// watcher of the target, which is tolerated by the negotiators.
type Relay struct {
	mu       sync.RWMutex
	presence core.PresenceSource
	watchers map[domain.Identity]map[core.HandleID]core.SignalConnection
	metrics  *metrics.Metrics
}

func NewRelay(presence core.PresenceSource, m *metrics.Metrics) *Relay {
	return &Relay{
		presence: presence,
		watchers: make(map[domain.Identity]map[core.HandleID]core.SignalConnection),
		metrics:  m,
	}
}

// RequestConnection registers the observer as a watcher of target and,
// if the target is online, instructs it to produce a fresh offer.
// An offline target drops the request silently: the observer's only
// signal is the absence of an offer, and it will retry on its own.
func (rl *Relay) RequestConnection(observer core.SignalConnection, target domain.Identity) {
	rl.mu.Lock()
	set, ok := rl.watchers[target]
	if !ok {
		set = make(map[core.HandleID]core.SignalConnection)
		rl.watchers[target] = set
	}
	set[observer.ID()] = observer
	rl.mu.Unlock()

	bound, online := rl.presence.Lookup(target)
	if !online {
		log.Debug().Str("module", "app.relay").Str("target", string(target)).Msg("request dropped, target offline")
		return
	}
	rl.send(bound, signal.RequestOffer{Type: signal.TypeRequestOffer, Observer: string(observer.ID())})
}

// RelayOffer delivers a target-tagged offer to every current watcher.
func (rl *Relay) RelayOffer(target domain.Identity, msg signal.Offer) {
	msg.Type = signal.TypeOffer
	msg.Target = string(target)
	for _, w := range rl.watchersOf(target) {
		rl.send(w, msg)
	}
}

// RelayAnswer goes point-to-point to the target's bound connection,
// stamped with the answering observer's handle so the monitored client
// can match it to the right peer.
func (rl *Relay) RelayAnswer(observer core.SignalConnection, target domain.Identity, msg signal.Answer) {
	bound, online := rl.presence.Lookup(target)
	if !online {
		log.Debug().Str("module", "app.relay").Str("target", string(target)).Msg("answer dropped, target offline")
		return
	}
	msg.Type = signal.TypeAnswer
	msg.Target = string(target)
	msg.Observer = string(observer.ID())
	rl.send(bound, msg)
}

// RelayCandidate routes by direction: a candidate from the target's own
// bound connection goes to its watchers, a candidate from an observer
// goes to the bound connection.
func (rl *Relay) RelayCandidate(from core.SignalConnection, target domain.Identity, msg signal.Candidate) {
	msg.Type = signal.TypeCandidate
	msg.Target = string(target)

	bound, online := rl.presence.Lookup(target)
	if online && bound.ID() == from.ID() {
		for _, w := range rl.watchersOf(target) {
			rl.send(w, msg)
		}
		return
	}
	if !online {
		log.Debug().Str("module", "app.relay").Str("target", string(target)).Msg("candidate dropped, target offline")
		return
	}
	msg.Observer = string(from.ID())
	rl.send(bound, msg)
}

// CheckStatus answers a point query about one identity.
func (rl *Relay) CheckStatus(conn core.SignalConnection, id domain.Identity) {
	rl.send(conn, signal.Status{Type: signal.TypeStatus, Identity: string(id), Online: rl.presence.IsOnline(id)})
}

// NotifyPresence pushes a status change to the watchers of the identity
// that flipped. Wired as a registry subscriber.
func (rl *Relay) NotifyPresence(ev core.PresenceEvent) {
	msg := signal.Status{Type: signal.TypeStatus, Identity: string(ev.Identity), Online: ev.Online}
	for _, w := range rl.watchersOf(ev.Identity) {
		rl.send(w, msg)
	}
}

// DropWatcher removes a departing connection from every watcher set.
func (rl *Relay) DropWatcher(conn core.SignalConnection) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for target, set := range rl.watchers {
		delete(set, conn.ID())
		if len(set) == 0 {
			delete(rl.watchers, target)
		}
	}
}

// WatcherCount reports how many observers currently watch target.
func (rl *Relay) WatcherCount(target domain.Identity) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.watchers[target])
}

func (rl *Relay) watchersOf(target domain.Identity) []core.SignalConnection {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	out := make([]core.SignalConnection, 0, len(rl.watchers[target]))
	for _, w := range rl.watchers[target] {
		out = append(out, w)
	}
	return out
}

func (rl *Relay) send(conn core.SignalConnection, v any) {
	if err := conn.TrySend(signal.Marshal(v)); err != nil {
		log.Warn().Err(err).Str("module", "app.relay").Str("handle", string(conn.ID())).Msg("relay send dropped")
		rl.metrics.IncRelayDrops()
	}
}
