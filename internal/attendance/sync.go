// Package attendance mirrors presence transitions into the persisted
// daily ledger. The registry's in-memory state stays authoritative no
// matter what the ledger does: write failures are logged and dropped.
package attendance

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/careerlab/overseer/internal/core"
	"github.com/careerlab/overseer/internal/metrics"
)

const (
	eventBuffer  = 1024
	writeTimeout = 5 * time.Second
)

// Synchronizer consumes presence events and drives ledger writes on its
// own goroutine. The registry invokes HandlePresence under its lock, so
// the handoff must never block: events go through a buffered channel
// and a single consumer preserves per-identity ordering.
type Synchronizer struct {
	ledger  core.Ledger
	events  chan core.PresenceEvent
	metrics *metrics.Metrics
}

func NewSynchronizer(ledger core.Ledger, m *metrics.Metrics) *Synchronizer {
	return &Synchronizer{
		ledger:  ledger,
		events:  make(chan core.PresenceEvent, eventBuffer),
		metrics: m,
	}
}

// HandlePresence enqueues one event. On overflow the event is dropped
// and counted as a write failure: the ledger is best-effort.
func (s *Synchronizer) HandlePresence(ev core.PresenceEvent) {
	select {
	case s.events <- ev:
	default:
		log.Warn().Str("module", "attendance").Str("identity", string(ev.Identity)).Bool("online", ev.Online).Msg("event buffer full, ledger update dropped")
		s.metrics.IncLedgerWriteFailures()
	}
}

// Run consumes events until ctx is cancelled.
func (s *Synchronizer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			s.apply(ctx, ev)
		}
	}
}

func (s *Synchronizer) apply(ctx context.Context, ev core.PresenceEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var err error
	if ev.Online {
		err = s.ledger.CheckIn(ctx, ev.Identity, ev.At)
	} else {
		err = s.ledger.CheckOut(ctx, ev.Identity, ev.At)
	}
	if err != nil {
		log.Error().Err(err).Str("module", "attendance").Str("identity", string(ev.Identity)).Bool("online", ev.Online).Msg("ledger write failed")
		s.metrics.IncLedgerWriteFailures()
	}
}
