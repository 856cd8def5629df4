package core

import (
	"context"
	"time"

	"github.com/careerlab/overseer/internal/domain"
)

// Frame is a raw wire payload (JSON signaling message).
type Frame []byte

// HandleID identifies one live transport connection. Two connections
// never share a handle, even across reconnects of the same identity.
type HandleID string

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	ID() HandleID
	TrySend(Frame) error
	Close()
}

// PresenceEvent is emitted by the registry on every presence flip.
// Per identity the Online values strictly alternate.
type PresenceEvent struct {
	Identity domain.Identity
	Online   bool
	At       time.Time
}

// PresenceSource is the read side of the registry, injected into the
// relay and the snapshot API instead of any module-level state.
type PresenceSource interface {
	IsOnline(domain.Identity) bool
	Lookup(domain.Identity) (SignalConnection, bool)
}

// Ledger persists attendance rows, one per (identity, date).
// Implementations own the open/resume/close row semantics so the
// synchronizer stays a thin event consumer.
type Ledger interface {
	CheckIn(ctx context.Context, id domain.Identity, at time.Time) error
	CheckOut(ctx context.Context, id domain.Identity, at time.Time) error
	Record(ctx context.Context, id domain.Identity, date string) (*domain.AttendanceRecord, error)
	ListDate(ctx context.Context, date string) ([]*domain.AttendanceRecord, error)
}
