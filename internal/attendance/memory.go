package attendance

import (
	"context"
	"sort"
	"sync"

	"time"

	"github.com/careerlab/overseer/internal/domain"
)

// MemoryLedger keeps rows in a process-local map. It backs tests and
// database-less deployments; rows do not survive a restart.
type MemoryLedger struct {
	mu   sync.RWMutex
	rows map[ledgerKey]*domain.AttendanceRecord
}

type ledgerKey struct {
	identity domain.Identity
	date     string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{rows: make(map[ledgerKey]*domain.AttendanceRecord)}
}

// CheckIn opens today's row, or resumes it: a closed row loses its
// check-out again, an already-open row only has its status reaffirmed.
func (l *MemoryLedger) CheckIn(_ context.Context, id domain.Identity, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := ledgerKey{identity: id, date: domain.DateOf(at)}
	rec, ok := l.rows[key]
	if !ok {
		l.rows[key] = &domain.AttendanceRecord{
			Identity: id,
			Date:     key.date,
			CheckIn:  at,
			Status:   domain.StatusWorking,
		}
		return nil
	}
	rec.CheckOut = nil
	rec.Status = domain.StatusWorking
	return nil
}

// CheckOut closes today's open row; without one it is a no-op.
func (l *MemoryLedger) CheckOut(_ context.Context, id domain.Identity, at time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.rows[ledgerKey{identity: id, date: domain.DateOf(at)}]
	if !ok || !rec.Open() {
		return nil
	}
	out := at
	rec.CheckOut = &out
	rec.Status = domain.StatusOffline
	return nil
}

func (l *MemoryLedger) Record(_ context.Context, id domain.Identity, date string) (*domain.AttendanceRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	rec, ok := l.rows[ledgerKey{identity: id, date: date}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (l *MemoryLedger) ListDate(_ context.Context, date string) ([]*domain.AttendanceRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*domain.AttendanceRecord, 0)
	for key, rec := range l.rows {
		if key.date != date {
			continue
		}
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identity < out[j].Identity })
	return out, nil
}
