package domain

import "time"

// PresenceStatus is the ledger-facing status column.
type PresenceStatus string

const (
	StatusWorking PresenceStatus = "Working"
	StatusIdle    PresenceStatus = "Idle"
	StatusOffline PresenceStatus = "Offline"
)

// AttendanceRecord is one ledger row: unique per (identity, date).
// A record with no CheckOut is "open"; at most one open record exists
// per identity per date.
type AttendanceRecord struct {
	Identity     Identity       `json:"identity"`
	Date         string         `json:"date"` // YYYY-MM-DD, server-local day
	CheckIn      time.Time      `json:"check_in"`
	CheckOut     *time.Time     `json:"check_out,omitempty"`
	Status       PresenceStatus `json:"status"`
	Productivity int            `json:"productivity_score"`
}

// Open reports whether the row still has no check-out.
func (r *AttendanceRecord) Open() bool { return r.CheckOut == nil }

// DateOf formats the ledger day key for a timestamp.
func DateOf(t time.Time) string { return t.Format("2006-01-02") }
