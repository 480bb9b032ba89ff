package database

import (
	"time"

	"github.com/crewtools/rosterwatch/app/roster"
)

// StateRepository persists the revision-tracking state, the applied alert
// policy, and the notification message bookkeeping in a flat key-value
// namespace a companion process can read.
type StateRepository interface {
	// LoadRevisionState reads the persisted state and runs the sweep: a
	// corrupt record (pending without DetectedAt) is reset to a safe empty
	// pending state, and a pending revision older than 24h is cleared. The
	// second return value reports whether an expiry happened, so the caller
	// can retract the outstanding notification.
	LoadRevisionState(now time.Time) (roster.RevisionState, bool, error)
	SaveRevisionState(state roster.RevisionState) error

	SavePolicy(policy roster.AlertPolicy) error

	GetMessageRef(stableID string) (int64, bool, error)
	SetMessageRef(stableID string, messageID int64) error
	DeleteMessageRef(stableID string) error

	// Reset implements the explicit "clear cached data" action: every key in
	// the rosterwatch namespace is removed.
	Reset() error
}
