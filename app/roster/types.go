package roster

import (
	"time"
)

// RevisionState is the singleton per-user record tracking the last processed
// roster version and the notification history for it. It is persisted by the
// database package and mutated only by Detect and EvaluateGate. The canonical
// text travels with the fingerprint so a later change can be scoped to the
// event records that actually differ.
type RevisionState struct {
	HasPendingRevision      bool
	DetectedAt              *time.Time
	StoredFingerprint       string
	StoredCanonical         string
	LastNotifiedFingerprint string
	LastNotificationAt      *time.Time
}

// AlertPolicy holds the externally supplied alerting configuration. The core
// reads it fresh each cycle and never mutates it.
type AlertPolicy struct {
	WindowDays          int
	ThrottleHours       int
	QuietHours          QuietHours
	PollIntervalMinutes int
	Enabled             bool
}

// QuietHours is a local-time range in which notification delivery (not
// detection) is suppressed. The range is [StartHour, EndHour) and may wrap
// past midnight; StartHour == EndHour means an empty range.
type QuietHours struct {
	Enabled            bool
	StartHour          int
	EndHour            int
	AppliesToRevisions bool
}

type Reason string

const (
	ReasonNewRevision     Reason = "NEW_REVISION"
	ReasonSuperseding     Reason = "SUPERSEDING_REVISION"
	ReasonAlreadyNotified Reason = "ALREADY_NOTIFIED_THIS_VERSION"
	ReasonQuietHours      Reason = "QUIET_HOURS"
	ReasonThrottled       Reason = "THROTTLED"
)

// Decision is the outcome of one gate evaluation. It is produced together
// with the resulting RevisionState and is never persisted on its own.
type Decision struct {
	Deliver bool
	Reason  Reason
}
