package roster

import (
	"time"
)

// EvaluateGate runs a relevant revision candidate through the notification
// decision table and returns the decision together with the resulting state.
// The two always travel as a pair: no path reports "deliver" without the
// fingerprint and time recorded in the returned state, and vice versa.
//
// Ordered rules, first match wins:
//  1. pending and this exact version was already notified: suppress.
//  2. pending but a different version was notified: superseding revision,
//     bypasses the throttle (still subject to quiet hours).
//  3. not pending: mark pending now, proceed subject to quiet hours and
//     throttle.
//  4. quiet hours suppress delivery only; the pending mutation persists.
//  5. throttle applies to the non-superseding path only.
//  6. deliver, recording the notified fingerprint and time.
func EvaluateGate(state RevisionState, fingerprint string, policy AlertPolicy, now time.Time) (Decision, RevisionState) {
	superseding := false
	if state.HasPendingRevision {
		if state.LastNotifiedFingerprint == fingerprint {
			return Decision{Deliver: false, Reason: ReasonAlreadyNotified}, state
		}
		superseding = true
	} else {
		state.HasPendingRevision = true
		detected := now
		state.DetectedAt = &detected
	}

	q := policy.QuietHours
	if q.Enabled && q.AppliesToRevisions && inQuietHours(q, now.Hour()) {
		return Decision{Deliver: false, Reason: ReasonQuietHours}, state
	}

	if !superseding && state.LastNotificationAt != nil {
		throttle := time.Duration(policy.ThrottleHours) * time.Hour
		if now.Sub(*state.LastNotificationAt) < throttle {
			return Decision{Deliver: false, Reason: ReasonThrottled}, state
		}
	}

	state.LastNotifiedFingerprint = fingerprint
	notified := now
	state.LastNotificationAt = &notified

	reason := ReasonNewRevision
	if superseding {
		reason = ReasonSuperseding
	}
	return Decision{Deliver: true, Reason: reason}, state
}

func inQuietHours(q QuietHours, hour int) bool {
	if q.StartHour == q.EndHour {
		return false
	}
	if q.StartHour < q.EndHour {
		return hour >= q.StartHour && hour < q.EndHour
	}
	// Wraps past midnight, e.g. 22 -> 7.
	return hour >= q.StartHour || hour < q.EndHour
}
