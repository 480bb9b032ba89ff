package roster

import (
	"time"
)

// StabilityThreshold is how long a pending revision may stay pending with an
// unchanged fingerprint before it is auto-cleared. The upstream planner tends
// to re-revise quickly; a fingerprint that has been stable this long is
// treated as implicitly confirmed.
const StabilityThreshold = 12 * time.Hour

// Detect compares the new fingerprint against the stored one and returns the
// updated state plus whether the roster changed. On a change both the stored
// fingerprint and the canonical text are overwritten immediately, before any
// relevance or notification outcome is known, so the state always reflects
// the most recently processed feed.
func Detect(state RevisionState, canonical, fingerprint string, now time.Time) (RevisionState, bool) {
	if state.StoredFingerprint == "" {
		// First run: prime the version, emit no revision event.
		state.StoredFingerprint = fingerprint
		state.StoredCanonical = canonical
		return state, false
	}

	if state.StoredFingerprint == fingerprint {
		if state.HasPendingRevision && state.DetectedAt != nil &&
			now.Sub(*state.DetectedAt) > StabilityThreshold {
			state.HasPendingRevision = false
			state.DetectedAt = nil
		}
		return state, false
	}

	state.StoredFingerprint = fingerprint
	state.StoredCanonical = canonical
	return state, true
}
