package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/crewtools/rosterwatch/app/roster"
)

// PendingExpiry is how long a pending revision may go unconfirmed before the
// sweep clears it and retracts the outstanding notification.
const PendingExpiry = 24 * time.Hour

// Keys are namespaced so a cooperating companion process can read the store
// without knowing anything else about this daemon.
const (
	keyStoredFingerprint       = "rosterwatch.revision.stored_fingerprint"
	keyStoredCanonical         = "rosterwatch.revision.stored_canonical"
	keyHasPendingRevision      = "rosterwatch.revision.has_pending"
	keyDetectedAt              = "rosterwatch.revision.detected_at"
	keyLastNotifiedFingerprint = "rosterwatch.revision.last_notified_fingerprint"
	keyLastNotificationAt      = "rosterwatch.revision.last_notification_at"

	keyPolicyWindowDays    = "rosterwatch.policy.window_days"
	keyPolicyThrottleHours = "rosterwatch.policy.throttle_hours"
	keyPolicyPollInterval  = "rosterwatch.policy.poll_interval_minutes"
	keyPolicyEnabled       = "rosterwatch.policy.enabled"
	keyPolicyQuietHours    = "rosterwatch.policy.quiet_hours"

	keyMessageRefPrefix = "rosterwatch.notify.message_id."

	namespacePattern = "rosterwatch.%"
)

type stateRepository struct {
	db *DB
}

func NewStateRepository(db *DB) StateRepository {
	return &stateRepository{db: db}
}

func (r *stateRepository) LoadRevisionState(now time.Time) (roster.RevisionState, bool, error) {
	var state roster.RevisionState

	stored, _, err := r.get(keyStoredFingerprint)
	if err != nil {
		return state, false, err
	}
	state.StoredFingerprint = stored

	canonical, _, err := r.get(keyStoredCanonical)
	if err != nil {
		return state, false, err
	}
	state.StoredCanonical = canonical

	pendingRaw, _, err := r.get(keyHasPendingRevision)
	if err != nil {
		return state, false, err
	}
	state.HasPendingRevision = pendingRaw == "true"

	if detectedRaw, ok, err := r.get(keyDetectedAt); err != nil {
		return state, false, err
	} else if ok {
		if t, err := time.Parse(time.RFC3339Nano, detectedRaw); err == nil {
			state.DetectedAt = &t
		}
	}

	notified, _, err := r.get(keyLastNotifiedFingerprint)
	if err != nil {
		return state, false, err
	}
	state.LastNotifiedFingerprint = notified

	if notifiedAtRaw, ok, err := r.get(keyLastNotificationAt); err != nil {
		return state, false, err
	} else if ok {
		if t, err := time.Parse(time.RFC3339Nano, notifiedAtRaw); err == nil {
			state.LastNotificationAt = &t
		}
	}

	// Sweep: pending without a detection time violates the state invariant.
	// Reset the pending fields to a safe empty state; the fingerprint history
	// stays, so a genuine change is still detected next cycle.
	if state.HasPendingRevision && state.DetectedAt == nil {
		slog.Warn("Corrupt revision state: pending without detection time, resetting")
		state.HasPendingRevision = false
		state.DetectedAt = nil
		if err := r.SaveRevisionState(state); err != nil {
			return state, false, fmt.Errorf("failed to persist corruption reset: %w", err)
		}
		return state, false, nil
	}

	// Sweep: a pending revision nobody confirmed within the expiry window is
	// cleared; the caller retracts the outstanding notification.
	if state.HasPendingRevision && now.Sub(*state.DetectedAt) > PendingExpiry {
		state.HasPendingRevision = false
		state.DetectedAt = nil
		if err := r.SaveRevisionState(state); err != nil {
			return state, false, fmt.Errorf("failed to persist expiry sweep: %w", err)
		}
		return state, true, nil
	}

	return state, false, nil
}

func (r *stateRepository) SaveRevisionState(state roster.RevisionState) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin state write: %w", err)
	}
	defer tx.Rollback()

	pending := "false"
	if state.HasPendingRevision {
		pending = "true"
	}

	writes := map[string]*string{
		keyStoredFingerprint:       &state.StoredFingerprint,
		keyStoredCanonical:         &state.StoredCanonical,
		keyHasPendingRevision:      &pending,
		keyDetectedAt:              formatTime(state.DetectedAt),
		keyLastNotifiedFingerprint: &state.LastNotifiedFingerprint,
		keyLastNotificationAt:      formatTime(state.LastNotificationAt),
	}

	for key, value := range writes {
		if value == nil {
			if _, err := tx.Exec(`DELETE FROM kv_state WHERE key = ?`, key); err != nil {
				return fmt.Errorf("failed to clear %s: %w", key, err)
			}
			continue
		}
		if err := upsert(tx, key, *value); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit state write: %w", err)
	}
	return nil
}

func (r *stateRepository) SavePolicy(policy roster.AlertPolicy) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin policy write: %w", err)
	}
	defer tx.Rollback()

	enabled := "false"
	if policy.Enabled {
		enabled = "true"
	}
	quiet := "off"
	if policy.QuietHours.Enabled {
		quiet = fmt.Sprintf("%d-%d", policy.QuietHours.StartHour, policy.QuietHours.EndHour)
	}

	writes := map[string]string{
		keyPolicyWindowDays:    strconv.Itoa(policy.WindowDays),
		keyPolicyThrottleHours: strconv.Itoa(policy.ThrottleHours),
		keyPolicyPollInterval:  strconv.Itoa(policy.PollIntervalMinutes),
		keyPolicyEnabled:       enabled,
		keyPolicyQuietHours:    quiet,
	}

	for key, value := range writes {
		if err := upsert(tx, key, value); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit policy write: %w", err)
	}
	return nil
}

func (r *stateRepository) GetMessageRef(stableID string) (int64, bool, error) {
	raw, ok, err := r.get(keyMessageRefPrefix + stableID)
	if err != nil || !ok {
		return 0, false, err
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return id, true, nil
}

func (r *stateRepository) SetMessageRef(stableID string, messageID int64) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin message ref write: %w", err)
	}
	defer tx.Rollback()

	if err := upsert(tx, keyMessageRefPrefix+stableID, strconv.FormatInt(messageID, 10)); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *stateRepository) DeleteMessageRef(stableID string) error {
	_, err := r.db.Exec(`DELETE FROM kv_state WHERE key = ?`, keyMessageRefPrefix+stableID)
	if err != nil {
		return fmt.Errorf("failed to delete message ref: %w", err)
	}
	return nil
}

func (r *stateRepository) Reset() error {
	_, err := r.db.Exec(`DELETE FROM kv_state WHERE key LIKE ?`, namespacePattern)
	if err != nil {
		return fmt.Errorf("failed to reset state: %w", err)
	}
	return nil
}

func (r *stateRepository) get(key string) (string, bool, error) {
	var value string
	err := r.db.QueryRow(`SELECT value FROM kv_state WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

func upsert(tx *sql.Tx, key, value string) error {
	_, err := tx.Exec(`
		INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

func formatTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339Nano)
	return &s
}
