package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/crewtools/rosterwatch/app/roster"
)

func testRepo(t *testing.T) (StateRepository, *DB) {
	t.Helper()

	db, err := NewConnection(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if _, _, err := RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return NewStateRepository(db), db
}

func TestStateRepository_EmptyLoad(t *testing.T) {
	repo, _ := testRepo(t)

	state, expired, err := repo.LoadRevisionState(time.Now())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if expired {
		t.Errorf("Empty state should not report an expiry")
	}
	if state.HasPendingRevision || state.StoredFingerprint != "" || state.DetectedAt != nil {
		t.Errorf("Expected empty state on first load, got %+v", state)
	}
}

func TestStateRepository_RoundTrip(t *testing.T) {
	repo, _ := testRepo(t)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	detected := now.Add(-time.Hour)
	notified := now.Add(-30 * time.Minute)

	saved := roster.RevisionState{
		HasPendingRevision:      true,
		DetectedAt:              &detected,
		StoredFingerprint:       "fp-2",
		StoredCanonical:         "BEGIN:VEVENT\nDTSTART:20260312T060000Z\nEND:VEVENT",
		LastNotifiedFingerprint: "fp-2",
		LastNotificationAt:      &notified,
	}
	if err := repo.SaveRevisionState(saved); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	loaded, expired, err := repo.LoadRevisionState(now)
	if err != nil {
		t.Fatalf("Failed to load state: %v", err)
	}
	if expired {
		t.Errorf("Recent pending revision should not expire")
	}
	if !loaded.HasPendingRevision {
		t.Errorf("Pending flag lost in round trip")
	}
	if loaded.StoredFingerprint != "fp-2" || loaded.LastNotifiedFingerprint != "fp-2" {
		t.Errorf("Fingerprints lost in round trip: %+v", loaded)
	}
	if loaded.StoredCanonical != saved.StoredCanonical {
		t.Errorf("Canonical text lost in round trip: %q", loaded.StoredCanonical)
	}
	if loaded.DetectedAt == nil || !loaded.DetectedAt.Equal(detected) {
		t.Errorf("DetectedAt mismatch: got %v, want %v", loaded.DetectedAt, detected)
	}
	if loaded.LastNotificationAt == nil || !loaded.LastNotificationAt.Equal(notified) {
		t.Errorf("LastNotificationAt mismatch: got %v, want %v", loaded.LastNotificationAt, notified)
	}
}

func TestStateRepository_CorruptionReset(t *testing.T) {
	repo, db := testRepo(t)

	// Pending flag without a detection time: violates the state invariant.
	_, err := db.Exec(`INSERT INTO kv_state (key, value, updated_at) VALUES (?, ?, ?)`,
		"rosterwatch.revision.has_pending", "true", time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("Failed to seed corrupt state: %v", err)
	}

	state, expired, err := repo.LoadRevisionState(time.Now())
	if err != nil {
		t.Fatalf("Corrupt state must reset, not fail: %v", err)
	}
	if expired {
		t.Errorf("Corruption reset should not report an expiry")
	}
	if state.HasPendingRevision {
		t.Errorf("Corrupt pending flag should be reset to false")
	}

	// The reset must be durable.
	reloaded, _, err := repo.LoadRevisionState(time.Now())
	if err != nil {
		t.Fatalf("Unexpected error on reload: %v", err)
	}
	if reloaded.HasPendingRevision {
		t.Errorf("Corruption reset was not persisted")
	}
}

func TestStateRepository_ExpirySweep(t *testing.T) {
	repo, _ := testRepo(t)

	now := time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)
	detected := now.Add(-25 * time.Hour)
	saved := roster.RevisionState{
		HasPendingRevision: true,
		DetectedAt:         &detected,
		StoredFingerprint:  "fp-2",
	}
	if err := repo.SaveRevisionState(saved); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}

	state, expired, err := repo.LoadRevisionState(now)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !expired {
		t.Errorf("Pending revision 25h old should be swept")
	}
	if state.HasPendingRevision || state.DetectedAt != nil {
		t.Errorf("Swept state should have the pending fields cleared, got %+v", state)
	}
	if state.StoredFingerprint != "fp-2" {
		t.Errorf("Expiry sweep must not touch the stored fingerprint")
	}
}

func TestStateRepository_MessageRefs(t *testing.T) {
	repo, _ := testRepo(t)

	if _, ok, err := repo.GetMessageRef("roster-revision"); err != nil || ok {
		t.Fatalf("Expected no ref initially, got ok=%v err=%v", ok, err)
	}

	if err := repo.SetMessageRef("roster-revision", 4711); err != nil {
		t.Fatalf("Failed to set ref: %v", err)
	}

	id, ok, err := repo.GetMessageRef("roster-revision")
	if err != nil || !ok || id != 4711 {
		t.Errorf("Expected ref 4711, got id=%d ok=%v err=%v", id, ok, err)
	}

	if err := repo.DeleteMessageRef("roster-revision"); err != nil {
		t.Fatalf("Failed to delete ref: %v", err)
	}
	if _, ok, _ := repo.GetMessageRef("roster-revision"); ok {
		t.Errorf("Ref should be gone after delete")
	}
}

func TestStateRepository_Reset(t *testing.T) {
	repo, _ := testRepo(t)

	if err := repo.SaveRevisionState(roster.RevisionState{StoredFingerprint: "fp-1"}); err != nil {
		t.Fatalf("Failed to save state: %v", err)
	}
	if err := repo.SavePolicy(roster.AlertPolicy{WindowDays: 7, ThrottleHours: 12, PollIntervalMinutes: 60, Enabled: true}); err != nil {
		t.Fatalf("Failed to save policy: %v", err)
	}
	if err := repo.SetMessageRef("roster-revision", 1); err != nil {
		t.Fatalf("Failed to set ref: %v", err)
	}

	if err := repo.Reset(); err != nil {
		t.Fatalf("Failed to reset: %v", err)
	}

	state, _, err := repo.LoadRevisionState(time.Now())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if state.StoredFingerprint != "" {
		t.Errorf("Reset should clear the stored fingerprint")
	}
	if _, ok, _ := repo.GetMessageRef("roster-revision"); ok {
		t.Errorf("Reset should clear message refs")
	}
}
