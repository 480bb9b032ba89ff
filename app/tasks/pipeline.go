package tasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/crewtools/rosterwatch/app/config"
	"github.com/crewtools/rosterwatch/app/database"
	"github.com/crewtools/rosterwatch/app/notifier"
	"github.com/crewtools/rosterwatch/app/roster"
)

// StableRevisionID identifies the single logical roster revision alert. Every
// delivery reuses it, so a superseding revision replaces the previous message
// instead of stacking a new one.
const StableRevisionID = "roster-revision"

var ErrBusy = errors.New("a poll cycle is already running")

// Result reports what one poll cycle did.
type Result struct {
	Changed     bool
	Relevant    bool
	Delivered   bool
	Reason      roster.Reason
	Summary     string
	Fingerprint string
}

// Pipeline runs one full poll cycle: fetch, canonicalize, fingerprint,
// detect, filter for relevance, gate, persist, deliver. A mutex keeps cycles
// single-flight; overlapping scheduled ticks are skipped, overlapping manual
// requests are rejected with ErrBusy.
type Pipeline struct {
	mu sync.Mutex

	fetcher       Fetcher
	canonicalizer *roster.Canonicalizer
	stateRepo     database.StateRepository
	notifier      notifier.Notifier
	settings      *config.Store
	now           func() time.Time
}

func NewPipeline(fetcher Fetcher, stateRepo database.StateRepository, n notifier.Notifier, settings *config.Store) *Pipeline {
	return &Pipeline{
		fetcher:       fetcher,
		canonicalizer: roster.NewCanonicalizer(),
		stateRepo:     stateRepo,
		notifier:      n,
		settings:      settings,
		now:           time.Now,
	}
}

// RunManual runs a poll cycle on demand. Unlike scheduled ticks it runs even
// when alerting is disabled, and it reports errors to the caller instead of
// the log.
func (p *Pipeline) RunManual(ctx context.Context) (Result, error) {
	if !p.mu.TryLock() {
		return Result{}, ErrBusy
	}
	defer p.mu.Unlock()

	settings := p.settings.Current()
	if settings.Feed.URL == "" {
		return Result{}, errors.New("no feed URL configured")
	}

	return p.run(ctx, settings)
}

// RunScheduled is the ticker entry point. It never returns an error; a failed
// cycle is logged and the next tick tries again.
func (p *Pipeline) RunScheduled(ctx context.Context) {
	settings := p.settings.Current()
	if settings.Feed.URL == "" {
		slog.Debug("No feed URL configured, skipping poll cycle")
		return
	}
	if !settings.Policy().Enabled {
		slog.Debug("Alerting disabled, skipping poll cycle")
		return
	}

	if !p.mu.TryLock() {
		slog.Warn("Previous poll cycle still running, skipping tick")
		return
	}
	defer p.mu.Unlock()

	result, err := p.run(ctx, settings)
	if err != nil {
		slog.Error("Poll cycle failed", "error", err)
		return
	}

	slog.Info("Poll cycle completed",
		"changed", result.Changed,
		"relevant", result.Relevant,
		"delivered", result.Delivered,
		"reason", string(result.Reason))
}

// run executes one cycle. The caller holds the single-flight mutex.
func (p *Pipeline) run(ctx context.Context, settings config.Settings) (Result, error) {
	now := p.now()
	policy := settings.Policy()

	raw, err := p.fetcher.Fetch(ctx, settings.Feed.URL, settings.Feed.Username, settings.Feed.Password)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch roster feed: %w", err)
	}

	canonical := p.canonicalizer.Run(raw, now)
	fingerprint := roster.Fingerprint(canonical)
	result := Result{Fingerprint: fingerprint}

	state, expired, err := p.stateRepo.LoadRevisionState(now)
	if err != nil {
		return result, fmt.Errorf("failed to load revision state: %w", err)
	}
	if expired {
		slog.Info("Pending revision expired unconfirmed, retracting notification")
		p.retract(ctx)
	}

	previousCanonical := state.StoredCanonical
	state, changed := roster.Detect(state, canonical, fingerprint, now)
	if !changed {
		if err := p.stateRepo.SaveRevisionState(state); err != nil {
			return result, fmt.Errorf("failed to save revision state: %w", err)
		}
		return result, nil
	}
	result.Changed = true

	relevant, summary := roster.Relevant(previousCanonical, canonical, policy.WindowDays, now)
	if !relevant {
		if err := p.stateRepo.SaveRevisionState(state); err != nil {
			return result, fmt.Errorf("failed to save revision state: %w", err)
		}
		slog.Debug("Roster changed outside the relevance window", "fingerprint", fingerprint)
		return result, nil
	}
	result.Relevant = true
	result.Summary = summary

	decision, state := roster.EvaluateGate(state, fingerprint, policy, now)
	result.Reason = decision.Reason

	// State goes down before the notification goes out. A crash between the
	// two costs one alert, never a duplicate.
	if err := p.stateRepo.SaveRevisionState(state); err != nil {
		return result, fmt.Errorf("failed to save revision state: %w", err)
	}

	if !decision.Deliver {
		slog.Info("Notification suppressed", "reason", string(decision.Reason))
		return result, nil
	}

	err = p.notifier.Deliver(ctx, notifier.Notification{
		Title:    "Duty roster revision detected",
		Body:     "Affected duty days: " + summary,
		StableID: StableRevisionID,
		DeepLink: settings.Feed.DeepLink,
	})
	if err != nil {
		return result, fmt.Errorf("failed to deliver notification: %w", err)
	}
	result.Delivered = true

	return result, nil
}

// ConfirmRevision marks the pending revision as seen by the user and takes
// down the outstanding notification.
func (p *Pipeline) ConfirmRevision(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, _, err := p.stateRepo.LoadRevisionState(p.now())
	if err != nil {
		return fmt.Errorf("failed to load revision state: %w", err)
	}
	if !state.HasPendingRevision {
		return nil
	}

	state.HasPendingRevision = false
	state.DetectedAt = nil
	if err := p.stateRepo.SaveRevisionState(state); err != nil {
		return fmt.Errorf("failed to save revision state: %w", err)
	}

	p.retract(ctx)
	return nil
}

// Reset wipes all persisted state. The next cycle behaves like a first run.
func (p *Pipeline) Reset(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	// Retract first: it needs the message ref that Reset deletes.
	p.retract(ctx)

	if err := p.stateRepo.Reset(); err != nil {
		return fmt.Errorf("failed to reset state: %w", err)
	}
	return nil
}

// State returns the current revision state, applying the expiry sweep the
// same way a poll cycle would. It waits for a running cycle: the sweep writes
// state, and all state writes go through the single-flight mutex.
func (p *Pipeline) State(ctx context.Context) (roster.RevisionState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	state, expired, err := p.stateRepo.LoadRevisionState(p.now())
	if err != nil {
		return state, err
	}
	if expired {
		slog.Info("Pending revision expired unconfirmed, retracting notification")
		p.retract(ctx)
	}
	return state, nil
}

func (p *Pipeline) retract(ctx context.Context) {
	if err := p.notifier.Retract(ctx, StableRevisionID); err != nil {
		slog.Warn("Failed to retract notification", "error", err)
	}
}
