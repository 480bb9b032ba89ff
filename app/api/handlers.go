package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/crewtools/rosterwatch/app/config"
	"github.com/crewtools/rosterwatch/app/fetcher"
	"github.com/crewtools/rosterwatch/app/tasks"
)

func NewHandler(pipeline PipelineInterface, settings *config.Store, version string) *Handler {
	return &Handler{
		pipeline: pipeline,
		settings: settings,
		version:  version,
	}
}

func (h *Handler) GetHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"timestamp": time.Now().In(time.Local).Format(time.RFC3339),
		"version":   h.version,
	})
}

func (h *Handler) GetStatus(c *gin.Context) {
	state, err := h.pipeline.State(c.Request.Context())
	if err != nil {
		slog.Error("Failed to load revision state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load revision state"})
		return
	}

	settings := h.settings.Current()
	policy := settings.Policy()

	revision := gin.H{
		"has_pending_revision": state.HasPendingRevision,
		"stored_fingerprint":   state.StoredFingerprint,
	}
	if state.DetectedAt != nil {
		revision["detected_at"] = state.DetectedAt.Format(time.RFC3339)
	}
	if state.LastNotifiedFingerprint != "" {
		revision["last_notified_fingerprint"] = state.LastNotifiedFingerprint
	}
	if state.LastNotificationAt != nil {
		revision["last_notification_at"] = state.LastNotificationAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, gin.H{
		"revision": revision,
		"policy": gin.H{
			"enabled":               policy.Enabled,
			"window_days":           policy.WindowDays,
			"throttle_hours":        policy.ThrottleHours,
			"poll_interval_minutes": policy.PollIntervalMinutes,
			"quiet_hours_enabled":   policy.QuietHours.Enabled,
		},
		"feed_configured": settings.Feed.URL != "",
	})
}

// APIRefresh runs a poll cycle on demand and reports what it did.
func (h *Handler) APIRefresh(c *gin.Context) {
	result, err := h.pipeline.RunManual(c.Request.Context())
	if err != nil {
		if errors.Is(err, tasks.ErrBusy) {
			c.JSON(http.StatusConflict, gin.H{"error": "A poll cycle is already running"})
			return
		}

		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, fetcher.ErrUnauthorized),
			errors.Is(err, fetcher.ErrNotFound),
			errors.Is(err, fetcher.ErrServer),
			errors.Is(err, fetcher.ErrMalformedContent),
			errors.Is(err, fetcher.ErrNetwork):
			status = http.StatusBadGateway
		}

		slog.Error("Manual poll cycle failed", "error", err)
		c.JSON(status, gin.H{"error": "Poll cycle failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"changed":     result.Changed,
		"relevant":    result.Relevant,
		"delivered":   result.Delivered,
		"reason":      string(result.Reason),
		"summary":     result.Summary,
		"fingerprint": result.Fingerprint,
	})
}

// APIConfirm marks the pending revision as seen and retracts the alert.
func (h *Handler) APIConfirm(c *gin.Context) {
	if err := h.pipeline.ConfirmRevision(c.Request.Context()); err != nil {
		slog.Error("Failed to confirm revision", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to confirm revision"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Pending revision confirmed",
	})
}

// APIReset wipes all persisted state; the next cycle behaves like a first run.
func (h *Handler) APIReset(c *gin.Context) {
	if err := h.pipeline.Reset(c.Request.Context()); err != nil {
		slog.Error("Failed to reset state", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset state"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "State cleared",
	})
}
