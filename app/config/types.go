package config

import (
	"github.com/crewtools/rosterwatch/app/roster"
)

// Cfg holds the process-level configuration: everything that requires a
// restart to change. Settings carries the hot-reloadable part.
type Cfg struct {
	Port         string
	DBPath       string
	SettingsPath string
	APIAccessKey string

	TelegramToken  string
	TelegramChatID int64

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}

// Settings is the watched YAML file: the feed to poll and the alerting
// policy. Edits take effect without a restart.
type Settings struct {
	Feed   FeedSettings  `yaml:"feed"`
	Alerts AlertSettings `yaml:"alerts"`
}

// FeedSettings describes the upstream roster calendar feed.
type FeedSettings struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// DeepLink is appended to notifications so the user can jump straight
	// to the roster in the crew portal.
	DeepLink string `yaml:"deep_link"`
}

// AlertSettings contains the alerting policy. Enabled is a pointer so an
// absent key means enabled rather than disabled.
type AlertSettings struct {
	Enabled             *bool              `yaml:"enabled"`
	WindowDays          int                `yaml:"window_days"`
	ThrottleHours       int                `yaml:"throttle_hours"`
	PollIntervalMinutes int                `yaml:"poll_interval_minutes"`
	QuietHours          QuietHoursSettings `yaml:"quiet_hours"`
}

type QuietHoursSettings struct {
	Enabled            bool `yaml:"enabled"`
	StartHour          int  `yaml:"start_hour"`
	EndHour            int  `yaml:"end_hour"`
	AppliesToRevisions bool `yaml:"applies_to_revisions"`
}

// Policy converts the alert settings into the policy the gate evaluates.
func (s *Settings) Policy() roster.AlertPolicy {
	enabled := true
	if s.Alerts.Enabled != nil {
		enabled = *s.Alerts.Enabled
	}

	return roster.AlertPolicy{
		WindowDays:          s.Alerts.WindowDays,
		ThrottleHours:       s.Alerts.ThrottleHours,
		PollIntervalMinutes: s.Alerts.PollIntervalMinutes,
		Enabled:             enabled,
		QuietHours: roster.QuietHours{
			Enabled:            s.Alerts.QuietHours.Enabled,
			StartHour:          s.Alerts.QuietHours.StartHour,
			EndHour:            s.Alerts.QuietHours.EndHour,
			AppliesToRevisions: s.Alerts.QuietHours.AppliesToRevisions,
		},
	}
}
