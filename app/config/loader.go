package config

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Application configuration
	Port         string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	DBPath       string `long:"db-path" env:"DB_PATH" default:"./data/rosterwatch.db" description:"Path to the SQLite state database"`
	SettingsPath string `long:"settings" env:"SETTINGS_PATH" default:"./rosterwatch.yaml" description:"Path to the watched settings file"`
	APIAccessKey string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`

	// Notification channel
	TelegramToken  string `long:"telegram-token" env:"TELEGRAM_TOKEN" description:"Telegram bot token (optional, logs notifications when unset)"`
	TelegramChatID int64  `long:"telegram-chat-id" env:"TELEGRAM_CHAT_ID" description:"Telegram chat to notify"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"RosterWatch/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, Europe/Berlin)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		Port:           raw.Port,
		DBPath:         raw.DBPath,
		SettingsPath:   raw.SettingsPath,
		APIAccessKey:   raw.APIAccessKey,
		TelegramToken:  raw.TelegramToken,
		TelegramChatID: raw.TelegramChatID,
		UserAgent:      raw.UserAgent,
		Timezone:       raw.Timezone,
		Debug:          raw.Debug,
		Version:        GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}

// The alerting knobs accept a fixed set of values so a typo in the settings
// file cannot silently produce a nonsensical policy.
var (
	validWindowDays    = map[int]bool{3: true, 5: true, 7: true, 14: true, 30: true}
	validThrottleHours = map[int]bool{6: true, 12: true, 24: true, 48: true}
	validPollIntervals = map[int]bool{15: true, 30: true, 60: true, 120: true, 240: true}
)

func defaultSettings() *Settings {
	return &Settings{
		Alerts: AlertSettings{
			WindowDays:          7,
			ThrottleHours:       12,
			PollIntervalMinutes: 60,
		},
	}
}

// LoadSettings reads and validates the settings file. A missing file is not
// an error: polling stays idle until the user writes one.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return defaultSettings(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	settings := defaultSettings()
	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file: %w", err)
	}

	applyDefaults(settings)

	if err := validate(settings); err != nil {
		return nil, err
	}

	return settings, nil
}

func applyDefaults(s *Settings) {
	if s.Alerts.WindowDays == 0 {
		s.Alerts.WindowDays = 7
	}
	if s.Alerts.ThrottleHours == 0 {
		s.Alerts.ThrottleHours = 12
	}
	if s.Alerts.PollIntervalMinutes == 0 {
		s.Alerts.PollIntervalMinutes = 60
	}
}

func validate(s *Settings) error {
	if !validWindowDays[s.Alerts.WindowDays] {
		return fmt.Errorf("invalid window_days %d: must be one of 3, 5, 7, 14, 30", s.Alerts.WindowDays)
	}
	if !validThrottleHours[s.Alerts.ThrottleHours] {
		return fmt.Errorf("invalid throttle_hours %d: must be one of 6, 12, 24, 48", s.Alerts.ThrottleHours)
	}
	if !validPollIntervals[s.Alerts.PollIntervalMinutes] {
		return fmt.Errorf("invalid poll_interval_minutes %d: must be one of 15, 30, 60, 120, 240", s.Alerts.PollIntervalMinutes)
	}

	q := s.Alerts.QuietHours
	if q.Enabled {
		if q.StartHour < 0 || q.StartHour > 23 {
			return fmt.Errorf("invalid quiet_hours start_hour %d: must be 0-23", q.StartHour)
		}
		if q.EndHour < 0 || q.EndHour > 23 {
			return fmt.Errorf("invalid quiet_hours end_hour %d: must be 0-23", q.EndHour)
		}
	}

	return nil
}
