package clinic

import (
	"context"
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
)

// DefaultTimezone is used when a clinic has not configured one.
const DefaultTimezone = calendar.DefaultTimezone

// Config holds clinic-specific configuration.
type Config struct {
	ClinicID string `json:"clinic_id"`
	Name     string `json:"name"`
	Timezone string `json:"timezone"` // e.g., "Europe/Istanbul"

	// OwnerEmail receives the daily summary and serves as the reminder
	// reply-to address.
	OwnerEmail string `json:"owner_email,omitempty"`

	// ChatIDs are the operator chats bound to this clinic. Alerts and the
	// daily summary are posted to each of them.
	ChatIDs []string `json:"chat_ids,omitempty"`

	DefaultAppointmentMinutes int `json:"default_appointment_minutes"`

	// ReminderAutoSend enables the periodic reminder send run.
	ReminderAutoSend bool `json:"reminder_auto_send"`
	// ReminderTone steers generated reminder text: "samimi" or "resmi".
	ReminderTone string `json:"reminder_tone,omitempty"`
	// DailySummary e-mails the end of day summary to OwnerEmail.
	DailySummary bool `json:"daily_summary"`

	UpdatedAt time.Time `json:"updated_at"`
}

// DefaultConfig returns sensible defaults for a clinic with no stored config.
func DefaultConfig(clinicID string) *Config {
	return &Config{
		ClinicID:                  clinicID,
		Name:                      "Klinik",
		Timezone:                  DefaultTimezone,
		DefaultAppointmentMinutes: 30,
		ReminderTone:              "samimi",
	}
}

// Location returns the clinic's time zone.
func (c *Config) Location() *time.Location {
	if c == nil || strings.TrimSpace(c.Timezone) == "" {
		return calendar.Location(DefaultTimezone)
	}
	return calendar.Location(c.Timezone)
}

// AppointmentMinutes returns the configured default duration, falling back
// to 30 minutes.
func (c *Config) AppointmentMinutes() int {
	if c == nil || c.DefaultAppointmentMinutes <= 0 {
		return 30
	}
	return c.DefaultAppointmentMinutes
}

// HasChat reports whether chatID is bound to the clinic.
func (c *Config) HasChat(chatID string) bool {
	for _, id := range c.ChatIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// normalize fills defaults for zero-valued fields.
func (c *Config) normalize() {
	c.Name = strings.TrimSpace(c.Name)
	if c.Name == "" {
		c.Name = "Klinik"
	}
	if strings.TrimSpace(c.Timezone) == "" {
		c.Timezone = DefaultTimezone
	}
	if c.DefaultAppointmentMinutes <= 0 {
		c.DefaultAppointmentMinutes = 30
	}
	switch strings.ToLower(strings.TrimSpace(c.ReminderTone)) {
	case "resmi":
		c.ReminderTone = "resmi"
	default:
		c.ReminderTone = "samimi"
	}
}

// ConfigGetter is the read side shared by Store and CachedStore.
type ConfigGetter interface {
	Get(ctx context.Context, clinicID string) (*Config, error)
}

// NowFunc returns a calendar.NowFunc that reads each clinic's time zone
// through getter. Lookup failures fall back to the default zone.
func NowFunc(getter ConfigGetter, clock func() time.Time) calendar.NowFunc {
	if clock == nil {
		clock = time.Now
	}
	fallback := calendar.Location(DefaultTimezone)
	return func(ctx context.Context, clinicID string) time.Time {
		cfg, err := getter.Get(ctx, clinicID)
		if err != nil || cfg == nil {
			return clock().In(fallback)
		}
		return clock().In(cfg.Location())
	}
}
