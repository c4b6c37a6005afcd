// Package reminders finds patients who are due for a follow-up treatment
// and sends them a personalized reminder.
package reminders

import (
	"context"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
)

// DefaultCooldownDays suppresses a second reminder to the same patient.
const DefaultCooldownDays = 30

// DefaultTemplate is used when a rule has no message template of its own.
const DefaultTemplate = "Merhaba {hasta}, son {islem} işleminizin üzerinden {gun} gün geçti. Yeni bir randevu için bize yazabilirsiniz."

// Channel names how a reminder was delivered.
type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
	ChannelNone  Channel = "none"
)

// LogStatus is the outcome of one delivery attempt.
type LogStatus string

const (
	LogSent   LogStatus = "sent"
	LogFailed LogStatus = "failed"
)

// Rule schedules a reminder IntervalDays after a treatment of Category.
type Rule struct {
	ID              string                    `json:"id"`
	ClinicID        string                    `json:"clinic_id"`
	Category        catalog.TreatmentCategory `json:"treatment_category"`
	IntervalDays    int                       `json:"interval_days"`
	MessageTemplate string                    `json:"message_template"`
	Active          bool                      `json:"is_active"`
	CreatedAt       time.Time                 `json:"created_at"`
}

// Log records one reminder delivery attempt.
type Log struct {
	ID             string    `json:"id"`
	ClinicID       string    `json:"clinic_id"`
	PatientID      string    `json:"patient_id"`
	RuleID         string    `json:"rule_id,omitempty"`
	MessageContent string    `json:"message_content"`
	Channel        Channel   `json:"channel"`
	Status         LogStatus `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

// Due is a patient who should receive a reminder under Rule.
type Due struct {
	PatientID         string                    `json:"patient_id"`
	PatientName       string                    `json:"patient_name"`
	RuleID            string                    `json:"rule_id"`
	Category          catalog.TreatmentCategory `json:"treatment_category"`
	LastTreatmentDate time.Time                 `json:"last_treatment_date"`
	IntervalDays      int                       `json:"interval_days"`
}

var ErrRuleNotFound = apperr.NotFound("reminder rule")

// Repository persists rules and delivery logs.
type Repository interface {
	CreateRule(ctx context.Context, r *Rule) error
	UpdateRule(ctx context.Context, r *Rule) error
	ListRules(ctx context.Context, clinicID string) ([]Rule, error)
	CreateLog(ctx context.Context, l *Log) error
	ListLogsSince(ctx context.Context, clinicID string, since time.Time) ([]Log, error)
}
