package notify

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/clinic"
	"github.com/erdincayar/klinik-asistan-sub000/internal/events"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// EmailSender delivers clinic e-mail. SendGrid, SES and the stub implement it.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// EmailKind labels a message for provider analytics.
type EmailKind string

const (
	KindReminder     EmailKind = "reminder"
	KindLowStock     EmailKind = "low_stock"
	KindDailySummary EmailKind = "daily_summary"
)

// EmailMessage is one outgoing e-mail. HTML is rendered from Body when
// empty.
type EmailMessage struct {
	ClinicID string
	Kind     EmailKind
	To       string `validate:"required,email"`
	ToName   string
	Subject  string `validate:"required,max=200"`
	Body     string `validate:"required"`
	HTML     string
}

var emailValidate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects messages no provider would accept.
func (m EmailMessage) Validate() error {
	if err := emailValidate.Struct(m); err != nil {
		return fmt.Errorf("notify: invalid email: %w", err)
	}
	return nil
}

// ReminderEmail addresses a patient appointment reminder.
func ReminderEmail(clinicID, to, toName, subject, body string) EmailMessage {
	return EmailMessage{ClinicID: clinicID, Kind: KindReminder, To: to, ToName: toName, Subject: subject, Body: body}
}

// LowStockEmail alerts the clinic owner that a product reached its minimum.
func LowStockEmail(cfg *clinic.Config, evt events.LowStockV1) EmailMessage {
	return EmailMessage{
		ClinicID: cfg.ClinicID,
		Kind:     KindLowStock,
		To:       cfg.OwnerEmail,
		ToName:   cfg.Name,
		Subject:  "Düşük stok: " + evt.ProductName,
		Body:     FormatLowStock(evt),
	}
}

// SummaryEmail carries the end of day summary to the clinic owner.
func SummaryEmail(cfg *clinic.Config, day time.Time, summary string) EmailMessage {
	return EmailMessage{
		ClinicID: cfg.ClinicID,
		Kind:     KindDailySummary,
		To:       cfg.OwnerEmail,
		ToName:   cfg.Name,
		Subject:  fmt.Sprintf("%s günlük özet - %s", cfg.Name, calendar.FormatDate(day)),
		Body:     summary,
	}
}

// RenderHTML returns HTML, or Body escaped with line breaks kept.
func (m EmailMessage) RenderHTML() string {
	if m.HTML != "" {
		return m.HTML
	}
	lines := strings.Split(m.Body, "\n")
	for i, line := range lines {
		lines[i] = html.EscapeString(line)
	}
	return `<div style="font-family:sans-serif">` + strings.Join(lines, "<br>") + `</div>`
}

// Tags are the provider-side labels, sorted by name.
func (m EmailMessage) Tags() [][2]string {
	tags := map[string]string{"app": "klinik-asistan"}
	if m.Kind != "" {
		tags["kind"] = string(m.Kind)
	}
	if m.ClinicID != "" {
		tags["clinic_id"] = m.ClinicID
	}
	out := make([][2]string, 0, len(tags))
	for k, v := range tags {
		out = append(out, [2]string{k, v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// SendGridSender sends through the SendGrid v3 API.
type SendGridSender struct {
	client    *sendgrid.Client
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SendGridConfig struct {
	APIKey    string
	FromEmail string
	FromName  string
}

// NewSendGridSender returns nil without an API key.
func NewSendGridSender(cfg SendGridConfig, logger *logging.Logger) *SendGridSender {
	if cfg.APIKey == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Klinik Asistan"
	}
	return &SendGridSender{
		client:    sendgrid.NewSendClient(cfg.APIKey),
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// buildMail maps msg onto a v3 mail with the kind as category and the
// clinic as a custom arg, so SendGrid events can be traced to a clinic.
func (s *SendGridSender) buildMail(msg EmailMessage) *mail.SGMailV3 {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(msg.ToName, msg.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Body, msg.RenderHTML())
	for _, tag := range msg.Tags() {
		if tag[0] == "kind" {
			message.AddCategories(tag[1])
			continue
		}
		message.SetCustomArg(tag[0], tag[1])
	}
	return message
}

func (s *SendGridSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: sendgrid client not configured")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	response, err := s.client.SendWithContext(ctx, s.buildMail(msg))
	if err != nil {
		s.logger.Error("sendgrid send failed", "error", err, "clinic_id", msg.ClinicID, "kind", msg.Kind)
		return fmt.Errorf("notify: sendgrid send failed: %w", err)
	}
	if response.StatusCode >= 400 {
		s.logger.Error("sendgrid returned error status", "status", response.StatusCode, "body", response.Body,
			"clinic_id", msg.ClinicID, "kind", msg.Kind)
		return fmt.Errorf("notify: sendgrid returned status %d", response.StatusCode)
	}

	s.logger.Info("email sent via sendgrid", "clinic_id", msg.ClinicID, "kind", msg.Kind, "status", response.StatusCode)
	return nil
}

// StubEmailSender logs instead of sending. It is used when no provider is
// configured.
type StubEmailSender struct {
	logger *logging.Logger
}

func NewStubEmailSender(logger *logging.Logger) *StubEmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &StubEmailSender{logger: logger}
}

func (s *StubEmailSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("email not sent, no provider configured", "clinic_id", msg.ClinicID, "kind", msg.Kind, "subject", msg.Subject)
	return nil
}
