package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/clinic"
	"github.com/erdincayar/klinik-asistan-sub000/internal/events"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// ChatSender posts plain text to an operator chat.
type ChatSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// ClinicConfigStore retrieves clinic configuration.
type ClinicConfigStore interface {
	Get(ctx context.Context, clinicID string) (*clinic.Config, error)
}

// Service handles sending notifications to clinic operators.
type Service struct {
	email       EmailSender
	chat        ChatSender
	clinicStore ClinicConfigStore
	logger      *logging.Logger
}

// NewService creates a notification service. email and chat may be nil.
func NewService(email EmailSender, chat ChatSender, clinicStore ClinicConfigStore, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		email:       email,
		chat:        chat,
		clinicStore: clinicStore,
		logger:      logger,
	}
}

// Handle consumes outbox entries. Unknown event types are acknowledged and
// skipped.
func (s *Service) Handle(ctx context.Context, entry events.OutboxEntry) error {
	switch entry.Type {
	case events.TypeLowStockV1:
		var evt events.LowStockV1
		if err := json.Unmarshal(entry.Payload, &evt); err != nil {
			s.logger.Error("notify: malformed low stock event", "entry_id", entry.ID, "error", err)
			return nil
		}
		if evt.ClinicID == "" {
			evt.ClinicID = entry.ClinicID
		}
		return s.NotifyLowStock(ctx, evt)
	default:
		s.logger.Debug("notify: ignoring outbox event", "type", entry.Type)
		return nil
	}
}

// NotifyLowStock alerts the clinic's chats and owner that a product reached
// its minimum level.
func (s *Service) NotifyLowStock(ctx context.Context, evt events.LowStockV1) error {
	cfg, err := s.config(ctx, evt.ClinicID)
	if err != nil {
		return err
	}
	return s.broadcast(ctx, cfg, LowStockEmail(cfg, evt))
}

// FormatLowStock renders the operator alert for a low-stock event.
func FormatLowStock(evt events.LowStockV1) string {
	unit := evt.Unit
	if unit == "" {
		unit = "adet"
	}
	return fmt.Sprintf("⚠️ Düşük stok uyarısı\n%s: %d %s kaldı (minimum %d %s).",
		evt.ProductName, evt.CurrentStock, unit, evt.MinStock, unit)
}

// SendDailySummary delivers the end of day summary to the clinic owner by
// e-mail and to every bound chat.
func (s *Service) SendDailySummary(ctx context.Context, clinicID string, day time.Time, summary string) error {
	cfg, err := s.config(ctx, clinicID)
	if err != nil {
		return err
	}
	return s.broadcast(ctx, cfg, SummaryEmail(cfg, day, summary))
}

func (s *Service) config(ctx context.Context, clinicID string) (*clinic.Config, error) {
	if s.clinicStore == nil {
		return clinic.DefaultConfig(clinicID), nil
	}
	cfg, err := s.clinicStore.Get(ctx, clinicID)
	if err != nil {
		s.logger.Error("notify: failed to get clinic config", "error", err, "clinic_id", clinicID)
		return nil, fmt.Errorf("notify: get clinic config: %w", err)
	}
	return cfg, nil
}

// broadcast posts msg.Body to every bound chat and e-mails msg to the
// owner, joining the failures. It fails only when nothing was delivered.
func (s *Service) broadcast(ctx context.Context, cfg *clinic.Config, msg EmailMessage) error {
	subject, text := msg.Subject, msg.Body
	var errs []error
	delivered := 0

	if s.chat != nil {
		for _, chatID := range cfg.ChatIDs {
			if err := s.chat.SendText(ctx, chatID, text); err != nil {
				s.logger.Warn("notify: chat send failed", "clinic_id", cfg.ClinicID, "chat_id", chatID, "error", err)
				errs = append(errs, err)
				continue
			}
			delivered++
		}
	}

	if s.email != nil && strings.TrimSpace(cfg.OwnerEmail) != "" {
		if err := s.email.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		} else {
			delivered++
		}
	}

	if delivered == 0 {
		if len(errs) == 0 {
			s.logger.Info("notify: no destination configured", "clinic_id", cfg.ClinicID, "subject", subject)
			return nil
		}
		return fmt.Errorf("notify: %w", errors.Join(errs...))
	}
	s.logger.Info("notify: delivered", "clinic_id", cfg.ClinicID, "subject", subject, "destinations", delivered, "failures", len(errs))
	return nil
}
