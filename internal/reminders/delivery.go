package reminders

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erdincayar/klinik-asistan-sub000/internal/notify"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
)

var errNoChannel = errors.New("reminders: patient has no reachable channel")

// Sender delivers a reminder and reports the channel used.
type Sender interface {
	Deliver(ctx context.Context, clinicID string, p patients.Patient, subject, body string) (Channel, error)
}

// ChatDirectory maps a patient phone number to a bound chat.
type ChatDirectory interface {
	ChatForPhone(ctx context.Context, clinicID, phone string) (string, bool, error)
}

// ChatSender posts plain text to a chat.
type ChatSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// RoutingSender prefers the patient's bound chat and falls back to e-mail.
type RoutingSender struct {
	Chats ChatDirectory
	Chat  ChatSender
	Email notify.EmailSender
}

func (s RoutingSender) Deliver(ctx context.Context, clinicID string, p patients.Patient, subject, body string) (Channel, error) {
	if s.Chats != nil && s.Chat != nil && strings.TrimSpace(p.Phone) != "" {
		chatID, ok, err := s.Chats.ChatForPhone(ctx, clinicID, p.Phone)
		if err != nil {
			return ChannelChat, fmt.Errorf("reminders: chat lookup: %w", err)
		}
		if ok {
			if err := s.Chat.SendText(ctx, chatID, body); err != nil {
				return ChannelChat, fmt.Errorf("reminders: chat send: %w", err)
			}
			return ChannelChat, nil
		}
	}
	if s.Email != nil && strings.TrimSpace(p.Email) != "" {
		err := s.Email.Send(ctx, notify.ReminderEmail(clinicID, p.Email, p.Name, subject, body))
		if err != nil {
			return ChannelEmail, fmt.Errorf("reminders: email send: %w", err)
		}
		return ChannelEmail, nil
	}
	return ChannelNone, errNoChannel
}
