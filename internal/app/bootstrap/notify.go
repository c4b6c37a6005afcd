package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/messaging"
	"github.com/erdincayar/klinik-asistan-sub000/internal/notify"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// BuildEmailSender selects the e-mail provider. Unknown or incomplete
// providers fall back to the logging stub.
func BuildEmailSender(cfg *appconfig.Config, awsCfg *aws.Config, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil {
		return notify.NewStubEmailSender(logger)
	}
	switch cfg.EmailProvider {
	case "sendgrid":
		if strings.TrimSpace(cfg.SendGridAPIKey) == "" {
			logger.Warn("sendgrid selected without api key; using stub email sender")
			break
		}
		return notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	case "ses":
		if awsCfg == nil || strings.TrimSpace(cfg.SESFromEmail) == "" {
			logger.Warn("ses selected without aws config or sender; using stub email sender")
			break
		}
		return notify.NewSESSender(sesv2.NewFromConfig(*awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger)
	}
	return notify.NewStubEmailSender(logger)
}

// logChatSender stands in for Telegram when no bot token is configured.
type logChatSender struct {
	logger *logging.Logger
}

func (s logChatSender) SendText(_ context.Context, chatID, text string) error {
	s.logger.Info("chat send skipped: telegram not configured", "chat_id", chatID, "length", len(text))
	return nil
}

// ChatSender is what the bootstrap hands to every component that posts to
// a chat.
type ChatSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// BuildChatSender returns the Telegram client, or a logging stand-in when
// TELEGRAM_BOT_TOKEN is empty.
func BuildChatSender(cfg *appconfig.Config, logger *logging.Logger) (ChatSender, error) {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg == nil || strings.TrimSpace(cfg.TelegramBotToken) == "" {
		logger.Warn("telegram bot token not set; chat replies are logged only")
		return logChatSender{logger: logger}, nil
	}
	client, err := messaging.NewTelegramClient(messaging.TelegramConfig{
		Token:  cfg.TelegramBotToken,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: telegram client: %w", err)
	}
	return client, nil
}

// BuildQueue returns the inbound job queue: in-memory for single-process
// deployments, SQS otherwise.
func BuildQueue(cfg *appconfig.Config, awsCfg *aws.Config) (messaging.Queue, error) {
	if cfg == nil || cfg.UseMemoryQueue {
		return messaging.NewMemoryQueue(256), nil
	}
	if strings.TrimSpace(cfg.InboundQueueURL) == "" {
		return nil, fmt.Errorf("bootstrap: INBOUND_QUEUE_URL is required when USE_MEMORY_QUEUE=false")
	}
	if awsCfg == nil {
		return nil, fmt.Errorf("bootstrap: aws config required for sqs")
	}
	return messaging.NewSQSQueue(sqs.NewFromConfig(*awsCfg), cfg.InboundQueueURL), nil
}
