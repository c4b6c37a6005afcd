package notify

import (
	"context"
	"fmt"
	"mime"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"

	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

// SESAPI is the subset of the SES v2 client used for sending.
type SESAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESSender sends through SES v2.
type SESSender struct {
	client    SESAPI
	fromEmail string
	fromName  string
	logger    *logging.Logger
}

type SESConfig struct {
	FromEmail string
	FromName  string
}

// NewSESSender returns nil without a client.
func NewSESSender(client SESAPI, cfg SESConfig, logger *logging.Logger) *SESSender {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.FromName == "" {
		cfg.FromName = "Klinik Asistan"
	}
	return &SESSender{
		client:    client,
		fromEmail: cfg.FromEmail,
		fromName:  cfg.FromName,
		logger:    logger,
	}
}

// Send validates msg and sends it with both bodies and the message tags.
func (s *SESSender) Send(ctx context.Context, msg EmailMessage) error {
	if s.client == nil {
		return fmt.Errorf("notify: SES client not configured")
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(mime.QEncoding.Encode("utf-8", s.fromName) + " <" + s.fromEmail + ">"),
		Destination:      &types.Destination{ToAddresses: []string{msg.To}},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: utf8Content(msg.Subject),
				Body: &types.Body{
					Text: utf8Content(msg.Body),
					Html: utf8Content(msg.RenderHTML()),
				},
			},
		},
	}
	for _, tag := range msg.Tags() {
		input.EmailTags = append(input.EmailTags, types.MessageTag{Name: aws.String(tag[0]), Value: aws.String(tag[1])})
	}

	output, err := s.client.SendEmail(ctx, input)
	if err != nil {
		s.logger.Error("SES send failed", "error", err, "clinic_id", msg.ClinicID, "kind", msg.Kind)
		return fmt.Errorf("notify: SES send failed: %w", err)
	}

	s.logger.Info("email sent via SES", "clinic_id", msg.ClinicID, "kind", msg.Kind, "message_id", aws.ToString(output.MessageId))
	return nil
}

func utf8Content(data string) *types.Content {
	return &types.Content{Data: aws.String(data), Charset: aws.String("UTF-8")}
}

var _ EmailSender = (*SESSender)(nil)
