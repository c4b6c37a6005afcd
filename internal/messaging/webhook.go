package messaging

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/erdincayar/klinik-asistan-sub000/internal/events"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

var webhookTracer = otel.Tracer("klinik.internal.messaging")

const (
	// HeaderTelegramSecret carries the secret registered with setWebhook.
	HeaderTelegramSecret = "X-Telegram-Bot-Api-Secret-Token"
	providerTelegram     = "telegram"
	maxWebhookBody       = 1 << 20

	msgUnboundChat = "👋 Bu sohbet henüz bir kliniğe bağlı değil. Yöneticinize şu sohbet kimliğini iletin: %s"
)

// ChatResolver maps a chat to the clinic it is bound to.
type ChatResolver interface {
	ClinicForChat(ctx context.Context, chatID string) (string, bool, error)
}

// JobPublisher enqueues inbound jobs.
type JobPublisher interface {
	Enqueue(ctx context.Context, job InboundJob) error
}

// InboundObserver counts inbound outcomes.
type InboundObserver interface {
	ObserveInbound(transport, status string)
}

// WebhookHandler accepts Telegram updates and queues them for the workers.
type WebhookHandler struct {
	secret    string
	publisher JobPublisher
	chats     ChatResolver
	deduper   events.Deduper
	notices   TextSender
	observer  InboundObserver
	logger    *logging.Logger
}

// TextSender posts a plain-text message to a chat.
type TextSender interface {
	SendText(ctx context.Context, chatID, text string) error
}

// WebhookDeps wires a WebhookHandler. Deduper, Notices and Observer are
// optional.
type WebhookDeps struct {
	Secret    string
	Publisher JobPublisher
	Chats     ChatResolver
	Deduper   events.Deduper
	Notices   TextSender
	Observer  InboundObserver
	Logger    *logging.Logger
}

func NewWebhookHandler(deps WebhookDeps) *WebhookHandler {
	if deps.Publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if deps.Chats == nil {
		panic("messaging: chat resolver cannot be nil")
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	return &WebhookHandler{
		secret:    deps.Secret,
		publisher: deps.Publisher,
		chats:     deps.Chats,
		deduper:   deps.Deduper,
		notices:   deps.Notices,
		observer:  deps.Observer,
		logger:    deps.Logger,
	}
}

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64  `json:"message_id"`
	Text      string `json:"text"`
	Chat      struct {
		ID   int64  `json:"id"`
		Type string `json:"type"`
	} `json:"chat"`
}

// Telegram handles POST /webhooks/telegram. Anything other than a bad
// secret or an unreadable body is answered 200 so Telegram does not
// redeliver it.
func (h *WebhookHandler) Telegram(w http.ResponseWriter, r *http.Request) {
	ctx, span := webhookTracer.Start(r.Context(), "messaging.telegram.webhook", trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()

	if h.secret != "" {
		got := r.Header.Get(HeaderTelegramSecret)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) != 1 {
			h.logger.Warn("invalid telegram webhook secret")
			span.RecordError(errors.New("invalid telegram secret"))
			h.observe("unauthorized")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
	}

	raw, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	var update telegramUpdate
	if err := json.Unmarshal(raw, &update); err != nil {
		h.logger.Warn("failed to parse telegram update", "error", err)
		span.RecordError(err)
		h.observe("invalid")
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int64("klinik.telegram.update_id", update.UpdateID))

	msg := update.Message
	if msg == nil || strings.TrimSpace(msg.Text) == "" {
		h.observe("ignored")
		w.WriteHeader(http.StatusOK)
		return
	}
	chatID := strconv.FormatInt(msg.Chat.ID, 10)

	if h.deduper != nil {
		fresh, err := h.deduper.MarkProcessed(ctx, providerTelegram, strconv.FormatInt(update.UpdateID, 10))
		if err != nil {
			h.logger.Warn("telegram dedupe lookup failed", "error", err, "update_id", update.UpdateID)
		} else if !fresh {
			h.logger.Info("duplicate telegram update skipped", "update_id", update.UpdateID)
			h.observe("duplicate")
			w.WriteHeader(http.StatusOK)
			return
		}
	}

	clinicID, ok, err := h.chats.ClinicForChat(ctx, chatID)
	if err != nil {
		h.logger.Error("failed to resolve clinic for chat", "error", err, "chat_id", chatID)
		span.RecordError(err)
		h.observe("error")
		http.Error(w, "Failed to resolve chat", http.StatusInternalServerError)
		return
	}
	if !ok {
		h.logger.Info("message from unbound chat", "chat_id", chatID)
		h.notifyUnbound(ctx, chatID)
		h.observe("unbound")
		w.WriteHeader(http.StatusOK)
		return
	}
	span.SetAttributes(attribute.String("klinik.clinic_id", clinicID))

	publishCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	job := InboundJob{
		ID:       providerTelegram + ":" + strconv.FormatInt(update.UpdateID, 10),
		ClinicID: clinicID,
		ChatID:   chatID,
		UpdateID: update.UpdateID,
		Text:     msg.Text,
	}
	if err := h.publisher.Enqueue(publishCtx, job); err != nil {
		h.logger.Error("failed to enqueue inbound job", "error", err, "clinic_id", clinicID, "update_id", update.UpdateID)
		span.RecordError(err)
		h.observe("error")
		http.Error(w, "Failed to schedule reply", http.StatusInternalServerError)
		return
	}

	h.logger.Info("telegram update accepted", "clinic_id", clinicID, "update_id", update.UpdateID)
	h.observe("accepted")
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) notifyUnbound(ctx context.Context, chatID string) {
	if h.notices == nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.notices.SendText(sendCtx, chatID, fmt.Sprintf(msgUnboundChat, chatID)); err != nil {
		h.logger.Warn("failed to send unbound chat notice", "error", err, "chat_id", chatID)
	}
}

func (h *WebhookHandler) observe(status string) {
	if h.observer != nil {
		h.observer.ObserveInbound(providerTelegram, status)
	}
}
