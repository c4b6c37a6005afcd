package conversation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/llm"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

const (
	msgOracleUnavailable = "Mesajınız şu an işlenemedi. Lütfen biraz sonra tekrar deneyin."
	msgNotUnderstood     = "Mesajınız anlaşılamadı. Lütfen daha açık yazın veya /yardim ile komutlara bakın."
)

var tracer = otel.Tracer("klinik.internal.conversation")

// ClassificationObserver counts classified messages by kind.
type ClassificationObserver interface {
	ObserveClassification(kind string)
}

// Classifier turns free text into a Parsed value through the oracle. It is
// stateless between calls.
type Classifier struct {
	oracle    llm.Client
	model     string
	maxTokens int32
	validate  *validator.Validate
	observer  ClassificationObserver
	logger    *logging.Logger
}

// ClassifierOption customizes a Classifier.
type ClassifierOption func(*Classifier)

func WithModel(model string) ClassifierOption {
	return func(c *Classifier) { c.model = model }
}

func WithClassificationObserver(observer ClassificationObserver) ClassifierOption {
	return func(c *Classifier) { c.observer = observer }
}

func NewClassifier(oracle llm.Client, logger *logging.Logger, opts ...ClassifierOption) *Classifier {
	if oracle == nil {
		panic("conversation: oracle cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	c := &Classifier{
		oracle:    oracle,
		maxTokens: 512,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Classify never fails: oracle and contract errors come back as Unparsed
// with the input preserved verbatim.
func (c *Classifier) Classify(ctx context.Context, text string, now time.Time) Parsed {
	ctx, span := tracer.Start(ctx, "conversation.classify")
	defer span.End()

	result := c.classify(ctx, text, now)
	span.SetAttributes(attribute.String("classification.kind", string(result.Kind())))
	if c.observer != nil {
		c.observer.ObserveClassification(string(result.Kind()))
	}
	return result
}

func (c *Classifier) classify(ctx context.Context, text string, now time.Time) Parsed {
	if strings.TrimSpace(text) == "" {
		return Unparsed{Message: msgNotUnderstood, OriginalText: text}
	}
	resp, err := c.oracle.Complete(ctx, llm.Request{
		Model:       c.model,
		System:      []string{classifierSystemPrompt(now)},
		Messages:    []llm.Message{{Role: llm.RoleUser, Content: text}},
		MaxTokens:   c.maxTokens,
		Temperature: 0,
	})
	if err != nil {
		c.logger.Warn("classifier: oracle call failed", "error", err)
		return Unparsed{Message: msgOracleUnavailable, OriginalText: text}
	}

	parsed, err := c.ParseReply(resp.Text, text, now)
	if err != nil {
		c.logger.Warn("classifier: reply rejected", "error", err, "reply", truncate(resp.Text, 300))
		return Unparsed{Message: msgNotUnderstood, OriginalText: text}
	}
	return parsed
}

// wireReply is the JSON contract the oracle must satisfy.
type wireReply struct {
	Type          string      `json:"type"`
	PatientName   string      `json:"patientName"`
	Date          string      `json:"date"`
	Time          string      `json:"time"`
	TreatmentType string      `json:"treatmentType"`
	TreatmentName string      `json:"treatmentName"`
	Description   string      `json:"description"`
	Amount        json.Number `json:"amount"`
	Category      string      `json:"category"`
	ProductName   string      `json:"productName"`
	Quantity      json.Number `json:"quantity"`
	Notes         string      `json:"notes"`
	Message       string      `json:"message"`
	Options       []string    `json:"options"`
}

type appointmentFields struct {
	PatientName string `validate:"required,max=120"`
	Date        string `validate:"required"`
	Time        string `validate:"required"`
}

type incomeFields struct {
	PatientName string `validate:"required,max=120"`
	Amount      string `validate:"required"`
}

type expenseFields struct {
	Description string `validate:"required,max=200"`
	Amount      string `validate:"required"`
}

type stockFields struct {
	ProductName string `validate:"required,max=120"`
	Quantity    string `validate:"required"`
}

// ParseReply applies the strict JSON contract to an oracle reply. Code
// fences and prose around the object are tolerated; anything else is a
// parse error. originalText is carried into the ERROR variant.
func (c *Classifier) ParseReply(reply, originalText string, now time.Time) (Parsed, error) {
	raw, err := llm.ExtractJSONObject(reply)
	if err != nil {
		return nil, apperr.Parse("oracle reply has no JSON object", err)
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	var w wireReply
	if err := dec.Decode(&w); err != nil {
		return nil, apperr.Parse("oracle reply is not valid JSON", err)
	}

	switch Kind(strings.ToUpper(strings.TrimSpace(w.Type))) {
	case KindAppointment:
		return c.appointment(w, now)
	case KindIncome:
		return c.income(w)
	case KindExpense:
		return c.expense(w)
	case KindStockIn:
		return c.stock(w, catalog.MovementIn)
	case KindStockOut:
		return c.stock(w, catalog.MovementOut)
	case KindAmbiguous:
		msg := strings.TrimSpace(w.Message)
		if msg == "" {
			msg = "Ne yapmak istediğinizi netleştirir misiniz?"
		}
		return Ambiguous{Message: msg, Options: nonEmpty(w.Options)}, nil
	case KindError:
		msg := strings.TrimSpace(w.Message)
		if msg == "" {
			msg = msgNotUnderstood
		}
		return Unparsed{Message: msg, OriginalText: originalText}, nil
	default:
		return nil, apperr.Parse(fmt.Sprintf("unknown message type %q", w.Type), nil)
	}
}

func (c *Classifier) check(fields any) error {
	if err := c.validate.Struct(fields); err != nil {
		return apperr.Parse("oracle reply is missing required fields", err)
	}
	return nil
}

func (c *Classifier) appointment(w wireReply, now time.Time) (Parsed, error) {
	if err := c.check(appointmentFields{PatientName: strings.TrimSpace(w.PatientName), Date: w.Date, Time: w.Time}); err != nil {
		return nil, err
	}
	day, ok := calendar.ResolveDate(w.Date, now)
	if !ok {
		return nil, apperr.Parse(fmt.Sprintf("unrecognized date %q", w.Date), nil)
	}
	start, err := calendar.ParseClock(w.Time)
	if err != nil {
		return nil, apperr.Parse("invalid appointment time", err)
	}
	category, err := catalog.ParseTreatmentCategory(w.TreatmentType)
	if err != nil {
		return nil, apperr.Parse("invalid treatment type", err)
	}
	return AppointmentRequest{
		PatientName:   strings.TrimSpace(w.PatientName),
		Date:          day,
		Time:          start,
		TreatmentType: category,
		Notes:         strings.TrimSpace(w.Notes),
	}, nil
}

func (c *Classifier) income(w wireReply) (Parsed, error) {
	if err := c.check(incomeFields{PatientName: strings.TrimSpace(w.PatientName), Amount: w.Amount.String()}); err != nil {
		return nil, err
	}
	amount, err := minorUnits(w.Amount)
	if err != nil {
		return nil, err
	}
	category, err := catalog.ParseTreatmentCategory(w.TreatmentType)
	if err != nil {
		return nil, apperr.Parse("invalid treatment type", err)
	}
	return IncomeRecord{
		PatientName:   strings.TrimSpace(w.PatientName),
		TreatmentType: category,
		TreatmentName: strings.TrimSpace(w.TreatmentName),
		Amount:        amount,
		Notes:         strings.TrimSpace(w.Notes),
	}, nil
}

func (c *Classifier) expense(w wireReply) (Parsed, error) {
	if err := c.check(expenseFields{Description: strings.TrimSpace(w.Description), Amount: w.Amount.String()}); err != nil {
		return nil, err
	}
	amount, err := minorUnits(w.Amount)
	if err != nil {
		return nil, err
	}
	category, err := catalog.ParseExpenseCategory(w.Category)
	if err != nil {
		// an unknown label is still an expense
		category = catalog.ExpenseDiger
	}
	return ExpenseRecord{
		Description: strings.TrimSpace(w.Description),
		Amount:      amount,
		Category:    category,
	}, nil
}

func (c *Classifier) stock(w wireReply, direction catalog.MovementType) (Parsed, error) {
	if err := c.check(stockFields{ProductName: strings.TrimSpace(w.ProductName), Quantity: w.Quantity.String()}); err != nil {
		return nil, err
	}
	qty, err := w.Quantity.Int64()
	if err != nil || qty <= 0 || qty > math.MaxInt32 {
		return nil, apperr.Parse(fmt.Sprintf("invalid quantity %q", w.Quantity), err)
	}
	return StockMove{
		Direction:   direction,
		ProductName: strings.TrimSpace(w.ProductName),
		Quantity:    int(qty),
		Notes:       strings.TrimSpace(w.Notes),
	}, nil
}

// minorUnits reads a positive whole kuruş amount. Fractional values are
// rejected rather than rounded.
func minorUnits(n json.Number) (money.Amount, error) {
	if v, err := n.Int64(); err == nil {
		if v <= 0 {
			return 0, apperr.Parse("amount must be positive", nil)
		}
		return money.Amount(v), nil
	}
	f, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || f != math.Trunc(f) || f <= 0 || f > 1e15 {
		return 0, apperr.Parse(fmt.Sprintf("invalid amount %q", n), err)
	}
	return money.Amount(int64(f)), nil
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
