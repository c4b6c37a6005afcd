package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/erdincayar/klinik-asistan-sub000/internal/appointments"
	"github.com/erdincayar/klinik-asistan-sub000/internal/audit"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
	"github.com/erdincayar/klinik-asistan-sub000/internal/llm"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

const (
	maxToolTurns         = 5
	msgAgentUnavailable  = "🤖 Asistan şu an yanıt veremiyor. Lütfen biraz sonra tekrar deneyin."
	msgAgentTooManySteps = "🤖 Bu soru çok fazla adım gerektirdi. Lütfen soruyu daraltıp tekrar deneyin."
)

// AgentCalendar is the appointment view the agent tools read.
type AgentCalendar interface {
	Day(ctx context.Context, clinicID string, day time.Time) ([]appointments.Appointment, error)
	Slots(ctx context.Context, clinicID string, day time.Time) ([]appointments.Slot, error)
}

// AgentLedger is the finance view the agent tools read and write.
type AgentLedger interface {
	CashPosition(ctx context.Context, clinicID string) (finance.Totals, error)
	Summarize(ctx context.Context, clinicID string, p calendar.Period, detailed bool) (*finance.Summary, error)
	RecordExpense(ctx context.Context, e *finance.Expense) error
}

// AgentPatients searches the patient directory.
type AgentPatients interface {
	SearchByName(ctx context.Context, clinicID, fragment string, limit int) ([]patients.Patient, error)
}

type agentTool struct {
	description string
	schema      string
	run         func(ctx context.Context, clinicID string, now time.Time, args json.RawMessage) (any, error)
}

// Agent answers open questions with read and write tools over clinic data.
// The oracle either replies with the final answer or with a single
// {"tool": name, "arguments": {...}} object.
type Agent struct {
	oracle   llm.Client
	calendar AgentCalendar
	ledger   AgentLedger
	patients AgentPatients
	audit    audit.Recorder
	now      calendar.NowFunc
	validate *validator.Validate
	logger   *logging.Logger
	tools    map[string]agentTool
}

func NewAgent(oracle llm.Client, cal AgentCalendar, ledger AgentLedger, pats AgentPatients, recorder audit.Recorder, now calendar.NowFunc, logger *logging.Logger) *Agent {
	if logger == nil {
		logger = logging.Default()
	}
	if now == nil {
		now = calendar.NowIn(calendar.Location(""))
	}
	a := &Agent{
		oracle:   oracle,
		calendar: cal,
		ledger:   ledger,
		patients: pats,
		audit:    recorder,
		now:      now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   logger,
	}
	a.tools = map[string]agentTool{
		"list_appointments": {
			description: "Bir günün randevularını listeler.",
			schema:      `{"type":"object","properties":{"date":{"type":"string","description":"YYYY-MM-DD, bugün, yarın veya gün adı"}},"required":["date"]}`,
			run:         a.listAppointments,
		},
		"available_slots": {
			description: "Bir gündeki boş randevu saatlerini listeler.",
			schema:      `{"type":"object","properties":{"date":{"type":"string"}},"required":["date"]}`,
			run:         a.availableSlots,
		},
		"cash_position": {
			description: "Tüm zamanların toplam gelir, gider ve kasa bakiyesi.",
			schema:      `{"type":"object","properties":{}}`,
			run:         a.cashPosition,
		},
		"find_patient": {
			description: "İsmin bir kısmıyla hasta arar.",
			schema:      `{"type":"object","properties":{"name":{"type":"string"}},"required":["name"]}`,
			run:         a.findPatient,
		},
		"period_summary": {
			description: "Bir dönemin gelir/gider özeti (bu ay, geçen hafta, ocak...).",
			schema:      `{"type":"object","properties":{"period":{"type":"string"}},"required":["period"]}`,
			run:         a.periodSummary,
		},
		"record_expense": {
			description: "Gider kaydeder. amount kuruş cinsinden tam sayıdır.",
			schema:      `{"type":"object","properties":{"description":{"type":"string"},"amount":{"type":"integer"},"category":{"type":"string","enum":["MALZEME","KIRA","FATURA","MAAS","DIGER"]}},"required":["description","amount"]}`,
			run:         a.recordExpense,
		},
	}
	return a
}

type toolCall struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments"`
}

// Ask runs the tool loop for question. It always returns user-facing text.
func (a *Agent) Ask(ctx context.Context, clinicID, question string) string {
	now := a.now(ctx, clinicID)
	messages := []llm.Message{{Role: llm.RoleUser, Content: question}}
	system := a.systemPrompt(now)

	for turn := 0; ; turn++ {
		resp, err := a.oracle.Complete(ctx, llm.Request{
			System:    []string{system},
			Messages:  messages,
			MaxTokens: 1024,
		})
		if err != nil {
			a.logger.Warn("agent: oracle call failed", "clinic_id", clinicID, "error", err)
			return msgAgentUnavailable
		}

		call, ok := a.parseToolCall(resp.Text)
		if !ok {
			answer := strings.TrimSpace(llm.StripCodeFence(resp.Text))
			if answer == "" {
				return msgAgentUnavailable
			}
			return answer
		}
		if turn >= maxToolTurns {
			a.logger.Warn("agent: tool turn limit reached", "clinic_id", clinicID, "tool", call.Tool)
			return msgAgentTooManySteps
		}

		result := a.runTool(ctx, clinicID, now, call)
		messages = append(messages,
			llm.Message{Role: llm.RoleAssistant, Content: resp.Text},
			llm.Message{Role: llm.RoleUser, Content: fmt.Sprintf("TOOL_RESULT %s: %s", call.Tool, a.encodeResult(clinicID, call.Tool, result))},
		)
	}
}

func (a *Agent) parseToolCall(text string) (toolCall, bool) {
	raw, err := llm.ExtractJSONObject(text)
	if err != nil {
		return toolCall{}, false
	}
	var call toolCall
	if err := json.Unmarshal([]byte(raw), &call); err != nil || call.Tool == "" {
		return toolCall{}, false
	}
	return call, true
}

// runTool executes one call; failures come back to the oracle as
// {"error": ...} so it can recover or explain.
func (a *Agent) runTool(ctx context.Context, clinicID string, now time.Time, call toolCall) any {
	tool, ok := a.tools[call.Tool]
	var (
		result any
		err    error
	)
	if !ok {
		err = fmt.Errorf("bilinmeyen araç: %s", call.Tool)
	} else {
		args := call.Arguments
		if len(args) == 0 {
			args = json.RawMessage("{}")
		}
		result, err = tool.run(ctx, clinicID, now, args)
	}

	if a.audit != nil {
		recErr := a.audit.Record(ctx, audit.Event{
			EventType: audit.EventAgentToolCalled,
			ClinicID:  clinicID,
			Kind:      call.Tool,
			Success:   err == nil,
			Details:   call.Arguments,
			Tags:      []string{"agent"},
		})
		if recErr != nil {
			a.logger.Warn("agent: audit record failed", "clinic_id", clinicID, "error", recErr)
		}
	}
	if err != nil {
		a.logger.Info("agent: tool failed", "clinic_id", clinicID, "tool", call.Tool, "error", err)
		return map[string]string{"error": err.Error()}
	}
	return result
}

// encodeResult renders a tool result as a quoted JSON string. A result that
// cannot be encoded is replaced by an {"error": ...} object.
func (a *Agent) encodeResult(clinicID, tool string, result any) string {
	encoded, err := json.Marshal(result)
	if err != nil {
		a.logger.Warn("agent: tool result not encodable", "clinic_id", clinicID, "tool", tool, "error", err)
		encoded, _ = json.Marshal(map[string]string{"error": "araç sonucu okunamadı: " + err.Error()})
	}
	quoted, _ := json.Marshal(string(encoded))
	return string(quoted)
}

func (a *Agent) systemPrompt(now time.Time) string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "Sen bir kliniğin yönetim asistanısın. Bugün %s.\n", calendar.FormatDate(now))
	b.WriteString("Soruyu yanıtlamak için veri gerekiyorsa SADECE şu biçimde tek bir JSON nesnesi döndür: ")
	b.WriteString(`{"tool":"<araç adı>","arguments":{...}}`)
	b.WriteString("\nAraç sonucu sana TOOL_RESULT satırı olarak gelecek. Yeterli bilgin olduğunda kısa, Türkçe, düz metin bir yanıt ver. Tutarlar kuruş cinsindendir, yanıtta TL olarak yaz.\n\nAraçlar:\n")
	for _, name := range names {
		t := a.tools[name]
		fmt.Fprintf(&b, "- %s: %s Argümanlar: %s\n", name, t.description, t.schema)
	}
	return b.String()
}

func (a *Agent) decode(args json.RawMessage, dst any) error {
	if err := json.Unmarshal(args, dst); err != nil {
		return fmt.Errorf("argümanlar okunamadı: %w", err)
	}
	if err := a.validate.Struct(dst); err != nil {
		return fmt.Errorf("eksik argüman: %w", err)
	}
	return nil
}

type dateArgs struct {
	Date string `json:"date" validate:"required"`
}

func (a *Agent) resolveDay(args json.RawMessage, now time.Time) (time.Time, error) {
	var in dateArgs
	if err := a.decode(args, &in); err != nil {
		return time.Time{}, err
	}
	day, ok := calendar.ResolveDate(in.Date, now)
	if !ok {
		return time.Time{}, fmt.Errorf("tarih anlaşılamadı: %s", in.Date)
	}
	return day, nil
}

func (a *Agent) listAppointments(ctx context.Context, clinicID string, now time.Time, args json.RawMessage) (any, error) {
	day, err := a.resolveDay(args, now)
	if err != nil {
		return nil, err
	}
	list, err := a.calendar.Day(ctx, clinicID, day)
	if err != nil {
		return nil, err
	}
	type row struct {
		Patient   string `json:"patient"`
		Start     string `json:"start"`
		End       string `json:"end"`
		Treatment string `json:"treatment"`
		Status    string `json:"status"`
	}
	rows := make([]row, 0, len(list))
	for _, ap := range list {
		rows = append(rows, row{ap.PatientName, ap.Start.String(), ap.End.String(), ap.TreatmentType.Label(), ap.Status.Label()})
	}
	return map[string]any{"date": calendar.FormatDate(day), "appointments": rows}, nil
}

func (a *Agent) availableSlots(ctx context.Context, clinicID string, now time.Time, args json.RawMessage) (any, error) {
	day, err := a.resolveDay(args, now)
	if err != nil {
		return nil, err
	}
	slots, err := a.calendar.Slots(ctx, clinicID, day)
	if err != nil {
		return nil, err
	}
	free := appointments.AvailableSlots(slots)
	starts := make([]string, 0, len(free))
	for _, s := range free {
		starts = append(starts, s.Start.String())
	}
	return map[string]any{"date": calendar.FormatDate(day), "free": starts, "total_slots": len(slots)}, nil
}

func (a *Agent) cashPosition(ctx context.Context, clinicID string, _ time.Time, _ json.RawMessage) (any, error) {
	t, err := a.ledger.CashPosition(ctx, clinicID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"income":  int64(t.Income),
		"expense": int64(t.Expense),
		"balance": int64(t.Net()),
		"display": t.Net().String(),
	}, nil
}

type nameArgs struct {
	Name string `json:"name" validate:"required"`
}

func (a *Agent) findPatient(ctx context.Context, clinicID string, _ time.Time, args json.RawMessage) (any, error) {
	var in nameArgs
	if err := a.decode(args, &in); err != nil {
		return nil, err
	}
	matches, err := a.patients.SearchByName(ctx, clinicID, in.Name, 5)
	if err != nil {
		return nil, err
	}
	type row struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Phone string `json:"phone,omitempty"`
	}
	rows := make([]row, 0, len(matches))
	for _, p := range matches {
		rows = append(rows, row{p.ID, p.Name, p.Phone})
	}
	return map[string]any{"patients": rows}, nil
}

type periodArgs struct {
	Period string `json:"period"`
}

func (a *Agent) periodSummary(ctx context.Context, clinicID string, now time.Time, args json.RawMessage) (any, error) {
	var in periodArgs
	if err := a.decode(args, &in); err != nil {
		return nil, err
	}
	p := calendar.ResolvePeriod(in.Period, now)
	s, err := a.ledger.Summarize(ctx, clinicID, p, false)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"period":        p.Label,
		"income":        int64(s.Totals.Income),
		"income_count":  s.Totals.IncomeCount,
		"expense":       int64(s.Totals.Expense),
		"expense_count": s.Totals.ExpenseCount,
		"net":           int64(s.Net),
	}, nil
}

type expenseArgs struct {
	Description string `json:"description" validate:"required,max=200"`
	Amount      int64  `json:"amount" validate:"gt=0"`
	Category    string `json:"category"`
}

func (a *Agent) recordExpense(ctx context.Context, clinicID string, now time.Time, args json.RawMessage) (any, error) {
	var in expenseArgs
	if err := a.decode(args, &in); err != nil {
		return nil, err
	}
	category, err := catalog.ParseExpenseCategory(in.Category)
	if err != nil {
		category = catalog.ExpenseDiger
	}
	e := &finance.Expense{
		ClinicID:    clinicID,
		Description: strings.TrimSpace(in.Description),
		Amount:      money.Amount(in.Amount),
		Category:    category,
		Date:        now,
	}
	if err := a.ledger.RecordExpense(ctx, e); err != nil {
		return nil, err
	}
	return map[string]any{"id": e.ID, "recorded": e.Amount.String(), "category": e.Category.Label()}, nil
}
