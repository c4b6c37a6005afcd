package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/appointments"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
	"github.com/erdincayar/klinik-asistan-sub000/internal/inventory"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

const msgActionFailed = "⚠️ İşlem kaydedilemedi. Lütfen tekrar deneyin."

// PatientResolver finds or registers a patient by name.
type PatientResolver interface {
	appointments.PatientDirectory
	FindOrCreate(ctx context.Context, clinicID, name, phone string) (*patients.Patient, bool, error)
}

// AppointmentBooker books conflict-checked appointments.
type AppointmentBooker interface {
	BookForName(ctx context.Context, a *appointments.Appointment, dir appointments.PatientDirectory, name, phone string) (*patients.Patient, bool, error)
	Slots(ctx context.Context, clinicID string, day time.Time) ([]appointments.Slot, error)
}

// LedgerWriter records income and expenses.
type LedgerWriter interface {
	RecordTreatment(ctx context.Context, t *finance.Treatment) error
	RecordExpense(ctx context.Context, e *finance.Expense) error
}

// StockMover applies stock movements by product name.
type StockMover interface {
	MoveByName(ctx context.Context, clinicID, query string, kind catalog.MovementType, quantity int, note string) (*inventory.StockMovement, *inventory.Product, error)
}

// DurationFunc returns a clinic's default appointment length in minutes.
type DurationFunc func(ctx context.Context, clinicID string) int

// Outcome is the result of dispatching one classified message.
type Outcome struct {
	Kind         Kind   `json:"kind"`
	Success      bool   `json:"success"`
	Text         string `json:"text"`
	RecordID     string `json:"record_id,omitempty"`
	PatientIsNew bool   `json:"patient_is_new,omitempty"`
}

// Dispatcher performs the persistence action for a classified message and
// builds the Turkish confirmation.
type Dispatcher struct {
	patients     PatientResolver
	appointments AppointmentBooker
	ledger       LedgerWriter
	stock        StockMover
	durations    DurationFunc
	now          calendar.NowFunc
	logger       *logging.Logger
}

// DispatcherDeps wires a Dispatcher. Stock and Durations are optional.
type DispatcherDeps struct {
	Patients     PatientResolver
	Appointments AppointmentBooker
	Ledger       LedgerWriter
	Stock        StockMover
	Durations    DurationFunc
	Now          calendar.NowFunc
	Logger       *logging.Logger
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if deps.Now == nil {
		deps.Now = calendar.NowIn(calendar.Location(""))
	}
	return &Dispatcher{
		patients:     deps.Patients,
		appointments: deps.Appointments,
		ledger:       deps.Ledger,
		stock:        deps.Stock,
		durations:    deps.Durations,
		now:          deps.Now,
		logger:       deps.Logger,
	}
}

// Dispatch never fails: persistence errors are logged and turned into a
// user-facing message with Success=false.
func (d *Dispatcher) Dispatch(ctx context.Context, clinicID string, msg Parsed) (out Outcome) {
	if msg == nil {
		return Outcome{Kind: KindError, Text: msgNotUnderstood}
	}
	out.Kind = msg.Kind()
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error("dispatcher panicked", "clinic_id", clinicID, "kind", out.Kind, "panic", fmt.Sprint(rec))
			out = Outcome{Kind: msg.Kind(), Text: msgActionFailed}
		}
	}()

	var err error
	switch m := msg.(type) {
	case AppointmentRequest:
		out, err = d.appointment(ctx, clinicID, m)
	case IncomeRecord:
		out, err = d.income(ctx, clinicID, m)
	case ExpenseRecord:
		out, err = d.expense(ctx, clinicID, m)
	case StockMove:
		out, err = d.stockMove(ctx, clinicID, m)
	case Ambiguous:
		out = Outcome{Text: ambiguousText(m)}
	case Unparsed:
		out = Outcome{Text: m.Message}
	default:
		out = Outcome{Text: msgNotUnderstood}
	}
	out.Kind = msg.Kind()
	if err != nil {
		d.logger.Error("dispatch failed", "clinic_id", clinicID, "kind", out.Kind, "error", err)
		return Outcome{Kind: msg.Kind(), Text: msgActionFailed}
	}
	return out
}

func (d *Dispatcher) appointment(ctx context.Context, clinicID string, m AppointmentRequest) (Outcome, error) {
	minutes := appointments.DefaultDurationMinutes
	if d.durations != nil {
		if n := d.durations(ctx, clinicID); n > 0 {
			minutes = n
		}
	}
	end, err := m.Time.AddWithinDay(minutes)
	if err != nil {
		return Outcome{Text: fmt.Sprintf("⚠️ %s başlangıçlı %d dakikalık randevu gece yarısını geçiyor. Lütfen daha erken bir saat seçin.", m.Time, minutes)}, nil
	}
	a := &appointments.Appointment{
		ClinicID:      clinicID,
		Date:          m.Date,
		Start:         m.Time,
		End:           end,
		TreatmentType: m.TreatmentType,
		Status:        catalog.StatusScheduled,
		Notes:         m.Notes,
	}
	patient, isNew, err := d.appointments.BookForName(ctx, a, d.patients, m.PatientName, "")
	var conflict *appointments.ConflictError
	if errors.As(err, &conflict) {
		return Outcome{Text: d.conflictText(ctx, clinicID, a, conflict)}, nil
	}
	var closed *appointments.OutsideHoursError
	if errors.As(err, &closed) {
		return Outcome{Text: d.outsideHoursText(ctx, clinicID, a, closed)}, nil
	}
	if err != nil {
		return Outcome{}, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "✅ Randevu oluşturuldu\n👤 %s\n📅 %s\n🕐 %s-%s\n💉 %s",
		patient.Name, calendar.FormatDate(a.Date), a.Start, a.End, a.TreatmentType.Label())
	if a.Notes != "" {
		fmt.Fprintf(&b, "\n📝 %s", a.Notes)
	}
	b.WriteString(patientNotice(m.PatientName, patient, isNew))
	return Outcome{Success: true, Text: b.String(), RecordID: a.ID, PatientIsNew: isNew}, nil
}

// conflictText names the clashing booking and offers the day's free slots.
func (d *Dispatcher) conflictText(ctx context.Context, clinicID string, a *appointments.Appointment, c *appointments.ConflictError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %s %s-%s saati dolu (%s).",
		calendar.FormatDate(a.Date), c.Existing.Start, c.Existing.End, c.Existing.PatientName)
	b.WriteString(d.freeSlotsText(ctx, clinicID, a.Date))
	return b.String()
}

// outsideHoursText reports the day's working hours, or that the clinic is
// closed, and offers the free slots when there are any.
func (d *Dispatcher) outsideHoursText(ctx context.Context, clinicID string, a *appointments.Appointment, e *appointments.OutsideHoursError) string {
	if e.Schedule == nil {
		return fmt.Sprintf("⚠️ %s klinik kapalı.", calendar.FormatDate(a.Date))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %s çalışma saatleri %s-%s, %s-%s bu aralığın dışında.",
		calendar.FormatDate(a.Date), e.Schedule.Start, e.Schedule.End, a.Start, a.End)
	b.WriteString(d.freeSlotsText(ctx, clinicID, a.Date))
	return b.String()
}

func (d *Dispatcher) freeSlotsText(ctx context.Context, clinicID string, day time.Time) string {
	slots, err := d.appointments.Slots(ctx, clinicID, day)
	if err != nil {
		d.logger.Warn("slot lookup failed", "clinic_id", clinicID, "error", err)
		return ""
	}
	free := appointments.AvailableSlots(slots)
	if len(free) == 0 {
		return "\nO gün için boş saat yok."
	}
	starts := make([]string, 0, 6)
	for i, s := range free {
		if i == 6 {
			break
		}
		starts = append(starts, s.Start.String())
	}
	return "\nBoş saatler: " + strings.Join(starts, ", ")
}

func (d *Dispatcher) income(ctx context.Context, clinicID string, m IncomeRecord) (Outcome, error) {
	patient, isNew, err := d.patients.FindOrCreate(ctx, clinicID, m.PatientName, "")
	if err != nil {
		return Outcome{}, err
	}
	t := &finance.Treatment{
		ClinicID:    clinicID,
		PatientID:   patient.ID,
		PatientName: patient.Name,
		Name:        m.TreatmentName,
		Category:    m.TreatmentType,
		Amount:      m.Amount,
		Date:        d.now(ctx, clinicID),
		Description: m.Notes,
	}
	if err := d.ledger.RecordTreatment(ctx, t); err != nil {
		return Outcome{}, err
	}

	text := fmt.Sprintf("✅ Gelir kaydedildi\n👤 %s\n💉 %s\n💰 %s", patient.Name, t.Name, t.Amount)
	text += patientNotice(m.PatientName, patient, isNew)
	return Outcome{Success: true, Text: text, RecordID: t.ID, PatientIsNew: isNew}, nil
}

func (d *Dispatcher) expense(ctx context.Context, clinicID string, m ExpenseRecord) (Outcome, error) {
	e := &finance.Expense{
		ClinicID:    clinicID,
		Description: m.Description,
		Amount:      m.Amount,
		Category:    m.Category,
		Date:        d.now(ctx, clinicID),
	}
	if err := d.ledger.RecordExpense(ctx, e); err != nil {
		return Outcome{}, err
	}
	text := fmt.Sprintf("✅ Gider kaydedildi\n📝 %s (%s)\n💸 %s", e.Description, e.Category.Label(), e.Amount)
	return Outcome{Success: true, Text: text, RecordID: e.ID}, nil
}

func (d *Dispatcher) stockMove(ctx context.Context, clinicID string, m StockMove) (Outcome, error) {
	if d.stock == nil {
		return Outcome{Text: "📦 Stok modülü etkin değil."}, nil
	}
	mv, product, err := d.stock.MoveByName(ctx, clinicID, m.ProductName, m.Direction, m.Quantity, m.Notes)

	var short *inventory.InsufficientStockError
	switch {
	case errors.As(err, &short):
		return Outcome{Text: fmt.Sprintf("⚠️ Yetersiz stok: %s için mevcut %d %s, istenen %d.",
			short.Product.Name, short.Product.CurrentStock, short.Product.Unit, short.Requested)}, nil
	case errors.Is(err, inventory.ErrProductNotFound):
		return Outcome{Text: fmt.Sprintf("🔍 \"%s\" adında ürün bulunamadı.", m.ProductName)}, nil
	case err != nil:
		return Outcome{}, err
	}

	sign, label := "+", "girişi"
	if m.Direction == catalog.MovementOut {
		sign, label = "-", "çıkışı"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📦 Stok %s: %s %s%d %s\nGüncel stok: %d %s",
		label, product.Name, sign, mv.Quantity, product.Unit, product.CurrentStock, product.Unit)
	if product.Low() {
		fmt.Fprintf(&b, "\n⚠️ Minimum seviyede veya altında (minimum %d %s).", product.MinStock, product.Unit)
	}
	return Outcome{Success: true, Text: b.String(), RecordID: mv.ID}, nil
}

func ambiguousText(m Ambiguous) string {
	if len(m.Options) == 0 {
		return "🤔 " + m.Message
	}
	var b strings.Builder
	b.WriteString("🤔 " + m.Message)
	for i, o := range m.Options {
		fmt.Fprintf(&b, "\n%d. %s", i+1, o)
	}
	return b.String()
}

// patientNotice tells the operator which record was used: a new one, or an
// existing patient whose name differs from what was written.
func patientNotice(requested string, p *patients.Patient, isNew bool) string {
	if isNew {
		return "\n🆕 Yeni hasta kaydı oluşturuldu."
	}
	if !strings.EqualFold(strings.TrimSpace(requested), p.Name) {
		return fmt.Sprintf("\nℹ️ Kayıtlı hasta ile eşleştirildi: %s", p.Name)
	}
	return ""
}
