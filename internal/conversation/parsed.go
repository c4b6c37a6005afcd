package conversation

import (
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
)

// Kind tags a classified message.
type Kind string

const (
	KindAppointment Kind = "APPOINTMENT"
	KindIncome      Kind = "INCOME"
	KindExpense     Kind = "EXPENSE"
	KindStockIn     Kind = "STOCK_IN"
	KindStockOut    Kind = "STOCK_OUT"
	KindAmbiguous   Kind = "AMBIGUOUS"
	KindError       Kind = "ERROR"
)

// Parsed is the closed set of shapes a free-text message classifies into.
// Only the types in this file implement it.
type Parsed interface {
	Kind() Kind
	parsed()
}

// AppointmentRequest asks to book a patient on a day and start time.
type AppointmentRequest struct {
	PatientName   string                    `json:"patient_name"`
	Date          time.Time                 `json:"date"`
	Time          calendar.Clock            `json:"time"`
	TreatmentType catalog.TreatmentCategory `json:"treatment_type"`
	Notes         string                    `json:"notes,omitempty"`
}

// IncomeRecord is a paid treatment.
type IncomeRecord struct {
	PatientName   string                    `json:"patient_name"`
	TreatmentType catalog.TreatmentCategory `json:"treatment_type"`
	TreatmentName string                    `json:"treatment_name,omitempty"`
	Amount        money.Amount              `json:"amount"`
	Notes         string                    `json:"notes,omitempty"`
}

// ExpenseRecord is money paid out.
type ExpenseRecord struct {
	Description string                  `json:"description"`
	Amount      money.Amount            `json:"amount"`
	Category    catalog.ExpenseCategory `json:"category"`
}

// StockMove is a stock IN or OUT by product name.
type StockMove struct {
	Direction   catalog.MovementType `json:"direction"`
	ProductName string               `json:"product_name"`
	Quantity    int                  `json:"quantity"`
	Notes       string               `json:"notes,omitempty"`
}

// Ambiguous carries the oracle's clarification question.
type Ambiguous struct {
	Message string   `json:"message"`
	Options []string `json:"options,omitempty"`
}

// Unparsed is the ERROR variant. OriginalText is the input verbatim.
type Unparsed struct {
	Message      string `json:"message"`
	OriginalText string `json:"original_text"`
}

func (AppointmentRequest) Kind() Kind { return KindAppointment }
func (IncomeRecord) Kind() Kind       { return KindIncome }
func (ExpenseRecord) Kind() Kind      { return KindExpense }
func (Ambiguous) Kind() Kind          { return KindAmbiguous }
func (Unparsed) Kind() Kind           { return KindError }

func (m StockMove) Kind() Kind {
	if m.Direction == catalog.MovementOut {
		return KindStockOut
	}
	return KindStockIn
}

func (AppointmentRequest) parsed() {}
func (IncomeRecord) parsed()       {}
func (ExpenseRecord) parsed()      {}
func (StockMove) parsed()          {}
func (Ambiguous) parsed()          {}
func (Unparsed) parsed()           {}
