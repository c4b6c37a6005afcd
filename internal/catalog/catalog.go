// Package catalog holds the closed enumerations shared across the clinic
// domain. Every enum parses from its wire value and rejects anything else.
package catalog

import (
	"fmt"

	"github.com/erdincayar/klinik-asistan-sub000/internal/apperr"
	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

// TreatmentCategory is the kind of procedure an appointment or treatment covers.
type TreatmentCategory string

const (
	TreatmentBotox     TreatmentCategory = "BOTOX"
	TreatmentDolgu     TreatmentCategory = "DOLGU"
	TreatmentDisTedavi TreatmentCategory = "DIS_TEDAVI"
	TreatmentGenel     TreatmentCategory = "GENEL"
)

// TreatmentCategories lists every category in display order.
var TreatmentCategories = []TreatmentCategory{TreatmentBotox, TreatmentDolgu, TreatmentDisTedavi, TreatmentGenel}

func (c TreatmentCategory) Label() string {
	switch c {
	case TreatmentBotox:
		return "Botoks"
	case TreatmentDolgu:
		return "Dolgu"
	case TreatmentDisTedavi:
		return "Diş Tedavisi"
	case TreatmentGenel:
		return "Genel"
	default:
		return string(c)
	}
}

func (c TreatmentCategory) Valid() bool {
	switch c {
	case TreatmentBotox, TreatmentDolgu, TreatmentDisTedavi, TreatmentGenel:
		return true
	}
	return false
}

// ParseTreatmentCategory accepts the wire value or the Turkish label.
func ParseTreatmentCategory(raw string) (TreatmentCategory, error) {
	switch textnorm.Fold(raw) {
	case "botox", "botoks":
		return TreatmentBotox, nil
	case "dolgu":
		return TreatmentDolgu, nil
	case "dis_tedavi", "dis tedavi", "dis tedavisi", "dis":
		return TreatmentDisTedavi, nil
	case "genel", "":
		return TreatmentGenel, nil
	}
	return "", apperr.Validation(fmt.Sprintf("invalid treatment category %q", raw))
}

// ExpenseCategory groups clinic expenses.
type ExpenseCategory string

const (
	ExpenseMalzeme ExpenseCategory = "MALZEME"
	ExpenseKira    ExpenseCategory = "KIRA"
	ExpenseFatura  ExpenseCategory = "FATURA"
	ExpenseMaas    ExpenseCategory = "MAAS"
	ExpenseDiger   ExpenseCategory = "DIGER"
)

var ExpenseCategories = []ExpenseCategory{ExpenseMalzeme, ExpenseKira, ExpenseFatura, ExpenseMaas, ExpenseDiger}

func (c ExpenseCategory) Label() string {
	switch c {
	case ExpenseMalzeme:
		return "Malzeme"
	case ExpenseKira:
		return "Kira"
	case ExpenseFatura:
		return "Fatura"
	case ExpenseMaas:
		return "Maaş"
	case ExpenseDiger:
		return "Diğer"
	default:
		return string(c)
	}
}

func (c ExpenseCategory) Valid() bool {
	switch c {
	case ExpenseMalzeme, ExpenseKira, ExpenseFatura, ExpenseMaas, ExpenseDiger:
		return true
	}
	return false
}

func ParseExpenseCategory(raw string) (ExpenseCategory, error) {
	switch textnorm.Fold(raw) {
	case "malzeme":
		return ExpenseMalzeme, nil
	case "kira":
		return ExpenseKira, nil
	case "fatura":
		return ExpenseFatura, nil
	case "maas":
		return ExpenseMaas, nil
	case "diger", "":
		return ExpenseDiger, nil
	}
	return "", apperr.Validation(fmt.Sprintf("invalid expense category %q", raw))
}

// AppointmentStatus is the lifecycle state of an appointment.
type AppointmentStatus string

const (
	StatusScheduled AppointmentStatus = "SCHEDULED"
	StatusConfirmed AppointmentStatus = "CONFIRMED"
	StatusCompleted AppointmentStatus = "COMPLETED"
	StatusCancelled AppointmentStatus = "CANCELLED"
	StatusNoShow    AppointmentStatus = "NO_SHOW"
)

func (s AppointmentStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

// Occupies reports whether an appointment in this state blocks its interval.
func (s AppointmentStatus) Occupies() bool {
	return s != StatusCancelled
}

func (s AppointmentStatus) Label() string {
	switch s {
	case StatusScheduled:
		return "Planlandı"
	case StatusConfirmed:
		return "Onaylandı"
	case StatusCompleted:
		return "Tamamlandı"
	case StatusCancelled:
		return "İptal"
	case StatusNoShow:
		return "Gelmedi"
	default:
		return string(s)
	}
}

func ParseAppointmentStatus(raw string) (AppointmentStatus, error) {
	s := AppointmentStatus(upper(textnorm.Fold(raw)))
	if !s.Valid() {
		return "", apperr.Validation(fmt.Sprintf("invalid appointment status %q", raw))
	}
	return s, nil
}

// MovementType is the direction of a stock movement.
type MovementType string

const (
	MovementIn         MovementType = "IN"
	MovementOut        MovementType = "OUT"
	MovementAdjustment MovementType = "ADJUSTMENT"
)

func (m MovementType) Valid() bool {
	switch m {
	case MovementIn, MovementOut, MovementAdjustment:
		return true
	}
	return false
}

func (m MovementType) Label() string {
	switch m {
	case MovementIn:
		return "Giriş"
	case MovementOut:
		return "Çıkış"
	case MovementAdjustment:
		return "Sayım düzeltmesi"
	default:
		return string(m)
	}
}

func ParseMovementType(raw string) (MovementType, error) {
	m := MovementType(upper(textnorm.Fold(raw)))
	if !m.Valid() {
		return "", apperr.Validation(fmt.Sprintf("invalid movement type %q", raw))
	}
	return m, nil
}

// upper maps folded ASCII text back to the upper-case wire form.
func upper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'z' {
			b[i] = c - 'a' + 'A'
		}
	}
	return string(b)
}
