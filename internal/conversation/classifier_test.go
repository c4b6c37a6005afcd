package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/llm"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

var (
	loc = calendar.Location("")
	// Wednesday.
	now = time.Date(2026, time.January, 14, 10, 0, 0, 0, loc)
)

func classifierReplying(text string) *Classifier {
	return NewClassifier(llm.StaticClient{Text: text}, logging.Discard())
}

func TestClassifyExpenseWithoutPatient(t *testing.T) {
	c := classifierReplying("```json\n{\"type\":\"EXPENSE\",\"description\":\"Kira\",\"amount\":2500000,\"category\":\"KIRA\"}\n```")

	got := c.Classify(context.Background(), "Kira 25000 odendi", now)

	require.Equal(t, KindExpense, got.Kind())
	exp := got.(ExpenseRecord)
	assert.Contains(t, exp.Description, "Kira")
	assert.Equal(t, money.Amount(2500000), exp.Amount)
	assert.Equal(t, catalog.ExpenseKira, exp.Category)
}

func TestClassifyAppointmentResolvesDateAndTime(t *testing.T) {
	c := classifierReplying(`Tabii: {"type":"APPOINTMENT","patientName":" Ayşe Yılmaz ","date":"yarın","time":"14.30","treatmentType":"botoks","notes":""}`)

	got := c.Classify(context.Background(), "Ayşe yarın 14.30 botoks", now)

	require.Equal(t, KindAppointment, got.Kind())
	appt := got.(AppointmentRequest)
	assert.Equal(t, "Ayşe Yılmaz", appt.PatientName)
	assert.Equal(t, "2026-01-15", calendar.ISODate(appt.Date))
	assert.Equal(t, calendar.MustClock("14:30"), appt.Time)
	assert.Equal(t, catalog.TreatmentBotox, appt.TreatmentType)
}

func TestClassifyIncomeAndStock(t *testing.T) {
	income := classifierReplying(`{"type":"INCOME","patientName":"Mehmet","treatmentType":"DOLGU","treatmentName":"Dudak dolgusu","amount":"300000"}`).
		Classify(context.Background(), "Mehmet dolgu 3000", now)
	require.Equal(t, KindIncome, income.Kind())
	assert.Equal(t, money.Amount(300000), income.(IncomeRecord).Amount)

	out := classifierReplying(`{"type":"STOCK_OUT","productName":"Botoks 100U","quantity":2}`).
		Classify(context.Background(), "2 botoks kullanıldı", now)
	require.Equal(t, KindStockOut, out.Kind())
	assert.Equal(t, catalog.MovementOut, out.(StockMove).Direction)
	assert.Equal(t, 2, out.(StockMove).Quantity)
}

func TestClassifyUnknownExpenseCategoryFallsBackToOther(t *testing.T) {
	got := classifierReplying(`{"type":"EXPENSE","description":"Kahve","amount":15000,"category":"MUTFAK"}`).
		Classify(context.Background(), "kahve 150", now)
	assert.Equal(t, catalog.ExpenseDiger, got.(ExpenseRecord).Category)
}

func TestClassifyGarbledRepliesYieldError(t *testing.T) {
	replies := []string{
		"",
		"Üzgünüm, anlayamadım.",
		`{"type":"EXPENSE","description":"Kira","amount":25`,
		`{"type":"EXPENSE","description":"Kira"}`,
		`{"type":"EXPENSE","description":"Kira","amount":2500000.5}`,
		`{"type":"INCOME","patientName":"","amount":1000}`,
		`{"type":"APPOINTMENT","patientName":"Ayşe","date":"bir ara","time":"14:00"}`,
		`{"type":"REFUND","amount":100}`,
		`["EXPENSE"]`,
	}
	for _, reply := range replies {
		got := classifierReplying(reply).Classify(context.Background(), "bozuk mesaj", now)
		require.Equal(t, KindError, got.Kind(), reply)
		assert.Equal(t, "bozuk mesaj", got.(Unparsed).OriginalText, reply)
	}
}

func TestClassifyOracleFailureYieldsError(t *testing.T) {
	c := NewClassifier(llm.StaticClient{Err: errors.New("timeout")}, logging.Discard())
	got := c.Classify(context.Background(), "Kira 25000 odendi", now)
	require.Equal(t, KindError, got.Kind())
	assert.Equal(t, "Kira 25000 odendi", got.(Unparsed).OriginalText)
	assert.Equal(t, msgOracleUnavailable, got.(Unparsed).Message)
}

func TestClassifyPassesOracleAmbiguityThrough(t *testing.T) {
	got := classifierReplying(`{"type":"AMBIGUOUS","message":"Gelir mi gider mi?","options":["Gelir"," ","Gider"]}`).
		Classify(context.Background(), "3000 ödeme", now)
	require.Equal(t, KindAmbiguous, got.Kind())
	assert.Equal(t, []string{"Gelir", "Gider"}, got.(Ambiguous).Options)
}

type countingClassifications map[string]int

func (c countingClassifications) ObserveClassification(kind string) { c[kind]++ }

func TestClassifyPromptCarriesDateAndRules(t *testing.T) {
	var seen llm.Request
	oracle := llm.ClientFunc(func(_ context.Context, req llm.Request) (llm.Response, error) {
		seen = req
		return llm.Response{Text: `{"type":"ERROR","message":"boş"}`}, nil
	})
	counts := countingClassifications{}
	c := NewClassifier(oracle, logging.Discard(), WithClassificationObserver(counts), WithModel("test-model"))

	c.Classify(context.Background(), "merhaba", now)

	require.Len(t, seen.System, 1)
	prompt := seen.System[0]
	assert.Contains(t, prompt, "2026-01-14 (Çarşamba)")
	assert.Contains(t, prompt, `"yarın" = 2026-01-15`)
	assert.Contains(t, prompt, "100 ile çarp")
	for _, c := range catalog.ExpenseCategories {
		assert.True(t, strings.Contains(prompt, string(c)), c)
	}
	assert.Equal(t, "test-model", seen.Model)
	assert.Equal(t, "merhaba", seen.Messages[0].Content)
	assert.Equal(t, 1, counts["ERROR"])
}
