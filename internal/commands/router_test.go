package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erdincayar/klinik-asistan-sub000/internal/appointments"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/internal/patients"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

var (
	loc = calendar.Location("")
	// Wednesday.
	today = time.Date(2026, time.January, 14, 10, 0, 0, 0, loc)
)

type fixture struct {
	router       *Router
	appointments *appointments.MemoryRepository
	finance      *finance.Service
	patients     *patients.MemoryRepository
	observed     map[string]string
}

type recordingObserver map[string]string

func (o recordingObserver) ObserveCommand(command, outcome string) { o[command] = outcome }

func newFixture(t *testing.T) *fixture {
	t.Helper()
	apptRepo := appointments.NewMemoryRepository()
	fin := finance.NewService(finance.NewMemoryRepository(), logging.Discard())
	pats := patients.NewMemoryRepository()
	obs := recordingObserver{}
	r := NewRouter(Deps{
		Appointments: appointments.NewService(apptRepo, nil, logging.Discard()),
		Finance:      fin,
		Patients:     pats,
		Now:          calendar.FixedNow(today),
		Observer:     obs,
		Logger:       logging.Discard(),
	})
	return &fixture{router: r, appointments: apptRepo, finance: fin, patients: pats, observed: obs}
}

func (f *fixture) book(t *testing.T, patientID, name string, day time.Time, start, end string) {
	t.Helper()
	require.NoError(t, f.appointments.CreateIfFree(context.Background(), &appointments.Appointment{
		ClinicID: "c1", PatientID: patientID, PatientName: name,
		Date: calendar.StartOfDay(day), Start: calendar.MustClock(start), End: calendar.MustClock(end),
		TreatmentType: catalog.TreatmentBotox, Status: catalog.StatusScheduled,
	}))
}

func (f *fixture) income(t *testing.T, patientID string, amount money.Amount, day time.Time) {
	t.Helper()
	require.NoError(t, f.finance.RecordTreatment(context.Background(), &finance.Treatment{
		ClinicID: "c1", PatientID: patientID, Category: catalog.TreatmentBotox, Amount: amount, Date: day,
	}))
}

func TestParse(t *testing.T) {
	cases := []struct {
		in, name, args string
		ok             bool
	}{
		{"/gelir ocak", "gelir", "ocak", true},
		{"  /randevu   iptal  Ayşe ", "randevu", "iptal Ayşe", true},
		{"/Hatırlatmalar", "hatirlatmalar", "", true},
		{"/kasa@klinik_bot", "kasa", "", true},
		{"Ayşe botoks 3000", "", "", false},
	}
	for _, tc := range cases {
		name, args, ok := Parse(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		assert.Equal(t, tc.name, name, tc.in)
		assert.Equal(t, tc.args, args, tc.in)
	}
}

func TestRouteNonCommandPassesThrough(t *testing.T) {
	f := newFixture(t)
	res := f.router.Route(context.Background(), "Kira 25000 ödendi", "c1")
	assert.False(t, res.IsCommand)
	assert.Empty(t, res.Text)
}

func TestRouteUnknownCommand(t *testing.T) {
	f := newFixture(t)
	res := f.router.Route(context.Background(), "/uçur", "c1")
	assert.True(t, res.IsCommand)
	assert.False(t, res.Success)
	assert.Contains(t, res.Text, "Bilinmeyen komut: /ucur")
	assert.Equal(t, "unknown", f.observed["unknown"])
}

func TestIncomeForNamedMonth(t *testing.T) {
	f := newFixture(t)
	f.income(t, "p1", 600000, time.Date(2026, time.January, 5, 12, 0, 0, 0, loc))
	f.income(t, "p2", 300000, time.Date(2026, time.January, 9, 12, 0, 0, 0, loc))
	f.income(t, "p2", 100000, time.Date(2026, time.February, 2, 12, 0, 0, 0, loc))

	res := f.router.Route(context.Background(), "/gelir ocak", "c1")

	require.True(t, res.Success)
	assert.Contains(t, res.Text, "Ocak")
	assert.Contains(t, res.Text, "9.000,00 TL")
	assert.Contains(t, res.Text, "2 işlem")
	assert.Equal(t, "ok", f.observed["gelir"])
}

func TestCancelWithSeveralMatchesListsCandidates(t *testing.T) {
	f := newFixture(t)
	f.book(t, "p1", "Ayşe Yılmaz", today, "10:00", "10:30")
	f.book(t, "p2", "Ayşe Demir", today.AddDate(0, 0, 1), "11:00", "11:30")

	res := f.router.Route(context.Background(), "/randevu iptal Ayşe", "c1")

	require.True(t, res.Success)
	assert.Contains(t, res.Text, "Ayşe Yılmaz")
	assert.Contains(t, res.Text, "Ayşe Demir")
	assert.Contains(t, res.Text, "hiçbiri iptal edilmedi")

	list, err := f.appointments.ListRange(context.Background(), "c1", today.AddDate(0, 0, -1), today.AddDate(0, 0, 7))
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, a := range list {
		assert.Equal(t, catalog.StatusScheduled, a.Status)
	}
}

func TestCancelSingleMatch(t *testing.T) {
	f := newFixture(t)
	f.book(t, "p1", "Ayşe Yılmaz", today, "10:00", "10:30")

	res := f.router.Route(context.Background(), "/randevu iptal ayse", "c1")
	assert.Contains(t, res.Text, "Randevu iptal edildi: Ayşe Yılmaz")

	res = f.router.Route(context.Background(), "/randevu", "c1")
	assert.Contains(t, res.Text, "randevu yok")

	res = f.router.Route(context.Background(), "/randevu iptal Zeynep", "c1")
	assert.Contains(t, res.Text, "bulunamadı")
}

func TestAppointmentsForResolvedDay(t *testing.T) {
	f := newFixture(t)
	f.book(t, "p1", "Ayşe Yılmaz", today.AddDate(0, 0, 1), "14:00", "14:30")

	res := f.router.Route(context.Background(), "/randevu yarın", "c1")
	assert.Contains(t, res.Text, "15 Ocak 2026 Perşembe")
	assert.Contains(t, res.Text, "14:00-14:30 Ayşe Yılmaz")

	res = f.router.Route(context.Background(), "/randevu bu hafta", "c1")
	assert.Contains(t, res.Text, "1 randevu")
}

func TestCashPosition(t *testing.T) {
	f := newFixture(t)
	f.income(t, "p1", 1000000, today)
	require.NoError(t, f.finance.RecordExpense(context.Background(), &finance.Expense{
		ClinicID: "c1", Description: "Kira", Amount: 250000, Category: catalog.ExpenseKira, Date: today,
	}))

	res := f.router.Route(context.Background(), "/kasa", "c1")
	assert.Contains(t, res.Text, "Bakiye: 7.500,00 TL")
}

func TestCommissions(t *testing.T) {
	f := newFixture(t)
	emp := &finance.Employee{ClinicID: "c1", Name: "Dr. Selin", CommissionBps: 1250, Active: true}
	require.NoError(t, f.finance.AddEmployee(context.Background(), emp))
	require.NoError(t, f.finance.RecordTreatment(context.Background(), &finance.Treatment{
		ClinicID: "c1", PatientID: "p1", EmployeeID: emp.ID, Category: catalog.TreatmentBotox, Amount: 100000, Date: today,
	}))

	res := f.router.Route(context.Background(), "/prim", "c1")
	assert.Contains(t, res.Text, "Dr. Selin (%12,5)")
	assert.Contains(t, res.Text, "prim 125,00 TL")
}

func TestPatientCard(t *testing.T) {
	f := newFixture(t)
	p := &patients.Patient{ClinicID: "c1", Name: "Ayşe Yılmaz", Phone: "905321112233"}
	require.NoError(t, f.patients.Create(context.Background(), p))
	f.income(t, p.ID, 300000, today)
	f.book(t, p.ID, p.Name, today.AddDate(0, 0, 2), "09:00", "09:30")

	res := f.router.Route(context.Background(), "/hasta ayse", "c1")
	assert.Contains(t, res.Text, "👤 Ayşe Yılmaz")
	assert.Contains(t, res.Text, "3.000,00 TL")
	assert.Contains(t, res.Text, "Yaklaşan randevular")

	res = f.router.Route(context.Background(), "/hastalar", "c1")
	assert.Contains(t, res.Text, "Toplam 1 hasta")
}

func TestHelpAndOptionalDeps(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.router.Route(context.Background(), "/yardim", "c1").Text, "/gelir")
	assert.Equal(t, helpText, f.router.Route(context.Background(), "/help", "c1").Text)
	assert.Contains(t, f.router.Route(context.Background(), "/sor kasada ne var", "c1").Text, "kullanılamıyor")
	assert.Contains(t, f.router.Route(context.Background(), "/hatirlatmalar", "c1").Text, "etkin değil")
	assert.Equal(t, "Kullanım: /hatirlatma gonder", f.router.Route(context.Background(), "/hatirlatma", "c1").Text)
}

func TestDailySummary(t *testing.T) {
	f := newFixture(t)
	f.book(t, "p1", "Ayşe Yılmaz", today, "10:00", "10:30")
	f.income(t, "p1", 300000, today)

	text, err := f.router.DailySummary(context.Background(), "c1")
	require.NoError(t, err)
	assert.Contains(t, text, "14 Ocak 2026 Çarşamba")
	assert.Contains(t, text, "Randevu: 1")
	assert.Contains(t, text, "Gelir: 3.000,00 TL")
}

type panickingFinance struct{ Finance }

func (panickingFinance) CashPosition(context.Context, string) (finance.Totals, error) {
	panic("boom")
}

type failingFinance struct{ Finance }

func (failingFinance) Summarize(context.Context, string, calendar.Period, bool) (*finance.Summary, error) {
	return nil, errors.New("db down")
}

func TestRouteRecoversAndDegrades(t *testing.T) {
	f := newFixture(t)
	f.router.deps.Finance = panickingFinance{}
	res := f.router.Route(context.Background(), "/kasa", "c1")
	assert.True(t, res.IsCommand)
	assert.False(t, res.Success)
	assert.Equal(t, genericFailure, res.Text)
	assert.Equal(t, "panic", f.observed["kasa"])

	f.router.deps.Finance = failingFinance{}
	res = f.router.Route(context.Background(), "/gider", "c1")
	assert.False(t, res.Success)
	assert.Contains(t, res.Text, "/gider komutu çalıştırılamadı")
}
