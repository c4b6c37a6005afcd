package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erdincayar/klinik-asistan-sub000/internal/appointments"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/money"
	"github.com/erdincayar/klinik-asistan-sub000/internal/reminders"
	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

const helpText = `📖 Komutlar
/randevu - bugünkü randevular
/randevu yarın | pazartesi | 20.01 - o günün randevuları
/randevu bu hafta - haftalık özet
/randevu iptal <isim> - randevu iptali
/gelir [dönem] - gelir toplamı (ör. /gelir ocak)
/gider [dönem] - gider toplamı
/rapor [detay] [dönem] - kâr/zarar raporu
/kasa - kasa durumu
/hasta <isim> - hasta bilgisi
/hastalar - son hastalar
/hatirlatmalar - bugün hatırlatılacak hastalar
/hatirlatma gonder - hatırlatmaları gönder
/top servis|hasta [dönem] - en çok gelir getirenler
/prim [dönem] - personel primleri
/ozet - günlük özet
/sor <soru> - asistana serbest soru

Dönem örnekleri: bugün, bu hafta, geçen hafta, bu ay, geçen ay, ocak, bu yıl`

func (r *Router) help(context.Context, request) (string, error) {
	return helpText, nil
}

func (r *Router) appointments(ctx context.Context, req request) (string, error) {
	args := strings.TrimSpace(req.args)
	folded := textnorm.Fold(args)

	switch {
	case folded == "bu hafta" || folded == "hafta":
		return r.weekAppointments(ctx, req)
	case folded == "iptal" || strings.HasPrefix(folded, "iptal "):
		name := strings.TrimSpace(args[len(strings.Fields(args)[0]):])
		return r.cancelAppointment(ctx, req, name)
	}

	day, ok := calendar.ResolveDate(args, req.now)
	if !ok {
		day = calendar.StartOfDay(req.now)
	}
	list, err := r.deps.Appointments.Day(ctx, req.clinicID, day)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return fmt.Sprintf("📅 %s için randevu yok.", calendar.FormatDate(day)), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 %s randevuları (%d):", calendar.FormatDate(day), len(list))
	for i, a := range list {
		fmt.Fprintf(&b, "\n%d. %s", i+1, appointmentLine(a))
	}
	return b.String(), nil
}

func (r *Router) weekAppointments(ctx context.Context, req request) (string, error) {
	week := calendar.WeekRange(req.now)
	list, err := r.deps.Appointments.Range(ctx, req.clinicID, week)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📅 Bu hafta (%s): %d randevu", week.Label, len(list))
	if len(list) == 0 {
		return b.String(), nil
	}
	byDay := map[string][]appointments.Appointment{}
	for _, a := range list {
		byDay[a.DayKey()] = append(byDay[a.DayKey()], a)
	}
	for d := week.Start; d.Before(week.End); d = d.AddDate(0, 0, 1) {
		day := byDay[calendar.ISODate(d)]
		if len(day) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n\n%s %s: %d randevu", calendar.WeekdayName(d.Weekday()), calendar.ShortDate(d), len(day))
		for _, a := range day {
			fmt.Fprintf(&b, "\n  %s", appointmentLine(a))
		}
	}
	return b.String(), nil
}

func (r *Router) cancelAppointment(ctx context.Context, req request, name string) (string, error) {
	if name == "" {
		return "Kullanım: /randevu iptal <hasta adı>", nil
	}
	outcome, err := r.deps.Appointments.CancelByPatientName(ctx, req.clinicID, name)
	if errors.Is(err, appointments.ErrNotFound) {
		return fmt.Sprintf("🔍 \"%s\" adına aktif randevu bulunamadı.", name), nil
	}
	if err != nil {
		return "", err
	}
	if a := outcome.Cancelled; a != nil {
		return fmt.Sprintf("❌ Randevu iptal edildi: %s, %s %s-%s (%s)",
			a.PatientName, calendar.FormatDate(a.Date), a.Start, a.End, a.TreatmentType.Label()), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ \"%s\" için %d randevu bulundu, hiçbiri iptal edilmedi. Lütfen tam adı yazın:", name, len(outcome.Candidates))
	for i, a := range outcome.Candidates {
		fmt.Fprintf(&b, "\n%d. %s - %s %s-%s %s",
			i+1, a.PatientName, calendar.ShortDate(a.Date), a.Start, a.End, a.TreatmentType.Label())
	}
	return b.String(), nil
}

func (r *Router) income(ctx context.Context, req request) (string, error) {
	p := calendar.ResolvePeriod(req.args, req.now)
	s, err := r.deps.Finance.Summarize(ctx, req.clinicID, p, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("💰 %s gelir: %s (%d işlem)", p.Label, s.Totals.Income, s.Totals.IncomeCount), nil
}

func (r *Router) expense(ctx context.Context, req request) (string, error) {
	p := calendar.ResolvePeriod(req.args, req.now)
	s, err := r.deps.Finance.Summarize(ctx, req.clinicID, p, false)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("💸 %s gider: %s (%d kayıt)", p.Label, s.Totals.Expense, s.Totals.ExpenseCount), nil
}

func (r *Router) report(ctx context.Context, req request) (string, error) {
	args := strings.TrimSpace(req.args)
	detailed := false
	if fields := strings.Fields(args); len(fields) > 0 && textnorm.Fold(fields[0]) == "detay" {
		detailed = true
		args = strings.Join(fields[1:], " ")
	}
	p := calendar.ResolvePeriod(args, req.now)
	s, err := r.deps.Finance.Summarize(ctx, req.clinicID, p, detailed)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 %s raporu\nGelir: %s (%d işlem)\nGider: %s (%d kayıt)\nNet: %s",
		p.Label, s.Totals.Income, s.Totals.IncomeCount, s.Totals.Expense, s.Totals.ExpenseCount, s.Net)
	if !detailed {
		return b.String(), nil
	}
	if len(s.ByCategory) > 0 {
		b.WriteString("\n\nGelir dağılımı:")
		for _, c := range s.ByCategory {
			fmt.Fprintf(&b, "\n• %s: %s (%d)", c.Label, c.Total, c.Count)
		}
	}
	if len(s.Expenses) > 0 {
		b.WriteString("\n\nGider dağılımı:")
		for _, c := range s.Expenses {
			fmt.Fprintf(&b, "\n• %s: %s (%d)", c.Label, c.Total, c.Count)
		}
	}
	if days := p.Days(); days > 0 && s.Totals.IncomeCount > 0 {
		fmt.Fprintf(&b, "\n\nGünlük ortalama gelir: %s", money.Amount(int64(s.Totals.Income)/int64(days)))
	}
	return b.String(), nil
}

func (r *Router) cash(ctx context.Context, req request) (string, error) {
	t, err := r.deps.Finance.CashPosition(ctx, req.clinicID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("🏦 Kasa durumu\nToplam gelir: %s\nToplam gider: %s\nBakiye: %s",
		t.Income, t.Expense, t.Net()), nil
}

func (r *Router) patient(ctx context.Context, req request) (string, error) {
	name := strings.TrimSpace(req.args)
	if name == "" {
		return "Kullanım: /hasta <isim>", nil
	}
	matches, err := r.deps.Patients.SearchByName(ctx, req.clinicID, name, 5)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return fmt.Sprintf("🔍 \"%s\" adında hasta bulunamadı.", name), nil
	}
	p := matches[0]

	var b strings.Builder
	fmt.Fprintf(&b, "👤 %s", p.Name)
	if p.Phone != "" {
		fmt.Fprintf(&b, "\nTelefon: %s", p.Phone)
	}
	if p.Email != "" {
		fmt.Fprintf(&b, "\nE-posta: %s", p.Email)
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "\nNot: %s", p.Notes)
	}
	fmt.Fprintf(&b, "\nKayıt: %s", calendar.ShortDate(p.CreatedAt.In(req.now.Location())))

	history, err := r.deps.Finance.PatientHistory(ctx, req.clinicID, p.ID, 5)
	if err != nil {
		return "", err
	}
	if len(history) == 0 {
		b.WriteString("\n\nİşlem geçmişi yok.")
	} else {
		b.WriteString("\n\nSon işlemler:")
		for _, t := range history {
			fmt.Fprintf(&b, "\n• %s %s - %s", calendar.ShortDate(t.Date.In(req.now.Location())), t.Name, t.Amount)
		}
	}

	upcoming, err := r.deps.Appointments.Upcoming(ctx, req.clinicID, p.ID, calendar.StartOfDay(req.now))
	if err != nil {
		return "", err
	}
	if len(upcoming) > 0 {
		b.WriteString("\n\nYaklaşan randevular:")
		for _, a := range upcoming {
			fmt.Fprintf(&b, "\n• %s %s-%s %s", calendar.FormatDate(a.Date), a.Start, a.End, a.TreatmentType.Label())
		}
	}

	if len(matches) > 1 {
		others := make([]string, 0, len(matches)-1)
		for _, m := range matches[1:] {
			others = append(others, m.Name)
		}
		fmt.Fprintf(&b, "\n\nDiğer eşleşmeler: %s", strings.Join(others, ", "))
	}
	return b.String(), nil
}

func (r *Router) patientList(ctx context.Context, req request) (string, error) {
	total, err := r.deps.Patients.Count(ctx, req.clinicID)
	if err != nil {
		return "", err
	}
	recent, err := r.deps.Patients.ListRecent(ctx, req.clinicID, 10)
	if err != nil {
		return "", err
	}
	if total == 0 {
		return "👥 Henüz kayıtlı hasta yok.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "👥 Toplam %d hasta. Son kayıtlar:", total)
	for i, p := range recent {
		fmt.Fprintf(&b, "\n%d. %s", i+1, p.Name)
		if p.Phone != "" {
			fmt.Fprintf(&b, " (%s)", p.Phone)
		}
	}
	return b.String(), nil
}

func (r *Router) dueReminders(ctx context.Context, req request) (string, error) {
	if r.deps.Reminders == nil {
		return "🔔 Hatırlatma modülü etkin değil.", nil
	}
	due, err := r.deps.Reminders.Due(ctx, req.clinicID)
	if err != nil {
		return "", err
	}
	if len(due) == 0 {
		return "🔔 Bugün hatırlatılacak hasta yok.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 Bugün hatırlatılacak %d hasta:", len(due))
	for i, d := range due {
		fmt.Fprintf(&b, "\n%d. %s - %s (son işlem %s, %d gün)",
			i+1, d.PatientName, d.Category.Label(), calendar.ShortDate(d.LastTreatmentDate.In(req.now.Location())), d.IntervalDays)
	}
	b.WriteString("\n\nGöndermek için: /hatirlatma gonder")
	return b.String(), nil
}

func (r *Router) sendReminders(ctx context.Context, req request) (string, error) {
	if textnorm.Fold(req.args) != "gonder" {
		return "Kullanım: /hatirlatma gonder", nil
	}
	if r.deps.Reminders == nil {
		return "🔔 Hatırlatma modülü etkin değil.", nil
	}
	prefs := reminders.Preferences{}
	if r.deps.Preferences != nil {
		prefs = r.deps.Preferences(ctx, req.clinicID)
	}
	tally, err := r.deps.Reminders.SendAll(ctx, req.clinicID, prefs)
	if err != nil {
		return "", err
	}
	if tally.Total == 0 {
		return "🔔 Gönderilecek hatırlatma yok.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "📨 Hatırlatmalar gönderildi: %d başarılı, %d başarısız.", tally.Sent, tally.Failed)
	for _, f := range tally.Failures {
		fmt.Fprintf(&b, "\n• %s: gönderilemedi", f.PatientName)
	}
	return b.String(), nil
}

func (r *Router) leaderboard(ctx context.Context, req request) (string, error) {
	fields := strings.Fields(req.args)
	if len(fields) == 0 {
		return "Kullanım: /top servis|hasta [dönem]", nil
	}
	p := calendar.ResolvePeriod(strings.Join(fields[1:], " "), req.now)

	switch textnorm.Fold(fields[0]) {
	case "servis", "hizmet", "islem":
		list, err := r.deps.Finance.TopServices(ctx, req.clinicID, p, 5)
		if err != nil {
			return "", err
		}
		return formatRanking(fmt.Sprintf("🏆 En çok gelir getiren işlemler (%s)", p.Label), list), nil
	case "hasta":
		list, err := r.deps.Finance.TopPatients(ctx, req.clinicID, p, 5)
		if err != nil {
			return "", err
		}
		return formatRanking(fmt.Sprintf("🏆 En çok gelir getiren hastalar (%s)", p.Label), list), nil
	default:
		return "Kullanım: /top servis|hasta [dönem]", nil
	}
}

func (r *Router) commissions(ctx context.Context, req request) (string, error) {
	p := calendar.ResolvePeriod(req.args, req.now)
	list, err := r.deps.Finance.Commissions(ctx, req.clinicID, p)
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return fmt.Sprintf("💼 %s için prim hesaplanacak personel yok.", p.Label), nil
	}
	var b strings.Builder
	var total money.Amount
	fmt.Fprintf(&b, "💼 Prim raporu (%s):", p.Label)
	for i, c := range list {
		fmt.Fprintf(&b, "\n%d. %s (%s): %d işlem, ciro %s, prim %s",
			i+1, c.Name, formatBps(c.CommissionBps), c.Treatments, c.Revenue, c.Commission)
		total += c.Commission
	}
	fmt.Fprintf(&b, "\nToplam prim: %s", total)
	return b.String(), nil
}

func (r *Router) dailySummary(ctx context.Context, req request) (string, error) {
	day := calendar.DayRange(req.now)
	list, err := r.deps.Appointments.Day(ctx, req.clinicID, day.Start)
	if err != nil {
		return "", err
	}
	s, err := r.deps.Finance.Summarize(ctx, req.clinicID, day, false)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📋 Günlük özet - %s", day.Label)
	fmt.Fprintf(&b, "\nRandevu: %d", len(list))
	fmt.Fprintf(&b, "\nGelir: %s (%d işlem)", s.Totals.Income, s.Totals.IncomeCount)
	fmt.Fprintf(&b, "\nGider: %s (%d kayıt)", s.Totals.Expense, s.Totals.ExpenseCount)
	fmt.Fprintf(&b, "\nNet: %s", s.Net)
	if r.deps.Reminders != nil {
		due, err := r.deps.Reminders.Due(ctx, req.clinicID)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "\nBekleyen hatırlatma: %d", len(due))
	}
	return b.String(), nil
}

func (r *Router) ask(ctx context.Context, req request) (string, error) {
	question := strings.TrimSpace(req.args)
	if question == "" {
		return "Kullanım: /sor <soru>", nil
	}
	if r.deps.Agent == nil {
		return "🤖 Asistan modu şu an kullanılamıyor.", nil
	}
	return r.deps.Agent.Ask(ctx, req.clinicID, question), nil
}
