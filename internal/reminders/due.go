package reminders

import (
	"sort"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	"github.com/erdincayar/klinik-asistan-sub000/internal/catalog"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
)

// DueInput is everything FindDuePatients needs. Treatments are grouped by
// category and logs by patient id.
type DueInput struct {
	ClinicID     string
	Rules        []Rule
	Treatments   map[catalog.TreatmentCategory][]finance.Treatment
	RecentLogs   map[string][]Log
	Now          time.Time
	CooldownDays int
}

// FindDuePatients returns one entry per patient per active rule whose most
// recent treatment of the rule's category is at least IntervalDays old.
//
// A patient is skipped when they had a treatment of that category after the
// cutoff, or when a reminder was delivered to them within the cooldown
// window. Only LogSent entries start the cooldown: a patient whose last
// attempts all failed stays due and is retried on the next run.
// Day arithmetic uses Now's location. The result is sorted by patient id,
// then rule id.
func FindDuePatients(in DueInput) []Due {
	cooldown := in.CooldownDays
	if cooldown <= 0 {
		cooldown = DefaultCooldownDays
	}
	loc := in.Now.Location()
	today := calendar.StartOfDay(in.Now)
	cooldownStart := in.Now.AddDate(0, 0, -cooldown)

	var out []Due
	for _, rule := range in.Rules {
		if !rule.Active || rule.ClinicID != in.ClinicID || rule.IntervalDays <= 0 {
			continue
		}
		cutoff := today.AddDate(0, 0, -rule.IntervalDays)

		latest := map[string]finance.Treatment{}
		returned := map[string]bool{}
		for _, t := range in.Treatments[rule.Category] {
			if t.ClinicID != in.ClinicID {
				continue
			}
			day := calendar.StartOfDay(t.Date.In(loc))
			if day.After(cutoff) {
				returned[t.PatientID] = true
				continue
			}
			if prev, ok := latest[t.PatientID]; !ok || t.Date.After(prev.Date) {
				latest[t.PatientID] = t
			}
		}

		for patientID, t := range latest {
			if returned[patientID] || recentlyReminded(in.RecentLogs[patientID], cooldownStart) {
				continue
			}
			out = append(out, Due{
				PatientID:         patientID,
				PatientName:       t.PatientName,
				RuleID:            rule.ID,
				Category:          rule.Category,
				LastTreatmentDate: t.Date,
				IntervalDays:      rule.IntervalDays,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].PatientID != out[j].PatientID {
			return out[i].PatientID < out[j].PatientID
		}
		return out[i].RuleID < out[j].RuleID
	})
	return out
}

// recentlyReminded reports a LogSent entry at or after since. LogFailed
// entries never count.
func recentlyReminded(logs []Log, since time.Time) bool {
	for _, l := range logs {
		if l.Status == LogSent && !l.CreatedAt.Before(since) {
			return true
		}
	}
	return false
}
