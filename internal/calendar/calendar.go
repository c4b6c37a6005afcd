// Package calendar resolves Turkish date expressions and owns every
// day-boundary computation in the assistant.
//
// All boundaries are computed in the location of the reference time the
// caller passes in, which is the clinic's configured time zone. A Period
// covers [Start, End).
package calendar

import (
	"fmt"
	"time"
)

// DefaultTimezone is used when a clinic has no time zone configured.
const DefaultTimezone = "Europe/Istanbul"

// Turkey has observed a fixed UTC+3 offset since 2016.
var istanbulFallback = time.FixedZone("+03", 3*60*60)

// Location loads name, falling back to the default clinic zone when name is
// empty or unknown to the host's tz database.
func Location(name string) *time.Location {
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return istanbulFallback
	}
	return loc
}

// StartOfDay truncates t to midnight in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Period is a half-open time range with a display label.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Label string    `json:"label"`
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Days returns the number of calendar days the period spans.
func (p Period) Days() int {
	n := 0
	for d := p.Start; d.Before(p.End); d = d.AddDate(0, 0, 1) {
		n++
	}
	return n
}

// DayRange returns the single calendar day containing t.
func DayRange(t time.Time) Period {
	start := StartOfDay(t)
	return Period{Start: start, End: start.AddDate(0, 0, 1), Label: FormatDate(start)}
}

// MonthRange returns the calendar month containing t.
func MonthRange(t time.Time) Period {
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Period{
		Start: start,
		End:   start.AddDate(0, 1, 0),
		Label: fmt.Sprintf("%s %d", MonthName(t.Month()), t.Year()),
	}
}

// WeekRange returns the Monday to Sunday week containing t.
func WeekRange(t time.Time) Period {
	day := StartOfDay(t)
	idx := int(day.Weekday())
	shift := 1
	if idx == 0 {
		shift = -6
	}
	monday := day.AddDate(0, 0, -idx+shift)
	sunday := monday.AddDate(0, 0, 6)
	return Period{
		Start: monday,
		End:   monday.AddDate(0, 0, 7),
		Label: fmt.Sprintf("%s - %s", ShortDate(monday), ShortDate(sunday)),
	}
}

// YearRange returns the calendar year containing t.
func YearRange(t time.Time) Period {
	start := time.Date(t.Year(), time.January, 1, 0, 0, 0, 0, t.Location())
	return Period{Start: start, End: start.AddDate(1, 0, 0), Label: fmt.Sprintf("%d", t.Year())}
}

var weekdayNames = [...]string{"Pazar", "Pazartesi", "Salı", "Çarşamba", "Perşembe", "Cuma", "Cumartesi"}

var monthNames = [...]string{"Ocak", "Şubat", "Mart", "Nisan", "Mayıs", "Haziran", "Temmuz", "Ağustos", "Eylül", "Ekim", "Kasım", "Aralık"}

// WeekdayName returns the Turkish name of d.
func WeekdayName(d time.Weekday) string {
	return weekdayNames[d]
}

// MonthName returns the Turkish name of m.
func MonthName(m time.Month) string {
	return monthNames[m-1]
}

// FormatDate renders t as "20 Ocak 2026 Salı".
func FormatDate(t time.Time) string {
	return fmt.Sprintf("%d %s %d %s", t.Day(), MonthName(t.Month()), t.Year(), WeekdayName(t.Weekday()))
}

// ShortDate renders t as "20.01".
func ShortDate(t time.Time) string {
	return t.Format("02.01")
}

// ISODate renders t as "2006-01-02".
func ISODate(t time.Time) string {
	return t.Format("2006-01-02")
}
