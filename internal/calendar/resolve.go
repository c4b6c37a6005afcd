package calendar

import (
	"strings"
	"time"

	"github.com/erdincayar/klinik-asistan-sub000/internal/textnorm"
)

var weekdaysByWord = map[string]time.Weekday{
	"pazar":     time.Sunday,
	"pazartesi": time.Monday,
	"sali":      time.Tuesday,
	"carsamba":  time.Wednesday,
	"persembe":  time.Thursday,
	"cuma":      time.Friday,
	"cumartesi": time.Saturday,
}

var monthsByWord = map[string]time.Month{
	"ocak":    time.January,
	"subat":   time.February,
	"mart":    time.March,
	"nisan":   time.April,
	"mayis":   time.May,
	"haziran": time.June,
	"temmuz":  time.July,
	"agustos": time.August,
	"eylul":   time.September,
	"ekim":    time.October,
	"kasim":   time.November,
	"aralik":  time.December,
}

// ResolveDate turns a single-day expression into midnight of that day in
// now's location. Weekday names resolve to the next occurrence strictly
// after today, so naming today's weekday means the same day next week.
func ResolveDate(expr string, now time.Time) (time.Time, bool) {
	today := StartOfDay(now)
	word := textnorm.Fold(expr)

	switch word {
	case "", "bugun":
		return today, true
	case "yarin":
		return today.AddDate(0, 0, 1), true
	case "dun":
		return today.AddDate(0, 0, -1), true
	case "obur gun", "ertesi gun":
		return today.AddDate(0, 0, 2), true
	}

	if wd, ok := weekdaysByWord[word]; ok {
		return NextWeekday(today, wd), true
	}
	if strings.HasPrefix(word, "haftaya ") {
		if wd, ok := weekdaysByWord[strings.TrimPrefix(word, "haftaya ")]; ok {
			return NextWeekday(today, wd).AddDate(0, 0, 7), true
		}
	}
	if d, ok := parseNumericDate(word, today); ok {
		return d, true
	}
	return time.Time{}, false
}

// NextWeekday returns the first day after from that falls on target.
func NextWeekday(from time.Time, target time.Weekday) time.Time {
	offset := (int(target) - int(from.Weekday()) + 7) % 7
	if offset == 0 {
		offset = 7
	}
	return StartOfDay(from).AddDate(0, 0, offset)
}

var numericLayouts = []string{"2006-01-02", "02.01.2006", "2.1.2006", "02/01/2006"}

func parseNumericDate(word string, today time.Time) (time.Time, bool) {
	for _, layout := range numericLayouts {
		if t, err := time.ParseInLocation(layout, word, today.Location()); err == nil {
			return t, true
		}
	}
	// day.month in the current year
	for _, layout := range []string{"02.01", "2.1"} {
		if t, err := time.ParseInLocation(layout, word, today.Location()); err == nil {
			return time.Date(today.Year(), t.Month(), t.Day(), 0, 0, 0, 0, today.Location()), true
		}
	}
	return time.Time{}, false
}

// LookupPeriod resolves a period expression and reports whether it was
// recognized.
func LookupPeriod(expr string, now time.Time) (Period, bool) {
	word := textnorm.Fold(expr)

	switch word {
	case "bu hafta", "hafta":
		return WeekRange(now), true
	case "gecen hafta":
		return WeekRange(StartOfDay(now).AddDate(0, 0, -7)), true
	case "bu ay", "ay":
		return MonthRange(now), true
	case "gecen ay":
		first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return MonthRange(first.AddDate(0, -1, 0)), true
	case "bu yil", "yil":
		return YearRange(now), true
	case "gecen yil":
		return YearRange(time.Date(now.Year()-1, time.June, 1, 0, 0, 0, 0, now.Location())), true
	}

	if m, ok := monthsByWord[word]; ok {
		return MonthRange(time.Date(now.Year(), m, 1, 0, 0, 0, 0, now.Location())), true
	}
	// "ocak 2025"
	if parts := strings.Fields(word); len(parts) == 2 {
		if m, ok := monthsByWord[parts[0]]; ok {
			if y, err := time.Parse("2006", parts[1]); err == nil {
				return MonthRange(time.Date(y.Year(), m, 1, 0, 0, 0, 0, now.Location())), true
			}
		}
	}
	if word != "" {
		if d, ok := ResolveDate(word, now); ok {
			return DayRange(d), true
		}
	}
	return Period{}, false
}

// ResolvePeriod resolves a period expression, falling back to the current
// calendar month when the expression is empty or unrecognized.
func ResolvePeriod(expr string, now time.Time) Period {
	if p, ok := LookupPeriod(expr, now); ok {
		return p
	}
	return MonthRange(now)
}
