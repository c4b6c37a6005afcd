package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/erdincayar/klinik-asistan-sub000/internal/appointments"
	"github.com/erdincayar/klinik-asistan-sub000/internal/finance"
)

func appointmentLine(a appointments.Appointment) string {
	line := fmt.Sprintf("%s-%s %s - %s", a.Start, a.End, a.PatientName, a.TreatmentType.Label())
	if a.Notes != "" {
		line += " (" + a.Notes + ")"
	}
	return line
}

func formatRanking(title string, list []finance.Ranking) string {
	if len(list) == 0 {
		return title + "\nKayıt yok."
	}
	var b strings.Builder
	b.WriteString(title)
	for i, r := range list {
		fmt.Fprintf(&b, "\n%d. %s: %s (%d işlem)", i+1, r.Label, r.Total, r.Count)
	}
	return b.String()
}

// formatBps renders basis points as a Turkish percentage: 1250 -> "%12,5".
func formatBps(bps int64) string {
	whole := bps / 100
	frac := bps % 100
	if frac == 0 {
		return "%" + strconv.FormatInt(whole, 10)
	}
	s := fmt.Sprintf("%02d", frac)
	s = strings.TrimRight(s, "0")
	return "%" + strconv.FormatInt(whole, 10) + "," + s
}
