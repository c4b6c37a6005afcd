// Package money handles amounts in minor currency units (kuruş).
package money

import (
	"strconv"
	"strings"
)

// Amount is a signed count of kuruş. 100 kuruş make one lira.
type Amount int64

// FromLira converts whole lira into an Amount.
func FromLira(lira int64) Amount {
	return Amount(lira * 100)
}

// Lira returns the whole-lira part, truncated toward zero.
func (a Amount) Lira() int64 {
	return int64(a) / 100
}

// String formats the amount the way Turkish receipts do: "9.000,00 TL".
func (a Amount) String() string {
	return Format(a)
}

// Format renders a with dot thousand separators, a comma before the two
// kuruş digits and a trailing currency code.
func Format(a Amount) string {
	v := int64(a)
	sign := ""
	mag := uint64(v)
	if v < 0 {
		sign = "-"
		mag = uint64(^v) + 1
	}
	whole := strconv.FormatUint(mag/100, 10)
	frac := mag % 100

	var b strings.Builder
	b.WriteString(sign)
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(r)
	}
	b.WriteByte(',')
	if frac < 10 {
		b.WriteByte('0')
	}
	b.WriteString(strconv.FormatUint(frac, 10))
	b.WriteString(" TL")
	return b.String()
}

// Percent returns a * bps / 10000, truncating toward zero.
func (a Amount) Percent(bps int64) Amount {
	return Amount(int64(a) * bps / 10000)
}

// Sum adds amounts.
func Sum(amounts ...Amount) Amount {
	var total Amount
	for _, a := range amounts {
		total += a
	}
	return total
}
