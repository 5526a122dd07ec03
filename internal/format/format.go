// Package format renders amounts the way Bolivian point-of-sale
// staff read them: "Bs 1.100,33" and "1.234". It never depends on
// the OS locale.
package format

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

// group inserts "." every three digits of an unsigned integer
// string.
func group(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	var b strings.Builder
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
	}
	for i := lead; i < len(digits); i += 3 {
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(digits[i : i+3])
	}
	return b.String()
}

// number formats |v| rounded half away from zero to decimals
// places, with "." thousands and "," decimal separators, and
// reports whether the rounded value is negative.
func number(v float64, decimals int) (string, bool) {
	d := decimal.NewFromFloat(finite(v)).Round(int32(decimals))
	neg := d.IsNegative()
	fixed := d.Abs().StringFixed(int32(decimals))
	whole, frac, _ := strings.Cut(fixed, ".")
	s := group(whole)
	if decimals > 0 {
		s += "," + frac
	}
	return s, neg
}

// Number formats v with decimals places: Number(1100.333, 2) is
// "1.100,33".
func Number(v float64, decimals int) string {
	s, neg := number(v, max(decimals, 0))
	if neg {
		return "-" + s
	}
	return s
}

// Money formats an amount in bolivianos with two decimals:
// "Bs 1.100,33", "-Bs 5,00".
func Money(v float64) string {
	return MoneyDecimals(v, 2)
}

// MoneyDecimals is Money with an explicit precision.
func MoneyDecimals(v float64, decimals int) string {
	s, neg := number(v, max(decimals, 0))
	if neg {
		return "-Bs " + s
	}
	return "Bs " + s
}

// Int formats a count rounded to the nearest integer: "1.234".
func Int(v float64) string {
	return Number(v, 0)
}

// Percent formats a percentage with one decimal: "32,5%".
func Percent(v float64) string {
	return Number(v, 1) + "%"
}
