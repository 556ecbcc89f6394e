// Package money holds the integer arithmetic used for amounts in cents.
package money

import (
	"fmt"
	"math"

	"github.com/dustin/go-humanize"
)

// DivRound divides num by den rounding half away from zero. A zero
// denominator yields 0.
func DivRound(num, den int64) int64 {
	if den == 0 {
		return 0
	}
	if den < 0 {
		num, den = -num, -den
	}
	q := num / den
	r := num % den
	if r < 0 {
		r = -r
	}
	if 2*r >= den {
		if num < 0 {
			q--
		} else {
			q++
		}
	}
	return q
}

// Thousandths converts a decimal multiplier to an integer number of thousandths.
func Thousandths(m float64) int64 {
	return int64(math.Round(m * 1000))
}

// Apply multiplies amount by every multiplier and rounds once, half-up.
func Apply(amount int64, multipliers ...float64) int64 {
	num, den := amount, int64(1)
	for _, m := range multipliers {
		num *= Thousandths(m)
		den *= 1000
	}
	return DivRound(num, den)
}

// Dollars converts cents to a float for display and ratio metrics.
func Dollars(cents int64) float64 {
	return float64(cents) / 100
}

// Format renders cents as "$12,345.67".
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%s.%02d", sign, humanize.Comma(cents/100), cents%100)
}
