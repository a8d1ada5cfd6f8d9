// Package words renders invoice amounts as English words in the Indian
// numbering system, as printed on tax invoices.
package words

import (
	"strings"

	"github.com/shopspring/decimal"
)

var ones = []string{
	"", "One", "Two", "Three", "Four", "Five", "Six", "Seven", "Eight", "Nine",
	"Ten", "Eleven", "Twelve", "Thirteen", "Fourteen", "Fifteen", "Sixteen",
	"Seventeen", "Eighteen", "Nineteen",
}

var tens = []string{
	"", "", "Twenty", "Thirty", "Forty", "Fifty", "Sixty", "Seventy",
	"Eighty", "Ninety",
}

// AmountInWords renders a rupee amount, e.g.
// "Rupees Seven Hundred Ninety Nine Only" or
// "Rupees One Thousand Two Hundred and Paise Fifty Only".
func AmountInWords(amount decimal.Decimal) string {
	if amount.IsNegative() {
		amount = amount.Neg()
	}
	rupees := amount.Truncate(0)
	paise := amount.Sub(rupees).Mul(decimal.NewFromInt(100)).Round(0).IntPart()

	var b strings.Builder
	b.WriteString("Rupees ")
	b.WriteString(integerWords(rupees.IntPart()))
	if paise > 0 {
		b.WriteString(" and Paise ")
		b.WriteString(integerWords(paise))
	}
	b.WriteString(" Only")
	return b.String()
}

// integerWords converts n using crore, lakh, thousand and hundred groups.
func integerWords(n int64) string {
	if n == 0 {
		return "Zero"
	}
	var parts []string
	emit := func(v int64, label string) {
		if v > 0 {
			if label == "" {
				parts = append(parts, twoDigit(v))
			} else {
				parts = append(parts, twoDigit(v)+" "+label)
			}
		}
	}
	emit(n/10000000, "Crore")
	n %= 10000000
	emit(n/100000, "Lakh")
	n %= 100000
	emit(n/1000, "Thousand")
	n %= 1000
	emit(n/100, "Hundred")
	n %= 100
	emit(n, "")
	return strings.Join(parts, " ")
}

func twoDigit(n int64) string {
	if n < 20 {
		return ones[n]
	}
	if n%10 == 0 {
		return tens[n/10]
	}
	return tens[n/10] + " " + ones[n%10]
}
