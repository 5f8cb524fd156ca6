// Package format renders server-provided amounts for display. Amounts arrive
// in minor units and are never recomputed, only formatted.
package format

import (
	"strings"

	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printers = map[string]*message.Printer{
	"IDR": message.NewPrinter(language.Indonesian),
	"USD": message.NewPrinter(language.English),
}

var fallbackPrinter = message.NewPrinter(language.English)

// Money renders a minor-unit amount in the given ISO currency, grouped for
// the currency's customary locale. Unknown currencies fall back to the code
// as a prefix.
func Money(amountMinor int64, currencyCode string) string {
	currencyCode = strings.ToUpper(strings.TrimSpace(currencyCode))
	printer := printers[currencyCode]
	if printer == nil {
		printer = fallbackPrinter
	}

	unit, err := currency.ParseISO(currencyCode)
	if err != nil {
		return printer.Sprintf("%s %d", currencyCode, amountMinor/100)
	}

	return printer.Sprintf("%v", currency.Symbol(unit.Amount(float64(amountMinor)/100)))
}

// MinorToMajor converts a minor-unit amount to its major-unit value, with
// the remainder in minor units.
func MinorToMajor(amountMinor int64) (major int64, minor int64) {
	major = amountMinor / 100
	minor = amountMinor % 100
	if minor < 0 {
		minor = -minor
	}
	return major, minor
}
