package yield

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var smallAmount = decimal.RequireFromString("0.001")

func printer() *message.Printer {
	return message.NewPrinter(language.English)
}

// FormatCurrency renders a USD amount with thousands grouping and a fixed
// number of fraction digits, e.g. "$1,234.50" or "-$0.50".
func FormatCurrency(v decimal.Decimal, decimals int) string {
	sign := ""
	if v.IsNegative() {
		sign = "-"
	}
	abs := v.Abs().Round(int32(decimals)).InexactFloat64()
	return sign + "$" + printer().Sprint(number.Decimal(abs, number.Scale(decimals)))
}

// FormatTokenAmount renders a token amount. Zero prints as "0 SYM", dust
// below 0.001 keeps eight decimals, anything else is grouped with at most
// decimals fraction digits.
func FormatTokenAmount(v decimal.Decimal, symbol string, decimals int) string {
	if v.IsZero() {
		return "0 " + symbol
	}
	if v.Abs().LessThan(smallAmount) {
		return v.StringFixed(8) + " " + symbol
	}
	f := v.Round(int32(decimals)).InexactFloat64()
	return printer().Sprint(number.Decimal(f, number.MaxFractionDigits(decimals))) + " " + symbol
}

func FormatPercentage(v float64, decimals int) string {
	return fmt.Sprintf("%.*f%%", decimals, v)
}

// FormatAPY renders base plus rewards APY as a percentage.
func FormatAPY(base, rewards float64) string {
	return FormatPercentage(base+rewards, 2)
}

// SignedPercentage prefixes positive values with "+".
func SignedPercentage(v float64) string {
	s := FormatPercentage(v, 2)
	if v > 0 {
		return "+" + s
	}
	return s
}

// SignedUSD renders "+$12.34", "-$12.34" or "$0.00" without grouping.
func SignedUSD(v decimal.Decimal) string {
	s := "$" + v.Abs().StringFixed(2)
	switch {
	case v.IsPositive():
		return "+" + s
	case v.IsNegative():
		return "-" + s
	}
	return s
}

// TruncateAddress shortens 0x1234567890abcdef... to 0x1234...cdef.
func TruncateAddress(address string, chars int) string {
	if address == "" {
		return ""
	}
	if len(address) <= chars*2+2 {
		return address
	}
	return address[:chars+2] + "..." + address[len(address)-chars:]
}

// ValueClass classifies a figure for styling: positive, negative or neutral.
func ValueClass(v decimal.Decimal) string {
	switch {
	case v.IsPositive():
		return "positive"
	case v.IsNegative():
		return "negative"
	}
	return "neutral"
}
