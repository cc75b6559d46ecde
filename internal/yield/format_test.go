package yield

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestFormatCurrency(t *testing.T) {
	assert.Equal(t, "$1,234.50", FormatCurrency(d("1234.5"), 2))
	assert.Equal(t, "-$0.50", FormatCurrency(d("-0.5"), 2))
	assert.Equal(t, "$0.00", FormatCurrency(decimal.Zero, 2))
	assert.Equal(t, "$1,000,000.1235", FormatCurrency(d("1000000.12345"), 4))
}

func TestFormatTokenAmount(t *testing.T) {
	assert.Equal(t, "0 USDC", FormatTokenAmount(decimal.Zero, "USDC", 4))
	assert.Equal(t, "0.00050000 MORPHO", FormatTokenAmount(d("0.0005"), "MORPHO", 2))
	assert.Equal(t, "1,234.57 USDC", FormatTokenAmount(d("1234.5678"), "USDC", 2))
	assert.Equal(t, "12.5 FXN", FormatTokenAmount(d("12.5"), "FXN", 4))
}

func TestSignedFormatting(t *testing.T) {
	assert.Equal(t, "+1.25%", SignedPercentage(1.25))
	assert.Equal(t, "-0.50%", SignedPercentage(-0.5))
	assert.Equal(t, "0.00%", SignedPercentage(0))

	assert.Equal(t, "+$12.34", SignedUSD(d("12.336")))
	assert.Equal(t, "-$3.00", SignedUSD(d("-3")))
	assert.Equal(t, "$0.00", SignedUSD(decimal.Zero))

	assert.Equal(t, "5.50%", FormatAPY(4.5, 1))
}

func TestTruncateAddress(t *testing.T) {
	addr := "0x1234567890abcdef1234567890abcdef12345678"
	assert.Equal(t, "0x1234...5678", TruncateAddress(addr, 4))
	assert.Equal(t, "0x12", TruncateAddress("0x12", 4))
	assert.Equal(t, "", TruncateAddress("", 4))
}

func TestValueClass(t *testing.T) {
	assert.Equal(t, "positive", ValueClass(d("0.01")))
	assert.Equal(t, "negative", ValueClass(d("-1")))
	assert.Equal(t, "neutral", ValueClass(decimal.Zero))
}
