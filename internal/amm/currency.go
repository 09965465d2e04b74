package amm

import "github.com/shopspring/decimal"

// CurrencyPlaces is the number of decimal places currency is reported in.
const CurrencyPlaces = 2

// Currency converts a raw float amount to a decimal rounded to currency
// precision.
func Currency(x float64) decimal.Decimal {
	return decimal.NewFromFloat(x).Round(CurrencyPlaces)
}

// RoundCurrency rounds x half away from zero to currency precision.
func RoundCurrency(x float64) float64 {
	return Currency(x).InexactFloat64()
}

// NetOfFee applies the house fee to a gross amount and rounds the result.
func NetOfFee(gross, fee float64) decimal.Decimal {
	return decimal.NewFromFloat(gross).
		Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(fee))).
		Round(CurrencyPlaces)
}

// Percent renders a price in [0, 1] as a two-decimal percentage.
func Percent(price float64) float64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(100)).Round(CurrencyPlaces).InexactFloat64()
}
