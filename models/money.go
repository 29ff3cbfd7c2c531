package models

import "github.com/shopspring/decimal"

// PriceTolerance is the largest difference between two amounts still treated as equal.
var PriceTolerance = decimal.New(1, -2)

func RoundCents(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(PriceTolerance)
}

// LineSubtotal is unitPrice × quantity rounded to cents.
func LineSubtotal(unitPrice float64, quantity int) decimal.Decimal {
	return RoundCents(decimal.NewFromFloat(unitPrice).Mul(decimal.NewFromInt(int64(quantity))))
}
