package dto

import "github.com/shopspring/decimal"

// Money travels as integer minor units (kobo, pesewas). The ledger keeps
// decimals; conversion happens only at the wire.

func MinorUnits(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

func FromMinorUnits(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Shift(-2)
}
