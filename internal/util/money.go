package util

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// RoundMoney rounds half-to-even at two decimal places. Every computed amount
// goes through here so repeated calculations never drift by a cent.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.RoundBank(2)
}

// PercentOf returns rate percent of amount, rounded.
func PercentOf(amount, rate decimal.Decimal) decimal.Decimal {
	return RoundMoney(amount.Mul(rate).Div(hundred))
}

// ToMinorUnits converts an amount to integer cents for gateway APIs.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return RoundMoney(amount).Mul(hundred).IntPart()
}
