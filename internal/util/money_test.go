package util

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundMoneyIsBankers(t *testing.T) {
	cases := map[string]string{
		"2.345": "2.34",
		"2.355": "2.36",
		"0.125": "0.12",
		"0.135": "0.14",
		"10":    "10",
	}
	for in, want := range cases {
		got := RoundMoney(decimal.RequireFromString(in))
		assert.True(t, decimal.RequireFromString(want).Equal(got), "%s -> %s, got %s", in, want, got)
	}
}

func TestPercentOf(t *testing.T) {
	got := PercentOf(decimal.NewFromInt(200), decimal.NewFromInt(10))
	assert.True(t, decimal.NewFromInt(20).Equal(got))

	got = PercentOf(decimal.RequireFromString("33.33"), decimal.RequireFromString("12.5"))
	assert.Equal(t, "4.17", got.StringFixed(2))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(decimal.RequireFromString("19.99")))
	assert.Equal(t, int64(0), ToMinorUnits(decimal.Zero))
}
