package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is what orders are charged in when the order carries none.
const DefaultCurrency = "usd"

// minorUnitExponents lists the currencies the processor account accepts.
var minorUnitExponents = map[string]int32{
	"usd": 2,
	"eur": 2,
	"gbp": 2,
	"cad": 2,
	"jpy": 0,
}

// Money is an amount in the currency's smallest unit.
type Money struct {
	Amount   int64
	Currency string
}

// ToMinorUnits converts a decimal price into the processor's integer amount,
// e.g. 20.00 usd -> 2000. Prices that do not land on a whole minor unit are
// rejected instead of rounded.
func ToMinorUnits(price decimal.Decimal, currency string) (Money, error) {
	currency = strings.ToLower(currency)
	exp, ok := minorUnitExponents[currency]
	if !ok {
		return Money{}, NewUnsupportedCurrencyError(currency)
	}

	if !price.IsPositive() {
		return Money{}, NewInvalidAmountError("order price must be greater than zero")
	}

	if !wholeMinorUnits(price, exp) {
		return Money{}, NewInvalidAmountError("order price has more precision than the currency allows")
	}

	return Money{Amount: price.Shift(exp).IntPart(), Currency: currency}, nil
}

func wholeMinorUnits(price decimal.Decimal, exp int32) bool {
	scaled := price.Shift(exp)
	return scaled.Equal(scaled.Truncate(0))
}
