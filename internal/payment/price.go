package payment

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"

	"github.com/shopspring/decimal"
)

// MinorUnitScale is the number of decimal places shifted to convert a
// price into minor currency units.
const MinorUnitScale = 2

var (
	ErrPriceRequired = errors.New("price is required")
	ErrInvalidPrice  = errors.New("invalid price value")
)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// ParsePrice accepts a JSON number or numeric string.
func ParsePrice(raw json.RawMessage) (decimal.Decimal, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte(`""`)) {
		return decimal.Decimal{}, ErrPriceRequired
	}

	var price decimal.Decimal
	if err := json.Unmarshal(trimmed, &price); err != nil {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	if !price.IsPositive() {
		return decimal.Decimal{}, ErrInvalidPrice
	}
	return price, nil
}

// MinorUnits converts price to minor units, rounding half-up. Prices that
// round to zero minor units are rejected.
func MinorUnits(price decimal.Decimal) (int64, error) {
	amount := price.Shift(MinorUnitScale).Round(0)
	if !amount.IsPositive() || amount.GreaterThan(maxAmount) {
		return 0, ErrInvalidPrice
	}
	return amount.IntPart(), nil
}

// IsClientError reports whether err came from bad caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrPriceRequired) || errors.Is(err, ErrInvalidPrice)
}
