package storage

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// DecimalFloat converts a fixed-point value (unscaled * 10^exp), as reported
// for NUMERIC/DECIMAL columns, into the float64 RowSet uses for amounts. A
// nil unscaled value is zero.
func DecimalFloat(unscaled *big.Int, exp int32) float64 {
	if unscaled == nil {
		return 0
	}
	return decimal.NewFromBigInt(unscaled, exp).InexactFloat64()
}

// ParseDecimalFloat parses a decimal string such as "1234.50" or "1E+3".
func ParseDecimalFloat(s string) (float64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("decimal %q: %w", s, err)
	}
	return d.InexactFloat64(), nil
}
