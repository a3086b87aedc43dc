package chain

import (
	"errors"
	"math/big"

	"github.com/shopspring/decimal"
)

var errNegativeAmount = errors.New("negative amount")

// FromWei converts a base-unit amount to a decimal amount of the native coin.
func FromWei(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -BaseUnitDecimals)
}

// ParseWei parses a base-10 base-unit amount, as relays send it.
func ParseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, errors.New("invalid base unit amount: " + s)
	}
	if v.Sign() < 0 {
		return nil, errNegativeAmount
	}
	return v, nil
}
