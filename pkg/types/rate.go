package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// RateScalingDecimals is the fixed-point precision of an interest rate:
// the raw value is percent × 10^4, so 2.5% stores as 25000.
const RateScalingDecimals = 4

var (
	ErrNegativeRate   = errors.New("interest rate must not be negative")
	ErrRateTooPrecise = errors.New("interest rate exceeds fixed-point precision")
)

// InterestRate is an immutable fixed-point annual interest rate in percent.
// Two rates are equal iff their raw values are equal, so "2.5" and "2.50"
// construct the same rate.
type InterestRate struct {
	raw *big.Int
}

// NewInterestRateFromPercent builds a rate from a percent figure.
// Precision beyond four fractional digits is rejected rather than rounded.
func NewInterestRateFromPercent(percent decimal.Decimal) (InterestRate, error) {
	if percent.IsNegative() {
		return InterestRate{}, ErrNegativeRate
	}
	shifted := percent.Shift(RateScalingDecimals)
	if !shifted.IsInteger() {
		return InterestRate{}, fmt.Errorf("%w: %s%%", ErrRateTooPrecise, percent.String())
	}
	return InterestRate{raw: shifted.BigInt()}, nil
}

// NewInterestRateFromRaw wraps an already-scaled raw value.
func NewInterestRateFromRaw(raw *big.Int) (InterestRate, error) {
	if raw == nil || raw.Sign() < 0 {
		return InterestRate{}, ErrNegativeRate
	}
	return InterestRate{raw: new(big.Int).Set(raw)}, nil
}

// Raw returns a copy of the scaled fixed-point value.
func (r InterestRate) Raw() *big.Int {
	if r.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(r.raw)
}

// Percent returns the rate as a percent figure.
func (r InterestRate) Percent() decimal.Decimal {
	return decimal.NewFromBigInt(r.Raw(), -RateScalingDecimals)
}

func (r InterestRate) Equal(o InterestRate) bool {
	return r.Raw().Cmp(o.Raw()) == 0
}

func (r InterestRate) String() string {
	return r.Percent().String() + "%"
}
