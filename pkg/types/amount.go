package types

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativeAmount = errors.New("token amount must not be negative")
	ErrMissingSymbol  = errors.New("token symbol is required")
	ErrInexactAmount  = errors.New("decimal amount does not fit token precision exactly")
)

// TokenAmount is an immutable token quantity. The raw amount is the
// ledger-denomination integer; the decimal view divides by 10^decimals.
// The invariant raw = decimal × 10^decimals holds exactly; construction
// rejects anything that would silently round.
type TokenAmount struct {
	raw      *big.Int
	decimals uint8
	symbol   string
}

// NewTokenAmount wraps a raw ledger-denomination amount.
func NewTokenAmount(raw *big.Int, decimals uint8, symbol string) (TokenAmount, error) {
	if raw == nil || raw.Sign() < 0 {
		return TokenAmount{}, ErrNegativeAmount
	}
	if symbol == "" {
		return TokenAmount{}, ErrMissingSymbol
	}
	return TokenAmount{raw: new(big.Int).Set(raw), decimals: decimals, symbol: symbol}, nil
}

// NewTokenAmountFromDecimal converts a human-denomination amount into raw
// units. The conversion must be exact: 1.005 at 2 decimals is an error,
// not 100 or 101.
func NewTokenAmountFromDecimal(amount decimal.Decimal, decimals uint8, symbol string) (TokenAmount, error) {
	if amount.IsNegative() {
		return TokenAmount{}, ErrNegativeAmount
	}
	shifted := amount.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return TokenAmount{}, fmt.Errorf("%w: %s at %d decimals", ErrInexactAmount, amount.String(), decimals)
	}
	return NewTokenAmount(shifted.BigInt(), decimals, symbol)
}

// Raw returns a copy of the ledger-denomination amount.
func (a TokenAmount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a TokenAmount) Decimals() uint8 { return a.decimals }
func (a TokenAmount) Symbol() string  { return a.symbol }

// Decimal returns the human-denomination amount.
func (a TokenAmount) Decimal() decimal.Decimal {
	return decimal.NewFromBigInt(a.Raw(), -int32(a.decimals))
}

func (a TokenAmount) IsZero() bool {
	return a.raw == nil || a.raw.Sign() == 0
}

// Equal compares raw amount, precision and symbol.
func (a TokenAmount) Equal(b TokenAmount) bool {
	return a.symbol == b.symbol && a.decimals == b.decimals && a.Raw().Cmp(b.Raw()) == 0
}

func (a TokenAmount) String() string {
	return fmt.Sprintf("%s %s", a.Decimal().String(), a.symbol)
}
