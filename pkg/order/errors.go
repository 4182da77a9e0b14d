package order

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Precondition and lifecycle errors. Each failed operation leaves the
// record in its prior state; callers can branch on these with errors.Is.
var (
	ErrPricesNotSet       = errors.New("signed price quotes not set")
	ErrCollateralNotSet   = errors.New("collateral amount not set")
	ErrAlreadySigned      = errors.New("terms are frozen by an existing signature")
	ErrTermsNotCommitted  = errors.New("terms have not been committed to a hash")
	ErrMissingDebtor      = errors.New("debtor address not set")
	ErrMissingCreditor    = errors.New("creditor address not set")
	ErrMissingUnderwriter = errors.New("underwriter address not set")
	ErrMissingPrincipal   = errors.New("principal amount not set")
	ErrMissingSalt        = errors.New("salt not set")
	ErrMissingExpiration  = errors.New("expiration timestamp not set")
	ErrMissingEngine      = errors.New("decision engine address not set")
	ErrNotFillable        = errors.New("order is not fillable")
	ErrOrderExpired       = errors.New("order has expired")
	ErrOrderFilled        = errors.New("order is already filled on the ledger")
	ErrNotDebtor          = errors.New("only the debtor may cancel")
	ErrSignatureMismatch  = errors.New("signature does not recover to expected signer")
	ErrUnknownRole        = errors.New("unknown signer role")
)

// InsufficientCollateralError reports a failed loan-to-value check with the
// offending numbers, so a debtor can see exactly how much collateral is
// missing.
type InsufficientCollateralError struct {
	CollateralAmount decimal.Decimal
	CollateralSymbol string
	Ratio            decimal.Decimal
	MaxLTV           decimal.Decimal
}

func (e *InsufficientCollateralError) Error() string {
	return fmt.Sprintf(
		"collateral of %s %s is insufficient: loan-to-value %s exceeds maximum %s%%",
		e.CollateralAmount.String(), e.CollateralSymbol, e.Ratio.String(), e.MaxLTV.String(),
	)
}
