package order

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"

	"github.com/openlend/debtkernel/pkg/crypto"
	"github.com/openlend/debtkernel/pkg/types"
)

// SignedPrice is a price quote attested by a feed operator. Quotes are
// caller-owned and passed into the evaluator by reference; the record never
// retains them past the check they gate.
type SignedPrice struct {
	Token     common.Address
	Price     decimal.Decimal
	Timestamp time.Time
	Signature ECDSASignature
}

// Hash is the digest the feed operator signs.
func (p *SignedPrice) Hash() common.Hash {
	ts := make([]byte, 8)
	v := uint64(p.Timestamp.Unix())
	for i := 7; i >= 0; i-- {
		ts[i] = byte(v)
		v >>= 8
	}

	data := make([]byte, 0, 20+len(p.Price.String())+8)
	data = append(data, p.Token.Bytes()...)
	data = append(data, []byte(p.Price.String())...)
	data = append(data, ts...)
	return ethcrypto.Keccak256Hash(data)
}

// VerifiedBy reports whether the quote's signature recovers to operator.
func (p *SignedPrice) VerifiedBy(operator common.Address) bool {
	return crypto.VerifySignature(operator, p.Hash().Bytes(), p.Signature.Bytes())
}

// EvaluateCollateral decides whether a proposed collateral amount satisfies
// a loan-to-value cap, given price quotes for both tokens. maxLTV is a
// percentage: maxLTV = 60 passes any ratio up to 0.6. A nil return means
// the collateral is sufficient.
//
// The ratio is computed over decimal (human-denomination) amounts. Raw
// ledger amounts are NOT comparable across tokens with different decimal
// precision, so using them here would silently mis-scale the check.
//
// Preconditions are reported distinctly rather than guessed around: both
// prices must be set and the collateral amount must be set and strictly
// positive. A collateral value of zero is insufficiency, not an error.
func EvaluateCollateral(
	principal types.TokenAmount,
	collateralAmount decimal.Decimal,
	collateralSymbol string,
	principalPrice, collateralPrice *SignedPrice,
	maxLTV decimal.Decimal,
) error {
	if principalPrice == nil || collateralPrice == nil {
		return ErrPricesNotSet
	}
	if !collateralAmount.IsPositive() {
		return ErrCollateralNotSet
	}

	principalValue := principal.Decimal().Mul(principalPrice.Price)
	collateralValue := collateralAmount.Mul(collateralPrice.Price)

	insufficient := func() error {
		ratio := decimal.Zero
		if !collateralValue.IsZero() {
			ratio = principalValue.Div(collateralValue)
		}
		return &InsufficientCollateralError{
			CollateralAmount: collateralAmount,
			CollateralSymbol: collateralSymbol,
			Ratio:            ratio,
			MaxLTV:           maxLTV,
		}
	}

	if collateralValue.IsZero() {
		return insufficient()
	}

	// ratio ≤ maxLTV/100  ⟺  principalValue × 100 ≤ maxLTV × collateralValue;
	// comparing cross-products avoids dividing, so the check itself never
	// loses precision. The quotient is only computed for the error message.
	if principalValue.Mul(decimal.NewFromInt(100)).Cmp(maxLTV.Mul(collateralValue)) > 0 {
		return insufficient()
	}
	return nil
}
