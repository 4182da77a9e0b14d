package order

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openlend/debtkernel/pkg/types"
)

// Terms is the economic commitment payload of a debt order. Once a
// commitment hash has been derived from it the terms are frozen; changing
// anything afterwards requires a new salt and therefore a new hash, which
// is what stops a signature from being replayed against altered terms.
//
// Relayer, the three fee amounts, and Collateral are optional; everything
// else is required before hashing.
type Terms struct {
	// Protocol version identifiers, expressed as deployed contract
	// addresses so two implementations can never confuse incompatible
	// wire formats.
	KernelVersion        common.Address
	IssuanceVersion      common.Address
	TermsContractVersion common.Address

	Principal  types.TokenAmount
	Collateral types.TokenAmount

	InterestRate types.InterestRate
	TermLength   types.TimeInterval

	DebtorFee   types.TokenAmount
	CreditorFee types.TokenAmount
	RelayerFee  types.TokenAmount
	Relayer     common.Address

	ExpiresAt time.Time
	Salt      *big.Int
}

// validate checks the fields every commitment hash needs. A missing field
// here is a programming-contract violation by the caller, not a runtime
// condition the protocol recovers from.
func (t *Terms) validate() error {
	if t.Principal.IsZero() && t.Principal.Symbol() == "" {
		return ErrMissingPrincipal
	}
	if t.ExpiresAt.IsZero() {
		return ErrMissingExpiration
	}
	if t.Salt == nil {
		return ErrMissingSalt
	}
	return nil
}

// withSalt returns a copy of the terms carrying salt.
func (t Terms) withSalt(salt *big.Int) Terms {
	t.Salt = new(big.Int).Set(salt)
	return t
}

// Equal compares all economic fields, including the salt.
func (t Terms) Equal(o Terms) bool {
	saltEq := (t.Salt == nil && o.Salt == nil) ||
		(t.Salt != nil && o.Salt != nil && t.Salt.Cmp(o.Salt) == 0)
	return t.KernelVersion == o.KernelVersion &&
		t.IssuanceVersion == o.IssuanceVersion &&
		t.TermsContractVersion == o.TermsContractVersion &&
		t.Principal.Equal(o.Principal) &&
		t.Collateral.Equal(o.Collateral) &&
		t.InterestRate.Equal(o.InterestRate) &&
		t.TermLength.Equal(o.TermLength) &&
		t.DebtorFee.Equal(o.DebtorFee) &&
		t.CreditorFee.Equal(o.CreditorFee) &&
		t.RelayerFee.Equal(o.RelayerFee) &&
		t.Relayer == o.Relayer &&
		t.ExpiresAt.Equal(o.ExpiresAt) &&
		saltEq
}
