package order

import (
	"fmt"
	"math/big"

	"github.com/openlend/debtkernel/pkg/types"
)

// The simple-interest terms contract consumes its parameters as one packed
// 32-byte word rather than as generic order terms. SimpleInterestTranslator
// converts between the two layouts; the mapping must round-trip exactly,
// since the packed word is what the terms contract re-parses on-ledger.
//
// Packed layout (big-endian within each field):
//
//	byte  0      principal token index
//	bytes 1..12  principal amount, raw (96 bits)
//	bytes 13..15 interest rate, fixed-point raw (24 bits)
//	byte  16     amortization unit code
//	bytes 17..18 term length amount (16 bits)
//	byte  19     collateral token index
//	bytes 20..29 collateral amount, raw (80 bits)
//	byte  30     grace period in days
//	byte  31     reserved, zero

// TokenEntry describes one token the terms contract indexes.
type TokenEntry struct {
	Symbol   string
	Decimals uint8
}

// TokenRegistry maps token symbols to the compact indices used inside the
// packed parameter word.
type TokenRegistry struct {
	entries  []TokenEntry
	bySymbol map[string]uint8
}

func NewTokenRegistry(entries ...TokenEntry) *TokenRegistry {
	reg := &TokenRegistry{entries: entries, bySymbol: make(map[string]uint8, len(entries))}
	for i, e := range entries {
		reg.bySymbol[e.Symbol] = uint8(i)
	}
	return reg
}

func (r *TokenRegistry) IndexOf(symbol string) (uint8, error) {
	idx, ok := r.bySymbol[symbol]
	if !ok {
		return 0, fmt.Errorf("token %q is not registered", symbol)
	}
	return idx, nil
}

func (r *TokenRegistry) EntryAt(index uint8) (TokenEntry, error) {
	if int(index) >= len(r.entries) {
		return TokenEntry{}, fmt.Errorf("token index %d out of range", index)
	}
	return r.entries[index], nil
}

// SimpleInterestParams is the unpacked parameter layout of the
// collateralized simple-interest terms contract.
type SimpleInterestParams struct {
	PrincipalTokenIndex  uint8
	PrincipalAmount      *big.Int
	InterestRateRaw      *big.Int
	AmortizationUnit     types.DurationUnit
	TermLengthAmount     uint16
	CollateralTokenIndex uint8
	CollateralAmount     *big.Int
	GracePeriodDays      uint8
}

var (
	maxPrincipal  = maxForBits(96)
	maxRate       = maxForBits(24)
	maxCollateral = maxForBits(80)
)

func maxForBits(bits uint) *big.Int {
	one := big.NewInt(1)
	return new(big.Int).Sub(new(big.Int).Lsh(one, bits), one)
}

// Pack serializes the parameters into the 32-byte word.
func (p *SimpleInterestParams) Pack() ([32]byte, error) {
	var out [32]byte

	if p.PrincipalAmount == nil || p.PrincipalAmount.Cmp(maxPrincipal) > 0 || p.PrincipalAmount.Sign() < 0 {
		return out, fmt.Errorf("principal amount %v does not fit 96 bits", p.PrincipalAmount)
	}
	if p.InterestRateRaw == nil || p.InterestRateRaw.Cmp(maxRate) > 0 || p.InterestRateRaw.Sign() < 0 {
		return out, fmt.Errorf("interest rate %v does not fit 24 bits", p.InterestRateRaw)
	}
	if p.CollateralAmount == nil || p.CollateralAmount.Cmp(maxCollateral) > 0 || p.CollateralAmount.Sign() < 0 {
		return out, fmt.Errorf("collateral amount %v does not fit 80 bits", p.CollateralAmount)
	}
	if p.TermLengthAmount == 0 {
		return out, types.ErrNonPositiveTerm
	}

	out[0] = p.PrincipalTokenIndex
	p.PrincipalAmount.FillBytes(out[1:13])
	p.InterestRateRaw.FillBytes(out[13:16])
	out[16] = p.AmortizationUnit.Code()
	out[17] = byte(p.TermLengthAmount >> 8)
	out[18] = byte(p.TermLengthAmount)
	out[19] = p.CollateralTokenIndex
	p.CollateralAmount.FillBytes(out[20:30])
	out[30] = p.GracePeriodDays
	return out, nil
}

// UnpackSimpleInterestParams parses a packed parameter word.
func UnpackSimpleInterestParams(word [32]byte) (*SimpleInterestParams, error) {
	unit := types.DurationUnit(word[16])
	if unit.String() == "unknown" {
		return nil, fmt.Errorf("%w: code %d", types.ErrInvalidUnit, word[16])
	}
	if word[31] != 0 {
		return nil, fmt.Errorf("reserved byte is non-zero")
	}

	return &SimpleInterestParams{
		PrincipalTokenIndex:  word[0],
		PrincipalAmount:      new(big.Int).SetBytes(word[1:13]),
		InterestRateRaw:      new(big.Int).SetBytes(word[13:16]),
		AmortizationUnit:     unit,
		TermLengthAmount:     uint16(word[17])<<8 | uint16(word[18]),
		CollateralTokenIndex: word[19],
		CollateralAmount:     new(big.Int).SetBytes(word[20:30]),
		GracePeriodDays:      word[30],
	}, nil
}

// SimpleInterestTranslator converts between generic order terms and the
// packed simple-interest layout, using a token registry for the symbol ↔
// index mapping.
type SimpleInterestTranslator struct {
	Registry *TokenRegistry
}

// FromTerms extracts the terms-contract parameters out of generic terms.
func (t *SimpleInterestTranslator) FromTerms(terms Terms, gracePeriodDays uint8) (*SimpleInterestParams, error) {
	principalIdx, err := t.Registry.IndexOf(terms.Principal.Symbol())
	if err != nil {
		return nil, err
	}
	collateralIdx, err := t.Registry.IndexOf(terms.Collateral.Symbol())
	if err != nil {
		return nil, err
	}
	if terms.TermLength.Amount() > int(^uint16(0)) {
		return nil, fmt.Errorf("term length %d does not fit 16 bits", terms.TermLength.Amount())
	}

	return &SimpleInterestParams{
		PrincipalTokenIndex:  principalIdx,
		PrincipalAmount:      terms.Principal.Raw(),
		InterestRateRaw:      terms.InterestRate.Raw(),
		AmortizationUnit:     terms.TermLength.Unit(),
		TermLengthAmount:     uint16(terms.TermLength.Amount()),
		CollateralTokenIndex: collateralIdx,
		CollateralAmount:     terms.Collateral.Raw(),
		GracePeriodDays:      gracePeriodDays,
	}, nil
}

// ApplyToTerms writes the parameter fields back onto a terms value,
// resolving token indices through the registry. Fields the packed layout
// does not carry (fees, relayer, expiration, salt, versions) are left
// untouched, so FromTerms∘ApplyToTerms is the identity on the covered
// fields.
func (t *SimpleInterestTranslator) ApplyToTerms(p *SimpleInterestParams, terms *Terms) error {
	principalEntry, err := t.Registry.EntryAt(p.PrincipalTokenIndex)
	if err != nil {
		return err
	}
	collateralEntry, err := t.Registry.EntryAt(p.CollateralTokenIndex)
	if err != nil {
		return err
	}

	principal, err := types.NewTokenAmount(p.PrincipalAmount, principalEntry.Decimals, principalEntry.Symbol)
	if err != nil {
		return err
	}
	collateral, err := types.NewTokenAmount(p.CollateralAmount, collateralEntry.Decimals, collateralEntry.Symbol)
	if err != nil {
		return err
	}
	rate, err := types.NewInterestRateFromRaw(p.InterestRateRaw)
	if err != nil {
		return err
	}
	term, err := types.NewTimeInterval(int(p.TermLengthAmount), p.AmortizationUnit)
	if err != nil {
		return err
	}

	terms.Principal = principal
	terms.Collateral = collateral
	terms.InterestRate = rate
	terms.TermLength = term
	return nil
}
