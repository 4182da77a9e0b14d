package order

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/shopspring/decimal"
)

// Commitment hashing is the wire contract of the protocol: fields are
// abi-encoded at fixed widths, in one fixed order, and reduced with
// keccak256. Any implementation that packs the same record must arrive at
// the same 32 bytes, so the field order below is load-bearing:
//
//	kernelVersion, issuanceVersion, termsContractVersion,
//	principal (amount, token, decimals), collateral (amount, token, decimals),
//	interest rate, term length (amount, unit), debtorFee, creditorFee,
//	relayerFee, relayer, expiration, salt
//
// A two-stage commitment scopes a single set of terms to a negotiation
// context: the inner hash covers only the economic terms; the outer hash
// additionally binds the decision-engine address under the 0x1901 prefix,
// so re-scoping never requires recomputing the inner hash.

var (
	abiAddress = mustABIType("address")
	abiUint256 = mustABIType("uint256")
	abiBytes32 = mustABIType("bytes32")
	abiUint8   = mustABIType("uint8")

	innerHashArgs = abi.Arguments{
		{Type: abiAddress}, // kernelVersion
		{Type: abiAddress}, // issuanceVersion
		{Type: abiAddress}, // termsContractVersion
		{Type: abiUint256}, // principal amount (raw)
		{Type: abiBytes32}, // principal token (keccak256 of symbol)
		{Type: abiUint8},   // principal decimals
		{Type: abiUint256}, // collateral amount (raw)
		{Type: abiBytes32}, // collateral token (keccak256 of symbol)
		{Type: abiUint8},   // collateral decimals
		{Type: abiUint256}, // interest rate (fixed-point raw)
		{Type: abiUint256}, // term length amount
		{Type: abiUint8},   // term length unit code
		{Type: abiUint256}, // debtor fee (raw)
		{Type: abiUint256}, // creditor fee (raw)
		{Type: abiUint256}, // relayer fee (raw)
		{Type: abiAddress}, // relayer
		{Type: abiUint256}, // expiration (unix seconds)
		{Type: abiUint256}, // salt
	}

	offerHashArgs = abi.Arguments{
		{Type: abiAddress}, // kernelVersion
		{Type: abiAddress}, // issuanceVersion
		{Type: abiAddress}, // termsContractVersion
		{Type: abiUint256}, // principal amount (raw)
		{Type: abiBytes32}, // principal token
		{Type: abiUint8},   // principal decimals
		{Type: abiBytes32}, // collateral token
		{Type: abiUint8},   // collateral decimals
		{Type: abiUint256}, // max loan-to-value (fixed-point raw)
		{Type: abiUint256}, // interest rate
		{Type: abiUint256}, // term length amount
		{Type: abiUint8},   // term length unit code
		{Type: abiUint256}, // debtor fee
		{Type: abiUint256}, // creditor fee
		{Type: abiUint256}, // relayer fee
		{Type: abiAddress}, // relayer
		{Type: abiUint256}, // expiration
		{Type: abiUint256}, // salt
	}
)

func mustABIType(name string) abi.Type {
	t, err := abi.NewType(name, "", nil)
	if err != nil {
		panic("failed to construct abi type " + name + ": " + err.Error())
	}
	return t
}

// ltvScalingDecimals matches the interest-rate fixed point: percent × 10^4.
const ltvScalingDecimals = 4

// InnerHash reduces the economic terms to the context-free commitment.
func InnerHash(t *Terms) (common.Hash, error) {
	if err := t.validate(); err != nil {
		return common.Hash{}, err
	}

	encoded, err := innerHashArgs.Pack(
		t.KernelVersion,
		t.IssuanceVersion,
		t.TermsContractVersion,
		t.Principal.Raw(),
		ethcrypto.Keccak256Hash([]byte(t.Principal.Symbol())),
		t.Principal.Decimals(),
		t.Collateral.Raw(),
		ethcrypto.Keccak256Hash([]byte(t.Collateral.Symbol())),
		t.Collateral.Decimals(),
		t.InterestRate.Raw(),
		big.NewInt(int64(t.TermLength.Amount())),
		t.TermLength.Unit().Code(),
		t.DebtorFee.Raw(),
		t.CreditorFee.Raw(),
		t.RelayerFee.Raw(),
		t.Relayer,
		big.NewInt(t.ExpiresAt.Unix()),
		t.Salt,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode terms: %w", err)
	}

	return ethcrypto.Keccak256Hash(encoded), nil
}

// CommitmentHash binds the inner hash to a decision-engine identity:
// keccak256(0x19 0x01 || keccak256(engine) || innerHash).
func CommitmentHash(t *Terms, engine common.Address) (common.Hash, error) {
	if engine == (common.Address{}) {
		return common.Hash{}, ErrMissingEngine
	}
	inner, err := InnerHash(t)
	if err != nil {
		return common.Hash{}, err
	}
	return bindEngine(engine, inner), nil
}

// OfferHash is what the creditor of a max-LTV offer signs: the economic
// terms minus the collateral amount (the debtor fixes that later), plus the
// loan-to-value cap, bound to the decision engine. The debtor's signature
// goes over the full CommitmentHash instead.
func OfferHash(t *Terms, engine common.Address, maxLTV decimal.Decimal) (common.Hash, error) {
	if engine == (common.Address{}) {
		return common.Hash{}, ErrMissingEngine
	}
	if err := t.validate(); err != nil {
		return common.Hash{}, err
	}
	ltvRaw := maxLTV.Shift(ltvScalingDecimals)
	if !ltvRaw.IsInteger() {
		return common.Hash{}, fmt.Errorf("max LTV %s exceeds fixed-point precision", maxLTV.String())
	}

	encoded, err := offerHashArgs.Pack(
		t.KernelVersion,
		t.IssuanceVersion,
		t.TermsContractVersion,
		t.Principal.Raw(),
		ethcrypto.Keccak256Hash([]byte(t.Principal.Symbol())),
		t.Principal.Decimals(),
		ethcrypto.Keccak256Hash([]byte(t.Collateral.Symbol())),
		t.Collateral.Decimals(),
		ltvRaw.BigInt(),
		t.InterestRate.Raw(),
		big.NewInt(int64(t.TermLength.Amount())),
		t.TermLength.Unit().Code(),
		t.DebtorFee.Raw(),
		t.CreditorFee.Raw(),
		t.RelayerFee.Raw(),
		t.Relayer,
		big.NewInt(t.ExpiresAt.Unix()),
		t.Salt,
	)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to encode offer terms: %w", err)
	}

	return bindEngine(engine, ethcrypto.Keccak256Hash(encoded)), nil
}

func bindEngine(engine common.Address, inner common.Hash) common.Hash {
	engineHash := ethcrypto.Keccak256Hash(engine.Bytes())

	data := make([]byte, 0, 2+32+32)
	data = append(data, 0x19, 0x01)
	data = append(data, engineHash.Bytes()...)
	data = append(data, inner.Bytes()...)

	return ethcrypto.Keccak256Hash(data)
}
