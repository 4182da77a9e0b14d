package order

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openlend/debtkernel/pkg/crypto"
	"github.com/openlend/debtkernel/pkg/types"
)

// InterchangeOrder is the canonical wire shape of an order record. Another
// implementation re-deriving the commitment hash from these fields must
// arrive at the same 32 bytes, so every hashed field appears here verbatim
// (raw amounts as decimal strings, timestamps as unix seconds).
type InterchangeOrder struct {
	KernelVersion        string `json:"kernelVersion"`
	IssuanceVersion      string `json:"issuanceVersion"`
	TermsContractVersion string `json:"termsContractVersion"`

	PrincipalAmount   string `json:"principalAmount"`
	PrincipalToken    string `json:"principalToken"`
	PrincipalDecimals uint8  `json:"principalDecimals"`

	CollateralAmount   string `json:"collateralAmount"`
	CollateralToken    string `json:"collateralToken"`
	CollateralDecimals uint8  `json:"collateralDecimals"`

	InterestRateRaw  string `json:"interestRateRaw"`
	TermLengthAmount int    `json:"termLengthAmount"`
	TermLengthUnit   string `json:"termLengthUnit"`

	DebtorFee   string `json:"debtorFee"`
	CreditorFee string `json:"creditorFee"`
	RelayerFee  string `json:"relayerFee"`
	Relayer     string `json:"relayer,omitempty"`

	ExpiresAt int64  `json:"expirationTimestampInSec"`
	Salt      string `json:"salt"`

	Engine  string `json:"decisionEngine"`
	Variant string `json:"variant"`
	MaxLTV  string `json:"maxLTV,omitempty"`

	Debtor      string `json:"debtor"`
	Creditor    string `json:"creditor,omitempty"`
	Underwriter string `json:"underwriter,omitempty"`

	DebtorSignature      *ECDSASignature `json:"debtorSignature,omitempty"`
	CreditorSignature    *ECDSASignature `json:"creditorSignature,omitempty"`
	UnderwriterSignature *ECDSASignature `json:"underwriterSignature,omitempty"`

	CommitmentHash string `json:"commitmentHash,omitempty"`
}

// Interchange serializes the record. The commitment hash is included when
// the terms are already committed; a still-negotiable record travels
// without one.
func (r *Record) Interchange() (*InterchangeOrder, error) {
	terms := r.Terms()

	out := &InterchangeOrder{
		KernelVersion:        terms.KernelVersion.Hex(),
		IssuanceVersion:      terms.IssuanceVersion.Hex(),
		TermsContractVersion: terms.TermsContractVersion.Hex(),
		PrincipalAmount:      terms.Principal.Raw().String(),
		PrincipalToken:       terms.Principal.Symbol(),
		PrincipalDecimals:    terms.Principal.Decimals(),
		CollateralAmount:     terms.Collateral.Raw().String(),
		CollateralToken:      terms.Collateral.Symbol(),
		CollateralDecimals:   terms.Collateral.Decimals(),
		InterestRateRaw:      terms.InterestRate.Raw().String(),
		TermLengthAmount:     terms.TermLength.Amount(),
		TermLengthUnit:       terms.TermLength.Unit().String(),
		DebtorFee:            terms.DebtorFee.Raw().String(),
		CreditorFee:          terms.CreditorFee.Raw().String(),
		RelayerFee:           terms.RelayerFee.Raw().String(),
		ExpiresAt:            terms.ExpiresAt.Unix(),
		Salt:                 terms.Salt.String(),
		Engine:               r.Engine().Hex(),
		Variant:              r.Variant().String(),
		Debtor:               r.Debtor().Hex(),
	}

	if terms.Relayer != (common.Address{}) {
		out.Relayer = terms.Relayer.Hex()
	}
	if r.Creditor() != (common.Address{}) {
		out.Creditor = r.Creditor().Hex()
	}
	if r.Underwriter() != (common.Address{}) {
		out.Underwriter = r.Underwriter().Hex()
	}
	if r.Variant() != VariantPlain {
		out.MaxLTV = r.MaxLTV().String()
	}

	for role, dst := range map[Role]**ECDSASignature{
		RoleDebtor:      &out.DebtorSignature,
		RoleCreditor:    &out.CreditorSignature,
		RoleUnderwriter: &out.UnderwriterSignature,
	} {
		if entry, ok := r.Signatures().Get(role); ok {
			sig := entry.Signature
			*dst = &sig
		}
	}

	if r.Phase() == PhaseCommitted {
		hash, err := r.CommitmentHash()
		if err != nil {
			return nil, err
		}
		out.CommitmentHash = hash.Hex()
	}

	return out, nil
}

// FromInterchange rebuilds a record from the wire shape, recomputing the
// commitment hash and refusing the payload if it disagrees byte-for-byte
// with the advertised one. Signatures are restored as-is; their validity
// is judged live by IsSignedBy, so a tampered signature reads as absent
// rather than poisoning the decode.
func FromInterchange(in *InterchangeOrder, logger *zap.Logger) (*Record, error) {
	principal, err := amountFromWire(in.PrincipalAmount, in.PrincipalDecimals, in.PrincipalToken)
	if err != nil {
		return nil, fmt.Errorf("invalid principal: %w", err)
	}
	collateral, err := amountFromWire(in.CollateralAmount, in.CollateralDecimals, in.CollateralToken)
	if err != nil && in.CollateralToken != "" {
		return nil, fmt.Errorf("invalid collateral: %w", err)
	}

	rateRaw, ok := new(big.Int).SetString(in.InterestRateRaw, 10)
	if !ok {
		return nil, fmt.Errorf("invalid interest rate %q", in.InterestRateRaw)
	}
	rate, err := types.NewInterestRateFromRaw(rateRaw)
	if err != nil {
		return nil, err
	}

	term, err := types.ParseTimeInterval(in.TermLengthAmount, in.TermLengthUnit)
	if err != nil {
		return nil, err
	}

	salt, ok := new(big.Int).SetString(in.Salt, 10)
	if !ok {
		return nil, fmt.Errorf("invalid salt %q", in.Salt)
	}

	variant, err := ParseVariant(in.Variant)
	if err != nil {
		return nil, err
	}

	var maxLTV decimal.Decimal
	if in.MaxLTV != "" {
		maxLTV, err = decimal.NewFromString(in.MaxLTV)
		if err != nil {
			return nil, fmt.Errorf("invalid max LTV %q: %w", in.MaxLTV, err)
		}
	}

	// Every address on the wire goes through the checksum-validating
	// parser: a truncated or mis-checksummed address must fail the decode,
	// not silently become a different party.
	var addrErr error
	wireAddr := func(field, raw string) common.Address {
		if raw == "" || addrErr != nil {
			return common.Address{}
		}
		addr, err := crypto.ParseAddress(raw)
		if err != nil {
			addrErr = fmt.Errorf("invalid %s address: %w", field, err)
			return common.Address{}
		}
		return addr
	}

	kernelVersion := wireAddr("kernelVersion", in.KernelVersion)
	issuanceVersion := wireAddr("issuanceVersion", in.IssuanceVersion)
	termsContractVersion := wireAddr("termsContractVersion", in.TermsContractVersion)
	relayer := wireAddr("relayer", in.Relayer)
	engine := wireAddr("decisionEngine", in.Engine)
	debtor := wireAddr("debtor", in.Debtor)
	creditor := wireAddr("creditor", in.Creditor)
	underwriter := wireAddr("underwriter", in.Underwriter)
	if addrErr != nil {
		return nil, addrErr
	}

	terms := Terms{
		KernelVersion:        kernelVersion,
		IssuanceVersion:      issuanceVersion,
		TermsContractVersion: termsContractVersion,
		Principal:            principal,
		Collateral:           collateral,
		InterestRate:         rate,
		TermLength:           term,
		DebtorFee:            feeFromWire(in.DebtorFee, principal),
		CreditorFee:          feeFromWire(in.CreditorFee, principal),
		RelayerFee:           feeFromWire(in.RelayerFee, principal),
		Relayer:              relayer,
		ExpiresAt:            time.Unix(in.ExpiresAt, 0).UTC(),
		Salt:                 salt,
	}

	record, err := New(Params{
		Terms:       terms,
		Variant:     variant,
		Engine:      engine,
		Debtor:      debtor,
		Creditor:    creditor,
		Underwriter: underwriter,
		MaxLTV:      maxLTV,
		Logger:      logger,
	})
	if err != nil {
		return nil, err
	}

	if in.CommitmentHash != "" {
		recomputed, err := record.CommitmentHash()
		if err != nil {
			return nil, err
		}
		if recomputed != common.HexToHash(in.CommitmentHash) {
			return nil, fmt.Errorf("commitment hash mismatch: payload says %s, terms hash to %s",
				in.CommitmentHash, recomputed.Hex())
		}
	}

	for role, sig := range map[Role]*ECDSASignature{
		RoleDebtor:      in.DebtorSignature,
		RoleCreditor:    in.CreditorSignature,
		RoleUnderwriter: in.UnderwriterSignature,
	} {
		if sig == nil {
			continue
		}
		signer, err := record.expectedSigner(role)
		if err != nil {
			continue
		}
		record.Signatures().restore(SignatureEntry{Role: role, Signer: signer, Signature: *sig})
	}

	return record, nil
}

func amountFromWire(raw string, decimals uint8, symbol string) (types.TokenAmount, error) {
	if symbol == "" {
		return types.TokenAmount{}, types.ErrMissingSymbol
	}
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok {
		return types.TokenAmount{}, fmt.Errorf("invalid amount %q", raw)
	}
	return types.NewTokenAmount(v, decimals, symbol)
}

// feeFromWire parses a fee denominated in the principal token. A malformed
// or empty fee reads as zero; fees are optional on the wire.
func feeFromWire(raw string, principal types.TokenAmount) types.TokenAmount {
	v, ok := new(big.Int).SetString(raw, 10)
	if !ok || v.Sign() <= 0 {
		return types.TokenAmount{}
	}
	fee, err := types.NewTokenAmount(v, principal.Decimals(), principal.Symbol())
	if err != nil {
		return types.TokenAmount{}
	}
	return fee
}
