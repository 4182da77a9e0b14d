package order

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/openlend/debtkernel/pkg/types"
)

// Variant selects which extra preconditions gate the debtor-signing
// transition and which derived hash the creditor signs. The variants share
// data and the commitment/signature core, not a behavior hierarchy.
type Variant uint8

const (
	// VariantPlain is a fully specified debt order; every role signs the
	// same commitment hash and no collateral check gates signing.
	VariantPlain Variant = iota + 1
	// VariantMaxLTVOffer is a creditor offer with a loan-to-value cap. The
	// creditor signs the offer hash (no collateral amount); the debtor
	// fixes collateral and prices later and signs the full commitment,
	// gated by the collateral sufficiency check.
	VariantMaxLTVOffer
	// VariantFixedLTVOffer carries its collateral amount from construction;
	// the sufficiency check still gates debtor signing once prices are set,
	// but the amount itself is not negotiable.
	VariantFixedLTVOffer
)

func (v Variant) String() string {
	switch v {
	case VariantPlain:
		return "plain"
	case VariantMaxLTVOffer:
		return "max-ltv-offer"
	case VariantFixedLTVOffer:
		return "fixed-ltv-offer"
	default:
		return "unknown"
	}
}

func ParseVariant(s string) (Variant, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "plain":
		return VariantPlain, nil
	case "max-ltv-offer":
		return VariantMaxLTVOffer, nil
	case "fixed-ltv-offer":
		return VariantFixedLTVOffer, nil
	default:
		return 0, fmt.Errorf("unknown order variant %q", s)
	}
}

// Phase is the explicit negotiation sub-phase: while Negotiable, collateral
// and prices may still be set and no valid signature can exist. Signing, or
// explicitly deriving the full commitment hash, moves the record to
// Committed and freezes the terms for good. Read-only queries never commit.
type Phase uint8

const (
	PhaseNegotiable Phase = iota + 1
	PhaseCommitted
)

// Status is the order's observable lifecycle state. Filled and Cancelled
// come only from the ledger oracle; Expired and Open are derived.
type Status uint8

const (
	StatusDraft Status = iota + 1
	StatusDebtorCommitted
	StatusOpen
	StatusFilled
	StatusCancelled
	StatusExpired
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusDebtorCommitted:
		return "debtor-committed"
	case StatusOpen:
		return "open"
	case StatusFilled:
		return "filled"
	case StatusCancelled:
		return "cancelled"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// Params configures a new order record. Engine is the decision-engine
// address the commitment binds to; it is threaded in explicitly so tests
// can run different engine identities without cross-test interference.
type Params struct {
	Terms   Terms
	Variant Variant
	Engine  common.Address

	Debtor      common.Address
	Creditor    common.Address
	Underwriter common.Address

	// MaxLTV is the loan-to-value cap in percent, required for the two
	// offer variants.
	MaxLTV decimal.Decimal

	Logger *zap.Logger
}

// Record is the single-order aggregate: frozen-once terms, the accumulated
// signatures, and the lifecycle driven against the ledger oracle. It is
// safe for concurrent signature attachment; negotiation-phase setters are
// logically single-owner but still guarded.
type Record struct {
	mu sync.Mutex

	terms   Terms
	variant Variant
	engine  common.Address

	debtor      common.Address
	creditor    common.Address
	underwriter common.Address

	maxLTV          decimal.Decimal
	principalPrice  *SignedPrice
	collateralPrice *SignedPrice

	phase         Phase
	commitment    common.Hash
	hasCommitment bool
	offer         common.Hash
	hasOffer      bool

	sigs *SignatureLedger
	log  *zap.Logger
}

// New creates a record in the Negotiable phase. A missing salt is drawn
// fresh here, so two records with otherwise identical terms never share a
// commitment hash.
func New(p Params) (*Record, error) {
	if p.Engine == (common.Address{}) {
		return nil, ErrMissingEngine
	}
	if p.Debtor == (common.Address{}) {
		return nil, ErrMissingDebtor
	}

	variant := p.Variant
	if variant == 0 {
		variant = VariantPlain
	}
	switch variant {
	case VariantPlain:
	case VariantMaxLTVOffer, VariantFixedLTVOffer:
		if !p.MaxLTV.IsPositive() {
			return nil, fmt.Errorf("%s requires a positive max LTV, got %s", variant, p.MaxLTV.String())
		}
	default:
		return nil, fmt.Errorf("unknown order variant %d", variant)
	}

	terms := p.Terms
	if terms.Salt == nil {
		salt, err := GenerateSalt()
		if err != nil {
			return nil, err
		}
		terms.Salt = salt
	} else {
		terms.Salt = new(big.Int).Set(terms.Salt)
	}

	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Record{
		terms:       terms,
		variant:     variant,
		engine:      p.Engine,
		debtor:      p.Debtor,
		creditor:    p.Creditor,
		underwriter: p.Underwriter,
		maxLTV:      p.MaxLTV,
		phase:       PhaseNegotiable,
		sigs:        NewSignatureLedger(),
		log:         logger,
	}, nil
}

// Terms returns a copy of the current terms.
func (r *Record) Terms() Terms {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.terms.withSalt(r.terms.Salt)
}

func (r *Record) Variant() Variant            { return r.variant }
func (r *Record) Engine() common.Address      { return r.engine }
func (r *Record) Debtor() common.Address      { return r.debtor }
func (r *Record) Creditor() common.Address    { return r.creditor }
func (r *Record) Underwriter() common.Address { return r.underwriter }
func (r *Record) MaxLTV() decimal.Decimal     { return r.maxLTV }

// Signatures exposes the record's signature ledger.
func (r *Record) Signatures() *SignatureLedger { return r.sigs }

func (r *Record) Phase() Phase {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.phase
}

// SetCollateralAmount fixes the collateral for a max-LTV offer while it is
// still negotiable. The collateral token itself must already be declared in
// the terms; only the amount is open. Once the commitment hash exists the
// terms are frozen and this fails with ErrAlreadySigned.
func (r *Record) SetCollateralAmount(amount decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.variant != VariantMaxLTVOffer {
		return fmt.Errorf("collateral amount is fixed for %s orders", r.variant)
	}
	if r.phase == PhaseCommitted {
		return ErrAlreadySigned
	}
	if r.terms.Collateral.Symbol() == "" {
		return fmt.Errorf("offer declares no collateral token")
	}
	if !amount.IsPositive() {
		return fmt.Errorf("collateral amount must be positive, got %s", amount.String())
	}

	collateral, err := types.NewTokenAmountFromDecimal(amount, r.terms.Collateral.Decimals(), r.terms.Collateral.Symbol())
	if err != nil {
		return err
	}
	r.terms.Collateral = collateral
	return nil
}

// SetPrices records the signed quotes that the collateral check consumes.
// Only meaningful for the offer variants, and only while negotiable.
func (r *Record) SetPrices(principal, collateral *SignedPrice) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.variant == VariantPlain {
		return fmt.Errorf("%s orders carry no price quotes", r.variant)
	}
	if r.phase == PhaseCommitted {
		return ErrAlreadySigned
	}
	if principal == nil || collateral == nil {
		return ErrPricesNotSet
	}
	r.principalPrice = principal
	r.collateralPrice = collateral
	return nil
}

// CommitmentHash derives (and caches) the full engine-bound commitment.
// Deriving it freezes the terms: the record moves to PhaseCommitted and
// the negotiation setters refuse from then on. Status queries use the
// non-freezing path instead, so polling never ends a negotiation.
func (r *Record) CommitmentHash() (common.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.commitmentHashLocked(true)
}

// commitmentHashLocked computes the commitment. With freeze set the hash is
// cached and the record moves to PhaseCommitted; without it the terms stay
// open and the hash is recomputed on the next call, so a later
// SetCollateralAmount is still reflected.
func (r *Record) commitmentHashLocked(freeze bool) (common.Hash, error) {
	if r.hasCommitment {
		return r.commitment, nil
	}
	if r.variant != VariantPlain && r.terms.Collateral.IsZero() {
		return common.Hash{}, ErrCollateralNotSet
	}

	hash, err := CommitmentHash(&r.terms, r.engine)
	if err != nil {
		return common.Hash{}, err
	}
	if freeze {
		r.commitment = hash
		r.hasCommitment = true
		r.phase = PhaseCommitted
	}
	return hash, nil
}

// OfferHash derives the creditor-side hash for the offer variants. It omits
// the collateral amount, so computing it does not freeze the terms.
func (r *Record) OfferHash() (common.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.offerHashLocked()
}

func (r *Record) offerHashLocked() (common.Hash, error) {
	if r.hasOffer {
		return r.offer, nil
	}
	hash, err := OfferHash(&r.terms, r.engine, r.maxLTV)
	if err != nil {
		return common.Hash{}, err
	}
	r.offer = hash
	r.hasOffer = true
	return hash, nil
}

// HashForRole returns the payload a given role signs. The creditor of an
// offer signs the offer hash; every other path signs the full commitment.
// This is a query; it does not freeze the terms.
func (r *Record) HashForRole(role Role) (common.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hashForRoleLocked(role, false)
}

func (r *Record) hashForRoleLocked(role Role, freeze bool) (common.Hash, error) {
	if role == RoleCreditor && r.variant != VariantPlain {
		return r.offerHashLocked()
	}
	return r.commitmentHashLocked(freeze)
}

func (r *Record) expectedSigner(role Role) (common.Address, error) {
	switch role {
	case RoleDebtor:
		return r.debtor, nil
	case RoleCreditor:
		if r.creditor == (common.Address{}) {
			return common.Address{}, ErrMissingCreditor
		}
		return r.creditor, nil
	case RoleUnderwriter:
		if r.underwriter == (common.Address{}) {
			return common.Address{}, ErrMissingUnderwriter
		}
		return r.underwriter, nil
	default:
		return common.Address{}, fmt.Errorf("%w: %d", ErrUnknownRole, role)
	}
}

// IsSignedBy reports whether role's signature is present and recovers to
// the expected party over the role-appropriate hash. A missing, foreign or
// non-recovering signature reads as false, never as an error. The check is
// read-only: it does not cache the hash or advance the phase.
func (r *Record) IsSignedBy(role Role) bool {
	expected, err := r.expectedSigner(role)
	if err != nil {
		return false
	}

	r.mu.Lock()
	hash, err := r.hashForRoleLocked(role, false)
	r.mu.Unlock()
	if err != nil {
		return false
	}

	return r.sigs.IsSignedBy(role, hash, expected)
}

// SignAs runs the signing transition for a role. Signing is idempotent: a
// second call with a valid signature already present returns nil without
// re-signing. For the offer variants, debtor signing is additionally gated
// by the collateral sufficiency check, and each unmet precondition surfaces
// as its own condition: prices-not-set, collateral-not-set, or an
// InsufficientCollateralError carrying the offending numbers. A failed
// precondition leaves the record untouched; once the payload hash is fixed
// for signing, the terms are frozen even if the signer itself fails.
func (r *Record) SignAs(ctx context.Context, role Role, signer RoleSigner) error {
	expected, err := r.expectedSigner(role)
	if err != nil {
		return err
	}

	r.mu.Lock()
	if role == RoleDebtor && r.variant != VariantPlain {
		if err := r.debtorGatesLocked(); err != nil {
			r.mu.Unlock()
			return err
		}
	}
	hash, err := r.hashForRoleLocked(role, true)
	r.mu.Unlock()
	if err != nil {
		return err
	}

	if r.sigs.IsSignedBy(role, hash, expected) {
		return nil
	}

	// The signer may suspend on user approval; never hold the lock here.
	sig, err := signer.SignAsRole(ctx, hash, expected, role)
	if err != nil {
		return fmt.Errorf("failed to sign as %s: %w", role, err)
	}

	if err := r.sigs.Attach(role, expected, sig, hash); err != nil {
		return err
	}

	r.log.Info("signature attached",
		zap.String("role", role.String()),
		zap.String("signer", expected.Hex()),
		zap.String("hash", hash.Hex()),
	)
	return nil
}

// debtorGatesLocked enforces the offer-variant preconditions on the
// debtor-signing transition.
func (r *Record) debtorGatesLocked() error {
	if r.principalPrice == nil || r.collateralPrice == nil {
		return ErrPricesNotSet
	}
	if r.terms.Collateral.IsZero() {
		return ErrCollateralNotSet
	}
	return EvaluateCollateral(
		r.terms.Principal,
		r.terms.Collateral.Decimal(),
		r.terms.Collateral.Symbol(),
		r.principalPrice,
		r.collateralPrice,
		r.maxLTV,
	)
}

func (r *Record) SignAsDebtor(ctx context.Context, signer RoleSigner) error {
	return r.SignAs(ctx, RoleDebtor, signer)
}

func (r *Record) SignAsCreditor(ctx context.Context, signer RoleSigner) error {
	return r.SignAs(ctx, RoleCreditor, signer)
}

func (r *Record) SignAsUnderwriter(ctx context.Context, signer RoleSigner) error {
	return r.SignAs(ctx, RoleUnderwriter, signer)
}

// IsExpired predicts whether the order will still be valid by the time a
// transaction confirms, not merely whether it is expired now: the ledger's
// block-time estimate is added to the current ledger time before comparing.
func (r *Record) IsExpired(ctx context.Context, oracle LedgerOracle) (bool, error) {
	now, err := oracle.CurrentTime(ctx)
	if err != nil {
		return false, err
	}
	expiresAt := r.Terms().ExpiresAt
	return expiresAt.Before(now.Add(oracle.BlockTimeEstimate())), nil
}

// LocalStatus is the oracle-free view: Draft until the debtor's signature
// is valid, DebtorCommitted afterwards. Terminal states need the oracle.
func (r *Record) LocalStatus() Status {
	if r.IsSignedBy(RoleDebtor) {
		return StatusDebtorCommitted
	}
	return StatusDraft
}

// Status derives the full lifecycle state. Fill and cancel status come
// exclusively from the oracle; expiry is derived and only meaningful until
// the order is actually filled or cancelled on the ledger.
func (r *Record) Status(ctx context.Context, oracle LedgerOracle) (Status, error) {
	r.mu.Lock()
	committed := r.hasCommitment
	commitment := r.commitment
	r.mu.Unlock()

	if committed {
		filled, err := oracle.IsFilled(ctx, commitment)
		if err != nil {
			return 0, err
		}
		if filled {
			return StatusFilled, nil
		}

		cancelled, err := oracle.IsCancelled(ctx, commitment)
		if err != nil {
			return 0, err
		}
		if cancelled {
			return StatusCancelled, nil
		}
	}

	expired, err := r.IsExpired(ctx, oracle)
	if err != nil {
		return 0, err
	}
	if expired {
		return StatusExpired, nil
	}

	if r.IsSignedBy(RoleDebtor) {
		return StatusOpen, nil
	}
	return StatusDraft, nil
}

// Fill submits the doubly-signed order for settlement. acting may be the
// zero address, in which case the oracle's current user is used. Once the
// oracle reports the order filled the state is terminal.
func (r *Record) Fill(ctx context.Context, oracle LedgerOracle, acting common.Address) (string, error) {
	if !r.IsSignedBy(RoleDebtor) {
		return "", fmt.Errorf("%w: missing debtor signature", ErrNotFillable)
	}
	if !r.IsSignedBy(RoleCreditor) {
		return "", fmt.Errorf("%w: missing creditor signature", ErrNotFillable)
	}

	commitment, err := r.CommitmentHash()
	if err != nil {
		return "", err
	}

	filled, err := oracle.IsFilled(ctx, commitment)
	if err != nil {
		return "", err
	}
	if filled {
		return "", ErrOrderFilled
	}

	cancelled, err := oracle.IsCancelled(ctx, commitment)
	if err != nil {
		return "", err
	}
	if cancelled {
		return "", fmt.Errorf("%w: order is cancelled", ErrNotFillable)
	}

	expired, err := r.IsExpired(ctx, oracle)
	if err != nil {
		return "", err
	}
	if expired {
		return "", ErrOrderExpired
	}

	if acting == (common.Address{}) {
		acting, err = oracle.CurrentUserAddress(ctx)
		if err != nil {
			return "", err
		}
	}

	receipt, err := oracle.SubmitFill(ctx, r, acting)
	if err != nil {
		return "", err
	}

	r.log.Info("fill submitted",
		zap.String("hash", commitment.Hex()),
		zap.String("acting", acting.Hex()),
		zap.String("receipt", receipt),
	)
	return receipt, nil
}

// Cancel asks the ledger to void the order. Only the debtor may cancel,
// and only before fill. Cancelling an already-cancelled order succeeds
// with an empty receipt; the oracle stays the source of truth.
func (r *Record) Cancel(ctx context.Context, oracle LedgerOracle, acting common.Address) (string, error) {
	var err error
	if acting == (common.Address{}) {
		acting, err = oracle.CurrentUserAddress(ctx)
		if err != nil {
			return "", err
		}
	}
	if acting != r.debtor {
		return "", fmt.Errorf("%w: %s is not %s", ErrNotDebtor, acting.Hex(), r.debtor.Hex())
	}

	commitment, err := r.CommitmentHash()
	if err != nil {
		return "", err
	}

	filled, err := oracle.IsFilled(ctx, commitment)
	if err != nil {
		return "", err
	}
	if filled {
		return "", ErrOrderFilled
	}

	cancelled, err := oracle.IsCancelled(ctx, commitment)
	if err != nil {
		return "", err
	}
	if cancelled {
		return "", nil
	}

	receipt, err := oracle.SubmitCancel(ctx, r, acting)
	if err != nil {
		return "", err
	}

	r.log.Info("cancel submitted",
		zap.String("hash", commitment.Hex()),
		zap.String("acting", acting.Hex()),
		zap.String("receipt", receipt),
	)
	return receipt, nil
}
