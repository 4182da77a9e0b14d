package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/openlend/debtkernel/pkg/crypto"
	"github.com/openlend/debtkernel/pkg/types"
)

var (
	testEngine   = common.HexToAddress("0x00000000000000000000000000000000000000e1")
	testKernel   = common.HexToAddress("0x0000000000000000000000000000000000000101")
	testIssuance = common.HexToAddress("0x0000000000000000000000000000000000000102")
	testTC       = common.HexToAddress("0x0000000000000000000000000000000000000103")
)

func mustAmount(t *testing.T, amount string, decimals uint8, symbol string) types.TokenAmount {
	t.Helper()
	a, err := types.NewTokenAmountFromDecimal(decimal.RequireFromString(amount), decimals, symbol)
	if err != nil {
		t.Fatalf("amount %s %s: %v", amount, symbol, err)
	}
	return a
}

func mustRate(t *testing.T, percent string) types.InterestRate {
	t.Helper()
	r, err := types.NewInterestRateFromPercent(decimal.RequireFromString(percent))
	if err != nil {
		t.Fatalf("rate %s: %v", percent, err)
	}
	return r
}

func mustInterval(t *testing.T, amount int, unit string) types.TimeInterval {
	t.Helper()
	i, err := types.ParseTimeInterval(amount, unit)
	if err != nil {
		t.Fatalf("interval %d %s: %v", amount, unit, err)
	}
	return i
}

// testTerms builds a fully specified set of terms: 100 DAI principal
// against 200 WETH collateral, 2.5% over 3 months.
func testTerms(t *testing.T) Terms {
	t.Helper()
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	return Terms{
		KernelVersion:        testKernel,
		IssuanceVersion:      testIssuance,
		TermsContractVersion: testTC,
		Principal:            mustAmount(t, "100", 18, "DAI"),
		Collateral:           mustAmount(t, "200", 18, "WETH"),
		InterestRate:         mustRate(t, "2.5"),
		TermLength:           mustInterval(t, 3, "months"),
		DebtorFee:            mustAmount(t, "0.1", 18, "DAI"),
		CreditorFee:          mustAmount(t, "0.1", 18, "DAI"),
		ExpiresAt:            time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC),
		Salt:                 salt,
	}
}

func emptyAmount() types.TokenAmount { return types.TokenAmount{} }

func mustKey(t *testing.T) *crypto.Key {
	t.Helper()
	k, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return k
}

// fakeOracle is an in-memory ledger: fill/cancel flip flags keyed by
// commitment hash, time is fixed unless advanced by the test.
type fakeOracle struct {
	mu        sync.Mutex
	now       time.Time
	blockTime time.Duration
	filled    map[common.Hash]bool
	cancelled map[common.Hash]bool
	user      common.Address
}

func newFakeOracle(now time.Time) *fakeOracle {
	return &fakeOracle{
		now:       now,
		blockTime: 15 * time.Second,
		filled:    make(map[common.Hash]bool),
		cancelled: make(map[common.Hash]bool),
	}
}

func (o *fakeOracle) CurrentTime(ctx context.Context) (time.Time, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.now, nil
}

func (o *fakeOracle) advance(d time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.now = o.now.Add(d)
}

func (o *fakeOracle) IsFilled(ctx context.Context, h common.Hash) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.filled[h], nil
}

func (o *fakeOracle) IsCancelled(ctx context.Context, h common.Hash) (bool, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cancelled[h], nil
}

func (o *fakeOracle) SubmitFill(ctx context.Context, r *Record, acting common.Address) (string, error) {
	h, err := r.CommitmentHash()
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.filled[h] = true
	return "fill-tx-1", nil
}

func (o *fakeOracle) SubmitCancel(ctx context.Context, r *Record, acting common.Address) (string, error) {
	h, err := r.CommitmentHash()
	if err != nil {
		return "", err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cancelled[h] = true
	return "cancel-tx-1", nil
}

func (o *fakeOracle) CurrentUserAddress(ctx context.Context) (common.Address, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.user, nil
}

func (o *fakeOracle) BlockTimeEstimate() time.Duration { return o.blockTime }

// quote builds an unsigned test price. The evaluator never verifies the
// provider signature; that is the feed consumer's job.
func quote(price string) *SignedPrice {
	return &SignedPrice{
		Price:     decimal.RequireFromString(price),
		Timestamp: time.Date(2029, time.June, 1, 0, 0, 0, 0, time.UTC),
	}
}
