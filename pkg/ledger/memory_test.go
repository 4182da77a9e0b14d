package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/openlend/debtkernel/pkg/crypto"
	"github.com/openlend/debtkernel/pkg/order"
	"github.com/openlend/debtkernel/pkg/types"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time                         { return c.now }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

func testRecord(t *testing.T) *order.Record {
	t.Helper()

	principal, err := types.NewTokenAmountFromDecimal(decimal.RequireFromString("100"), 18, "DAI")
	if err != nil {
		t.Fatalf("amount: %v", err)
	}
	rate, err := types.NewInterestRateFromPercent(decimal.RequireFromString("2.5"))
	if err != nil {
		t.Fatalf("rate: %v", err)
	}
	term, err := types.ParseTimeInterval(3, "months")
	if err != nil {
		t.Fatalf("term: %v", err)
	}
	debtor, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("key: %v", err)
	}

	r, err := order.New(order.Params{
		Terms: order.Terms{
			Principal:    principal,
			InterestRate: rate,
			TermLength:   term,
			ExpiresAt:    time.Date(2030, time.January, 1, 0, 0, 0, 0, time.UTC),
		},
		Variant: order.VariantPlain,
		Engine:  common.HexToAddress("0x00000000000000000000000000000000000000e1"),
		Debtor:  debtor.Address(),
	})
	if err != nil {
		t.Fatalf("order.New: %v", err)
	}
	return r
}

func TestMemoryLedgerFillCancel(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(fixedClock{now: time.Date(2029, time.June, 1, 0, 0, 0, 0, time.UTC)}, 15*time.Second)
	r := testRecord(t)
	hash, err := r.CommitmentHash()
	if err != nil {
		t.Fatalf("CommitmentHash: %v", err)
	}

	if filled, _ := l.IsFilled(ctx, hash); filled {
		t.Fatal("fresh ledger reports a fill")
	}

	receipt, err := l.SubmitFill(ctx, r, common.Address{})
	if err != nil {
		t.Fatalf("SubmitFill: %v", err)
	}
	if receipt == "" {
		t.Error("empty fill receipt")
	}
	if filled, _ := l.IsFilled(ctx, hash); !filled {
		t.Error("fill not recorded")
	}

	// Re-submitting returns the original receipt.
	again, _ := l.SubmitFill(ctx, r, common.Address{})
	if again != receipt {
		t.Errorf("repeat fill got receipt %q, want %q", again, receipt)
	}

	other := testRecord(t)
	cancelReceipt, err := l.SubmitCancel(ctx, other, common.Address{})
	if err != nil {
		t.Fatalf("SubmitCancel: %v", err)
	}
	if cancelReceipt == receipt {
		t.Error("fill and cancel share a receipt")
	}
	otherHash, _ := other.CommitmentHash()
	if cancelled, _ := l.IsCancelled(ctx, otherHash); !cancelled {
		t.Error("cancel not recorded")
	}
	if filled, _ := l.IsFilled(ctx, otherHash); filled {
		t.Error("cancel leaked into fill state")
	}
}

func TestMemoryLedgerClockAndUser(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2029, time.June, 1, 12, 0, 0, 0, time.UTC)
	l := NewMemoryLedger(fixedClock{now: now}, 15*time.Second)

	got, err := l.CurrentTime(ctx)
	if err != nil {
		t.Fatalf("CurrentTime: %v", err)
	}
	if !got.Equal(now) {
		t.Errorf("CurrentTime = %v, want %v", got, now)
	}
	if l.BlockTimeEstimate() != 15*time.Second {
		t.Errorf("BlockTimeEstimate = %v", l.BlockTimeEstimate())
	}

	user := common.HexToAddress("0xAA00000000000000000000000000000000000000")
	l.SetCurrentUser(user)
	addr, _ := l.CurrentUserAddress(ctx)
	if addr != user {
		t.Errorf("CurrentUserAddress = %s, want %s", addr.Hex(), user.Hex())
	}
}

func TestMemoryLedgerConcurrentSubmits(t *testing.T) {
	ctx := context.Background()
	l := NewMemoryLedger(nil, 0)
	r := testRecord(t)

	receipts := make([]string, 8)
	var wg sync.WaitGroup
	for i := 0; i < len(receipts); i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			receipt, err := l.SubmitFill(ctx, r, common.Address{})
			if err != nil {
				t.Errorf("SubmitFill: %v", err)
			}
			receipts[i] = receipt
		}(i)
	}
	wg.Wait()

	for _, receipt := range receipts[1:] {
		if receipt != receipts[0] {
			t.Fatalf("concurrent fills produced distinct receipts: %v", receipts)
		}
	}
}
