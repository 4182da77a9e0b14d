package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openlend/debtkernel/pkg/order"
	"github.com/openlend/debtkernel/pkg/util"
)

// MemoryLedger is an in-process LedgerOracle for development and testing:
// fills and cancellations are flags keyed by commitment hash, time comes
// from the injected clock. It has no notion of settlement beyond marking.
type MemoryLedger struct {
	mu        sync.Mutex
	filled    map[common.Hash]string
	cancelled map[common.Hash]string
	seq       int

	clock     util.Clock
	blockTime time.Duration
	user      common.Address
}

func NewMemoryLedger(clock util.Clock, blockTime time.Duration) *MemoryLedger {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &MemoryLedger{
		filled:    make(map[common.Hash]string),
		cancelled: make(map[common.Hash]string),
		clock:     clock,
		blockTime: blockTime,
	}
}

// SetCurrentUser fixes the address used when callers pass the zero
// address as the acting party.
func (l *MemoryLedger) SetCurrentUser(addr common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.user = addr
}

func (l *MemoryLedger) CurrentTime(ctx context.Context) (time.Time, error) {
	return l.clock.Now(), nil
}

func (l *MemoryLedger) IsFilled(ctx context.Context, commitment common.Hash) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.filled[commitment]
	return ok, nil
}

func (l *MemoryLedger) IsCancelled(ctx context.Context, commitment common.Hash) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.cancelled[commitment]
	return ok, nil
}

func (l *MemoryLedger) SubmitFill(ctx context.Context, r *order.Record, acting common.Address) (string, error) {
	commitment, err := r.CommitmentHash()
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if receipt, ok := l.filled[commitment]; ok {
		return receipt, nil
	}
	l.seq++
	receipt := fmt.Sprintf("mem-fill-%d", l.seq)
	l.filled[commitment] = receipt
	return receipt, nil
}

func (l *MemoryLedger) SubmitCancel(ctx context.Context, r *order.Record, acting common.Address) (string, error) {
	commitment, err := r.CommitmentHash()
	if err != nil {
		return "", err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if receipt, ok := l.cancelled[commitment]; ok {
		return receipt, nil
	}
	l.seq++
	receipt := fmt.Sprintf("mem-cancel-%d", l.seq)
	l.cancelled[commitment] = receipt
	return receipt, nil
}

func (l *MemoryLedger) CurrentUserAddress(ctx context.Context) (common.Address, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.user, nil
}

func (l *MemoryLedger) BlockTimeEstimate() time.Duration { return l.blockTime }

var _ order.LedgerOracle = (*MemoryLedger)(nil)
