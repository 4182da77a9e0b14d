package order

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openlend/debtkernel/pkg/crypto"
)

// LedgerOracle is the external system of record. It is the only authority
// on fill/cancel status and ledger time; the core never infers terminal
// states locally and never retries oracle failures — retry policy belongs
// to the oracle implementation.
type LedgerOracle interface {
	CurrentTime(ctx context.Context) (time.Time, error)
	IsFilled(ctx context.Context, commitment common.Hash) (bool, error)
	IsCancelled(ctx context.Context, commitment common.Hash) (bool, error)
	SubmitFill(ctx context.Context, r *Record, acting common.Address) (string, error)
	SubmitCancel(ctx context.Context, r *Record, acting common.Address) (string, error)
	CurrentUserAddress(ctx context.Context) (common.Address, error)

	// BlockTimeEstimate is the ledger's expected block production interval.
	// Expiry checks add it to the current time so an order that would die
	// before a transaction confirms already reads as expired.
	BlockTimeEstimate() time.Duration
}

// RoleSigner produces a signature over a commitment hash on behalf of a
// role. Implementations hold the private key material (or forward to a
// wallet that does) and may suspend on external user approval.
type RoleSigner interface {
	SignAsRole(ctx context.Context, hash common.Hash, signer common.Address, role Role) (ECDSASignature, error)
}

// LocalSigner signs with keys held in an in-process keystore.
type LocalSigner struct {
	Keys *crypto.Keystore
}

func NewLocalSigner(keys *crypto.Keystore) *LocalSigner {
	return &LocalSigner{Keys: keys}
}

func (s *LocalSigner) SignAsRole(ctx context.Context, hash common.Hash, signer common.Address, role Role) (ECDSASignature, error) {
	if err := ctx.Err(); err != nil {
		return ECDSASignature{}, err
	}
	raw, err := s.Keys.SignHash(hash, signer)
	if err != nil {
		return ECDSASignature{}, err
	}
	return SignatureFromBytes(raw)
}
