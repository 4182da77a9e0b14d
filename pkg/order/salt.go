package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// SaltDecimalWidth is the fixed decimal width of an order salt. The salt
// only decorrelates hashes of otherwise-identical terms; collisions are
// astronomically unlikely and not checked for.
const SaltDecimalWidth = 30

var (
	saltFloor = new(big.Int).Exp(big.NewInt(10), big.NewInt(SaltDecimalWidth-1), nil)
	saltSpan  = new(big.Int).Mul(big.NewInt(9), saltFloor)
)

// GenerateSalt draws a fresh random nonce of exactly SaltDecimalWidth
// decimal digits from crypto/rand.
func GenerateSalt() (*big.Int, error) {
	n, err := rand.Int(rand.Reader, saltSpan)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return n.Add(n, saltFloor), nil
}
