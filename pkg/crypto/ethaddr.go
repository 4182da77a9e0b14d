package crypto

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// ParseAddress parses a 0x-prefixed 20-byte hex address. All-lowercase and
// all-uppercase input is accepted as-is; mixed-case input must carry a valid
// EIP-55 checksum. Wrong length or a bad checksum is rejected at construction.
func ParseAddress(s string) (common.Address, error) {
	body := strings.TrimPrefix(s, "0x")
	if len(body) != 40 {
		return common.Address{}, fmt.Errorf("address must be 20 bytes (40 hex chars), got %q", s)
	}
	raw, err := hex.DecodeString(body)
	if err != nil {
		return common.Address{}, fmt.Errorf("address is not valid hex: %q", s)
	}

	lower := strings.ToLower(body)
	upper := strings.ToUpper(body)
	if body != lower && body != upper {
		if want := EIP55(raw); "0x"+body != want {
			return common.Address{}, fmt.Errorf("address checksum mismatch: got %q, want %q", s, want)
		}
	}

	return common.BytesToAddress(raw), nil
}

// EIP55 computes the checksummed hex address string from a 20-byte raw address.
func EIP55(addr20 []byte) string {
	hexaddr := hex.EncodeToString(addr20) // lower
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(hexaddr))
	hash := h.Sum(nil)

	out := make([]byte, 2+len(hexaddr))
	copy(out, []byte("0x"))
	for i, c := range []byte(hexaddr) {
		if c >= '0' && c <= '9' {
			out[2+i] = c
			continue
		}
		// each hex char maps to 4 bits; i>>1 picks the byte, even/odd the nibble
		nibble := hash[i>>1]
		if i%2 == 0 {
			nibble = (nibble >> 4) & 0x0f
		} else {
			nibble = nibble & 0x0f
		}
		if nibble >= 8 {
			out[2+i] = byte(strings.ToUpper(string(c))[0])
		} else {
			out[2+i] = c
		}
	}
	return string(out)
}
