package order

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openlend/debtkernel/pkg/crypto"
)

// Role identifies which party a signature speaks for.
type Role uint8

const (
	RoleDebtor Role = iota + 1
	RoleCreditor
	RoleUnderwriter
)

func (r Role) String() string {
	switch r {
	case RoleDebtor:
		return "debtor"
	case RoleCreditor:
		return "creditor"
	case RoleUnderwriter:
		return "underwriter"
	default:
		return "unknown"
	}
}

// ParseRole normalizes a role name from interchange payloads.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debtor":
		return RoleDebtor, nil
	case "creditor":
		return RoleCreditor, nil
	case "underwriter":
		return RoleUnderwriter, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownRole, s)
	}
}

// ECDSASignature is a secp256k1 signature in (r, s, v) form. The zero value
// means "absent".
type ECDSASignature struct {
	R [32]byte
	S [32]byte
	V byte
}

// SignatureFromBytes splits a 65-byte [R || S || V] signature.
func SignatureFromBytes(sig []byte) (ECDSASignature, error) {
	if len(sig) != 65 {
		return ECDSASignature{}, fmt.Errorf("signature must be 65 bytes, got %d", len(sig))
	}
	var out ECDSASignature
	copy(out.R[:], sig[:32])
	copy(out.S[:], sig[32:64])
	out.V = sig[64]
	return out, nil
}

// Bytes returns the 65-byte [R || S || V] wire form.
func (s ECDSASignature) Bytes() []byte {
	out := make([]byte, 65)
	copy(out[:32], s.R[:])
	copy(out[32:64], s.S[:])
	out[64] = s.V
	return out
}

func (s ECDSASignature) IsZero() bool {
	return s == ECDSASignature{}
}

type signatureJSON struct {
	R string `json:"r"`
	S string `json:"s"`
	V byte   `json:"v"`
}

func (s ECDSASignature) MarshalJSON() ([]byte, error) {
	return json.Marshal(signatureJSON{
		R: "0x" + hex.EncodeToString(s.R[:]),
		S: "0x" + hex.EncodeToString(s.S[:]),
		V: s.V,
	})
}

func (s *ECDSASignature) UnmarshalJSON(data []byte) error {
	var raw signatureJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r, err := hex.DecodeString(strings.TrimPrefix(raw.R, "0x"))
	if err != nil || len(r) != 32 {
		return fmt.Errorf("invalid signature r component: %q", raw.R)
	}
	sc, err := hex.DecodeString(strings.TrimPrefix(raw.S, "0x"))
	if err != nil || len(sc) != 32 {
		return fmt.Errorf("invalid signature s component: %q", raw.S)
	}
	copy(s.R[:], r)
	copy(s.S[:], sc)
	s.V = raw.V
	return nil
}

// SignatureEntry is one role's signature over a commitment hash.
type SignatureEntry struct {
	Role      Role
	Signer    common.Address
	Signature ECDSASignature
}

// SignatureLedger accumulates at most one signature per role. Validity is
// always judged live against a hash: an entry that does not recover to its
// claimed signer reads as absent, never as an error, so polling stays simple.
type SignatureLedger struct {
	mu      sync.RWMutex
	entries map[Role]SignatureEntry
}

func NewSignatureLedger() *SignatureLedger {
	return &SignatureLedger{entries: make(map[Role]SignatureEntry)}
}

// Attach stores a signature for role after verifying it recovers to signer
// over hash. If a valid signature for the role is already present the call
// is a no-op; two racing attaches for the same role resolve to one entry.
func (l *SignatureLedger) Attach(role Role, signer common.Address, sig ECDSASignature, hash common.Hash) error {
	if !crypto.VerifySignature(signer, hash.Bytes(), sig.Bytes()) {
		return fmt.Errorf("%w: role %s, signer %s", ErrSignatureMismatch, role, signer.Hex())
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if existing, ok := l.entries[role]; ok {
		if crypto.VerifySignature(existing.Signer, hash.Bytes(), existing.Signature.Bytes()) {
			return nil
		}
	}
	l.entries[role] = SignatureEntry{Role: role, Signer: signer, Signature: sig}
	return nil
}

// restore stores an entry without verification. Used when rehydrating a
// record from interchange; IsSignedBy still judges validity live.
func (l *SignatureLedger) restore(entry SignatureEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[entry.Role] = entry
}

// Get returns the stored entry for role, if any. Presence does not imply
// validity.
func (l *SignatureLedger) Get(role Role) (SignatureEntry, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	entry, ok := l.entries[role]
	return entry, ok
}

// IsSignedBy reports whether a signature for role is present and recovers
// to expected over hash.
func (l *SignatureLedger) IsSignedBy(role Role, hash common.Hash, expected common.Address) bool {
	entry, ok := l.Get(role)
	if !ok || entry.Signer != expected {
		return false
	}
	return crypto.VerifySignature(expected, hash.Bytes(), entry.Signature.Bytes())
}

// Len returns the number of stored entries, valid or not.
func (l *SignatureLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
