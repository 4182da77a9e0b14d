package order

import (
	"encoding/json"
	"errors"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

func TestSignatureFromBytesRoundTrip(t *testing.T) {
	key := mustKey(t)
	hash := ethcrypto.Keccak256Hash([]byte("payload"))

	raw, err := key.Sign(hash.Bytes())
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	sig, err := SignatureFromBytes(raw)
	if err != nil {
		t.Fatalf("SignatureFromBytes: %v", err)
	}
	if string(sig.Bytes()) != string(raw) {
		t.Error("Bytes() does not reproduce the original signature")
	}
	if sig.IsZero() {
		t.Error("real signature reads as zero")
	}

	if _, err := SignatureFromBytes([]byte{1, 2, 3}); err == nil {
		t.Error("short signature accepted")
	}
}

func TestSignatureJSON(t *testing.T) {
	key := mustKey(t)
	hash := ethcrypto.Keccak256Hash([]byte("payload"))
	raw, _ := key.Sign(hash.Bytes())
	sig, _ := SignatureFromBytes(raw)

	data, err := json.Marshal(sig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back ECDSASignature
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back != sig {
		t.Error("signature JSON round-trip changed (r, s, v)")
	}

	if err := json.Unmarshal([]byte(`{"r":"0x12","s":"0x34","v":27}`), &back); err == nil {
		t.Error("truncated components accepted")
	}
}

func TestSignatureLedgerAttach(t *testing.T) {
	key := mustKey(t)
	hash := ethcrypto.Keccak256Hash([]byte("commitment"))
	raw, _ := key.Sign(hash.Bytes())
	sig, _ := SignatureFromBytes(raw)

	ledger := NewSignatureLedger()

	if ledger.IsSignedBy(RoleDebtor, hash, key.Address()) {
		t.Error("empty ledger reports a signature")
	}

	if err := ledger.Attach(RoleDebtor, key.Address(), sig, hash); err != nil {
		t.Fatalf("attach: %v", err)
	}
	if !ledger.IsSignedBy(RoleDebtor, hash, key.Address()) {
		t.Error("valid signature not reported")
	}
	if ledger.IsSignedBy(RoleCreditor, hash, key.Address()) {
		t.Error("debtor signature leaked into creditor role")
	}

	// Re-attaching over a valid entry is a no-op.
	other := mustKey(t)
	otherHash := ethcrypto.Keccak256Hash([]byte("other"))
	otherRaw, _ := other.Sign(otherHash.Bytes())
	otherSig, _ := SignatureFromBytes(otherRaw)
	if err := ledger.Attach(RoleDebtor, key.Address(), sig, hash); err != nil {
		t.Fatalf("idempotent attach errored: %v", err)
	}
	entry, _ := ledger.Get(RoleDebtor)
	if entry.Signature != sig {
		t.Error("idempotent attach replaced the stored signature")
	}

	// A signature that does not recover to the claimed signer is refused.
	if err := ledger.Attach(RoleCreditor, key.Address(), otherSig, hash); !errors.Is(err, ErrSignatureMismatch) {
		t.Errorf("mismatched attach: err = %v, want ErrSignatureMismatch", err)
	}
	if ledger.Len() != 1 {
		t.Errorf("ledger has %d entries, want 1", ledger.Len())
	}
}

func TestSignatureLedgerInvalidReadsAbsent(t *testing.T) {
	key := mustKey(t)
	hash := ethcrypto.Keccak256Hash([]byte("commitment"))

	ledger := NewSignatureLedger()
	ledger.restore(SignatureEntry{Role: RoleDebtor, Signer: key.Address(), Signature: ECDSASignature{V: 1}})

	if ledger.IsSignedBy(RoleDebtor, hash, key.Address()) {
		t.Error("garbage signature reported as valid")
	}
	if _, ok := ledger.Get(RoleDebtor); !ok {
		t.Error("restored entry should still be present")
	}
}

func TestParseRole(t *testing.T) {
	for in, want := range map[string]Role{
		"debtor": RoleDebtor, "Creditor": RoleCreditor, " underwriter ": RoleUnderwriter,
	} {
		got, err := ParseRole(in)
		if err != nil {
			t.Errorf("ParseRole(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("ParseRole(%q) = %v, want %v", in, got, want)
		}
	}
	if _, err := ParseRole("guarantor"); !errors.Is(err, ErrUnknownRole) {
		t.Errorf("unknown role: err = %v", err)
	}
}
