package order

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestInterchangeRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newTestParties(t)
	r := newPlainRecord(t, p)

	if err := r.SignAsDebtor(ctx, p.signer); err != nil {
		t.Fatalf("debtor sign: %v", err)
	}
	if err := r.SignAsCreditor(ctx, p.signer); err != nil {
		t.Fatalf("creditor sign: %v", err)
	}

	wire, err := r.Interchange()
	if err != nil {
		t.Fatalf("Interchange: %v", err)
	}
	data, err := json.Marshal(wire)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var decoded InterchangeOrder
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	back, err := FromInterchange(&decoded, nil)
	if err != nil {
		t.Fatalf("FromInterchange: %v", err)
	}

	if !back.Terms().Equal(r.Terms()) {
		t.Error("terms changed across the wire")
	}

	origHash, _ := r.CommitmentHash()
	backHash, err := back.CommitmentHash()
	if err != nil {
		t.Fatalf("CommitmentHash: %v", err)
	}
	if backHash != origHash {
		t.Errorf("commitment hash changed: %s vs %s", backHash.Hex(), origHash.Hex())
	}

	if !back.IsSignedBy(RoleDebtor) {
		t.Error("debtor signature did not survive the round trip")
	}
	if !back.IsSignedBy(RoleCreditor) {
		t.Error("creditor signature did not survive the round trip")
	}
}

func TestFromInterchangeRejectsHashMismatch(t *testing.T) {
	p := newTestParties(t)
	r := newPlainRecord(t, p)
	if _, err := r.CommitmentHash(); err != nil {
		t.Fatalf("CommitmentHash: %v", err)
	}

	wire, err := r.Interchange()
	if err != nil {
		t.Fatalf("Interchange: %v", err)
	}
	// Tamper with a hashed field but keep the advertised hash.
	wire.PrincipalAmount = "999000000000000000000"

	if _, err := FromInterchange(wire, nil); err == nil ||
		!strings.Contains(err.Error(), "commitment hash mismatch") {
		t.Errorf("tampered payload: err = %v, want hash mismatch", err)
	}
}

// A tampered signature on the wire decodes fine but reads as absent; the
// payload's terms are still usable.
func TestFromInterchangeTamperedSignatureReadsAbsent(t *testing.T) {
	ctx := context.Background()
	p := newTestParties(t)
	r := newPlainRecord(t, p)
	if err := r.SignAsDebtor(ctx, p.signer); err != nil {
		t.Fatalf("debtor sign: %v", err)
	}

	wire, err := r.Interchange()
	if err != nil {
		t.Fatalf("Interchange: %v", err)
	}
	wire.DebtorSignature.R[0] ^= 0xff

	back, err := FromInterchange(wire, nil)
	if err != nil {
		t.Fatalf("FromInterchange: %v", err)
	}
	if back.IsSignedBy(RoleDebtor) {
		t.Error("tampered debtor signature reads as valid")
	}
	if back.LocalStatus() != StatusDraft {
		t.Errorf("status = %v, want draft", back.LocalStatus())
	}
}

func TestInterchangeNegotiableOfferOmitsHash(t *testing.T) {
	p := newTestParties(t)
	r := newOfferRecord(t, p, "60")

	wire, err := r.Interchange()
	if err != nil {
		t.Fatalf("Interchange: %v", err)
	}
	if wire.CommitmentHash != "" {
		t.Error("negotiable offer travelled with a commitment hash")
	}
	if wire.Variant != "max-ltv-offer" || wire.MaxLTV != "60" {
		t.Errorf("offer fields on the wire: variant %q maxLTV %q", wire.Variant, wire.MaxLTV)
	}

	back, err := FromInterchange(wire, nil)
	if err != nil {
		t.Fatalf("FromInterchange: %v", err)
	}
	if back.Variant() != VariantMaxLTVOffer {
		t.Errorf("variant = %v, want max-ltv-offer", back.Variant())
	}
	if back.Phase() != PhaseNegotiable {
		t.Error("rebuilt offer is not negotiable")
	}
}

func TestFromInterchangeRejectsGarbage(t *testing.T) {
	p := newTestParties(t)
	r := newPlainRecord(t, p)
	wire, err := r.Interchange()
	if err != nil {
		t.Fatalf("Interchange: %v", err)
	}

	cases := map[string]func(*InterchangeOrder){
		"bad salt":      func(w *InterchangeOrder) { w.Salt = "not-a-number" },
		"bad rate":      func(w *InterchangeOrder) { w.InterestRateRaw = "xx" },
		"bad variant":   func(w *InterchangeOrder) { w.Variant = "exotic" },
		"bad principal": func(w *InterchangeOrder) { w.PrincipalAmount = "12.5" },
		"no token":      func(w *InterchangeOrder) { w.PrincipalToken = "" },
	}
	for name, corrupt := range cases {
		bad := *wire
		corrupt(&bad)
		if _, err := FromInterchange(&bad, nil); err == nil {
			t.Errorf("%s: accepted", name)
		}
	}
}

// misChecksum upper-cases one letter of the all-lowercase form, yielding a
// mixed-case address that fails EIP-55 validation.
func misChecksum(addr string) string {
	body := strings.ToLower(addr[2:])
	for i, c := range body {
		if c >= 'a' && c <= 'f' {
			return "0x" + body[:i] + strings.ToUpper(string(c)) + body[i+1:]
		}
	}
	return addr
}

// A mis-checksummed or wrong-length address must fail the decode outright.
// common.HexToAddress would silently truncate or re-interpret these, turning
// a corrupt payload into a different party.
func TestFromInterchangeRejectsMalformedAddresses(t *testing.T) {
	p := newTestParties(t)
	r := newPlainRecord(t, p)
	wire, err := r.Interchange()
	if err != nil {
		t.Fatalf("Interchange: %v", err)
	}

	cases := map[string]func(*InterchangeOrder){
		"debtor bad checksum": func(w *InterchangeOrder) { w.Debtor = misChecksum(w.Debtor) },
		"debtor oversized":    func(w *InterchangeOrder) { w.Debtor += "ff" },
		"debtor truncated":    func(w *InterchangeOrder) { w.Debtor = w.Debtor[:len(w.Debtor)-2] },
		"engine bad checksum": func(w *InterchangeOrder) { w.Engine = misChecksum(w.Engine) },
		"creditor oversized":  func(w *InterchangeOrder) { w.Creditor += "00" },
		"kernel non-hex":      func(w *InterchangeOrder) { w.KernelVersion = "0x" + strings.Repeat("zz", 20) },
	}
	for name, corrupt := range cases {
		bad := *wire
		corrupt(&bad)
		if _, err := FromInterchange(&bad, nil); err == nil ||
			!strings.Contains(err.Error(), "address") {
			t.Errorf("%s: err = %v, want address rejection", name, err)
		}
	}

	// The unmodified payload still decodes; Interchange emits checksummed
	// addresses that the strict parser accepts.
	if _, err := FromInterchange(wire, nil); err != nil {
		t.Errorf("checksummed payload rejected: %v", err)
	}
}
