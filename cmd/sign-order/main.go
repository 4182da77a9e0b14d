package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/openlend/debtkernel/pkg/crypto"
	"github.com/openlend/debtkernel/pkg/order"
)

// sign-order reads a debt order in interchange form, signs it for one
// role with a locally held key, and writes the updated order back out.
// The output is ready to POST to a relayer.
//
// Usage:
//
//	sign-order -in order.json -role debtor -key <hex> > signed.json
//
// The key may also come from the SIGNER_KEY environment variable so it
// never lands in shell history.
func main() {
	var (
		inPath   = flag.String("in", "", "path to the order JSON (default: stdin)")
		roleName = flag.String("role", "debtor", "role to sign as: debtor, creditor or underwriter")
		keyHex   = flag.String("key", "", "hex private key (falls back to SIGNER_KEY)")
	)
	flag.Parse()

	if *keyHex == "" {
		*keyHex = os.Getenv("SIGNER_KEY")
	}
	if *keyHex == "" {
		log.Fatal("no signing key: pass -key or set SIGNER_KEY")
	}

	key, err := crypto.FromPrivateKeyHex(*keyHex)
	if err != nil {
		log.Fatalf("bad key: %v", err)
	}

	role, err := order.ParseRole(*roleName)
	if err != nil {
		log.Fatalf("bad role: %v", err)
	}

	var input *os.File
	if *inPath == "" {
		input = os.Stdin
	} else {
		input, err = os.Open(*inPath)
		if err != nil {
			log.Fatalf("open order: %v", err)
		}
		defer input.Close()
	}

	var wire order.InterchangeOrder
	if err := json.NewDecoder(input).Decode(&wire); err != nil {
		log.Fatalf("decode order: %v", err)
	}

	record, err := order.FromInterchange(&wire, nil)
	if err != nil {
		log.Fatalf("invalid order: %v", err)
	}

	signer := order.NewLocalSigner(crypto.NewKeystore(key))
	if err := record.SignAs(context.Background(), role, signer); err != nil {
		log.Fatalf("sign as %s: %v", role, err)
	}
	if !record.IsSignedBy(role) {
		log.Fatalf("signature for %s did not verify after signing", role)
	}

	hash, err := record.HashForRole(role)
	if err != nil {
		log.Fatalf("hash: %v", err)
	}
	fmt.Fprintf(os.Stderr, "signed %s as %s with %s\n", hash.Hex(), role, key.Address().Hex())

	out, err := record.Interchange()
	if err != nil {
		log.Fatalf("serialize order: %v", err)
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("write order: %v", err)
	}
}
