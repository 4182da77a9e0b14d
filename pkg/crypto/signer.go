package crypto

import (
	"crypto/ecdsa"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Key is a secp256k1 key pair used to sign debt-order commitment hashes.
// It is the only type in the repository that holds private signing material.
type Key struct {
	privateKey *ecdsa.PrivateKey
	publicKey  *ecdsa.PublicKey
	address    common.Address
}

// GenerateKey creates a new random secp256k1 key pair.
func GenerateKey() (*Key, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return fromPrivateKey(privateKey)
}

// FromPrivateKeyHex creates a Key from a hex-encoded private key (64 hex chars).
func FromPrivateKeyHex(hexKey string) (*Key, error) {
	privateKey, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return fromPrivateKey(privateKey)
}

func fromPrivateKey(privateKey *ecdsa.PrivateKey) (*Key, error) {
	publicKey, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("failed to cast public key to ECDSA")
	}
	return &Key{
		privateKey: privateKey,
		publicKey:  publicKey,
		address:    crypto.PubkeyToAddress(*publicKey),
	}, nil
}

// Address returns the account address derived from the public key.
func (k *Key) Address() common.Address {
	return k.address
}

// PrivateKeyHex returns the private key as hex string (no 0x prefix).
// Never log this.
func (k *Key) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(k.privateKey))
}

// Sign signs a 32-byte hash and returns a 65-byte [R || S || V] signature.
// V is the recovery id (0 or 1).
func (k *Key) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}
	signature, err := crypto.Sign(hash, k.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	return signature, nil
}

// VerifySignature reports whether signature was created by address for hash.
// Malformed input reads as invalid, never as an error.
func VerifySignature(address common.Address, hash []byte, signature []byte) bool {
	recovered, err := RecoverAddress(hash, signature)
	if err != nil {
		return false
	}
	return recovered == address
}

// RecoverAddress recovers the signer's address from a hash and 65-byte signature.
func RecoverAddress(hash []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if len(hash) != 32 {
		return common.Address{}, fmt.Errorf("invalid hash length: %d", len(hash))
	}

	publicKeyBytes, err := crypto.Ecrecover(hash, signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}

	publicKey, err := crypto.UnmarshalPubkey(publicKeyBytes)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to unmarshal public key: %w", err)
	}

	return crypto.PubkeyToAddress(*publicKey), nil
}

// Keystore holds the keys one participant controls, indexed by address.
// A debtor, creditor and underwriter each run their own keystore; a test
// harness may hold all three.
type Keystore struct {
	mu   sync.RWMutex
	keys map[common.Address]*Key
}

func NewKeystore(keys ...*Key) *Keystore {
	ks := &Keystore{keys: make(map[common.Address]*Key)}
	for _, k := range keys {
		ks.keys[k.Address()] = k
	}
	return ks
}

// Add registers a key. Re-adding the same address replaces the entry.
func (ks *Keystore) Add(k *Key) {
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.keys[k.Address()] = k
}

// Has reports whether the keystore controls signer.
func (ks *Keystore) Has(signer common.Address) bool {
	ks.mu.RLock()
	defer ks.mu.RUnlock()
	_, ok := ks.keys[signer]
	return ok
}

// SignHash signs hash with the key registered for signer.
func (ks *Keystore) SignHash(hash common.Hash, signer common.Address) ([]byte, error) {
	ks.mu.RLock()
	key, ok := ks.keys[signer]
	ks.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no key for address %s", signer.Hex())
	}
	return key.Sign(hash.Bytes())
}
