// Package crypto handles account keys and their hex address form.
package crypto

import (
	"crypto/ecdsa"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ParseAddress decodes a 0x-prefixed or bare 40 character hex address.
func ParseAddress(s string) ([20]byte, error) {
	var out [20]byte
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(trimmed) != 40 {
		return out, fmt.Errorf("invalid address %q: want 20 hex bytes", s)
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid address %q: %w", s, err)
	}
	copy(out[:], raw)
	return out, nil
}

// FormatAddress renders an address as EIP-55 checksummed hex.
func FormatAddress(addr [20]byte) string {
	return common.Address(addr).Hex()
}

// ParseHash decodes a 32 byte hex value such as a request id or key hash.
func ParseHash(s string) ([32]byte, error) {
	var out [32]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(s), "0x")
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return out, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(raw) != 32 {
		return out, fmt.Errorf("invalid hash %q: want 32 bytes, got %d", s, len(raw))
	}
	copy(out[:], raw)
	return out, nil
}

// --- Key Management ---

type PrivateKey struct {
	*ecdsa.PrivateKey
}

func GeneratePrivateKey() (*PrivateKey, error) {
	key, err := ecdsa.GenerateKey(crypto.S256(), rand.Reader)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// Bytes returns the byte representation of the private key.
func (k *PrivateKey) Bytes() []byte {
	return crypto.FromECDSA(k.PrivateKey)
}

// Address returns the account controlled by the key.
func (k *PrivateKey) Address() [20]byte {
	return crypto.PubkeyToAddress(k.PublicKey)
}

func PrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	key, err := crypto.ToECDSA(b)
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}

// PrivateKeyFromHex parses a hex encoded secp256k1 key.
func PrivateKeyFromHex(s string) (*PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(s), "0x"))
	if err != nil {
		return nil, err
	}
	return &PrivateKey{key}, nil
}
