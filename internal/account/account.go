// Package account maps private keys to addresses and creates new keys.
package account

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidKey is returned when a key is not a valid secp256k1 scalar.
var ErrInvalidKey = errors.New("invalid private key")

// Account pairs a key with the address derived from it.
type Account struct {
	Key     *ecdsa.PrivateKey
	Address common.Address
}

// String never prints the key.
func (a Account) String() string {
	return a.Address.Hex()
}

// KeyHex returns the 0x-prefixed hex form of the key.
func (a Account) KeyHex() string {
	return KeyHex(a.Key)
}

// ParseKey parses a hex ECDSA private key (with / without 0x).
func ParseKey(keyHex string) (*ecdsa.PrivateKey, error) {
	h := strings.TrimPrefix(strings.TrimSpace(keyHex), "0x")
	h = strings.TrimPrefix(h, "0X")
	if h == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidKey)
	}
	prv, err := gethcrypto.HexToECDSA(h)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	return prv, nil
}

// Derive returns the checksummed address for keyHex.
func Derive(keyHex string) (common.Address, error) {
	prv, err := ParseKey(keyHex)
	if err != nil {
		return common.Address{}, err
	}
	return gethcrypto.PubkeyToAddress(prv.PublicKey), nil
}

// FromHex parses keyHex and derives its address in one step.
func FromHex(keyHex string) (Account, error) {
	prv, err := ParseKey(keyHex)
	if err != nil {
		return Account{}, err
	}
	return FromKey(prv), nil
}

// FromKey pairs an already parsed key with its address.
func FromKey(prv *ecdsa.PrivateKey) Account {
	return Account{Key: prv, Address: gethcrypto.PubkeyToAddress(prv.PublicKey)}
}

// Generate creates a fresh random account.
func Generate() (Account, error) {
	prv, err := gethcrypto.GenerateKey()
	if err != nil {
		return Account{}, fmt.Errorf("generate key: %w", err)
	}
	return FromKey(prv), nil
}

// KeyHex encodes a private key as 0x-prefixed hex.
func KeyHex(prv *ecdsa.PrivateKey) string {
	if prv == nil {
		return ""
	}
	return hexutil.Encode(gethcrypto.FromECDSA(prv))
}

// Mask hides everything but the edges of a secret for display.
func Mask(h string) string {
	h = strings.TrimSpace(h)
	if len(h) <= 10 {
		return "***"
	}
	return h[:6] + "…" + h[len(h)-4:]
}

// Checksum renders addr in EIP-55 mixed case.
func Checksum(addr common.Address) string {
	return addr.Hex()
}
