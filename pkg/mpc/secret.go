package mpc

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
)

const SecretSize = 32

// Secret is a preimage whose hash160 is committed to in deposit and commit scripts.
type Secret struct {
	Value []byte
	Hash  []byte
}

func NewSecret() (*Secret, error) {
	value := make([]byte, SecretSize)
	if _, err := rand.Read(value); err != nil {
		return nil, fmt.Errorf("could not generate secret: %w", err)
	}
	return SecretFromValue(value), nil
}

func SecretFromValue(value []byte) *Secret {
	return &Secret{Value: value, Hash: btcutil.Hash160(value)}
}

func ParseSecret(valueHex string) (*Secret, error) {
	value, err := hex.DecodeString(valueHex)
	if err != nil {
		return nil, fmt.Errorf("could not decode secret: %w", err)
	}
	return SecretFromValue(value), nil
}

func (secret *Secret) HashHex() string {
	return hex.EncodeToString(secret.Hash)
}

func (secret *Secret) String() string {
	return hex.EncodeToString(secret.Value)
}

// Hash160Hex returns the hex encoded hash160 of hex encoded data.
func Hash160Hex(dataHex string) (string, error) {
	data, err := hex.DecodeString(dataHex)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(btcutil.Hash160(data)), nil
}
