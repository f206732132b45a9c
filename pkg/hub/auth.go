package hub

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
)

var (
	ErrAuthPubkeyMismatch = errors.New("auth pubkey does not match signing pubkey")
	ErrInvalidSignature   = errors.New("invalid auth signature")
)

const (
	pubkeyField    = "pubkey"
	signatureField = "signature"
)

func signData(privateKey *btcec.PrivateKey, data string) string {
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(ecdsa.Sign(privateKey, hash[:]).Serialize())
}

// SignJson adds the pubkey of the wif and a signature over the canonical
// serialization of the data.
func SignJson(data map[string]any, wif *btcutil.WIF) (map[string]any, error) {
	pubkey := hex.EncodeToString(wif.SerializePubKey())
	if existing, ok := data[pubkeyField]; ok && existing != pubkey {
		return nil, fmt.Errorf("%w: given %v, signing with %s", ErrAuthPubkeyMismatch, existing, pubkey)
	}

	signed := make(map[string]any, len(data)+2)
	for key, value := range data {
		signed[key] = value
	}
	signed[pubkeyField] = pubkey

	serialized, err := canonicalJson(signed)
	if err != nil {
		return nil, err
	}
	signed[signatureField] = signData(wif.PrivKey, serialized)
	return signed, nil
}

// VerifyJson checks the signature of signed data and returns the pubkey that signed it.
func VerifyJson(data map[string]any) (string, error) {
	pubkeyHex, ok := data[pubkeyField].(string)
	if !ok {
		return "", fmt.Errorf("%w: missing pubkey", ErrInvalidSignature)
	}
	signatureHex, ok := data[signatureField].(string)
	if !ok {
		return "", fmt.Errorf("%w: missing signature", ErrInvalidSignature)
	}

	unsigned := make(map[string]any, len(data))
	for key, value := range data {
		if key != signatureField {
			unsigned[key] = value
		}
	}
	serialized, err := canonicalJson(unsigned)
	if err != nil {
		return "", err
	}

	rawPubkey, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	pubkey, err := btcec.ParsePubKey(rawPubkey)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	rawSignature, err := hex.DecodeString(signatureHex)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	signature, err := ecdsa.ParseDERSignature(rawSignature)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	hash := sha256.Sum256([]byte(serialized))
	if !signature.Verify(hash[:], pubkey) {
		return "", fmt.Errorf("%w: pubkey %s", ErrInvalidSignature, pubkeyHex)
	}
	return pubkeyHex, nil
}
