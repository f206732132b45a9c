package mpc

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
)

func GenerateWif(network *Network) (*btcutil.WIF, error) {
	privateKey, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, err
	}
	return btcutil.NewWIF(privateKey, network.Btc, true)
}

func ParseWif(wif string) (*btcutil.WIF, error) {
	decoded, err := btcutil.DecodeWIF(wif)
	if err != nil {
		return nil, fmt.Errorf("could not decode wif: %w", err)
	}
	return decoded, nil
}

// PubkeyHex returns the hex encoded sec serialization of the key the wif holds.
func PubkeyHex(wif *btcutil.WIF) string {
	return hex.EncodeToString(wif.SerializePubKey())
}

func ParsePubkey(pubkeyHex string) (*btcec.PublicKey, error) {
	raw, err := hex.DecodeString(pubkeyHex)
	if err != nil {
		return nil, err
	}
	return btcec.ParsePubKey(raw)
}

func PubkeyAddress(pubkey []byte, network *Network) (*btcutil.AddressPubKeyHash, error) {
	return btcutil.NewAddressPubKeyHash(btcutil.Hash160(pubkey), network.Btc)
}

func WifAddress(wif *btcutil.WIF, network *Network) (*btcutil.AddressPubKeyHash, error) {
	return PubkeyAddress(wif.SerializePubKey(), network)
}

// NetworkFromWif returns the network the wif was encoded for. Regtest and
// testnet share their prefix, so both report as testnet.
func NetworkFromWif(wif *btcutil.WIF) *Network {
	if wif.IsForNet(MainNet.Btc) {
		return MainNet
	}
	return TestNet
}

// KeyChain resolves the private key for a pubkey.
type KeyChain interface {
	PrivateKey(pubkey []byte) (*btcec.PrivateKey, error)
}

// SingleKey is a KeyChain holding just one key, which is how the client wallet works.
type SingleKey struct {
	Wif *btcutil.WIF
}

func (key SingleKey) PrivateKey(pubkey []byte) (*btcec.PrivateKey, error) {
	if hex.EncodeToString(key.Wif.SerializePubKey()) != hex.EncodeToString(pubkey) {
		return nil, fmt.Errorf("%w: %x", ErrKeyMismatch, pubkey)
	}
	return key.Wif.PrivKey, nil
}
