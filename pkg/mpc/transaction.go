package mpc

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

type BtcTransaction struct {
	btcutil.Tx
}

func NewBtcTxFromHex(hexString string) (*BtcTransaction, error) {
	transactionBytes, err := hex.DecodeString(hexString)
	if err != nil {
		return nil, err
	}

	btcTx, err := btcutil.NewTxFromBytes(transactionBytes)
	if err != nil {
		return nil, err
	}
	return &BtcTransaction{Tx: *btcTx}, nil
}

func NewBtcTx(msgTx *wire.MsgTx) *BtcTransaction {
	return &BtcTransaction{Tx: *btcutil.NewTx(msgTx)}
}

func (transaction *BtcTransaction) Hash() string {
	return transaction.MsgTx().TxHash().String()
}

func (transaction *BtcTransaction) Serialize() (string, error) {
	var transactionHex bytes.Buffer
	err := transaction.MsgTx().Serialize(&transactionHex)

	if err != nil {
		return "", err
	}

	return hex.EncodeToString(transactionHex.Bytes()), nil
}

func (transaction *BtcTransaction) VoutValue(vout uint32) (uint64, error) {
	outputs := transaction.MsgTx().TxOut
	if int(vout) >= len(outputs) {
		return 0, fmt.Errorf("vout %d out of range", vout)
	}
	return uint64(outputs[vout].Value), nil
}

// FindVout returns the first output paying to the given address.
func (transaction *BtcTransaction) FindVout(network *Network, addressToFind string) (uint32, uint64, error) {
	for vout, output := range transaction.MsgTx().TxOut {
		_, outputAddresses, _, err := txscript.ExtractPkScriptAddrs(output.PkScript, network.Btc)

		// Just ignore outputs we can't decode
		if err != nil {
			continue
		}

		for _, outputAddress := range outputAddresses {
			if outputAddress.EncodeAddress() == addressToFind {
				return uint32(vout), uint64(output.Value), nil
			}
		}
	}
	return 0, 0, errors.New("Could not find address in transaction")
}

// TxId returns the id of a hex encoded transaction.
func TxId(rawTx string) (string, error) {
	transaction, err := NewBtcTxFromHex(rawTx)
	if err != nil {
		return "", err
	}
	return transaction.Hash(), nil
}

// ScriptAddress returns the pay to script hash address of a redeem script.
func ScriptAddress(script []byte, network *Network) (*btcutil.AddressScriptHash, error) {
	return btcutil.NewAddressScriptHash(script, network.Btc)
}

func scriptHashPkScript(script []byte) ([]byte, error) {
	address, err := btcutil.NewAddressScriptHashFromHash(btcutil.Hash160(script), MainNet.Btc)
	if err != nil {
		return nil, err
	}
	return txscript.PayToAddrScript(address)
}
