package onchain

import (
	"errors"
	"fmt"
	"slices"

	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

type Output struct {
	TxId  string
	Vout  uint32
	Value uint64
}

type TxProvider interface {
	GetRawTransaction(txId string) (string, error)
	BroadcastTransaction(txHex string) (string, error)
}

type ChainProvider interface {
	TxProvider
	// GetUnspentOutputs returns the confirmed unspent outputs of address
	GetUnspentOutputs(address string) ([]*Output, error)
	Disconnect()
}

type Backend string

const (
	BackendHub      Backend = "hub"
	BackendEsplora  Backend = "esplora"
	BackendElectrum Backend = "electrum"
)

func ParseBackend(backend string) (Backend, error) {
	switch Backend(backend) {
	case BackendHub, "":
		return BackendHub, nil
	case BackendEsplora:
		return BackendEsplora, nil
	case BackendElectrum:
		return BackendElectrum, nil
	}
	return "", fmt.Errorf("invalid chain backend: %s", backend)
}

var ErrInputNotUnspent = errors.New("input does not spend an unspent output of the address")

type Onchain struct {
	Chain   ChainProvider
	Network *mpc.Network
}

func (onchain *Onchain) GetTransaction(txId string) (*mpc.BtcTransaction, error) {
	if txId == "" {
		return nil, errors.New("empty transaction id")
	}
	hex, err := onchain.Chain.GetRawTransaction(txId)
	if err != nil {
		return nil, err
	}
	return mpc.NewBtcTxFromHex(hex)
}

func (onchain *Onchain) BroadcastTransaction(rawTx string) (string, error) {
	txId, err := onchain.Chain.BroadcastTransaction(rawTx)
	if err != nil {
		return "", err
	}
	logger.Infof("Broadcast transaction %s", txId)
	return txId, nil
}

// CheckSpendsUnspent makes sure every input of the transaction spends a
// currently unspent output of the address.
func (onchain *Onchain) CheckSpendsUnspent(rawTx string, address string) error {
	_, err := onchain.InputValue(rawTx, address)
	return err
}

// InputValue returns the value of the unspent outputs of address the
// transaction spends. Every input has to spend one of them.
func (onchain *Onchain) InputValue(rawTx string, address string) (uint64, error) {
	transaction, err := mpc.NewBtcTxFromHex(rawTx)
	if err != nil {
		return 0, err
	}
	outputs, err := onchain.Chain.GetUnspentOutputs(address)
	if err != nil {
		return 0, fmt.Errorf("could not get unspent outputs of %s: %w", address, err)
	}
	var value uint64
	for _, input := range transaction.MsgTx().TxIn {
		previous := input.PreviousOutPoint
		index := slices.IndexFunc(outputs, func(output *Output) bool {
			return output.TxId == previous.Hash.String() && output.Vout == previous.Index
		})
		if index == -1 {
			return 0, fmt.Errorf("%w: %s", ErrInputNotUnspent, previous)
		}
		value += outputs[index].Value
	}
	return value, nil
}

// Balance sums the value of all unspent outputs of the address.
func (onchain *Onchain) Balance(address string) (uint64, error) {
	outputs, err := onchain.Chain.GetUnspentOutputs(address)
	if err != nil {
		return 0, err
	}
	var balance uint64
	for _, output := range outputs {
		balance += output.Value
	}
	return balance, nil
}
