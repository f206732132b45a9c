package test

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// Chain is an in memory block explorer. Broadcast transactions have to spend
// known unspent outputs with valid signatures.
type Chain struct {
	Network *mpc.Network

	mutex      sync.Mutex
	txs        map[chainhash.Hash]*wire.MsgTx
	order      []chainhash.Hash
	spent      map[wire.OutPoint]chainhash.Hash
	broadcasts []string
}

var _ onchain.ChainProvider = &Chain{}

func NewChain(network *mpc.Network) *Chain {
	return &Chain{
		Network: network,
		txs:     make(map[chainhash.Hash]*wire.MsgTx),
		spent:   make(map[wire.OutPoint]chainhash.Hash),
	}
}

func (chain *Chain) add(tx *wire.MsgTx) {
	hash := tx.TxHash()
	if _, ok := chain.txs[hash]; ok {
		return
	}
	chain.txs[hash] = tx
	chain.order = append(chain.order, hash)
	for _, input := range tx.TxIn {
		chain.spent[input.PreviousOutPoint] = hash
	}
}

// Fund adds a transaction paying value to pkScript out of thin air.
func (chain *Chain) Fund(pkScript []byte, value int64) *wire.OutPoint {
	var origin chainhash.Hash
	_, _ = rand.Read(origin[:])
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&origin, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(value, pkScript))

	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	chain.add(tx)
	hash := tx.TxHash()
	return wire.NewOutPoint(&hash, 0)
}

func (chain *Chain) FundAddress(address btcutil.Address, value int64) (*wire.OutPoint, error) {
	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return nil, err
	}
	return chain.Fund(pkScript, value), nil
}

// FindOutput returns the first output paying to pkScript, spent or not.
func (chain *Chain) FindOutput(pkScript []byte) (*wire.OutPoint, *wire.TxOut) {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	for _, hash := range chain.order {
		for vout, output := range chain.txs[hash].TxOut {
			if string(output.PkScript) == string(pkScript) {
				return wire.NewOutPoint(&hash, uint32(vout)), output
			}
		}
	}
	return nil, nil
}

type ChainOutput struct {
	OutPoint *wire.OutPoint
	Value    int64
}

// Outputs returns every output paying to pkScript, spent or not.
func (chain *Chain) Outputs(pkScript []byte) []ChainOutput {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	var outputs []ChainOutput
	for _, hash := range chain.order {
		for vout, output := range chain.txs[hash].TxOut {
			if string(output.PkScript) == string(pkScript) {
				outputs = append(outputs, ChainOutput{OutPoint: wire.NewOutPoint(&hash, uint32(vout)), Value: output.Value})
			}
		}
	}
	return outputs
}

func (chain *Chain) IsSpent(outpoint wire.OutPoint) bool {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	_, ok := chain.spent[outpoint]
	return ok
}

// SpendingTx returns the transaction spending an outpoint.
func (chain *Chain) SpendingTx(outpoint wire.OutPoint) *wire.MsgTx {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	hash, ok := chain.spent[outpoint]
	if !ok {
		return nil
	}
	return chain.txs[hash]
}

func (chain *Chain) Broadcasts() []string {
	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	return append([]string(nil), chain.broadcasts...)
}

func (chain *Chain) GetRawTransaction(txId string) (string, error) {
	hash, err := chainhash.NewHashFromStr(txId)
	if err != nil {
		return "", err
	}
	chain.mutex.Lock()
	tx, ok := chain.txs[*hash]
	chain.mutex.Unlock()
	if !ok {
		return "", fmt.Errorf("transaction %s not found", txId)
	}
	return mpc.NewBtcTx(tx).Serialize()
}

func (chain *Chain) BroadcastTransaction(txHex string) (string, error) {
	transaction, err := mpc.NewBtcTxFromHex(txHex)
	if err != nil {
		return "", err
	}
	tx := transaction.MsgTx()

	bad, err := (&mpc.Signer{Fetcher: chain}).CountBadSignatures(txHex)
	if err != nil {
		return "", err
	}
	if bad != 0 {
		return "", fmt.Errorf("transaction has %d invalid signatures", bad)
	}

	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	if _, ok := chain.txs[tx.TxHash()]; ok {
		return "", errors.New("transaction already in block chain")
	}
	for _, input := range tx.TxIn {
		if _, ok := chain.spent[input.PreviousOutPoint]; ok {
			return "", fmt.Errorf("output %s already spent", input.PreviousOutPoint)
		}
	}
	chain.add(tx)
	chain.broadcasts = append(chain.broadcasts, txHex)
	return tx.TxHash().String(), nil
}

func (chain *Chain) GetUnspentOutputs(address string) ([]*onchain.Output, error) {
	decoded, err := btcutil.DecodeAddress(address, chain.Network.Btc)
	if err != nil {
		return nil, err
	}
	pkScript, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return nil, err
	}

	chain.mutex.Lock()
	defer chain.mutex.Unlock()
	outputs := []*onchain.Output{}
	for _, hash := range chain.order {
		for vout, output := range chain.txs[hash].TxOut {
			outpoint := wire.NewOutPoint(&hash, uint32(vout))
			if _, spent := chain.spent[*outpoint]; spent || string(output.PkScript) != string(pkScript) {
				continue
			}
			outputs = append(outputs, &onchain.Output{TxId: hash.String(), Vout: uint32(vout), Value: uint64(output.Value)})
		}
	}
	return outputs, nil
}

func (chain *Chain) Disconnect() {}
