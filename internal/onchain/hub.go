package onchain

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/picopayments/picopayments-client/pkg/hub"
)

// HubProvider uses the block explorer the hub exposes.
type HubProvider struct {
	Api *hub.Api
}

var _ ChainProvider = &HubProvider{}

func (provider *HubProvider) GetRawTransaction(txId string) (string, error) {
	return provider.Api.GetRawTransaction(txId)
}

func (provider *HubProvider) BroadcastTransaction(txHex string) (string, error) {
	return provider.Api.SendRawTransaction(txHex)
}

func (provider *HubProvider) GetUnspentOutputs(address string) ([]*Output, error) {
	utxos, err := provider.Api.GetUnspentTxouts(address, false)
	if err != nil {
		return nil, err
	}
	outputs := make([]*Output, 0, len(utxos))
	for _, utxo := range utxos {
		amount, err := btcutil.NewAmount(utxo.Amount)
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, &Output{TxId: utxo.TxId, Vout: utxo.Vout, Value: uint64(amount)})
	}
	return outputs, nil
}

func (provider *HubProvider) Disconnect() {}
