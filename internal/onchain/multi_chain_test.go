package onchain_test

import (
	"testing"
	"time"

	onchainmock "github.com/picopayments/picopayments-client/internal/mocks/onchain"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/stretchr/testify/assert"
)

const (
	txHex   = "test-tx-hex"
	txId    = "test-tx-id"
	address = "mzBc4XEFSdzCDcTxAgf6EZXgsZWpztRhef"
)

func neverProvider(t *testing.T) onchain.ChainProvider {
	return onchainmock.NewMockChainProvider(t)
}

func TestMultiChainProvider_GetRawTransaction(t *testing.T) {
	successProvider := func(t *testing.T) onchain.ChainProvider {
		mockChain := onchainmock.NewMockChainProvider(t)
		mockChain.EXPECT().GetRawTransaction(txId).Return(txHex, nil)
		return mockChain
	}

	errorProvider := func(t *testing.T) onchain.ChainProvider {
		mockChain := onchainmock.NewMockChainProvider(t)
		mockChain.EXPECT().GetRawTransaction(txId).Return("", assert.AnError)
		return mockChain
	}

	tests := []struct {
		name      string
		providers func(t *testing.T) []onchain.ChainProvider
		hub       func(t *testing.T) onchain.ChainProvider
		wantHex   string
		wantErr   bool
	}{
		{
			name: "all providers success",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{successProvider(t), neverProvider(t)}
			},
			hub:     neverProvider,
			wantHex: txHex,
		},
		{
			name: "single provider failure",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{errorProvider(t), successProvider(t), neverProvider(t)}
			},
			hub:     neverProvider,
			wantHex: txHex,
		},
		{
			name: "all provider failure -> hub fallback",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{errorProvider(t), errorProvider(t)}
			},
			hub:     successProvider,
			wantHex: txHex,
		},
		{
			name: "all provider failure",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{errorProvider(t), errorProvider(t)}
			},
			hub:     errorProvider,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := onchain.MultiChainProvider{
				Providers: tt.providers(t),
				Hub:       tt.hub(t),
			}

			hex, err := provider.GetRawTransaction(txId)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantHex, hex)
			}
		})
	}
}

func TestMultiChainProvider_BroadcastTransaction(t *testing.T) {
	successProvider := func(t *testing.T) onchain.ChainProvider {
		mockChain := onchainmock.NewMockChainProvider(t)
		mockChain.EXPECT().BroadcastTransaction(txHex).RunAndReturn(func(txHex string) (string, error) {
			time.Sleep(10 * time.Millisecond)
			return txId, nil
		})
		return mockChain
	}

	errorProvider := func(t *testing.T) onchain.ChainProvider {
		mockChain := onchainmock.NewMockChainProvider(t)
		mockChain.EXPECT().BroadcastTransaction(txHex).Return("", assert.AnError)
		return mockChain
	}

	tests := []struct {
		name      string
		providers func(t *testing.T) []onchain.ChainProvider
		wantTxId  string
		wantErr   bool
	}{
		{
			name: "all providers success",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{successProvider(t), successProvider(t)}
			},
			wantTxId: txId,
		},
		{
			name: "single provider failure",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{errorProvider(t), successProvider(t), errorProvider(t)}
			},
			wantTxId: txId,
		},
		{
			name: "all provider failure",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{errorProvider(t), errorProvider(t)}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := onchain.MultiChainProvider{
				Providers: tt.providers(t),
			}

			id, err := provider.BroadcastTransaction(txHex)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.wantTxId, id)
			}
		})
	}
}

func TestMultiChainProvider_GetUnspentOutputs(t *testing.T) {
	outputs := []*onchain.Output{{TxId: txId, Vout: 1, Value: 1000}}

	outputProvider := func(t *testing.T, outputs []*onchain.Output) onchain.ChainProvider {
		mockChain := onchainmock.NewMockChainProvider(t)
		mockChain.EXPECT().GetUnspentOutputs(address).Return(outputs, nil)
		return mockChain
	}

	errorProvider := func(t *testing.T) onchain.ChainProvider {
		mockChain := onchainmock.NewMockChainProvider(t)
		mockChain.EXPECT().GetUnspentOutputs(address).Return(nil, assert.AnError)
		return mockChain
	}

	tests := []struct {
		name      string
		providers func(t *testing.T) []onchain.ChainProvider
		want      []*onchain.Output
		wantErr   bool
	}{
		{
			name: "first provider has outputs",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{outputProvider(t, outputs), neverProvider(t)}
			},
			want: outputs,
		},
		{
			name: "empty result asks next provider",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{outputProvider(t, nil), errorProvider(t), outputProvider(t, outputs)}
			},
			want: outputs,
		},
		{
			name: "no outputs anywhere",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{outputProvider(t, nil), errorProvider(t)}
			},
			want: []*onchain.Output{},
		},
		{
			name: "all provider failure",
			providers: func(t *testing.T) []onchain.ChainProvider {
				return []onchain.ChainProvider{errorProvider(t), errorProvider(t)}
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := onchain.MultiChainProvider{
				Providers: tt.providers(t),
			}

			result, err := provider.GetUnspentOutputs(address)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.want, result)
			}
		})
	}
}

func TestMultiChainProvider_Disconnect(t *testing.T) {
	disconnectProvider := func(t *testing.T) onchain.ChainProvider {
		mockChain := onchainmock.NewMockChainProvider(t)
		mockChain.EXPECT().Disconnect().Return()
		return mockChain
	}

	provider := onchain.MultiChainProvider{
		Providers: []onchain.ChainProvider{disconnectProvider(t), disconnectProvider(t)},
		Hub:       disconnectProvider(t),
	}
	provider.Disconnect()
}
