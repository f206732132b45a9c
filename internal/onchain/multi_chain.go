package onchain

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/picopayments/picopayments-client/internal/logger"
)

// MultiChainProvider combines multiple third party providers into a single one,
// using the hub as a fallback. The hub is only trusted if none of the other
// providers is reachable.
type MultiChainProvider struct {
	Providers []ChainProvider
	Hub       ChainProvider
}

var _ ChainProvider = &MultiChainProvider{}

func (m MultiChainProvider) allProviders() []ChainProvider {
	if m.Hub == nil {
		return m.Providers
	}
	return append(m.Providers[:len(m.Providers):len(m.Providers)], m.Hub)
}

func (m MultiChainProvider) GetRawTransaction(txId string) (hex string, err error) {
	for _, provider := range m.allProviders() {
		hex, err = provider.GetRawTransaction(txId)
		if err == nil {
			return hex, nil
		}
	}
	return "", err
}

func (m MultiChainProvider) BroadcastTransaction(txHex string) (txId string, err error) {
	var group sync.WaitGroup
	var merr multierror.Error
	var mutex sync.Mutex
	providers := m.allProviders()
	group.Add(len(providers))
	// broadcasting via every provider including the hub leaks nothing
	for _, provider := range providers {
		go func() {
			defer group.Done()
			result, err := provider.BroadcastTransaction(txHex)
			mutex.Lock()
			defer mutex.Unlock()

			if err == nil {
				txId = result
			} else {
				logger.Debugf("Error broadcasting transaction via %T: %v", provider, err)
				merr.Errors = append(merr.Errors, err)
			}
		}()
	}
	group.Wait()
	if len(providers) == len(merr.Errors) {
		return "", &merr
	}
	return txId, nil
}

func (m MultiChainProvider) GetUnspentOutputs(address string) ([]*Output, error) {
	var merr multierror.Error
	providers := m.allProviders()
	for _, provider := range providers {
		outputs, err := provider.GetUnspentOutputs(address)
		if err == nil {
			if len(outputs) > 0 {
				return outputs, nil
			}
		} else {
			merr.Errors = append(merr.Errors, err)
		}
	}
	if len(merr.Errors) == len(providers) {
		return nil, fmt.Errorf("all providers failed: %v", &merr)
	}
	return []*Output{}, nil
}

func (m MultiChainProvider) Disconnect() {
	for _, provider := range m.allProviders() {
		provider.Disconnect()
	}
}
