package client

import (
	"fmt"

	"github.com/picopayments/picopayments-client/internal/config"
	"github.com/picopayments/picopayments-client/internal/electrum"
	"github.com/picopayments/picopayments-client/internal/esplora"
	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/internal/wallet"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// Init loads the wallet, connects to the database and sets up the hub and
// chain backends described by cfg.
func Init(cfg *config.Config) (*Client, error) {
	network, err := cfg.ParsedNetwork()
	if err != nil {
		return nil, err
	}
	logger.Infof("Using %s network", network.Name)

	w, err := wallet.Load(cfg.Wallet, network)
	if err != nil {
		return nil, fmt.Errorf("could not load wallet: %w", err)
	}

	api := initHub(cfg.Hub, w)

	provider, err := initChainProvider(cfg.Chain, api, network)
	if err != nil {
		return nil, err
	}

	if err := cfg.Database.Connect(); err != nil {
		provider.Disconnect()
		return nil, fmt.Errorf("could not connect to database: %w", err)
	}

	chain := &onchain.Onchain{Chain: provider, Network: network}
	return New(api, chain, w, cfg.Database, cfg.Chain.Clearance), nil
}

func initHub(options *config.HubOptions, w *wallet.Wallet) *hub.Api {
	logger.Info("Hub api: " + options.Url)
	api := hub.NewApi(options.Url, w.Wif)
	if options.Username != "" {
		api.SetCredentials(options.Username, options.Password)
	}
	if options.NoVerify {
		logger.Warn("Tls certificate of the hub is not verified")
		api.DisableTlsVerification()
	}
	return api
}

func initChainProvider(options *config.ChainOptions, api *hub.Api, network *mpc.Network) (onchain.ChainProvider, error) {
	backend, err := onchain.ParseBackend(options.Backend)
	if err != nil {
		return nil, err
	}
	hubProvider := &onchain.HubProvider{Api: api}

	var providers []onchain.ChainProvider
	switch backend {
	case onchain.BackendHub:
		logger.Info("Using the hub for chain data")
		return hubProvider, nil
	case onchain.BackendEsplora:
		for _, url := range options.Esplora {
			logger.Info("Using esplora api: " + url)
			providers = append(providers, esplora.InitClient(url))
		}
	case onchain.BackendElectrum:
		logger.Info("Using configured Electrum RPC: " + options.Electrum.Url)
		client, err := electrum.NewClient(*options.Electrum, network)
		if err != nil {
			return nil, fmt.Errorf("could not connect to electrum: %w", err)
		}
		providers = append(providers, client)
	}

	provider := onchain.MultiChainProvider{Providers: providers}
	if options.HubFallback {
		provider.Hub = hubProvider
	}
	return provider, nil
}
