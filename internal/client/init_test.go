package client

import (
	"net/http"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/picopayments/picopayments-client/internal/config"
	"github.com/picopayments/picopayments-client/internal/database"
	"github.com/picopayments/picopayments-client/internal/electrum"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

func TestInitChainProvider(t *testing.T) {
	api := hub.NewApi("http://localhost", nil)

	t.Run("Hub", func(t *testing.T) {
		provider, err := initChainProvider(&config.ChainOptions{Backend: "hub"}, api, mpc.TestNet)
		require.NoError(t, err)
		require.IsType(t, &onchain.HubProvider{}, provider)
	})

	t.Run("Esplora", func(t *testing.T) {
		options := &config.ChainOptions{Backend: "esplora", Esplora: []string{"http://first/api", "http://second/api"}}
		provider, err := initChainProvider(options, api, mpc.TestNet)
		require.NoError(t, err)
		multi := provider.(onchain.MultiChainProvider)
		require.Len(t, multi.Providers, 2)
		require.Nil(t, multi.Hub)

		options.HubFallback = true
		provider, err = initChainProvider(options, api, mpc.TestNet)
		require.NoError(t, err)
		require.NotNil(t, provider.(onchain.MultiChainProvider).Hub)
	})

	t.Run("ElectrumWithoutUrl", func(t *testing.T) {
		_, err := initChainProvider(&config.ChainOptions{Backend: "electrum", Electrum: &electrum.Options{}}, api, mpc.TestNet)
		require.Error(t, err)
	})

	t.Run("Invalid", func(t *testing.T) {
		_, err := initChainProvider(&config.ChainOptions{Backend: "node"}, api, mpc.TestNet)
		require.Error(t, err)
	})
}

func TestInitEsploraConfirmedOnly(t *testing.T) {
	const address = "mipcBbFg9gMiCh81Kj8tqqdgoZub1ZJRfn"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/address/"+address+"/utxo", r.URL.Path)
		_, _ = w.Write([]byte(`[{"txid": "00", "vout": 0, "status": {"confirmed": false}, "value": 1000}]`))
	}))
	t.Cleanup(server.Close)

	options := &config.ChainOptions{Backend: "esplora", Esplora: []string{server.URL}}
	provider, err := initChainProvider(options, hub.NewApi("http://localhost", nil), mpc.TestNet)
	require.NoError(t, err)
	defer provider.Disconnect()

	chain := &onchain.Onchain{Chain: provider, Network: mpc.TestNet}
	balance, err := chain.Balance(address)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestInit(t *testing.T) {
	dataDir := t.TempDir()
	cfg := &config.Config{
		Network: "testnet",
		Wallet:  path.Join(dataDir, "testnet.wif"),
		Hub:     &config.HubOptions{Url: "http://localhost", Username: "user", Password: "secret", NoVerify: true},
		Chain:   &config.ChainOptions{Backend: "hub", Clearance: 3},
		Database: &database.Database{
			Path: path.Join(dataDir, "testnet.db"),
		},
	}

	client, err := Init(cfg)
	require.NoError(t, err)
	defer client.Shutdown()

	require.Equal(t, mpc.TestNet, client.Network)
	require.EqualValues(t, 3, client.Clearance)
	require.Equal(t, "user", client.Hub.Username)
	require.FileExists(t, cfg.Wallet)

	// the key is reused on the next start
	cfg.Database = &database.Database{Path: path.Join(dataDir, "testnet.db")}
	again, err := Init(cfg)
	require.NoError(t, err)
	defer again.Shutdown()
	require.Equal(t, client.Wallet.Wif.String(), again.Wallet.Wif.String())
}
