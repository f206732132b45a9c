package config

import (
	"os"
	"path"
	"testing"

	"github.com/jessevdk/go-flags"
	"github.com/picopayments/picopayments-client/internal/channel"
	"github.com/picopayments/picopayments-client/internal/database"
	"github.com/picopayments/picopayments-client/internal/electrum"
	"github.com/picopayments/picopayments-client/pkg/mpc"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, rest, err := LoadConfig([]string{"--network", "testnet", "sync", "--json", "handle"})
	require.NoError(t, err)
	require.Equal(t, []string{"sync", "--json", "handle"}, rest)

	dataDir := path.Join(home, ".picopayments")
	require.DirExists(t, dataDir)
	require.Equal(t, dataDir, cfg.DataDir)
	require.Equal(t, mpc.TestNet.DefaultHubUrl, cfg.Hub.Url)
	require.Equal(t, path.Join(dataDir, "testnet.db"), cfg.Database.Path)
	require.Equal(t, path.Join(dataDir, "testnet.wif"), cfg.Wallet)
	require.Equal(t, path.Join(dataDir, "picopayments.log"), cfg.LogFile)
	require.Equal(t, "hub", cfg.Chain.Backend)
	require.EqualValues(t, channel.DefaultClearance, cfg.Chain.Clearance)

	network, err := cfg.ParsedNetwork()
	require.NoError(t, err)
	require.Equal(t, mpc.TestNet, network)
}

func TestLoadConfigFile(t *testing.T) {
	dataDir := t.TempDir()
	content := `
Network = "regtest"
LogLevel = "debug"

[Hub]
Url = "http://127.0.0.1:15000/api/"
Username = "user"

[Chain]
Backend = "esplora"
Esplora = ["http://127.0.0.1:3000"]
Clearance = 1
`
	require.NoError(t, os.WriteFile(path.Join(dataDir, "picopayments.toml"), []byte(content), 0600))

	cfg, rest, err := LoadConfig([]string{"--datadir", dataDir, "--hub.username", "override", "status"})
	require.NoError(t, err)
	require.Equal(t, []string{"status"}, rest)

	require.Equal(t, "regtest", cfg.Network)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "http://127.0.0.1:15000/api/", cfg.Hub.Url)
	require.Equal(t, "override", cfg.Hub.Username)
	require.Equal(t, "esplora", cfg.Chain.Backend)
	require.Equal(t, []string{"http://127.0.0.1:3000"}, cfg.Chain.Esplora)
	require.EqualValues(t, 1, cfg.Chain.Clearance)
	require.Equal(t, path.Join(dataDir, "regtest.db"), cfg.Database.Path)
	require.Equal(t, path.Join(dataDir, "testnet.wif"), cfg.Wallet)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"Network", []string{"--network", "litecoin"}},
		{"Backend", []string{"--chain.backend", "bitcoind"}},
		{"EsploraWithoutUrl", []string{"--chain.backend", "esplora"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := LoadConfig(append([]string{"--datadir", t.TempDir()}, tc.args...))
			require.Error(t, err)
		})
	}
}

func TestClearanceDescription(t *testing.T) {
	cfg := Config{
		Hub:      &HubOptions{},
		Chain:    &ChainOptions{Electrum: &electrum.Options{}},
		Database: &database.Database{},
	}
	parser := flags.NewParser(&cfg, flags.IgnoreUnknown)
	option := parser.FindOptionByLongName("chain.clearance")
	require.NotNil(t, option)
	require.Contains(t, option.Description, "subtracted from the deposit expiry")
}
