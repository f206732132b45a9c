package wallet

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/utils"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

var ErrNetworkMismatch = errors.New("wallet key belongs to another network")

// Wallet is the single key the client funds deposits from and receives payouts to.
type Wallet struct {
	Path    string
	Network *mpc.Network
	Wif     *btcutil.WIF
}

// DefaultPath returns the key file location for the network inside dataDir.
// Regtest shares the testnet key file.
func DefaultPath(dataDir string, network *mpc.Network) string {
	name := "testnet.wif"
	if !network.IsTestnet() {
		name = "mainnet.wif"
	}
	return path.Join(dataDir, name)
}

// Load reads the key at walletPath and creates a new one if the file does not exist yet.
func Load(walletPath string, network *mpc.Network) (*Wallet, error) {
	wallet := &Wallet{Path: walletPath, Network: network}

	if !utils.FileExists(walletPath) {
		wif, err := mpc.GenerateWif(network)
		if err != nil {
			return nil, fmt.Errorf("could not generate wallet key: %w", err)
		}
		if err := os.WriteFile(walletPath, []byte(wif.String()), 0600); err != nil {
			return nil, fmt.Errorf("could not write wallet key: %w", err)
		}
		logger.Infof("Created new wallet key at %s", walletPath)
		wallet.Wif = wif
		return wallet, nil
	}

	raw, err := os.ReadFile(walletPath)
	if err != nil {
		return nil, fmt.Errorf("could not read wallet key: %w", err)
	}
	wif, err := mpc.ParseWif(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, err
	}
	if mpc.NetworkFromWif(wif).IsTestnet() != network.IsTestnet() {
		return nil, fmt.Errorf("%w: %s", ErrNetworkMismatch, network.Name)
	}
	wallet.Wif = wif
	return wallet, nil
}

func (wallet *Wallet) Address() (string, error) {
	address, err := mpc.WifAddress(wallet.Wif, wallet.Network)
	if err != nil {
		return "", err
	}
	return address.EncodeAddress(), nil
}

func (wallet *Wallet) Pubkey() string {
	return mpc.PubkeyHex(wallet.Wif)
}
