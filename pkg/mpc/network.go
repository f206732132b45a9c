package mpc

import (
	"errors"

	"github.com/btcsuite/btcd/chaincfg"
)

type Network struct {
	Btc     *chaincfg.Params
	Name    string
	Netcode string

	DefaultHubUrl string
	DefaultPort   int
}

var MainNet = &Network{
	Btc:           &chaincfg.MainNetParams,
	Name:          "mainnet",
	Netcode:       "BTC",
	DefaultHubUrl: "https://micro.storj.io:5000/api/",
	DefaultPort:   6000,
}

var TestNet = &Network{
	Btc:           &chaincfg.TestNet3Params,
	Name:          "testnet",
	Netcode:       "XTN",
	DefaultHubUrl: "https://micro.test.storj.io:15000/api/",
	DefaultPort:   16000,
}

var Regtest = &Network{
	Btc:           &chaincfg.RegressionNetParams,
	Name:          "regtest",
	Netcode:       "XTN",
	DefaultHubUrl: "http://127.0.0.1:15000/api/",
	DefaultPort:   16000,
}

func ParseChain(network string) (*Network, error) {
	switch network {
	case "mainnet", "bitcoin":
		// #reckless
		return MainNet, nil
	case "testnet":
		return TestNet, nil
	case "regtest":
		return Regtest, nil
	default:
		return nil, errors.New("Network " + network + " not supported")
	}
}

func (network *Network) IsTestnet() bool {
	return network != MainNet
}
