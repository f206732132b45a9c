package electrum

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	"github.com/BoltzExchange/go-electrum/electrum"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

type Options struct {
	Url string `long:"electrum.url" description:"Url of an electrum server"`
	SSL bool   `long:"electrum.ssl" description:"Whether the electrum server uses ssl"`
}

// Client looks up transactions and unspent outputs of deposit and commit
// addresses on an electrum server.
type Client struct {
	client  *electrum.Client
	network *mpc.Network
	timeout time.Duration
}

var _ onchain.ChainProvider = &Client{}

var pingInterval = 60 * time.Second

const requestTimeout = 5 * time.Second

func NewClient(options Options, network *mpc.Network) (*Client, error) {
	if options.Url == "" {
		return nil, errors.New("electrum url is required")
	}
	c := &Client{network: network, timeout: requestTimeout}

	ctx, cancel := c.requestContext()
	defer cancel()
	var err error
	if options.SSL {
		c.client, err = electrum.NewClientSSL(ctx, options.Url, &tls.Config{})
	} else {
		c.client, err = electrum.NewClientTCP(ctx, options.Url)
	}
	if err != nil {
		return nil, err
	}

	// the protocol version has to be negotiated before any other call
	if _, _, err := c.client.ServerVersion(ctx); err != nil {
		c.client.Shutdown()
		return nil, err
	}

	go c.keepAlive()
	return c, nil
}

func (c *Client) requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), c.timeout)
}

// keepAlive pings the server which drops idle connections otherwise.
func (c *Client) keepAlive() {
	for !c.client.IsShutdown() {
		time.Sleep(pingInterval)
		ctx, cancel := c.requestContext()
		if err := c.client.Ping(ctx); err != nil && !c.client.IsShutdown() {
			logger.Warnf("Could not ping electrum server: %v", err)
		}
		cancel()
	}
}

// scriptHash is the electrum index key of an address: the reversed sha256 of
// its output script.
func (c *Client) scriptHash(address string) (string, error) {
	decoded, err := btcutil.DecodeAddress(address, c.network.Btc)
	if err != nil {
		return "", fmt.Errorf("could not decode %s address %s: %w", c.network.Name, address, err)
	}
	script, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return "", err
	}
	return chainhash.HashH(script).String(), nil
}

func (c *Client) GetRawTransaction(txId string) (string, error) {
	ctx, cancel := c.requestContext()
	defer cancel()
	return c.client.GetRawTransaction(ctx, txId)
}

func (c *Client) BroadcastTransaction(txHex string) (string, error) {
	ctx, cancel := c.requestContext()
	defer cancel()
	return c.client.BroadcastTransaction(ctx, txHex)
}

// GetUnspentOutputs returns the confirmed unspent outputs of address.
func (c *Client) GetUnspentOutputs(address string) ([]*onchain.Output, error) {
	scriptHash, err := c.scriptHash(address)
	if err != nil {
		return nil, err
	}

	ctx, cancel := c.requestContext()
	defer cancel()
	unspent, err := c.client.ListUnspent(ctx, scriptHash)
	if err != nil {
		return nil, err
	}

	outputs := make([]*onchain.Output, 0, len(unspent))
	for _, output := range unspent {
		// mempool outputs are reported at height 0
		if output.Height == 0 {
			continue
		}
		outputs = append(outputs, &onchain.Output{
			TxId:  output.Hash,
			Vout:  output.Position,
			Value: output.Value,
		})
	}
	return outputs, nil
}

func (c *Client) Disconnect() {
	c.client.Shutdown()
}
