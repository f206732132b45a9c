package esplora

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/onchain"
)

type utxo struct {
	TxId   string `json:"txid"`
	Vout   uint32 `json:"vout"`
	Status struct {
		Confirmed bool `json:"confirmed"`
	} `json:"status"`
	Value uint64 `json:"value"`
}

type Client struct {
	httpClient *http.Client
	api        string
}

var _ onchain.ChainProvider = &Client{}

// InitClient creates a new Esplora API client
func InitClient(endpoint string) *Client {
	endpointStripped := strings.TrimSuffix(endpoint, "/")

	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		api: endpointStripped,
	}
}

func closeBody(res *http.Response) {
	if err := res.Body.Close(); err != nil {
		logger.Errorf("Error closing response body: %v", err)
	}
}

func (c *Client) get(path string) ([]byte, error) {
	res, err := c.httpClient.Get(c.api + path)
	if err != nil {
		return nil, err
	}
	defer closeBody(res)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s status %d: %s", path, res.StatusCode, string(body))
	}

	return body, nil
}

func (c *Client) getJson(path string, dest any) error {
	body, err := c.get(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, dest)
}

func (c *Client) GetRawTransaction(txId string) (string, error) {
	hex, err := c.get("/tx/" + txId + "/hex")
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(hex)), nil
}

func (c *Client) BroadcastTransaction(txHex string) (string, error) {
	res, err := c.httpClient.Post(c.api+"/tx", "text/plain", strings.NewReader(txHex))
	if err != nil {
		return "", err
	}
	defer closeBody(res)

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("could not broadcast tx, failed with code %d: %s", res.StatusCode, string(body))
	}

	return strings.TrimSpace(string(body)), nil
}

func (c *Client) GetUnspentOutputs(address string) ([]*onchain.Output, error) {
	var utxos []utxo
	if err := c.getJson("/address/"+address+"/utxo", &utxos); err != nil {
		return nil, err
	}

	result := make([]*onchain.Output, 0, len(utxos))
	for _, u := range utxos {
		if !u.Status.Confirmed {
			continue
		}
		result = append(result, &onchain.Output{
			TxId:  u.TxId,
			Vout:  u.Vout,
			Value: u.Value,
		})
	}

	return result, nil
}

// Disconnect closes idle connections, there is nothing else to release
func (c *Client) Disconnect() {
	c.httpClient.CloseIdleConnections()
}
