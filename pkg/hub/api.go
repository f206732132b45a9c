package hub

import (
	"bytes"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/cenkalti/backoff/v4"
	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// RequestRetryLimit is the number of attempts for a call failing at the transport level.
const RequestRetryLimit = 2

const defaultRetryDelay = time.Second

var authMethods = map[string]bool{
	"mph_request": true,
	"mph_deposit": true,
	"mph_sync":    true,
	"mph_close":   true,
}

type Api struct {
	URL      string
	Username string
	Password string
	Client   http.Client

	// AuthWif signs authenticated calls
	AuthWif *btcutil.WIF
	// HubPubkey is the expected signer of authenticated responses once known
	HubPubkey mpc.HexString

	RetryDelay time.Duration
	Metrics    *Metrics
}

func NewApi(url string, authWif *btcutil.WIF) *Api {
	return &Api{
		URL:        url,
		AuthWif:    authWif,
		RetryDelay: defaultRetryDelay,
		Metrics:    NewMetrics(),
		Client:     http.Client{Timeout: 60 * time.Second},
	}
}

func (hub *Api) SetCredentials(username string, password string) {
	hub.Username = username
	hub.Password = password
}

func (hub *Api) DisableTlsVerification() {
	hub.Client.Transport = &http.Transport{
		TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
	}
}

// WithHubPubkey returns a copy of the client expecting authenticated
// responses to be signed by pubkey. Metrics are shared with the copy.
func (hub *Api) WithHubPubkey(pubkey []byte) *Api {
	clone := *hub
	clone.HubPubkey = pubkey
	return &clone
}

type rpcRequest struct {
	Method  string `json:"method"`
	Params  any    `json:"params"`
	JsonRpc string `json:"jsonrpc"`
	Id      int    `json:"id"`
}

func (hub *Api) post(payload []byte) ([]byte, error) {
	request, err := http.NewRequest(http.MethodPost, hub.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	request.Header.Set("Content-Type", "application/json")
	if hub.Username != "" && hub.Password != "" {
		request.SetBasicAuth(hub.Username, hub.Password)
	}

	res, err := hub.Client.Do(request)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := res.Body.Close(); err != nil {
			logger.Errorf("Error closing response body: %v", err)
		}
	}()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, err
	}
	if res.StatusCode >= http.StatusInternalServerError && len(body) == 0 {
		return nil, fmt.Errorf("hub responded with status %d", res.StatusCode)
	}
	return body, nil
}

func (hub *Api) sendRequest(method string, params any) (json.RawMessage, error) {
	payload, err := json.Marshal(rpcRequest{Method: method, Params: params, JsonRpc: "2.0", Id: 0})
	if err != nil {
		return nil, err
	}

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		if attempt > 1 {
			hub.Metrics.retried(method)
		}
		var err error
		body, err = hub.post(payload)
		return err
	}
	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(hub.RetryDelay), RequestRetryLimit-1)
	notify := func(err error, wait time.Duration) {
		logger.Warnf("Hub call %s failed, retrying in %s: %v", method, wait, err)
	}

	start := time.Now()
	err = backoff.RetryNotify(operation, policy, notify)
	if err != nil {
		hub.Metrics.observe(method, start, err)
		return nil, fmt.Errorf("request %s failed: %w", method, err)
	}

	var response map[string]json.RawMessage
	if err := json.Unmarshal(body, &response); err != nil {
		err = fmt.Errorf("could not parse hub response to %s: %w", method, err)
		hub.Metrics.observe(method, start, err)
		return nil, err
	}
	result, ok := response["result"]
	if !ok {
		err := &RpcCallFailed{Method: method, Payload: payload, Response: body}
		hub.Metrics.observe(method, start, err)
		return nil, err
	}
	hub.Metrics.observe(method, start, nil)
	return result, nil
}

func (hub *Api) call(method string, params any, response any) error {
	authenticated := authMethods[method] && hub.AuthWif != nil

	if authenticated {
		generic, err := toGeneric(params)
		if err != nil {
			return err
		}
		data, ok := generic.(map[string]any)
		if !ok {
			return fmt.Errorf("params of %s are not an object", method)
		}
		params, err = SignJson(data, hub.AuthWif)
		if err != nil {
			return err
		}
	}

	logger.Sillyf("Calling hub method %s", method)
	result, err := hub.sendRequest(method, params)
	if err != nil {
		return err
	}

	if authenticated {
		if err := hub.verifyResult(result); err != nil {
			return fmt.Errorf("could not verify response to %s: %w", method, err)
		}
	}

	if response == nil {
		return nil
	}
	return json.Unmarshal(result, response)
}

func (hub *Api) verifyResult(result json.RawMessage) error {
	generic, err := decodeGeneric(result)
	if err != nil {
		return err
	}
	data, ok := generic.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: result is not an object", ErrInvalidSignature)
	}
	pubkey, err := VerifyJson(data)
	if err != nil {
		return err
	}
	if hub.HubPubkey != nil && pubkey != hex.EncodeToString(hub.HubPubkey) {
		return fmt.Errorf("%w: expected %s, got %s", ErrAuthPubkeyMismatch, hub.HubPubkey, pubkey)
	}
	return nil
}

func (hub *Api) Version() (version string, err error) {
	err = hub.call("version", map[string]any{}, &version)
	return version, err
}

func (hub *Api) Status(assets []string) (*Status, error) {
	var response Status
	err := hub.call("mph_status", map[string]any{"assets": assets}, &response)
	return &response, err
}

func (hub *Api) Terms(assets []string) (response map[string]ChannelTerms, err error) {
	err = hub.call("mph_terms", map[string]any{"assets": assets}, &response)
	return response, err
}

func (hub *Api) FundingAddresses(assets []string) (response map[string]string, err error) {
	err = hub.call("mph_funding_addresses", map[string]any{"assets": assets}, &response)
	return response, err
}

func (hub *Api) Request(request ConnectionRequest) (*ConnectionResponse, error) {
	var response ConnectionResponse
	if err := hub.call("mph_request", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (hub *Api) Deposit(request DepositRequest) (*DepositResponse, error) {
	var response DepositResponse
	if err := hub.call("mph_deposit", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (hub *Api) Sync(request SyncRequest) (*SyncResponse, error) {
	if request.Sends == nil {
		request.Sends = []Payment{}
	}
	if request.Revokes == nil {
		request.Revokes = []mpc.HexString{}
	}
	var response SyncResponse
	if err := hub.call("mph_sync", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (hub *Api) Close(request CloseRequest) (*CloseResponse, error) {
	var response CloseResponse
	if err := hub.call("mph_close", request, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (hub *Api) TransferredAmount(state *mpc.State) (amount uint64, err error) {
	err = hub.call("mpc_transferred_amount", map[string]any{"state": state}, &amount)
	return amount, err
}

func (hub *Api) RevokeHashesUntil(state *mpc.State, quantity uint64, surpass bool) (hashes []mpc.HexString, err error) {
	params := map[string]any{"state": state, "quantity": quantity, "surpass": surpass}
	err = hub.call("mpc_revoke_hashes_until", params, &hashes)
	return hashes, err
}

func (hub *Api) CreateCommit(state *mpc.State, quantity uint64, revokeSecretHash []byte, delayTime uint32) (*CreateCommitResult, error) {
	params := map[string]any{
		"state":              state,
		"quantity":           quantity,
		"revoke_secret_hash": mpc.HexString(revokeSecretHash),
		"delay_time":         delayTime,
	}
	var response CreateCommitResult
	if err := hub.call("mpc_create_commit", params, &response); err != nil {
		return nil, err
	}
	if response.State == nil {
		return nil, errors.New("hub returned no state for created commit")
	}
	return &response, nil
}

// HighestCommit returns nil if the state has no active commits.
func (hub *Api) HighestCommit(state *mpc.State) (commit *mpc.Commit, err error) {
	err = hub.call("mpc_highest_commit", map[string]any{"state": state}, &commit)
	return commit, err
}

// DepositTtl returns nil while the deposit is not yet confirmed.
func (hub *Api) DepositTtl(state *mpc.State, clearance uint32) (ttl *uint64, err error) {
	err = hub.call("mpc_deposit_ttl", map[string]any{"state": state, "clearance": clearance}, &ttl)
	return ttl, err
}

func (hub *Api) PublishedCommits(state *mpc.State) (commits []string, err error) {
	err = hub.call("mpc_published_commits", map[string]any{"state": state}, &commits)
	return commits, err
}

func (hub *Api) Payouts(state *mpc.State) (payouts []PayoutTx, err error) {
	err = hub.call("mpc_payouts", map[string]any{"state": state}, &payouts)
	return payouts, err
}

func (hub *Api) Recoverables(state *mpc.State, spendSecret []byte) (*Recoverables, error) {
	params := map[string]any{"state": state}
	if spendSecret != nil {
		params["spend_secret"] = mpc.HexString(spendSecret)
	}
	var response Recoverables
	if err := hub.call("mpc_recoverables", params, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

func (hub *Api) MakeDeposit(request MakeDepositRequest) (*MakeDepositResult, error) {
	var response MakeDepositResult
	if err := hub.call("mpc_make_deposit", request, &response); err != nil {
		return nil, err
	}
	if response.State == nil {
		return nil, errors.New("hub returned no state for deposit")
	}
	return &response, nil
}

func (hub *Api) GetRawTransaction(txId string) (rawTx string, err error) {
	err = hub.call("getrawtransaction", map[string]any{"tx_hash": txId}, &rawTx)
	return rawTx, err
}

func (hub *Api) SendRawTransaction(rawTx string) (txId string, err error) {
	err = hub.call("sendrawtransaction", map[string]any{"tx_hex": rawTx}, &txId)
	return txId, err
}

func (hub *Api) GetBalances(address string) (entries []BalanceEntry, err error) {
	filters := []BalanceFilter{{Field: "address", Op: "==", Value: address}}
	err = hub.call("get_balances", map[string]any{"filters": filters}, &entries)
	return entries, err
}

func (hub *Api) GetUnspentTxouts(address string, unconfirmed bool) (utxos []UnspentTxout, err error) {
	params := map[string]any{"address": address, "unconfirmed": unconfirmed}
	err = hub.call("get_unspent_txouts", params, &utxos)
	return utxos, err
}

// CreateSend returns the unsigned raw transaction of a send.
func (hub *Api) CreateSend(request CreateSendRequest) (rawTx string, err error) {
	err = hub.call("create_send", request, &rawTx)
	return rawTx, err
}
