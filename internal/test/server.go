package test

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

type rpcRequest struct {
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

type stateParams struct {
	State            *mpc.State    `json:"state"`
	Quantity         uint64        `json:"quantity"`
	Surpass          bool          `json:"surpass"`
	RevokeSecretHash mpc.HexString `json:"revoke_secret_hash"`
	DelayTime        uint32        `json:"delay_time"`
	Clearance        uint32        `json:"clearance"`
	SpendSecret      mpc.HexString `json:"spend_secret"`
}

type chainParams struct {
	TxHash  string              `json:"tx_hash"`
	TxHex   string              `json:"tx_hex"`
	Address string              `json:"address"`
	Assets  []string            `json:"assets"`
	Filters []hub.BalanceFilter `json:"filters"`
}

func decodeNumbers(raw []byte) (map[string]any, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.UseNumber()
	var data map[string]any
	return data, decoder.Decode(&data)
}

// NewHubServer serves the hub over JSON-RPC. Authenticated calls have their
// signatures checked and their responses signed with the hub key.
func NewHubServer(t *testing.T, fake *Hub) *httptest.Server {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var request rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		response := map[string]any{"jsonrpc": "2.0", "id": 0}
		result, err := fake.handle(request)
		if err != nil {
			response["error"] = map[string]any{"code": -32000, "message": err.Error()}
		} else {
			response["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(response); err != nil {
			t.Errorf("could not write response: %v", err)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func (fake *Hub) authenticate(raw json.RawMessage, params any) ([]byte, error) {
	data, err := decodeNumbers(raw)
	if err != nil {
		return nil, err
	}
	pubkey, err := hub.VerifyJson(data)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(raw, params); err != nil {
		return nil, err
	}
	return hex.DecodeString(pubkey)
}

func (fake *Hub) sign(result any) (any, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	data, err := decodeNumbers(raw)
	if err != nil {
		return nil, err
	}
	return hub.SignJson(data, fake.Wif)
}

func (fake *Hub) handle(request rpcRequest) (any, error) {
	switch request.Method {
	case "mph_request":
		var params hub.ConnectionRequest
		pubkey, err := fake.authenticate(request.Params, &params)
		if err != nil {
			return nil, err
		}
		return fake.signResult(fake.Request(pubkey, params))
	case "mph_deposit":
		var params hub.DepositRequest
		if _, err := fake.authenticate(request.Params, &params); err != nil {
			return nil, err
		}
		return fake.signResult(fake.Deposit(params))
	case "mph_sync":
		var params hub.SyncRequest
		if _, err := fake.authenticate(request.Params, &params); err != nil {
			return nil, err
		}
		return fake.signResult(fake.Sync(params))
	case "mph_close":
		var params hub.CloseRequest
		if _, err := fake.authenticate(request.Params, &params); err != nil {
			return nil, err
		}
		return fake.signResult(fake.Close(params))
	case "mpc_make_deposit":
		var params hub.MakeDepositRequest
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, err
		}
		return fake.MakeDeposit(params)
	case "create_send":
		var params hub.CreateSendRequest
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, err
		}
		return fake.CreateSend(params)
	}

	if isStateMethod(request.Method) {
		var params stateParams
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return nil, err
		}
		return fake.handleState(request.Method, params)
	}

	var params chainParams
	if err := json.Unmarshal(request.Params, &params); err != nil {
		return nil, err
	}
	switch request.Method {
	case "getrawtransaction":
		return fake.Chain.GetRawTransaction(params.TxHash)
	case "sendrawtransaction":
		return fake.Chain.BroadcastTransaction(params.TxHex)
	case "get_unspent_txouts":
		return fake.GetUnspentTxouts(params.Address)
	case "get_balances":
		if len(params.Filters) != 1 {
			return nil, fmt.Errorf("unsupported filters: %v", params.Filters)
		}
		return fake.GetBalances(params.Filters[0].Value)
	case "mph_status":
		return fake.Status(params.Assets)
	case "mph_terms":
		status, err := fake.Status(params.Assets)
		if err != nil {
			return nil, err
		}
		return status.CurrentTerms, nil
	case "mph_funding_addresses":
		status, err := fake.Status(params.Assets)
		if err != nil {
			return nil, err
		}
		return status.FundingAddresses, nil
	case "version":
		return "0.1.0", nil
	}
	return nil, fmt.Errorf("method %s not found", request.Method)
}

func (fake *Hub) signResult(result any, err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return fake.sign(result)
}

func isStateMethod(method string) bool {
	switch method {
	case "mpc_transferred_amount", "mpc_revoke_hashes_until", "mpc_create_commit", "mpc_highest_commit",
		"mpc_deposit_ttl", "mpc_published_commits", "mpc_payouts", "mpc_recoverables":
		return true
	}
	return false
}

func (fake *Hub) handleState(method string, params stateParams) (any, error) {
	if params.State == nil {
		return nil, fmt.Errorf("%s: missing state", method)
	}
	switch method {
	case "mpc_transferred_amount":
		return fake.TransferredAmount(params.State)
	case "mpc_revoke_hashes_until":
		return fake.RevokeHashesUntil(params.State, params.Quantity, params.Surpass)
	case "mpc_create_commit":
		return fake.CreateCommit(params.State, params.Quantity, params.RevokeSecretHash, params.DelayTime)
	case "mpc_highest_commit":
		return fake.HighestCommit(params.State)
	case "mpc_deposit_ttl":
		return fake.DepositTtl(params.State, params.Clearance)
	case "mpc_published_commits":
		return fake.PublishedCommits(params.State)
	case "mpc_payouts":
		return fake.Payouts(params.State)
	default:
		var spendSecret []byte
		if len(params.SpendSecret) > 0 {
			spendSecret = params.SpendSecret
		}
		return fake.Recoverables(params.State, spendSecret)
	}
}
