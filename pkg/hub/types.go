package hub

import (
	"encoding/json"
	"fmt"

	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// RpcCallFailed is returned when the hub answers with a JSON-RPC error.
type RpcCallFailed struct {
	Method   string
	Payload  json.RawMessage
	Response json.RawMessage
}

func (err *RpcCallFailed) Error() string {
	return fmt.Sprintf("rpc call %s failed: %s -> %s", err.Method, err.Payload, err.Response)
}

type ChannelTerms struct {
	DepositMax   uint64  `json:"deposit_max"`
	DepositMin   uint64  `json:"deposit_min"`
	DepositRatio float64 `json:"deposit_ratio"`
	ExpireMax    uint64  `json:"expire_max"`
	ExpireMin    uint64  `json:"expire_min"`
	SyncFee      uint64  `json:"sync_fee"`
}

type ConnectionStatus struct {
	Asset   string  `json:"asset"`
	Balance int64   `json:"balance"`
	Status  string  `json:"status"`
	Ttl     *uint64 `json:"ttl"`
}

type LiquidityAddress struct {
	Address  string            `json:"address"`
	Balances map[string]uint64 `json:"balances"`
}

type Liquidity struct {
	Addresses map[string][]LiquidityAddress `json:"addresses"`
	Total     map[string]uint64             `json:"total"`
}

type Status struct {
	Connections      map[string]ConnectionStatus `json:"connections"`
	CurrentTerms     map[string]ChannelTerms     `json:"current_terms"`
	FundingAddresses map[string]string           `json:"funding_addresses"`
	Liquidity        Liquidity                   `json:"liquidity"`
}

type ConnectionRequest struct {
	Asset           string        `json:"asset"`
	Url             *string       `json:"url"`
	SpendSecretHash mpc.HexString `json:"spend_secret_hash"`
}

type ConnectionResponse struct {
	Handle          string        `json:"handle"`
	ChannelTerms    ChannelTerms  `json:"channel_terms"`
	Pubkey          mpc.HexString `json:"pubkey"`
	SpendSecretHash mpc.HexString `json:"spend_secret_hash"`
}

type DepositRequest struct {
	Handle               string        `json:"handle"`
	Asset                string        `json:"asset"`
	DepositScript        mpc.HexString `json:"deposit_script"`
	NextRevokeSecretHash mpc.HexString `json:"next_revoke_secret_hash"`
}

type DepositResponse struct {
	DepositScript        mpc.HexString `json:"deposit_script"`
	NextRevokeSecretHash mpc.HexString `json:"next_revoke_secret_hash"`
}

type Payment struct {
	PayeeHandle string `json:"payee_handle"`
	Amount      uint64 `json:"amount"`
	Token       string `json:"token"`
}

type ReceivedPayment struct {
	PayerHandle string `json:"payer_handle"`
	Amount      uint64 `json:"amount"`
	Token       string `json:"token"`
}

type SyncRequest struct {
	Handle               string          `json:"handle"`
	NextRevokeSecretHash mpc.HexString   `json:"next_revoke_secret_hash"`
	Sends                []Payment       `json:"sends"`
	Commit               *mpc.Commit     `json:"commit"`
	Revokes              []mpc.HexString `json:"revokes"`
}

type SyncResponse struct {
	Commit               *mpc.Commit       `json:"commit"`
	Revokes              []mpc.HexString   `json:"revokes"`
	Receive              []ReceivedPayment `json:"receive"`
	NextRevokeSecretHash mpc.HexString     `json:"next_revoke_secret_hash"`
}

type CloseRequest struct {
	Handle      string        `json:"handle"`
	SpendSecret mpc.HexString `json:"spend_secret,omitempty"`
}

type CloseResponse struct {
	SpendSecret mpc.HexString `json:"spend_secret"`
}

type ToSign struct {
	CommitRawTx   string        `json:"commit_rawtx"`
	DepositScript mpc.HexString `json:"deposit_script"`
}

type CreateCommitResult struct {
	State        *mpc.State    `json:"state"`
	CommitScript mpc.HexString `json:"commit_script"`
	ToSign       ToSign        `json:"tosign"`
}

type MakeDepositRequest struct {
	Asset           string        `json:"asset"`
	PayerPubkey     mpc.HexString `json:"payer_pubkey"`
	PayeePubkey     mpc.HexString `json:"payee_pubkey"`
	SpendSecretHash mpc.HexString `json:"spend_secret_hash"`
	ExpireTime      uint32        `json:"expire_time"`
	Quantity        uint64        `json:"quantity"`
}

type MakeDepositResult struct {
	State     *mpc.State `json:"state"`
	ToPublish string     `json:"topublish"`
}

type PayoutTx struct {
	PayoutRawTx  string        `json:"payout_rawtx"`
	CommitScript mpc.HexString `json:"commit_script"`
}

type RevokeTx struct {
	RevokeRawTx  string        `json:"revoke_rawtx"`
	CommitScript mpc.HexString `json:"commit_script"`
	RevokeSecret mpc.HexString `json:"revoke_secret"`
}

type ChangeTx struct {
	ChangeRawTx   string        `json:"change_rawtx"`
	DepositScript mpc.HexString `json:"deposit_script"`
	SpendSecret   mpc.HexString `json:"spend_secret"`
}

type ExpireTx struct {
	ExpireRawTx   string        `json:"expire_rawtx"`
	DepositScript mpc.HexString `json:"deposit_script"`
}

type Recoverables struct {
	Revoke []RevokeTx `json:"revoke"`
	Change []ChangeTx `json:"change"`
	Expire []ExpireTx `json:"expire"`
}

type BalanceFilter struct {
	Field string `json:"field"`
	Op    string `json:"op"`
	Value string `json:"value"`
}

type BalanceEntry struct {
	Address  string `json:"address"`
	Asset    string `json:"asset"`
	Quantity uint64 `json:"quantity"`
}

type UnspentTxout struct {
	TxId          string  `json:"txid"`
	Vout          uint32  `json:"vout"`
	Amount        float64 `json:"amount"`
	Confirmations uint64  `json:"confirmations"`
}

type CreateSendRequest struct {
	Source          string `json:"source"`
	Destination     string `json:"destination"`
	Asset           string `json:"asset"`
	Quantity        uint64 `json:"quantity"`
	RegularDustSize uint64 `json:"regular_dust_size,omitempty"`
}
