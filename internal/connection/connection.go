package connection

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/picopayments/picopayments-client/internal/channel"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// CurrentVersion is the schema version written by Serialize.
const CurrentVersion = 1

var (
	ErrUnsupportedVersion = errors.New("unsupported connection version")
	// ErrTermsViolation is returned when the requested deposit does not fit the hub terms.
	ErrTermsViolation = errors.New("deposit violates channel terms")
)

const (
	DefaultExpireTime = 1024
	DefaultDelayTime  = 2
	DefaultAsset      = "XCP"
)

type Payment struct {
	Handle    string `json:"handle"`
	Amount    uint64 `json:"amount"`
	Token     string `json:"token"`
	Timestamp int64  `json:"timestamp"`
}

// Connection is the client side of a hub connection. It holds both
// directions of the channel: c2h is funded by the client, h2c by the hub.
type Connection struct {
	Version      int                  `json:"version"`
	Asset        string               `json:"asset"`
	Handle       string               `json:"handle"`
	ChannelTerms hub.ChannelTerms     `json:"channel_terms"`
	ClientPubkey mpc.HexString        `json:"client_pubkey"`
	HubPubkey    mpc.HexString        `json:"hub_pubkey"`
	Secrets      *channel.SecretStore `json:"secrets"`

	C2hState                *mpc.State    `json:"c2h_state"`
	C2hSpendSecretHash      mpc.HexString `json:"c2h_spend_secret_hash"`
	C2hCommitDelayTime      uint32        `json:"c2h_commit_delay_time"`
	C2hNextRevokeSecretHash mpc.HexString `json:"c2h_next_revoke_secret_hash"`
	C2hDepositExpireTime    uint32        `json:"c2h_deposit_expire_time"`
	C2hDepositQuantity      uint64        `json:"c2h_deposit_quantity"`

	H2cState *mpc.State `json:"h2c_state"`

	PaymentsSent     []Payment     `json:"payments_sent"`
	PaymentsReceived []Payment     `json:"payments_received"`
	PaymentsQueued   []hub.Payment `json:"payments_queued"`

	RecoveryLog channel.RecoveryLog `json:"recovery_log"`
	// CommitTxId is the h2c commit published when the connection was closed
	CommitTxId string `json:"commit_txid,omitempty"`
}

func newToken() (string, error) {
	token := make([]byte, 32)
	if _, err := rand.Read(token); err != nil {
		return "", err
	}
	return hex.EncodeToString(token), nil
}

// QueuePayment schedules a payment to handle for the next sync and returns
// its token. A random token is generated if none is given.
func (connection *Connection) QueuePayment(handle string, quantity uint64, token string) (string, error) {
	if handle == "" {
		return "", errors.New("payee handle is required")
	}
	if quantity == 0 {
		return "", errors.New("payment quantity must be positive")
	}
	if token == "" {
		var err error
		if token, err = newToken(); err != nil {
			return "", err
		}
	}
	connection.PaymentsQueued = append(connection.PaymentsQueued, hub.Payment{
		PayeeHandle: handle,
		Amount:      quantity,
		Token:       token,
	})
	return token, nil
}

func (connection *Connection) recordPayments(sent []hub.Payment, received []hub.ReceivedPayment) {
	now := time.Now().Unix()
	for _, payment := range sent {
		connection.PaymentsSent = append(connection.PaymentsSent, Payment{
			Handle:    payment.PayeeHandle,
			Amount:    payment.Amount,
			Token:     payment.Token,
			Timestamp: now,
		})
	}
	for _, payment := range received {
		connection.PaymentsReceived = append(connection.PaymentsReceived, Payment{
			Handle:    payment.PayerHandle,
			Amount:    payment.Amount,
			Token:     payment.Token,
			Timestamp: now,
		})
	}
}

func (connection *Connection) Serialize() ([]byte, error) {
	connection.Version = CurrentVersion
	return json.Marshal(connection)
}

func Deserialize(data []byte) (*Connection, error) {
	var header struct {
		Version int `json:"version"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("could not parse connection: %w", err)
	}
	if header.Version < 1 || header.Version > CurrentVersion {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, header.Version)
	}

	connection := &Connection{}
	if err := json.Unmarshal(data, connection); err != nil {
		return nil, fmt.Errorf("could not parse connection: %w", err)
	}
	if connection.Secrets == nil {
		connection.Secrets = channel.NewSecretStore()
	}
	if connection.RecoveryLog == nil {
		connection.RecoveryLog = channel.RecoveryLog{}
	}
	if connection.C2hState == nil || connection.H2cState == nil {
		return nil, errors.New("connection is missing channel state")
	}
	return connection, nil
}
