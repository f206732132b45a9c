package channel

import (
	"fmt"
	"slices"

	"github.com/picopayments/picopayments-client/pkg/mpc"
)

const DefaultClearance = 6

type ChannelStatus string

const (
	StatusOpening ChannelStatus = "opening"
	StatusOpen    ChannelStatus = "open"
	StatusClosed  ChannelStatus = "closed"
)

// DepositStatus describes one direction of a channel.
type DepositStatus struct {
	Balance             int64             `json:"balance"`
	DepositAddress      string            `json:"deposit_address"`
	DepositTtl          *uint64           `json:"deposit_ttl"`
	DepositBalances     map[string]uint64 `json:"deposit_balances"`
	DepositExpireTime   uint32            `json:"deposit_expire_time"`
	TransferredQuantity uint64            `json:"transferred_quantity"`
}

type Status struct {
	Status  ChannelStatus `json:"status"`
	Asset   string        `json:"asset"`
	Netcode string        `json:"netcode"`
	Balance int64         `json:"balance"`
	Ttl     *uint64       `json:"ttl"`
	Send    DepositStatus `json:"send"`
	Recv    DepositStatus `json:"recv"`
}

// ResolveStatus derives the channel status. A nil ttl means the deposit is not
// confirmed yet and never closes the channel.
func ResolveStatus(sendTtl *uint64, recvTtl *uint64, spendSecretKnown bool, commitsPublished bool) ChannelStatus {
	expired := (sendTtl != nil && *sendTtl == 0) || (recvTtl != nil && *recvTtl == 0)
	if expired || spendSecretKnown || commitsPublished {
		return StatusClosed
	}
	if sendTtl != nil && recvTtl != nil {
		return StatusOpen
	}
	return StatusOpening
}

// Balances returns the confirmed balances of an address. BTC is looked up on
// chain, every other asset through the hub. With assets set, missing ones
// are reported as zero.
func (engine *Engine) Balances(address string, assets []string) (map[string]uint64, error) {
	entries, err := engine.Api.GetBalances(address)
	if err != nil {
		return nil, fmt.Errorf("could not get balances of %s: %w", address, err)
	}
	result := make(map[string]uint64)
	for _, entry := range entries {
		if assets != nil && !slices.Contains(assets, entry.Asset) {
			continue
		}
		result[entry.Asset] = entry.Quantity
	}
	for _, asset := range assets {
		result[asset] = result[asset]
	}

	if assets == nil || slices.Contains(assets, "BTC") {
		balance, err := engine.Onchain.Balance(address)
		if err != nil {
			return nil, fmt.Errorf("could not get btc balance of %s: %w", address, err)
		}
		result["BTC"] = balance
	}
	return result, nil
}

func (engine *Engine) depositStatus(state *mpc.State, clearance uint32) (*DepositStatus, error) {
	ttl, err := engine.Api.DepositTtl(state, clearance)
	if err != nil {
		return nil, fmt.Errorf("could not get deposit ttl: %w", err)
	}
	expireTime, err := mpc.GetDepositExpireTime(state.DepositScript)
	if err != nil {
		return nil, err
	}
	address, err := engine.depositAddress(state)
	if err != nil {
		return nil, err
	}
	balances, err := engine.Balances(address, []string{"BTC", state.Asset})
	if err != nil {
		return nil, err
	}
	var transferred uint64
	if len(state.CommitsActive) > 0 {
		transferred, err = engine.Api.TransferredAmount(state)
		if err != nil {
			return nil, fmt.Errorf("could not get transferred amount: %w", err)
		}
	}
	return &DepositStatus{
		DepositAddress:      address,
		DepositTtl:          ttl,
		DepositBalances:     balances,
		DepositExpireTime:   expireTime,
		TransferredQuantity: transferred,
	}, nil
}

// GetStatus reports the state of a channel as seen from the client.
func (engine *Engine) GetStatus(send *mpc.State, recv *mpc.State, secrets *SecretStore, clearance uint32) (*Status, error) {
	if send.Asset != recv.Asset {
		return nil, fmt.Errorf("channel directions have different assets: %s, %s", send.Asset, recv.Asset)
	}
	asset := send.Asset

	sendStatus, err := engine.depositStatus(send, clearance)
	if err != nil {
		return nil, err
	}
	recvStatus, err := engine.depositStatus(recv, clearance)
	if err != nil {
		return nil, err
	}
	sendStatus.Balance = int64(sendStatus.DepositBalances[asset]) + int64(recvStatus.TransferredQuantity) - int64(sendStatus.TransferredQuantity)
	recvStatus.Balance = int64(recvStatus.DepositBalances[asset]) + int64(sendStatus.TransferredQuantity) - int64(recvStatus.TransferredQuantity)

	var ttl *uint64
	if sendStatus.DepositTtl != nil && recvStatus.DepositTtl != nil {
		ttl = new(uint64)
		*ttl = min(*sendStatus.DepositTtl, *recvStatus.DepositTtl)
	}

	spendSecretHash, err := mpc.GetDepositSpendSecretHash(send.DepositScript)
	if err != nil {
		return nil, err
	}
	published, err := engine.Api.PublishedCommits(send)
	if err != nil {
		return nil, fmt.Errorf("could not get published commits: %w", err)
	}

	return &Status{
		Status:  ResolveStatus(sendStatus.DepositTtl, recvStatus.DepositTtl, secrets.Lookup(spendSecretHash) != nil, len(published) > 0),
		Asset:   asset,
		Netcode: engine.Onchain.Network.Netcode,
		Balance: sendStatus.Balance,
		Ttl:     ttl,
		Send:    *sendStatus,
		Recv:    *recvStatus,
	}, nil
}
