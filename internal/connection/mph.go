package connection

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/picopayments/picopayments-client/internal/channel"
	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// Mph runs connection operations against a hub with the key of the client wallet.
type Mph struct {
	Hub    *hub.Api
	Engine *channel.Engine
	Wif    *btcutil.WIF
}

func NewMph(api *hub.Api, chain *onchain.Onchain, wif *btcutil.WIF) *Mph {
	return &Mph{
		Hub:    api,
		Engine: channel.NewEngine(api, chain, mpc.SingleKey{Wif: wif}),
		Wif:    wif,
	}
}

// pinned returns the hub client that only accepts responses signed by the hub of the connection.
func (mph *Mph) pinned(connection *Connection) *hub.Api {
	return mph.Hub.WithHubPubkey(connection.HubPubkey)
}

type ConnectParams struct {
	Quantity   uint64
	ExpireTime uint32
	Asset      string
	DelayTime  uint32
	// OwnUrl is announced to the hub if the client can be reached
	OwnUrl *string
}

func (params *ConnectParams) setDefaults() {
	if params.ExpireTime == 0 {
		params.ExpireTime = DefaultExpireTime
	}
	if params.DelayTime == 0 {
		params.DelayTime = DefaultDelayTime
	}
	if params.Asset == "" {
		params.Asset = DefaultAsset
	}
}

func checkTerms(terms hub.ChannelTerms, params ConnectParams) error {
	if terms.ExpireMax != 0 && uint64(params.ExpireTime) > terms.ExpireMax {
		return fmt.Errorf("%w: expire time %d exceeds %d", ErrTermsViolation, params.ExpireTime, terms.ExpireMax)
	}
	if terms.ExpireMin != 0 && uint64(params.ExpireTime) < terms.ExpireMin {
		return fmt.Errorf("%w: expire time %d below %d", ErrTermsViolation, params.ExpireTime, terms.ExpireMin)
	}
	if terms.DepositMax != 0 && params.Quantity > terms.DepositMax {
		return fmt.Errorf("%w: deposit %d exceeds %d", ErrTermsViolation, params.Quantity, terms.DepositMax)
	}
	if terms.DepositMin != 0 && params.Quantity < terms.DepositMin {
		return fmt.Errorf("%w: deposit %d below %d", ErrTermsViolation, params.Quantity, terms.DepositMin)
	}
	return nil
}

func checkDeposit(script []byte, payer []byte, payee []byte, spendSecretHash []byte) (*mpc.DepositScript, error) {
	deposit, err := mpc.ParseDepositScript(script)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(deposit.PayerPubkey, payer) || !bytes.Equal(deposit.PayeePubkey, payee) {
		return nil, fmt.Errorf("%w: deposit pubkeys do not match connection", mpc.ErrInvalidScript)
	}
	if !bytes.Equal(deposit.SpendSecretHash, spendSecretHash) {
		return nil, fmt.Errorf("%w: deposit spend secret hash does not match connection", mpc.ErrInvalidScript)
	}
	return deposit, nil
}

// Connect opens a connection with the hub and publishes the deposit of the
// client. The terms of the hub are checked before anything is published.
func (mph *Mph) Connect(params ConnectParams) (*Connection, string, error) {
	params.setDefaults()
	if params.Quantity == 0 {
		return nil, "", errors.New("deposit quantity must be positive")
	}
	if err := mpc.CheckSequence(int64(params.ExpireTime)); err != nil {
		return nil, "", fmt.Errorf("invalid expire time: %w", err)
	}
	if err := mpc.CheckSequence(int64(params.DelayTime)); err != nil {
		return nil, "", fmt.Errorf("invalid delay time: %w", err)
	}

	connection := &Connection{
		Version:              CurrentVersion,
		Asset:                params.Asset,
		ClientPubkey:         mph.Wif.SerializePubKey(),
		Secrets:              channel.NewSecretStore(),
		C2hCommitDelayTime:   params.DelayTime,
		C2hDepositExpireTime: params.ExpireTime,
		C2hDepositQuantity:   params.Quantity,
		PaymentsSent:         []Payment{},
		PaymentsReceived:     []Payment{},
		PaymentsQueued:       []hub.Payment{},
		RecoveryLog:          channel.RecoveryLog{},
	}

	h2cSpendSecretHash, err := connection.Secrets.Generate()
	if err != nil {
		return nil, "", err
	}
	h2cNextRevokeSecretHash, err := connection.Secrets.Generate()
	if err != nil {
		return nil, "", err
	}

	response, err := mph.Hub.Request(hub.ConnectionRequest{
		Asset:           params.Asset,
		Url:             params.OwnUrl,
		SpendSecretHash: h2cSpendSecretHash,
	})
	if err != nil {
		return nil, "", fmt.Errorf("could not request connection: %w", err)
	}
	connection.Handle = response.Handle
	connection.ChannelTerms = response.ChannelTerms
	connection.HubPubkey = response.Pubkey
	connection.C2hSpendSecretHash = response.SpendSecretHash
	connection.Secrets.Track(response.SpendSecretHash)
	logger.Infof("Hub assigned handle %s for %s", connection.Handle, connection.Asset)

	if err := checkTerms(connection.ChannelTerms, params); err != nil {
		return nil, "", err
	}

	deposit, err := mph.Hub.MakeDeposit(hub.MakeDepositRequest{
		Asset:           params.Asset,
		PayerPubkey:     connection.ClientPubkey,
		PayeePubkey:     connection.HubPubkey,
		SpendSecretHash: connection.C2hSpendSecretHash,
		ExpireTime:      params.ExpireTime,
		Quantity:        params.Quantity,
	})
	if err != nil {
		return nil, "", fmt.Errorf("could not make deposit: %w", err)
	}
	c2hDeposit, err := checkDeposit(deposit.State.DepositScript, connection.ClientPubkey, connection.HubPubkey, connection.C2hSpendSecretHash)
	if err != nil {
		return nil, "", err
	}
	if c2hDeposit.ExpireTime != params.ExpireTime || deposit.State.Asset != params.Asset {
		return nil, "", fmt.Errorf("%w: deposit does not match request", mpc.ErrInvalidScript)
	}
	if err := mph.checkPaysDeposit(deposit.ToPublish, deposit.State.DepositScript); err != nil {
		return nil, "", err
	}
	connection.C2hState = mpc.NewState(params.Asset, deposit.State.DepositScript)

	exchanged, err := mph.pinned(connection).Deposit(hub.DepositRequest{
		Handle:               connection.Handle,
		Asset:                connection.Asset,
		DepositScript:        connection.C2hState.DepositScript,
		NextRevokeSecretHash: h2cNextRevokeSecretHash,
	})
	if err != nil {
		return nil, "", fmt.Errorf("could not exchange deposit scripts: %w", err)
	}
	h2cDeposit, err := checkDeposit(exchanged.DepositScript, connection.HubPubkey, connection.ClientPubkey, h2cSpendSecretHash)
	if err != nil {
		return nil, "", err
	}
	if expireMax := connection.ChannelTerms.ExpireMax; expireMax != 0 && uint64(h2cDeposit.ExpireTime) > expireMax {
		return nil, "", fmt.Errorf("%w: hub deposit expire time %d exceeds %d", ErrTermsViolation, h2cDeposit.ExpireTime, expireMax)
	}
	connection.C2hNextRevokeSecretHash = exchanged.NextRevokeSecretHash

	signed, err := mph.Engine.Signer.SignFunding(deposit.ToPublish, mph.Wif)
	if err != nil {
		return nil, "", fmt.Errorf("could not sign deposit: %w", err)
	}
	txId, err := mph.Engine.Onchain.BroadcastTransaction(signed)
	if err != nil {
		return nil, "", fmt.Errorf("could not publish deposit: %w", err)
	}

	connection.H2cState = mpc.NewState(connection.Asset, exchanged.DepositScript)
	connection.H2cState.RequestCommit(h2cNextRevokeSecretHash)
	return connection, txId, nil
}

func (mph *Mph) checkPaysDeposit(rawTx string, depositScript []byte) error {
	transaction, err := mpc.NewBtcTxFromHex(rawTx)
	if err != nil {
		return fmt.Errorf("could not decode deposit transaction: %w", err)
	}
	address, err := mpc.ScriptAddress(depositScript, mph.Engine.Onchain.Network)
	if err != nil {
		return err
	}
	if _, _, err := transaction.FindVout(mph.Engine.Onchain.Network, address.EncodeAddress()); err != nil {
		return fmt.Errorf("%w: deposit transaction does not fund %s", mpc.ErrInvalidScript, address)
	}
	return nil
}

// Sync sends the queued payments together with the sync fee and exchanges
// commits and revocations with the hub. It returns the payments received.
func (mph *Mph) Sync(connection *Connection) ([]hub.ReceivedPayment, error) {
	payments := connection.PaymentsQueued
	connection.PaymentsQueued = []hub.Payment{}

	quantity := connection.ChannelTerms.SyncFee
	for _, payment := range payments {
		quantity += payment.Amount
	}

	transfer, err := mph.Engine.Transfer(channel.TransferRequest{
		Send:                 connection.C2hState,
		Recv:                 connection.H2cState,
		Quantity:             quantity,
		Secrets:              connection.Secrets,
		NextRevokeSecretHash: connection.C2hNextRevokeSecretHash,
		DelayTime:            connection.C2hCommitDelayTime,
	})
	if err != nil {
		return nil, fmt.Errorf("could not transfer %d: %w", quantity, err)
	}
	connection.C2hState = transfer.Send
	connection.H2cState = transfer.Recv

	h2cNextRevokeSecretHash, err := connection.Secrets.Generate()
	if err != nil {
		return nil, err
	}
	connection.H2cState.RequestCommit(h2cNextRevokeSecretHash)

	response, err := mph.pinned(connection).Sync(hub.SyncRequest{
		Handle:               connection.Handle,
		NextRevokeSecretHash: h2cNextRevokeSecretHash,
		Sends:                payments,
		Commit:               transfer.Commit,
		Revokes:              transfer.Revokes,
	})
	if err != nil {
		return nil, fmt.Errorf("could not sync: %w", err)
	}
	connection.C2hNextRevokeSecretHash = response.NextRevokeSecretHash
	connection.recordPayments(payments, response.Receive)

	if response.Commit != nil {
		if err := connection.H2cState.AddCommit(response.Commit.RawTx, response.Commit.Script); err != nil {
			return nil, fmt.Errorf("could not add hub commit: %w", err)
		}
	}
	if len(response.Revokes) > 0 {
		if err := connection.C2hState.RevokeAll(response.Revokes); err != nil {
			return nil, fmt.Errorf("could not apply hub revocations: %w", err)
		}
	}
	logger.Debugf("Synced %s: sent %d payments, received %d", connection.Handle, len(payments), len(response.Receive))
	return response.Receive, nil
}

// Close publishes the highest h2c commit, or reveals the h2c spend secret if
// the hub never committed, and asks the hub to close. The returned txid is
// empty if no commit was published.
func (mph *Mph) Close(connection *Connection) (string, error) {
	txId, err := mph.Engine.FinalizeCommit(connection.H2cState)
	if err != nil {
		return "", err
	}
	if txId != "" {
		connection.CommitTxId = txId
	}

	var spendSecret []byte
	if len(connection.H2cState.CommitsActive) == 0 {
		spendSecretHash, err := mpc.GetDepositSpendSecretHash(connection.H2cState.DepositScript)
		if err != nil {
			return "", err
		}
		if spendSecret, err = connection.Secrets.Get(spendSecretHash); err != nil {
			return "", err
		}
	}

	response, err := mph.pinned(connection).Close(hub.CloseRequest{Handle: connection.Handle, SpendSecret: spendSecret})
	if err != nil {
		return "", fmt.Errorf("could not close: %w", err)
	}
	if len(response.SpendSecret) > 0 {
		if !bytes.Equal(btcutil.Hash160(response.SpendSecret), connection.C2hSpendSecretHash) {
			return "", fmt.Errorf("%w: c2h spend secret", mpc.ErrInvalidSecret)
		}
		connection.Secrets.Add(response.SpendSecret)
	}
	logger.Infof("Closed connection %s", connection.Handle)
	return txId, nil
}

func isZero(ttl *uint64) bool {
	return ttl != nil && *ttl == 0
}

// IsClosed reports if a deposit expired or a commit of either direction was published.
func (mph *Mph) IsClosed(connection *Connection, clearance uint32) (bool, error) {
	for _, state := range []*mpc.State{connection.C2hState, connection.H2cState} {
		ttl, err := mph.Engine.Api.DepositTtl(state, clearance)
		if err != nil {
			return false, err
		}
		if isZero(ttl) {
			return true, nil
		}
	}
	for _, state := range []*mpc.State{connection.C2hState, connection.H2cState} {
		published, err := mph.Engine.Api.PublishedCommits(state)
		if err != nil {
			return false, err
		}
		if len(published) > 0 {
			return true, nil
		}
	}
	return false, nil
}

// UpdateResult lists what an update published.
type UpdateResult struct {
	// Closed is set if the update closed the connection with the hub
	Closed bool
	// CommitTxId is the finalized h2c commit published while closing
	CommitTxId string
	Recovered  []string
}

// TxIds returns every published txid, the finalized commit first.
func (result *UpdateResult) TxIds() []string {
	txIds := []string{}
	if result.CommitTxId != "" {
		txIds = append(txIds, result.CommitTxId)
	}
	return append(txIds, result.Recovered...)
}

// Update closes the connection if it was closed on chain and recovers every
// output the client can claim.
func (mph *Mph) Update(connection *Connection, clearance uint32) (*UpdateResult, error) {
	result := &UpdateResult{Recovered: []string{}}

	h2cPublished, err := mph.Engine.Api.PublishedCommits(connection.H2cState)
	if err != nil {
		return nil, err
	}
	closed, err := mph.IsClosed(connection, clearance)
	if err != nil {
		return nil, err
	}
	if closed && len(h2cPublished) == 0 {
		if result.CommitTxId, err = mph.Close(connection); err != nil {
			return nil, err
		}
		result.Closed = true
	}

	if connection.RecoveryLog == nil {
		connection.RecoveryLog = channel.RecoveryLog{}
	}
	recovered, err := mph.Engine.Recover(connection.C2hState, connection.H2cState, connection.Secrets, connection.RecoveryLog)
	result.Recovered = append(result.Recovered, recovered.All()...)
	return result, err
}

func (mph *Mph) Status(connection *Connection, clearance uint32) (*channel.Status, error) {
	return mph.Engine.GetStatus(connection.C2hState, connection.H2cState, connection.Secrets, clearance)
}
