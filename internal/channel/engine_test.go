package channel

import (
	"os"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/internal/test"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
	"github.com/stretchr/testify/require"
)

const (
	asset         = "XCP"
	depositAmount = 10000
	expireTime    = 1024
	delayTime     = 2
)

type fixture struct {
	chain   *test.Chain
	hub     *test.Hub
	engine  *Engine
	wif     *btcutil.WIF
	secrets *SecretStore
	handle  string

	send *mpc.State
	recv *mpc.State
	// requested by the hub for the next outbound commit
	sendNextRevokeHash []byte
}

func TestMain(m *testing.M) {
	test.InitLogger()
	os.Exit(m.Run())
}

// newFixture opens a channel with both deposits published.
func newFixture(t *testing.T) *fixture {
	chain := test.NewChain(mpc.TestNet)
	fake, err := test.NewHub(chain)
	require.NoError(t, err)
	wif, err := mpc.GenerateWif(mpc.TestNet)
	require.NoError(t, err)

	address, err := mpc.WifAddress(wif, mpc.TestNet)
	require.NoError(t, err)
	_, err = chain.FundAddress(address, 10*test.DepositValue)
	require.NoError(t, err)

	f := &fixture{
		chain:   chain,
		hub:     fake,
		engine:  NewEngine(fake, &onchain.Onchain{Chain: chain, Network: mpc.TestNet}, mpc.SingleKey{Wif: wif}),
		wif:     wif,
		secrets: NewSecretStore(),
	}

	spendSecretHash, err := f.secrets.Generate()
	require.NoError(t, err)
	connection, err := fake.Request(wif.SerializePubKey(), hub.ConnectionRequest{Asset: asset, SpendSecretHash: spendSecretHash})
	require.NoError(t, err)
	f.handle = connection.Handle
	f.secrets.Track(connection.SpendSecretHash)

	deposit, err := fake.MakeDeposit(hub.MakeDepositRequest{
		Asset:           asset,
		PayerPubkey:     wif.SerializePubKey(),
		PayeePubkey:     connection.Pubkey,
		SpendSecretHash: connection.SpendSecretHash,
		ExpireTime:      expireTime,
		Quantity:        depositAmount,
	})
	require.NoError(t, err)
	signed, err := f.engine.Signer.SignFunding(deposit.ToPublish, wif)
	require.NoError(t, err)
	_, err = f.engine.Onchain.BroadcastTransaction(signed)
	require.NoError(t, err)

	nextRevokeHash, err := f.secrets.Generate()
	require.NoError(t, err)
	response, err := fake.Deposit(hub.DepositRequest{
		Handle:               connection.Handle,
		Asset:                asset,
		DepositScript:        deposit.State.DepositScript,
		NextRevokeSecretHash: nextRevokeHash,
	})
	require.NoError(t, err)

	f.send = deposit.State
	f.recv = mpc.NewState(asset, response.DepositScript)
	f.recv.RequestCommit(nextRevokeHash)
	f.sendNextRevokeHash = response.NextRevokeSecretHash
	return f
}

func (f *fixture) hubKey() mpc.KeyChain {
	return mpc.SingleKey{Wif: f.hub.Wif}
}

// receive adds an inbound commit of quantity signed by the hub and returns
// its revoke secret hash.
func (f *fixture) receive(t *testing.T, quantity uint64) []byte {
	revokeHash, err := f.secrets.Generate()
	require.NoError(t, err)
	f.receiveWithHash(t, quantity, revokeHash)
	return revokeHash
}

func (f *fixture) receiveWithHash(t *testing.T, quantity uint64, revokeHash []byte) {
	f.recv.RequestCommit(revokeHash)
	created, err := f.hub.CreateCommit(f.recv, quantity, revokeHash, delayTime)
	require.NoError(t, err)
	signed, err := f.engine.Signer.SignCreatedCommit(created.ToSign.CommitRawTx, f.hubKey(), f.recv.DepositScript)
	require.NoError(t, err)
	require.NoError(t, f.recv.AddCommit(signed, created.CommitScript))
}

func (f *fixture) transfer(t *testing.T, quantity uint64) *TransferResult {
	result, err := f.engine.Transfer(TransferRequest{
		Send:                 f.send,
		Recv:                 f.recv,
		Quantity:             quantity,
		Secrets:              f.secrets,
		NextRevokeSecretHash: f.sendNextRevokeHash,
		DelayTime:            delayTime,
	})
	require.NoError(t, err)
	f.send = result.Send
	f.recv = result.Recv
	return result
}

func TestDepositAddress(t *testing.T) {
	f := newFixture(t)

	address, err := f.engine.depositAddress(f.send)
	require.NoError(t, err)
	outputs, err := f.chain.GetUnspentOutputs(address)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	require.EqualValues(t, test.DepositValue, outputs[0].Value)
}
