package channel

import (
	"testing"

	"github.com/picopayments/picopayments-client/internal/test"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
	"github.com/stretchr/testify/require"
)

func (f *fixture) recover(t *testing.T, log RecoveryLog) *Recovered {
	recovered, err := f.engine.Recover(f.send, f.recv, f.secrets, log)
	require.NoError(t, err)
	return recovered
}

func TestRecoverNothing(t *testing.T) {
	f := newFixture(t)
	recovered := f.recover(t, RecoveryLog{})
	require.True(t, recovered.Empty())
}

func TestRecoverChange(t *testing.T) {
	f := newFixture(t)
	f.secrets.Add(f.hub.Connection(f.handle).SpendSecret.Value)

	log := RecoveryLog{}
	recovered := f.recover(t, log)
	require.Len(t, recovered.Change, 1)
	require.Len(t, log, 1)
	require.Equal(t, recovered.Change, recovered.All())

	address, err := f.engine.depositAddress(f.send)
	require.NoError(t, err)
	balance, err := f.engine.Onchain.Balance(address)
	require.NoError(t, err)
	require.Zero(t, balance)
}

func TestRecoverExpire(t *testing.T) {
	f := newFixture(t)
	f.hub.SetTtl(f.send.DepositScript, ttl(0))

	recovered := f.recover(t, RecoveryLog{})
	require.Len(t, recovered.Expire, 1)
	require.Empty(t, recovered.Change)
}

func TestRecoverPayout(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 600)

	txId, err := f.engine.FinalizeCommit(f.recv)
	require.NoError(t, err)
	require.NotEmpty(t, txId)

	recovered := f.recover(t, RecoveryLog{})
	require.Len(t, recovered.Payout, 1)

	address, err := mpc.WifAddress(f.wif, mpc.TestNet)
	require.NoError(t, err)
	payout, err := f.engine.Onchain.GetTransaction(recovered.Payout[0])
	require.NoError(t, err)
	_, value, err := payout.FindVout(mpc.TestNet, address.EncodeAddress())
	require.NoError(t, err)
	require.EqualValues(t, test.DustSize-test.TxFee, value)
}

func TestRecoverRevoke(t *testing.T) {
	f := newFixture(t)
	result := f.transfer(t, 500)

	// the hub publishes a commit and then revokes it
	published, err := f.engine.Signer.SignFinalizeCommit(result.Commit.RawTx, f.hubKey(), f.send.DepositScript)
	require.NoError(t, err)
	_, err = f.chain.BroadcastTransaction(published)
	require.NoError(t, err)
	revokeSecret := f.hub.Connection(f.handle).RevokeSecret(f.sendNextRevokeHash)
	require.NotNil(t, revokeSecret)
	require.NoError(t, f.send.RevokeAll([]mpc.HexString{revokeSecret}))

	recovered := f.recover(t, RecoveryLog{})
	require.Len(t, recovered.Revoke, 1)
}

func TestRecoverIdempotent(t *testing.T) {
	f := newFixture(t)
	f.secrets.Add(f.hub.Connection(f.handle).SpendSecret.Value)
	// keeps offering the spent deposit output
	f.hub.IgnoreSpent = true

	log := RecoveryLog{}
	first := f.recover(t, log)
	require.Len(t, first.Change, 1)

	second := f.recover(t, log)
	require.True(t, second.Empty())
	require.Len(t, f.chain.Broadcasts(), 2)

	recovered, err := f.engine.Recover(f.send, f.recv, f.secrets, RecoveryLog{})
	require.Error(t, err)
	require.True(t, recovered.Empty())
}

type foreignRecoverables struct {
	*test.Hub
	script []byte
}

func (api foreignRecoverables) Recoverables(*mpc.State, []byte) (*hub.Recoverables, error) {
	return &hub.Recoverables{
		Change: []hub.ChangeTx{{ChangeRawTx: "00", DepositScript: api.script}},
	}, nil
}

func TestRecoverForeignScript(t *testing.T) {
	f := newFixture(t)
	f.engine.Api = foreignRecoverables{Hub: f.hub, script: f.recv.DepositScript}

	_, err := f.engine.Recover(f.send, f.recv, f.secrets, RecoveryLog{})
	require.ErrorIs(t, err, ErrForeignScript)
	require.Len(t, f.chain.Broadcasts(), 1)
}

func TestFinalizeCommit(t *testing.T) {
	t.Run("NoCommits", func(t *testing.T) {
		f := newFixture(t)
		txId, err := f.engine.FinalizeCommit(f.recv)
		require.NoError(t, err)
		require.Empty(t, txId)
	})

	t.Run("Highest", func(t *testing.T) {
		f := newFixture(t)
		f.receive(t, 300)
		f.receive(t, 600)

		txId, err := f.engine.FinalizeCommit(f.recv)
		require.NoError(t, err)
		require.NotEmpty(t, txId)

		highest, err := f.hub.HighestCommit(f.recv)
		require.NoError(t, err)
		payouts, err := f.hub.Payouts(f.recv)
		require.NoError(t, err)
		require.Len(t, payouts, 1)
		require.Equal(t, highest.Script, payouts[0].CommitScript)
	})

	t.Run("DepositSpent", func(t *testing.T) {
		f := newFixture(t)
		f.receive(t, 600)

		txId, err := f.engine.FinalizeCommit(f.recv)
		require.NoError(t, err)
		require.NotEmpty(t, txId)

		txId, err = f.engine.FinalizeCommit(f.recv)
		require.NoError(t, err)
		require.Empty(t, txId)
	})

	t.Run("NotSignedByPayer", func(t *testing.T) {
		f := newFixture(t)
		revokeHash, err := f.secrets.Generate()
		require.NoError(t, err)
		f.recv.RequestCommit(revokeHash)
		created, err := f.hub.CreateCommit(f.recv, 600, revokeHash, delayTime)
		require.NoError(t, err)
		require.NoError(t, f.recv.AddCommit(created.ToSign.CommitRawTx, created.CommitScript))

		_, err = f.engine.FinalizeCommit(f.recv)
		require.ErrorIs(t, err, mpc.ErrInvalidPayerSignature)
	})
}

func TestSettled(t *testing.T) {
	f := newFixture(t)
	log := RecoveryLog{}
	settled := func() bool {
		settled, err := f.engine.Settled(f.send, f.recv, f.secrets, log)
		require.NoError(t, err)
		return settled
	}

	// the deposit is still funded
	require.False(t, settled())

	f.receive(t, 600)
	_, err := f.engine.FinalizeCommit(f.recv)
	require.NoError(t, err)
	f.secrets.Add(f.hub.Connection(f.handle).SpendSecret.Value)
	require.False(t, settled())

	recovered := f.recover(t, log)
	require.Len(t, recovered.Change, 1)
	require.Len(t, recovered.Payout, 1)
	require.True(t, settled())
}
