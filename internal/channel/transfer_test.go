package channel

import (
	"bytes"
	"testing"

	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/test"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
	"github.com/stretchr/testify/require"
)

func TestRevokeFloor(t *testing.T) {
	tests := []struct {
		before   uint64
		quantity uint64
		floor    uint64
	}{
		{before: 600, quantity: 0, floor: 600},
		{before: 600, quantity: 400, floor: 200},
		{before: 600, quantity: 600, floor: 0},
		{before: 600, quantity: 1000, floor: 0},
		{before: 0, quantity: 10, floor: 0},
	}
	for _, tc := range tests {
		require.Equal(t, tc.floor, RevokeFloor(tc.before, tc.quantity))
	}
}

func TestTransferCommit(t *testing.T) {
	f := newFixture(t)

	result := f.transfer(t, 501)
	require.Empty(t, result.Revokes)
	require.NotNil(t, result.Commit)
	require.Len(t, result.Send.CommitsActive, 1)
	require.Equal(t, result.Commit.RawTx, result.Send.CommitsActive[0].RawTx)

	transferred, err := f.hub.TransferredAmount(result.Send)
	require.NoError(t, err)
	require.EqualValues(t, 501, transferred)

	// the payee signature is still missing
	bad, err := f.engine.Signer.CountBadSignatures(result.Commit.RawTx)
	require.NoError(t, err)
	require.Equal(t, 1, bad)

	published, err := f.engine.Signer.SignFinalizeCommit(result.Commit.RawTx, f.hubKey(), f.send.DepositScript)
	require.NoError(t, err)
	bad, err = f.engine.Signer.CountBadSignatures(published)
	require.NoError(t, err)
	require.Zero(t, bad)
	_, err = f.chain.BroadcastTransaction(published)
	require.NoError(t, err)
}

func TestTransferLogsCommitScript(t *testing.T) {
	var buffer bytes.Buffer
	logger.Quiet(logger.Options{Level: "debug", Logger: &buffer})
	t.Cleanup(test.InitLogger)

	f := newFixture(t)
	result := f.transfer(t, 200)
	require.Contains(t, buffer.String(), "Created commit of 200 to "+result.Commit.Script.String())
}

func TestTransferDoesNotMutateInput(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 300)

	send := f.send.Clone()
	recv := f.recv.Clone()
	_, err := f.engine.Transfer(TransferRequest{
		Send:                 f.send,
		Recv:                 f.recv,
		Quantity:             1000,
		Secrets:              f.secrets,
		NextRevokeSecretHash: f.sendNextRevokeHash,
		DelayTime:            delayTime,
	})
	require.NoError(t, err)
	require.Equal(t, send, f.send)
	require.Equal(t, recv, f.recv)
}

func TestTransferRevokesFirst(t *testing.T) {
	tests := []struct {
		name     string
		quantity uint64
		revoked  uint64
		sent     uint64
	}{
		{name: "Nothing", quantity: 0},
		{name: "BelowSmallestStep", quantity: 100, sent: 100},
		{name: "ExactStep", quantity: 300, revoked: 300},
		{name: "PartialStep", quantity: 400, revoked: 300, sent: 100},
		{name: "Everything", quantity: 600, revoked: 600},
		{name: "MoreThanReceived", quantity: 1000, revoked: 600, sent: 400},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.receive(t, 300)
			f.receive(t, 600)

			before, err := f.hub.TransferredAmount(f.recv)
			require.NoError(t, err)
			require.EqualValues(t, 600, before)

			result := f.transfer(t, tc.quantity)

			after, err := f.hub.TransferredAmount(result.Recv)
			require.NoError(t, err)
			require.GreaterOrEqual(t, after, RevokeFloor(before, tc.quantity))
			require.Equal(t, tc.revoked, before-after)
			require.Len(t, result.Recv.CommitsRevoked, len(result.Revokes))

			sent, err := f.hub.TransferredAmount(result.Send)
			require.NoError(t, err)
			require.Equal(t, tc.sent, sent)
			require.Equal(t, tc.quantity, tc.revoked+sent)
			require.Equal(t, sent > 0, result.Commit != nil)
		})
	}
}

func TestTransferRevokeSecrets(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 300)
	highest := f.receive(t, 600)

	result := f.transfer(t, 400)
	require.Equal(t, []mpc.HexString{f.secrets.Lookup(highest)}, result.Revokes)
	require.Len(t, result.Recv.CommitsActive, 1)
	require.Equal(t, mpc.HexString(f.secrets.Lookup(highest)), result.Recv.CommitsRevoked[0].RevokeSecret)
}

func TestTransferRevokedPastQuantity(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 300)
	f.receive(t, 600)
	f.hub.OverRevoke = true

	_, err := f.engine.Transfer(TransferRequest{
		Send:                 f.send,
		Recv:                 f.recv,
		Quantity:             100,
		Secrets:              f.secrets,
		NextRevokeSecretHash: f.sendNextRevokeHash,
		DelayTime:            delayTime,
	})
	require.ErrorIs(t, err, ErrRevokedPastQuantity)
	require.Len(t, f.recv.CommitsActive, 2)
	require.Empty(t, f.recv.CommitsRevoked)
}

type growingTransferred struct {
	*test.Hub
	recv  *mpc.State
	calls int
}

// TransferredAmount reports more inbound funds after the first call.
func (api *growingTransferred) TransferredAmount(state *mpc.State) (uint64, error) {
	if !bytes.Equal(state.DepositScript, api.recv.DepositScript) {
		return api.Hub.TransferredAmount(state)
	}
	api.calls++
	if api.calls == 1 {
		return 100, nil
	}
	return 150, nil
}

func TestTransferInboundIncreased(t *testing.T) {
	f := newFixture(t)
	f.receive(t, 100)
	f.hub.OverRevoke = true
	f.engine.Api = &growingTransferred{Hub: f.hub, recv: f.recv}

	_, err := f.engine.Transfer(TransferRequest{
		Send:                 f.send,
		Recv:                 f.recv,
		Quantity:             10,
		Secrets:              f.secrets,
		NextRevokeSecretHash: f.sendNextRevokeHash,
		DelayTime:            delayTime,
	})
	require.ErrorIs(t, err, ErrInboundIncreased)

	sent, err := f.hub.TransferredAmount(f.send)
	require.NoError(t, err)
	require.Zero(t, sent)
}

func TestTransferUntrackedRevokeSecret(t *testing.T) {
	f := newFixture(t)
	foreign, err := mpc.NewSecret()
	require.NoError(t, err)
	f.receiveWithHash(t, 300, foreign.Hash)

	_, err = f.engine.Transfer(TransferRequest{
		Send:                 f.send,
		Recv:                 f.recv,
		Quantity:             300,
		Secrets:              f.secrets,
		NextRevokeSecretHash: f.sendNextRevokeHash,
		DelayTime:            delayTime,
	})
	require.ErrorIs(t, err, ErrSecretUntracked)
}

func TestTransferRejectsTamperedCommit(t *testing.T) {
	recompile := func(t *testing.T, result *hub.CreateCommitResult, revokeHash []byte, delay int64) {
		deposit, err := mpc.ParseDepositScript(result.State.DepositScript)
		require.NoError(t, err)
		result.CommitScript, err = mpc.CompileCommitScript(deposit.PayerPubkey, deposit.PayeePubkey, deposit.SpendSecretHash, revokeHash, delay)
		require.NoError(t, err)
	}

	tests := []struct {
		name   string
		tamper func(t *testing.T, f *fixture, result *hub.CreateCommitResult)
	}{
		{
			name: "RevokeHash",
			tamper: func(t *testing.T, f *fixture, result *hub.CreateCommitResult) {
				other, err := mpc.NewSecret()
				require.NoError(t, err)
				recompile(t, result, other.Hash, delayTime)
			},
		},
		{
			name: "DelayTime",
			tamper: func(t *testing.T, f *fixture, result *hub.CreateCommitResult) {
				recompile(t, result, f.sendNextRevokeHash, delayTime+1)
			},
		},
		{
			name: "ToSignDeposit",
			tamper: func(t *testing.T, f *fixture, result *hub.CreateCommitResult) {
				result.ToSign.DepositScript = f.recv.DepositScript
			},
		},
		{
			name: "StateDeposit",
			tamper: func(t *testing.T, f *fixture, result *hub.CreateCommitResult) {
				result.State.DepositScript = f.recv.DepositScript
			},
		},
		{
			name: "Pubkeys",
			tamper: func(t *testing.T, f *fixture, result *hub.CreateCommitResult) {
				deposit, err := mpc.ParseDepositScript(result.State.DepositScript)
				require.NoError(t, err)
				result.CommitScript, err = mpc.CompileCommitScript(deposit.PayeePubkey, deposit.PayerPubkey, deposit.SpendSecretHash, f.sendNextRevokeHash, delayTime)
				require.NoError(t, err)
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			f.hub.CommitHook = func(result *hub.CreateCommitResult) {
				tc.tamper(t, f, result)
			}

			_, err := f.engine.Transfer(TransferRequest{
				Send:                 f.send,
				Recv:                 f.recv,
				Quantity:             100,
				Secrets:              f.secrets,
				NextRevokeSecretHash: f.sendNextRevokeHash,
				DelayTime:            delayTime,
			})
			require.ErrorIs(t, err, mpc.ErrInvalidScript)
		})
	}
}
