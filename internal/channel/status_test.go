package channel

import (
	"testing"

	"github.com/picopayments/picopayments-client/internal/test"
	"github.com/stretchr/testify/require"
)

func ttl(value uint64) *uint64 {
	return &value
}

func TestResolveStatus(t *testing.T) {
	tests := []struct {
		name      string
		sendTtl   *uint64
		recvTtl   *uint64
		secret    bool
		published bool
		expected  ChannelStatus
	}{
		{name: "Unconfirmed", expected: StatusOpening},
		{name: "SendUnconfirmed", recvTtl: ttl(10), expected: StatusOpening},
		{name: "RecvUnconfirmed", sendTtl: ttl(10), expected: StatusOpening},
		{name: "Open", sendTtl: ttl(10), recvTtl: ttl(5), expected: StatusOpen},
		{name: "SendExpired", sendTtl: ttl(0), recvTtl: ttl(5), expected: StatusClosed},
		{name: "RecvExpired", sendTtl: ttl(10), recvTtl: ttl(0), expected: StatusClosed},
		{name: "ExpiredWhileOpening", sendTtl: ttl(0), expected: StatusClosed},
		{name: "SpendSecret", sendTtl: ttl(10), recvTtl: ttl(5), secret: true, expected: StatusClosed},
		{name: "SpendSecretWhileOpening", secret: true, expected: StatusClosed},
		{name: "Published", sendTtl: ttl(10), recvTtl: ttl(5), published: true, expected: StatusClosed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expected, ResolveStatus(tc.sendTtl, tc.recvTtl, tc.secret, tc.published))
		})
	}
}

func TestGetStatus(t *testing.T) {
	f := newFixture(t)

	status, err := f.engine.GetStatus(f.send, f.recv, f.secrets, DefaultClearance)
	require.NoError(t, err)
	require.Equal(t, StatusOpen, status.Status)
	require.Equal(t, asset, status.Asset)
	require.Equal(t, "XTN", status.Netcode)
	require.EqualValues(t, depositAmount, status.Balance)
	require.Equal(t, ttl(expireTime-DefaultClearance), status.Ttl)

	require.EqualValues(t, depositAmount, status.Send.DepositBalances[asset])
	require.EqualValues(t, test.DepositValue, status.Send.DepositBalances["BTC"])
	require.EqualValues(t, expireTime, status.Send.DepositExpireTime)
	require.Zero(t, status.Send.TransferredQuantity)
	require.EqualValues(t, depositAmount, status.Recv.Balance)

	f.receive(t, 600)
	status, err = f.engine.GetStatus(f.send, f.recv, f.secrets, DefaultClearance)
	require.NoError(t, err)
	require.EqualValues(t, depositAmount+600, status.Balance)
	require.EqualValues(t, 600, status.Recv.TransferredQuantity)
	require.EqualValues(t, depositAmount-600, status.Recv.Balance)

	f.transfer(t, 1000)
	status, err = f.engine.GetStatus(f.send, f.recv, f.secrets, DefaultClearance)
	require.NoError(t, err)
	require.EqualValues(t, depositAmount-400, status.Balance)
	require.EqualValues(t, 400, status.Send.TransferredQuantity)
	require.Zero(t, status.Recv.TransferredQuantity)
	require.Equal(t, StatusOpen, status.Status)
}

func TestGetStatusTransitions(t *testing.T) {
	t.Run("Opening", func(t *testing.T) {
		f := newFixture(t)
		f.hub.SetTtl(f.recv.DepositScript, nil)

		status, err := f.engine.GetStatus(f.send, f.recv, f.secrets, DefaultClearance)
		require.NoError(t, err)
		require.Equal(t, StatusOpening, status.Status)
		require.Nil(t, status.Ttl)
		require.Nil(t, status.Recv.DepositTtl)
	})

	t.Run("Expired", func(t *testing.T) {
		f := newFixture(t)
		f.hub.SetTtl(f.send.DepositScript, ttl(0))

		status, err := f.engine.GetStatus(f.send, f.recv, f.secrets, DefaultClearance)
		require.NoError(t, err)
		require.Equal(t, StatusClosed, status.Status)
		require.Equal(t, ttl(0), status.Ttl)
	})

	t.Run("SpendSecret", func(t *testing.T) {
		f := newFixture(t)
		f.secrets.Add(f.hub.Connection(f.handle).SpendSecret.Value)

		status, err := f.engine.GetStatus(f.send, f.recv, f.secrets, DefaultClearance)
		require.NoError(t, err)
		require.Equal(t, StatusClosed, status.Status)
	})

	t.Run("PublishedCommit", func(t *testing.T) {
		f := newFixture(t)
		result := f.transfer(t, 100)
		published, err := f.engine.Signer.SignFinalizeCommit(result.Commit.RawTx, f.hubKey(), f.send.DepositScript)
		require.NoError(t, err)
		_, err = f.chain.BroadcastTransaction(published)
		require.NoError(t, err)

		status, err := f.engine.GetStatus(f.send, f.recv, f.secrets, DefaultClearance)
		require.NoError(t, err)
		require.Equal(t, StatusClosed, status.Status)
	})

	t.Run("AssetMismatch", func(t *testing.T) {
		f := newFixture(t)
		f.recv.Asset = "BTC"

		_, err := f.engine.GetStatus(f.send, f.recv, f.secrets, DefaultClearance)
		require.Error(t, err)
	})
}

func TestBalances(t *testing.T) {
	f := newFixture(t)
	address, err := f.engine.depositAddress(f.send)
	require.NoError(t, err)

	balances, err := f.engine.Balances(address, []string{"BTC", asset, "PEPECASH"})
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"BTC": test.DepositValue, asset: depositAmount, "PEPECASH": 0}, balances)

	balances, err = f.engine.Balances(address, []string{asset})
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{asset: depositAmount}, balances)

	balances, err = f.engine.Balances(address, nil)
	require.NoError(t, err)
	require.Equal(t, map[string]uint64{"BTC": test.DepositValue, asset: depositAmount}, balances)
}
