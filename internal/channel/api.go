package channel

import (
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// Api holds the computations over channel states the hub performs on behalf of the client.
type Api interface {
	TransferredAmount(state *mpc.State) (uint64, error)
	RevokeHashesUntil(state *mpc.State, quantity uint64, surpass bool) ([]mpc.HexString, error)
	CreateCommit(state *mpc.State, quantity uint64, revokeSecretHash []byte, delayTime uint32) (*hub.CreateCommitResult, error)
	HighestCommit(state *mpc.State) (*mpc.Commit, error)
	DepositTtl(state *mpc.State, clearance uint32) (*uint64, error)
	PublishedCommits(state *mpc.State) ([]string, error)
	Payouts(state *mpc.State) ([]hub.PayoutTx, error)
	Recoverables(state *mpc.State, spendSecret []byte) (*hub.Recoverables, error)
	GetBalances(address string) ([]hub.BalanceEntry, error)
}

var _ Api = &hub.Api{}
