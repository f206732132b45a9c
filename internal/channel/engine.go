package channel

import (
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// Engine drives both directions of a channel. It only ever works on copies of
// the states it is given and returns the updated ones.
type Engine struct {
	Api     Api
	Onchain *onchain.Onchain
	Signer  *mpc.Signer
	Keys    mpc.KeyChain
}

func NewEngine(api Api, chain *onchain.Onchain, keys mpc.KeyChain) *Engine {
	return &Engine{
		Api:     api,
		Onchain: chain,
		Signer:  &mpc.Signer{Fetcher: chain.Chain},
		Keys:    keys,
	}
}

func (engine *Engine) depositAddress(state *mpc.State) (string, error) {
	address, err := mpc.ScriptAddress(state.DepositScript, engine.Onchain.Network)
	if err != nil {
		return "", err
	}
	return address.EncodeAddress(), nil
}
