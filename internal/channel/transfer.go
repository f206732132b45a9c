package channel

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// ErrRevokedPastQuantity is returned when the revoke hashes the hub selected
// would lower the inbound transferred amount below the requested floor.
var ErrRevokedPastQuantity = errors.New("revocation would pass the requested quantity")

// ErrInboundIncreased is returned when the inbound transferred amount grows
// after revoking inbound commits.
var ErrInboundIncreased = errors.New("inbound transferred amount increased after revocation")

type TransferRequest struct {
	Send     *mpc.State
	Recv     *mpc.State
	Quantity uint64
	Secrets  *SecretStore

	// NextRevokeSecretHash is the hash the counterparty requested for the next outbound commit
	NextRevokeSecretHash []byte
	DelayTime            uint32
}

type TransferResult struct {
	Send    *mpc.State
	Recv    *mpc.State
	Revokes []mpc.HexString
	// Commit is nil if the quantity was covered by revocations alone
	Commit *mpc.Commit
}

// RevokeFloor is the lowest inbound transferred amount a transfer of quantity may revoke down to.
func RevokeFloor(recvMovedBefore uint64, quantity uint64) uint64 {
	if recvMovedBefore > quantity {
		return recvMovedBefore - quantity
	}
	return 0
}

// Transfer moves quantity to the counterparty. Inbound commits are revoked
// first and only the remainder is sent with a new outbound commit.
func (engine *Engine) Transfer(request TransferRequest) (*TransferResult, error) {
	result := &TransferResult{
		Send:    request.Send.Clone(),
		Recv:    request.Recv.Clone(),
		Revokes: []mpc.HexString{},
	}

	recvMovedBefore, err := engine.Api.TransferredAmount(result.Recv)
	if err != nil {
		return nil, fmt.Errorf("could not get inbound transferred amount: %w", err)
	}

	var revoked uint64
	if recvMovedBefore > 0 {
		floor := RevokeFloor(recvMovedBefore, request.Quantity)
		hashes, err := engine.Api.RevokeHashesUntil(result.Recv, floor, false)
		if err != nil {
			return nil, fmt.Errorf("could not get revoke hashes: %w", err)
		}
		for _, hash := range hashes {
			secret, err := request.Secrets.Get(hash)
			if err != nil {
				return nil, fmt.Errorf("could not get revoke secret: %w", err)
			}
			result.Revokes = append(result.Revokes, secret)
		}

		if len(result.Revokes) > 0 {
			if err := result.Recv.RevokeAll(result.Revokes); err != nil {
				return nil, err
			}
			recvMovedAfter, err := engine.Api.TransferredAmount(result.Recv)
			if err != nil {
				return nil, fmt.Errorf("could not get inbound transferred amount: %w", err)
			}
			if recvMovedAfter > recvMovedBefore {
				return nil, fmt.Errorf("%w: %d > %d", ErrInboundIncreased, recvMovedAfter, recvMovedBefore)
			}
			if recvMovedAfter < floor {
				return nil, fmt.Errorf("%w: %d < %d", ErrRevokedPastQuantity, recvMovedAfter, floor)
			}
			revoked = recvMovedBefore - recvMovedAfter
		}
		logger.Debugf("Revoked %d of %d inbound with %d secrets", revoked, recvMovedBefore, len(result.Revokes))
	}

	sendQuantity := request.Quantity - revoked
	if sendQuantity == 0 {
		return result, nil
	}

	sendMovedBefore, err := engine.Api.TransferredAmount(result.Send)
	if err != nil {
		return nil, fmt.Errorf("could not get outbound transferred amount: %w", err)
	}
	result.Send, result.Commit, err = engine.createSignedCommit(
		result.Send, sendMovedBefore+sendQuantity, request.NextRevokeSecretHash, request.DelayTime,
	)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (engine *Engine) createSignedCommit(state *mpc.State, quantity uint64, revokeSecretHash []byte, delayTime uint32) (*mpc.State, *mpc.Commit, error) {
	created, err := engine.Api.CreateCommit(state, quantity, revokeSecretHash, delayTime)
	if err != nil {
		return nil, nil, fmt.Errorf("could not create commit: %w", err)
	}
	if err := checkCreatedCommit(state, created.State, created.CommitScript, created.ToSign.DepositScript, revokeSecretHash, delayTime); err != nil {
		return nil, nil, err
	}

	signed, err := engine.Signer.SignCreatedCommit(created.ToSign.CommitRawTx, engine.Keys, state.DepositScript)
	if err != nil {
		return nil, nil, fmt.Errorf("could not sign commit: %w", err)
	}

	newState := created.State.Clone()
	replaced := false
	for i, commit := range newState.CommitsActive {
		if bytes.Equal(commit.Script, created.CommitScript) {
			newState.CommitsActive[i].RawTx = signed
			replaced = true
		}
	}
	if !replaced {
		return nil, nil, errors.New("created commit is missing from returned state")
	}
	logger.Debugf("Created commit of %d to %s", quantity, created.CommitScript)
	return newState, &mpc.Commit{RawTx: signed, Script: created.CommitScript}, nil
}

func checkCreatedCommit(state *mpc.State, newState *mpc.State, commitScript []byte, toSign []byte, revokeSecretHash []byte, delayTime uint32) error {
	if !bytes.Equal(newState.DepositScript, state.DepositScript) || !bytes.Equal(toSign, state.DepositScript) {
		return fmt.Errorf("%w: created commit is for another deposit", mpc.ErrInvalidScript)
	}
	deposit, err := mpc.ParseDepositScript(state.DepositScript)
	if err != nil {
		return err
	}
	commit, err := mpc.ParseCommitScript(commitScript)
	if err != nil {
		return err
	}
	switch {
	case !bytes.Equal(commit.PayerPubkey, deposit.PayerPubkey), !bytes.Equal(commit.PayeePubkey, deposit.PayeePubkey):
		return fmt.Errorf("%w: commit pubkeys do not match deposit", mpc.ErrInvalidScript)
	case !bytes.Equal(commit.SpendSecretHash, deposit.SpendSecretHash):
		return fmt.Errorf("%w: commit spend secret hash does not match deposit", mpc.ErrInvalidScript)
	case !bytes.Equal(commit.RevokeSecretHash, revokeSecretHash):
		return fmt.Errorf("%w: commit revoke secret hash was not requested", mpc.ErrInvalidScript)
	case commit.DelayTime != delayTime:
		return fmt.Errorf("%w: commit delay time %d, expected %d", mpc.ErrInvalidScript, commit.DelayTime, delayTime)
	}
	return nil
}
