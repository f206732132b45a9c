package mpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

var ErrUnrequestedCommit = errors.New("commit revoke secret hash was not requested")

type Commit struct {
	RawTx  string    `json:"rawtx"`
	Script HexString `json:"script"`
}

type RevokedCommit struct {
	Script       HexString `json:"script"`
	RevokeSecret HexString `json:"revoke_secret"`
}

// State is one direction of a channel in the format the hub expects.
// Active commits are never dropped, only moved to the revoked list.
type State struct {
	Asset            string          `json:"asset"`
	DepositScript    HexString       `json:"deposit_script"`
	CommitsRequested []HexString     `json:"commits_requested"`
	CommitsActive    []Commit        `json:"commits_active"`
	CommitsRevoked   []RevokedCommit `json:"commits_revoked"`
}

func NewState(asset string, depositScript []byte) *State {
	return &State{
		Asset:            asset,
		DepositScript:    depositScript,
		CommitsRequested: []HexString{},
		CommitsActive:    []Commit{},
		CommitsRevoked:   []RevokedCommit{},
	}
}

// MarshalJSON writes empty lists instead of null, the hub rejects the latter.
func (state State) MarshalJSON() ([]byte, error) {
	type plain State
	if state.CommitsRequested == nil {
		state.CommitsRequested = []HexString{}
	}
	if state.CommitsActive == nil {
		state.CommitsActive = []Commit{}
	}
	if state.CommitsRevoked == nil {
		state.CommitsRevoked = []RevokedCommit{}
	}
	return json.Marshal(plain(state))
}

func (state *State) Clone() *State {
	clone := *state
	clone.DepositScript = slices.Clone(state.DepositScript)
	clone.CommitsRequested = slices.Clone(state.CommitsRequested)
	clone.CommitsActive = slices.Clone(state.CommitsActive)
	clone.CommitsRevoked = slices.Clone(state.CommitsRevoked)
	return &clone
}

// RequestCommit tracks a revoke secret hash the counterparty may use for its next commit.
func (state *State) RequestCommit(revokeSecretHash []byte) {
	state.CommitsRequested = append(state.CommitsRequested, revokeSecretHash)
}

// RevokeAll moves every active commit whose revoke secret is given to the revoked list.
func (state *State) RevokeAll(secrets []HexString) error {
	bySecretHash := make(map[string]HexString, len(secrets))
	for _, secret := range secrets {
		bySecretHash[string(btcutil.Hash160(secret))] = secret
	}

	var active []Commit
	for _, commit := range state.CommitsActive {
		revokeHash, err := GetCommitRevokeSecretHash(commit.Script)
		if err != nil {
			return err
		}
		secret, ok := bySecretHash[string(revokeHash)]
		if !ok {
			active = append(active, commit)
			continue
		}
		state.CommitsRevoked = append(state.CommitsRevoked, RevokedCommit{
			Script:       commit.Script,
			RevokeSecret: secret,
		})
	}
	if active == nil {
		active = []Commit{}
	}
	state.CommitsActive = active
	return nil
}

// AddCommit validates a commit created by the counterparty against the
// deposit of this state and adds it to the active commits.
func (state *State) AddCommit(rawTx string, script []byte) error {
	deposit, err := ParseDepositScript(state.DepositScript)
	if err != nil {
		return err
	}
	commit, err := ParseCommitScript(script)
	if err != nil {
		return err
	}
	if !bytes.Equal(commit.PayerPubkey, deposit.PayerPubkey) || !bytes.Equal(commit.PayeePubkey, deposit.PayeePubkey) {
		return fmt.Errorf("%w: commit pubkeys do not match deposit", ErrInvalidScript)
	}
	if !bytes.Equal(commit.SpendSecretHash, deposit.SpendSecretHash) {
		return fmt.Errorf("%w: commit spend secret hash does not match deposit", ErrInvalidScript)
	}

	requested := slices.IndexFunc(state.CommitsRequested, func(hash HexString) bool {
		return bytes.Equal(hash, commit.RevokeSecretHash)
	})
	if requested == -1 {
		return fmt.Errorf("%w: %x", ErrUnrequestedCommit, commit.RevokeSecretHash)
	}

	transaction, err := NewBtcTxFromHex(rawTx)
	if err != nil {
		return fmt.Errorf("could not decode commit transaction: %w", err)
	}
	pkScript, err := scriptHashPkScript(script)
	if err != nil {
		return err
	}
	pays := slices.ContainsFunc(transaction.MsgTx().TxOut, func(output *wire.TxOut) bool {
		return bytes.Equal(output.PkScript, pkScript)
	})
	if !pays {
		return fmt.Errorf("%w: commit transaction does not pay to commit script", ErrInvalidScript)
	}

	state.CommitsRequested = slices.Delete(state.CommitsRequested, requested, requested+1)
	state.CommitsActive = append(state.CommitsActive, Commit{RawTx: rawTx, Script: script})
	return nil
}

// RevokeSecret returns the disclosed revoke secret of a revoked commit script.
func (state *State) RevokeSecret(script []byte) []byte {
	for _, revoked := range state.CommitsRevoked {
		if bytes.Equal(revoked.Script, script) {
			return revoked.RevokeSecret
		}
	}
	return nil
}
