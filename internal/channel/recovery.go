package channel

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

// ErrForeignScript is returned when the hub offers a recovery for a script
// that is not part of the channel.
var ErrForeignScript = errors.New("script does not belong to channel")

type RecoveryKind string

const (
	RecoverPayout RecoveryKind = "payout"
	RecoverRevoke RecoveryKind = "revoke"
	RecoverChange RecoveryKind = "change"
	RecoverExpire RecoveryKind = "expire"
)

// Recovered lists the txids of published recovery transactions.
type Recovered struct {
	Payout []string `json:"payout"`
	Revoke []string `json:"revoke"`
	Change []string `json:"change"`
	Expire []string `json:"expire"`
}

func (recovered *Recovered) add(kind RecoveryKind, txId string) {
	switch kind {
	case RecoverPayout:
		recovered.Payout = append(recovered.Payout, txId)
	case RecoverRevoke:
		recovered.Revoke = append(recovered.Revoke, txId)
	case RecoverChange:
		recovered.Change = append(recovered.Change, txId)
	case RecoverExpire:
		recovered.Expire = append(recovered.Expire, txId)
	}
}

func (recovered *Recovered) All() []string {
	return slices.Concat(recovered.Payout, recovered.Revoke, recovered.Change, recovered.Expire)
}

func (recovered *Recovered) Empty() bool {
	return len(recovered.All()) == 0
}

// RecoveryLog remembers published recovery transactions by the outputs they spend.
type RecoveryLog map[string]string

func recoveryKey(kind RecoveryKind, script []byte, rawTx string) (string, error) {
	transaction, err := mpc.NewBtcTxFromHex(rawTx)
	if err != nil {
		return "", fmt.Errorf("could not decode %s transaction: %w", kind, err)
	}
	var outpoints []string
	for _, input := range transaction.MsgTx().TxIn {
		outpoints = append(outpoints, input.PreviousOutPoint.String())
	}
	slices.Sort(outpoints)
	return fmt.Sprintf("%s:%x:%s", kind, script, strings.Join(outpoints, ",")), nil
}

type recovery struct {
	kind   RecoveryKind
	rawTx  string
	script []byte
	sign   func() (string, error)
}

// Recover signs and publishes every recovery transaction available to the
// client. Payouts are claimed on the inbound channel, revoked commits, change
// and expired deposits on the outbound one. Failed recoveries do not stop the
// others; their errors are returned together with what was published.
func (engine *Engine) Recover(send *mpc.State, recv *mpc.State, secrets *SecretStore, log RecoveryLog) (*Recovered, error) {
	recovered := &Recovered{}

	recoveries, err := engine.findRecoveries(send, recv, secrets)
	if err != nil {
		return recovered, err
	}

	var merr *multierror.Error
	for _, recovery := range recoveries {
		key, err := recoveryKey(recovery.kind, recovery.script, recovery.rawTx)
		if err != nil {
			merr = multierror.Append(merr, err)
			continue
		}
		if txId, ok := log[key]; ok {
			logger.Debugf("Skipping %s recovery already published in %s", recovery.kind, txId)
			continue
		}
		signed, err := recovery.sign()
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("could not sign %s recovery: %w", recovery.kind, err))
			continue
		}
		txId, err := engine.Onchain.BroadcastTransaction(signed)
		if err != nil {
			merr = multierror.Append(merr, fmt.Errorf("could not publish %s recovery: %w", recovery.kind, err))
			continue
		}
		logger.Infof("Published %s recovery %s", recovery.kind, txId)
		log[key] = txId
		recovered.add(recovery.kind, txId)
	}
	return recovered, merr.ErrorOrNil()
}

func (engine *Engine) findRecoveries(send *mpc.State, recv *mpc.State, secrets *SecretStore) ([]recovery, error) {
	var recoveries []recovery

	payouts, err := engine.Api.Payouts(recv)
	if err != nil {
		return nil, fmt.Errorf("could not get payouts: %w", err)
	}
	for _, payout := range payouts {
		isActive := slices.ContainsFunc(recv.CommitsActive, func(commit mpc.Commit) bool {
			return bytes.Equal(commit.Script, payout.CommitScript)
		})
		if !isActive {
			return nil, fmt.Errorf("%w: payout of commit %s", ErrForeignScript, payout.CommitScript)
		}
		spendSecretHash, err := mpc.GetCommitSpendSecretHash(payout.CommitScript)
		if err != nil {
			return nil, err
		}
		spendSecret, err := secrets.Get(spendSecretHash)
		if err != nil {
			return nil, fmt.Errorf("could not get payout spend secret: %w", err)
		}
		recoveries = append(recoveries, recovery{
			kind:   RecoverPayout,
			rawTx:  payout.PayoutRawTx,
			script: payout.CommitScript,
			sign: func() (string, error) {
				return engine.Signer.SignPayoutRecover(payout.PayoutRawTx, engine.Keys, payout.CommitScript, spendSecret)
			},
		})
	}

	spendSecretHash, err := mpc.GetDepositSpendSecretHash(send.DepositScript)
	if err != nil {
		return nil, err
	}
	recoverables, err := engine.Api.Recoverables(send, secrets.Lookup(spendSecretHash))
	if err != nil {
		return nil, fmt.Errorf("could not get recoverables: %w", err)
	}
	for _, revoke := range recoverables.Revoke {
		revokeSecret := send.RevokeSecret(revoke.CommitScript)
		if revokeSecret == nil {
			return nil, fmt.Errorf("%w: revoke of commit %s", ErrForeignScript, revoke.CommitScript)
		}
		recoveries = append(recoveries, recovery{
			kind:   RecoverRevoke,
			rawTx:  revoke.RevokeRawTx,
			script: revoke.CommitScript,
			sign: func() (string, error) {
				return engine.Signer.SignRevokeRecover(revoke.RevokeRawTx, engine.Keys, revoke.CommitScript, revokeSecret)
			},
		})
	}
	for _, change := range recoverables.Change {
		if !bytes.Equal(change.DepositScript, send.DepositScript) {
			return nil, fmt.Errorf("%w: change of deposit %s", ErrForeignScript, change.DepositScript)
		}
		recoveries = append(recoveries, recovery{
			kind:   RecoverChange,
			rawTx:  change.ChangeRawTx,
			script: change.DepositScript,
			sign: func() (string, error) {
				return engine.Signer.SignChangeRecover(change.ChangeRawTx, engine.Keys, change.DepositScript, change.SpendSecret)
			},
		})
	}
	for _, expire := range recoverables.Expire {
		if !bytes.Equal(expire.DepositScript, send.DepositScript) {
			return nil, fmt.Errorf("%w: expire of deposit %s", ErrForeignScript, expire.DepositScript)
		}
		recoveries = append(recoveries, recovery{
			kind:   RecoverExpire,
			rawTx:  expire.ExpireRawTx,
			script: expire.DepositScript,
			sign: func() (string, error) {
				return engine.Signer.SignExpireRecover(expire.ExpireRawTx, engine.Keys, expire.DepositScript)
			},
		})
	}
	return recoveries, nil
}

// FinalizeCommit signs and publishes the highest commit of the inbound
// channel. An empty txid without error means there was nothing to publish or
// the commit was discarded because it can not be mined anymore.
func (engine *Engine) FinalizeCommit(state *mpc.State) (string, error) {
	commit, err := engine.Api.HighestCommit(state)
	if err != nil {
		return "", fmt.Errorf("could not get highest commit: %w", err)
	}
	if commit == nil {
		return "", nil
	}

	address, err := engine.depositAddress(state)
	if err != nil {
		return "", err
	}
	if err := engine.Onchain.CheckSpendsUnspent(commit.RawTx, address); err != nil {
		if errors.Is(err, onchain.ErrInputNotUnspent) {
			logger.Warnf("Discarding commit %s: %v", commit.Script, err)
			return "", nil
		}
		return "", err
	}

	signed, err := engine.Signer.SignFinalizeCommit(commit.RawTx, engine.Keys, state.DepositScript)
	if err != nil {
		return "", fmt.Errorf("could not finalize commit %s: %w", commit.Script, err)
	}
	bad, err := engine.Signer.CountBadSignatures(signed)
	if err != nil {
		return "", err
	}
	if bad != 0 {
		logger.Warnf("Discarding commit %s with %d bad signatures", commit.Script, bad)
		return "", nil
	}
	logger.Debugf("Publishing commit %s", commit.Script)
	return engine.Onchain.BroadcastTransaction(signed)
}

// Settled reports if a closed channel holds nothing the client could still
// claim. Every available recovery has to be in the log and the deposit, the
// inbound commits and the revoked outbound commits must hold no BTC.
func (engine *Engine) Settled(send *mpc.State, recv *mpc.State, secrets *SecretStore, log RecoveryLog) (bool, error) {
	recoveries, err := engine.findRecoveries(send, recv, secrets)
	if err != nil {
		return false, err
	}
	for _, recovery := range recoveries {
		key, err := recoveryKey(recovery.kind, recovery.script, recovery.rawTx)
		if err != nil {
			return false, err
		}
		if _, ok := log[key]; !ok {
			return false, nil
		}
	}

	scripts := []mpc.HexString{send.DepositScript}
	for _, commit := range recv.CommitsActive {
		scripts = append(scripts, commit.Script)
	}
	for _, commit := range send.CommitsRevoked {
		scripts = append(scripts, commit.Script)
	}
	for _, script := range scripts {
		address, err := mpc.ScriptAddress(script, engine.Onchain.Network)
		if err != nil {
			return false, err
		}
		balance, err := engine.Onchain.Balance(address.EncodeAddress())
		if err != nil {
			return false, err
		}
		if balance > 0 {
			return false, nil
		}
	}
	return true, nil
}
