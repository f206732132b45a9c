package mpc

import (
	"errors"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

type mapFetcher map[string]string

func (fetcher mapFetcher) GetRawTransaction(txId string) (string, error) {
	raw, ok := fetcher[txId]
	if !ok {
		return "", errors.New("transaction not found")
	}
	return raw, nil
}

type signerFixture struct {
	payer   *btcutil.WIF
	payee   *btcutil.WIF
	spend   *Secret
	revoke  *Secret
	fetcher mapFetcher
	signer  *Signer
}

func newSignerFixture(t *testing.T) *signerFixture {
	payer, err := GenerateWif(TestNet)
	require.NoError(t, err)
	payee, err := GenerateWif(TestNet)
	require.NoError(t, err)
	spend, err := NewSecret()
	require.NoError(t, err)
	revoke, err := NewSecret()
	require.NoError(t, err)
	fetcher := mapFetcher{}
	return &signerFixture{
		payer:   payer,
		payee:   payee,
		spend:   spend,
		revoke:  revoke,
		fetcher: fetcher,
		signer:  &Signer{Fetcher: fetcher},
	}
}

func (f *signerFixture) depositScript(t *testing.T) []byte {
	script, err := CompileDepositScript(f.payer.SerializePubKey(), f.payee.SerializePubKey(), f.spend.Hash, 10)
	require.NoError(t, err)
	return script
}

func (f *signerFixture) commitScript(t *testing.T) []byte {
	script, err := CompileCommitScript(f.payer.SerializePubKey(), f.payee.SerializePubKey(), f.spend.Hash, f.revoke.Hash, 2)
	require.NoError(t, err)
	return script
}

// fund creates a transaction paying to pkScript, makes it fetchable and
// returns an unsigned transaction spending it.
func (f *signerFixture) fund(t *testing.T, pkScript []byte) string {
	funding := wire.NewMsgTx(wire.TxVersion)
	funding.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&chainhash.Hash{1}, 0), nil, nil))
	funding.AddTxOut(wire.NewTxOut(100000, pkScript))
	fundingHex, err := NewBtcTx(funding).Serialize()
	require.NoError(t, err)
	f.fetcher[funding.TxHash().String()] = fundingHex

	address, err := WifAddress(f.payee, TestNet)
	require.NoError(t, err)
	destination, err := txscript.PayToAddrScript(address)
	require.NoError(t, err)

	fundingHash := funding.TxHash()
	spending := wire.NewMsgTx(wire.TxVersion)
	spending.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&fundingHash, 0), nil, nil))
	spending.AddTxOut(wire.NewTxOut(90000, destination))
	spendingHex, err := NewBtcTx(spending).Serialize()
	require.NoError(t, err)
	return spendingHex
}

func (f *signerFixture) fundScript(t *testing.T, script []byte) string {
	pkScript, err := scriptHashPkScript(script)
	require.NoError(t, err)
	return f.fund(t, pkScript)
}

func (f *signerFixture) requireValid(t *testing.T, rawTx string) {
	ctx, err := f.signer.load(rawTx)
	require.NoError(t, err)
	require.Zero(t, BadSignatureCount(ctx.tx, ctx.prevOuts))
}

func TestSignCommit(t *testing.T) {
	f := newSignerFixture(t)
	script := f.depositScript(t)
	unsigned := f.fundScript(t, script)

	halfSigned, err := f.signer.SignCreatedCommit(unsigned, SingleKey{f.payer}, script)
	require.NoError(t, err)

	ctx, err := f.signer.load(halfSigned)
	require.NoError(t, err)
	require.Equal(t, 1, BadSignatureCount(ctx.tx, ctx.prevOuts))

	signed, err := f.signer.SignFinalizeCommit(halfSigned, SingleKey{f.payee}, script)
	require.NoError(t, err)
	f.requireValid(t, signed)
}

func TestFinalizeCommitFraud(t *testing.T) {
	f := newSignerFixture(t)
	script := f.depositScript(t)
	unsigned := f.fundScript(t, script)

	t.Run("Unsigned", func(t *testing.T) {
		_, err := f.signer.SignFinalizeCommit(unsigned, SingleKey{f.payee}, script)
		require.ErrorIs(t, err, ErrInvalidPayerSignature)
	})

	t.Run("WrongKey", func(t *testing.T) {
		attacker, err := GenerateWif(TestNet)
		require.NoError(t, err)

		transaction, err := NewBtcTxFromHex(unsigned)
		require.NoError(t, err)
		tx := transaction.MsgTx()
		signature, err := txscript.RawTxInSignature(tx, 0, script, txscript.SigHashAll, attacker.PrivKey)
		require.NoError(t, err)
		tx.TxIn[0].SignatureScript, err = txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).AddData(signature).AddOp(txscript.OP_0).AddOp(txscript.OP_1).AddData(script).Script()
		require.NoError(t, err)
		forged, err := NewBtcTx(tx).Serialize()
		require.NoError(t, err)

		_, err = f.signer.SignFinalizeCommit(forged, SingleKey{f.payee}, script)
		require.ErrorIs(t, err, ErrInvalidPayerSignature)
	})

	t.Run("WrongSigHash", func(t *testing.T) {
		transaction, err := NewBtcTxFromHex(unsigned)
		require.NoError(t, err)
		tx := transaction.MsgTx()
		signature, err := txscript.RawTxInSignature(tx, 0, script, txscript.SigHashSingle, f.payer.PrivKey)
		require.NoError(t, err)
		tx.TxIn[0].SignatureScript, err = txscript.NewScriptBuilder().
			AddOp(txscript.OP_0).AddData(signature).AddOp(txscript.OP_0).AddOp(txscript.OP_1).AddData(script).Script()
		require.NoError(t, err)
		forged, err := NewBtcTx(tx).Serialize()
		require.NoError(t, err)

		_, err = f.signer.SignFinalizeCommit(forged, SingleKey{f.payee}, script)
		require.ErrorIs(t, err, ErrInvalidPayerSignature)
	})
}

func TestSignDepositRecovers(t *testing.T) {
	f := newSignerFixture(t)
	script := f.depositScript(t)

	t.Run("Change", func(t *testing.T) {
		signed, err := f.signer.SignChangeRecover(f.fundScript(t, script), SingleKey{f.payer}, script, f.spend.Value)
		require.NoError(t, err)
		f.requireValid(t, signed)
	})

	t.Run("ChangeWrongSecret", func(t *testing.T) {
		_, err := f.signer.SignChangeRecover(f.fundScript(t, script), SingleKey{f.payer}, script, f.revoke.Value)
		require.ErrorIs(t, err, ErrInvalidSecret)
	})

	t.Run("Expire", func(t *testing.T) {
		signed, err := f.signer.SignExpireRecover(f.fundScript(t, script), SingleKey{f.payer}, script)
		require.NoError(t, err)
		f.requireValid(t, signed)
	})

	t.Run("ExpireWrongKey", func(t *testing.T) {
		_, err := f.signer.SignExpireRecover(f.fundScript(t, script), SingleKey{f.payee}, script)
		require.ErrorIs(t, err, ErrKeyMismatch)
	})
}

func TestSignCommitRecovers(t *testing.T) {
	f := newSignerFixture(t)
	script := f.commitScript(t)

	t.Run("Payout", func(t *testing.T) {
		signed, err := f.signer.SignPayoutRecover(f.fundScript(t, script), SingleKey{f.payee}, script, f.spend.Value)
		require.NoError(t, err)
		f.requireValid(t, signed)

		secret, err := GetSpendSecret(signed, script)
		require.NoError(t, err)
		require.Equal(t, f.spend.Value, secret)
	})

	t.Run("Revoke", func(t *testing.T) {
		signed, err := f.signer.SignRevokeRecover(f.fundScript(t, script), SingleKey{f.payer}, script, f.revoke.Value)
		require.NoError(t, err)
		f.requireValid(t, signed)

		secret, err := GetSpendSecret(signed, script)
		require.NoError(t, err)
		require.Nil(t, secret)
	})

	t.Run("RevokeWrongSecret", func(t *testing.T) {
		_, err := f.signer.SignRevokeRecover(f.fundScript(t, script), SingleKey{f.payer}, script, f.spend.Value)
		require.ErrorIs(t, err, ErrInvalidSecret)
	})

	t.Run("WrongScriptKind", func(t *testing.T) {
		_, err := f.signer.SignExpireRecover(f.fundScript(t, script), SingleKey{f.payer}, script)
		require.ErrorIs(t, err, ErrInvalidScript)
	})
}

func TestSignFunding(t *testing.T) {
	f := newSignerFixture(t)
	address, err := WifAddress(f.payer, TestNet)
	require.NoError(t, err)
	pkScript, err := txscript.PayToAddrScript(address)
	require.NoError(t, err)

	signed, err := f.signer.SignFunding(f.fund(t, pkScript), f.payer)
	require.NoError(t, err)
	f.requireValid(t, signed)

	_, err = f.signer.SignFunding(f.fund(t, pkScript), f.payee)
	require.Error(t, err)
}

func TestSignFetchFailure(t *testing.T) {
	f := newSignerFixture(t)
	script := f.depositScript(t)
	unsigned := f.fundScript(t, script)

	signer := &Signer{Fetcher: mapFetcher{}}
	_, err := signer.SignExpireRecover(unsigned, SingleKey{f.payer}, script)
	require.ErrorContains(t, err, "could not fetch transaction")
}

func TestSignUnknownSpend(t *testing.T) {
	f := newSignerFixture(t)
	script := f.depositScript(t)
	_, err := f.signer.Sign(f.fundScript(t, script), SingleKey{f.payer}, script, "steal", nil)
	require.ErrorIs(t, err, ErrUnknownSpend)
}
