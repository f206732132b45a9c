package mpc

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

type SpendType string

const (
	SpendCreateCommit   SpendType = "create_commit"
	SpendFinalizeCommit SpendType = "finalize_commit"
	SpendPayout         SpendType = "payout"
	SpendRevoke         SpendType = "revoke"
	SpendChange         SpendType = "change"
	SpendExpire         SpendType = "expire"
)

func (spendType SpendType) scriptKind() (ScriptKind, error) {
	switch spendType {
	case SpendCreateCommit, SpendFinalizeCommit, SpendChange, SpendExpire:
		return KindDeposit, nil
	case SpendPayout, SpendRevoke:
		return KindCommit, nil
	}
	return 0, fmt.Errorf("%w: %s", ErrUnknownSpend, spendType)
}

// legacy P2SH verification; the relative timelock is checked by the network
// and not by us, so OP_NOP3 stays a nop here
const verifyFlags = txscript.ScriptBip16 |
	txscript.ScriptVerifyDERSignatures |
	txscript.ScriptVerifyStrictEncoding

// TxFetcher returns the hex encoded raw transaction for a txid.
type TxFetcher interface {
	GetRawTransaction(txId string) (string, error)
}

type Signer struct {
	Fetcher TxFetcher
}

type prevOutContext struct {
	tx       *wire.MsgTx
	prevOuts *txscript.MultiPrevOutFetcher
}

func (signer *Signer) load(rawTx string) (*prevOutContext, error) {
	transaction, err := NewBtcTxFromHex(rawTx)
	if err != nil {
		return nil, fmt.Errorf("could not decode transaction: %w", err)
	}
	tx := transaction.MsgTx()
	prevOuts := txscript.NewMultiPrevOutFetcher(nil)
	fetched := make(map[chainhash.Hash]*wire.MsgTx)
	for _, input := range tx.TxIn {
		outpoint := input.PreviousOutPoint
		previous, ok := fetched[outpoint.Hash]
		if !ok {
			raw, err := signer.Fetcher.GetRawTransaction(outpoint.Hash.String())
			if err != nil {
				return nil, fmt.Errorf("could not fetch transaction %s: %w", outpoint.Hash, err)
			}
			decoded, err := NewBtcTxFromHex(raw)
			if err != nil {
				return nil, fmt.Errorf("could not decode transaction %s: %w", outpoint.Hash, err)
			}
			previous = decoded.MsgTx()
			if previous.TxHash() != outpoint.Hash {
				return nil, fmt.Errorf("fetched transaction does not match %s", outpoint.Hash)
			}
			fetched[outpoint.Hash] = previous
		}
		if int(outpoint.Index) >= len(previous.TxOut) {
			return nil, fmt.Errorf("%w: %s", ErrMissingPrevious, outpoint)
		}
		prevOuts.AddPrevOut(outpoint, previous.TxOut[outpoint.Index])
	}
	return &prevOutContext{tx: tx, prevOuts: prevOuts}, nil
}

// BadSignatureCount returns how many inputs of the transaction fail script
// verification.
func BadSignatureCount(tx *wire.MsgTx, prevOuts txscript.PrevOutputFetcher) int {
	sigHashes := txscript.NewTxSigHashes(tx, prevOuts)
	bad := 0
	for i, input := range tx.TxIn {
		prevOut := prevOuts.FetchPrevOutput(input.PreviousOutPoint)
		if prevOut == nil {
			bad++
			continue
		}
		engine, err := txscript.NewEngine(prevOut.PkScript, tx, i, verifyFlags, nil, sigHashes, prevOut.Value, prevOuts)
		if err != nil {
			bad++
			continue
		}
		if err := engine.Execute(); err != nil {
			bad++
		}
	}
	return bad
}

// CountBadSignatures fetches the outputs spent by a raw transaction and
// counts its inputs failing verification.
func (signer *Signer) CountBadSignatures(rawTx string) (int, error) {
	ctx, err := signer.load(rawTx)
	if err != nil {
		return 0, err
	}
	return BadSignatureCount(ctx.tx, ctx.prevOuts), nil
}

func signInput(tx *wire.MsgTx, index int, script []byte, keys KeyChain, pubkey []byte) ([]byte, error) {
	privateKey, err := keys.PrivateKey(pubkey)
	if err != nil {
		return nil, err
	}
	return txscript.RawTxInSignature(tx, index, script, txscript.SigHashAll, privateKey)
}

func checkSecret(secret []byte, hash []byte) error {
	if !bytes.Equal(btcutil.Hash160(secret), hash) {
		return fmt.Errorf("%w: %x", ErrInvalidSecret, hash)
	}
	return nil
}

// verifyPayerSignature checks the payer signature of a half signed commit input.
func verifyPayerSignature(tx *wire.MsgTx, index int, script []byte, payerPubkey []byte) ([]byte, error) {
	words, err := tokenize(tx.TxIn[index].SignatureScript)
	if err != nil || len(words) < 2 || words[0].opcode != txscript.OP_0 {
		return nil, ErrInvalidPayerSignature
	}
	signature := words[1].data
	if len(signature) < 2 || txscript.SigHashType(signature[len(signature)-1]) != txscript.SigHashAll {
		return nil, ErrInvalidPayerSignature
	}
	parsed, err := ecdsa.ParseDERSignature(signature[:len(signature)-1])
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayerSignature, err)
	}
	pubkey, err := btcec.ParsePubKey(payerPubkey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayerSignature, err)
	}
	hash, err := txscript.CalcSignatureHash(script, txscript.SigHashAll, tx, index)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayerSignature, err)
	}
	if !parsed.Verify(hash, pubkey) {
		return nil, ErrInvalidPayerSignature
	}
	return signature, nil
}

func (signer *Signer) scriptSig(ctx *prevOutContext, index int, parsed *Script, keys KeyChain, spendType SpendType, secret []byte) ([]byte, error) {
	tx := ctx.tx
	builder := txscript.NewScriptBuilder()
	switch spendType {
	case SpendCreateCommit:
		signature, err := signInput(tx, index, parsed.Raw, keys, parsed.Deposit.PayerPubkey)
		if err != nil {
			return nil, err
		}
		builder.AddOp(txscript.OP_0).AddData(signature).AddOp(txscript.OP_0).AddOp(txscript.OP_1)
	case SpendFinalizeCommit:
		payerSignature, err := verifyPayerSignature(tx, index, parsed.Raw, parsed.Deposit.PayerPubkey)
		if err != nil {
			return nil, err
		}
		payeeSignature, err := signInput(tx, index, parsed.Raw, keys, parsed.Deposit.PayeePubkey)
		if err != nil {
			return nil, err
		}
		builder.AddOp(txscript.OP_0).AddData(payerSignature).AddData(payeeSignature).AddOp(txscript.OP_1)
	case SpendChange:
		if err := checkSecret(secret, parsed.Deposit.SpendSecretHash); err != nil {
			return nil, err
		}
		signature, err := signInput(tx, index, parsed.Raw, keys, parsed.Deposit.PayerPubkey)
		if err != nil {
			return nil, err
		}
		builder.AddData(signature).AddData(secret).AddOp(txscript.OP_1).AddOp(txscript.OP_0)
	case SpendExpire:
		signature, err := signInput(tx, index, parsed.Raw, keys, parsed.Deposit.PayerPubkey)
		if err != nil {
			return nil, err
		}
		builder.AddData(signature).AddOp(txscript.OP_0).AddOp(txscript.OP_0)
	case SpendPayout:
		if err := checkSecret(secret, parsed.Commit.SpendSecretHash); err != nil {
			return nil, err
		}
		signature, err := signInput(tx, index, parsed.Raw, keys, parsed.Commit.PayeePubkey)
		if err != nil {
			return nil, err
		}
		builder.AddData(signature).AddData(secret).AddOp(txscript.OP_1)
	case SpendRevoke:
		if err := checkSecret(secret, parsed.Commit.RevokeSecretHash); err != nil {
			return nil, err
		}
		signature, err := signInput(tx, index, parsed.Raw, keys, parsed.Commit.PayerPubkey)
		if err != nil {
			return nil, err
		}
		builder.AddData(signature).AddData(secret).AddOp(txscript.OP_0)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownSpend, spendType)
	}
	builder.AddData(parsed.Raw)
	return builder.Script()
}

// Sign signs every input of the transaction spending the pay to script hash
// output of script along the branch selected by spendType.
func (signer *Signer) Sign(rawTx string, keys KeyChain, script []byte, spendType SpendType, secret []byte) (string, error) {
	kind, err := spendType.scriptKind()
	if err != nil {
		return "", err
	}
	parsed := &Script{Kind: kind, Raw: script}
	if kind == KindDeposit {
		parsed.Deposit, err = ParseDepositScript(script)
	} else {
		parsed.Commit, err = ParseCommitScript(script)
	}
	if err != nil {
		return "", err
	}

	ctx, err := signer.load(rawTx)
	if err != nil {
		return "", err
	}
	pkScript, err := scriptHashPkScript(script)
	if err != nil {
		return "", err
	}

	signed := 0
	for i, input := range ctx.tx.TxIn {
		prevOut := ctx.prevOuts.FetchPrevOutput(input.PreviousOutPoint)
		if !bytes.Equal(prevOut.PkScript, pkScript) {
			continue
		}
		scriptSig, err := signer.scriptSig(ctx, i, parsed, keys, spendType, secret)
		if err != nil {
			return "", err
		}
		input.SignatureScript = scriptSig
		signed++
	}
	if signed == 0 {
		return "", errors.New("transaction does not spend the given script")
	}

	if spendType != SpendCreateCommit {
		if bad := BadSignatureCount(ctx.tx, ctx.prevOuts); bad != 0 {
			panic(fmt.Sprintf("signed %s transaction has %d invalid signatures", spendType, bad))
		}
	}
	return NewBtcTx(ctx.tx).Serialize()
}

// SignFunding signs the pay to pubkey hash inputs of a funding transaction
// that belong to the wif.
func (signer *Signer) SignFunding(rawTx string, wif *btcutil.WIF) (string, error) {
	ctx, err := signer.load(rawTx)
	if err != nil {
		return "", err
	}
	address, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(wif.SerializePubKey()), MainNet.Btc)
	if err != nil {
		return "", err
	}
	pkScript, err := txscript.PayToAddrScript(address)
	if err != nil {
		return "", err
	}

	signed := 0
	for i, input := range ctx.tx.TxIn {
		prevOut := ctx.prevOuts.FetchPrevOutput(input.PreviousOutPoint)
		if !bytes.Equal(prevOut.PkScript, pkScript) {
			continue
		}
		scriptSig, err := txscript.SignatureScript(ctx.tx, i, prevOut.PkScript, txscript.SigHashAll, wif.PrivKey, wif.CompressPubKey)
		if err != nil {
			return "", fmt.Errorf("could not sign input %d: %w", i, err)
		}
		input.SignatureScript = scriptSig
		signed++
	}
	if signed == 0 {
		return "", errors.New("transaction has no inputs of the wallet")
	}
	if bad := BadSignatureCount(ctx.tx, ctx.prevOuts); bad != 0 {
		panic(fmt.Sprintf("signed funding transaction has %d invalid signatures", bad))
	}
	return NewBtcTx(ctx.tx).Serialize()
}

func (signer *Signer) SignCreatedCommit(rawTx string, keys KeyChain, depositScript []byte) (string, error) {
	return signer.Sign(rawTx, keys, depositScript, SpendCreateCommit, nil)
}

func (signer *Signer) SignFinalizeCommit(rawTx string, keys KeyChain, depositScript []byte) (string, error) {
	return signer.Sign(rawTx, keys, depositScript, SpendFinalizeCommit, nil)
}

func (signer *Signer) SignPayoutRecover(rawTx string, keys KeyChain, commitScript []byte, spendSecret []byte) (string, error) {
	return signer.Sign(rawTx, keys, commitScript, SpendPayout, spendSecret)
}

func (signer *Signer) SignRevokeRecover(rawTx string, keys KeyChain, commitScript []byte, revokeSecret []byte) (string, error) {
	return signer.Sign(rawTx, keys, commitScript, SpendRevoke, revokeSecret)
}

func (signer *Signer) SignChangeRecover(rawTx string, keys KeyChain, depositScript []byte, spendSecret []byte) (string, error) {
	return signer.Sign(rawTx, keys, depositScript, SpendChange, spendSecret)
}

func (signer *Signer) SignExpireRecover(rawTx string, keys KeyChain, depositScript []byte) (string, error) {
	return signer.Sign(rawTx, keys, depositScript, SpendExpire, nil)
}
