package mpc

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

// MaxSequence is the largest relative timeout (in blocks) a deposit or commit
// script may use.
const MaxSequence = 0x0000FFFF

const hashSize = 20

type ScriptKind int

const (
	KindDeposit ScriptKind = iota
	KindCommit
)

func (kind ScriptKind) String() string {
	switch kind {
	case KindDeposit:
		return "deposit"
	case KindCommit:
		return "commit"
	}
	return "unknown"
}

// word positions inside the compiled templates
const (
	depositPayerWord       = 2
	depositPayeeWord       = 3
	depositSpendHashWord   = 9
	depositPayerSpendWord  = 11
	depositExpireWord      = 14
	depositPayerExpireWord = 17

	commitDelayWord      = 1
	commitSpendHashWord  = 5
	commitPayeeWord      = 7
	commitRevokeHashWord = 11
	commitPayerWord      = 13
)

var wildcard = []byte{0xde, 0xad, 0xbe, 0xef}

type DepositScript struct {
	PayerPubkey     []byte
	PayeePubkey     []byte
	SpendSecretHash []byte
	ExpireTime      uint32
}

type CommitScript struct {
	PayerPubkey      []byte
	PayeePubkey      []byte
	SpendSecretHash  []byte
	RevokeSecretHash []byte
	DelayTime        uint32
}

// Script is either a deposit or a commit script.
type Script struct {
	Kind    ScriptKind
	Raw     []byte
	Deposit *DepositScript
	Commit  *CommitScript
}

type push func(builder *txscript.ScriptBuilder)

func dataPush(data []byte) push {
	return func(builder *txscript.ScriptBuilder) {
		builder.AddData(data)
	}
}

func numberPush(value int64) push {
	return func(builder *txscript.ScriptBuilder) {
		builder.AddInt64(value)
	}
}

func buildDepositScript(payer, payee, spendSecretHash, expireTime push) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_2)
	payer(builder)
	payee(builder)
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_HASH160)
	spendSecretHash(builder)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	payer(builder)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	expireTime(builder)
	builder.AddOp(txscript.OP_NOP3)
	builder.AddOp(txscript.OP_DROP)
	payer(builder)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_ENDIF)
	return builder.Script()
}

func buildCommitScript(payer, payee, spendSecretHash, revokeSecretHash, delayTime push) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_IF)
	delayTime(builder)
	builder.AddOp(txscript.OP_NOP3)
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_HASH160)
	spendSecretHash(builder)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	payee(builder)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_HASH160)
	revokeSecretHash(builder)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	payer(builder)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	return builder.Script()
}

var (
	depositReference []byte
	commitReference  []byte
)

func init() {
	var err error
	w := dataPush(wildcard)
	depositReference, err = buildDepositScript(w, w, w, w)
	if err != nil {
		panic(err)
	}
	commitReference, err = buildCommitScript(w, w, w, w, w)
	if err != nil {
		panic(err)
	}
}

func CheckSequence(value int64) error {
	if value < 0 || value > MaxSequence {
		return fmt.Errorf("%w: %d", ErrInvalidSequenceValue, value)
	}
	return nil
}

func checkPubkey(pubkey []byte) error {
	if _, err := btcec.ParsePubKey(pubkey); err != nil {
		return fmt.Errorf("%w: invalid pubkey %x: %v", ErrInvalidScript, pubkey, err)
	}
	return nil
}

func checkHash(hash []byte) error {
	if len(hash) != hashSize {
		return fmt.Errorf("%w: invalid hash length %d", ErrInvalidScript, len(hash))
	}
	return nil
}

func CompileDepositScript(payerPubkey, payeePubkey, spendSecretHash []byte, expireTime int64) ([]byte, error) {
	if err := CheckSequence(expireTime); err != nil {
		return nil, err
	}
	for _, pubkey := range [][]byte{payerPubkey, payeePubkey} {
		if err := checkPubkey(pubkey); err != nil {
			return nil, err
		}
	}
	if err := checkHash(spendSecretHash); err != nil {
		return nil, err
	}
	return buildDepositScript(
		dataPush(payerPubkey), dataPush(payeePubkey), dataPush(spendSecretHash), numberPush(expireTime),
	)
}

func CompileCommitScript(payerPubkey, payeePubkey, spendSecretHash, revokeSecretHash []byte, delayTime int64) ([]byte, error) {
	if err := CheckSequence(delayTime); err != nil {
		return nil, err
	}
	for _, pubkey := range [][]byte{payerPubkey, payeePubkey} {
		if err := checkPubkey(pubkey); err != nil {
			return nil, err
		}
	}
	for _, hash := range [][]byte{spendSecretHash, revokeSecretHash} {
		if err := checkHash(hash); err != nil {
			return nil, err
		}
	}
	return buildCommitScript(
		dataPush(payerPubkey), dataPush(payeePubkey), dataPush(spendSecretHash),
		dataPush(revokeSecretHash), numberPush(delayTime),
	)
}

type word struct {
	opcode byte
	data   []byte
}

func (w word) bytes() []byte {
	return append([]byte{w.opcode}, w.data...)
}

func tokenize(script []byte) ([]word, error) {
	var words []word
	tokenizer := txscript.MakeScriptTokenizer(0, script)
	for tokenizer.Next() {
		words = append(words, word{opcode: tokenizer.Opcode(), data: tokenizer.Data()})
	}
	if err := tokenizer.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidScript, err)
	}
	return words, nil
}

// matchTemplate walks the reference and the untrusted script in lockstep.
// Reference words pushing the wildcard accept any word of the candidate.
func matchTemplate(reference, untrusted []byte) ([]word, error) {
	referenceWords, err := tokenize(reference)
	if err != nil {
		return nil, err
	}
	words, err := tokenize(untrusted)
	if err != nil {
		return nil, err
	}
	if len(words) != len(referenceWords) {
		return nil, fmt.Errorf("%w: expected %d words, got %d", ErrInvalidScript, len(referenceWords), len(words))
	}
	for i, expected := range referenceWords {
		if bytes.Equal(expected.data, wildcard) {
			continue
		}
		if expected.opcode != words[i].opcode || !bytes.Equal(expected.data, words[i].data) {
			return nil, fmt.Errorf("%w: unexpected word %d", ErrInvalidScript, i)
		}
	}
	return words, nil
}

// decodeScriptNum decodes a little endian sign-magnitude script number.
func decodeScriptNum(data []byte) (int64, error) {
	if len(data) > 4 {
		return 0, fmt.Errorf("%w: %d byte number", ErrInvalidSequenceValue, len(data))
	}
	var result int64
	for i, b := range data {
		result |= int64(b) << uint8(8*i)
	}
	if len(data) > 0 && data[len(data)-1]&0x80 != 0 {
		result &= ^(int64(0x80) << uint8(8*(len(data)-1)))
		result = -result
	}
	return result, nil
}

func parseSequence(w word) (uint32, error) {
	var value int64
	switch {
	case w.opcode == txscript.OP_0:
		value = 0
	case w.opcode >= txscript.OP_DATA_1 && w.opcode <= txscript.OP_DATA_75:
		var err error
		value, err = decodeScriptNum(w.data)
		if err != nil {
			return 0, err
		}
	case w.opcode >= txscript.OP_1 && w.opcode <= txscript.OP_16:
		value = int64(w.opcode) - int64(txscript.OP_1-1)
	default:
		return 0, fmt.Errorf("%w: opcode %d", ErrInvalidSequenceValue, w.opcode)
	}
	if err := CheckSequence(value); err != nil {
		return 0, err
	}
	canonical, err := txscript.NewScriptBuilder().AddInt64(value).Script()
	if err != nil {
		return 0, err
	}
	if !bytes.Equal(canonical, w.bytes()) {
		return 0, fmt.Errorf("%w: %d is not minimally encoded", ErrInvalidSequenceValue, value)
	}
	return uint32(value), nil
}

func ParseDepositScript(script []byte) (*DepositScript, error) {
	words, err := matchTemplate(depositReference, script)
	if err != nil {
		return nil, err
	}
	payer := words[depositPayerWord].data
	if !bytes.Equal(payer, words[depositPayerSpendWord].data) || !bytes.Equal(payer, words[depositPayerExpireWord].data) {
		return nil, fmt.Errorf("%w: payer pubkeys differ", ErrInvalidScript)
	}
	for _, i := range []int{depositPayerWord, depositPayeeWord} {
		if err := checkPubkey(words[i].data); err != nil {
			return nil, err
		}
	}
	if err := checkHash(words[depositSpendHashWord].data); err != nil {
		return nil, err
	}
	expireTime, err := parseSequence(words[depositExpireWord])
	if err != nil {
		return nil, err
	}
	return &DepositScript{
		PayerPubkey:     payer,
		PayeePubkey:     words[depositPayeeWord].data,
		SpendSecretHash: words[depositSpendHashWord].data,
		ExpireTime:      expireTime,
	}, nil
}

func ParseCommitScript(script []byte) (*CommitScript, error) {
	words, err := matchTemplate(commitReference, script)
	if err != nil {
		return nil, err
	}
	for _, i := range []int{commitPayerWord, commitPayeeWord} {
		if err := checkPubkey(words[i].data); err != nil {
			return nil, err
		}
	}
	for _, i := range []int{commitSpendHashWord, commitRevokeHashWord} {
		if err := checkHash(words[i].data); err != nil {
			return nil, err
		}
	}
	delayTime, err := parseSequence(words[commitDelayWord])
	if err != nil {
		return nil, err
	}
	return &CommitScript{
		PayerPubkey:      words[commitPayerWord].data,
		PayeePubkey:      words[commitPayeeWord].data,
		SpendSecretHash:  words[commitSpendHashWord].data,
		RevokeSecretHash: words[commitRevokeHashWord].data,
		DelayTime:        delayTime,
	}, nil
}

// ParseScript detects whether the script is a deposit or a commit script.
func ParseScript(script []byte) (*Script, error) {
	if deposit, err := ParseDepositScript(script); err == nil {
		return &Script{Kind: KindDeposit, Raw: script, Deposit: deposit}, nil
	}
	commit, err := ParseCommitScript(script)
	if err != nil {
		return nil, err
	}
	return &Script{Kind: KindCommit, Raw: script, Commit: commit}, nil
}

func ValidateDepositScript(script []byte) error {
	_, err := ParseDepositScript(script)
	return err
}

func ValidateCommitScript(script []byte) error {
	_, err := ParseCommitScript(script)
	return err
}

func GetDepositPayerPubkey(script []byte) ([]byte, error) {
	deposit, err := ParseDepositScript(script)
	if err != nil {
		return nil, err
	}
	return deposit.PayerPubkey, nil
}

func GetDepositPayeePubkey(script []byte) ([]byte, error) {
	deposit, err := ParseDepositScript(script)
	if err != nil {
		return nil, err
	}
	return deposit.PayeePubkey, nil
}

func GetDepositSpendSecretHash(script []byte) ([]byte, error) {
	deposit, err := ParseDepositScript(script)
	if err != nil {
		return nil, err
	}
	return deposit.SpendSecretHash, nil
}

func GetDepositExpireTime(script []byte) (uint32, error) {
	deposit, err := ParseDepositScript(script)
	if err != nil {
		return 0, err
	}
	return deposit.ExpireTime, nil
}

func GetCommitPayerPubkey(script []byte) ([]byte, error) {
	commit, err := ParseCommitScript(script)
	if err != nil {
		return nil, err
	}
	return commit.PayerPubkey, nil
}

func GetCommitPayeePubkey(script []byte) ([]byte, error) {
	commit, err := ParseCommitScript(script)
	if err != nil {
		return nil, err
	}
	return commit.PayeePubkey, nil
}

func GetCommitSpendSecretHash(script []byte) ([]byte, error) {
	commit, err := ParseCommitScript(script)
	if err != nil {
		return nil, err
	}
	return commit.SpendSecretHash, nil
}

func GetCommitRevokeSecretHash(script []byte) ([]byte, error) {
	commit, err := ParseCommitScript(script)
	if err != nil {
		return nil, err
	}
	return commit.RevokeSecretHash, nil
}

func GetCommitDelayTime(script []byte) (uint32, error) {
	commit, err := ParseCommitScript(script)
	if err != nil {
		return 0, err
	}
	return commit.DelayTime, nil
}

// GetSpendSecret returns the spend secret revealed by a payout of the commit
// script, or nil if the transaction is not such a payout.
func GetSpendSecret(payoutRawTx string, commitScript []byte) ([]byte, error) {
	if err := ValidateCommitScript(commitScript); err != nil {
		return nil, err
	}
	transaction, err := NewBtcTxFromHex(payoutRawTx)
	if err != nil {
		return nil, err
	}
	for _, input := range transaction.MsgTx().TxIn {
		words, err := tokenize(input.SignatureScript)
		if err != nil || len(words) != 4 {
			continue
		}
		if words[2].opcode != txscript.OP_1 || !bytes.Equal(words[3].data, commitScript) {
			continue
		}
		return words[1].data, nil
	}
	return nil, nil
}
