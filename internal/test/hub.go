package test

import (
	"bytes"
	"cmp"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

const (
	DepositValue = 100000
	TxFee        = 1000
	DustSize     = 5430
)

// HubConnection is the hub side of a connection.
type HubConnection struct {
	Handle                string
	Asset                 string
	ClientPubkey          []byte
	ClientSpendSecretHash []byte
	ClientSpendSecret     []byte
	SpendSecret           *mpc.Secret
	C2h                   *mpc.State
	H2c                   *mpc.State
	H2cNextRevokeHash     []byte
	Sent                  []hub.Payment

	secrets map[string][]byte
}

// RevokeSecret returns the secret of a revoke hash the hub requested for a client commit.
func (connection *HubConnection) RevokeSecret(hash []byte) []byte {
	return connection.secrets[string(hash)]
}

// Hub simulates the hub and the counterparty layer in memory. Commit
// quantities are tracked by commit script instead of asset outputs.
type Hub struct {
	Wif       *btcutil.WIF
	Chain     *Chain
	Terms     hub.ChannelTerms
	DelayTime uint32

	// Ttls overrides the deposit ttl by hex deposit script
	Ttls map[string]*uint64
	// OverRevoke makes RevokeHashesUntil ignore the quantity floor
	OverRevoke bool
	// IgnoreSpent keeps offering recoveries for outputs that are already spent
	IgnoreSpent bool
	// CommitHook may tamper with created commits before they are returned
	CommitHook func(result *hub.CreateCommitResult)

	mutex       sync.Mutex
	quantities  map[string]uint64
	balances    map[string]map[string]uint64
	connections map[string]*HubConnection
	pending     map[string][]hub.ReceivedPayment
	handles     int
}

func NewHub(chain *Chain) (*Hub, error) {
	wif, err := mpc.GenerateWif(chain.Network)
	if err != nil {
		return nil, err
	}
	return &Hub{
		Wif:   wif,
		Chain: chain,
		Terms: hub.ChannelTerms{
			DepositMax:   0,
			ExpireMax:    0,
			DepositRatio: 1,
			SyncFee:      1,
		},
		DelayTime:   2,
		Ttls:        make(map[string]*uint64),
		quantities:  make(map[string]uint64),
		balances:    make(map[string]map[string]uint64),
		connections: make(map[string]*HubConnection),
		pending:     make(map[string][]hub.ReceivedPayment),
	}, nil
}

func (fake *Hub) Pubkey() []byte {
	return fake.Wif.SerializePubKey()
}

func (fake *Hub) Connection(handle string) *HubConnection {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return fake.connections[handle]
}

// SetTtl overrides the ttl of a deposit; nil marks it unconfirmed.
func (fake *Hub) SetTtl(depositScript []byte, ttl *uint64) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.Ttls[hex.EncodeToString(depositScript)] = ttl
}

// QueueReceive makes the hub pay amount to the handle on its next sync.
func (fake *Hub) QueueReceive(handle string, payment hub.ReceivedPayment) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.pending[handle] = append(fake.pending[handle], payment)
}

// SetQuantity assigns the quantity a commit script transfers.
func (fake *Hub) SetQuantity(commitScript []byte, quantity uint64) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.quantities[hex.EncodeToString(commitScript)] = quantity
}

func (fake *Hub) Credit(address string, asset string, quantity uint64) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	fake.credit(address, asset, quantity)
}

func (fake *Hub) credit(address string, asset string, quantity uint64) {
	if fake.balances[address] == nil {
		fake.balances[address] = make(map[string]uint64)
	}
	fake.balances[address][asset] += quantity
}

func (fake *Hub) p2sh(script []byte) ([]byte, string, error) {
	address, err := mpc.ScriptAddress(script, fake.Chain.Network)
	if err != nil {
		return nil, "", err
	}
	pkScript, err := txscript.PayToAddrScript(address)
	return pkScript, address.EncodeAddress(), err
}

func (fake *Hub) p2pkh(pubkey []byte) ([]byte, string, error) {
	address, err := mpc.PubkeyAddress(pubkey, fake.Chain.Network)
	if err != nil {
		return nil, "", err
	}
	pkScript, err := txscript.PayToAddrScript(address)
	return pkScript, address.EncodeAddress(), err
}

func (fake *Hub) quantity(commit mpc.Commit) (uint64, error) {
	quantity, ok := fake.quantities[commit.Script.String()]
	if !ok {
		return 0, fmt.Errorf("unknown commit %s", commit.Script)
	}
	return quantity, nil
}

func spend(outpoint *wire.OutPoint, value int64, pkScript []byte) (string, error) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(value-TxFee, pkScript))
	return mpc.NewBtcTx(tx).Serialize()
}

func (fake *Hub) TransferredAmount(state *mpc.State) (uint64, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return fake.transferredAmount(state)
}

func (fake *Hub) transferredAmount(state *mpc.State) (uint64, error) {
	var amount uint64
	for _, commit := range state.CommitsActive {
		quantity, err := fake.quantity(commit)
		if err != nil {
			return 0, err
		}
		amount = max(amount, quantity)
	}
	return amount, nil
}

func (fake *Hub) RevokeHashesUntil(state *mpc.State, quantity uint64, surpass bool) ([]mpc.HexString, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	type entry struct {
		quantity uint64
		hash     []byte
	}
	var entries []entry
	for _, commit := range state.CommitsActive {
		amount, err := fake.quantity(commit)
		if err != nil {
			return nil, err
		}
		hash, err := mpc.GetCommitRevokeSecretHash(commit.Script)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry{quantity: amount, hash: hash})
	}
	slices.SortFunc(entries, func(a, b entry) int {
		return cmp.Compare(b.quantity, a.quantity)
	})

	hashes := []mpc.HexString{}
	for i, entry := range entries {
		var next uint64
		if i+1 < len(entries) {
			next = entries[i+1].quantity
		}
		if next < quantity && !surpass && !fake.OverRevoke {
			break
		}
		hashes = append(hashes, entry.hash)
		if next < quantity && !fake.OverRevoke {
			break
		}
	}
	return hashes, nil
}

func (fake *Hub) CreateCommit(state *mpc.State, quantity uint64, revokeSecretHash []byte, delayTime uint32) (*hub.CreateCommitResult, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return fake.createCommit(state, quantity, revokeSecretHash, delayTime)
}

func (fake *Hub) createCommit(state *mpc.State, quantity uint64, revokeSecretHash []byte, delayTime uint32) (*hub.CreateCommitResult, error) {
	deposit, err := mpc.ParseDepositScript(state.DepositScript)
	if err != nil {
		return nil, err
	}
	depositPkScript, depositAddress, err := fake.p2sh(state.DepositScript)
	if err != nil {
		return nil, err
	}
	if quantity > fake.balances[depositAddress][state.Asset] {
		return nil, fmt.Errorf("insufficient deposit for %d", quantity)
	}
	commitScript, err := mpc.CompileCommitScript(deposit.PayerPubkey, deposit.PayeePubkey, deposit.SpendSecretHash, revokeSecretHash, int64(delayTime))
	if err != nil {
		return nil, err
	}
	commitPkScript, _, err := fake.p2sh(commitScript)
	if err != nil {
		return nil, err
	}
	outpoint, output := fake.Chain.FindOutput(depositPkScript)
	if outpoint == nil {
		return nil, errors.New("deposit not published")
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
	tx.AddTxOut(wire.NewTxOut(DustSize, commitPkScript))
	tx.AddTxOut(wire.NewTxOut(output.Value-DustSize-TxFee, depositPkScript))
	rawTx, err := mpc.NewBtcTx(tx).Serialize()
	if err != nil {
		return nil, err
	}

	newState := state.Clone()
	newState.CommitsActive = append(newState.CommitsActive, mpc.Commit{RawTx: rawTx, Script: commitScript})
	fake.quantities[hex.EncodeToString(commitScript)] = quantity

	result := &hub.CreateCommitResult{
		State:        newState,
		CommitScript: commitScript,
		ToSign:       hub.ToSign{CommitRawTx: rawTx, DepositScript: state.DepositScript},
	}
	if fake.CommitHook != nil {
		fake.CommitHook(result)
	}
	return result, nil
}

func (fake *Hub) HighestCommit(state *mpc.State) (*mpc.Commit, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	var highest *mpc.Commit
	var highestQuantity uint64
	for _, commit := range state.CommitsActive {
		quantity, err := fake.quantity(commit)
		if err != nil {
			return nil, err
		}
		if highest == nil || quantity > highestQuantity {
			highest = &commit
			highestQuantity = quantity
		}
	}
	return highest, nil
}

func (fake *Hub) DepositTtl(state *mpc.State, clearance uint32) (*uint64, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	return fake.depositTtl(state, clearance)
}

func (fake *Hub) depositTtl(state *mpc.State, clearance uint32) (*uint64, error) {
	if ttl, ok := fake.Ttls[state.DepositScript.String()]; ok {
		return ttl, nil
	}
	pkScript, _, err := fake.p2sh(state.DepositScript)
	if err != nil {
		return nil, err
	}
	if outpoint, _ := fake.Chain.FindOutput(pkScript); outpoint == nil {
		return nil, nil
	}
	expireTime, err := mpc.GetDepositExpireTime(state.DepositScript)
	if err != nil {
		return nil, err
	}
	ttl := uint64(0)
	if expireTime > clearance {
		ttl = uint64(expireTime - clearance)
	}
	return &ttl, nil
}

func (fake *Hub) published(script []byte) (*wire.OutPoint, error) {
	pkScript, _, err := fake.p2sh(script)
	if err != nil {
		return nil, err
	}
	outpoint, _ := fake.Chain.FindOutput(pkScript)
	return outpoint, nil
}

func (fake *Hub) PublishedCommits(state *mpc.State) ([]string, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	scripts := make([]mpc.HexString, 0, len(state.CommitsActive)+len(state.CommitsRevoked))
	for _, commit := range state.CommitsActive {
		scripts = append(scripts, commit.Script)
	}
	for _, commit := range state.CommitsRevoked {
		scripts = append(scripts, commit.Script)
	}

	published := []string{}
	for _, script := range scripts {
		outpoint, err := fake.published(script)
		if err != nil {
			return nil, err
		}
		if outpoint != nil {
			raw, err := fake.Chain.GetRawTransaction(outpoint.Hash.String())
			if err != nil {
				return nil, err
			}
			published = append(published, raw)
		}
	}
	return published, nil
}

func (fake *Hub) unspent(outpoint *wire.OutPoint) bool {
	return fake.IgnoreSpent || !fake.Chain.IsSpent(*outpoint)
}

func (fake *Hub) Payouts(state *mpc.State) ([]hub.PayoutTx, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	payouts := []hub.PayoutTx{}
	for _, commit := range state.CommitsActive {
		outpoint, err := fake.published(commit.Script)
		if err != nil {
			return nil, err
		}
		if outpoint == nil || !fake.unspent(outpoint) {
			continue
		}
		payee, err := mpc.GetCommitPayeePubkey(commit.Script)
		if err != nil {
			return nil, err
		}
		pkScript, _, err := fake.p2pkh(payee)
		if err != nil {
			return nil, err
		}
		rawTx, err := spend(outpoint, DustSize, pkScript)
		if err != nil {
			return nil, err
		}
		payouts = append(payouts, hub.PayoutTx{PayoutRawTx: rawTx, CommitScript: commit.Script})
	}
	return payouts, nil
}

func (fake *Hub) Recoverables(state *mpc.State, spendSecret []byte) (*hub.Recoverables, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	recoverables := &hub.Recoverables{Revoke: []hub.RevokeTx{}, Change: []hub.ChangeTx{}, Expire: []hub.ExpireTx{}}

	deposit, err := mpc.ParseDepositScript(state.DepositScript)
	if err != nil {
		return nil, err
	}
	payerPkScript, _, err := fake.p2pkh(deposit.PayerPubkey)
	if err != nil {
		return nil, err
	}

	for _, revoked := range state.CommitsRevoked {
		outpoint, err := fake.published(revoked.Script)
		if err != nil {
			return nil, err
		}
		if outpoint == nil || !fake.unspent(outpoint) {
			continue
		}
		rawTx, err := spend(outpoint, DustSize, payerPkScript)
		if err != nil {
			return nil, err
		}
		recoverables.Revoke = append(recoverables.Revoke, hub.RevokeTx{
			RevokeRawTx:  rawTx,
			CommitScript: revoked.Script,
			RevokeSecret: revoked.RevokeSecret,
		})
	}

	ttl, err := fake.depositTtl(state, 0)
	if err != nil {
		return nil, err
	}
	expired := ttl != nil && *ttl == 0
	if spendSecret == nil && !expired {
		return recoverables, nil
	}

	depositPkScript, _, err := fake.p2sh(state.DepositScript)
	if err != nil {
		return nil, err
	}
	for _, output := range fake.Chain.Outputs(depositPkScript) {
		if !fake.unspent(output.OutPoint) {
			continue
		}
		rawTx, err := spend(output.OutPoint, output.Value, payerPkScript)
		if err != nil {
			return nil, err
		}
		if spendSecret != nil {
			recoverables.Change = append(recoverables.Change, hub.ChangeTx{
				ChangeRawTx:   rawTx,
				DepositScript: state.DepositScript,
				SpendSecret:   spendSecret,
			})
		} else {
			recoverables.Expire = append(recoverables.Expire, hub.ExpireTx{
				ExpireRawTx:   rawTx,
				DepositScript: state.DepositScript,
			})
		}
	}
	return recoverables, nil
}

func (fake *Hub) GetBalances(address string) ([]hub.BalanceEntry, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	entries := []hub.BalanceEntry{}
	for asset, quantity := range fake.balances[address] {
		entries = append(entries, hub.BalanceEntry{Address: address, Asset: asset, Quantity: quantity})
	}
	return entries, nil
}

func (fake *Hub) MakeDeposit(request hub.MakeDepositRequest) (*hub.MakeDepositResult, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	script, err := mpc.CompileDepositScript(request.PayerPubkey, request.PayeePubkey, request.SpendSecretHash, int64(request.ExpireTime))
	if err != nil {
		return nil, err
	}
	depositPkScript, depositAddress, err := fake.p2sh(script)
	if err != nil {
		return nil, err
	}
	_, payerAddress, err := fake.p2pkh(request.PayerPubkey)
	if err != nil {
		return nil, err
	}
	rawTx, err := fake.createSend(payerAddress, depositPkScript, DepositValue)
	if err != nil {
		return nil, err
	}
	fake.credit(depositAddress, request.Asset, request.Quantity)
	return &hub.MakeDepositResult{State: mpc.NewState(request.Asset, script), ToPublish: rawTx}, nil
}

func (fake *Hub) createSend(source string, pkScript []byte, value int64) (string, error) {
	outputs, err := fake.Chain.GetUnspentOutputs(source)
	if err != nil {
		return "", err
	}
	decoded, err := btcutil.DecodeAddress(source, fake.Chain.Network.Btc)
	if err != nil {
		return "", err
	}
	changePkScript, err := txscript.PayToAddrScript(decoded)
	if err != nil {
		return "", err
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	var total int64
	for _, output := range outputs {
		hash, err := chainhash.NewHashFromStr(output.TxId)
		if err != nil {
			return "", err
		}
		tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(hash, output.Vout), nil, nil))
		total += int64(output.Value)
	}
	if total < value+TxFee {
		return "", fmt.Errorf("insufficient funds in %s: %d", source, total)
	}
	tx.AddTxOut(wire.NewTxOut(value, pkScript))
	if change := total - value - TxFee; change > 0 {
		tx.AddTxOut(wire.NewTxOut(change, changePkScript))
	}
	return mpc.NewBtcTx(tx).Serialize()
}

func (fake *Hub) CreateSend(request hub.CreateSendRequest) (string, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()
	destination, err := btcutil.DecodeAddress(request.Destination, fake.Chain.Network.Btc)
	if err != nil {
		return "", err
	}
	pkScript, err := txscript.PayToAddrScript(destination)
	if err != nil {
		return "", err
	}
	value := int64(DustSize)
	if request.Asset == "BTC" {
		value = int64(request.Quantity)
	} else {
		if fake.balances[request.Source][request.Asset] < request.Quantity {
			return "", fmt.Errorf("insufficient %s in %s", request.Asset, request.Source)
		}
		fake.balances[request.Source][request.Asset] -= request.Quantity
		fake.credit(request.Destination, request.Asset, request.Quantity)
	}
	return fake.createSend(request.Source, pkScript, value)
}

func (fake *Hub) GetUnspentTxouts(address string) ([]hub.UnspentTxout, error) {
	outputs, err := fake.Chain.GetUnspentOutputs(address)
	if err != nil {
		return nil, err
	}
	utxos := []hub.UnspentTxout{}
	for _, output := range outputs {
		utxos = append(utxos, hub.UnspentTxout{
			TxId:          output.TxId,
			Vout:          output.Vout,
			Amount:        btcutil.Amount(output.Value).ToBTC(),
			Confirmations: 1,
		})
	}
	return utxos, nil
}

func (fake *Hub) Request(clientPubkey []byte, request hub.ConnectionRequest) (*hub.ConnectionResponse, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	spendSecret, err := mpc.NewSecret()
	if err != nil {
		return nil, err
	}
	fake.handles++
	handle := fmt.Sprintf("%064x", fake.handles)
	fake.connections[handle] = &HubConnection{
		Handle:                handle,
		Asset:                 request.Asset,
		ClientPubkey:          clientPubkey,
		ClientSpendSecretHash: request.SpendSecretHash,
		SpendSecret:           spendSecret,
		secrets:               make(map[string][]byte),
	}
	return &hub.ConnectionResponse{
		Handle:          handle,
		ChannelTerms:    fake.Terms,
		Pubkey:          fake.Pubkey(),
		SpendSecretHash: spendSecret.Hash,
	}, nil
}

func (fake *Hub) connection(handle string) (*HubConnection, error) {
	connection, ok := fake.connections[handle]
	if !ok {
		return nil, fmt.Errorf("unknown handle %s", handle)
	}
	return connection, nil
}

func (fake *Hub) requestCommit(connection *HubConnection) ([]byte, error) {
	secret, err := mpc.NewSecret()
	if err != nil {
		return nil, err
	}
	connection.secrets[string(secret.Hash)] = secret.Value
	connection.C2h.RequestCommit(secret.Hash)
	return secret.Hash, nil
}

func (fake *Hub) Deposit(request hub.DepositRequest) (*hub.DepositResponse, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	connection, err := fake.connection(request.Handle)
	if err != nil {
		return nil, err
	}
	deposit, err := mpc.ParseDepositScript(request.DepositScript)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(deposit.PayeePubkey, fake.Pubkey()) || !bytes.Equal(deposit.SpendSecretHash, connection.SpendSecret.Hash) {
		return nil, errors.New("deposit script does not pay the hub")
	}
	if !bytes.Equal(deposit.PayerPubkey, connection.ClientPubkey) {
		return nil, errors.New("deposit script is not paid by the client")
	}
	connection.C2h = mpc.NewState(request.Asset, request.DepositScript)
	_, clientDepositAddress, err := fake.p2sh(request.DepositScript)
	if err != nil {
		return nil, err
	}

	hubDeposit, err := mpc.CompileDepositScript(fake.Pubkey(), connection.ClientPubkey, connection.ClientSpendSecretHash, int64(deposit.ExpireTime))
	if err != nil {
		return nil, err
	}
	pkScript, hubDepositAddress, err := fake.p2sh(hubDeposit)
	if err != nil {
		return nil, err
	}
	fake.Chain.Fund(pkScript, DepositValue)
	fake.credit(hubDepositAddress, request.Asset, fake.balances[clientDepositAddress][request.Asset])
	connection.H2c = mpc.NewState(request.Asset, hubDeposit)
	connection.H2cNextRevokeHash = request.NextRevokeSecretHash

	nextRevokeHash, err := fake.requestCommit(connection)
	if err != nil {
		return nil, err
	}
	return &hub.DepositResponse{DepositScript: hubDeposit, NextRevokeSecretHash: nextRevokeHash}, nil
}

func (fake *Hub) Sync(request hub.SyncRequest) (*hub.SyncResponse, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	connection, err := fake.connection(request.Handle)
	if err != nil {
		return nil, err
	}
	if len(request.Revokes) > 0 {
		if err := connection.H2c.RevokeAll(request.Revokes); err != nil {
			return nil, err
		}
	}
	if request.Commit != nil {
		if err := connection.C2h.AddCommit(request.Commit.RawTx, request.Commit.Script); err != nil {
			return nil, err
		}
	}
	for _, send := range request.Sends {
		connection.Sent = append(connection.Sent, send)
		if _, ok := fake.connections[send.PayeeHandle]; ok {
			fake.pending[send.PayeeHandle] = append(fake.pending[send.PayeeHandle], hub.ReceivedPayment{
				PayerHandle: request.Handle,
				Amount:      send.Amount,
				Token:       send.Token,
			})
		}
	}

	receive := fake.pending[request.Handle]
	delete(fake.pending, request.Handle)
	if receive == nil {
		receive = []hub.ReceivedPayment{}
	}

	var commit *mpc.Commit
	if len(receive) > 0 {
		var total uint64
		for _, payment := range receive {
			total += payment.Amount
		}
		transferred, err := fake.transferredAmount(connection.H2c)
		if err != nil {
			return nil, err
		}
		created, err := fake.createCommit(connection.H2c, transferred+total, connection.H2cNextRevokeHash, fake.DelayTime)
		if err != nil {
			return nil, err
		}
		signer := &mpc.Signer{Fetcher: fake.Chain}
		signed, err := signer.SignCreatedCommit(created.ToSign.CommitRawTx, mpc.SingleKey{Wif: fake.Wif}, connection.H2c.DepositScript)
		if err != nil {
			return nil, err
		}
		connection.H2c = created.State
		for i := range connection.H2c.CommitsActive {
			if bytes.Equal(connection.H2c.CommitsActive[i].Script, created.CommitScript) {
				connection.H2c.CommitsActive[i].RawTx = signed
			}
		}
		commit = &mpc.Commit{RawTx: signed, Script: created.CommitScript}
	}
	connection.H2cNextRevokeHash = request.NextRevokeSecretHash

	nextRevokeHash, err := fake.requestCommit(connection)
	if err != nil {
		return nil, err
	}
	return &hub.SyncResponse{
		Commit:               commit,
		Revokes:              []mpc.HexString{},
		Receive:              receive,
		NextRevokeSecretHash: nextRevokeHash,
	}, nil
}

func (fake *Hub) Close(request hub.CloseRequest) (*hub.CloseResponse, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	connection, err := fake.connection(request.Handle)
	if err != nil {
		return nil, err
	}
	if request.SpendSecret != nil {
		connection.ClientSpendSecret = request.SpendSecret
	}
	return &hub.CloseResponse{SpendSecret: connection.SpendSecret.Value}, nil
}

func (fake *Hub) Status(assets []string) (*hub.Status, error) {
	fake.mutex.Lock()
	defer fake.mutex.Unlock()

	status := &hub.Status{
		Connections:      make(map[string]hub.ConnectionStatus),
		CurrentTerms:     make(map[string]hub.ChannelTerms),
		FundingAddresses: make(map[string]string),
		Liquidity:        hub.Liquidity{Addresses: map[string][]hub.LiquidityAddress{}, Total: map[string]uint64{}},
	}
	_, address, err := fake.p2pkh(fake.Pubkey())
	if err != nil {
		return nil, err
	}
	for _, asset := range assets {
		status.CurrentTerms[asset] = fake.Terms
		status.FundingAddresses[asset] = address
	}
	for handle, connection := range fake.connections {
		if len(assets) > 0 && !slices.Contains(assets, connection.Asset) {
			continue
		}
		status.Connections[handle] = hub.ConnectionStatus{Asset: connection.Asset, Status: "open"}
	}
	return status, nil
}
