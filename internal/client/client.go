package client

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/picopayments/picopayments-client/internal/channel"
	"github.com/picopayments/picopayments-client/internal/connection"
	"github.com/picopayments/picopayments-client/internal/database"
	"github.com/picopayments/picopayments-client/internal/logger"
	"github.com/picopayments/picopayments-client/internal/onchain"
	"github.com/picopayments/picopayments-client/internal/utils"
	"github.com/picopayments/picopayments-client/internal/wallet"
	"github.com/picopayments/picopayments-client/pkg/hub"
	"github.com/picopayments/picopayments-client/pkg/mpc"
)

const minHubVersion = "0.1.0"

const maxParallelSyncs = 8

// Client runs the operations of the command line against the hub and
// persists every connection it touches.
type Client struct {
	Network   *mpc.Network
	Hub       *hub.Api
	Onchain   *onchain.Onchain
	Wallet    *wallet.Wallet
	Database  *database.Database
	Mph       *connection.Mph
	Clearance uint32

	locks sync.Map
}

func New(api *hub.Api, chain *onchain.Onchain, w *wallet.Wallet, db *database.Database, clearance uint32) *Client {
	return &Client{
		Network:   chain.Network,
		Hub:       api,
		Onchain:   chain,
		Wallet:    w,
		Database:  db,
		Mph:       connection.NewMph(api, chain, w.Wif),
		Clearance: clearance,
	}
}

// lock serializes operations on a single connection within this process.
func (client *Client) lock(handle string) func() {
	mutex, _ := client.locks.LoadOrStore(handle, &sync.Mutex{})
	mutex.(*sync.Mutex).Lock()
	return mutex.(*sync.Mutex).Unlock
}

func (client *Client) load(handle string) (*connection.Connection, error) {
	record, err := client.Database.QueryConnection(handle)
	if err != nil {
		return nil, err
	}
	return connection.Deserialize(record.Data)
}

func (client *Client) save(conn *connection.Connection, entries ...*database.HistoryEntry) error {
	data, err := conn.Serialize()
	if err != nil {
		return fmt.Errorf("could not serialize connection %s: %w", conn.Handle, err)
	}
	return client.Database.RunTx(func(tx *database.Transaction) error {
		err := tx.SaveConnection(&database.Connection{
			Handle:  conn.Handle,
			Asset:   conn.Asset,
			Data:    data,
			Version: conn.Version,
		})
		if err != nil {
			return err
		}
		for _, entry := range entries {
			entry.Handle = conn.Handle
			entry.Asset = conn.Asset
			if err := tx.CreateHistoryEntry(entry); err != nil {
				return err
			}
		}
		return nil
	})
}

func assetFilter(asset string) []string {
	if asset == "" {
		return nil
	}
	return []string{asset}
}

func (client *Client) CheckHubVersion() error {
	version, err := client.Hub.Version()
	if err != nil {
		return fmt.Errorf("could not get hub version: %w", err)
	}
	return utils.CheckVersion("Hub", version, minHubVersion)
}

func (client *Client) HubStatus(asset string) (*hub.Status, error) {
	return client.Hub.Status(assetFilter(asset))
}

// Balances returns the confirmed balances of address, or of the wallet if
// address is empty.
func (client *Client) Balances(asset string, address string) (map[string]uint64, error) {
	if address == "" {
		var err error
		if address, err = client.Wallet.Address(); err != nil {
			return nil, err
		}
	}
	return client.Mph.Engine.Balances(address, assetFilter(asset))
}

type BlockSendRequest struct {
	Asset       string
	Destination string
	Quantity    uint64
	// ExtraBtc is sent to the destination along with the asset
	ExtraBtc uint64
}

// BlockSend transfers funds of the wallet with an on chain transaction and
// returns its txid.
func (client *Client) BlockSend(request BlockSendRequest) (string, error) {
	if request.Quantity == 0 {
		return "", errors.New("quantity must be positive")
	}
	if request.Destination == "" {
		return "", errors.New("destination is required")
	}
	source, err := client.Wallet.Address()
	if err != nil {
		return "", err
	}

	rawTx, err := client.Hub.CreateSend(hub.CreateSendRequest{
		Source:          source,
		Destination:     request.Destination,
		Asset:           request.Asset,
		Quantity:        request.Quantity,
		RegularDustSize: request.ExtraBtc,
	})
	if err != nil {
		return "", fmt.Errorf("could not create send: %w", err)
	}
	inputValue, err := client.Onchain.InputValue(rawTx, source)
	if err != nil {
		return "", err
	}
	transaction, err := mpc.NewBtcTxFromHex(rawTx)
	if err != nil {
		return "", err
	}
	var outputValue uint64
	for _, output := range transaction.MsgTx().TxOut {
		outputValue += uint64(output.Value)
	}
	if outputValue > inputValue {
		return "", fmt.Errorf("send outputs %d exceed inputs %d", outputValue, inputValue)
	}

	signed, err := client.Mph.Engine.Signer.SignFunding(rawTx, client.Wallet.Wif)
	if err != nil {
		return "", fmt.Errorf("could not sign send: %w", err)
	}
	txId, err := client.Onchain.BroadcastTransaction(signed)
	if err != nil {
		return "", fmt.Errorf("could not publish send: %w", err)
	}

	err = client.Database.CreateHistoryEntry(&database.HistoryEntry{
		Action:      database.ActionBlockSend,
		Id:          txId,
		Fee:         inputValue - outputValue,
		Quantity:    request.Quantity,
		Asset:       request.Asset,
		Destination: request.Destination,
	})
	if err != nil {
		logger.Errorf("Could not write history of send %s: %v", txId, err)
	}
	return txId, nil
}

type ConnectResult struct {
	Handle      string `json:"handle"`
	DepositTxId string `json:"send_deposit_txid"`
}

// Connect opens a new connection with the hub and stores it.
func (client *Client) Connect(params connection.ConnectParams) (*ConnectResult, error) {
	if err := client.CheckHubVersion(); err != nil {
		return nil, err
	}
	conn, txId, err := client.Mph.Connect(params)
	if err != nil {
		return nil, err
	}
	defer client.lock(conn.Handle)()

	err = client.save(conn, &database.HistoryEntry{
		Action:   database.ActionConnect,
		Id:       txId,
		Quantity: conn.C2hDepositQuantity,
	})
	if err != nil {
		// the deposit is already published at this point
		logger.Errorf("Could not save connection %s with deposit %s: %v", conn.Handle, txId, err)
		return nil, err
	}
	return &ConnectResult{Handle: conn.Handle, DepositTxId: txId}, nil
}

// QueuePayment schedules a payment from the source connection to the
// destination handle. It is sent with the next sync.
func (client *Client) QueuePayment(source string, destination string, quantity uint64, token string) (string, error) {
	defer client.lock(source)()

	conn, err := client.load(source)
	if err != nil {
		return "", err
	}
	token, err = conn.QueuePayment(destination, quantity, token)
	if err != nil {
		return "", err
	}
	if err := client.save(conn); err != nil {
		return "", err
	}
	return token, nil
}

type ConnectionStatus struct {
	Asset   string                `json:"asset"`
	Balance int64                 `json:"balance"`
	Ttl     *uint64               `json:"ttl"`
	Status  channel.ChannelStatus `json:"status"`

	Send *channel.DepositStatus `json:"send,omitempty"`
	Recv *channel.DepositStatus `json:"recv,omitempty"`
	Data *connection.Connection `json:"data,omitempty"`
}

type WalletStatus struct {
	Address  string            `json:"address"`
	Balances map[string]uint64 `json:"balances"`
}

type Status struct {
	Connections map[string]*ConnectionStatus `json:"connections"`
	Wallet      WalletStatus                 `json:"wallet"`
}

func (client *Client) queryConnections(handle string) ([]*database.Connection, error) {
	if handle != "" {
		record, err := client.Database.QueryConnection(handle)
		if err != nil {
			return nil, err
		}
		return []*database.Connection{record}, nil
	}
	return client.Database.QueryConnections(database.ConnectionQuery{})
}

// Status returns the status of the stored connections and the wallet.
// Verbose adds both channel directions and the stored connection data.
func (client *Client) Status(handle string, verbose bool) (*Status, error) {
	address, err := client.Wallet.Address()
	if err != nil {
		return nil, err
	}
	balances, err := client.Balances("", address)
	if err != nil {
		return nil, err
	}
	result := &Status{
		Connections: make(map[string]*ConnectionStatus),
		Wallet:      WalletStatus{Address: address, Balances: balances},
	}

	records, err := client.queryConnections(handle)
	if err != nil {
		return nil, err
	}
	for _, record := range records {
		conn, err := connection.Deserialize(record.Data)
		if err != nil {
			return nil, err
		}
		status, err := client.Mph.Status(conn, client.Clearance)
		if err != nil {
			return nil, fmt.Errorf("could not get status of %s: %w", record.Handle, err)
		}
		connectionStatus := &ConnectionStatus{
			Asset:   status.Asset,
			Balance: status.Balance,
			Ttl:     status.Ttl,
			Status:  status.Status,
		}
		if verbose {
			connectionStatus.Send = &status.Send
			connectionStatus.Recv = &status.Recv
			connectionStatus.Data = conn
		}
		result.Connections[record.Handle] = connectionStatus
	}
	return result, nil
}

type SyncResult struct {
	TxIds            []string              `json:"txids"`
	ReceivedPayments []hub.ReceivedPayment `json:"received_payments"`
}

// Sync syncs open connections and recovers funds of closed ones. Without a
// handle every stored connection is processed in parallel. Connections that
// are still opening are skipped.
func (client *Client) Sync(handle string) (map[string]*SyncResult, error) {
	records, err := client.queryConnections(handle)
	if err != nil {
		return nil, err
	}

	results := make(map[string]*SyncResult)
	var mutex sync.Mutex
	var group errgroup.Group
	group.SetLimit(maxParallelSyncs)
	for _, record := range records {
		group.Go(func() error {
			result, err := client.syncConnection(record.Handle)
			if err != nil {
				return fmt.Errorf("could not sync %s: %w", record.Handle, err)
			}
			if result != nil {
				mutex.Lock()
				results[record.Handle] = result
				mutex.Unlock()
			}
			return nil
		})
	}
	return results, group.Wait()
}

func (client *Client) syncConnection(handle string) (*SyncResult, error) {
	defer client.lock(handle)()

	conn, err := client.load(handle)
	if err != nil {
		return nil, err
	}
	status, err := client.Mph.Status(conn, client.Clearance)
	if err != nil {
		return nil, err
	}

	switch status.Status {
	case channel.StatusOpen:
		payments := conn.PaymentsQueued
		received, err := client.Mph.Sync(conn)
		if err != nil {
			// the queue stays persisted so the payments are sent again
			return nil, err
		}
		if err := client.save(conn, syncHistory(conn, payments, received)...); err != nil {
			return nil, err
		}
		logger.Infof("Synced %s: sent %d, received %d payments", handle, len(payments), len(received))
		return &SyncResult{TxIds: []string{}, ReceivedPayments: received}, nil
	case channel.StatusClosed:
		update, updateErr := client.Mph.Update(conn, client.Clearance)
		if update == nil {
			return nil, updateErr
		}
		var entries []*database.HistoryEntry
		if update.Closed {
			entries = append(entries, &database.HistoryEntry{Action: database.ActionClose, Id: update.CommitTxId})
		}
		for _, txId := range update.Recovered {
			entries = append(entries, &database.HistoryEntry{Action: database.ActionRecover, Id: txId})
		}
		// published recoveries are stored even if others failed
		if err := client.save(conn, entries...); err != nil {
			return nil, err
		}
		if updateErr != nil {
			return nil, updateErr
		}
		return &SyncResult{TxIds: update.TxIds(), ReceivedPayments: []hub.ReceivedPayment{}}, nil
	}
	logger.Debugf("Skipping connection %s with status %s", handle, status.Status)
	return nil, nil
}

// syncHistory records sent and received payments of a sync. The sync fee is
// attached to the first sent payment.
func syncHistory(conn *connection.Connection, sent []hub.Payment, received []hub.ReceivedPayment) []*database.HistoryEntry {
	var entries []*database.HistoryEntry
	fee := conn.ChannelTerms.SyncFee
	for _, payment := range sent {
		entries = append(entries, &database.HistoryEntry{
			Action:      database.ActionSend,
			Id:          payment.Token,
			Fee:         fee,
			Quantity:    payment.Amount,
			Destination: payment.PayeeHandle,
		})
		fee = 0
	}
	if fee > 0 {
		entries = append(entries, &database.HistoryEntry{Action: database.ActionSend, Fee: fee})
	}
	for _, payment := range received {
		entries = append(entries, &database.HistoryEntry{
			Action:      database.ActionReceive,
			Id:          payment.Token,
			Quantity:    payment.Amount,
			Destination: payment.PayerHandle,
		})
	}
	return entries
}

// Close closes the connection and returns the txid of the published commit,
// which is empty if the hub never sent funds.
func (client *Client) Close(handle string) (string, error) {
	defer client.lock(handle)()

	conn, err := client.load(handle)
	if err != nil {
		return "", err
	}
	txId, err := client.Mph.Close(conn)
	if err != nil {
		return "", err
	}
	if err := client.save(conn, &database.HistoryEntry{Action: database.ActionClose, Id: txId}); err != nil {
		return "", err
	}
	return txId, nil
}

// Cull removes closed connections whose funds are fully recovered and
// returns their handles.
func (client *Client) Cull() ([]string, error) {
	records, err := client.Database.QueryConnections(database.ConnectionQuery{})
	if err != nil {
		return nil, err
	}

	culled := []string{}
	for _, record := range records {
		settled, err := client.cullable(record.Handle)
		if err != nil {
			return culled, fmt.Errorf("could not check %s: %w", record.Handle, err)
		}
		if !settled {
			continue
		}
		err = client.Database.RunTx(func(tx *database.Transaction) error {
			if err := tx.DeleteConnection(record.Handle); err != nil {
				return err
			}
			return tx.CreateHistoryEntry(&database.HistoryEntry{
				Handle: record.Handle,
				Action: database.ActionCull,
				Asset:  record.Asset,
			})
		})
		if err != nil {
			return culled, err
		}
		logger.Infof("Culled connection %s", record.Handle)
		culled = append(culled, record.Handle)
	}
	return culled, nil
}

func (client *Client) cullable(handle string) (bool, error) {
	defer client.lock(handle)()

	conn, err := client.load(handle)
	if err != nil {
		return false, err
	}
	status, err := client.Mph.Status(conn, client.Clearance)
	if err != nil {
		return false, err
	}
	if status.Status != channel.StatusClosed {
		return false, nil
	}
	return client.Mph.Engine.Settled(conn.C2hState, conn.H2cState, conn.Secrets, conn.RecoveryLog)
}

func (client *Client) History(query database.HistoryQuery) ([]*database.HistoryEntry, error) {
	return client.Database.QueryHistory(query)
}

func (client *Client) ExportHistory(writer io.Writer, query database.HistoryQuery) error {
	return client.Database.ExportHistoryCsv(writer, query)
}

func (client *Client) Shutdown() {
	client.Onchain.Chain.Disconnect()
	if err := client.Database.Close(); err != nil {
		logger.Errorf("Could not close database: %v", err)
	}
}
