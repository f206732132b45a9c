package database

import (
	"database/sql"
	"encoding/csv"
	"io"
	"strconv"
	"time"
)

type HistoryAction string

const (
	ActionBlockSend HistoryAction = "blocksend"
	ActionConnect   HistoryAction = "connect"
	ActionSend      HistoryAction = "send"
	ActionReceive   HistoryAction = "receive"
	ActionClose     HistoryAction = "close"
	ActionRecover   HistoryAction = "recover"
	ActionCull      HistoryAction = "cull"
)

var HistoryActions = []HistoryAction{
	ActionBlockSend, ActionConnect, ActionSend, ActionReceive, ActionClose, ActionRecover, ActionCull,
}

// HistoryEntry is one line of the append only transaction log. Id is a txid
// for on chain actions and a payment token for channel payments.
type HistoryEntry struct {
	Timestamp   time.Time     `json:"timestamp"`
	Handle      string        `json:"handle"`
	Action      HistoryAction `json:"action"`
	Id          string        `json:"id"`
	Fee         uint64        `json:"fee"`
	Quantity    uint64        `json:"quantity"`
	Asset       string        `json:"asset"`
	Destination string        `json:"destination"`
}

type HistoryQuery struct {
	Handle *string
	Action *HistoryAction
	Since  time.Time
	Limit  *uint64
}

var historyColumns = []string{"timestamp", "handle", "action", "id", "fee", "quantity", "destination"}

func (database *Database) CreateHistoryEntry(entry *HistoryEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	query := `INSERT INTO history (timestamp, handle, action, txId, fee, quantity, asset, destination) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := database.Exec(
		query,
		FormatTime(entry.Timestamp),
		entry.Handle,
		string(entry.Action),
		entry.Id,
		entry.Fee,
		entry.Quantity,
		entry.Asset,
		entry.Destination,
	)
	return err
}

func parseHistoryEntry(row row) (*HistoryEntry, error) {
	var entry HistoryEntry
	var timestamp int64
	var action string
	var handle, id, asset, destination sql.NullString
	var fee, quantity sql.NullInt64

	err := row.Scan(
		&timestamp,
		&handle,
		&action,
		&id,
		&fee,
		&quantity,
		&asset,
		&destination,
	)
	if err != nil {
		return nil, err
	}

	entry.Timestamp = parseTime(timestamp)
	entry.Handle = handle.String
	entry.Action = HistoryAction(action)
	entry.Id = id.String
	entry.Fee = parseNullUint(fee)
	entry.Quantity = parseNullUint(quantity)
	entry.Asset = asset.String
	entry.Destination = destination.String
	return &entry, nil
}

// QueryHistory returns entries oldest first.
func (database *Database) QueryHistory(query HistoryQuery) ([]*HistoryEntry, error) {
	database.lock.RLock()
	defer database.lock.RUnlock()

	var conditions []string
	var values []any
	if query.Handle != nil {
		conditions = append(conditions, "handle = ?")
		values = append(values, *query.Handle)
	}
	if query.Action != nil {
		conditions = append(conditions, "action = ?")
		values = append(values, string(*query.Action))
	}
	if !query.Since.IsZero() {
		conditions = append(conditions, "timestamp >= ?")
		values = append(values, query.Since.Unix())
	}

	statement := "SELECT timestamp, handle, action, txId, fee, quantity, asset, destination FROM history" +
		whereClause(conditions) + " ORDER BY timestamp, id"
	if query.Limit != nil {
		statement += " LIMIT ?"
		values = append(values, *query.Limit)
	}

	rows, err := database.Query(statement, values...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var entries []*HistoryEntry
	for rows.Next() {
		entry, err := parseHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// ExportHistoryCsv writes the matching entries with a header line. Timestamps
// are unix seconds.
func (database *Database) ExportHistoryCsv(writer io.Writer, query HistoryQuery) error {
	entries, err := database.QueryHistory(query)
	if err != nil {
		return err
	}

	out := csv.NewWriter(writer)
	if err := out.Write(historyColumns); err != nil {
		return err
	}
	for _, entry := range entries {
		record := []string{
			strconv.FormatInt(entry.Timestamp.Unix(), 10),
			entry.Handle,
			string(entry.Action),
			entry.Id,
			strconv.FormatUint(entry.Fee, 10),
			strconv.FormatUint(entry.Quantity, 10),
			entry.Destination,
		}
		if err := out.Write(record); err != nil {
			return err
		}
	}
	out.Flush()
	return out.Error()
}
