package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var ErrConnectionNotFound = errors.New("connection not found")

// Connection is a persisted hub connection. Data holds the serialized
// connection state and is opaque to the database.
type Connection struct {
	Handle    string
	Asset     string
	Data      json.RawMessage
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

type ConnectionQuery struct {
	Asset   *string
	Handles []string
}

func parseConnection(row row) (*Connection, error) {
	var connection Connection
	var createdAt, updatedAt int64
	data := JsonScanner[json.RawMessage]{}

	err := row.Scan(
		&connection.Handle,
		&connection.Asset,
		&data,
		&connection.Version,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	connection.Data = data.Value
	connection.CreatedAt = parseTime(createdAt)
	connection.UpdatedAt = parseTime(updatedAt)
	return &connection, nil
}

// SaveConnection inserts the connection or replaces the data of an existing one.
func (database *Database) SaveConnection(connection *Connection) error {
	now := time.Now()
	if connection.CreatedAt.IsZero() {
		connection.CreatedAt = now
	}
	connection.UpdatedAt = now

	query := `
	INSERT INTO connections (handle, asset, data, version, createdAt, updatedAt) VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT (handle) DO UPDATE SET data = excluded.data, version = excluded.version, updatedAt = excluded.updatedAt
	`
	_, err := database.Exec(
		query,
		connection.Handle,
		connection.Asset,
		string(connection.Data),
		connection.Version,
		FormatTime(connection.CreatedAt),
		FormatTime(connection.UpdatedAt),
	)
	return err
}

func (database *Database) QueryConnection(handle string) (*Connection, error) {
	database.lock.RLock()
	defer database.lock.RUnlock()

	row := database.QueryRow("SELECT * FROM connections WHERE handle = ?", handle)
	connection, err := parseConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrConnectionNotFound, handle)
	}
	return connection, err
}

func (database *Database) QueryConnections(query ConnectionQuery) ([]*Connection, error) {
	database.lock.RLock()
	defer database.lock.RUnlock()

	var conditions []string
	var values []any
	if query.Asset != nil {
		conditions = append(conditions, "asset = ?")
		values = append(values, *query.Asset)
	}
	if len(query.Handles) > 0 {
		placeholders := "?"
		values = append(values, query.Handles[0])
		for _, handle := range query.Handles[1:] {
			placeholders += ", ?"
			values = append(values, handle)
		}
		conditions = append(conditions, "handle IN ("+placeholders+")")
	}

	rows, err := database.Query("SELECT * FROM connections"+whereClause(conditions)+" ORDER BY createdAt", values...)
	if err != nil {
		return nil, err
	}
	defer closeRows(rows)

	var connections []*Connection
	for rows.Next() {
		connection, err := parseConnection(rows)
		if err != nil {
			return nil, err
		}
		connections = append(connections, connection)
	}
	return connections, rows.Err()
}

func (database *Database) DeleteConnection(handle string) error {
	result, err := database.Exec("DELETE FROM connections WHERE handle = ?", handle)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrConnectionNotFound, handle)
	}
	return nil
}
