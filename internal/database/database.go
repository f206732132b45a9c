package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/picopayments/picopayments-client/internal/logger"
	_ "github.com/mattn/go-sqlite3"
)

const createTables = `
CREATE TABLE version
(
	version INT
);

CREATE TABLE connections
(
	handle    VARCHAR PRIMARY KEY,
	asset     VARCHAR NOT NULL,
	data      JSON    NOT NULL,
	version   INT     NOT NULL,
	createdAt INT     NOT NULL,
	updatedAt INT     NOT NULL
);

CREATE TABLE history
(
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp   INT     NOT NULL,
	handle      VARCHAR,
	action      VARCHAR NOT NULL,
	txId        VARCHAR,
	fee         INT,
	quantity    INT,
	asset       VARCHAR,
	destination VARCHAR
);

CREATE INDEX history_handle ON history (handle);
`

type Database struct {
	Path string `long:"database.path" description:"Path to the database file"`

	db   *sql.DB
	tx   *sql.Tx
	lock sync.RWMutex
}

type Transaction struct {
	Database
}

type row interface {
	Scan(dest ...any) error
}

type JsonScanner[T any] struct {
	Value    T
	Nullable bool
}

func (j *JsonScanner[T]) Scan(src any) error {
	switch src := src.(type) {
	case string:
		return json.Unmarshal([]byte(src), &j.Value)
	case []byte:
		return json.Unmarshal(src, &j.Value)
	case nil:
		if j.Nullable {
			return nil
		}
	}
	return fmt.Errorf("unsupported type: %T", src)
}

func (database *Database) BeginTx() (*Transaction, error) {
	tx, err := database.db.Begin()
	if err != nil {
		return nil, err
	}
	return &Transaction{
		Database{db: database.db, tx: tx},
	}, nil
}

func (database *Database) RunTx(run func(tx *Transaction) error) error {
	tx, err := database.BeginTx()
	if err != nil {
		return err
	}
	if err := run(tx); err != nil {
		return tx.Rollback(err)
	}
	return tx.Commit()
}

func (transaction *Transaction) Commit() error {
	return transaction.tx.Commit()
}

func (transaction *Transaction) Rollback(cause error) error {
	if err := transaction.tx.Rollback(); err != nil {
		return fmt.Errorf("failed to rollback: %w: %w", err, cause)
	}
	return cause
}

func (database *Database) Connect() error {
	if database.db == nil {
		logger.Info("Opening database: " + database.Path)
		db, err := sql.Open("sqlite3", database.Path)
		if err != nil {
			return err
		}
		// sqlite only allows a single writer
		db.SetMaxOpenConns(1)
		database.db = db
		if err := database.migrate(); err != nil {
			return err
		}
	}
	return nil
}

func (database *Database) Close() error {
	if database.db == nil {
		return nil
	}
	return database.db.Close()
}

func (database *Database) Exec(query string, args ...any) (sql.Result, error) {
	database.lock.Lock()
	defer database.lock.Unlock()
	logger.Silly("Executing query: " + query)
	if database.tx != nil {
		return database.tx.Exec(query, args...)
	}
	return database.db.Exec(query, args...)
}

func (database *Database) Query(query string, args ...any) (*sql.Rows, error) {
	logger.Silly("Executing query: " + query)
	if database.tx != nil {
		return database.tx.Query(query, args...)
	}
	return database.db.Query(query, args...)
}

func (database *Database) QueryRow(query string, args ...any) *sql.Row {
	logger.Silly("Executing query: " + query)
	if database.tx != nil {
		return database.tx.QueryRow(query, args...)
	}
	return database.db.QueryRow(query, args...)
}

func (database *Database) createTables() error {
	_, err := database.Exec(createTables)
	return err
}

func whereClause(conditions []string) string {
	if len(conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conditions, " AND ")
}

func parseTime(unix int64) time.Time {
	return time.Unix(unix, 0)
}

func FormatTime(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func parseNullUint(value sql.NullInt64) uint64 {
	if !value.Valid {
		return 0
	}
	return uint64(value.Int64)
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.Error("Could not close rows: " + err.Error())
	}
}
