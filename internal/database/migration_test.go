package database

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMigration(t *testing.T) {
	tt := []struct {
		name        string
		schema      string
		successfull bool
	}{
		{"Original", originalSchema, true},
		{"Latest", latestSchema, true},
		{"Unknown", unknownSchema, false},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			path := t.TempDir() + "/test.db"
			db, err := sql.Open("sqlite3", path)
			require.NoError(t, err)
			_, err = db.Exec(tc.schema)
			require.NoError(t, err)
			database := &Database{Path: path, db: db}
			originalVersion, err := database.queryVersion()
			require.NoError(t, err)
			require.NoError(t, db.Close())

			database = &Database{Path: path}
			migrationError := database.Connect()
			t.Cleanup(func() { require.NoError(t, database.Close()) })
			version, err := database.queryVersion()
			require.NoError(t, err)
			if tc.successfull {
				require.NoError(t, migrationError)
				require.Equal(t, latestSchemaVersion, version)

				connections, err := database.QueryConnections(ConnectionQuery{})
				require.NoError(t, err)
				require.Len(t, connections, 1)

				entries, err := database.QueryHistory(HistoryQuery{})
				require.NoError(t, err)
				require.Len(t, entries, 1)
				require.Equal(t, "XCP", entries[0].Asset)
			} else {
				require.Error(t, migrationError)
				require.Equal(t, originalVersion, version)
			}
		})
	}
}

const originalSchema = `
CREATE TABLE version (version INT);
INSERT INTO version VALUES (1);
CREATE TABLE connections
(
	handle    VARCHAR PRIMARY KEY,
	asset     VARCHAR NOT NULL,
	data      JSON    NOT NULL,
	version   INT     NOT NULL,
	createdAt INT     NOT NULL,
	updatedAt INT     NOT NULL
);
INSERT INTO connections VALUES ('handle', 'XCP', '{"version": 1}', 1, 1700000000, 1700000000);
CREATE TABLE history
(
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp   INT     NOT NULL,
	handle      VARCHAR,
	action      VARCHAR NOT NULL,
	txId        VARCHAR,
	fee         INT,
	quantity    INT,
	destination VARCHAR
);
INSERT INTO history (timestamp, handle, action, txId, fee, quantity, destination)
VALUES (1700000000, 'handle', 'connect', 'abcd', 0, 10000, '');
`

const latestSchema = createTables + `
INSERT INTO version VALUES (2);
INSERT INTO connections VALUES ('handle', 'XCP', '{"version": 1}', 1, 1700000000, 1700000000);
INSERT INTO history (timestamp, handle, action, txId, fee, quantity, asset, destination)
VALUES (1700000000, 'handle', 'connect', 'abcd', 0, 10000, 'XCP', '');
`

const unknownSchema = `
CREATE TABLE version (version INT);
INSERT INTO version VALUES (99);
`
