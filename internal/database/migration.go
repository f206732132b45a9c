package database

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/picopayments/picopayments-client/internal/logger"
)

const latestSchemaVersion = 2

func (database *Database) migrate() error {
	version, err := database.queryVersion()

	if err != nil {
		// Insert the latest schema version when no row is found
		logger.Infof("No database schema version found, inserting latest schema version %d", latestSchemaVersion)
		if err := database.createTables(); err != nil {
			return err
		}

		_, err = database.Exec("INSERT INTO version (version) VALUES (?)", latestSchemaVersion)

		return err
	}

	tx, err := database.BeginTx()
	if err != nil {
		return fmt.Errorf("failed to start transaction for migration: %w", err)
	}

	if err = database.performMigration(tx, version); err != nil {
		return tx.Rollback(err)
	}
	return tx.Commit()
}

func (database *Database) performMigration(tx *Transaction, oldVersion int) error {
	switch oldVersion {
	case 1:
		logMigration(oldVersion)

		migration := `
		ALTER TABLE history ADD COLUMN asset VARCHAR;
		UPDATE history SET asset = (SELECT asset FROM connections WHERE connections.handle = history.handle);
		CREATE INDEX history_handle ON history (handle);
		`
		if _, err := tx.Exec(migration); err != nil {
			return err
		}
	case latestSchemaVersion:
		logger.Info("database already at latest schema version: " + strconv.Itoa(latestSchemaVersion))
		return nil

	default:
		return errors.New("found unexpected database schema version: " + strconv.Itoa(oldVersion))
	}

	newVersion := oldVersion + 1

	if _, err := tx.Exec("UPDATE version SET version = ?", newVersion); err != nil {
		return err
	}

	logger.Infof("Update to database version %d completed", newVersion)

	if oldVersion+1 < latestSchemaVersion {
		logger.Info("Running migration again")
		return database.performMigration(tx, newVersion)
	}

	return nil
}

func (database *Database) queryVersion() (int, error) {
	row := database.QueryRow("SELECT version FROM version")

	var version int

	err := row.Scan(
		&version,
	)

	return version, err
}

func logMigration(oldVersion int) {
	logger.Infof("Updating database from version %d to %d", oldVersion, oldVersion+1)
}
