package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"harvester/internal/logger"
	"harvester/internal/models"
)

// SQLiteSink stores each table as a SQLite table keyed by its id column.
type SQLiteSink struct {
	db  *sql.DB
	log *logger.Logger
}

// OpenSQLite opens (or creates) the database file at path.
func OpenSQLite(ctx context.Context, path string, log *logger.Logger) (*SQLiteSink, error) {
	if log == nil {
		log = logger.Discard()
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	// One connection: SQLite allows a single writer and ":memory:" is per connection.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()

		return nil, fmt.Errorf("failed to ping sqlite: %w", err)
	}

	log.Debug("sqlite sink ready", "path", path)

	return &SQLiteSink{db: db, log: log}, nil
}

// DB exposes the underlying handle.
func (s *SQLiteSink) DB() *sql.DB {
	return s.db
}

// Save creates the table if needed and inserts every record in one transaction.
// Rows whose id already exists are left as they are.
func (s *SQLiteSink) Save(ctx context.Context, table *models.Table) (err error) {
	if err := checkTableName(table.Name); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, sqliteDialect.createTable(table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table.Name, err)
	}

	stmt, err := tx.PrepareContext(ctx, sqliteDialect.insert(table))
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	inserted := 0

	for i := range table.Records {
		res, execErr := stmt.ExecContext(ctx, table.Records[i].Values()...)
		if execErr != nil {
			err = fmt.Errorf("insert %s: %w", table.Records[i].ID, execErr)

			return err
		}

		if n, _ := res.RowsAffected(); n > 0 {
			inserted++
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("table saved", "table", table.Name, "inserted", inserted, "records", table.Len())

	return nil
}

// Close closes the database.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}
