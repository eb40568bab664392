package sink

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"harvester/internal/logger"
	"harvester/internal/models"
)

// PostgresSink stores each table in PostgreSQL through a pgx pool.
type PostgresSink struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string, log *logger.Logger) (*PostgresSink, error) {
	if log == nil {
		log = logger.Discard()
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = 4

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()

		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Info("connected to database", "name", poolConfig.ConnConfig.Database)

	return &PostgresSink{pool: pool, log: log}, nil
}

// Save creates the table if needed and inserts every record in one transaction.
// Rows whose id already exists are left as they are.
func (s *PostgresSink) Save(ctx context.Context, table *models.Table) error {
	if err := checkTableName(table.Name); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op after commit

	if _, err := tx.Exec(ctx, postgresDialect.createTable(table)); err != nil {
		return fmt.Errorf("failed to create table %s: %w", table.Name, err)
	}

	insert := postgresDialect.insert(table)
	batch := &pgx.Batch{}

	for i := range table.Records {
		batch.Queue(insert, table.Records[i].Values()...)
	}

	results := tx.SendBatch(ctx, batch)

	inserted := int64(0)

	for i := range table.Records {
		tag, err := results.Exec()
		if err != nil {
			results.Close()

			return fmt.Errorf("insert %s: %w", table.Records[i].ID, err)
		}

		inserted += tag.RowsAffected()
	}

	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.log.Info("table saved", "table", table.Name, "inserted", inserted, "records", table.Len())

	return nil
}

// Close releases the pool.
func (s *PostgresSink) Close() error {
	s.pool.Close()

	return nil
}
