package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"github.com/andresuchdata/dairyplan/backend-go/internal/config"
)

// PoolOptions sizes the connection pool and caps concurrent transactions.
type PoolOptions struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	MaxConcurrentTx int64
}

func DefaultPoolOptions() PoolOptions {
	return PoolOptions{
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		MaxConcurrentTx: 10,
	}
}

type DB struct {
	*sqlx.DB
	txSlots *semaphore.Weighted
}

var (
	shared     *DB
	sharedErr  error
	sharedOnce sync.Once
)

// NewDB connects the process-wide lib/pq pool. Later calls return the same
// pool and ignore cfg.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	sharedOnce.Do(func() {
		conn, err := sqlx.Connect("postgres", DSN(cfg))
		if err != nil {
			sharedErr = fmt.Errorf("connect to %s@%s:%s: %w", cfg.DBName, cfg.Host, cfg.Port, err)
			return
		}
		shared = wrap(conn, DefaultPoolOptions())
	})
	return shared, sharedErr
}

// Wrap adapts a pool opened elsewhere, such as one on the pgx stdlib driver.
func Wrap(db *sql.DB, driverName string, opts PoolOptions) *DB {
	return wrap(sqlx.NewDb(db, driverName), opts)
}

func wrap(conn *sqlx.DB, opts PoolOptions) *DB {
	conn.SetMaxOpenConns(opts.MaxOpenConns)
	conn.SetMaxIdleConns(opts.MaxIdleConns)
	conn.SetConnMaxLifetime(opts.ConnMaxLifetime)

	slots := opts.MaxConcurrentTx
	if slots <= 0 {
		slots = 1
	}
	return &DB{DB: conn, txSlots: semaphore.NewWeighted(slots)}
}

// DSN builds a key/value connection string understood by lib/pq and pgx.
func DSN(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode)
}

// WithTx runs fn in a transaction holding one of the transaction slots. The
// transaction commits only when fn returns nil; errors and panics roll back.
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := db.txSlots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("wait for transaction slot: %w", err)
	}
	defer db.txSlots.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			rollback(tx)
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		rollback(tx)
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func rollback(tx *sqlx.Tx) {
	if err := tx.Rollback(); err != nil {
		log.Error().Err(err).Msg("could not rollback transaction")
	}
}
