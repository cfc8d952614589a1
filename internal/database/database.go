package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"candypic/internal/config"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // sqlite3 driver
	"github.com/rs/zerolog"
)

// DB is the booking store gateway. Queries are written with ? placeholders
// and rebound for the active driver.
type DB struct {
	*sqlx.DB
	driver string
	path   string
	logger *zerolog.Logger
}

func NewDB(cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = config.DriverSQLite
	}

	var dsn string
	switch driver {
	case config.DriverSQLite:
		if cfg.Path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		dsn = cfg.Path + "?_busy_timeout=5000&_foreign_keys=on"
	case config.DriverPostgres:
		dsn = cfg.DSN
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == config.DriverSQLite {
		// one writer; also keeps :memory: databases on a single connection
		conn.SetMaxOpenConns(1)
	} else if cfg.MaxOpenConns > 0 {
		conn.SetMaxOpenConns(cfg.MaxOpenConns)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db := &DB{DB: conn, driver: driver, path: cfg.Path, logger: logger}
	if err := db.createTables(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("driver", driver).Msg("Database initialized")
	return db, nil
}

func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) createTables(ctx context.Context) error {
	queries := sqliteSchema
	if db.driver == config.DriverPostgres {
		queries = postgresSchema
	}
	for _, query := range queries {
		if _, err := db.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_name TEXT NOT NULL DEFAULT '',
		client_phone TEXT NOT NULL DEFAULT '',
		booking_date TEXT NOT NULL,
		booking_end_date TEXT,
		event_type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		assigned_to TEXT NOT NULL DEFAULT '',
		assigned_phones TEXT NOT NULL DEFAULT '[]',
		additional_info TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL DEFAULT '',
		version INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phone TEXT NOT NULL,
		phone_key TEXT NOT NULL,
		push_token TEXT NOT NULL UNIQUE,
		last_active DATETIME NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pending_notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		phone TEXT NOT NULL,
		phone_key TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		booking_id INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at DATETIME NOT NULL,
		sent_at DATETIME
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		chat_id INTEGER NOT NULL,
		user_id INTEGER NOT NULL,
		flow TEXT NOT NULL,
		step TEXT NOT NULL,
		context TEXT NOT NULL,
		prompt_message_id INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_date_status ON bookings(booking_date, status)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_phone_key ON devices(phone_key)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_phone_status ON pending_notifications(phone_key, status)`,
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS bookings (
		id BIGSERIAL PRIMARY KEY,
		client_name TEXT NOT NULL DEFAULT '',
		client_phone TEXT NOT NULL DEFAULT '',
		booking_date DATE NOT NULL,
		booking_end_date DATE,
		event_type TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'pending',
		assigned_to TEXT NOT NULL DEFAULT '',
		assigned_phones TEXT NOT NULL DEFAULT '[]',
		additional_info TEXT NOT NULL DEFAULT '',
		updated_by TEXT NOT NULL DEFAULT '',
		version BIGINT NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS devices (
		id BIGSERIAL PRIMARY KEY,
		phone TEXT NOT NULL,
		phone_key TEXT NOT NULL,
		push_token TEXT NOT NULL UNIQUE,
		last_active TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pending_notifications (
		id BIGSERIAL PRIMARY KEY,
		phone TEXT NOT NULL,
		phone_key TEXT NOT NULL,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		booking_id BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ
	)`,
	`CREATE TABLE IF NOT EXISTS conversations (
		chat_id BIGINT NOT NULL,
		user_id BIGINT NOT NULL,
		flow TEXT NOT NULL,
		step TEXT NOT NULL,
		context TEXT NOT NULL,
		prompt_message_id BIGINT NOT NULL DEFAULT 0,
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (chat_id, user_id)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_date_status ON bookings(booking_date, status)`,
	`CREATE INDEX IF NOT EXISTS idx_devices_phone_key ON devices(phone_key)`,
	`CREATE INDEX IF NOT EXISTS idx_pending_phone_status ON pending_notifications(phone_key, status)`,
}
