package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/phamhung075/dhafnck-mcp-sub000/pkg/logger"
)

// DBInterface is the minimal querier the repositories need. Both a real
// pgxpool.Pool wrapper and pgxmock satisfy it.
type DBInterface interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Config holds PostgreSQL connection settings.
type Config struct {
	ConnString string
	Host       string
	Port       string
	User       string
	Password   string
	DBName     string
	SSLMode    string
}

type DB struct {
	pool *pgxpool.Pool
}

// NewDB opens a connection pool and verifies connectivity.
func NewDB(ctx context.Context, cfg *Config) (*DB, error) {
	connString := cfg.ConnString
	if connString == "" {
		connString = fmt.Sprintf(
			"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
			orDefault(cfg.Host, "localhost"),
			orDefault(cfg.Port, "5432"),
			orDefault(cfg.User, "postgres"),
			orDefault(cfg.Password, ""),
			orDefault(cfg.DBName, "dhafnck"),
			orDefault(cfg.SSLMode, "disable"),
		)
	}
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	config.MaxConns = 20
	config.MinConns = 2
	config.HealthCheckPeriod = 30 * time.Second
	config.ConnConfig.ConnectTimeout = 5 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("creating pool: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}
	logger.FromContext(ctx).With(
		"host", cfg.Host,
		"port", cfg.Port,
		"db_name", cfg.DBName,
	).Info("database connection established")
	return &DB{pool: pool}, nil
}

func (db *DB) Close(ctx context.Context) error {
	db.pool.Close()
	logger.FromContext(ctx).Info("database connection closed")
	return nil
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

func (db *DB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return db.pool.Exec(ctx, sql, arguments...)
}

func (db *DB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return db.pool.Query(ctx, sql, args...)
}

func (db *DB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return db.pool.QueryRow(ctx, sql, args...)
}

func (db *DB) Begin(ctx context.Context) (pgx.Tx, error) {
	return db.pool.Begin(ctx)
}

func orDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
