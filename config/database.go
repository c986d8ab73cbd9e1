package config

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/udovin/gosql"

	// Register SQL drivers.
	_ "github.com/jackc/pgx/v4/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

type DatabaseDriver string

const (
	SQLiteDriver   DatabaseDriver = "sqlite"
	PostgresDriver DatabaseDriver = "postgres"
)

// DB stores configuration for run journal database connection.
type DB struct {
	// Options contains driver-specific connection options.
	Options any `json:"options"`
}

// SQLiteOptions stores SQLite connection options.
type SQLiteOptions struct {
	// Path contains path to database file.
	Path string `json:"path"`
}

func (o SQLiteOptions) Driver() DatabaseDriver {
	return SQLiteDriver
}

// PostgresOptions stores Postgres connection options.
type PostgresOptions struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password Secret `json:"password"`
	Name     string `json:"name"`
	SSLMode  string `json:"sslmode,omitempty"`
}

func (o PostgresOptions) Driver() DatabaseDriver {
	return PostgresDriver
}

type databaseOptions interface {
	Driver() DatabaseDriver
}

func (c DB) MarshalJSON() ([]byte, error) {
	options, ok := c.Options.(databaseOptions)
	if !ok {
		return nil, fmt.Errorf("unsupported options type: %T", c.Options)
	}
	cfg := struct {
		Driver  DatabaseDriver `json:"driver"`
		Options any            `json:"options"`
	}{
		Driver:  options.Driver(),
		Options: options,
	}
	return json.Marshal(cfg)
}

func (c *DB) UnmarshalJSON(data []byte) error {
	var cfg struct {
		Driver  DatabaseDriver  `json:"driver"`
		Options json.RawMessage `json:"options"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	switch cfg.Driver {
	case SQLiteDriver:
		var options SQLiteOptions
		if err := json.Unmarshal(cfg.Options, &options); err != nil {
			return err
		}
		c.Options = options
	case PostgresDriver:
		var options PostgresOptions
		if err := json.Unmarshal(cfg.Options, &options); err != nil {
			return err
		}
		c.Options = options
	default:
		return fmt.Errorf("driver %q is not supported", cfg.Driver)
	}
	return nil
}

func createSQLiteDB(opts SQLiteOptions) (*gosql.DB, error) {
	conn, err := sql.Open(
		"sqlite3",
		fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=10000", opts.Path),
	)
	if err != nil {
		return nil, err
	}
	// SQLite does not support concurrent writes.
	conn.SetMaxOpenConns(1)
	return &gosql.DB{
		Builder: gosql.NewBuilder(gosql.SQLiteDialect),
		DB:      conn,
	}, nil
}

func createPostgresDB(opts PostgresOptions) (*gosql.DB, error) {
	password, err := opts.Password.GetValue()
	if err != nil {
		return nil, fmt.Errorf("cannot get password: %w", err)
	}
	sslMode := opts.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}
	conn, err := sql.Open("pgx", fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		opts.Host, opts.Port, opts.User, password, opts.Name, sslMode,
	))
	if err != nil {
		return nil, err
	}
	return &gosql.DB{
		Builder: gosql.NewBuilder(gosql.PostgresDialect),
		DB:      conn,
	}, nil
}

// Create creates database connection using current configuration.
func (c DB) Create() (*gosql.DB, error) {
	switch options := c.Options.(type) {
	case SQLiteOptions:
		return createSQLiteDB(options)
	case PostgresOptions:
		return createPostgresDB(options)
	default:
		return nil, fmt.Errorf("unsupported options type: %T", c.Options)
	}
}
