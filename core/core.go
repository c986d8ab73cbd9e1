// Package core manages resources shared by harness commands.
package core

import (
	"context"
	"fmt"

	"github.com/labstack/gommon/log"
	"github.com/udovin/gosql"

	"github.com/openchallenges/harness/config"
	"github.com/openchallenges/harness/journal"
	"github.com/openchallenges/harness/storage"
	"github.com/openchallenges/harness/synapse"
)

// Core manages all available resources.
type Core struct {
	// Config contains config.
	Config config.Config
	// Client contains platform API client.
	Client *synapse.Client
	// Journal contains run journal store, nil if journal is not
	// configured.
	Journal *journal.Store
	// Goldstandards contains goldstandard storage, nil if storage
	// is not configured.
	Goldstandards storage.Store
	// DB stores database connection.
	DB *gosql.DB
	// logger contains logger.
	logger *Logger
}

// NewCore creates core instance from config.
func NewCore(cfg config.Config) (*Core, error) {
	logger := NewLogger()
	logger.SetHeader(`{"time":"${time_rfc3339_nano}","level":"${level}"}`)
	logger.SetLevel(log.Lvl(cfg.LogLevel))
	c := Core{
		Config: cfg,
		Client: synapse.NewClient(cfg.Platform.Endpoint),
		logger: logger,
	}
	if cfg.DB != nil {
		conn, err := cfg.DB.Create()
		if err != nil {
			return nil, fmt.Errorf("cannot create database: %w", err)
		}
		c.DB = conn
		c.Journal = journal.NewStore(conn)
	}
	if cfg.Storage != nil {
		store, err := storage.NewStore(*cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("cannot create storage: %w", err)
		}
		c.Goldstandards = store
	}
	return &c, nil
}

// Logger returns logger instance.
func (c *Core) Logger() *Logger {
	return c.logger
}

// Start prepares core for harness run.
func (c *Core) Start(ctx context.Context) error {
	if c.Journal != nil {
		if err := c.Journal.Setup(ctx); err != nil {
			return fmt.Errorf("cannot setup journal: %w", err)
		}
	}
	return nil
}

// Stop releases all resources.
func (c *Core) Stop() {
	if c.DB != nil {
		_ = c.DB.Close()
	}
}

// Login authenticates platform client using harness credentials.
func (c *Core) Login(ctx context.Context, user, password string) error {
	if user == "" {
		user = c.Config.Platform.User
	}
	if password == "" {
		value, err := c.Config.Platform.Password.GetValue()
		if err != nil {
			return fmt.Errorf("cannot get password: %w", err)
		}
		password = value
	}
	if user == "" {
		return fmt.Errorf("platform user is not configured")
	}
	return c.Client.Login(ctx, user, password)
}
