package core

import (
	"context"
	"testing"

	"github.com/openchallenges/harness/config"
)

func TestNewCore(t *testing.T) {
	cfg := config.Config{
		Platform: config.Platform{Endpoint: "http://localhost:4242"},
		DB: &config.DB{
			Options: config.SQLiteOptions{Path: ":memory:"},
		},
		Storage: &config.Storage{
			Options: config.LocalStorageOptions{Dir: t.TempDir()},
		},
	}
	c, err := NewCore(cfg)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	defer c.Stop()
	if c.Client == nil {
		t.Fatal("Expected platform client")
	}
	if c.Journal == nil {
		t.Fatal("Expected journal store")
	}
	if c.Goldstandards == nil {
		t.Fatal("Expected goldstandard storage")
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal("Error: ", err)
	}
	logger := c.Logger().With(Any("component", "test"))
	logger.Info("Core started")
}

func TestNewCoreWithoutResources(t *testing.T) {
	cfg := config.Config{
		Platform: config.Platform{Endpoint: "http://localhost:4242"},
	}
	c, err := NewCore(cfg)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	defer c.Stop()
	if c.Journal != nil {
		t.Fatal("Expected no journal store")
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatal("Error: ", err)
	}
}

func TestCoreLoginRequiresUser(t *testing.T) {
	cfg := config.Config{
		Platform: config.Platform{Endpoint: "http://localhost:4242"},
	}
	c, err := NewCore(cfg)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	defer c.Stop()
	if err := c.Login(context.Background(), "", ""); err == nil {
		t.Fatal("Expected error without configured user")
	}
}
