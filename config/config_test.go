package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/labstack/gommon/log"
)

func TestLoadFromFile(t *testing.T) {
	file, err := os.CreateTemp(os.TempDir(), "harness-test-")
	if err != nil {
		t.Error("Error: ", err)
	}
	expectedConfig := Config{
		Platform: Platform{
			Endpoint: "https://repo.example.org/v1",
			User:     "harness",
			CacheDir: "/tmp/harness-cache",
		},
		DB: &DB{
			Options: SQLiteOptions{Path: ":memory:"},
		},
		LogLevel: LogLevel(log.INFO),
	}
	expectedConfigData, err := json.Marshal(expectedConfig)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	_, err = file.Write(expectedConfigData)
	_ = file.Close()
	defer func() {
		_ = os.Remove(file.Name())
	}()
	if err != nil {
		t.Fatal("Error: ", err)
	}
	_, err = LoadFromFile(filepath.Join(os.TempDir(), "harness-test-deleted"))
	if err == nil {
		t.Fatal("Expected error for config from deleted file")
	}
	config, err := LoadFromFile(file.Name())
	if err != nil {
		t.Fatal("Error: ", err)
	}
	configData, err := json.Marshal(config)
	if err != nil {
		t.Fatal("Error: ", err)
	}
	testExpect(t, string(configData), string(expectedConfigData))
}

const templateConfig = `
{
	"platform": {
		"endpoint": {{ "https://repo.example.org/v1" | json }},
		"password": {"type": "data", "data": {{ file "SECRET_FILE" | json }}}
	},
	"db": {
		"driver": "sqlite",
		"options": {
			"path": ":memory:"
		}
	}
}
`

func TestLoadFromTemplateFile(t *testing.T) {
	secretFile, err := os.CreateTemp(os.TempDir(), "harness-test-secret-")
	if err != nil {
		t.Error("Error: ", err)
	}
	if _, err := secretFile.Write([]byte("secret")); err != nil {
		t.Fatal("Error: ", err)
	}
	_ = secretFile.Close()
	defer func() {
		_ = os.Remove(secretFile.Name())
	}()
	file, err := os.CreateTemp(os.TempDir(), "harness-test-")
	if err != nil {
		t.Error("Error: ", err)
	}
	if _, err = file.Write([]byte(strings.ReplaceAll(
		templateConfig, "SECRET_FILE", secretFile.Name(),
	))); err != nil {
		t.Fatal("Error: ", err)
	}
	_ = file.Close()
	defer func() {
		_ = os.Remove(file.Name())
	}()
	cfg, err := LoadFromFile(file.Name())
	if err != nil {
		t.Fatal("Error: ", err)
	}
	password, err := cfg.Platform.Password.GetValue()
	if err != nil {
		t.Fatal("Error: ", err)
	}
	testExpect(t, password, "secret")
	if opts, ok := cfg.DB.Options.(SQLiteOptions); !ok {
		t.Fatalf("Invalid options type: %T", cfg.DB.Options)
	} else {
		testExpect(t, opts.Path, ":memory:")
	}
	testExpect(t, cfg.LogLevel, LogLevel(log.INFO))
}

func TestLoadFromInvalidFile(t *testing.T) {
	file, err := os.CreateTemp(os.TempDir(), "harness-test-")
	if err != nil {
		t.Error("Error: ", err)
	}
	_, err = file.Write([]byte("invalid data"))
	if err != nil {
		t.Fatal("Error: ", err)
	}
	_ = file.Close()
	defer func() {
		_ = os.Remove(file.Name())
	}()
	if _, err := LoadFromFile(file.Name()); err == nil {
		t.Fatal("Expected error for invalid config file")
	}
}

func TestLoadFromInvalidTemplateFile(t *testing.T) {
	file, err := os.CreateTemp(os.TempDir(), "harness-test-")
	if err != nil {
		t.Error("Error: ", err)
	}
	_, err = file.Write([]byte(`{"platform": {{ invalid }} }`))
	if err != nil {
		t.Fatal("Error: ", err)
	}
	_ = file.Close()
	defer func() {
		_ = os.Remove(file.Name())
	}()
	if _, err := LoadFromFile(file.Name()); err == nil {
		t.Fatal("Expected error for invalid config file")
	}
}

func TestLoadQueuesFromFile(t *testing.T) {
	file, err := os.CreateTemp(os.TempDir(), "harness-test-queues-")
	if err != nil {
		t.Error("Error: ", err)
	}
	queuesData := `[
		{"id": 9614112, "validator": "csv", "scorer": "auc", "goldstandard": "answers.csv"},
		{"id": 9614113, "validator": "writeup"}
	]`
	if _, err := file.Write([]byte(queuesData)); err != nil {
		t.Fatal("Error: ", err)
	}
	_ = file.Close()
	defer func() {
		_ = os.Remove(file.Name())
	}()
	queues, err := LoadQueuesFromFile(file.Name())
	if err != nil {
		t.Fatal("Error: ", err)
	}
	if len(queues) != 2 {
		t.Fatalf("Expected 2 queues, got %d", len(queues))
	}
	testExpect(t, queues[0].ID, int64(9614112))
	testExpect(t, queues[0].Scorer, "auc")
	testExpect(t, queues[1].Goldstandard, "")
}

func TestLoadQueuesFromFileInvalid(t *testing.T) {
	file, err := os.CreateTemp(os.TempDir(), "harness-test-queues-")
	if err != nil {
		t.Error("Error: ", err)
	}
	if _, err := file.Write([]byte(`[{"id": 9614112}]`)); err != nil {
		t.Fatal("Error: ", err)
	}
	_ = file.Close()
	defer func() {
		_ = os.Remove(file.Name())
	}()
	if _, err := LoadQueuesFromFile(file.Name()); err == nil {
		t.Fatal("Expected error for queue without validator")
	}
}

func testExpect[T comparable](tb testing.TB, output, answer T) {
	if output != answer {
		tb.Fatalf(
			"Expected %q, got %q",
			fmt.Sprint(answer), fmt.Sprint(output),
		)
	}
}
