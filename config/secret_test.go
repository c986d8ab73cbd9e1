package config

import (
	"os"
	"testing"
)

func TestSecretGetValueData(t *testing.T) {
	expectedValue := "Hello, World!"
	s := Secret{Type: DataSecret, Data: expectedValue}
	value, err := s.GetValue()
	if err != nil {
		t.Error("Error: ", err)
	}
	if value != expectedValue {
		t.Errorf("Expected %q, but got %q", expectedValue, value)
	}
}

func TestSecretGetValueFile(t *testing.T) {
	file, err := os.CreateTemp(os.TempDir(), "harness-test-")
	if err != nil {
		t.Error("Error: ", err)
	}
	expectedValue := "Hello, World!"
	_, err = file.Write([]byte(expectedValue))
	_ = file.Close()
	defer func() {
		_ = os.Remove(file.Name())
	}()
	if err != nil {
		t.Error("Error: ", err)
	}
	s := Secret{Type: FileSecret, Data: file.Name()}
	value, err := s.GetValue()
	if err != nil {
		t.Error("Error: ", err)
	}
	if value != expectedValue {
		t.Errorf("Expected %q, but got %q", expectedValue, value)
	}
	s = Secret{Type: FileSecret, Data: s.Data + "-invalid"}
	if _, err := s.GetValue(); err == nil {
		t.Error("Expected error")
	}
}

func TestSecretGetValueEnv(t *testing.T) {
	name := "HARNESS_TEST_ENV_VAR"
	expectedValue := "Hello, World!"
	if err := os.Setenv(name, expectedValue); err != nil {
		t.Error("Error: ", err)
	}
	s := Secret{Type: EnvSecret, Data: name}
	value, err := s.GetValue()
	if err != nil {
		t.Error("Error: ", err)
	}
	if value != expectedValue {
		t.Errorf("Expected %q, but got %q", expectedValue, value)
	}
	s = Secret{Type: EnvSecret, Data: s.Data + "_INVALID"}
	if _, err := s.GetValue(); err == nil {
		t.Error("Expected error")
	}
}

func TestSecretGetValueUnsupported(t *testing.T) {
	s := Secret{Type: "unsupported", Data: "12345"}
	if _, err := s.GetValue(); err == nil {
		t.Error("Expected error")
	}
}
