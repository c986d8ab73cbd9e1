package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
)

type SecretType string

const (
	DataSecret SecretType = "data"
	FileSecret SecretType = "file"
	EnvSecret  SecretType = "env"
)

// Secret stores configuration for secret data.
//
// Used for inserting secret values to configs like passwords and tokens.
// If you want to pass secret as plain text, use type DataSecret:
//
//	Secret{Type: DataSecret, Data: "qwerty123"}
//
// For loading secret from file you should use FileSecret type:
//
//	Secret{Type: FileSecret, Data: "platform-password.txt"}
//
// For passing environment variable to secret you should use EnvSecret:
//
//	Secret{Type: EnvSecret, Data: "SYNAPSE_PASSWORD"}
type Secret struct {
	Type  SecretType `json:"type"`
	Data  string     `json:"data"`
	mutex sync.Mutex
}

// GetValue returns secret value.
func (s *Secret) GetValue() (string, error) {
	s.mutex.Lock()
	switch s.Type {
	case FileSecret:
		data, err := os.ReadFile(s.Data)
		if err != nil {
			s.mutex.Unlock()
			return "", err
		}
		s.Data = strings.TrimRight(string(data), "\r\n")
		s.Type = DataSecret
	case EnvSecret:
		value, ok := os.LookupEnv(s.Data)
		if !ok {
			s.mutex.Unlock()
			return "", fmt.Errorf(
				"environment variable %q does not exists", s.Data,
			)
		}
		s.Data, s.Type = value, DataSecret
	}
	s.mutex.Unlock()
	if s.Type == DataSecret {
		return s.Data, nil
	}
	return "", fmt.Errorf("unsupported secret type %q", s.Type)
}
