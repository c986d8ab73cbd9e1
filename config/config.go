package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/template"

	"github.com/labstack/gommon/log"
)

// Config stores configuration for scoring harness.
type Config struct {
	// Platform contains remote collaboration platform config.
	Platform Platform `json:"platform"`
	// DB contains run journal database config.
	DB *DB `json:"db,omitempty"`
	// Storage contains goldstandard storage config.
	Storage *Storage `json:"storage,omitempty"`
	// Queues contains evaluation queue configs.
	Queues []Queue `json:"queues,omitempty"`
	// QueuesFile contains path to a separate queues config file.
	//
	// The file is read on every invocation, so queues can be
	// reconfigured without touching the main config.
	QueuesFile string `json:"queues_file,omitempty"`
	// AdminUserIDs contains user IDs of challenge administrators.
	AdminUserIDs []int64 `json:"admin_user_ids,omitempty"`
	// Messages contains defaults for notification templates.
	Messages Messages `json:"messages,omitempty"`
	// LogLevel contains level of logging.
	LogLevel LogLevel `json:"log_level,omitempty"`
}

// Messages contains the well-known values interpolated into every
// notification template.
type Messages struct {
	// ChallengeInstructionsURL links the challenge instructions page.
	ChallengeInstructionsURL string `json:"challenge_instructions_url,omitempty"`
	// SupportForumURL links the challenge support forum.
	SupportForumURL string `json:"support_forum_url,omitempty"`
	// ScoringScript names the harness in message signatures.
	ScoringScript string `json:"scoring_script,omitempty"`
}

// Platform contains connection config for the collaboration platform.
type Platform struct {
	// Endpoint contains base URL of platform REST API.
	Endpoint string `json:"endpoint"`
	// User contains login of harness service account.
	User string `json:"user,omitempty"`
	// Password contains password of harness service account.
	Password Secret `json:"password,omitempty"`
	// CacheDir contains directory for downloaded submission files.
	CacheDir string `json:"cache_dir,omitempty"`
}

// LogLevel represents level of logging.
type LogLevel log.Lvl

func (l LogLevel) MarshalJSON() ([]byte, error) {
	switch log.Lvl(l) {
	case log.DEBUG:
		return json.Marshal("debug")
	case log.INFO:
		return json.Marshal("info")
	case log.WARN:
		return json.Marshal("warn")
	case log.ERROR:
		return json.Marshal("error")
	case log.OFF:
		return json.Marshal("off")
	default:
		return nil, fmt.Errorf("unsupported log level: %d", l)
	}
}

func (l *LogLevel) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	switch value {
	case "debug":
		*l = LogLevel(log.DEBUG)
	case "info":
		*l = LogLevel(log.INFO)
	case "warn":
		*l = LogLevel(log.WARN)
	case "error":
		*l = LogLevel(log.ERROR)
	case "off":
		*l = LogLevel(log.OFF)
	default:
		return fmt.Errorf("unsupported log level: %q", value)
	}
	return nil
}

var configFuncs = template.FuncMap{
	"json": func(value any) (string, error) {
		data, err := json.Marshal(value)
		return string(data), err
	},
	"file": func(name string) (string, error) {
		data, err := os.ReadFile(name)
		if err != nil {
			return "", err
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	},
	"env": os.Getenv,
}

// LoadFromFile loads configuration from JSON file.
//
// File is rendered as text/template with "json", "file" and "env"
// functions before parsing.
func LoadFromFile(path string) (Config, error) {
	cfg := Config{
		LogLevel: LogLevel(log.INFO),
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	tmpl, err := template.New(path).Funcs(configFuncs).Parse(string(data))
	if err != nil {
		return Config{}, err
	}
	var rendered bytes.Buffer
	tmpl.Option("missingkey=error")
	if err := tmpl.Execute(&rendered, nil); err != nil {
		return Config{}, err
	}
	if err := json.Unmarshal(rendered.Bytes(), &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
