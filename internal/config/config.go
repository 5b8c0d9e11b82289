package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// FileName is the workspace config file.
const FileName = "w2h.yml"

// Config models w2h.yml.
type Config struct {
	API struct {
		BaseURL string        `yaml:"base_url" json:"baseUrl"`
		Timeout time.Duration `yaml:"timeout" json:"timeout"`
	} `yaml:"api" json:"api"`
	List struct {
		PageSize  int `yaml:"page_size" json:"pageSize"`
		FetchSize int `yaml:"fetch_size" json:"fetchSize"`
	} `yaml:"list" json:"list"`
	Log struct {
		Level string `yaml:"level" json:"level"`
	} `yaml:"log" json:"log"`
}

// Path returns the config file path for a workspace.
func Path(workspace string) string {
	if workspace == "" {
		workspace = "."
	}
	return filepath.Join(workspace, FileName)
}

// Load reads the workspace config. A missing file yields the defaults.
func Load(workspace string) (*Config, error) {
	data, err := os.ReadFile(Path(workspace))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	return FromYAML(data)
}

// Validate ensures the config meets required structure.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("config.api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("config.api.base_url must be an http or https URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("config.api.timeout must be positive")
	}
	if c.List.PageSize <= 0 {
		return fmt.Errorf("config.list.page_size must be positive")
	}
	if c.List.FetchSize < c.List.PageSize {
		return fmt.Errorf("config.list.fetch_size must be at least page_size (%d)", c.List.PageSize)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config.log.level: %w", err)
	}
	return nil
}

// GenerateDefault returns default config YAML.
func GenerateDefault() string { return defaultTemplate }

// Default returns the default Config.
func Default() *Config {
	var cfg Config
	_ = yaml.Unmarshal([]byte(defaultTemplate), &cfg)
	return &cfg
}

// FromYAML parses and validates config from raw YAML bytes. Keys absent from
// data keep their default values.
func FromYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("invalid config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// WriteDefault creates w2h.yml in workspace unless it already exists.
func WriteDefault(workspace string) (string, error) {
	path := Path(workspace)
	if _, err := os.Stat(path); err == nil {
		return path, fmt.Errorf("config %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return path, err
	}
	return path, os.WriteFile(path, []byte(defaultTemplate), 0o644)
}

const defaultTemplate = `api:
  base_url: http://localhost:5000
  timeout: 10s

list:
  page_size: 10
  fetch_size: 100

log:
  level: warning
`
