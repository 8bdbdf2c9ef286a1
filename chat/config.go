package chat

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultServer    = "ws://127.0.0.1:7070/ws"
	DefaultCachePath = "minichat.db"
)

// Config of the terminal client.
type Config struct {
	// Server is the websocket endpoint, empty runs offline on an in-memory store.
	Server      string `yaml:"server"`
	Identity    string `yaml:"identity"`
	DisplayName string `yaml:"display_name"`
	CachePath   string `yaml:"cache_path"`
	Quiet       bool   `yaml:"quiet"`
}

func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServer,
		CachePath: DefaultCachePath,
	}
}

// LoadConfig reads a YAML file over the defaults. A missing file is not an error.
func LoadConfig(path string) (*Config, error) {
	conf := DefaultConfig()
	if path == "" {
		return conf, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return conf, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(b, conf); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return conf, nil
}

func (c *Config) Validate() error {
	if c.Identity == "" {
		return errors.New("identity is required")
	}
	if c.Server != "" && !strings.HasPrefix(c.Server, "ws://") && !strings.HasPrefix(c.Server, "wss://") {
		return fmt.Errorf("server `%s`: expect ws:// or wss:// url", c.Server)
	}
	if c.CachePath == "" {
		return errors.New("cache_path is required")
	}
	return nil
}
