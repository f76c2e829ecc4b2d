package main

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds the defaults of the command.
// Values come from the TOML file, then CABFILE_* environment variables,
// then command line flags, each overriding the previous.
type Config struct {
	Engine          string `toml:"engine"`
	Encoding        string `toml:"encoding"`
	ContinueOnError bool   `toml:"continue-on-error"`
}

// loadConfig reads the config file at path, or at $CABFILE_CONFIG when path is empty.
// No file at all is not an error.
func loadConfig(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CABFILE_CONFIG")
	}

	var cfg Config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse error in %s: %w", path, err)
		}
	}

	if v := os.Getenv("CABFILE_ENGINE"); v != "" {
		cfg.Engine = v
	}
	if v := os.Getenv("CABFILE_ENCODING"); v != "" {
		cfg.Encoding = v
	}

	return &cfg, nil
}
