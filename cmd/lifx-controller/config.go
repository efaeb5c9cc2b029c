package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/okabe-project/lifx-go/pkg/session"
)

// Duration wraps time.Duration so YAML configs can use strings like
// "750ms" or "2s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config holds the controller configuration. Values from the file are
// overridden by command-line flags.
type Config struct {
	BindAddress  string   `yaml:"bind_address"`
	Timeout      Duration `yaml:"timeout"`
	MaxRetries   int      `yaml:"max_retries"`
	SettleWindow Duration `yaml:"settle_window"`
	ProtocolLog  string   `yaml:"protocol_log"`
	LogLevel     string   `yaml:"log_level"`
}

func defaultConfig() Config {
	sc := session.DefaultConfig()
	return Config{
		BindAddress:  sc.BindAddress,
		Timeout:      Duration(sc.Timeout),
		MaxRetries:   sc.MaxRetries,
		SettleWindow: Duration(sc.SettleWindow),
		LogLevel:     "info",
	}
}

// loadConfig reads the YAML configuration file at path on top of the
// defaults. An empty path returns the defaults.
func loadConfig(path string) (Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("cannot read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("cannot parse config file: %w", err)
	}
	return cfg, nil
}

func (c Config) sessionConfig() session.Config {
	return session.Config{
		BindAddress:  c.BindAddress,
		Timeout:      time.Duration(c.Timeout),
		MaxRetries:   c.MaxRetries,
		SettleWindow: time.Duration(c.SettleWindow),
	}
}
