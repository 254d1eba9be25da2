package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// #region types

// Config is the reasoner's file configuration (reasoner.yaml).
type Config struct {
	Sessions  SessionsConfig  `yaml:"sessions"`
	Store     StoreConfig     `yaml:"store"`
	Rules     RulesConfig     `yaml:"rules"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// SessionsConfig locates the durable session graphs.
type SessionsConfig struct {
	Dir     string `yaml:"dir"`
	Workers int    `yaml:"workers"` // sessions reasoned in parallel by batch commands
}

// StoreConfig configures the SQLite audit log. An empty path disables it.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// RulesConfig selects the rule table.
type RulesConfig struct {
	Path      string `yaml:"path"`       // empty: embedded table
	MaxPasses int    `yaml:"max_passes"` // 0: bound declared by the table
	Watch     bool   `yaml:"watch"`
}

// ExtractorConfig points at the gRPC extraction service.
type ExtractorConfig struct {
	Address string `yaml:"address"`
	Timeout string `yaml:"timeout"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `yaml:"address"`
}

// LoggingConfig selects the zap preset.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, console
}

// #endregion types

// #region defaults

// Default returns a configuration with every value set.
func Default() *Config {
	return &Config{
		Sessions: SessionsConfig{
			Dir:     "sessions",
			Workers: 4,
		},
		Store: StoreConfig{
			DatabasePath: "reasoner.db",
		},
		Extractor: ExtractorConfig{
			Address: "localhost:50051",
			Timeout: "10s",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// #endregion defaults

// #region load

// Load reads a YAML file over the defaults, then applies environment
// overrides. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("REASONER_SESSION_DIR"); v != "" {
		c.Sessions.Dir = v
	}
	if v := os.Getenv("REASONER_DB"); v != "" {
		c.Store.DatabasePath = v
	}
	if v := os.Getenv("REASONER_RULES"); v != "" {
		c.Rules.Path = v
	}
	if v := os.Getenv("REASONER_EXTRACTOR_ADDR"); v != "" {
		c.Extractor.Address = v
	}
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	if c.Sessions.Dir == "" {
		return fmt.Errorf("config: sessions.dir is required")
	}
	if c.Sessions.Workers < 1 {
		return fmt.Errorf("config: sessions.workers must be at least 1, got %d", c.Sessions.Workers)
	}
	if c.Rules.MaxPasses < 0 {
		return fmt.Errorf("config: rules.max_passes must not be negative")
	}
	if c.Rules.Watch && c.Rules.Path == "" {
		return fmt.Errorf("config: rules.watch needs rules.path")
	}
	if c.Rules.Watch && c.Rules.MaxPasses != 0 {
		return fmt.Errorf("config: rules.max_passes cannot be combined with rules.watch")
	}
	if _, err := time.ParseDuration(c.Extractor.Timeout); c.Extractor.Timeout != "" && err != nil {
		return fmt.Errorf("config: extractor.timeout: %w", err)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("config: logging.format must be json or console, got %q", c.Logging.Format)
	}
	return nil
}

// #endregion load

// ExtractorTimeout returns the extractor deadline; zero when unset.
func (c *Config) ExtractorTimeout() time.Duration {
	d, err := time.ParseDuration(c.Extractor.Timeout)
	if err != nil {
		return 0
	}
	return d
}
