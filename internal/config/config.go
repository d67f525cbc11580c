// Package config loads the YAML configuration file and applies environment
// variable overrides for credentials and paths.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the fund-order engine.
type Config struct {
	Storage   Storage         `yaml:"storage"`
	Vendor    Vendor          `yaml:"vendor"`
	Market    Market          `yaml:"market"`
	Transport TransportConfig `yaml:"transport"`
	Portal    PortalConfig    `yaml:"portal"`
	Clients   Clients         `yaml:"clients"`
	Logging   Logging         `yaml:"logging"`
}

// Clients points at the exported client master data this engine consumes.
type Clients struct {
	BankFile string `yaml:"bank_file"`
}

// Storage holds paths for data persistence.
type Storage struct {
	DataDir    string `yaml:"data_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// Vendor holds credentials and endpoints for the order gateway. Live selects
// the production endpoints; when false, generated order references carry the
// test-environment date prefix.
type Vendor struct {
	Live      bool   `yaml:"live"`
	UserID    string `yaml:"user_id"`
	MemberID  string `yaml:"member_id"`
	Password  string `yaml:"password"`
	PassKey   string `yaml:"pass_key"`
	OrderURL  string `yaml:"order_url"`
	UploadURL string `yaml:"upload_url"`
	EUIN      string `yaml:"euin"`
}

// Market configures the trading-calendar resolver.
type Market struct {
	CalendarPath string `yaml:"calendar_path"`
	Timezone     string `yaml:"timezone"` // defaults to Asia/Kolkata
}

// TransportConfig bounds collaborator round trips: a per-call timeout plus a
// small retry budget applied to transport failures only.
type TransportConfig struct {
	TimeoutSec  int `yaml:"timeout_sec"`
	MaxAttempts int `yaml:"max_attempts"`
	BackoffMS   int `yaml:"backoff_ms"`
}

// PortalConfig configures the status report source.
type PortalConfig struct {
	ReportDir       string `yaml:"report_dir"`
	RateLimitPerMin int    `yaml:"rate_limit_per_min"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, and then applies environment variable overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)

	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set. Credentials are
// the main use: they should not live in the YAML file on shared machines.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DATA_DIR"); v != "" {
		cfg.Storage.DataDir = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}

	if v := os.Getenv("VENDOR_USER_ID"); v != "" {
		cfg.Vendor.UserID = v
	}
	if v := os.Getenv("VENDOR_MEMBER_ID"); v != "" {
		cfg.Vendor.MemberID = v
	}
	if v := os.Getenv("VENDOR_PASSWORD"); v != "" {
		cfg.Vendor.Password = v
	}
	if v := os.Getenv("VENDOR_PASS_KEY"); v != "" {
		cfg.Vendor.PassKey = v
	}
	if v := os.Getenv("VENDOR_LIVE"); v != "" {
		if live, err := strconv.ParseBool(v); err == nil {
			cfg.Vendor.Live = live
		}
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// applyDefaults fills in values that almost never need configuring.
func applyDefaults(cfg *Config) {
	if cfg.Market.Timezone == "" {
		cfg.Market.Timezone = "Asia/Kolkata"
	}
	if cfg.Transport.TimeoutSec == 0 {
		cfg.Transport.TimeoutSec = 30
	}
	if cfg.Transport.MaxAttempts == 0 {
		cfg.Transport.MaxAttempts = 3
	}
	if cfg.Transport.BackoffMS == 0 {
		cfg.Transport.BackoffMS = 500
	}
	if cfg.Portal.RateLimitPerMin == 0 {
		cfg.Portal.RateLimitPerMin = 30
	}
}
