package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/samvad-hq/samvad-feign-proxy/pkg/codec"
	"github.com/samvad-hq/samvad-feign-proxy/pkg/registry"
)

// DefaultBasePackage scopes the scan to this module.
const DefaultBasePackage = "github.com/samvad-hq/samvad-feign-proxy"

// Config holds the application configuration loaded from files and environment variables.
type Config struct {
	AppName     string `mapstructure:"app_name"`
	Env         string `mapstructure:"app_env"`
	LogLevel    string `mapstructure:"log_level"`
	BasePackage string `mapstructure:"base_package"`
	ScanPolicy  string `mapstructure:"scan_policy"`
	ClientsFile string `mapstructure:"clients_file"`
	MetricsAddr string `mapstructure:"metrics_addr"`

	DefaultFormat       string        `mapstructure:"default_format"`
	HTTPTimeoutSeconds  int64         `mapstructure:"http_timeout_seconds"`
	HTTPTimeout         time.Duration `mapstructure:"-"`
	DescriptorCacheSize int           `mapstructure:"descriptor_cache_size"`

	Policy registry.MatchPolicy `mapstructure:"-"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"base-package": "base_package",
	"scan-policy":  "scan_policy",
	"clients-file": "clients_file",
	"log-level":    "log_level",
	"metrics-addr": "metrics_addr",
}

// Load reads configuration from environment variables and config files.
// Flags present in flags and changed by the user take precedence.
func Load(flags *pflag.FlagSet) (*Config, error) {
	_ = godotenv.Load("configs/.env")

	v := viper.New()

	v.SetDefault("app_name", "samvad-feign-proxy")
	v.SetDefault("app_env", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("base_package", DefaultBasePackage)
	v.SetDefault("scan_policy", string(registry.MatchSegment))
	v.SetDefault("clients_file", "./configs/clients.yaml")
	v.SetDefault("metrics_addr", "")
	v.SetDefault("default_format", codec.FormatJSON)
	v.SetDefault("http_timeout_seconds", 30)
	v.SetDefault("descriptor_cache_size", 256)

	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) validate() error {
	cfg.BasePackage = strings.TrimSpace(cfg.BasePackage)
	cfg.ClientsFile = strings.TrimSpace(cfg.ClientsFile)
	cfg.DefaultFormat = strings.ToLower(strings.TrimSpace(cfg.DefaultFormat))

	policy, err := registry.ParseMatchPolicy(cfg.ScanPolicy)
	if err != nil {
		return fmt.Errorf("invalid scan_policy: %w", err)
	}
	cfg.Policy = policy
	cfg.ScanPolicy = string(policy)

	if policy == registry.MatchExact && cfg.BasePackage == "" {
		return fmt.Errorf("invalid base_package (required with the exact scan policy)")
	}
	if _, ok := codec.DefaultFormats().Lookup(cfg.DefaultFormat); !ok {
		return fmt.Errorf("invalid default_format %q (expected one of %v)", cfg.DefaultFormat, codec.DefaultFormats().Names())
	}

	if cfg.HTTPTimeoutSeconds <= 0 {
		return fmt.Errorf("invalid http_timeout_seconds (must be positive seconds)")
	}
	cfg.HTTPTimeout = time.Duration(cfg.HTTPTimeoutSeconds) * time.Second

	if cfg.DescriptorCacheSize <= 0 {
		return fmt.Errorf("invalid descriptor_cache_size (must be positive)")
	}
	return nil
}
