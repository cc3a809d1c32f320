// Package config loads the identity store's own configuration: the
// configuration root directory, cache sizing, and the source of the
// master-key root secret. Loaded from flags, environment, and an optional
// TOML/YAML file via spf13/viper, validated with go-playground/validator/v10
// struct tags before use, the way LeeDigitalWorks-zapfs/pkg/iam/iam_config.go
// and marmos91-dittofs's config loader both do.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the identity store's top-level configuration.
type Config struct {
	// Root is the configuration root directory under which accounts/ and
	// access_keys/ live. Load does not require it: callers may set it
	// afterwards (the reconcile command applies --root / IDENTITYSTORE_ROOT)
	// and reject an empty value themselves.
	Root string `mapstructure:"root"`

	// MasterKeySecretEnv names the environment variable holding the root
	// secret the reference master-key manager derives its rotating key ring
	// from. The variable's bytes are used as-is (see MasterKeySecret).
	MasterKeySecretEnv string `mapstructure:"master_key_secret_env" validate:"required"`

	// CacheMaxItems is the configured size bound for the in-process
	// access-key cache. It is loaded and validated only:
	// identitystore.NewCacheInvalidator does not read it and builds its
	// cache with a fixed bound of 10000 entries.
	CacheMaxItems int `mapstructure:"cache_max_items" validate:"gte=0"`

	// CacheTTL is the configured entry lifetime for the in-process
	// access-key cache. Like CacheMaxItems it is not passed on:
	// identitystore.NewCacheInvalidator uses a fixed 5-minute expiry.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Defaults applied before flags/env/file overrides are read.
const (
	DefaultMasterKeySecretEnv = "IDENTITYSTORE_MASTER_KEY_SECRET"
	DefaultCacheMaxItems      = 10000
	DefaultCacheTTL           = 5 * time.Minute
)

// Load reads configuration from configPath (if non-empty), environment
// variables prefixed IDENTITYSTORE_, and finally the viper defaults below,
// then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("identitystore")
	v.AutomaticEnv()

	v.SetDefault("master_key_secret_env", DefaultMasterKeySecretEnv)
	v.SetDefault("cache_max_items", DefaultCacheMaxItems)
	v.SetDefault("cache_ttl", DefaultCacheTTL)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %q: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	return &cfg, nil
}

// MasterKeySecret reads the hex-free raw bytes of the root secret named by
// cfg.MasterKeySecretEnv. The environment variable is expected to hold at
// least 32 bytes of raw entropy; callers that need hex decoding do it
// themselves, matching how operators usually mint this value (openssl rand
// -hex 32).
func (c *Config) MasterKeySecret() ([]byte, error) {
	val := os.Getenv(c.MasterKeySecretEnv)
	if val == "" {
		return nil, fmt.Errorf("config: environment variable %q is not set", c.MasterKeySecretEnv)
	}
	return []byte(val), nil
}
