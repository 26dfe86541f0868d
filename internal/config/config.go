// Package config loads segreader settings from a YAML file, SEGREADER_*
// environment variables and built-in defaults, in that order of precedence
// below command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"segreader/internal/chunk/file"
	"segreader/internal/logging"
	"segreader/internal/vault"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"
)

const (
	configName = ".segreader"
	configType = "yaml"
	envPrefix  = "SEGREADER"
)

const (
	DefaultDir             = "./chunks"
	DefaultLogLevel        = "info"
	DefaultLogFormat       = "text"
	DefaultConcurrency     = 0
	DefaultCacheTTL        = 10 * time.Minute
	DefaultCleanupInterval = time.Minute
	DefaultCompression     = "none"
	DefaultFileMode        = "0644"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	// Dir is the vault directory holding one subdirectory per chunk.
	Dir string `mapstructure:"dir"`

	// Concurrency bounds parallel chunk opens. Zero means GOMAXPROCS.
	Concurrency int `mapstructure:"concurrency"`

	Log       LogConfig       `mapstructure:"log"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Write     WriteConfig     `mapstructure:"write"`
	Retention RetentionConfig `mapstructure:"retention"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CacheConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RetentionConfig drives the prune command. Zero values disable a limit.
type RetentionConfig struct {
	MaxAge time.Duration `mapstructure:"max_age"`
	// MaxBytes is a human-readable size such as "512MB" or "2GiB".
	MaxBytes  string `mapstructure:"max_bytes"`
	MaxChunks int    `mapstructure:"max_chunks"`
}

type WriteConfig struct {
	Compression string `mapstructure:"compression"`
	// FileMode is an octal permission string such as "0644".
	FileMode string `mapstructure:"file_mode"`
	// MaxRecords and MaxBytes cut the input into several chunks. Zero
	// (or an empty MaxBytes) disables the limit.
	MaxRecords uint64 `mapstructure:"max_records"`
	MaxBytes   string `mapstructure:"max_bytes"`
}

// Load reads the config. An explicit path must exist; otherwise
// .segreader.yaml is looked up in the working directory and then $HOME, and
// a missing file leaves the defaults in place.
func Load(path string) (*Config, error) {
	v := viper.New()
	applyDefaults(v)

	v.SetConfigType(configType)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func applyDefaults(v *viper.Viper) {
	v.SetDefault("dir", DefaultDir)
	v.SetDefault("concurrency", DefaultConcurrency)
	v.SetDefault("log.level", DefaultLogLevel)
	v.SetDefault("log.format", DefaultLogFormat)
	v.SetDefault("cache.ttl", DefaultCacheTTL)
	v.SetDefault("cache.cleanup_interval", DefaultCleanupInterval)
	v.SetDefault("write.compression", DefaultCompression)
	v.SetDefault("write.file_mode", DefaultFileMode)
	v.SetDefault("write.max_records", 0)
	v.SetDefault("write.max_bytes", "")
	v.SetDefault("retention.max_age", time.Duration(0))
	v.SetDefault("retention.max_bytes", "")
	v.SetDefault("retention.max_chunks", 0)
}

func (c *Config) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("%w: dir must not be empty", ErrInvalidConfig)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("%w: concurrency must be >= 0, got %d", ErrInvalidConfig, c.Concurrency)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	if c.Cache.TTL < 0 || c.Cache.CleanupInterval < 0 {
		return fmt.Errorf("%w: cache durations must not be negative", ErrInvalidConfig)
	}
	if _, err := file.ParseCompression(c.Write.Compression); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Write.Mode(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if _, err := c.Write.Rotation(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Retention.MaxAge < 0 || c.Retention.MaxChunks < 0 {
		return fmt.Errorf("%w: retention limits must not be negative", ErrInvalidConfig)
	}
	if _, err := c.Retention.Policy(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Policy combines the configured limits. With no limit set it selects
// nothing.
func (r RetentionConfig) Policy() (vault.Policy, error) {
	var maxBytes uint64
	if r.MaxBytes != "" {
		n, err := humanize.ParseBytes(r.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("retention max_bytes: %w", err)
		}
		maxBytes = n
	}
	return vault.Union(
		vault.MaxAge(r.MaxAge),
		vault.MaxBytes(int64(maxBytes)),
		vault.MaxChunks(r.MaxChunks),
	), nil
}

// Options converts the write settings for file.Write.
func (w WriteConfig) Options() (file.Options, error) {
	comp, err := file.ParseCompression(w.Compression)
	if err != nil {
		return file.Options{}, err
	}
	mode, err := w.Mode()
	if err != nil {
		return file.Options{}, err
	}
	return file.Options{FileMode: mode, Compression: comp}, nil
}

// Rotation returns the policy that splits written input into chunks.
func (w WriteConfig) Rotation() (file.RotationPolicy, error) {
	var maxBytes uint64
	if w.MaxBytes != "" {
		n, err := humanize.ParseBytes(w.MaxBytes)
		if err != nil {
			return nil, fmt.Errorf("write max_bytes: %w", err)
		}
		maxBytes = n
	}
	return file.AnyOf(file.MaxRecords(w.MaxRecords), file.MaxBytes(int64(maxBytes))), nil
}

func (w WriteConfig) Mode() (os.FileMode, error) {
	m, err := strconv.ParseUint(w.FileMode, 8, 32)
	if err != nil || m > 0o777 {
		return 0, fmt.Errorf("file mode %q is not an octal permission", w.FileMode)
	}
	return os.FileMode(m), nil
}
