package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	v *viper.Viper
}

// New creates a new configuration instance
func New() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/mail-classifier/")
	v.AddConfigPath("$HOME/.mail-classifier")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")

	// Set defaults
	setDefaults(v)

	// Environment variables
	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_CLASSIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults
	}

	return &Config{v: v}, nil
}

// NewFromFile creates a configuration instance from an explicitly named
// config file. Unlike New, a missing file is an error here.
func NewFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	setDefaults(v)

	v.AutomaticEnv()
	v.SetEnvPrefix("MAIL_CLASSIFIER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return &Config{v: v}, nil
}

// NewFromViper creates a new configuration instance from an existing Viper instance
func NewFromViper(v *viper.Viper) *Config {
	return &Config{v: v}
}

// NewEmptyViper creates a new Viper instance with defaults
func NewEmptyViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

// setDefaults sets the default configuration values
func setDefaults(v *viper.Viper) {
	// Classifier defaults
	v.SetDefault("classifier.variant", "bayes")
	v.SetDefault("classifier.combiner", "robinson-fisher")
	v.SetDefault("classifier.predictors", 41)
	v.SetDefault("classifier.min_observations", 5)
	v.SetDefault("classifier.min_prob", 0.01)
	v.SetDefault("classifier.max_prob", 0.99)
	v.SetDefault("classifier.score_delay", 1)
	v.SetDefault("classifier.ignored_tokens", []string{})
	v.SetDefault("classifier.bias", map[string]float64{})
	v.SetDefault("classifier.workers", 0)

	// Server defaults
	v.SetDefault("server.filter_type", "smtp")
	v.SetDefault("server.listen_address", "0.0.0.0:10025")
	v.SetDefault("server.threshold", 0.9)
	v.SetDefault("server.reject_categories", []string{})
	v.SetDefault("server.whitelisted_domains", []string{})
	v.SetDefault("server.headers.category", "X-Classifier-Category")
	v.SetDefault("server.headers.score", "X-Classifier-Score")
	v.SetDefault("server.upstream.address", "127.0.0.1")
	v.SetDefault("server.upstream.port", 10026)
	v.SetDefault("server.upstream.enabled", true)

	// CLI defaults
	v.SetDefault("cli.verbose", false)

	// Store defaults
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.sqlite_path", "/data/mail_classifier.db")
	v.SetDefault("store.mysql_dsn", "user:password@tcp(localhost:3306)/mail_classifier")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// GetString gets a string value from the configuration
func (c *Config) GetString(key string) string {
	return c.v.GetString(key)
}

// GetInt gets an integer value from the configuration
func (c *Config) GetInt(key string) int {
	return c.v.GetInt(key)
}

// GetUint64 gets an unsigned integer value from the configuration
func (c *Config) GetUint64(key string) uint64 {
	return c.v.GetUint64(key)
}

// GetFloat64 gets a float64 value from the configuration
func (c *Config) GetFloat64(key string) float64 {
	return c.v.GetFloat64(key)
}

// GetBool gets a boolean value from the configuration
func (c *Config) GetBool(key string) bool {
	return c.v.GetBool(key)
}

// GetStringSlice gets a string slice value from the configuration
func (c *Config) GetStringSlice(key string) []string {
	return c.v.GetStringSlice(key)
}

// GetViper returns the underlying Viper instance
func (c *Config) GetViper() *viper.Viper {
	return c.v
}
