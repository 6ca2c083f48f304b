// Package config loads the command line tool's settings.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/miladsoleymani/topicmux/core"
	"github.com/miladsoleymani/topicmux/transport"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "TOPICMUX"

// Config holds the settings loaded from flags, environment, .env files and
// an optional YAML file.
type Config struct {
	ServerAddress string         `mapstructure:"server_address"`
	Transport     string         `mapstructure:"transport"`
	EndpointPath  string         `mapstructure:"endpoint_path"`
	Brokers       []string       `mapstructure:"brokers"`
	Group         string         `mapstructure:"group"`
	LogLevel      string         `mapstructure:"log_level"`
	Quiet         bool           `mapstructure:"quiet"`
	Extra         map[string]any `mapstructure:"extra"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

// SetDefaults registers the default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server_address", "http://localhost:8080")
	v.SetDefault("transport", "stomp")
	v.SetDefault("endpoint_path", core.DefaultEndpointPath)
	v.SetDefault("brokers", []string{})
	v.SetDefault("group", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("quiet", false)
}

// Load reads configuration in order of precedence:
// 1. Values already bound on v (command-line flags)
// 2. Environment variables (TOPICMUX_SERVER_ADDRESS, ...)
// 3. .env and .env.local files
// 4. file, when non-empty
// 5. Defaults
func Load(v *viper.Viper, file string) (*Config, error) {
	loadEnvFiles()

	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	return &cfg, nil
}

// Validate reports missing or inconsistent settings.
func (c *Config) Validate() error {
	var errs []error
	if c.ServerAddress == "" {
		errs = append(errs, errors.New("server_address is required"))
	}
	if c.Transport == "" {
		errs = append(errs, errors.New("transport is required"))
	}
	if c.Transport == "kafka" && len(c.Brokers) == 0 {
		errs = append(errs, fmt.Errorf("brokers are required for transport %q", c.Transport))
	}
	return errors.Join(errs...)
}

// TransportConfig converts the settings into a transport.Config.
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		Addresses: c.Brokers,
		Group:     c.Group,
		Extra:     c.Extra,
	}
}

// loadEnvFiles loads environment variables from .env files.
// .env.local overrides .env.
func loadEnvFiles() {
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}
}
