package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "UNARCHIVE"
	fileName  = "unarchive"

	DefaultLogLevel = "warn"
)

// Config holds settings shared by every command. Values come from flags bound to v,
// UNARCHIVE_* environment variables and an optional unarchive.yaml, in that order.
type Config struct {
	LogLevel    string `mapstructure:"log_level"`
	Concurrency int    `mapstructure:"concurrency"`
	// DefaultMode is used for requests that leave mode empty.
	DefaultMode string `mapstructure:"default_mode"`
}

// Load reads file when set, otherwise looks for unarchive.yaml in the working directory
// and ~/.config/unarchive. A missing default file is not an error.
func Load(v *viper.Viper, file string) (*Config, error) {
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("concurrency", runtime.GOMAXPROCS(0))
	v.SetDefault("default_mode", "")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", fileName))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "could not read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "could not decode config")
	}

	if cfg.Concurrency < 1 {
		return nil, errors.Errorf("concurrency must be 1 or greater, got %d", cfg.Concurrency)
	}

	return &cfg, nil
}
