package config

import (
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/universal-brc20/indexer/common"
	"github.com/universal-brc20/indexer/internal/httpserver"
	brc20config "github.com/universal-brc20/indexer/modules/brc20/config"
	"github.com/universal-brc20/indexer/pkg/logger"
	"github.com/universal-brc20/indexer/pkg/logger/slogx"
)

var (
	configOnce sync.Once
	config     = defaults()
)

type Config struct {
	Logger        logger.Config     `mapstructure:"logger"`
	BitcoinNode   BitcoinNodeClient `mapstructure:"bitcoin_node"`
	Network       common.Network    `mapstructure:"network"`
	APIOnly       bool              `mapstructure:"api_only"`
	EnableModules []string          `mapstructure:"enable_modules"`
	HTTPServer    httpserver.Config `mapstructure:"http_server"`
	Modules       Modules           `mapstructure:"modules"`
}

type BitcoinNodeClient struct {
	Host       string `mapstructure:"host"`
	User       string `mapstructure:"user"`
	Pass       string `mapstructure:"pass"`
	DisableTLS bool   `mapstructure:"disable_tls"`
}

type Modules struct {
	BRC20 brc20config.Config `mapstructure:"brc20"`
}

func defaults() *Config {
	return &Config{
		Logger: logger.Config{
			Output: "text",
		},
		Network:       common.NetworkMainnet,
		EnableModules: []string{"brc20"},
		HTTPServer: httpserver.Config{
			Port: 8080,
		},
	}
}

// BindPFlag binds a cobra/pflag flag to a configuration key. Must be called
// before Parse.
func BindPFlag(key string, flag *pflag.Flag) {
	if err := viper.BindPFlag(key, flag); err != nil {
		logger.Panic("Failed to bind flag to configuration", slogx.String("key", key), slogx.Error(err))
	}
}

// Parse reads the configuration file (if any) and environment variables into
// the process-wide configuration. Subsequent calls return the cached result.
func Parse(configFile string) Config {
	configOnce.Do(func() {
		if configFile != "" {
			viper.SetConfigFile(configFile)
		} else {
			viper.AddConfigPath("./")
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}

		viper.AutomaticEnv()
		viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
		if err := viper.ReadInConfig(); err != nil {
			var errNotFound viper.ConfigFileNotFoundError
			if errors.As(err, &errNotFound) {
				logger.Warn("Config file not found, using defaults", slogx.Error(err))
			} else {
				logger.Panic("Invalid config file", slogx.Error(err))
			}
		}

		if err := viper.Unmarshal(config); err != nil {
			logger.Panic("Failed to unmarshal config", slogx.Error(err))
		}
	})
	return *config
}

// Load returns the parsed configuration. Returns defaults if Parse has not
// been called.
func Load() Config {
	return *config
}
