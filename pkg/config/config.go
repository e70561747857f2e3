package config

// Package config provides a reusable loader for meridian configuration
// files and environment variables. It is versioned so that applications
// can depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"meridian/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config mirrors the key table of the node's external configuration
// surface: loaded once at start, with MERIDIAN_-prefixed environment
// variables overriding file values.
type Config struct {
	Consensus struct {
		Engine           string `mapstructure:"engine" json:"engine"` // pow | pos | poa
		PowDifficulty    int    `mapstructure:"pow_difficulty" json:"pow_difficulty"`
		PosMinStake      uint64 `mapstructure:"pos_min_stake" json:"pos_min_stake"`
		PosValidatorCount int   `mapstructure:"pos_validator_count" json:"pos_validator_count"`
	} `mapstructure:"consensus" json:"consensus"`

	Network struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		ListenPort     int      `mapstructure:"listen_port" json:"listen_port"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	} `mapstructure:"network" json:"network"`

	API struct {
		Host string `mapstructure:"host" json:"host"`
		Port int    `mapstructure:"port" json:"port"`
	} `mapstructure:"api" json:"api"`

	Database struct {
		Path string `mapstructure:"path" json:"path"`
	} `mapstructure:"database" json:"database"`

	State struct {
		Accounts map[string]uint64 `mapstructure:"accounts" json:"accounts"`
	} `mapstructure:"state" json:"state"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
	} `mapstructure:"logging" json:"logging"`

	Contract struct {
		Enabled bool `mapstructure:"enabled" json:"enabled"`
	} `mapstructure:"contract" json:"contract"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads the default configuration file and merges any environment
// specific overlay, then lets MERIDIAN_-prefixed environment variables
// override file values. The resulting configuration is stored in AppConfig
// and returned.
func Load(env string) (*Config, error) {
	// .env is optional: a missing file is not an error, it just means no
	// local overrides are present.
	_ = godotenv.Load()

	viper.SetConfigName("default")
	viper.AddConfigPath("config")
	viper.AddConfigPath(".")
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return nil, utils.Wrap(err, "load config")
	}

	if env != "" {
		viper.SetConfigName(env)
		if err := viper.MergeInConfig(); err != nil {
			return nil, utils.Wrap(err, fmt.Sprintf("merge %s config", env))
		}
	}

	viper.SetEnvPrefix("meridian")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the MERIDIAN_ENV environment
// variable to select an overlay (e.g. MERIDIAN_ENV=production).
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("MERIDIAN_ENV", ""))
}
