package config

// Package config provides a reusable loader for vault node configuration
// files and environment variables. It is versioned so that applications can
// depend on a stable API contract.
//
// Version: v0.1.0

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/safevault/node/pkg/utils"
)

// Version is the semantic version of this configuration package.
const Version = "v0.1.0"

// Config represents the unified configuration for a vault node. It mirrors
// the structure of the YAML files Load reads from the config/ directory
// (default.yaml, plus <env>.yaml when an environment name is given).
type Config struct {
	Node struct {
		RootDir   string `mapstructure:"root_dir" json:"root_dir"`
		RewardKey string `mapstructure:"reward_key" json:"reward_key"`
	} `mapstructure:"node" json:"node"`

	Network struct {
		ListenAddr     string   `mapstructure:"listen_addr" json:"listen_addr"`
		BootstrapPeers []string `mapstructure:"bootstrap_peers" json:"bootstrap_peers"`
	} `mapstructure:"network" json:"network"`

	Storage struct {
		MaxCapacityBytes uint64 `mapstructure:"max_capacity_bytes" json:"max_capacity_bytes"`
	} `mapstructure:"storage" json:"storage"`

	Transfers struct {
		GenesisElderCount  int `mapstructure:"genesis_elder_count" json:"genesis_elder_count"`
		BlsThreshold       int `mapstructure:"bls_threshold" json:"bls_threshold"`
		LivenessThreshold  int `mapstructure:"liveness_threshold" json:"liveness_threshold"`
		RequestTimeoutSecs int `mapstructure:"request_timeout_secs" json:"request_timeout_secs"`
	} `mapstructure:"transfers" json:"transfers"`

	Logging struct {
		Level string `mapstructure:"level" json:"level"`
		File  string `mapstructure:"file" json:"file"`
	} `mapstructure:"logging" json:"logging"`
}

// AppConfig holds the configuration loaded via Load or LoadFromEnv.
var AppConfig Config

// Load reads configuration files and merges any environment specific
// overrides. The resulting configuration is stored in AppConfig and returned.
//
// The function uses the provided environment name to merge additional config
// files. If env is empty, only the default configuration is loaded.
func Load(env string) (*Config, error) {
	viper.SetConfigName("default")
	viper.AddConfigPath("config")
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

	viper.AutomaticEnv() // picks up overrides from environment variables

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, utils.Wrap(err, "unmarshal config")
	}
	return &AppConfig, nil
}

// LoadFromEnv loads configuration using the VAULT_ENV environment variable.
func LoadFromEnv() (*Config, error) {
	return Load(utils.EnvOrDefault("VAULT_ENV", ""))
}

// Default returns a Config populated with conservative defaults, used when
// no config file is present (e.g. in tests).
func Default() Config {
	var c Config
	c.Node.RootDir = "./vault-data"
	c.Storage.MaxCapacityBytes = 2 << 30 // 2 GiB
	c.Transfers.GenesisElderCount = 7
	c.Transfers.BlsThreshold = 5
	c.Transfers.LivenessThreshold = 10
	c.Transfers.RequestTimeoutSecs = 30
	c.Logging.Level = "info"
	return c
}
