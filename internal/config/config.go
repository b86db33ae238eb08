package config

import (
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Feed     FeedConfig     `mapstructure:"feed"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Callers  []CallerConfig `mapstructure:"callers"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// Frozen boots the gateway with settlement halted; an operator unfreezes
	// over the admin API once ready.
	Frozen bool `mapstructure:"frozen"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type AuthConfig struct {
	RequireAPIKey bool   `mapstructure:"require_api_key"`
	AdminKey      string `mapstructure:"admin_key"`
}

type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db"`
	ReplayTTLSeconds      int    `mapstructure:"replay_ttl_seconds"`
	IdempotencyTTLSeconds int    `mapstructure:"idempotency_ttl_seconds"`
}

type ChainConfig struct {
	RPCURL         string `mapstructure:"rpc_url"`
	ProbeTimeoutMs int    `mapstructure:"probe_timeout_ms"`
	ProbeRetries   int    `mapstructure:"probe_retries"`
}

// FeedConfig describes the attested price feed domain. ChainID binds packet
// signatures to one deployment so a packet signed for another network never
// verifies here.
type FeedConfig struct {
	ChainID int64 `mapstructure:"chain_id"`
}

type EngineConfig struct {
	OperatorWallet      string       `mapstructure:"operator_wallet"`
	ProtocolFeeBps      uint64       `mapstructure:"protocol_fee_bps"`
	PayoutSplitBps      uint64       `mapstructure:"payout_split_bps"`
	PrimaryFeeWallet    string       `mapstructure:"primary_fee_wallet"`
	SecondaryFeeWallet  string       `mapstructure:"secondary_fee_wallet"`
	MaxBatchLegs        int          `mapstructure:"max_batch_legs"`
	OverageThresholdWei string       `mapstructure:"overage_threshold_wei"`
	WhitelistEnabled    bool         `mapstructure:"whitelist_enabled"`
	Whitelist           []string     `mapstructure:"whitelist"`
	TrustedSigners      []string     `mapstructure:"trusted_signers"`
	Tiers               []TierConfig `mapstructure:"tiers"`
}

type TierConfig struct {
	ID          uint8  `mapstructure:"id"`
	DiscountBps uint64 `mapstructure:"discount_bps"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// CallerConfig maps a gateway API key to the taker address it acts for.
type CallerConfig struct {
	APIKey  string  `mapstructure:"api_key"`
	Address string  `mapstructure:"address"`
	QPS     float64 `mapstructure:"qps"`
	Burst   int     `mapstructure:"burst"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./configs")

	// Environment variables support
	// e.g. DUSTGATE_ENGINE_PROTOCOL_FEE_BPS
	viper.SetEnvPrefix("dustgate")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Defaults
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.frozen", false)
	viper.SetDefault("log.level", "info")
	viper.SetDefault("auth.require_api_key", false)
	viper.SetDefault("auth.admin_key", "")
	viper.SetDefault("redis.replay_ttl_seconds", 3600)
	viper.SetDefault("redis.idempotency_ttl_seconds", 86400)
	viper.SetDefault("chain.probe_timeout_ms", 5000)
	viper.SetDefault("chain.probe_retries", 1)
	viper.SetDefault("feed.chain_id", 137)
	viper.SetDefault("engine.protocol_fee_bps", 200)
	viper.SetDefault("engine.payout_split_bps", 5000)
	viper.SetDefault("engine.max_batch_legs", 100)
	viper.SetDefault("engine.overage_threshold_wei", "1000000000000")
	viper.SetDefault("engine.whitelist_enabled", false)
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.path", "/metrics")

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Println("No config file found, using defaults and env vars")
		} else {
			return nil, err
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
