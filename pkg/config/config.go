package config

import (
	"log"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	App         AppConfig         `mapstructure:"app"`
	DB          DBConfig          `mapstructure:"db"`
	Redis       RedisConfig       `mapstructure:"redis"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Chain       ChainConfig       `mapstructure:"chain"`
	Marketplace MarketplaceConfig `mapstructure:"marketplace"`
	Fees        FeesConfig        `mapstructure:"fees"`
	Settlement  SettlementConfig  `mapstructure:"settlement"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	HttpPort string `mapstructure:"http_port"`
	LogLevel string `mapstructure:"log_level"` // 为空时按 env 取默认
	// CORSOrigins 浏览器端 dApp 的来源白名单，为空不启用
	CORSOrigins []string `mapstructure:"cors_origins"`
}

type DBConfig struct {
	Driver      string `mapstructure:"driver"` // "memory" or "postgres"
	Host        string `mapstructure:"host"`
	Port        string `mapstructure:"port"`
	User        string `mapstructure:"user"`
	Password    string `mapstructure:"password"`
	Name        string `mapstructure:"name"`
	AutoMigrate bool   `mapstructure:"auto_migrate"`
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	MQType   string `mapstructure:"mq_type"` // "redis" or "kafka"
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
}

// ChainConfig 链上只读依赖 (质押合约)
type ChainConfig struct {
	RpcUrl          string        `mapstructure:"rpc_url"`
	StakingContract string        `mapstructure:"staking_contract"`
	StakingCacheTTL time.Duration `mapstructure:"staking_cache_ttl"`
}

type MarketplaceConfig struct {
	// Address 市场自身的收款账户，relay 付款先进入这里再分账
	Address      string        `mapstructure:"address"`
	FeeRecipient string        `mapstructure:"fee_recipient"`
	ReplayGrace  time.Duration `mapstructure:"replay_grace"`
	Minters      []MinterGrant `mapstructure:"minters"`
	// PaymentAssets 进程内账本模式下注册的支付代币地址
	PaymentAssets []string `mapstructure:"payment_assets"`
	// Relayers API Key -> relayer 地址，relayer 身份只从 key 推导
	Relayers   []RelayerKey `mapstructure:"relayers"`
	AdminToken string       `mapstructure:"admin_token"`
}

type RelayerKey struct {
	Key     string `mapstructure:"key"`
	Address string `mapstructure:"address"`
}

type MinterGrant struct {
	Collection string `mapstructure:"collection"`
	Account    string `mapstructure:"account"`
}

type FeesConfig struct {
	Tiers []FeeTierConfig `mapstructure:"tiers"`
}

// FeeTierConfig minimum_stake 以代币单位 (18 位小数) 配置, 例如 "1000"
type FeeTierConfig struct {
	MinimumStake      string `mapstructure:"minimum_stake"`
	MarketplaceFeeBps uint32 `mapstructure:"marketplace_fee_bps"`
	MintFeeBps        uint32 `mapstructure:"mint_fee_bps"`
}

type SettlementConfig struct {
	SweepSpec         string        `mapstructure:"sweep_spec"`
	BatchSize         int           `mapstructure:"batch_size"`
	LockTTL           time.Duration `mapstructure:"lock_ttl"`
	WorkerConcurrency int           `mapstructure:"worker_concurrency"`
}

var Global Config

func Init() {
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yaml")   // REQUIRED if the config file does not have the extension in the name
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	// 环境变量设置
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 设置默认值
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			log.Printf("Warning: Config file not found, using defaults and environment variables")
		} else {
			log.Fatalf("Fatal error config file: %s \n", err)
		}
	}

	if err := viper.Unmarshal(&Global); err != nil {
		log.Fatalf("Unable to decode into struct, %v", err)
	}

	log.Printf("Configuration loaded successfully. Env: %s", Global.App.Env)
}

func setDefaults() {
	viper.SetDefault("app.env", "development")
	viper.SetDefault("app.http_port", "8080")

	viper.SetDefault("db.driver", "memory")
	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.user", "marketplace_user")
	viper.SetDefault("db.password", "marketplace_password")
	viper.SetDefault("db.name", "marketplace_db")
	viper.SetDefault("db.auto_migrate", false)

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.mq_type", "redis")

	viper.SetDefault("kafka.brokers", []string{"localhost:9092"})

	viper.SetDefault("chain.staking_cache_ttl", 30*time.Second)

	viper.SetDefault("marketplace.address", "0x000000000000000000000000000000000000bEEF")
	viper.SetDefault("marketplace.fee_recipient", "0x000000000000000000000000000000000000FeE5")
	viper.SetDefault("marketplace.replay_grace", time.Hour)

	// 默认费率表，与部署脚本里的基础费率一致: 市场 2.5%, 铸造 1%
	viper.SetDefault("fees.tiers", []map[string]interface{}{
		{"minimum_stake": "0", "marketplace_fee_bps": 250, "mint_fee_bps": 100},
		{"minimum_stake": "1000", "marketplace_fee_bps": 200, "mint_fee_bps": 75},
		{"minimum_stake": "10000", "marketplace_fee_bps": 150, "mint_fee_bps": 50},
		{"minimum_stake": "100000", "marketplace_fee_bps": 100, "mint_fee_bps": 25},
	})

	viper.SetDefault("settlement.sweep_spec", "@every 1m")
	viper.SetDefault("settlement.batch_size", 100)
	viper.SetDefault("settlement.lock_ttl", 30*time.Second)
	viper.SetDefault("settlement.worker_concurrency", 10)
}
