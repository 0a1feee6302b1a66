package config

import (
	"log"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Business BusinessConfig `mapstructure:"business"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	TransactionCompleted string `mapstructure:"transaction_completed"`
	SubscriptionLapsed   string `mapstructure:"subscription_lapsed"`
}

type BusinessConfig struct {
	PlatformCard        string  `mapstructure:"platform_card"`
	SubscriptionPrice   float64 `mapstructure:"subscription_price"`
	RateLimitPerMinute  int64   `mapstructure:"rate_limit_per_minute"`
	IdempotencyTTLHours int     `mapstructure:"idempotency_ttl_hours"`
	RenewalHour         int     `mapstructure:"renewal_hour"`
	RenewalBatchSize    int     `mapstructure:"renewal_batch_size"`
	CardExpiryDays      int     `mapstructure:"card_expiry_days"`
	CardRenewalDays     int     `mapstructure:"card_renewal_days"`
	MaxCardsPerUser     int64   `mapstructure:"max_cards_per_user"`
	MaxRetryCount       int     `mapstructure:"max_retry_count"`
}

// Price is the subscription price as fixed-point money.
func (b *BusinessConfig) Price() decimal.Decimal {
	return decimal.NewFromFloat(b.SubscriptionPrice).Round(2)
}

func (b *BusinessConfig) IdempotencyTTL() time.Duration {
	return time.Duration(b.IdempotencyTTLHours) * time.Hour
}

// LoadConfig reads and parses the yaml configuration. The result is handed
// to constructors explicitly; there is no package-level config state.
func LoadConfig(configPath string) *Config {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		log.Fatalf("read config file: %v", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		log.Fatalf("parse config file: %v", err)
	}

	return config
}
