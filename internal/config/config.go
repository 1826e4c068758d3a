package config

import (
	"fmt"
	"time"

	"github.com/relaymsg/gateway/internal/dedup"
	"github.com/relaymsg/gateway/pkg/mq"
	"github.com/relaymsg/gateway/pkg/mysql"
	"github.com/relaymsg/gateway/pkg/provider"
	"github.com/spf13/viper"
)

type Config struct {
	Environment string           `mapstructure:"environment"`
	API         API              `mapstructure:"api"`
	Database    mysql.Config     `mapstructure:"database"`
	RabbitMQ    mq.Config        `mapstructure:"rabbitmq"`
	Redis       dedup.Config     `mapstructure:"redis"`
	Providers   Providers        `mapstructure:"providers"`
	Scheduler   Scheduler        `mapstructure:"scheduler"`
	MockServer  MockServerConfig `mapstructure:"mock_server"`
}

type API struct {
	Port string `mapstructure:"port"`
}

type Providers struct {
	Timeout  time.Duration    `mapstructure:"timeout"`
	MaxRetry int              `mapstructure:"max_retry"`
	Entries  []provider.Entry `mapstructure:"entries"`
}

type Scheduler struct {
	Interval  time.Duration `mapstructure:"interval"`
	BatchSize int           `mapstructure:"batch_size"`
}

type MockServerConfig struct {
	Port        string        `mapstructure:"port"`
	FailureRate float64       `mapstructure:"failure_rate"`
	LatencyMin  time.Duration `mapstructure:"latency_min"`
	LatencyMax  time.Duration `mapstructure:"latency_max"`
}

func Load() (cfg *Config, err error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yml")
	viper.AddConfigPath("./config")

	err = viper.ReadInConfig()
	if err != nil {
		return cfg, fmt.Errorf("failed to load config: %w", err)
	}

	err = viper.Unmarshal(&cfg)
	if err != nil {
		return nil, err
	}

	if len(cfg.Providers.Entries) == 0 {
		cfg.Providers.Entries = provider.DefaultEntries(cfg.Environment)
	}

	return cfg, nil
}
