package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"github.com/vidinfra/entitle/internal/types"
)

type Configuration struct {
	Deployment   DeploymentConfig   `validate:"required"`
	Server       ServerConfig       `validate:"required"`
	Logging      LoggingConfig      `validate:"required"`
	Postgres     PostgresConfig     `validate:"required"`
	Kafka        KafkaConfig        `mapstructure:"kafka"`
	Scheduler    SchedulerConfig    `mapstructure:"scheduler"`
	Notification NotificationConfig `mapstructure:"notification"`
	Catalog      CatalogConfig      `mapstructure:"catalog"`
	Sentry       SentryConfig       `mapstructure:"sentry"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type KafkaConfig struct {
	Brokers       []string
	ConsumerGroup string
	Topic         string
	UseSASL       bool
	SASLMechanism string
	SASLUser      string
	SASLPassword  string
	ClientID      string
}

// SchedulerConfig carries the operational parameters for the durable
// time-triggered delivery of entitlement events
type SchedulerConfig struct {
	// ProcessingOff disables event claiming entirely, leaving due events ready
	ProcessingOff bool `mapstructure:"processing_off"`
	// PollInterval is how long the scheduler sleeps between claim passes
	PollInterval time.Duration `mapstructure:"poll_interval"`
	// MaxReadyEvents caps the number of events claimed per pass
	MaxReadyEvents int `mapstructure:"max_ready_events"`
	// ClaimLease is how long a claimed event stays invisible to other workers
	ClaimLease time.Duration `mapstructure:"claim_lease"`
	// Workers is the number of concurrent reaction workers per pass
	Workers int `mapstructure:"workers"`
}

// NotificationConfig configures the transition announcement bus
type NotificationConfig struct {
	PubSub          types.PubSubType `mapstructure:"pubsub"`
	Topic           string           `mapstructure:"topic"`
	MaxRetries      int              `mapstructure:"max_retries"`
	InitialInterval time.Duration    `mapstructure:"initial_interval"`
	MaxInterval     time.Duration    `mapstructure:"max_interval"`
	Multiplier      float64          `mapstructure:"multiplier"`
	MaxElapsedTime  time.Duration    `mapstructure:"max_elapsed_time"`
}

// CatalogConfig points at the plan catalog definition consumed by the aligner
type CatalogConfig struct {
	Path string `mapstructure:"path"`
}

type SentryConfig struct {
	Enabled     bool    `mapstructure:"enabled"`
	DSN         string  `mapstructure:"dsn"`
	Environment string  `mapstructure:"environment"`
	SampleRate  float64 `mapstructure:"sample_rate"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/entitle")

	// Set up environment variables support
	v.SetEnvPrefix("ENTITLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("Error reading config file: %v\n", err)
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Configuration) applyDefaults() {
	if c.Scheduler.PollInterval <= 0 {
		c.Scheduler.PollInterval = 3 * time.Second
	}
	if c.Scheduler.MaxReadyEvents <= 0 {
		c.Scheduler.MaxReadyEvents = 100
	}
	if c.Scheduler.ClaimLease <= 0 {
		c.Scheduler.ClaimLease = 5 * time.Minute
	}
	if c.Scheduler.Workers <= 0 {
		c.Scheduler.Workers = 4
	}
	if c.Notification.PubSub == "" {
		c.Notification.PubSub = types.MemoryPubSub
	}
	if c.Notification.Topic == "" {
		c.Notification.Topic = "subscription.transitions"
	}
	if c.Notification.MaxRetries <= 0 {
		c.Notification.MaxRetries = 3
	}
	if c.Notification.InitialInterval <= 0 {
		c.Notification.InitialInterval = time.Second
	}
	if c.Notification.MaxInterval <= 0 {
		c.Notification.MaxInterval = 30 * time.Second
	}
	if c.Notification.Multiplier <= 0 {
		c.Notification.Multiplier = 2
	}
	if c.Notification.MaxElapsedTime <= 0 {
		c.Notification.MaxElapsedTime = 2 * time.Minute
	}
}

func (c Configuration) Validate() error {
	validate := validator.New()
	return validate.Struct(c)
}

// GetDefaultConfig returns a default configuration for local development
// This is useful for running scripts or other non-web applications
func GetDefaultConfig() *Configuration {
	cfg := &Configuration{
		Deployment: DeploymentConfig{Mode: types.ModeLocal},
		Logging:    LoggingConfig{Level: types.LogLevelDebug},
	}
	cfg.applyDefaults()
	return cfg
}
