/**
 * @description
 * This package handles the configuration management for the service. It uses
 * the Viper library to read configuration from environment variables,
 * providing a centralized and straightforward way to manage application
 * settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the payment-service.
// These values are loaded from environment variables. All money thresholds
// are in cents.
type Config struct {
	ServerPort           string `mapstructure:"SERVER_PORT"`
	DatabaseURL          string `mapstructure:"DATABASE_URL"`
	RedisURL             string `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix string `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	RabbitMQURL          string `mapstructure:"RABBITMQ_URL"`

	AuthJWTSecret string `mapstructure:"AUTH_JWT_SECRET"`
	SigningKeyID  string `mapstructure:"SIGNING_KEY_ID"`
	SigningSecret string `mapstructure:"SIGNING_SECRET"`

	RailAPIBaseURL           string  `mapstructure:"RAIL_API_BASE_URL"`
	RailAPIKey               string  `mapstructure:"RAIL_API_KEY"`
	SimulatorFailureRate     float64 `mapstructure:"SIMULATOR_FAILURE_RATE"`
	AsyncCompletionDelaySecs int     `mapstructure:"ASYNC_COMPLETION_DELAY_SECONDS"`

	RuntimeMode string `mapstructure:"RUNTIME_MODE"`

	RequireConfirmationAboveCents int64 `mapstructure:"REQUIRE_CONFIRMATION_ABOVE_CENTS"`
	DailyAutoLimitCents           int64 `mapstructure:"DAILY_AUTO_LIMIT_CENTS"`
	MaxSinglePaymentAutoCents     int64 `mapstructure:"MAX_SINGLE_PAYMENT_AUTO_CENTS"`
	MaxAutoTopUpCents             int64 `mapstructure:"MAX_AUTO_TOPUP_CENTS"`

	ExecuteRateLimitPerMinute int `mapstructure:"EXECUTE_RATE_LIMIT_PER_MINUTE"`

	PendingCompletionSchedule string `mapstructure:"PENDING_COMPLETION_SCHEDULE"`
	IntentExpirySchedule      string `mapstructure:"INTENT_EXPIRY_SCHEDULE"`
	IntentTTLMinutes          int    `mapstructure:"INTENT_TTL_MINUTES"`
	ExecutionTaskBatchSize    int    `mapstructure:"EXECUTION_TASK_BATCH_SIZE"`
}

// LoadConfig reads configuration from environment variables from the given
// path. It uses Viper to automatically bind environment variables to the
// Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "onetap:rate_limit")
	viper.SetDefault("RUNTIME_MODE", "enforced")
	viper.SetDefault("SIMULATOR_FAILURE_RATE", 0.05)
	viper.SetDefault("ASYNC_COMPLETION_DELAY_SECONDS", 3)
	viper.SetDefault("REQUIRE_CONFIRMATION_ABOVE_CENTS", 50000)
	viper.SetDefault("DAILY_AUTO_LIMIT_CENTS", 200000)
	viper.SetDefault("MAX_SINGLE_PAYMENT_AUTO_CENTS", 100000)
	viper.SetDefault("MAX_AUTO_TOPUP_CENTS", 20000)
	viper.SetDefault("EXECUTE_RATE_LIMIT_PER_MINUTE", 10)
	viper.SetDefault("PENDING_COMPLETION_SCHEDULE", "*/5 * * * * *")
	viper.SetDefault("INTENT_EXPIRY_SCHEDULE", "0 * * * * *")
	viper.SetDefault("INTENT_TTL_MINUTES", 30)
	viper.SetDefault("EXECUTION_TASK_BATCH_SIZE", 50)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "PAYMENT_REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("AUTH_JWT_SECRET")
	_ = viper.BindEnv("SIGNING_KEY_ID")
	_ = viper.BindEnv("SIGNING_SECRET", "SIGNING_SECRET", "TRANSACTION_SIGNING_SECRET")
	_ = viper.BindEnv("RAIL_API_BASE_URL")
	_ = viper.BindEnv("RAIL_API_KEY")
	_ = viper.BindEnv("SIMULATOR_FAILURE_RATE")
	_ = viper.BindEnv("ASYNC_COMPLETION_DELAY_SECONDS")
	_ = viper.BindEnv("RUNTIME_MODE")
	_ = viper.BindEnv("REQUIRE_CONFIRMATION_ABOVE_CENTS")
	_ = viper.BindEnv("DAILY_AUTO_LIMIT_CENTS")
	_ = viper.BindEnv("MAX_SINGLE_PAYMENT_AUTO_CENTS")
	_ = viper.BindEnv("MAX_AUTO_TOPUP_CENTS")
	_ = viper.BindEnv("EXECUTE_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("PENDING_COMPLETION_SCHEDULE")
	_ = viper.BindEnv("INTENT_EXPIRY_SCHEDULE")
	_ = viper.BindEnv("INTENT_TTL_MINUTES")
	_ = viper.BindEnv("EXECUTION_TASK_BATCH_SIZE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.SigningSecret) == "" {
		config.SigningSecret = strings.TrimSpace(os.Getenv("TRANSACTION_SIGNING_SECRET"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "onetap:rate_limit"
	}

	config.RuntimeMode = strings.ToLower(strings.TrimSpace(config.RuntimeMode))
	if config.RuntimeMode != "permissive" {
		config.RuntimeMode = "enforced"
	}

	if config.SimulatorFailureRate < 0 || config.SimulatorFailureRate > 1 {
		config.SimulatorFailureRate = 0.05
	}
	if config.IntentTTLMinutes <= 0 {
		config.IntentTTLMinutes = 30
	}

	return
}
