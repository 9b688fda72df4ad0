package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"
)

// Config holds all configuration for the aegis service
type Config struct {
	Storage struct {
		// SQLitePath is the database file path (AEGIS_STORAGE_SQLITE_PATH)
		SQLitePath string `mapstructure:"sqlite_path"`
	} `mapstructure:"storage"`

	Listeners struct {
		JSON struct {
			Host string `mapstructure:"host"`
			Port int    `mapstructure:"port"`
			// RateLimit is events per second across all connections;
			// 0 disables limiting
			RateLimit int `mapstructure:"rate_limit"`
		} `mapstructure:"json"`
	} `mapstructure:"listeners"`

	API struct {
		Host           string   `mapstructure:"host"`
		Port           int      `mapstructure:"port"`
		AllowedOrigins []string `mapstructure:"allowed_origins"`
		RateLimit      struct {
			RequestsPerSecond int `mapstructure:"requests_per_second"`
			Burst             int `mapstructure:"burst"`
		} `mapstructure:"rate_limit"`
	} `mapstructure:"api"`

	Auth struct {
		Enabled  bool   `mapstructure:"enabled"`
		Username string `mapstructure:"username"`
		// Password is hashed at load time and cleared; only HashedPassword
		// is kept in memory.
		Password       string `mapstructure:"password"`
		HashedPassword string `mapstructure:"hashed_password"`
		BcryptCost     int    `mapstructure:"bcrypt_cost"`
	} `mapstructure:"auth"`

	Engine struct {
		WorkerCount     int           `mapstructure:"worker_count"`
		BufferSize      int           `mapstructure:"buffer_size"`
		RefreshInterval time.Duration `mapstructure:"refresh_interval"`
		// CriticalLevel is the event level at or above which a single
		// event is reported without any rule firing
		CriticalLevel int `mapstructure:"critical_level"`
	} `mapstructure:"engine"`

	Notifications struct {
		Email struct {
			Enabled      bool     `mapstructure:"enabled"`
			SMTPHost     string   `mapstructure:"smtp_host"`
			SMTPPort     int      `mapstructure:"smtp_port"`
			SMTPUsername string   `mapstructure:"smtp_username"`
			SMTPPassword string   `mapstructure:"smtp_password"`
			FromAddress  string   `mapstructure:"from_address"`
			ToAddresses  []string `mapstructure:"to_addresses"`
			MinSeverity  string   `mapstructure:"min_severity"`
		} `mapstructure:"email"`
		Webhook struct {
			Enabled     bool              `mapstructure:"enabled"`
			URL         string            `mapstructure:"url"`
			Headers     map[string]string `mapstructure:"headers"`
			MinSeverity string            `mapstructure:"min_severity"`
		} `mapstructure:"webhook"`
	} `mapstructure:"notifications"`
}

// setDefaults sets default configuration values
func setDefaults() {
	viper.SetDefault("storage.sqlite_path", "./data/aegis.db")

	viper.SetDefault("listeners.json.host", "0.0.0.0")
	viper.SetDefault("listeners.json.port", 9200)
	viper.SetDefault("listeners.json.rate_limit", 1000)

	viper.SetDefault("api.host", "0.0.0.0")
	viper.SetDefault("api.port", 8081)
	viper.SetDefault("api.allowed_origins", []string{"http://localhost:3000"})
	viper.SetDefault("api.rate_limit.requests_per_second", 100)
	viper.SetDefault("api.rate_limit.burst", 100)

	viper.SetDefault("auth.enabled", false)
	viper.SetDefault("auth.username", "")
	viper.SetDefault("auth.password", "")
	viper.SetDefault("auth.bcrypt_cost", 10)

	viper.SetDefault("engine.worker_count", 4)
	viper.SetDefault("engine.buffer_size", 1024)
	viper.SetDefault("engine.refresh_interval", 30*time.Second)
	viper.SetDefault("engine.critical_level", 10)

	viper.SetDefault("notifications.email.enabled", false)
	viper.SetDefault("notifications.email.smtp_port", 587)
	viper.SetDefault("notifications.email.min_severity", "high")
	viper.SetDefault("notifications.webhook.enabled", false)
	viper.SetDefault("notifications.webhook.min_severity", "")
}

// loadFromEnv enables AEGIS_* environment variable overrides
func loadFromEnv() {
	viper.SetEnvPrefix("AEGIS")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
}

// validateAndHash validates the loaded config and hashes the auth password.
// The plain password never survives this call.
func validateAndHash(config *Config) error {
	if config.Auth.Enabled && config.Auth.Username == "" {
		return fmt.Errorf("auth.username required when auth is enabled")
	}
	if config.Auth.Enabled && config.Auth.Password == "" && config.Auth.HashedPassword == "" {
		return fmt.Errorf("auth.password required when auth is enabled")
	}

	if config.Auth.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(config.Auth.Password), config.Auth.BcryptCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}
		config.Auth.HashedPassword = string(hashed)
		config.Auth.Password = ""
	}

	if config.Engine.WorkerCount <= 0 {
		return fmt.Errorf("engine.worker_count must be positive")
	}
	if config.Engine.BufferSize <= 0 {
		return fmt.Errorf("engine.buffer_size must be positive")
	}
	if config.API.Port < 1 || config.API.Port > 65535 {
		return fmt.Errorf("invalid api.port: %d", config.API.Port)
	}
	if config.Listeners.JSON.Port < 0 || config.Listeners.JSON.Port > 65535 {
		return fmt.Errorf("invalid listeners.json.port: %d", config.Listeners.JSON.Port)
	}
	return nil
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	setDefaults()
	loadFromEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, defaults and env vars apply.
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validateAndHash(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
