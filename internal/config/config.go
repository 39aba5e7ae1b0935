package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Redis      RedisConfig      `yaml:"redis"`
	Logging    LoggingConfig    `yaml:"logging"`
	Aggregator AggregatorConfig `yaml:"aggregator"`
}

type ServerConfig struct {
	BindAddr string `yaml:"bindAddr"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
}

// GetDSN builds the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SourceConfig identifies one alertmanager-compatible backend. Token wins
// over user/password when both are set.
type SourceConfig struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"baseURL"`
	Token    string `yaml:"token"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// SiteConfig overrides one entry of the site synonym table.
type SiteConfig struct {
	Name     string   `yaml:"name"`
	Synonyms []string `yaml:"synonyms"`
}

type AggregatorConfig struct {
	PollInterval    string         `yaml:"pollInterval"`    // e.g. "60s"
	RequestTimeout  string         `yaml:"requestTimeout"`  // per backend call
	FetchRetries    int            `yaml:"fetchRetries"`    // extra attempts after the first
	FetchRetryDelay string         `yaml:"fetchRetryDelay"` // fixed inter-attempt delay
	VerifyTLS       bool           `yaml:"verifyTLS"`
	LocalTimezone   string         `yaml:"localTimezone"` // civil zone for report windows
	Sources         []SourceConfig `yaml:"sources"`
	Sites           []SiteConfig   `yaml:"sites"`
}

func (c *AggregatorConfig) GetPollInterval() time.Duration {
	return parseDuration(c.PollInterval, 60*time.Second)
}

func (c *AggregatorConfig) GetRequestTimeout() time.Duration {
	return parseDuration(c.RequestTimeout, 120*time.Second)
}

func (c *AggregatorConfig) GetFetchRetryDelay() time.Duration {
	return parseDuration(c.FetchRetryDelay, 5*time.Second)
}

func Load() (*Config, error) {
	configFile := flag.String("f", "", "Path to configuration file")
	flag.Parse()
	return LoadFrom(*configFile)
}

// LoadFrom builds the config from env defaults, then applies the optional
// YAML file on top.
func LoadFrom(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			BindAddr: getEnv("SERVER_BIND_ADDR", "0.0.0.0:5050"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "password"),
			DBName:   getEnv("DB_NAME", "dcalerts"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Aggregator: AggregatorConfig{
			PollInterval:    getEnv("POLL_INTERVAL", "60s"),
			RequestTimeout:  getEnv("REQUEST_TIMEOUT", "120s"),
			FetchRetries:    getEnvInt("FETCH_RETRIES", 3),
			FetchRetryDelay: getEnv("FETCH_RETRY_DELAY", "5s"),
			VerifyTLS:       getEnv("VERIFY_TLS", "") == "true",
			LocalTimezone:   getEnv("LOCAL_TZ", "Asia/Tehran"),
		},
	}

	if path != "" {
		if err := loadFromFile(cfg, path); err != nil {
			log.Err(err)
			return nil, err
		}
	}

	// fill reasonable defaults when fields omitted in file
	if cfg.Server.BindAddr == "" {
		cfg.Server.BindAddr = "0.0.0.0:5050"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Aggregator.PollInterval == "" {
		cfg.Aggregator.PollInterval = "60s"
	}
	if cfg.Aggregator.RequestTimeout == "" {
		cfg.Aggregator.RequestTimeout = "120s"
	}
	if cfg.Aggregator.FetchRetryDelay == "" {
		cfg.Aggregator.FetchRetryDelay = "5s"
	}
	if cfg.Aggregator.LocalTimezone == "" {
		cfg.Aggregator.LocalTimezone = "Asia/Tehran"
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Server.BindAddr == "" {
		return fmt.Errorf("server bind address is required")
	}
	if _, err := time.ParseDuration(cfg.Aggregator.PollInterval); err != nil {
		return fmt.Errorf("invalid poll interval: %w", err)
	}
	if _, err := time.LoadLocation(cfg.Aggregator.LocalTimezone); err != nil {
		return fmt.Errorf("invalid local timezone: %w", err)
	}
	seen := map[string]bool{}
	for _, s := range cfg.Aggregator.Sources {
		if s.Name == "" || s.BaseURL == "" {
			return fmt.Errorf("source entries require name and baseURL")
		}
		if seen[s.Name] {
			return fmt.Errorf("duplicate source name: %s", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

func loadFromFile(cfg *Config, filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filePath, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filePath, err)
	}
	return nil
}

func parseDuration(s string, d time.Duration) time.Duration {
	if s == "" {
		return d
	}
	if v, err := time.ParseDuration(s); err == nil {
		return v
	}
	log.Warn().Str("value", s).Msg("invalid duration, using default")
	return d
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
