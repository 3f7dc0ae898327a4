package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/mcncl/jsonflat/internal/dialect"
	"github.com/mcncl/jsonflat/internal/logging"
	"github.com/mcncl/jsonflat/internal/models"
	"github.com/mcncl/jsonflat/internal/quota"
)

// Config represents the complete configuration for jsonflat
type Config struct {
	Conversion ConversionConfig `yaml:"conversion"`
	Server     ServerConfig     `yaml:"server"`
	Accounts   AccountsConfig   `yaml:"accounts"`
	Cache      CacheConfig      `yaml:"cache"`
	Logging    logging.Config   `yaml:"logging"`
	Dev        DevConfig        `yaml:"dev"`
}

// ConversionConfig holds the default conversion options
type ConversionConfig struct {
	Format        string `yaml:"format"`
	TableName     string `yaml:"table_name"`
	SQLDialect    string `yaml:"sql_dialect"`
	CSVDelimiter  string `yaml:"csv_delimiter"`
	FlattenNested bool   `yaml:"flatten_nested"`
	Select        string `yaml:"select"`
	Workers       int    `yaml:"workers"` // batch concurrency, 0 uses the CPU count
}

// ServerConfig controls the HTTP API
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	TrialLimit      int           `yaml:"trial_limit"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// AccountsConfig selects the account database. An empty DSN disables
// premium lookups.
type AccountsConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// CacheConfig controls conversion result caching
type CacheConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Size      int           `yaml:"size"`
	RedisAddr string        `yaml:"redis_addr"`
	TTL       time.Duration `yaml:"ttl"`
}

// DevConfig contains development/debug options
type DevConfig struct {
	Debug   bool `yaml:"debug"`
	Verbose bool `yaml:"verbose"`
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		Conversion: ConversionConfig{
			Format:        string(models.FormatSQL),
			TableName:     "", // derived from the input file name, else data_table
			SQLDialect:    models.DefaultSQLDialect,
			CSVDelimiter:  models.DefaultCSVDelimiter,
			FlattenNested: true,
		},
		Server: ServerConfig{
			Addr:            ":8080",
			TrialLimit:      quota.DefaultTrialLimit,
			MaxBodyBytes:    10 << 20,
			ShutdownTimeout: 5 * time.Second,
		},
		Accounts: AccountsConfig{
			Driver: "sqlite",
		},
		Cache: CacheConfig{
			Enabled: true,
			Size:    256,
			TTL:     time.Hour,
		},
		Logging: logging.DefaultConfig(),
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Start with defaults
	cfg := NewConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// FindConfigFile searches for a config file in current directory and parents
func FindConfigFile() string {
	configNames := []string{".jsonflat.yml", ".jsonflat.yaml", "jsonflat.yml", "jsonflat.yaml"}

	currentDir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		for _, name := range configNames {
			configPath := filepath.Join(currentDir, name)
			if _, err := os.Stat(configPath); err == nil {
				return configPath
			}
		}

		parentDir := filepath.Dir(currentDir)
		if parentDir == currentDir {
			// Reached root directory
			break
		}
		currentDir = parentDir
	}

	return ""
}

// Validate checks values that would otherwise fail deep inside a conversion
func (c *Config) Validate() error {
	switch models.Format(c.Conversion.Format) {
	case models.FormatSQL, models.FormatCSV:
	default:
		return fmt.Errorf("invalid conversion format '%s': expected sql or csv", c.Conversion.Format)
	}
	if !dialect.Parse(c.Conversion.SQLDialect).Known() {
		return fmt.Errorf("invalid sql_dialect '%s': expected mysql, postgresql or sqlite", c.Conversion.SQLDialect)
	}
	if len([]rune(c.Conversion.CSVDelimiter)) != 1 {
		return fmt.Errorf("invalid csv_delimiter '%s': must be a single character", c.Conversion.CSVDelimiter)
	}
	if c.Server.TrialLimit < 0 {
		return fmt.Errorf("invalid trial_limit %d: must not be negative", c.Server.TrialLimit)
	}
	if c.Cache.Enabled && c.Cache.Size <= 0 {
		return fmt.Errorf("invalid cache size %d: must be positive", c.Cache.Size)
	}
	return nil
}

// Options returns the configured conversion defaults as conversion options
func (c *Config) Options() models.Options {
	return models.Options{
		Format:        models.Format(c.Conversion.Format),
		TableName:     c.Conversion.TableName,
		SQLDialect:    c.Conversion.SQLDialect,
		CSVDelimiter:  c.Conversion.CSVDelimiter,
		FlattenNested: models.BoolPtr(c.Conversion.FlattenNested),
		Select:        c.Conversion.Select,
	}
}

// CLIOverrides carries the conversion flags given on the command line.
// Empty strings and nil pointers leave the config value untouched.
type CLIOverrides struct {
	Format        string
	TableName     string
	SQLDialect    string
	CSVDelimiter  string
	FlattenNested *bool
	Select        string
	Debug         bool
}

// LoadConfigWithCLI loads config with CLI argument precedence
func LoadConfigWithCLI(configPath string, cli CLIOverrides) (*Config, error) {
	cfg := NewConfig()

	if configPath != "" {
		fileConfig, err := LoadConfig(configPath)
		if err != nil {
			return nil, err
		}
		cfg = fileConfig
	}

	if cli.Format != "" {
		cfg.Conversion.Format = cli.Format
	}
	if cli.TableName != "" {
		cfg.Conversion.TableName = cli.TableName
	}
	if cli.SQLDialect != "" {
		cfg.Conversion.SQLDialect = cli.SQLDialect
	}
	if cli.CSVDelimiter != "" {
		cfg.Conversion.CSVDelimiter = cli.CSVDelimiter
	}
	if cli.FlattenNested != nil {
		cfg.Conversion.FlattenNested = *cli.FlattenNested
	}
	if cli.Select != "" {
		cfg.Conversion.Select = cli.Select
	}
	if cli.Debug {
		cfg.Dev.Debug = true
		cfg.Logging.Level = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv loads a .env file when present and applies environment
// overrides for the server, account, cache and logging settings.
func (c *Config) ApplyEnv() {
	// A missing .env file is normal.
	_ = godotenv.Load()

	c.Server.Addr = getEnvString("JSONFLAT_ADDR", c.Server.Addr)
	c.Server.TrialLimit = getEnvInt("JSONFLAT_TRIAL_LIMIT", c.Server.TrialLimit)
	c.Accounts.Driver = getEnvString("JSONFLAT_DB_DRIVER", c.Accounts.Driver)
	c.Accounts.DSN = getEnvString("JSONFLAT_DB_DSN", c.Accounts.DSN)
	c.Cache.RedisAddr = getEnvString("JSONFLAT_REDIS_ADDR", c.Cache.RedisAddr)
	c.Cache.Size = getEnvInt("JSONFLAT_CACHE_SIZE", c.Cache.Size)
	c.Cache.Enabled = getEnvBool("JSONFLAT_CACHE", c.Cache.Enabled)
	c.Logging.Level = getEnvString("LOG_LEVEL", c.Logging.Level)
	c.Logging.FilePath = getEnvString("LOG_FILE", c.Logging.FilePath)
}

func getEnvBool(key string, defaultVal bool) bool {
	if v := os.Getenv(key); v != "" {
		switch v {
		case "1", "true", "yes", "on":
			return true
		case "0", "false", "no", "off":
			return false
		}
	}
	return defaultVal
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}
