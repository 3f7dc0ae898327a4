package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcncl/jsonflat/internal/models"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".jsonflat.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "sql", cfg.Conversion.Format)
	assert.Empty(t, cfg.Conversion.TableName)
	assert.Equal(t, "postgresql", cfg.Conversion.SQLDialect)
	assert.Equal(t, ",", cfg.Conversion.CSVDelimiter)
	assert.True(t, cfg.Conversion.FlattenNested)
	assert.Equal(t, 50, cfg.Server.TrialLimit)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "sqlite", cfg.Accounts.Driver)
	assert.Empty(t, cfg.Accounts.DSN)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.NoError(t, cfg.Validate())
}

func TestConfig_LoadFromYAML(t *testing.T) {
	yamlContent := `
conversion:
  format: csv
  table_name: events
  sql_dialect: mysql
  csv_delimiter: ";"
  flatten_nested: false
  select: ".items"
  workers: 4
server:
  addr: "127.0.0.1:9000"
  trial_limit: 100
  shutdown_timeout: 2s
accounts:
  driver: postgres
  dsn: "postgres://localhost/jsonflat"
cache:
  enabled: true
  size: 10
  redis_addr: "localhost:6379"
  ttl: 10m
logging:
  level: debug
  format: json
  file: /var/log/jsonflat.log
`
	cfg, err := LoadConfig(writeTempConfig(t, yamlContent))
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Conversion.Format)
	assert.Equal(t, "events", cfg.Conversion.TableName)
	assert.Equal(t, "mysql", cfg.Conversion.SQLDialect)
	assert.Equal(t, ";", cfg.Conversion.CSVDelimiter)
	assert.False(t, cfg.Conversion.FlattenNested)
	assert.Equal(t, ".items", cfg.Conversion.Select)
	assert.Equal(t, 4, cfg.Conversion.Workers)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	assert.Equal(t, 100, cfg.Server.TrialLimit)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, int64(10<<20), cfg.Server.MaxBodyBytes, "unset values keep defaults")
	assert.Equal(t, "postgres", cfg.Accounts.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "localhost:6379", cfg.Cache.RedisAddr)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "/var/log/jsonflat.log", cfg.Logging.FilePath)
}

func TestConfig_LoadNonExistentFile(t *testing.T) {
	_, err := LoadConfig("/non/existent/config.yml")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "no such file or directory")
}

func TestConfig_LoadInvalidYAML(t *testing.T) {
	_, err := LoadConfig(writeTempConfig(t, `
conversion:
  format: [unclosed array
`))
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		errPart string
	}{
		{"bad format", func(c *Config) { c.Conversion.Format = "xml" }, "invalid conversion format"},
		{"bad dialect", func(c *Config) { c.Conversion.SQLDialect = "oracle" }, "invalid sql_dialect"},
		{"empty delimiter", func(c *Config) { c.Conversion.CSVDelimiter = "" }, "invalid csv_delimiter"},
		{"long delimiter", func(c *Config) { c.Conversion.CSVDelimiter = "||" }, "invalid csv_delimiter"},
		{"negative limit", func(c *Config) { c.Server.TrialLimit = -1 }, "invalid trial_limit"},
		{"empty cache", func(c *Config) { c.Cache.Size = 0 }, "invalid cache size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errPart)
		})
	}
}

func TestConfig_InvalidValuesInFile(t *testing.T) {
	_, err := LoadConfig(writeTempConfig(t, "conversion:\n  sql_dialect: oracle\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sql_dialect")
}

func TestConfig_FindConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	nestedDir := filepath.Join(tmpDir, "project", "subdir")
	require.NoError(t, os.MkdirAll(nestedDir, 0o755))

	configPath := filepath.Join(tmpDir, "project", ".jsonflat.yml")
	require.NoError(t, os.WriteFile(configPath, []byte("conversion:\n  table_name: found\n"), 0o644))

	originalWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(originalWd) }()
	require.NoError(t, os.Chdir(nestedDir))

	// Should find it in parent directory
	foundPath := FindConfigFile()
	require.NotEmpty(t, foundPath, "Should find config file")

	cfg, err := LoadConfig(foundPath)
	require.NoError(t, err)
	assert.Equal(t, "found", cfg.Conversion.TableName)
}

func TestConfig_FindConfigFileNotFound(t *testing.T) {
	tmpDir := t.TempDir()

	originalWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(originalWd) }()
	require.NoError(t, os.Chdir(tmpDir))

	assert.Empty(t, FindConfigFile())
}

func TestConfig_Options(t *testing.T) {
	cfg := NewConfig()
	cfg.Conversion.FlattenNested = false
	cfg.Conversion.Select = ".data"

	opts := cfg.Options()
	assert.Equal(t, models.FormatSQL, opts.Format)
	assert.Empty(t, opts.TableName)
	assert.Equal(t, "data_table", opts.WithDefaults().TableName)
	assert.False(t, opts.Flatten())
	assert.Equal(t, ".data", opts.Select)
}

func TestLoadConfigWithPrecedence(t *testing.T) {
	path := writeTempConfig(t, `
conversion:
  format: csv
  table_name: from_file
  csv_delimiter: "|"
`)

	noFlatten := false
	cfg, err := LoadConfigWithCLI(path, CLIOverrides{
		TableName:     "from_cli",
		FlattenNested: &noFlatten,
		Debug:         true,
	})
	require.NoError(t, err)

	assert.Equal(t, "csv", cfg.Conversion.Format, "file value kept")
	assert.Equal(t, "|", cfg.Conversion.CSVDelimiter, "file value kept")
	assert.Equal(t, "from_cli", cfg.Conversion.TableName, "CLI wins")
	assert.False(t, cfg.Conversion.FlattenNested)
	assert.True(t, cfg.Dev.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoadConfigWithPrecedence_NoOverrides(t *testing.T) {
	cfg, err := LoadConfigWithCLI("", CLIOverrides{})
	require.NoError(t, err)
	assert.Equal(t, NewConfig(), cfg)
}

func TestLoadConfigWithCLI_InvalidOverride(t *testing.T) {
	_, err := LoadConfigWithCLI("", CLIOverrides{SQLDialect: "db2"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sql_dialect")
}

func TestConfig_ApplyEnv(t *testing.T) {
	// ApplyEnv also reads .env from the working directory.
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("JSONFLAT_REDIS_ADDR=redis:6379\n"), 0o644))
	originalWd, err := os.Getwd()
	require.NoError(t, err)
	defer func() { _ = os.Chdir(originalWd) }()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Unsetenv("JSONFLAT_REDIS_ADDR") })

	t.Setenv("JSONFLAT_ADDR", ":9999")
	t.Setenv("JSONFLAT_TRIAL_LIMIT", "5")
	t.Setenv("JSONFLAT_DB_DSN", "file:accounts.db")
	t.Setenv("JSONFLAT_CACHE", "off")
	t.Setenv("JSONFLAT_CACHE_SIZE", "not-a-number")
	t.Setenv("LOG_LEVEL", "warn")

	cfg := NewConfig()
	cfg.ApplyEnv()

	assert.Equal(t, ":9999", cfg.Server.Addr)
	assert.Equal(t, 5, cfg.Server.TrialLimit)
	assert.Equal(t, "file:accounts.db", cfg.Accounts.DSN)
	assert.Equal(t, "sqlite", cfg.Accounts.Driver)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 256, cfg.Cache.Size, "unparsable values are ignored")
	assert.Equal(t, "warn", cfg.Logging.Level)
	assert.Equal(t, "redis:6379", cfg.Cache.RedisAddr)
}
