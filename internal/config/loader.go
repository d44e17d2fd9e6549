package config

import (
	"fmt"
	"os"
	"os/user"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// envBindings maps config keys to the libpq environment variables that
// override them.
var envBindings = map[string]string{
	"connection.host":             "PGHOST",
	"connection.port":             "PGPORT",
	"connection.user":             "PGUSER",
	"connection.password":         "PGPASSWORD",
	"connection.database":         "PGDATABASE",
	"connection.application_name": "PGAPPNAME",
	"connection.sslmode":          "PGSSLMODE",
	"connection.connect_timeout":  "PGCONNECT_TIMEOUT",
}

// Load reads configuration from the specified YAML file, if any, layered
// over the defaults and under the PG* environment variables.
// An empty configPath skips the file.
func Load(configPath string) (*Config, error) {
	v := newViper()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")

		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	return LoadFromViper(v)
}

// LoadFromViper creates a Config from an existing Viper instance.
// Useful for testing or when Viper is configured externally.
func LoadFromViper(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	substituteEnvVars(cfg)

	return cfg, nil
}

// newViper returns a Viper instance with every default registered and the
// PG* variables bound.
func newViper() *viper.Viper {
	v := viper.New()

	def := DefaultConfig()
	v.SetDefault("connection.host", def.Connection.Host)
	v.SetDefault("connection.port", def.Connection.Port)
	v.SetDefault("connection.user", def.Connection.User)
	v.SetDefault("connection.password", def.Connection.Password)
	v.SetDefault("connection.database", def.Connection.Database)
	v.SetDefault("connection.application_name", def.Connection.ApplicationName)
	v.SetDefault("connection.sslmode", def.Connection.SSLMode)
	v.SetDefault("connection.connect_timeout", def.Connection.ConnectTimeout)
	v.SetDefault("snapshot.flavor", def.Snapshot.Flavor)
	v.SetDefault("snapshot.timeout_seconds", def.Snapshot.TimeoutSeconds)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)

	for key, env := range envBindings {
		_ = v.BindEnv(key, env)
	}

	return v
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment variable values.
func substituteEnvVars(cfg *Config) {
	cfg.Connection.Host = expandEnvVar(cfg.Connection.Host)
	cfg.Connection.User = expandEnvVar(cfg.Connection.User)
	cfg.Connection.Password = expandEnvVar(cfg.Connection.Password)
	cfg.Connection.Database = expandEnvVar(cfg.Connection.Database)

	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}

		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		// Return original if env var not found
		return match
	})
}

// currentUser is swapped out in tests.
var currentUser = func() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

// ResolveDefaults falls back to the OS user when no source names one. The
// database is left empty so that it can follow a user set later by the
// connection string.
func (c *Config) ResolveDefaults() {
	if c.Connection.User == "" {
		c.Connection.User = currentUser()
	}
}

// ApplyOverrides applies CLI flag overrides to the configuration.
// Only non-zero/non-empty values are applied.
func (c *Config) ApplyOverrides(logLevel, logFormat, flavor string, timeoutSeconds int) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if flavor != "" {
		c.Snapshot.Flavor = flavor
	}
	if timeoutSeconds > 0 {
		c.Snapshot.TimeoutSeconds = timeoutSeconds
	}
}
