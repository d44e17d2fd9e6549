// Package config provides configuration structures and loading for waitforgraph.
package config

// Config represents the complete application configuration.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" mapstructure:"connection"`
	Snapshot   SnapshotConfig   `yaml:"snapshot" mapstructure:"snapshot"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// ConnectionConfig represents a PostgreSQL/Greenplum connection.
type ConnectionConfig struct {
	Host            string `yaml:"host" mapstructure:"host"`
	Port            int    `yaml:"port" mapstructure:"port"`
	User            string `yaml:"user" mapstructure:"user"`
	Password        string `yaml:"password" mapstructure:"password"`
	Database        string `yaml:"database" mapstructure:"database"`
	ApplicationName string `yaml:"application_name" mapstructure:"application_name"`
	SSLMode         string `yaml:"sslmode" mapstructure:"sslmode"`                 // disable, require, verify-ca, verify-full
	ConnectTimeout  int    `yaml:"connect_timeout" mapstructure:"connect_timeout"` // seconds, 0 = driver default
}

// SnapshotConfig controls how the pg_locks snapshot is taken.
type SnapshotConfig struct {
	Flavor         string `yaml:"flavor" mapstructure:"flavor"`                   // auto, greenplum, postgres
	TimeoutSeconds int    `yaml:"timeout_seconds" mapstructure:"timeout_seconds"` // bound on the snapshot query
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// Supported snapshot flavors.
const (
	FlavorAuto      = "auto"
	FlavorGreenplum = "greenplum"
	FlavorPostgres  = "postgres"
)

// Connection defaults used when neither the connection string, the
// environment nor the config file provide a value.
const (
	DefaultHost            = "127.0.0.1"
	DefaultPort            = 5432
	DefaultApplicationName = "waitforgraph"
	DefaultSSLMode         = "disable"
)

// DefaultConfig returns a Config with sensible default values.
// User and Database are left empty; the user is resolved from the OS user
// at load time and the database follows the user when the connection is
// parsed.
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Host:            DefaultHost,
			Port:            DefaultPort,
			ApplicationName: DefaultApplicationName,
			SSLMode:         DefaultSSLMode,
		},
		Snapshot: SnapshotConfig{
			Flavor:         FlavorAuto,
			TimeoutSeconds: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}
