// Package config provides Viper-based configuration loading for the powers server.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Storage drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// StorageConfig selects the durable selection backend.
type StorageConfig struct {
	// Driver is one of "file", "sqlite" or "postgres".
	Driver string `mapstructure:"driver"`
	// Path is the data file for the file and sqlite drivers.
	Path string `mapstructure:"path"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Name            string        `mapstructure:"name"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// Migrations is the directory holding the schema migrations.
	Migrations string `mapstructure:"migrations"`
	// AutoMigrate applies pending migrations when the server starts.
	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
//
// Precondition: Host, Port, User, and Name must be non-empty.
// Postcondition: Returns a valid PostgreSQL DSN string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, d.SSLMode,
	)
}

// EncryptionConfig controls encryption of the persisted power field.
type EncryptionConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// MasterPassword is the passphrase the key is derived from. When Enabled
	// is set and this is empty, one is generated and written back.
	MasterPassword string `mapstructure:"master_password"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// MaintenanceConfig holds tick scheduling settings.
type MaintenanceConfig struct {
	// TickInterval is the wall-clock length of one tick.
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// FlightCheckTicks is the period of the flight reconciliation pass.
	FlightCheckTicks int `mapstructure:"flight_check_ticks"`
	// SelectionCooldown feeds selection.Record.CanChange for status output.
	SelectionCooldown time.Duration `mapstructure:"selection_cooldown"`
}

// GameServerConfig holds gRPC listener settings.
type GameServerConfig struct {
	// GRPCHost is the bind address for the gRPC service.
	GRPCHost string `mapstructure:"grpc_host"`
	// GRPCPort is the TCP port for the gRPC service.
	GRPCPort int `mapstructure:"grpc_port"`
}

// Addr returns the "host:port" gRPC address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (g GameServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", g.GRPCHost, g.GRPCPort)
}

// AdminConfig holds credentials for privileged operations.
type AdminConfig struct {
	// TokenHash is the bcrypt hash of the admin bearer token. Empty disables
	// privileged RPCs.
	TokenHash string `mapstructure:"token_hash"`
}

// ScriptingConfig controls per-power Lua hooks.
type ScriptingConfig struct {
	// Dir holds <power id>.lua scripts. Empty disables scripting.
	Dir string `mapstructure:"dir"`
	// InstructionLimit bounds each hook call.
	InstructionLimit int `mapstructure:"instruction_limit"`
}

// CatalogConfig locates operator-supplied power definitions.
type CatalogConfig struct {
	// Dir holds extra *.yaml definition tables. Empty means built-ins only.
	Dir string `mapstructure:"dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging     LoggingConfig     `mapstructure:"logging"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Encryption  EncryptionConfig  `mapstructure:"encryption"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	GameServer  GameServerConfig  `mapstructure:"gameserver"`
	Admin       AdminConfig       `mapstructure:"admin"`
	Scripting   ScriptingConfig   `mapstructure:"scripting"`
	Catalog     CatalogConfig     `mapstructure:"catalog"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateStorage(c.Storage); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Storage.Driver == DriverPostgres {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateMaintenance(c.Maintenance); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGameServer(c.GameServer); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Scripting.Dir != "" && c.Scripting.InstructionLimit < 1 {
		errs = append(errs, fmt.Sprintf("scripting.instruction_limit must be >= 1, got %d", c.Scripting.InstructionLimit))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateStorage(s StorageConfig) error {
	switch s.Driver {
	case DriverFile, DriverSQLite:
		if s.Path == "" {
			return fmt.Errorf("storage.path must not be empty for driver %q", s.Driver)
		}
		return nil
	case DriverPostgres:
		return nil
	}
	return fmt.Errorf("storage.driver must be one of [file, sqlite, postgres], got %q", s.Driver)
}

func validateDatabase(d DatabaseConfig) error {
	var errs []string
	if d.Host == "" {
		errs = append(errs, "database.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", d.Port))
	}
	if d.User == "" {
		errs = append(errs, "database.user must not be empty")
	}
	if d.Name == "" {
		errs = append(errs, "database.name must not be empty")
	}
	validSSL := map[string]bool{"disable": true, "require": true, "verify-ca": true, "verify-full": true}
	if !validSSL[d.SSLMode] {
		errs = append(errs, fmt.Sprintf("database.sslmode must be one of [disable, require, verify-ca, verify-full], got %q", d.SSLMode))
	}
	if d.MaxConns < 1 {
		errs = append(errs, fmt.Sprintf("database.max_conns must be >= 1, got %d", d.MaxConns))
	}
	if d.MinConns < 0 {
		errs = append(errs, fmt.Sprintf("database.min_conns must be >= 0, got %d", d.MinConns))
	}
	if d.MinConns > d.MaxConns {
		errs = append(errs, "database.min_conns must not exceed database.max_conns")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateMaintenance(m MaintenanceConfig) error {
	var errs []string
	if m.TickInterval <= 0 {
		errs = append(errs, "maintenance.tick_interval must be positive")
	}
	if m.FlightCheckTicks < 1 {
		errs = append(errs, fmt.Sprintf("maintenance.flight_check_ticks must be >= 1, got %d", m.FlightCheckTicks))
	}
	if m.SelectionCooldown < 0 {
		errs = append(errs, "maintenance.selection_cooldown must not be negative")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func validateGameServer(g GameServerConfig) error {
	var errs []string
	if g.GRPCHost == "" {
		errs = append(errs, "gameserver.grpc_host must not be empty")
	}
	if g.GRPCPort < 1 || g.GRPCPort > 65535 {
		errs = append(errs, fmt.Sprintf("gameserver.grpc_port must be 1-65535, got %d", g.GRPCPort))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with POWERS_ prefix
	v.SetEnvPrefix("POWERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns a viper instance holding only the default values.
func Defaults() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.path", "data/playerdata.yml")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "powers")
	v.SetDefault("database.password", "powers")
	v.SetDefault("database.name", "powers")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.migrations", "migrations")
	v.SetDefault("database.auto_migrate", false)

	v.SetDefault("encryption.enabled", false)
	v.SetDefault("encryption.master_password", "")

	v.SetDefault("maintenance.tick_interval", "50ms")
	v.SetDefault("maintenance.flight_check_ticks", 100)
	v.SetDefault("maintenance.selection_cooldown", "24h")

	v.SetDefault("gameserver.grpc_host", "127.0.0.1")
	v.SetDefault("gameserver.grpc_port", 50051)

	v.SetDefault("admin.token_hash", "")

	v.SetDefault("scripting.dir", "")
	v.SetDefault("scripting.instruction_limit", 100000)

	v.SetDefault("catalog.dir", "")
}
