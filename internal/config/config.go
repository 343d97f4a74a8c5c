// Package config provides Viper-based configuration loading for the encounter engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
	StoreRedis    = "redis"
)

// Collaborator backends for the character and location services.
const (
	CollaboratorsPostgres = "postgres"
	CollaboratorsNone     = "none"
)

// Notifier backends.
const (
	NotifierLog   = "log"
	NotifierRedis = "redis"
	NotifierNone  = "none"
)

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

// MongoConfig holds MongoDB connection settings.
type MongoConfig struct {
	URI            string        `mapstructure:"uri"`
	Database       string        `mapstructure:"database"`
	Collection     string        `mapstructure:"collection"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	// KeyPrefix namespaces every key the encounter store writes.
	KeyPrefix string `mapstructure:"key_prefix"`
	// EventChannel is the pub/sub channel encounter events are published on.
	EventChannel string `mapstructure:"event_channel"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EncounterConfig holds engine behaviour settings.
type EncounterConfig struct {
	// Store selects the persistence backend: memory, postgres, mongo, or redis.
	Store string `mapstructure:"store"`
	// Notifier selects the event delivery backend: log, redis, or none.
	Notifier string `mapstructure:"notifier"`
	// Collaborators selects where character KO state and location damage
	// live: postgres, or none to skip those lookups and side effects.
	Collaborators string `mapstructure:"collaborators"`
	// MaxAttempts bounds optimistic retries per mutation.
	MaxAttempts int `mapstructure:"max_attempts"`
	// SweepInterval is how often expired encounters are swept.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// SweepConcurrency bounds encounters expired in parallel per sweep.
	SweepConcurrency int `mapstructure:"sweep_concurrency"`
	// SideEffectConcurrency bounds parallel KO calls on failure.
	SideEffectConcurrency int `mapstructure:"side_effect_concurrency"`
	// HighTierMin and HighTierMax bound the monster tiers that damage the home
	// location when an encounter fails. HighTierMin 0 disables location damage.
	HighTierMin int `mapstructure:"high_tier_min"`
	HighTierMax int `mapstructure:"high_tier_max"`
}

// Config is the top-level application configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Encounter EncounterConfig `mapstructure:"encounter"`
}

// Validate checks all configuration invariants. Backend sections are only
// checked when the encounter section selects them.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateEncounter(c.Encounter); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Encounter.Store == StorePostgres || c.Encounter.Collaborators == CollaboratorsPostgres {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Encounter.Store == StoreMongo {
		if err := validateMongo(c.Mongo); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if c.Encounter.Store == StoreRedis || c.Encounter.Notifier == NotifierRedis {
		if err := validateRedis(c.Redis, c.Encounter.Notifier == NotifierRedis); err != nil {
			errs = append(errs, err.Error())
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateEncounter(e EncounterConfig) error {
	var errs []string
	validStores := map[string]bool{StoreMemory: true, StorePostgres: true, StoreMongo: true, StoreRedis: true}
	if !validStores[e.Store] {
		errs = append(errs, fmt.Sprintf("encounter.store must be one of [memory, postgres, mongo, redis], got %q", e.Store))
	}
	validNotifiers := map[string]bool{NotifierLog: true, NotifierRedis: true, NotifierNone: true}
	if !validNotifiers[e.Notifier] {
		errs = append(errs, fmt.Sprintf("encounter.notifier must be one of [log, redis, none], got %q", e.Notifier))
	}
	if e.Collaborators != CollaboratorsPostgres && e.Collaborators != CollaboratorsNone {
		errs = append(errs, fmt.Sprintf("encounter.collaborators must be one of [postgres, none], got %q", e.Collaborators))
	}
	if e.MaxAttempts < 1 {
		errs = append(errs, fmt.Sprintf("encounter.max_attempts must be >= 1, got %d", e.MaxAttempts))
	}
	if e.SweepInterval <= 0 {
		errs = append(errs, "encounter.sweep_interval must be positive")
	}
	if e.SweepConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("encounter.sweep_concurrency must be >= 1, got %d", e.SweepConcurrency))
	}
	if e.SideEffectConcurrency < 1 {
		errs = append(errs, fmt.Sprintf("encounter.side_effect_concurrency must be >= 1, got %d", e.SideEffectConcurrency))
	}
	if e.HighTierMin < 0 {
		errs = append(errs, fmt.Sprintf("encounter.high_tier_min must be >= 0, got %d", e.HighTierMin))
	}
	if e.HighTierMax != 0 && e.HighTierMax < e.HighTierMin {
		errs = append(errs, "encounter.high_tier_max must not be below encounter.high_tier_min")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the database section on its own.
func (d DatabaseConfig) Validate() error {
	return validateDatabase(d)
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

func validateMongo(m MongoConfig) error {
	var errs []string
	if !strings.HasPrefix(m.URI, "mongodb://") && !strings.HasPrefix(m.URI, "mongodb+srv://") {
		errs = append(errs, fmt.Sprintf("mongo.uri must start with mongodb:// or mongodb+srv://, got %q", m.URI))
	}
	if m.Database == "" {
		errs = append(errs, "mongo.database must not be empty")
	}
	if m.Collection == "" {
		errs = append(errs, "mongo.collection must not be empty")
	}
	if m.ConnectTimeout <= 0 {
		errs = append(errs, "mongo.connect_timeout must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRedis(r RedisConfig, needChannel bool) error {
	var errs []string
	if r.Addr == "" {
		errs = append(errs, "redis.addr must not be empty")
	}
	if r.DB < 0 {
		errs = append(errs, fmt.Sprintf("redis.db must be >= 0, got %d", r.DB))
	}
	if needChannel && r.EventChannel == "" {
		errs = append(errs, "redis.event_channel must not be empty when encounter.notifier is redis")
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

	// Environment variable overrides with ENCOUNTER_ prefix
	v.SetEnvPrefix("ENCOUNTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

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
	if v == nil {
		return Config{}, errors.New("viper instance must not be nil")
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers the default value of every setting on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "encounter")
	v.SetDefault("database.password", "encounter")
	v.SetDefault("database.name", "encounter")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017")
	v.SetDefault("mongo.database", "encounter")
	v.SetDefault("mongo.collection", "encounters")
	v.SetDefault("mongo.connect_timeout", "5s")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "encounter")
	v.SetDefault("redis.event_channel", "encounter:events")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("encounter.store", StoreMemory)
	v.SetDefault("encounter.notifier", NotifierLog)
	v.SetDefault("encounter.collaborators", CollaboratorsNone)
	v.SetDefault("encounter.max_attempts", 3)
	v.SetDefault("encounter.sweep_interval", "30s")
	v.SetDefault("encounter.sweep_concurrency", 4)
	v.SetDefault("encounter.side_effect_concurrency", 4)
	v.SetDefault("encounter.high_tier_min", 5)
	v.SetDefault("encounter.high_tier_max", 10)
}
