// Package config provides Viper-based configuration loading for the enclave engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds PostgreSQL connection settings for the match journal.
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

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// EngineConfig carries the tunable balance constants consumed by turn resolution.
type EngineConfig struct {
	// AttackRate is the share of an origin's forces committed by an attack order.
	AttackRate float64 `mapstructure:"attack_rate"`
	// SupplyCap is the maximum force count any enclave may hold.
	SupplyCap int `mapstructure:"supply_cap"`
	// AssistMultiplier is the share of an origin's forces sent by an assist order.
	AssistMultiplier float64 `mapstructure:"assist_multiplier"`
	// HoldReinforcement is the flat reinforcement granted to an enclave without orders.
	HoldReinforcement int `mapstructure:"hold_reinforcement"`
	// TurnDuration is the host timer interval between automatic resolutions.
	TurnDuration time.Duration `mapstructure:"turn_duration"`
	// HazardChance is the per-turn probability of an ambient hazard spawning.
	HazardChance float64 `mapstructure:"hazard_chance"`
	// DangerThreshold is the ally force count below which the AI considers assisting.
	DangerThreshold int `mapstructure:"danger_threshold"`
	// AssistMinForces is the minimum origin force count for an AI assist.
	AssistMinForces int `mapstructure:"assist_min_forces"`
	// AIFaction names the faction driven by the decision engine: "A" or "B".
	AIFaction string `mapstructure:"ai_faction"`
	// Seed seeds the engine RNG. 0 draws a seed from crypto/rand at startup.
	Seed uint64 `mapstructure:"seed"`
}

// JournalConfig toggles the PostgreSQL match journal.
type JournalConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// ContentConfig locates the data files loaded at startup.
type ContentConfig struct {
	// Scenario is the path to the world graph YAML produced by world generation.
	Scenario string `mapstructure:"scenario"`
	// HazardsDir holds one YAML file per hazard profile.
	HazardsDir string `mapstructure:"hazards_dir"`
	// ScriptsDir holds Lua hook scripts for hazard profiles. Empty disables scripting.
	ScriptsDir string `mapstructure:"scripts_dir"`
}

// Config is the top-level application configuration.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Engine   EngineConfig   `mapstructure:"engine"`
	Database DatabaseConfig `mapstructure:"database"`
	Journal  JournalConfig  `mapstructure:"journal"`
	Content  ContentConfig  `mapstructure:"content"`
}

// DefaultEngine returns the engine tunables used when no configuration overrides them.
//
// Postcondition: DefaultEngine().Validate() == nil.
func DefaultEngine() EngineConfig {
	return EngineConfig{
		AttackRate:        0.5,
		SupplyCap:         100,
		AssistMultiplier:  0.25,
		HoldReinforcement: 2,
		TurnDuration:      10 * time.Second,
		HazardChance:      0.05,
		DangerThreshold:   5,
		AssistMinForces:   5,
		AIFaction:         "B",
	}
}

// Validate checks engine invariants.
//
// Postcondition: Returns nil if every tunable is in range.
func (e EngineConfig) Validate() error {
	var errs []string
	if e.AttackRate <= 0 || e.AttackRate > 1 {
		errs = append(errs, fmt.Sprintf("engine.attack_rate must be in (0, 1], got %v", e.AttackRate))
	}
	if e.SupplyCap < 1 {
		errs = append(errs, fmt.Sprintf("engine.supply_cap must be >= 1, got %d", e.SupplyCap))
	}
	if e.AssistMultiplier <= 0 || e.AssistMultiplier > 1 {
		errs = append(errs, fmt.Sprintf("engine.assist_multiplier must be in (0, 1], got %v", e.AssistMultiplier))
	}
	if e.HoldReinforcement < 0 {
		errs = append(errs, fmt.Sprintf("engine.hold_reinforcement must be >= 0, got %d", e.HoldReinforcement))
	}
	if e.TurnDuration < 0 {
		errs = append(errs, "engine.turn_duration must not be negative")
	}
	if e.HazardChance < 0 || e.HazardChance > 1 {
		errs = append(errs, fmt.Sprintf("engine.hazard_chance must be in [0, 1], got %v", e.HazardChance))
	}
	if e.DangerThreshold < 0 {
		errs = append(errs, fmt.Sprintf("engine.danger_threshold must be >= 0, got %d", e.DangerThreshold))
	}
	if e.AssistMinForces < 0 {
		errs = append(errs, fmt.Sprintf("engine.assist_min_forces must be >= 0, got %d", e.AssistMinForces))
	}
	if e.AIFaction != "A" && e.AIFaction != "B" {
		errs = append(errs, fmt.Sprintf("engine.ai_faction must be one of [A, B], got %q", e.AIFaction))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	if c.Journal.Enabled {
		if err := validateDatabase(c.Database); err != nil {
			errs = append(errs, err.Error())
		}
	}
	if err := validateContent(c.Content); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
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

func validateContent(c ContentConfig) error {
	if c.Scenario == "" {
		return errors.New("content.scenario must not be empty")
	}
	if c.HazardsDir == "" {
		return errors.New("content.hazards_dir must not be empty")
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

	// Environment variable overrides with ENCLAVES_ prefix
	v.SetEnvPrefix("ENCLAVES")
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

func setDefaults(v *viper.Viper) {
	def := DefaultEngine()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("engine.attack_rate", def.AttackRate)
	v.SetDefault("engine.supply_cap", def.SupplyCap)
	v.SetDefault("engine.assist_multiplier", def.AssistMultiplier)
	v.SetDefault("engine.hold_reinforcement", def.HoldReinforcement)
	v.SetDefault("engine.turn_duration", "10s")
	v.SetDefault("engine.hazard_chance", def.HazardChance)
	v.SetDefault("engine.danger_threshold", def.DangerThreshold)
	v.SetDefault("engine.assist_min_forces", def.AssistMinForces)
	v.SetDefault("engine.ai_faction", def.AIFaction)
	v.SetDefault("engine.seed", 0)

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "enclaves")
	v.SetDefault("database.password", "enclaves")
	v.SetDefault("database.name", "enclaves")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.min_conns", 1)
	v.SetDefault("database.max_conn_lifetime", "1h")

	v.SetDefault("journal.enabled", false)

	v.SetDefault("content.scenario", "content/scenarios/twin_rivers.yaml")
	v.SetDefault("content.hazards_dir", "content/hazards")
	v.SetDefault("content.scripts_dir", "content/scripts/hazards")
}
