package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full server configuration.
type Config struct {
	Environment string            `mapstructure:"environment"`
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Guidelines  GuidelineConfig   `mapstructure:"guidelines"`
	Scoring     ScoringConfig     `mapstructure:"scoring"`
	Confidence  ConfidenceConfig  `mapstructure:"confidence"`
	Learning    LearningConfig    `mapstructure:"learning"`
	Calibration CalibrationConfig `mapstructure:"calibration"`
	Store       StoreConfig       `mapstructure:"store"`
	Cache       CacheConfig       `mapstructure:"cache"`
	Pipeline    PipelineConfig    `mapstructure:"pipeline"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GuidelineConfig struct {
	// SnapshotPath points at a JSON export of the guideline ETL. Empty
	// means use the builtin tables.
	SnapshotPath string `mapstructure:"snapshot_path"`

	// Population selects the frequency table (EUR, EAS, AFR).
	Population string `mapstructure:"population"`
}

// ScoringConfig holds the risk-score composite parameters.
type ScoringConfig struct {
	SeverityBase      SeverityBaseConfig      `mapstructure:"severity_base"`
	PhenotypeModifier PhenotypeModifierConfig `mapstructure:"phenotype_modifier"`

	// Confidence factor = ConfidenceFloor + ConfidenceSpan * confidence.
	ConfidenceFloor float64 `mapstructure:"confidence_floor"`
	ConfidenceSpan  float64 `mapstructure:"confidence_span"`

	// Rarity bonuses by population frequency threshold.
	RarityBonusVeryRare float64 `mapstructure:"rarity_bonus_very_rare"` // freq < 0.001
	RarityBonusRare     float64 `mapstructure:"rarity_bonus_rare"`     // freq < 0.01
	RarityBonusUncommon float64 `mapstructure:"rarity_bonus_uncommon"` // freq < 0.05
}

type SeverityBaseConfig struct {
	Critical float64 `mapstructure:"critical"`
	High     float64 `mapstructure:"high"`
	Moderate float64 `mapstructure:"moderate"`
	Low      float64 `mapstructure:"low"`
	None     float64 `mapstructure:"none"`
}

type PhenotypeModifierConfig struct {
	PM            float64 `mapstructure:"pm"`
	IM            float64 `mapstructure:"im"`
	NM            float64 `mapstructure:"nm"`
	RM            float64 `mapstructure:"rm"`
	UM            float64 `mapstructure:"um"`
	Indeterminate float64 `mapstructure:"indeterminate"`
}

// ConfidenceConfig holds the multiplicative confidence factors and caps.
type ConfidenceConfig struct {
	UncoveredPositionFactor float64 `mapstructure:"uncovered_position_factor"`
	UnphasedHetFactor       float64 `mapstructure:"unphased_het_factor"`
	IndeterminateFactor     float64 `mapstructure:"indeterminate_factor"`
	RareAlleleFactor        float64 `mapstructure:"rare_allele_factor"`
	RareThreshold           float64 `mapstructure:"rare_threshold"`

	// MinVariantQuality marks contributing calls below this quality as
	// low_quality during resolution.
	MinVariantQuality float64 `mapstructure:"min_variant_quality"`

	PhenotypeUnresolvedCap float64 `mapstructure:"phenotype_unresolved_cap"`
	AutomationBlockedCap   float64 `mapstructure:"automation_blocked_cap"`

	// InferredWildtype is the base confidence for *1/*1 calls inferred
	// from absence of variants without full key-position coverage.
	InferredWildtype float64 `mapstructure:"inferred_wildtype"`

	// StructuralVariantCap bounds confidence for genes with copy-number
	// complexity (CYP2D6 deletions and duplications).
	StructuralVariantCap float64 `mapstructure:"structural_variant_cap"`
}

// LearningConfig holds the feedback learner parameters.
type LearningConfig struct {
	Alpha      float64 `mapstructure:"alpha"`       // new-signal weight
	Decay      float64 `mapstructure:"decay"`       // monthly decay toward 1.0
	LowerBound float64 `mapstructure:"lower_bound"` // prior floor
	UpperBound float64 `mapstructure:"upper_bound"` // prior ceiling
	MaxDelta   float64 `mapstructure:"max_delta"`   // per-update clamp
}

type CalibrationConfig struct {
	Bins              int     `mapstructure:"bins"`
	MinSamplesPerBin  int64   `mapstructure:"min_samples_per_bin"`
	DriftZThreshold   float64 `mapstructure:"drift_z_threshold"`
	BaselineAccuracy  float64 `mapstructure:"baseline_accuracy"`
	BaselineStdDev    float64 `mapstructure:"baseline_std_dev"`
	CorrectionFloor   float64 `mapstructure:"correction_floor"`
	CorrectionCeiling float64 `mapstructure:"correction_ceiling"`
}

type StoreConfig struct {
	Driver      string `mapstructure:"driver"` // sqlite or postgres
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresURL string `mapstructure:"postgres_url"`
}

type CacheConfig struct {
	RedisURL      string        `mapstructure:"redis_url"`
	RedisEnabled  bool          `mapstructure:"redis_enabled"`
	AssessmentTTL time.Duration `mapstructure:"assessment_ttl"`
	LookupSize    int           `mapstructure:"lookup_size"`
}

type PipelineConfig struct {
	Workers int `mapstructure:"workers"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// Manager loads and validates configuration via viper.
type Manager struct {
	config *Config
}

// NewManager creates a configuration manager, reading config.yaml if
// present and PHARMAGUARD_* environment variables.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/pharmaguard/")

	viper.SetEnvPrefix("PHARMAGUARD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; defaults and environment variables apply.
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("environment", "development")

	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("guidelines.snapshot_path", "")
	viper.SetDefault("guidelines.population", "EUR")

	viper.SetDefault("scoring.severity_base.critical", 95.0)
	viper.SetDefault("scoring.severity_base.high", 80.0)
	viper.SetDefault("scoring.severity_base.moderate", 55.0)
	viper.SetDefault("scoring.severity_base.low", 30.0)
	viper.SetDefault("scoring.severity_base.none", 10.0)
	viper.SetDefault("scoring.phenotype_modifier.pm", 10.0)
	viper.SetDefault("scoring.phenotype_modifier.um", 8.0)
	viper.SetDefault("scoring.phenotype_modifier.im", 5.0)
	viper.SetDefault("scoring.phenotype_modifier.rm", 3.0)
	viper.SetDefault("scoring.phenotype_modifier.nm", 0.0)
	viper.SetDefault("scoring.phenotype_modifier.indeterminate", -5.0)
	viper.SetDefault("scoring.confidence_floor", 0.70)
	viper.SetDefault("scoring.confidence_span", 0.30)
	viper.SetDefault("scoring.rarity_bonus_very_rare", 8.0)
	viper.SetDefault("scoring.rarity_bonus_rare", 5.0)
	viper.SetDefault("scoring.rarity_bonus_uncommon", 2.0)

	viper.SetDefault("confidence.uncovered_position_factor", 0.8)
	viper.SetDefault("confidence.unphased_het_factor", 0.9)
	viper.SetDefault("confidence.indeterminate_factor", 0.5)
	viper.SetDefault("confidence.rare_allele_factor", 0.7)
	viper.SetDefault("confidence.rare_threshold", 0.005)
	viper.SetDefault("confidence.min_variant_quality", 20.0)
	viper.SetDefault("confidence.phenotype_unresolved_cap", 0.50)
	viper.SetDefault("confidence.automation_blocked_cap", 0.70)
	viper.SetDefault("confidence.inferred_wildtype", 0.85)
	viper.SetDefault("confidence.structural_variant_cap", 0.75)

	viper.SetDefault("learning.alpha", 0.1)
	viper.SetDefault("learning.decay", 0.95)
	viper.SetDefault("learning.lower_bound", 0.80)
	viper.SetDefault("learning.upper_bound", 1.50)
	viper.SetDefault("learning.max_delta", 0.10)

	viper.SetDefault("calibration.bins", 10)
	viper.SetDefault("calibration.min_samples_per_bin", 10)
	viper.SetDefault("calibration.drift_z_threshold", 2.0)
	viper.SetDefault("calibration.baseline_accuracy", 0.85)
	viper.SetDefault("calibration.baseline_std_dev", 0.05)
	viper.SetDefault("calibration.correction_floor", 0.80)
	viper.SetDefault("calibration.correction_ceiling", 1.20)

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.sqlite_path", "./data/pharmaguard.db")
	viper.SetDefault("store.postgres_url", "")

	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.redis_enabled", false)
	viper.SetDefault("cache.assessment_ttl", "1h")
	viper.SetDefault("cache.lookup_size", 1024)

	viper.SetDefault("pipeline.workers", 4)

	viper.SetDefault("rate_limit.requests_per_second", 50.0)
	viper.SetDefault("rate_limit.burst", 100)
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *Config {
	return m.config
}

// Reload re-reads all configuration sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for consistency.
func (m *Manager) Validate() error {
	c := m.config

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	switch strings.ToLower(c.Store.Driver) {
	case "sqlite":
		if c.Store.SQLitePath == "" {
			return fmt.Errorf("sqlite store requires store.sqlite_path")
		}
	case "postgres":
		if c.Store.PostgresURL == "" {
			return fmt.Errorf("postgres store requires store.postgres_url")
		}
	default:
		return fmt.Errorf("unknown store driver: %s", c.Store.Driver)
	}

	if c.Learning.LowerBound >= c.Learning.UpperBound {
		return fmt.Errorf("learning prior bounds inverted: [%.2f, %.2f]",
			c.Learning.LowerBound, c.Learning.UpperBound)
	}
	if c.Learning.Alpha < 0 || c.Learning.Alpha > 1 {
		return fmt.Errorf("learning alpha must be in [0,1]: %.2f", c.Learning.Alpha)
	}
	if c.Learning.Decay <= 0 || c.Learning.Decay > 1 {
		return fmt.Errorf("learning decay must be in (0,1]: %.2f", c.Learning.Decay)
	}

	if c.Calibration.Bins <= 0 {
		return fmt.Errorf("calibration needs at least one bin")
	}
	if c.Calibration.CorrectionFloor >= c.Calibration.CorrectionCeiling {
		return fmt.Errorf("calibration correction bounds inverted")
	}

	if c.Confidence.PhenotypeUnresolvedCap <= 0 || c.Confidence.PhenotypeUnresolvedCap > 1 {
		return fmt.Errorf("phenotype unresolved cap must be in (0,1]")
	}
	if c.Pipeline.Workers <= 0 {
		return fmt.Errorf("pipeline workers must be positive")
	}

	return nil
}

// IsProduction reports whether the server runs in production mode.
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.config.Environment) == "production"
}
