// Package config loads application configuration and installs the global
// logger.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/meridian-ops/netplan/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Planner PlannerConfig `yaml:"planner" mapstructure:"planner"`
	Sweep   SweepConfig   `yaml:"sweep" mapstructure:"sweep"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the run-history backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// PlannerConfig holds default optimizer knobs; payload values take
// precedence over these.
type PlannerConfig struct {
	MaxUtilization          float64       `yaml:"max_utilization" mapstructure:"max_utilization"`
	MinUtilization          float64       `yaml:"min_utilization" mapstructure:"min_utilization"`
	ServiceLevelRequirement float64       `yaml:"service_level_requirement" mapstructure:"service_level_requirement"`
	MaxDistanceMiles        float64       `yaml:"max_distance_miles" mapstructure:"max_distance_miles"`
	CostPerMile             float64       `yaml:"cost_per_mile" mapstructure:"cost_per_mile"`
	LeaseYears              int           `yaml:"lease_years" mapstructure:"lease_years"`
	OpenLagYears            int           `yaml:"open_lag_years" mapstructure:"open_lag_years"`
	Weights                 model.Weights `yaml:"weights" mapstructure:"weights"`
}

// SweepConfig configures the scenario sweep driver.
type SweepConfig struct {
	Concurrency int `yaml:"concurrency" mapstructure:"concurrency"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("NETPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "netplan.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("planner.max_utilization", 0.85)
	v.SetDefault("planner.min_utilization", 0.40)
	v.SetDefault("planner.service_level_requirement", 0.95)
	v.SetDefault("planner.max_distance_miles", 500)
	v.SetDefault("planner.cost_per_mile", 2.5)
	v.SetDefault("planner.lease_years", 3)
	v.SetDefault("planner.open_lag_years", 0)
	v.SetDefault("planner.weights.cost", 0.5)
	v.SetDefault("planner.weights.service_level", 0.3)
	v.SetDefault("planner.weights.utilization", 0.2)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
