package config

import (
	"errors"
	"log"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// AnalysisConfig holds operator-tunable analysis knobs. Defaults match the
// documented engine behavior; overriding them does not change scoring rules.
type AnalysisConfig struct {
	AIConfidence       float64 `mapstructure:"aiConfidence"`
	FallbackConfidence float64 `mapstructure:"fallbackConfidence"`
	SummaryMaxLength   int     `mapstructure:"summaryMaxLength"`
	UnavailableMarker  string  `mapstructure:"unavailableMarker"`
}

func DefaultAnalysisConfig() AnalysisConfig {
	return AnalysisConfig{
		AIConfidence:       0.90,
		FallbackConfidence: 0.65,
		SummaryMaxLength:   200,
		UnavailableMarker:  "AI analysis temporarily unavailable",
	}
}

// AnalysisConfigHolder exposes the current analysis config with hot reload.
type AnalysisConfigHolder struct {
	current atomic.Value // holds AnalysisConfig
}

func NewAnalysisConfigHolder() (*AnalysisConfigHolder, error) {
	v := viper.New()

	v.SetConfigName("analysis")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/solvetrace/config")
	v.AddConfigPath("/etc/solvetrace")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SOLVETRACE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultAnalysisConfig()
	v.SetDefault("analysis.aiConfidence", defaults.AIConfidence)
	v.SetDefault("analysis.fallbackConfidence", defaults.FallbackConfidence)
	v.SetDefault("analysis.summaryMaxLength", defaults.SummaryMaxLength)
	v.SetDefault("analysis.unavailableMarker", defaults.UnavailableMarker)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg AnalysisConfig
	if err := v.UnmarshalKey("analysis", &cfg); err != nil {
		return nil, err
	}
	if err := validateAnalysisConfig(cfg); err != nil {
		return nil, err
	}

	holder := &AnalysisConfigHolder{}
	holder.current.Store(cfg)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated AnalysisConfig
		if err := v.UnmarshalKey("analysis", &updated); err != nil {
			log.Printf("[analysis-config] reload failed: %v", err)
			return
		}
		if err := validateAnalysisConfig(updated); err != nil {
			log.Printf("[analysis-config] invalid config ignored: %v", err)
			return
		}
		holder.current.Store(updated)
		log.Printf("[analysis-config] reloaded from %s", e.Name)
	})

	return holder, nil
}

func (h *AnalysisConfigHolder) Get() AnalysisConfig {
	if h == nil {
		return DefaultAnalysisConfig()
	}
	value := h.current.Load()
	if value == nil {
		return DefaultAnalysisConfig()
	}
	return value.(AnalysisConfig)
}

// Store replaces the current config. Intended for tests.
func (h *AnalysisConfigHolder) Store(cfg AnalysisConfig) {
	h.current.Store(cfg)
}

func validateAnalysisConfig(cfg AnalysisConfig) error {
	if cfg.AIConfidence <= 0 || cfg.AIConfidence > 1 {
		return errors.New("analysis.aiConfidence must be in (0, 1]")
	}
	if cfg.FallbackConfidence <= 0 || cfg.FallbackConfidence > 1 {
		return errors.New("analysis.fallbackConfidence must be in (0, 1]")
	}
	if cfg.SummaryMaxLength < 50 {
		return errors.New("analysis.summaryMaxLength must be at least 50")
	}
	return nil
}
