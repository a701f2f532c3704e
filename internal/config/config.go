// Package config handles configuration loading for abra.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"  yaml:"engine"`
	Cache   CacheConfig   `mapstructure:"cache"   yaml:"cache"`
	API     APIConfig     `mapstructure:"api"     yaml:"api"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// EngineConfig holds the analytics tunables. The numeric defaults are
// calibration starting points, not contracts; every one can be
// overridden per deployment.
type EngineConfig struct {
	Smoothing   SmoothingConfig   `mapstructure:"smoothing"   yaml:"smoothing"`
	Forecast    ForecastConfig    `mapstructure:"forecast"    yaml:"forecast"`
	Seasonality SeasonalityConfig `mapstructure:"seasonality" yaml:"seasonality"`
	Relevance   RelevanceConfig   `mapstructure:"relevance"   yaml:"relevance"`
	Anomaly     AnomalyConfig     `mapstructure:"anomaly"     yaml:"anomaly"`
	Fusion      FusionConfig      `mapstructure:"fusion"      yaml:"fusion"`
	// MaxConcurrentEntities bounds the batch fan-out.
	MaxConcurrentEntities int `mapstructure:"max_concurrent_entities" yaml:"max_concurrent_entities"`
}

// SmoothingConfig holds LOESS smoothing settings.
type SmoothingConfig struct {
	Bandwidth float64 `mapstructure:"bandwidth"    yaml:"bandwidth"`    // fraction of series length
	MinPoints int     `mapstructure:"min_points"   yaml:"min_points"`
	MaxGapRun int     `mapstructure:"max_gap_run"  yaml:"max_gap_run"` // samples
}

// ForecastConfig holds forecast extension settings.
type ForecastConfig struct {
	Horizon    int     `mapstructure:"horizon"     yaml:"horizon"` // samples beyond the observed range
	BandFactor float64 `mapstructure:"band_factor" yaml:"band_factor"`
}

// SeasonalityConfig holds cycle detection settings.
type SeasonalityConfig struct {
	MinStrength float64 `mapstructure:"min_strength" yaml:"min_strength"`
}

// RelevanceConfig holds result scoring settings.
type RelevanceConfig struct {
	KeywordWeight       float64            `mapstructure:"keyword_weight"         yaml:"keyword_weight"`
	ChannelWeight       float64            `mapstructure:"channel_weight"         yaml:"channel_weight"`
	RecencyWeight       float64            `mapstructure:"recency_weight"         yaml:"recency_weight"`
	RecencyHalfLifeDays float64            `mapstructure:"recency_half_life_days" yaml:"recency_half_life_days"`
	TopK                int                `mapstructure:"top_k"                  yaml:"top_k"`
	ChannelBase         map[string]float64 `mapstructure:"channel_base"           yaml:"channel_base"`
}

// AnomalyConfig holds spike detection settings.
type AnomalyConfig struct {
	Window      int     `mapstructure:"window"      yaml:"window"`
	Sensitivity float64 `mapstructure:"sensitivity" yaml:"sensitivity"`
}

// FusionConfig holds score fusion settings.
type FusionConfig struct {
	TrendBlend     float64            `mapstructure:"trend_blend"      yaml:"trend_blend"` // momentum share of the channel score
	ChannelWeights map[string]float64 `mapstructure:"channel_weights"  yaml:"channel_weights"`
	SpikeAlertPct  float64            `mapstructure:"spike_alert_pct"  yaml:"spike_alert_pct"`
	DropAlertPct   float64            `mapstructure:"drop_alert_pct"   yaml:"drop_alert_pct"`
}

// CacheConfig holds the optional result cache settings.
type CacheConfig struct {
	Backend    string      `mapstructure:"backend"     yaml:"backend"` // "none", "memory", "redis"
	TTLSeconds int         `mapstructure:"ttl_seconds" yaml:"ttl_seconds"`
	Redis      RedisConfig `mapstructure:"redis"       yaml:"redis"`
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"     yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db"       yaml:"db"`
}

// APIConfig holds HTTP API server settings.
type APIConfig struct {
	Host        string   `mapstructure:"host"         yaml:"host"`
	Port        int      `mapstructure:"port"         yaml:"port"`
	CORSOrigins []string `mapstructure:"cors_origins" yaml:"cors_origins"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level" yaml:"level"` // "debug", "info", "warn", "error"
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			Smoothing:   SmoothingConfig{Bandwidth: 0.3, MinPoints: 8, MaxGapRun: 4},
			Forecast:    ForecastConfig{Horizon: 6, BandFactor: 0.5},
			Seasonality: SeasonalityConfig{MinStrength: 0.3},
			Relevance: RelevanceConfig{
				KeywordWeight:       0.5,
				ChannelWeight:       0.3,
				RecencyWeight:       0.2,
				RecencyHalfLifeDays: 7,
				TopK:                10,
				ChannelBase: map[string]float64{
					"web": 1.0, "news": 0.85, "trends": 0.75, "video": 0.7, "shopping": 0.6,
				},
			},
			Anomaly: AnomalyConfig{Window: 4, Sensitivity: 2.0},
			Fusion: FusionConfig{
				TrendBlend: 0.3,
				ChannelWeights: map[string]float64{
					"web": 1.0, "news": 1.0, "trends": 1.0, "video": 1.0, "shopping": 1.0,
				},
				SpikeAlertPct: 30,
				DropAlertPct:  -20,
			},
			MaxConcurrentEntities: 4,
		},
		Cache: CacheConfig{
			Backend:    "none",
			TTLSeconds: 3600,
			Redis:      RedisConfig{Addr: "localhost:6379"},
		},
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8480,
			CORSOrigins: []string{"*"},
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads config from ./config.yaml (if present) with ABRA_*
// environment overrides on top of the defaults.
func Load() (*Config, error) {
	return load("")
}

// LoadFromFile loads configuration from an explicit file path.
func LoadFromFile(path string) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return load(path)
}

func load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())

	v.SetEnvPrefix("ABRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			// Missing file is fine; defaults plus env apply.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("engine.smoothing.bandwidth", d.Engine.Smoothing.Bandwidth)
	v.SetDefault("engine.smoothing.min_points", d.Engine.Smoothing.MinPoints)
	v.SetDefault("engine.smoothing.max_gap_run", d.Engine.Smoothing.MaxGapRun)
	v.SetDefault("engine.forecast.horizon", d.Engine.Forecast.Horizon)
	v.SetDefault("engine.forecast.band_factor", d.Engine.Forecast.BandFactor)
	v.SetDefault("engine.seasonality.min_strength", d.Engine.Seasonality.MinStrength)
	v.SetDefault("engine.relevance.keyword_weight", d.Engine.Relevance.KeywordWeight)
	v.SetDefault("engine.relevance.channel_weight", d.Engine.Relevance.ChannelWeight)
	v.SetDefault("engine.relevance.recency_weight", d.Engine.Relevance.RecencyWeight)
	v.SetDefault("engine.relevance.recency_half_life_days", d.Engine.Relevance.RecencyHalfLifeDays)
	v.SetDefault("engine.relevance.top_k", d.Engine.Relevance.TopK)
	v.SetDefault("engine.relevance.channel_base", d.Engine.Relevance.ChannelBase)
	v.SetDefault("engine.anomaly.window", d.Engine.Anomaly.Window)
	v.SetDefault("engine.anomaly.sensitivity", d.Engine.Anomaly.Sensitivity)
	v.SetDefault("engine.fusion.trend_blend", d.Engine.Fusion.TrendBlend)
	v.SetDefault("engine.fusion.channel_weights", d.Engine.Fusion.ChannelWeights)
	v.SetDefault("engine.fusion.spike_alert_pct", d.Engine.Fusion.SpikeAlertPct)
	v.SetDefault("engine.fusion.drop_alert_pct", d.Engine.Fusion.DropAlertPct)
	v.SetDefault("engine.max_concurrent_entities", d.Engine.MaxConcurrentEntities)
	v.SetDefault("cache.backend", d.Cache.Backend)
	v.SetDefault("cache.ttl_seconds", d.Cache.TTLSeconds)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("api.host", d.API.Host)
	v.SetDefault("api.port", d.API.Port)
	v.SetDefault("api.cors_origins", d.API.CORSOrigins)
	v.SetDefault("logging.level", d.Logging.Level)
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	s := c.Engine.Smoothing
	if s.Bandwidth <= 0 || s.Bandwidth > 1 {
		return fmt.Errorf("engine.smoothing.bandwidth must be in (0,1], got %v", s.Bandwidth)
	}
	if s.MinPoints < 3 {
		return fmt.Errorf("engine.smoothing.min_points must be >= 3, got %d", s.MinPoints)
	}
	r := c.Engine.Relevance
	if sum := r.KeywordWeight + r.ChannelWeight + r.RecencyWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("engine.relevance factor weights must sum to 1, got %v", sum)
	}
	if c.Engine.Anomaly.Window < 2 {
		return fmt.Errorf("engine.anomaly.window must be >= 2, got %d", c.Engine.Anomaly.Window)
	}
	if b := c.Engine.Fusion.TrendBlend; b < 0 || b > 1 {
		return fmt.Errorf("engine.fusion.trend_blend must be in [0,1], got %v", b)
	}
	switch c.Cache.Backend {
	case "", "none", "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Cache.Backend)
	}
	return nil
}

// Addr returns the host:port the API server binds to.
func (c *APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
