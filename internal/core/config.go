package core

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every option in the spec's Configuration Surface (§6).
// The struct itself is the contract other components depend on; loading
// it (env vars, an optional file) is ambient infrastructure, not a
// feature — settings *UI* remains out of scope.
type Config struct {
	DecayRatePerHour    float64 `mapstructure:"decay_rate"`
	CommunityResolution float64 `mapstructure:"community_resolution"`
	CommunitySeed       int64   `mapstructure:"community_seed"`
	LaplaceSmoothing    float64 `mapstructure:"laplace_smoothing"`
	MaxGraphNodes       int     `mapstructure:"max_graph_nodes"`
	EdgePruneThreshold  float64 `mapstructure:"edge_prune_threshold"`
	ConfidenceColdStart float64 `mapstructure:"confidence_cold_start"`
	MaxKeywordsPerPage  int     `mapstructure:"max_keywords_per_page"`
	MaxContentLength    int     `mapstructure:"max_content_length"`
	MaxContextSnippet   int     `mapstructure:"max_context_snippet_length"`
	MaxSummaryLength    int     `mapstructure:"max_summary_length"`
	MaxTrajectoryPages  int     `mapstructure:"max_trajectory_pages"`
	MaxDeepContentPages int     `mapstructure:"max_deep_content_pages"`
	DebounceMS          int     `mapstructure:"debounce_ms"`
	MinIntervalMS       int     `mapstructure:"min_interval_ms"`
	SnapshotPath        string  `mapstructure:"snapshot_path"`

	// Non-spec-numbered but referenced by §4.5 section 3: number of key
	// pages in the cluster section that carry a snippet.
	MaxDeepContentPagesCluster int `mapstructure:"max_deep_content_pages_cluster"`

	// ExternalExtractorTimeout is the soft timeout for the external
	// keyword extractor (§5 "Cancellation and timeouts").
	ExternalExtractorTimeout time.Duration `mapstructure:"external_extractor_timeout"`

	// ShutdownDrainTimeout bounds how long teardown waits for the visit
	// queue to drain before aborting pending visits (§5 "Shutdown").
	ShutdownDrainTimeout time.Duration `mapstructure:"shutdown_drain_timeout"`
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		DecayRatePerHour:           0.01,
		CommunityResolution:        1.0,
		CommunitySeed:              42,
		LaplaceSmoothing:           0.1,
		MaxGraphNodes:              500,
		EdgePruneThreshold:         0.01,
		ConfidenceColdStart:        0.25,
		MaxKeywordsPerPage:         12,
		MaxContentLength:           8000,
		MaxContextSnippet:          3000,
		MaxSummaryLength:           1500,
		MaxTrajectoryPages:         8,
		MaxDeepContentPages:        4,
		MaxDeepContentPagesCluster: 4,
		DebounceMS:                 5000,
		MinIntervalMS:              3000,
		SnapshotPath:               "graph.bin",
		ExternalExtractorTimeout:   3 * time.Second,
		ShutdownDrainTimeout:       10 * time.Second,
	}
}

// LoadConfig builds a Config starting from DefaultConfig, then overlaying
// any CONTEXTENGINE_*-prefixed environment variables and an optional
// config file (path given by the CONTEXTENGINE_CONFIG_PATH env var, if
// set), via viper. A missing or unreadable file falls back silently to
// the defaults plus whatever environment variables are set. A value that
// cannot be decoded into Config is returned as an error.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetEnvPrefix("CONTEXTENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindDefaults(v, cfg)

	if path := v.GetString("config_path"); path != "" {
		v.SetConfigFile(path)
		_ = v.ReadInConfig() // missing/corrupt config file: keep defaults + env
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func bindDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("decay_rate", cfg.DecayRatePerHour)
	v.SetDefault("community_resolution", cfg.CommunityResolution)
	v.SetDefault("community_seed", cfg.CommunitySeed)
	v.SetDefault("laplace_smoothing", cfg.LaplaceSmoothing)
	v.SetDefault("max_graph_nodes", cfg.MaxGraphNodes)
	v.SetDefault("edge_prune_threshold", cfg.EdgePruneThreshold)
	v.SetDefault("confidence_cold_start", cfg.ConfidenceColdStart)
	v.SetDefault("max_keywords_per_page", cfg.MaxKeywordsPerPage)
	v.SetDefault("max_content_length", cfg.MaxContentLength)
	v.SetDefault("max_context_snippet_length", cfg.MaxContextSnippet)
	v.SetDefault("max_summary_length", cfg.MaxSummaryLength)
	v.SetDefault("max_trajectory_pages", cfg.MaxTrajectoryPages)
	v.SetDefault("max_deep_content_pages", cfg.MaxDeepContentPages)
	v.SetDefault("max_deep_content_pages_cluster", cfg.MaxDeepContentPagesCluster)
	v.SetDefault("debounce_ms", cfg.DebounceMS)
	v.SetDefault("min_interval_ms", cfg.MinIntervalMS)
	v.SetDefault("snapshot_path", cfg.SnapshotPath)
	v.SetDefault("external_extractor_timeout", cfg.ExternalExtractorTimeout)
	v.SetDefault("shutdown_drain_timeout", cfg.ShutdownDrainTimeout)
}
