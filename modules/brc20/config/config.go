package config

import "github.com/universal-brc20/indexer/internal/postgres"

type Config struct {
	Datasource  string          `mapstructure:"datasource"`   // Datasource to fetch bitcoin data e.g. `bitcoin-node`
	Database    string          `mapstructure:"database"`     // Database to store data.
	APIHandlers []string        `mapstructure:"api_handlers"` // List of API handlers to enable. (e.g. `http`)
	Postgres    postgres.Config `mapstructure:"postgres"`

	// StartHeight overrides the per-network activation height when non-zero.
	StartHeight uint64 `mapstructure:"start_height"`

	// EnabledOps restricts the registered operation processors. Empty enables
	// all built-in processors.
	EnabledOps []string `mapstructure:"enabled_ops"`

	// PrefetchDepth is the number of blocks fetched ahead from the node in
	// parallel. Zero uses the datasource default.
	PrefetchDepth int `mapstructure:"prefetch_depth"`

	// PayloadMaxBytes caps accepted OP_RETURN payload sizes. Zero uses the
	// protocol default of 520 bytes.
	PayloadMaxBytes int `mapstructure:"payload_max_bytes"`

	// ReorgDepthLimit caps how far back the fork point search walks before
	// giving up. Zero uses the indexer default.
	ReorgDepthLimit int `mapstructure:"reorg_depth_limit"`

	LegacyOracle LegacyOracleConfig `mapstructure:"legacy_oracle"`
	Retry        RetryConfig        `mapstructure:"retry"`
}

type LegacyOracleConfig struct {
	// URL of the legacy inscription indexer API. Empty disables all legacy
	// cross-namespace checks.
	URL string `mapstructure:"url"`

	// RequireLegacy makes oracle unavailability block indexing instead of
	// proceeding with unvalidated deploys.
	RequireLegacy bool `mapstructure:"require_legacy"`
}

type RetryConfig struct {
	BackoffMs    int64 `mapstructure:"backoff_ms"`
	BackoffMaxMs int64 `mapstructure:"backoff_max_ms"`
	MaxRetries   int   `mapstructure:"max_retries"`
}

func (c RetryConfig) BackoffMsOrDefault() int64 {
	if c.BackoffMs <= 0 {
		return 1000
	}
	return c.BackoffMs
}

func (c RetryConfig) BackoffMaxMsOrDefault() int64 {
	if c.BackoffMaxMs <= 0 {
		return 60000
	}
	return c.BackoffMaxMs
}

func (c RetryConfig) MaxRetriesOrDefault() int {
	if c.MaxRetries <= 0 {
		return 10
	}
	return c.MaxRetries
}
