// Package config provides shared configuration constants for the mediation adapter
package config

import "time"

// Server timeout defaults
const (
	// ServerReadTimeout is the maximum duration for reading the entire request
	ServerReadTimeout = 5 * time.Second

	// ServerWriteTimeout is the maximum duration before timing out writes of the response
	ServerWriteTimeout = 10 * time.Second

	// ServerIdleTimeout is the maximum time to wait for the next request when keep-alives are enabled
	ServerIdleTimeout = 120 * time.Second

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout = 30 * time.Second
)

// Auth cache defaults
const (
	// AuthCacheTimeout is how long to cache valid API keys
	AuthCacheTimeout = 60 * time.Second

	// AuthNegativeCacheTimeout is how long to cache invalid API key results
	AuthNegativeCacheTimeout = 10 * time.Second

	// #nosec G101 -- Redis key name, not a credential
	APIKeysHash = "mediation:api_keys" // hash: api_key -> operator
)

// Adapter identity
const (
	// PartnerIdentifier is the internal name of the partner
	PartnerIdentifier = "reference"

	// PartnerDisplayName is the external name of the partner
	PartnerDisplayName = "Reference"

	// AdapterVersion follows [Mediation SDK Major].[Partner Major].[Partner Minor].[Partner Patch].[Adapter]
	AdapterVersion = "4.1.0.0.0"

	// PartnerSDKVersion is the version reported by the partner SDK stub
	PartnerSDKVersion = "1.0.0"
)

// Partner SDK stub delays
const (
	// SDKSetupDelay is how long the simulated SDK initialization takes
	SDKSetupDelay = 500 * time.Millisecond

	// SDKShowDelay is the delay before a fullscreen presentation reports its result
	SDKShowDelay = 50 * time.Millisecond

	// SDKEventDelay is the delay before impression/click/reward/dismiss events fire
	SDKEventDelay = 1000 * time.Millisecond

	// SDKClickDelay is the delay between a banner click-through and the click event
	SDKClickDelay = 1000 * time.Millisecond
)

// Reward defaults
const (
	// DefaultRewardAmount is the reward granted by rewarded formats
	DefaultRewardAmount = 10

	// DefaultRewardLabel is the reward currency label
	DefaultRewardLabel = "coins"
)

// Banner sizing
const (
	// OversizedBannerDelta is added to resolved banner width and height in oversized test mode
	OversizedBannerDelta = 20

	// LeaderboardMinHeight is the lower bound of the legacy leaderboard height bucket
	LeaderboardMinHeight = 90

	// MediumRectangleMinHeight is the lower bound of the legacy medium rectangle height bucket
	MediumRectangleMinHeight = 250
)

// Size limiting defaults
const (
	// DefaultMaxBodySize is the default maximum request body size (1MB)
	DefaultMaxBodySize = 1024 * 1024

	// DefaultMaxURLLength is the default maximum URL length (8KB)
	DefaultMaxURLLength = 8192
)

// Redis defaults
const (
	// RedisPoolSize is the default connection pool size
	RedisPoolSize = 100

	// RedisMinIdleConns is the number of warm connections kept in the pool
	RedisMinIdleConns = 10

	// CredentialKeyPrefix namespaces partner credential hashes
	CredentialKeyPrefix = "mediation:credentials:"

	// CredentialIndexKey is the set of partners with stored credentials
	CredentialIndexKey = "mediation:credentials"

	// EventListKey is the Redis list receiving lifecycle events
	EventListKey = "mediation:events"

	// EventListMaxLen caps the lifecycle event list
	EventListMaxLen = 10000
)

// Event recorder defaults
const (
	// DefaultEventBufferSize is the default lifecycle event buffer size
	DefaultEventBufferSize = 100

	// DefaultEventFlushInterval is how often buffered events are flushed regardless of size
	DefaultEventFlushInterval = 5 * time.Second

	// SinkFailureThreshold is the number of consecutive sink failures that trip the breaker
	SinkFailureThreshold = 5

	// SinkSuccessThreshold is the number of trial writes that must succeed to close the breaker
	SinkSuccessThreshold = 2

	// SinkCooldown is how long a tripped breaker rejects writes before a trial write
	SinkCooldown = 30 * time.Second
)
