package config

const (
	defaultCacheDirFallback         = "~/.cache/animelink"
	defaultLogDir                   = "~/.local/share/animelink/logs"
	defaultCatalogEndpoint          = "https://graphql.anilist.co"
	defaultCatalogUserAgent         = "animelink/0.1.0"
	defaultCatalogRequestTimeout    = 30
	defaultReservoir                = 90
	defaultRefillIntervalMS         = 60_000
	defaultMaxConcurrent            = 10
	defaultMinSpacingMS             = 100
	defaultMaxAttempts              = 6
	defaultEpisodeReservoir         = 60
	defaultEpisodeMaxConcurrent     = 3
	defaultEpisodeMinSpacingMS      = 300
	defaultCacheBackend             = CacheBackendSQLite
	defaultCacheFileName            = "cache.db"
	defaultCacheDebounceMS          = 2000
	defaultCacheGraceMS             = 500
	defaultCacheStaleDays           = 7
	defaultResolverBatchSize        = 60
	defaultResolverStepCeiling      = 32
	defaultVerificationThreshold    = 0.3
	defaultResolverWorkers          = 4
	defaultNotifyRequestTimeout     = 10
	defaultLogFormat                = "auto"
	defaultLogLevel                 = "info"
	defaultLogMaxSizeMB             = 10
	defaultLogMaxBackups            = 5
	defaultLogMaxAgeDays            = 30
	maxCompoundBatchSize            = 62
	defaultCatalogTokenEnv          = "ANIMELINK_TOKEN"
	defaultCatalogEndpointEnv       = "ANIMELINK_ENDPOINT"
	defaultNotificationsTopicEnvVar = "ANIMELINK_NTFY_TOPIC"
)

// Cache backends.
const (
	CacheBackendSQLite = "sqlite"
	CacheBackendJSON   = "json"
	CacheBackendMemory = "memory"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir: defaultCacheDir(),
			LogDir:   defaultLogDir,
		},
		Catalog: Catalog{
			Endpoint:       defaultCatalogEndpoint,
			UserAgent:      defaultCatalogUserAgent,
			RequestTimeout: defaultCatalogRequestTimeout,
		},
		RateLimit: RateLimit{
			Reservoir:        defaultReservoir,
			RefillIntervalMS: defaultRefillIntervalMS,
			MaxConcurrent:    defaultMaxConcurrent,
			MinSpacingMS:     defaultMinSpacingMS,
			MaxAttempts:      defaultMaxAttempts,
		},
		EpisodeRateLimit: RateLimit{
			Reservoir:        defaultEpisodeReservoir,
			RefillIntervalMS: defaultRefillIntervalMS,
			MaxConcurrent:    defaultEpisodeMaxConcurrent,
			MinSpacingMS:     defaultEpisodeMinSpacingMS,
			MaxAttempts:      defaultMaxAttempts,
		},
		Cache: Cache{
			Backend:    defaultCacheBackend,
			DebounceMS: defaultCacheDebounceMS,
			GraceMS:    defaultCacheGraceMS,
			StaleDays:  defaultCacheStaleDays,
		},
		Resolver: Resolver{
			BatchSize:             defaultResolverBatchSize,
			StepCeiling:           defaultResolverStepCeiling,
			VerificationThreshold: defaultVerificationThreshold,
			Workers:               defaultResolverWorkers,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Errors:         true,
		},
		Logging: Logging{
			Format:     defaultLogFormat,
			Level:      defaultLogLevel,
			MaxSizeMB:  defaultLogMaxSizeMB,
			MaxBackups: defaultLogMaxBackups,
			MaxAgeDays: defaultLogMaxAgeDays,
			Compress:   true,
		},
	}
}
