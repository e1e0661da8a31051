package settings

import "time"

// Rate limit actions and their default fixed-window policies.
const (
	// ActionAIRequest is the global per-user AI assistance quota.
	ActionAIRequest = "ai_request"
	// ActionAIReadingText is the per-user, per-reading-text AI assistance quota.
	ActionAIReadingText = "ai_reading_text"
	// ActionLogin throttles login attempts per client IP.
	ActionLogin = "login"
	// ActionAPIRequest throttles generic API calls.
	ActionAPIRequest = "api_request"
	// ActionChat throttles class chat messages.
	ActionChat = "chat"
	// ActionAnnotation throttles reading text annotations.
	ActionAnnotation = "annotation"

	// DefaultAIRequestLimit is the daily global AI request allowance.
	DefaultAIRequestLimit = 5
	// DefaultAIRequestWindow is the global AI quota window.
	DefaultAIRequestWindow = 24 * time.Hour
	// DefaultAIReadingTextLimit is the daily AI allowance per reading text.
	DefaultAIReadingTextLimit = 3
	// DefaultAIReadingTextWindow is the per-reading-text AI quota window.
	DefaultAIReadingTextWindow = 24 * time.Hour
	// DefaultLoginLimit is the login attempt allowance per IP.
	DefaultLoginLimit = 5
	// DefaultLoginWindow is the login attempt window.
	DefaultLoginWindow = time.Hour
	// DefaultAPIRequestLimit is the generic API allowance.
	DefaultAPIRequestLimit = 100
	// DefaultAPIRequestWindow is the generic API window.
	DefaultAPIRequestWindow = time.Minute
	// DefaultChatLimit is the chat message allowance.
	DefaultChatLimit = 30
	// DefaultChatWindow is the chat message window.
	DefaultChatWindow = time.Minute
	// DefaultAnnotationLimit is the annotation allowance.
	DefaultAnnotationLimit = 50
	// DefaultAnnotationWindow is the annotation window.
	DefaultAnnotationWindow = time.Hour

	// DefaultSweepInterval is how often expired in-memory counters are reclaimed.
	DefaultSweepInterval = 5 * time.Minute

	// BackendMemory keeps counters in process memory.
	BackendMemory = "memory"
	// BackendRedis keeps counters in Redis.
	BackendRedis = "redis"
	// DefaultRateLimitRedisPrefix is the fallback Redis key prefix.
	DefaultRateLimitRedisPrefix = "lms:rl"
	// ScopedRateLimitRedisSuffix separates the per-resource registry from the global one.
	ScopedRateLimitRedisSuffix = "scoped"

	// DefaultHistoryClassLimit bounds class history queries when no limit is given.
	DefaultHistoryClassLimit = 50
	// MaxHistoryClassLimit caps class history queries.
	MaxHistoryClassLimit = 500
)
