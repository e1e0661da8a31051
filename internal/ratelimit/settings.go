package ratelimit

import (
	"strings"

	internalsettings "github.com/lmslight/lms-core/internal/settings"
)

// Policies holds the named fixed-window policies used across the application.
type Policies struct {
	AIRequest     Policy `yaml:"ai-request"`
	AIReadingText Policy `yaml:"ai-reading-text"`
	Login         Policy `yaml:"login"`
	APIRequest    Policy `yaml:"api-request"`
	Chat          Policy `yaml:"chat"`
	Annotation    Policy `yaml:"annotation"`
}

// DefaultPolicies returns the built-in policy set.
func DefaultPolicies() Policies {
	return Policies{
		AIRequest:     Policy{Limit: internalsettings.DefaultAIRequestLimit, Window: internalsettings.DefaultAIRequestWindow},
		AIReadingText: Policy{Limit: internalsettings.DefaultAIReadingTextLimit, Window: internalsettings.DefaultAIReadingTextWindow},
		Login:         Policy{Limit: internalsettings.DefaultLoginLimit, Window: internalsettings.DefaultLoginWindow},
		APIRequest:    Policy{Limit: internalsettings.DefaultAPIRequestLimit, Window: internalsettings.DefaultAPIRequestWindow},
		Chat:          Policy{Limit: internalsettings.DefaultChatLimit, Window: internalsettings.DefaultChatWindow},
		Annotation:    Policy{Limit: internalsettings.DefaultAnnotationLimit, Window: internalsettings.DefaultAnnotationWindow},
	}
}

// WithDefaults fills every invalid policy from DefaultPolicies.
func (p Policies) WithDefaults() Policies {
	defaults := DefaultPolicies()
	p.AIRequest = orDefault(p.AIRequest, defaults.AIRequest)
	p.AIReadingText = orDefault(p.AIReadingText, defaults.AIReadingText)
	p.Login = orDefault(p.Login, defaults.Login)
	p.APIRequest = orDefault(p.APIRequest, defaults.APIRequest)
	p.Chat = orDefault(p.Chat, defaults.Chat)
	p.Annotation = orDefault(p.Annotation, defaults.Annotation)
	return p
}

// ForAction returns the policy registered for a named action.
func (p Policies) ForAction(action string) (Policy, bool) {
	switch action {
	case internalsettings.ActionAIRequest:
		return p.AIRequest, true
	case internalsettings.ActionAIReadingText:
		return p.AIReadingText, true
	case internalsettings.ActionLogin:
		return p.Login, true
	case internalsettings.ActionAPIRequest:
		return p.APIRequest, true
	case internalsettings.ActionChat:
		return p.Chat, true
	case internalsettings.ActionAnnotation:
		return p.Annotation, true
	default:
		return Policy{}, false
	}
}

func orDefault(p, fallback Policy) Policy {
	if p.Limit <= 0 {
		p.Limit = fallback.Limit
	}
	if p.Window <= 0 {
		p.Window = fallback.Window
	}
	return p
}

// SettingsConfig captures limiter backend and policy settings.
type SettingsConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	Policies      Policies
}

// DefaultSettingsConfig returns an in-memory configuration with default policies.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Backend:     internalsettings.BackendMemory,
		RedisPrefix: internalsettings.DefaultRateLimitRedisPrefix,
		Policies:    DefaultPolicies(),
	}
}

// Normalize trims fields and applies defaults.
func (cfg SettingsConfig) Normalize() SettingsConfig {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	if cfg.Backend != internalsettings.BackendRedis {
		cfg.Backend = internalsettings.BackendMemory
	}
	cfg.RedisAddr = strings.TrimSpace(cfg.RedisAddr)
	cfg.RedisPassword = strings.TrimSpace(cfg.RedisPassword)
	cfg.RedisPrefix = strings.TrimSpace(cfg.RedisPrefix)
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = internalsettings.DefaultRateLimitRedisPrefix
	}
	if cfg.RedisDB < 0 {
		cfg.RedisDB = 0
	}
	cfg.Policies = cfg.Policies.WithDefaults()
	return cfg
}

// Scoped derives the settings for the per-resource registry, isolated by Redis prefix.
func (cfg SettingsConfig) Scoped() SettingsConfig {
	cfg = cfg.Normalize()
	cfg.RedisPrefix = cfg.RedisPrefix + ":" + internalsettings.ScopedRateLimitRedisSuffix
	return cfg
}
