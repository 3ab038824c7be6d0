package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

var ErrMissingRequiredValue = errors.New("missing required value")
var ErrInvalidValue = errors.New("invalid value")

type environment string

const (
	production  environment = "production"
	staging     environment = "staging"
	development environment = "development"
)

type LeaderboardRoute string

const (
	// GET /board?limit=N on the leaderboard service
	LeaderboardRouteBoard LeaderboardRoute = "board"
	// GET /leaderboard?window=daily&limit=N on the gateway
	LeaderboardRouteWindow LeaderboardRoute = "window"
)

const minHMACSecretLength = 32

// Only used when running locally against the development services
const developmentHMACSecret = "liveops-development-secret-0123456789"

type rawConfig struct {
	Environment         string        `env:"LIVEOPS_ENVIRONMENT"`
	GatewayURL          string        `env:"LIVEOPS_GATEWAY_URL"          envDefault:"http://localhost:8080"`
	LeaderboardURL      string        `env:"LIVEOPS_LEADERBOARD_URL"      envDefault:"http://localhost:8082"`
	ProgressionURL      string        `env:"LIVEOPS_PROGRESSION_URL"      envDefault:"http://localhost:8083"`
	FairnessURL         string        `env:"LIVEOPS_FAIRNESS_URL"         envDefault:"http://localhost:8081"`
	HMACSecret          string        `env:"LIVEOPS_HMAC_SECRET"`
	LeaderboardRoute    string        `env:"LIVEOPS_LEADERBOARD_ROUTE"    envDefault:"board"`
	LeaderboardLimit    int           `env:"LIVEOPS_LEADERBOARD_LIMIT"    envDefault:"10"`
	LeaderboardInterval time.Duration `env:"LIVEOPS_LEADERBOARD_INTERVAL" envDefault:"5s"`
	DashboardInterval   time.Duration `env:"LIVEOPS_DASHBOARD_INTERVAL"   envDefault:"10s"`
	HealthInterval      time.Duration `env:"LIVEOPS_HEALTH_INTERVAL"      envDefault:"30s"`
	ListenPort          string        `env:"LIVEOPS_LISTEN_PORT"          envDefault:"3000"`
	AllowedOrigins      []string      `env:"LIVEOPS_ALLOWED_ORIGINS"      envDefault:"localhost" envSeparator:","`
	SentryDSN           string        `env:"SENTRY_DSN"`
	OTelEnabled         bool          `env:"OTEL_ENABLED"                 envDefault:"false"`
}

type Config struct {
	gatewayURL          string
	leaderboardURL      string
	progressionURL      string
	fairnessURL         string
	hmacSecret          string
	leaderboardRoute    LeaderboardRoute
	leaderboardLimit    int
	leaderboardInterval time.Duration
	dashboardInterval   time.Duration
	healthInterval      time.Duration
	listenPort          string
	allowedOrigins      []string
	sentryDSN           string
	otelEnabled         bool
	env                 environment
}

func (c *Config) GatewayURL() string {
	return c.gatewayURL
}

func (c *Config) LeaderboardURL() string {
	return c.leaderboardURL
}

func (c *Config) ProgressionURL() string {
	return c.progressionURL
}

func (c *Config) FairnessURL() string {
	return c.fairnessURL
}

func (c *Config) HMACSecret() string {
	return c.hmacSecret
}

func (c *Config) LeaderboardRoute() LeaderboardRoute {
	return c.leaderboardRoute
}

func (c *Config) LeaderboardLimit() int {
	return c.leaderboardLimit
}

func (c *Config) LeaderboardInterval() time.Duration {
	return c.leaderboardInterval
}

func (c *Config) DashboardInterval() time.Duration {
	return c.dashboardInterval
}

func (c *Config) HealthInterval() time.Duration {
	return c.healthInterval
}

func (c *Config) ListenPort() string {
	return c.listenPort
}

func (c *Config) AllowedOrigins() []string {
	return c.allowedOrigins
}

func (c *Config) SentryDSN() string {
	return c.sentryDSN
}

func (c *Config) OTelEnabled() bool {
	return c.otelEnabled
}

func (c *Config) IsProduction() bool {
	return c.env == production
}

func (c *Config) IsStaging() bool {
	return c.env == staging
}

func (c *Config) IsDevelopment() bool {
	return c.env == development
}

// Return a string representation suitable for logging etc
func (c *Config) NonSensitiveString() string {
	return fmt.Sprintf(
		"Config{env: %s, gateway: %s, leaderboard: %s (%s), progression: %s, fairness: %s, ...}",
		string(c.env),
		c.gatewayURL,
		c.leaderboardURL,
		string(c.leaderboardRoute),
		c.progressionURL,
		c.fairnessURL,
	)
}

func ConfigFromEnv() (Config, error) {
	missingKey := func(key string) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s", ErrMissingRequiredValue, key)
	}
	invalidValue := func(key string, value any) (Config, error) {
		return Config{}, fmt.Errorf("%w: %s (%v)", ErrInvalidValue, key, value)
	}

	var raw rawConfig
	if err := env.Parse(&raw); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	var env environment
	switch raw.Environment {
	case "":
		return missingKey("LIVEOPS_ENVIRONMENT")
	case "production":
		env = production
	case "staging":
		env = staging
	case "development":
		env = development
	default:
		return invalidValue("LIVEOPS_ENVIRONMENT", raw.Environment)
	}
	if string(env) == "" {
		panic("logic error: env is empty")
	}

	urls := map[string]string{
		"LIVEOPS_GATEWAY_URL":     raw.GatewayURL,
		"LIVEOPS_LEADERBOARD_URL": raw.LeaderboardURL,
		"LIVEOPS_PROGRESSION_URL": raw.ProgressionURL,
		"LIVEOPS_FAIRNESS_URL":    raw.FairnessURL,
	}
	for key, value := range urls {
		parsed, err := url.Parse(value)
		if err != nil || parsed.Scheme == "" || parsed.Host == "" {
			return invalidValue(key, value)
		}
	}

	var route LeaderboardRoute
	switch LeaderboardRoute(raw.LeaderboardRoute) {
	case LeaderboardRouteBoard:
		route = LeaderboardRouteBoard
	case LeaderboardRouteWindow:
		route = LeaderboardRouteWindow
	default:
		return invalidValue("LIVEOPS_LEADERBOARD_ROUTE", raw.LeaderboardRoute)
	}

	if raw.LeaderboardLimit < 1 || raw.LeaderboardLimit > 100 {
		return invalidValue("LIVEOPS_LEADERBOARD_LIMIT", raw.LeaderboardLimit)
	}

	intervals := map[string]time.Duration{
		"LIVEOPS_LEADERBOARD_INTERVAL": raw.LeaderboardInterval,
		"LIVEOPS_DASHBOARD_INTERVAL":   raw.DashboardInterval,
		"LIVEOPS_HEALTH_INTERVAL":      raw.HealthInterval,
	}
	for key, value := range intervals {
		if value < time.Second {
			return invalidValue(key, value)
		}
	}

	if env == production || env == staging {
		if raw.HMACSecret == "" {
			return missingKey("LIVEOPS_HMAC_SECRET")
		}
		if len(raw.HMACSecret) < minHMACSecretLength {
			return Config{}, fmt.Errorf("%w: LIVEOPS_HMAC_SECRET must be at least %d bytes", ErrInvalidValue, minHMACSecretLength)
		}
		if raw.SentryDSN == "" {
			return missingKey("SENTRY_DSN")
		}
	}

	hmacSecret := raw.HMACSecret
	if env == development && hmacSecret == "" {
		hmacSecret = developmentHMACSecret
	}

	allowedOrigins := make([]string, 0, len(raw.AllowedOrigins))
	for _, origin := range raw.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			allowedOrigins = append(allowedOrigins, origin)
		}
	}

	return Config{
		gatewayURL:          strings.TrimSuffix(raw.GatewayURL, "/"),
		leaderboardURL:      strings.TrimSuffix(raw.LeaderboardURL, "/"),
		progressionURL:      strings.TrimSuffix(raw.ProgressionURL, "/"),
		fairnessURL:         strings.TrimSuffix(raw.FairnessURL, "/"),
		hmacSecret:          hmacSecret,
		leaderboardRoute:    route,
		leaderboardLimit:    raw.LeaderboardLimit,
		leaderboardInterval: raw.LeaderboardInterval,
		dashboardInterval:   raw.DashboardInterval,
		healthInterval:      raw.HealthInterval,
		listenPort:          raw.ListenPort,
		allowedOrigins:      allowedOrigins,
		sentryDSN:           raw.SentryDSN,
		otelEnabled:         raw.OTelEnabled,
		env:                 env,
	}, nil
}
